package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nusapos/nusapos/internal/app"
	"github.com/nusapos/nusapos/internal/audit"
	"github.com/nusapos/nusapos/internal/catalog/composition"
	"github.com/nusapos/nusapos/internal/catalog/items"
	"github.com/nusapos/nusapos/internal/catalog/products"
	"github.com/nusapos/nusapos/internal/costing"
	"github.com/nusapos/nusapos/internal/inventory"
	"github.com/nusapos/nusapos/internal/observability"
	"github.com/nusapos/nusapos/internal/platform/cache"
	"github.com/nusapos/nusapos/internal/platform/db"
	"github.com/nusapos/nusapos/internal/purchasing"
	"github.com/nusapos/nusapos/internal/shared"
	"github.com/nusapos/nusapos/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis connect", slog.Any("error", err))
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)
	idemStore := shared.NewIdempotencyStore(pool)

	itemService := items.NewService(items.NewRepository(pool))
	productService := products.NewService(products.NewRepository(pool))

	costCache := costing.NewCache(redisClient, cfg.HPPCacheTTL)
	if err := costCache.ListenForInvalidation(ctx); err != nil {
		logger.Warn("cost cache subscribe", slog.Any("error", err))
	}

	compositionResolver := composition.NewResolver(composition.NewRepository(pool))
	compositionStore := composition.NewStore(pool, costCache)

	inventoryService := inventory.NewService(
		inventory.NewRepository(pool),
		auditLogger,
		idemStore,
		nil,
		metrics,
		inventory.ServiceConfig{
			AllowNegativeStock: cfg.AllowNegativeStock,
			RetryLimit:         cfg.LedgerRetryLimit,
		},
	)

	purchasingRepo := purchasing.NewRepository(pool)
	purchasingService := purchasing.NewService(purchasingRepo, inventoryService, costCache, auditLogger)

	costingEngine := costing.NewEngine(compositionResolver, itemService, purchasingService, costCache, metrics)
	pricingAdvisor := costing.NewAdvisor(costingEngine, costing.NewRepository(pool), auditLogger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		ItemsHandler:       items.NewHandler(logger, itemService),
		ProductsHandler:    products.NewHandler(logger, productService),
		CompositionHandler: composition.NewHandler(logger, compositionResolver, compositionStore),
		InventoryHandler:   inventory.NewHandler(logger, inventoryService),
		PurchasingHandler:  purchasing.NewHandler(logger, purchasingService),
		CostingHandler:     costing.NewHandler(logger, costingEngine, pricingAdvisor),
		AuditHandler:       audit.NewHandler(logger, audit.NewService(audit.NewRepository(pool))),
		JobHandler:         jobs.NewHandler(inspector, jobClient, logger),
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
