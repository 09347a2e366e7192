package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nusapos/nusapos/internal/app"
	"github.com/nusapos/nusapos/internal/catalog/composition"
	"github.com/nusapos/nusapos/internal/catalog/items"
	"github.com/nusapos/nusapos/internal/catalog/products"
	"github.com/nusapos/nusapos/internal/costing"
	"github.com/nusapos/nusapos/internal/inventory"
	"github.com/nusapos/nusapos/internal/platform/cache"
	"github.com/nusapos/nusapos/internal/platform/db"
	"github.com/nusapos/nusapos/internal/purchasing"
	"github.com/nusapos/nusapos/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	itemService := items.NewService(items.NewRepository(pool))
	productService := products.NewService(products.NewRepository(pool))
	compositionResolver := composition.NewResolver(composition.NewRepository(pool))
	inventoryRepo := inventory.NewRepository(pool)
	purchasingService := purchasing.NewService(purchasing.NewRepository(pool), nil, nil, nil)

	costCache := costing.NewCache(redisClient, cfg.HPPCacheTTL)
	costingEngine := costing.NewEngine(compositionResolver, itemService, purchasingService, costCache, nil)

	recalcJob := jobs.NewRecalculateJob(costingEngine, productService, costCache, logger, nil)
	lowStockJob := jobs.NewLowStockScanJob(inventoryRepo, nil, logger, nil)

	recalcTask, err := jobs.NewRecalculateTask(jobs.RecalculatePayload{
		Method:    string(costing.MethodCurrent),
		Requested: time.Now().UTC(),
	})
	if err != nil {
		logger.Error("build recalculate task", slog.Any("error", err))
		os.Exit(1)
	}
	lowStockTask, err := jobs.NewLowStockScanTask(time.Now().UTC())
	if err != nil {
		logger.Error("build lowstock task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskCostingRecalculate, Handler: recalcJob.Handle},
			{Type: jobs.TaskLowStockScan, Handler: lowStockJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 1 * * *", Task: recalcTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 */4 * * *", Task: lowStockTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
