package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/nusapos/nusapos/internal/costing"
	jobmetrics "github.com/nusapos/nusapos/internal/jobs"
)

// TaskCostingRecalculate triggers a bulk HPP recalculation.
const TaskCostingRecalculate = "costing:recalculate"

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// RecalculatePayload selects which products to recalculate. An empty
// ProductIDs slice means every active product.
type RecalculatePayload struct {
	Method     string    `json:"method"`
	ProductIDs []int64   `json:"product_ids,omitempty"`
	Requested  time.Time `json:"requested"`
}

// NewRecalculateTask constructs an Asynq task for bulk recalculation.
func NewRecalculateTask(payload RecalculatePayload) (*asynq.Task, error) {
	if payload.Method == "" {
		payload.Method = string(costing.MethodCurrent)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCostingRecalculate, body, asynq.Queue(QueueDefault)), nil
}

// ProductLister serves the ids targeted by a bulk recalculation.
type ProductLister interface {
	ListActiveIDs(ctx context.Context) ([]int64, error)
}

// RecalculateJob recomputes HPP for a set of products and refreshes the
// breakdown cache. It never writes product rows; committing a recalculated
// cost stays an explicit pricing action.
type RecalculateJob struct {
	Engine      *costing.Engine
	Products    ProductLister
	Cache       *costing.Cache
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
	Concurrency int
}

// NewRecalculateJob wires dependencies for the recalculation handler.
func NewRecalculateJob(engine *costing.Engine, products ProductLister, cache *costing.Cache, logger *slog.Logger, metrics *jobmetrics.Metrics) *RecalculateJob {
	return &RecalculateJob{
		Engine:      engine,
		Products:    products,
		Cache:       cache,
		Logger:      logger,
		Metrics:     metrics,
		Concurrency: 4,
	}
}

// Handle processes TaskCostingRecalculate tasks.
func (j *RecalculateJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Engine == nil {
		return errors.New("recalculate: handler not configured")
	}
	var payload RecalculatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	method := costing.Method(payload.Method)
	if method == "" {
		method = costing.MethodCurrent
	}
	if !method.Valid() {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskCostingRecalculate)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("method", string(method)))

	ids := payload.ProductIDs
	if len(ids) == 0 {
		if j.Products == nil {
			return errors.New("recalculate: product lister not configured")
		}
		var err error
		ids, err = j.Products.ListActiveIDs(ctx)
		if err != nil {
			resultErr = err
			logger.Error("list active products", slog.Any("error", err))
			return resultErr
		}
	}
	if len(ids) == 0 {
		logger.Info("no products to recalculate")
		return resultErr
	}

	// Bump once so every worker recomputes against fresh purchase data.
	if j.Cache != nil {
		if err := j.Cache.Bump(ctx); err != nil {
			logger.Warn("cache bump", slog.Any("error", err))
		}
	}

	limit := j.Concurrency
	if limit <= 0 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, productID := range ids {
		g.Go(func() error {
			_, err := j.Engine.CachedHPP(gctx, productID, method)
			if errors.Is(err, costing.ErrProductNotFound) || errors.Is(err, costing.ErrCompositionCycle) {
				// A broken product must not sink the whole batch.
				logger.Warn("skip product", slog.Int64("product_id", productID), slog.Any("error", err))
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		resultErr = err
		logger.Error("recalculate batch", slog.Any("error", err))
		return resultErr
	}

	logger.Info("recalculation finished", slog.Int("products", len(ids)))
	return resultErr
}

func (j *RecalculateJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *RecalculateJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
