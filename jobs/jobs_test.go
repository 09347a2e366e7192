package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/nusapos/nusapos/internal/catalog/composition"
	"github.com/nusapos/nusapos/internal/catalog/items"
	"github.com/nusapos/nusapos/internal/costing"
	"github.com/nusapos/nusapos/internal/inventory"
	_ "github.com/nusapos/nusapos/testing"
)

type stubBOM struct {
	mu    sync.Mutex
	calls int
}

func (s *stubBOM) ResolveRequirements(_ context.Context, productID int64) ([]composition.Requirement, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if productID == 404 {
		return nil, composition.ErrProductNotFound
	}
	return []composition.Requirement{{ItemID: 1, QuantityNeeded: 2}}, nil
}

type stubCatalog struct{}

func (stubCatalog) GetMany(_ context.Context, ids []int64) (map[int64]items.Item, error) {
	out := map[int64]items.Item{}
	for _, id := range ids {
		out[id] = items.Item{ID: id, Name: "Item", CostPerUnit: 10}
	}
	return out, nil
}

type stubValuation struct{}

func (stubValuation) LatestUnitCost(context.Context, int64) (float64, bool, error) {
	return 0, false, nil
}

func (stubValuation) AverageUnitCost(context.Context, int64) (float64, bool, error) {
	return 0, false, nil
}

type stubLister struct {
	ids []int64
}

func (s *stubLister) ListActiveIDs(context.Context) ([]int64, error) {
	return s.ids, nil
}

func newRecalcTask(t *testing.T, payload RecalculatePayload) *asynq.Task {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(TaskCostingRecalculate, body)
}

func TestRecalculateHandleProcessesActiveProducts(t *testing.T) {
	bom := &stubBOM{}
	engine := costing.NewEngine(bom, stubCatalog{}, stubValuation{}, nil, nil)
	job := NewRecalculateJob(engine, &stubLister{ids: []int64{1, 2, 3}}, nil, nil, nil)

	err := job.Handle(context.Background(), newRecalcTask(t, RecalculatePayload{Method: "current"}))
	require.NoError(t, err)
	require.Equal(t, 3, bom.calls)
}

func TestRecalculateHandleSkipsBrokenProducts(t *testing.T) {
	bom := &stubBOM{}
	engine := costing.NewEngine(bom, stubCatalog{}, stubValuation{}, nil, nil)
	job := NewRecalculateJob(engine, &stubLister{}, nil, nil, nil)

	err := job.Handle(context.Background(), newRecalcTask(t, RecalculatePayload{
		Method:     "latest",
		ProductIDs: []int64{404, 1},
	}))
	require.NoError(t, err)
}

func TestRecalculateHandleRejectsUnknownMethod(t *testing.T) {
	engine := costing.NewEngine(&stubBOM{}, stubCatalog{}, stubValuation{}, nil, nil)
	job := NewRecalculateJob(engine, &stubLister{}, nil, nil, nil)

	err := job.Handle(context.Background(), newRecalcTask(t, RecalculatePayload{Method: "fifo"}))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

type stubLowStockLedger struct {
	records []inventory.Record
}

func (s *stubLowStockLedger) ListBelowReorder(context.Context, int) ([]inventory.Record, error) {
	return s.records, nil
}

type recordingNotifier struct {
	events []inventory.LowStockEvent
}

func (n *recordingNotifier) HandleLowStock(_ context.Context, evt inventory.LowStockEvent) error {
	n.events = append(n.events, evt)
	return nil
}

func TestLowStockScanNotifiesPerRecord(t *testing.T) {
	ledger := &stubLowStockLedger{records: []inventory.Record{
		{ID: 1, ItemID: 10, CurrentStock: 2, ReorderLevel: 5},
		{ID: 2, ItemID: 11, CurrentStock: 0, ReorderLevel: 3},
	}}
	notifier := &recordingNotifier{}
	job := NewLowStockScanJob(ledger, notifier, nil, nil)

	task, err := NewLowStockScanTask(time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, notifier.events, 2)
	require.Equal(t, int64(10), notifier.events[0].ItemID)
}

type stubEnqueuer struct {
	recalcs  []RecalculatePayload
	scans    int
	failWith error
}

func (s *stubEnqueuer) EnqueueRecalculate(_ context.Context, payload RecalculatePayload) (*asynq.TaskInfo, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	s.recalcs = append(s.recalcs, payload)
	return &asynq.TaskInfo{ID: "task-1", Queue: QueueDefault}, nil
}

func (s *stubEnqueuer) EnqueueLowStockScan(context.Context) (*asynq.TaskInfo, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	s.scans++
	return &asynq.TaskInfo{ID: "task-2", Queue: QueueDefault}, nil
}

func TestRecalculateEndpointEnqueues(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	handler := NewHandler(nil, enqueuer, slog.Default())
	router := chi.NewRouter()
	handler.MountRoutes(router)

	body := `{"method":"latest","product_ids":[1,2]}`
	req := httptest.NewRequest(http.MethodPost, "/recalculate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, enqueuer.recalcs, 1)
	require.Equal(t, "latest", enqueuer.recalcs[0].Method)
	require.Equal(t, []int64{1, 2}, enqueuer.recalcs[0].ProductIDs)
}

func TestRecalculateEndpointRejectsUnknownMethod(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	handler := NewHandler(nil, enqueuer, slog.Default())
	router := chi.NewRouter()
	handler.MountRoutes(router)

	req := httptest.NewRequest(http.MethodPost, "/recalculate", strings.NewReader(`{"method":"fifo"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, enqueuer.recalcs)
}

func TestLowStockScanEndpointEnqueues(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	handler := NewHandler(nil, enqueuer, slog.Default())
	router := chi.NewRouter()
	handler.MountRoutes(router)

	req := httptest.NewRequest(http.MethodPost, "/lowstock-scan", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, 1, enqueuer.scans)
}
