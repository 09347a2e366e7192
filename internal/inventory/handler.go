package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/nusapos/nusapos/internal/platform/httpx"
	"github.com/nusapos/nusapos/internal/shared"
)

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/inventory/low-stock", h.handleLowStock)
	r.Get("/inventory/{id}", h.handleGet)
	r.Get("/inventory/{id}/movements", h.handleMovements)
	r.Post("/inventory/{id}/add", h.handleAdd)
	r.Post("/inventory/{id}/return", h.handleReturn)
	r.Post("/inventory/{id}/remove", h.handleRemove)
	r.Post("/inventory/{id}/adjust", h.handleAdjust)
	r.Post("/inventory/{id}/reserve", h.handleReserve)
	r.Post("/inventory/{id}/release", h.handleRelease)
	r.Put("/inventory/{id}/levels", h.handleSetLevels)
}

type addStockRequest struct {
	Quantity  float64 `json:"quantity" validate:"gt=0"`
	UnitCost  float64 `json:"unit_cost" validate:"gte=0"`
	RefModule string  `json:"ref_module"`
	RefID     string  `json:"ref_id" validate:"omitempty,uuid"`
	Note      string  `json:"note"`
	ActorID   int64   `json:"actor_id" validate:"required"`
}

type returnRequest struct {
	Quantity  float64 `json:"quantity" validate:"gt=0"`
	RefModule string  `json:"ref_module"`
	RefID     string  `json:"ref_id" validate:"omitempty,uuid"`
	Note      string  `json:"note"`
	ActorID   int64   `json:"actor_id" validate:"required"`
}

type removeStockRequest struct {
	Quantity  float64 `json:"quantity" validate:"gt=0"`
	Type      string  `json:"type" validate:"omitempty,oneof=out transfer damaged expired"`
	RefModule string  `json:"ref_module"`
	RefID     string  `json:"ref_id" validate:"omitempty,uuid"`
	Note      string  `json:"note"`
	ActorID   int64   `json:"actor_id" validate:"required"`
}

type adjustRequest struct {
	NewStock float64 `json:"new_stock" validate:"gte=0"`
	Reason   string  `json:"reason" validate:"required"`
	ActorID  int64   `json:"actor_id" validate:"required"`
}

type reserveRequest struct {
	Quantity float64 `json:"quantity" validate:"gt=0"`
	ActorID  int64   `json:"actor_id" validate:"required"`
}

type setLevelsRequest struct {
	ReorderLevel  float64  `json:"reorder_level" validate:"gte=0"`
	MaxStockLevel *float64 `json:"max_stock_level" validate:"omitempty,gt=0"`
	ActorID       int64    `json:"actor_id" validate:"required"`
}

type balanceResponse struct {
	InventoryID    int64   `json:"inventory_id"`
	ItemID         int64   `json:"item_id"`
	CurrentStock   float64 `json:"current_stock"`
	ReservedStock  float64 `json:"reserved_stock"`
	AvailableStock float64 `json:"available_stock"`
	AverageCost    float64 `json:"average_cost"`
	Status         string  `json:"status"`
}

func toBalanceResponse(b Balance) balanceResponse {
	return balanceResponse{
		InventoryID:    b.InventoryID,
		ItemID:         b.ItemID,
		CurrentStock:   b.CurrentStock,
		ReservedStock:  b.ReservedStock,
		AvailableStock: b.CurrentStock - b.ReservedStock,
		AverageCost:    b.AverageCost,
		Status:         string(b.Status),
	}
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	rec, err := h.service.GetRecord(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"inventory_id":    rec.ID,
		"item_id":         rec.ItemID,
		"current_stock":   rec.CurrentStock,
		"reserved_stock":  rec.ReservedStock,
		"available_stock": rec.AvailableStock(),
		"reorder_level":   rec.ReorderLevel,
		"max_stock_level": rec.MaxStockLevel,
		"average_cost":    rec.AverageCost,
		"status":          string(rec.Status()),
	})
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	filter := MovementFilter{InventoryID: id}
	q := r.URL.Query()
	if from := q.Get("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid from date")
			return
		}
		filter.From = t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid to date")
			return
		}
		filter.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	if limit := q.Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			filter.Limit = n
		}
	}
	movements, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	records, err := h.service.ListBelowReorder(r.Context(), limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	type row struct {
		InventoryID  int64   `json:"inventory_id"`
		ItemID       int64   `json:"item_id"`
		CurrentStock float64 `json:"current_stock"`
		ReorderLevel float64 `json:"reorder_level"`
		Status       string  `json:"status"`
	}
	rows := make([]row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, row{
			InventoryID:  rec.ID,
			ItemID:       rec.ItemID,
			CurrentStock: rec.CurrentStock,
			ReorderLevel: rec.ReorderLevel,
			Status:       string(rec.Status()),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"records": rows})
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req addStockRequest
	if !h.decode(w, r, &req) {
		return
	}
	balance, err := h.service.AddStock(r.Context(), AddStockInput{
		InventoryID:    id,
		Quantity:       req.Quantity,
		UnitCost:       req.UnitCost,
		RefModule:      req.RefModule,
		RefID:          req.RefID,
		Note:           req.Note,
		ActorID:        req.ActorID,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toBalanceResponse(balance))
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req returnRequest
	if !h.decode(w, r, &req) {
		return
	}
	balance, err := h.service.AddStockReturn(r.Context(), ReturnInput{
		InventoryID:    id,
		Quantity:       req.Quantity,
		RefModule:      req.RefModule,
		RefID:          req.RefID,
		Note:           req.Note,
		ActorID:        req.ActorID,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toBalanceResponse(balance))
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req removeStockRequest
	if !h.decode(w, r, &req) {
		return
	}
	balance, err := h.service.RemoveStock(r.Context(), RemoveStockInput{
		InventoryID:    id,
		Quantity:       req.Quantity,
		Type:           MovementType(req.Type),
		RefModule:      req.RefModule,
		RefID:          req.RefID,
		Note:           req.Note,
		ActorID:        req.ActorID,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toBalanceResponse(balance))
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req adjustRequest
	if !h.decode(w, r, &req) {
		return
	}
	balance, err := h.service.Adjust(r.Context(), AdjustInput{
		InventoryID:    id,
		NewStock:       req.NewStock,
		Reason:         req.Reason,
		ActorID:        req.ActorID,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toBalanceResponse(balance))
}

func (h *Handler) handleReserve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req reserveRequest
	if !h.decode(w, r, &req) {
		return
	}
	balance, err := h.service.ReserveStock(r.Context(), id, req.Quantity, req.ActorID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toBalanceResponse(balance))
}

func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req reserveRequest
	if !h.decode(w, r, &req) {
		return
	}
	balance, err := h.service.ReleaseReservedStock(r.Context(), id, req.Quantity, req.ActorID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toBalanceResponse(balance))
}

func (h *Handler) handleSetLevels(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req setLevelsRequest
	if !h.decode(w, r, &req) {
		return
	}
	balance, err := h.service.SetLevels(r.Context(), id, req.ReorderLevel, req.MaxStockLevel, req.ActorID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toBalanceResponse(balance))
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid inventory id")
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRecordNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidUnitCost), errors.Is(err, ErrInvalidMovementType):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrInsufficientReserve):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", err.Error())
	case errors.Is(err, ErrConcurrencyConflict), errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("inventory request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
