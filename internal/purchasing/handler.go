package purchasing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/nusapos/nusapos/internal/inventory"
	"github.com/nusapos/nusapos/internal/platform/httpx"
	"github.com/nusapos/nusapos/internal/shared"
)

// Handler exposes goods receipt and purchase history endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers purchasing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/purchasing/receipts", h.handleReceipt)
	r.Get("/purchasing/items/{itemID}/lines", h.handleListLines)
}

type receiptRequest struct {
	ItemID     int64   `json:"item_id" validate:"required,gt=0"`
	Quantity   float64 `json:"quantity" validate:"gt=0"`
	UnitCost   float64 `json:"unit_cost" validate:"gte=0"`
	SupplierID int64   `json:"supplier_id"`
	RefID      string  `json:"ref_id" validate:"omitempty,uuid"`
	Note       string  `json:"note"`
	ActorID    int64   `json:"actor_id" validate:"required"`
}

func (h *Handler) handleReceipt(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	receipt, err := h.service.RecordReceipt(r.Context(), ReceiptInput{
		ItemID:         req.ItemID,
		Quantity:       req.Quantity,
		UnitCost:       req.UnitCost,
		SupplierID:     req.SupplierID,
		RefID:          req.RefID,
		Note:           req.Note,
		ActorID:        req.ActorID,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"line":          receipt.Line,
		"inventory_id":  receipt.InventoryID,
		"current_stock": receipt.CurrentStock,
		"average_cost":  receipt.AverageCost,
	})
}

func (h *Handler) handleListLines(w http.ResponseWriter, r *http.Request) {
	itemID, _ := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	lines, err := h.service.ListByItem(r.Context(), itemID, limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"lines": lines})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidUnitCost), errors.Is(err, ErrItemRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, inventory.ErrConcurrencyConflict), errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("purchasing request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
