package composition

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/nusapos/nusapos/internal/platform/httpx"
)

// Handler exposes bill-of-materials endpoints.
type Handler struct {
	logger   *slog.Logger
	resolver *Resolver
	store    *Store
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, resolver *Resolver, store *Store) *Handler {
	return &Handler{logger: logger, resolver: resolver, store: store, validate: validator.New()}
}

// MountRoutes registers composition routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/catalog/products/{productID}/composition", h.handleGet)
	r.Put("/catalog/products/{productID}/composition", h.handleReplace)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	productID, _ := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)

	if r.URL.Query().Get("deep") == "true" {
		reqs, err := h.resolver.ResolveRequirements(r.Context(), productID)
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"requirements": reqs})
		return
	}

	links, err := h.resolver.Resolve(r.Context(), productID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"links": links})
}

type replaceRequest struct {
	Links []linkRequest `json:"links" validate:"dive"`
}

type linkRequest struct {
	ItemID             int64    `json:"item_id"`
	ComponentProductID int64    `json:"component_product_id"`
	QuantityNeeded     float64  `json:"quantity_needed" validate:"gt=0"`
	Unit               string   `json:"unit"`
	CostOverride       *float64 `json:"cost_override"`
	Critical           bool     `json:"is_critical"`
}

func (h *Handler) handleReplace(w http.ResponseWriter, r *http.Request) {
	productID, _ := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)

	var req replaceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	links := make([]Link, 0, len(req.Links))
	for _, l := range req.Links {
		links = append(links, Link{
			ProductID:          productID,
			ItemID:             l.ItemID,
			ComponentProductID: l.ComponentProductID,
			QuantityNeeded:     l.QuantityNeeded,
			Unit:               l.Unit,
			CostOverride:       l.CostOverride,
			Critical:           l.Critical,
		})
	}
	if err := h.store.Replace(r.Context(), productID, links); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"links": links})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrProductNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidLink):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrCycle):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable", err.Error())
	default:
		h.logger.Error("composition request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
