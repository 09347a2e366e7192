package costing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/nusapos/nusapos/internal/platform/httpx"
)

// Handler exposes HPP and pricing endpoints.
type Handler struct {
	logger   *slog.Logger
	engine   *Engine
	advisor  *Advisor
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, engine *Engine, advisor *Advisor) *Handler {
	return &Handler{logger: logger, engine: engine, advisor: advisor, validate: validator.New()}
}

// MountRoutes registers costing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/costing/products/{productID}/hpp", h.handleHPP)
	r.Post("/costing/suggest-price", h.handleSuggestPrice)
	r.Post("/costing/suggest-markup", h.handleSuggestMarkup)
	r.Post("/costing/products/{productID}/apply", h.handleApply)
}

func (h *Handler) handleHPP(w http.ResponseWriter, r *http.Request) {
	productID, _ := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	method := Method(r.URL.Query().Get("method"))
	if method == "" {
		method = MethodCurrent
	}

	var breakdown Breakdown
	var err error
	if r.URL.Query().Get("fresh") == "true" {
		breakdown, err = h.engine.ComputeHPP(r.Context(), productID, method)
	} else {
		breakdown, err = h.engine.CachedHPP(r.Context(), productID, method)
	}
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, breakdown)
}

type suggestPriceRequest struct {
	HPP       float64 `json:"hpp" validate:"gte=0"`
	MarkupPct float64 `json:"markup_percentage"`
}

func (h *Handler) handleSuggestPrice(w http.ResponseWriter, r *http.Request) {
	var req suggestPriceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	suggestion, err := SuggestPrice(req.HPP, req.MarkupPct)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, suggestion)
}

type suggestMarkupRequest struct {
	HPP         float64 `json:"hpp"`
	TargetPrice float64 `json:"target_price" validate:"gte=0"`
}

func (h *Handler) handleSuggestMarkup(w http.ResponseWriter, r *http.Request) {
	var req suggestMarkupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	markup, err := SuggestMarkup(req.HPP, req.TargetPrice)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"hpp":               req.HPP,
		"target_price":      req.TargetPrice,
		"markup_percentage": markup,
	})
}

type applyRequest struct {
	Method      string   `json:"method" validate:"required,oneof=current latest average"`
	MarkupPct   *float64 `json:"markup_percentage"`
	TargetPrice *float64 `json:"target_price"`
	UpdateCost  bool     `json:"update_cost"`
	ActorID     int64    `json:"actor_id" validate:"required"`
}

func (h *Handler) handleApply(w http.ResponseWriter, r *http.Request) {
	productID, _ := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	var req applyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.advisor.ApplyToProduct(r.Context(), ApplyInput{
		ProductID:   productID,
		Method:      Method(req.Method),
		MarkupPct:   req.MarkupPct,
		TargetPrice: req.TargetPrice,
		UpdateCost:  req.UpdateCost,
		ActorID:     req.ActorID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrItemNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrUnknownMethod), errors.Is(err, ErrInvalidMarkup),
		errors.Is(err, ErrInvalidHPP), errors.Is(err, ErrPriceInputRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrCompositionCycle):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable", err.Error())
	default:
		h.logger.Error("costing request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
