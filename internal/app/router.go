package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/nusapos/nusapos/internal/audit"
	"github.com/nusapos/nusapos/internal/catalog/composition"
	"github.com/nusapos/nusapos/internal/catalog/items"
	"github.com/nusapos/nusapos/internal/catalog/products"
	"github.com/nusapos/nusapos/internal/costing"
	"github.com/nusapos/nusapos/internal/inventory"
	"github.com/nusapos/nusapos/internal/observability"
	"github.com/nusapos/nusapos/internal/purchasing"
	"github.com/nusapos/nusapos/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	ItemsHandler       *items.Handler
	ProductsHandler    *products.Handler
	CompositionHandler *composition.Handler
	InventoryHandler   *inventory.Handler
	PurchasingHandler  *purchasing.Handler
	CostingHandler     *costing.Handler
	AuditHandler       *audit.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with NusaPOS defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		if params.ItemsHandler != nil {
			params.ItemsHandler.MountRoutes(api)
		}
		if params.ProductsHandler != nil {
			params.ProductsHandler.MountRoutes(api)
		}
		if params.CompositionHandler != nil {
			params.CompositionHandler.MountRoutes(api)
		}
		if params.InventoryHandler != nil {
			params.InventoryHandler.MountRoutes(api)
		}
		if params.PurchasingHandler != nil {
			params.PurchasingHandler.MountRoutes(api)
		}
		if params.CostingHandler != nil {
			params.CostingHandler.MountRoutes(api)
		}
		if params.AuditHandler != nil {
			params.AuditHandler.MountRoutes(api)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", func(jr chi.Router) {
			params.JobHandler.MountRoutes(jr)
		})
	}

	return r
}
