package app

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/groweasy/groweasy/internal/counterparty"
	"github.com/groweasy/groweasy/internal/inventory"
	"github.com/groweasy/groweasy/internal/observability"
	"github.com/groweasy/groweasy/internal/orders"
	"github.com/groweasy/groweasy/internal/platform/httpx"
	"github.com/groweasy/groweasy/internal/shared"
	"github.com/groweasy/groweasy/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger              *slog.Logger
	Config              *Config
	InventoryHandler    *inventory.Handler
	OrdersHandler       *orders.Handler
	CounterpartyHandler *counterparty.Handler
	JobHandler          *jobs.Handler
	Metrics             *observability.Metrics
}

// TenantHeader carries the tenant binding until a full auth layer exists.
const TenantHeader = "X-Tenant-ID"

// NewRouter constructs the chi.Router with GrowEasy defaults.
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

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(tenantCtx)
		if params.InventoryHandler != nil {
			r.Route("/inventory", params.InventoryHandler.MountRoutes)
		}
		if params.OrdersHandler != nil {
			r.Route("/orders", params.OrdersHandler.MountRoutes)
		}
		if params.CounterpartyHandler != nil {
			r.Route("/counterparties", params.CounterpartyHandler.MountRoutes)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}

// tenantCtx binds the tenant id from the request header onto the context.
func tenantCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(TenantHeader)
		tenantID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || tenantID <= 0 {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing or invalid tenant header")
			return
		}
		ctx := shared.ContextWithTenant(r.Context(), tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
