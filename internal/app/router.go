package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/centinela-ac/centinela/internal/audit"
	"github.com/centinela-ac/centinela/internal/catalog"
	"github.com/centinela-ac/centinela/internal/exceptions"
	"github.com/centinela-ac/centinela/internal/groups"
	"github.com/centinela-ac/centinela/internal/identity"
	"github.com/centinela-ac/centinela/internal/observability"
	"github.com/centinela-ac/centinela/internal/resolver"
	"github.com/centinela-ac/centinela/internal/shared"
	"github.com/centinela-ac/centinela/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	Tokens            *shared.TokenManager
	AuthHandler       *identity.Handler
	CatalogHandler    *catalog.Handler
	GroupsHandler     *groups.Handler
	ExceptionsHandler *exceptions.Handler
	ResolverHandler   *resolver.Handler
	AuditHandler      *audit.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with Centinela defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Tokens:  params.Tokens,
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

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/authz", params.ResolverHandler.MountRoutes)
	if params.CatalogHandler != nil {
		r.Route("/catalog", params.CatalogHandler.MountRoutes)
	}
	if params.GroupsHandler != nil {
		r.Route("/groups", params.GroupsHandler.MountRoutes)
	}
	if params.ExceptionsHandler != nil {
		r.Route("/exceptions", params.ExceptionsHandler.MountRoutes)
	}
	if params.AuditHandler != nil {
		r.Route("/audit", params.AuditHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
