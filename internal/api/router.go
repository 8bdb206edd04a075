// Package api exposes the layer catalog over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/citysdk/layercatalog/internal/serialize"
	"github.com/citysdk/layercatalog/internal/web/middleware"
	"github.com/citysdk/layercatalog/internal/web/profiling"
	"github.com/citysdk/layercatalog/internal/web/ratelimit"
)

// Catalog is the part of catalog.Catalog the API serves
type Catalog interface {
	Render(ctx context.Context, tokens []string, format serialize.Format, params serialize.Params, req serialize.Request) ([]byte, error)
	RebuildCache(ctx context.Context) error
}

// HealthCheck reports whether a dependency is usable
type HealthCheck func(ctx context.Context) error

// Options configures the router
type Options struct {
	Catalog Catalog
	Logger  *zap.Logger

	// AdminEnabled mounts POST /admin/cache/rebuild and GET /admin/stats
	AdminEnabled bool

	// Profiling mounts pprof below /admin/debug/pprof when admin is enabled
	Profiling bool

	// RateLimiter throttles the /layers endpoints per client when set
	RateLimiter ratelimit.Limiter

	// RateLimitKey identifies the client; ratelimit.RemoteIP when nil
	RateLimitKey ratelimit.KeyFunc

	// CORS is applied when set
	CORS *middleware.CORSConfig

	// Health checks run by GET /health, keyed by dependency name
	Health map[string]HealthCheck
}

type handler struct {
	catalog Catalog
	logger  *zap.Logger
	health  map[string]HealthCheck
}

// NewRouter builds the HTTP handler of the catalog
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{
		catalog: opts.Catalog,
		logger:  logger.Named("api"),
		health:  opts.Health,
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(),
		middleware.Logging(logger.Named("http"), "/health"),
		middleware.Recovery(logger.Named("http"), panicHandler),
	)
	if opts.CORS != nil {
		r.Use(middleware.CORS(*opts.CORS))
	}

	r.NotFound(notFoundHandler)
	r.MethodNotAllowed(methodNotAllowedHandler)

	r.Get("/health", h.getHealth)

	r.Group(func(r chi.Router) {
		if opts.RateLimiter != nil {
			r.Use(ratelimit.Middleware(opts.RateLimiter, opts.RateLimitKey, logger.Named("ratelimit"), rateLimitedHandler))
		}
		r.Get("/layers", h.listLayers)
		r.Get("/layers/{name}", h.showLayer)
	})

	if opts.AdminEnabled {
		r.Post("/admin/cache/rebuild", h.rebuildCache)
		r.Get("/admin/stats", profiling.StatsHandler())
		if opts.Profiling {
			profiling.Mount(r, "/admin/debug/pprof")
		}
	}

	return r
}
