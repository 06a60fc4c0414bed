package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/IgorGrieder/link-redirector/internal/config"
	"github.com/IgorGrieder/link-redirector/internal/processing/links"
	"github.com/IgorGrieder/link-redirector/internal/transport/http/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterOptions struct {
	EnableCORS    bool
	EnableLogging bool
	EnableMetrics bool

	// RateLimiter, when set, caps mutating requests per client.
	RateLimiter middleware.WindowCounter
	HealthCheck func(ctx context.Context) error
}

func DefaultRouterOptions() RouterOptions {
	return RouterOptions{
		EnableCORS:    true,
		EnableLogging: true,
		EnableMetrics: true,
	}
}

func NewRouter(cfg *config.Config, linkService *links.Service, opts RouterOptions) http.Handler {
	mux := http.NewServeMux()

	healthHandler := NewHealthHandler(opts.HealthCheck)
	linksHandler := NewLinksHandler(linkService, LinksHandlerOptions{
		RedirectStatus: cfg.Links.RedirectStatus,
		PublicHost:     cfg.Links.PublicHost,
	})

	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.Handle("GET /metrics", healthHandler.Metrics())

	guard := middleware.NewGuard(cfg.Security.AuthToken)
	authenticated := []func(http.Handler) http.Handler{middleware.RequireAuth(guard)}
	mutating := authenticated
	if opts.RateLimiter != nil {
		mutating = append([]func(http.Handler) http.Handler{
			middleware.RateLimitMiddleware(opts.RateLimiter, cfg.RateLimit.PerMinute),
		}, authenticated...)
	}

	mux.HandleFunc("GET /{id}", linksHandler.Redirect)
	mux.HandleFunc("GET /{id}/where", linksHandler.Where)
	mux.HandleFunc("GET /{id}/exists", linksHandler.Exists)
	mux.Handle("GET /{id}/details", middleware.Chain(http.HandlerFunc(linksHandler.Details), authenticated...))
	mux.Handle("POST /{id}", middleware.Chain(http.HandlerFunc(linksHandler.Upsert), mutating...))
	mux.Handle("DELETE /{id}", middleware.Chain(http.HandlerFunc(linksHandler.Delete), mutating...))

	var innerHandler http.Handler = mux
	if opts.EnableMetrics {
		innerHandler = middleware.MetricsMiddleware(innerHandler)
	}
	if opts.EnableLogging {
		innerHandler = middleware.LoggingMiddleware(innerHandler)
	}
	if opts.EnableCORS {
		innerHandler = middleware.CORSMiddleware(cfg.Server.CORSOrigins)(innerHandler)
	}

	return otelhttp.NewHandler(innerHandler, cfg.App.Name,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return spanName(r)
		}),
	)
}

// spanName names spans by route shape; the mux has not matched yet when
// otelhttp starts the span.
func spanName(r *http.Request) string {
	path := strings.Trim(r.URL.Path, "/")
	switch {
	case r.Method == http.MethodGet && path == "health":
		return "health"
	case r.Method == http.MethodGet && path == "metrics":
		return "metrics"
	case path == "" || strings.Count(path, "/") > 1:
		return r.Method + " unmatched"
	}

	suffix := ""
	if i := strings.IndexByte(path, '/'); i >= 0 {
		suffix = path[i+1:]
	}
	switch {
	case (r.Method == http.MethodGet || r.Method == http.MethodHead) && suffix == "":
		return "links.redirect"
	case r.Method == http.MethodGet && (suffix == "where" || suffix == "exists" || suffix == "details"):
		return "links." + suffix
	case r.Method == http.MethodPost && suffix == "":
		return "links.upsert"
	case r.Method == http.MethodDelete && suffix == "":
		return "links.delete"
	}
	return r.Method + " unmatched"
}
