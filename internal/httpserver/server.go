// Package httpserver assembles the API router and its shared middleware.
package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dejobratic/storefront/internal/apperror"
	"github.com/dejobratic/storefront/internal/httpio"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// APIPrefix is where every module is mounted.
const APIPrefix = "/api/v1"

// Module registers its routes on the API router.
type Module interface {
	Routes(r chi.Router)
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

type Options struct {
	Logger      *slog.Logger
	Metrics     *Metrics
	ServiceName string
	CORSOrigin  string
	// Readiness checks run on /readyz. None means always ready.
	Readiness map[string]ReadinessCheck
}

// NewRouter builds the HTTP handler serving health checks and the modules
// under APIPrefix.
func NewRouter(opts Options, modules ...Module) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(WithLogging(opts.Logger))
	r.Use(WithRecovery(opts.Logger))
	if opts.Metrics != nil {
		r.Use(WithMetrics(opts.Metrics))
	}
	r.Use(WithCORS(opts.CORSOrigin))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpio.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readyHandler(opts.Logger, opts.Readiness))

	r.Route(APIPrefix, func(api chi.Router) {
		for _, m := range modules {
			m.Routes(api)
		}
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpio.WriteError(w, req, nil, apperror.NotFound("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpio.WriteJSON(w, http.StatusMethodNotAllowed, map[string]any{
			"success": false,
			"error":   map[string]string{"kind": "method_not_allowed", "message": "method not allowed"},
		})
	})

	name := opts.ServiceName
	if name == "" {
		name = "http.server"
	}
	return otelhttp.NewHandler(r, name,
		otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			return req.Method + " " + req.URL.Path
		}),
	)
}

func readyHandler(logger *slog.Logger, checks map[string]ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		failed := map[string]string{}
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				logger.WarnContext(r.Context(), "readiness check failed", "check", name, "error", err)
				failed[name] = "unavailable"
			}
		}

		if len(failed) > 0 {
			httpio.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not ready", "checks": failed})
			return
		}
		httpio.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
