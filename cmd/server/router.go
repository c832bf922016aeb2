package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"trustlane/internal/platform/metrics"
	"trustlane/pkg/platform/httputil"
	"trustlane/pkg/platform/middleware/actor"
	"trustlane/pkg/platform/middleware/request"
	"trustlane/pkg/platform/middleware/requesttime"
)

// registrar is implemented by every module handler.
type registrar interface {
	Register(r chi.Router)
}

// healthCheck reports whether one backing dependency is reachable.
type healthCheck struct {
	name string
	ping func(ctx context.Context) error
}

func newRouter(logger *slog.Logger, m *metrics.Metrics, checks []healthCheck, handlers ...registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(logger))
	r.Use(request.Logger(logger))
	r.Use(requesttime.Middleware)
	r.Use(m.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readinessHandler(logger, checks))
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(actor.RequireActor(logger))
		for _, h := range handlers {
			h.Register(r)
		}
	})
	return r
}

func readinessHandler(logger *slog.Logger, checks []healthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for _, c := range checks {
			if err := c.ping(ctx); err != nil {
				logger.WarnContext(ctx, "readiness check failed", "dependency", c.name, "error", err)
				results[c.name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			results[c.name] = "ok"
		}
		httputil.WriteJSON(w, status, results)
	}
}
