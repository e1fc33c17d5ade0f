// Package ops exposes the worker's health and metrics endpoints.
package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/harrowlabs/shredder/pkg/config"
	"github.com/harrowlabs/shredder/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
)

const healthCheckTimeout = 5 * time.Second

// Pinger is any dependency that can report its connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHandler returns the HTTP handler serving /healthz and /metrics.
// pingers maps a dependency name to its connectivity check.
func NewHandler(cfg *config.Config, logg *logger.Logger, gatherer prometheus.Gatherer, pingers map[string]Pinger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", healthz(cfg, logg, pingers))
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}

func healthz(cfg *config.Config, logg *logger.Logger, pingers map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		var failed error
		status := make(map[string]string, len(pingers))
		for name, pinger := range pingers {
			if pinger == nil {
				continue
			}
			if err := pinger.Ping(ctx); err != nil {
				status[name] = err.Error()
				failed = multierr.Append(failed, err)
				continue
			}
			status[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		if cfg != nil {
			w.Header().Set("X-Shredder-Env", cfg.App.Env)
		}

		response := map[string]any{"status": "ok", "checks": status}
		if failed != nil {
			if logg != nil {
				logg.Error(r.Context(), "health check failed", failed)
			}
			response["status"] = "unavailable"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(response); err != nil && logg != nil {
			logg.Error(r.Context(), "failed to write health response", err)
		}
	}
}
