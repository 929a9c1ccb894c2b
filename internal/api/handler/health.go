package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/kiranshivaraju/watchtower/internal/api/response"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHealthHandler returns GET /api/v1/health. It answers 503 when the
// database or the cache is unreachable.
func NewHealthHandler(db, cache Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{
			"database": probe(ctx, "database", db),
			"cache":    probe(ctx, "cache", cache),
		}
		for _, status := range checks {
			if status != "ok" {
				response.Error(w, http.StatusServiceUnavailable,
					"DEGRADED", "One or more services degraded", checks)
				return
			}
		}
		response.JSON(w, map[string]string{"status": "ok", "database": "ok", "cache": "ok"})
	}
}

func probe(ctx context.Context, name string, p Pinger) string {
	if p == nil {
		return "unconfigured"
	}
	if err := p.Ping(ctx); err != nil {
		slog.Warn("health check failed", "service", name, "error", err)
		return "degraded"
	}
	return "ok"
}
