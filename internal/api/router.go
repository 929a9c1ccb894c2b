package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	mw "github.com/kiranshivaraju/watchtower/internal/api/middleware"
	"github.com/kiranshivaraju/watchtower/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth           *mw.Auth
	RateLimit      *mw.RateLimit
	CronKey        string
	AllowedOrigins []string

	HealthHandler    http.HandlerFunc
	TriggerHandler   http.HandlerFunc
	RunHandler       http.HandlerFunc
	ListItemsHandler http.HandlerFunc
	UsageHandler     http.HandlerFunc
	AdminRunHandler  http.HandlerFunc
	SearchHandler    http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	if len(deps.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: deps.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
			MaxAge:         300,
		}))
	}

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// External cron trigger, authenticated by shared secret.
	r.With(mw.CronKey(deps.CronKey)).Post("/monitoring/trigger", orNotImplemented(deps.TriggerHandler))

	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/client/monitoring/run", orNotImplemented(deps.RunHandler))
		r.Get("/client/monitoring/items", orNotImplemented(deps.ListItemsHandler))
		r.Get("/client/monitoring/usage", orNotImplemented(deps.UsageHandler))

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(mw.ScopeAdmin))

			r.Post("/admin/monitoring/run/{tenantID}", orNotImplemented(deps.AdminRunHandler))
			r.Post("/admin/search", orNotImplemented(deps.SearchHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
