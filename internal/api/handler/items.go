package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	mw "github.com/kiranshivaraju/watchtower/internal/api/middleware"
	"github.com/kiranshivaraju/watchtower/internal/api/response"
	"github.com/kiranshivaraju/watchtower/internal/store"
)

const defaultUsageWindow = 30 * 24 * time.Hour

// NewListItemsHandler returns GET /client/monitoring/items.
// Query: page, limit (max 100), since (RFC3339).
func NewListItemsHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		q := r.URL.Query()
		filter := store.ItemFilter{TenantID: tenantID}
		var err error
		if filter.Page, err = intParam(q.Get("page")); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "page must be an integer", nil)
			return
		}
		if filter.Limit, err = intParam(q.Get("limit")); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be an integer", nil)
			return
		}
		if v := q.Get("since"); v != "" {
			if filter.Since, err = time.Parse(time.RFC3339, v); err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "since must be a valid RFC3339 timestamp", nil)
				return
			}
		}
		filter.Normalize()

		items, total, err := s.ListAnalyzedItems(r.Context(), filter)
		if err != nil {
			slog.Error("listing analyzed items failed", "tenant_id", tenantID, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		response.Collection(w, items, response.NewPaginationMeta(filter.Page, filter.Limit, total))
	}
}

// NewUsageHandler returns GET /client/monitoring/usage: AI spend since
// ?since= (RFC3339), defaulting to the last 30 days.
func NewUsageHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		since := time.Now().UTC().Add(-defaultUsageWindow)
		if v := r.URL.Query().Get("since"); v != "" {
			parsed, err := time.Parse(time.RFC3339, v)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "since must be a valid RFC3339 timestamp", nil)
				return
			}
			since = parsed
		}

		summary, err := s.SumAuditUsage(r.Context(), tenantID, since)
		if err != nil {
			slog.Error("summing audit usage failed", "tenant_id", tenantID, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}
		response.JSON(w, summary)
	}
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
