package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/watchtower/internal/ai"
	mw "github.com/kiranshivaraju/watchtower/internal/api/middleware"
	"github.com/kiranshivaraju/watchtower/internal/api/response"
)

// Searcher answers grounded free-text queries. *ai.Searcher satisfies it.
type Searcher interface {
	Search(ctx context.Context, tenantID uuid.UUID, query string) (*ai.SearchResult, error)
}

// NewSearchHandler returns POST /admin/search. The call is billed to the
// caller's tenant, or to tenant_id when the body names one.
func NewSearchHandler(svc Searcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		var req struct {
			Query    string `json:"query"`
			TenantID string `json:"tenant_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.TenantID != "" {
			id, err := uuid.Parse(req.TenantID)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "tenant_id must be a valid UUID", nil)
				return
			}
			tenantID = id
		}

		result, err := svc.Search(r.Context(), tenantID, req.Query)
		if err != nil {
			switch {
			case errors.Is(err, ai.ErrEmptyQuery):
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "query is required", nil)
			case errors.Is(err, ai.ErrProviderUnavailable):
				response.Error(w, http.StatusBadGateway, "AI_PROVIDER_UNAVAILABLE",
					"The AI provider is not available", nil)
			case errors.Is(err, ai.ErrInferenceTimeout):
				response.Error(w, http.StatusGatewayTimeout, "AI_INFERENCE_TIMEOUT",
					"AI search took too long and was cancelled", nil)
			default:
				slog.Error("admin search failed", "tenant_id", tenantID, "error", err)
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		response.JSON(w, result)
	}
}
