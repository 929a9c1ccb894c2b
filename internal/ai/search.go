package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/watchtower/internal/audit"
	"github.com/kiranshivaraju/watchtower/pkg/models"
)

const searchInstruction = `You are a research assistant for market-intelligence analysts.
Answer the question using current public sources. Be concise and factual, and name the sources you relied on.`

const maxQueryBytes = 2000

// SearchResult is a grounded answer plus what it cost.
type SearchResult struct {
	Answer   string       `json:"answer"`
	Provider string       `json:"provider"`
	Model    string       `json:"model"`
	Usage    models.Usage `json:"usage"`
	CostUSD  float64      `json:"cost_usd"`
}

// Searcher runs web-grounded free-text queries for administrators.
// Every call that reaches the provider is audited as ADMIN_SEARCH.
type Searcher struct {
	provider models.AIProvider
	audit    *audit.Logger
	timeout  time.Duration
}

func NewSearcher(provider models.AIProvider, auditLog *audit.Logger, timeout time.Duration) *Searcher {
	return &Searcher{provider: provider, audit: auditLog, timeout: timeout}
}

// Search answers query on behalf of tenantID, which is billed for the call.
func (s *Searcher) Search(ctx context.Context, tenantID uuid.UUID, query string) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	query = truncateString(query, maxQueryBytes)

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp, err := s.provider.Generate(callCtx, models.GenerateRequest{
		SystemInstruction: searchInstruction,
		Content:           query,
		Grounded:          true,
	})
	// The ledger row is written even if the caller has gone away.
	auditCtx := context.WithoutCancel(ctx)
	if err != nil {
		_, _ = s.audit.Record(auditCtx, audit.Entry{
			TenantID: tenantID,
			Endpoint: models.EndpointAdminSearch,
			Status:   models.AuditStatusFailed,
			Detail:   err.Error(),
		})
		return nil, fmt.Errorf("grounded search: %w", err)
	}

	rec, err := s.audit.Record(auditCtx, audit.Entry{
		TenantID: tenantID,
		Endpoint: models.EndpointAdminSearch,
		Usage:    resp.Usage,
		Status:   models.AuditStatusSuccess,
	})
	if err != nil {
		return nil, err
	}

	return &SearchResult{
		Answer:   resp.Text,
		Provider: s.provider.Name(),
		Model:    resp.Model,
		Usage:    resp.Usage,
		CostUSD:  rec.CostUSD,
	}, nil
}
