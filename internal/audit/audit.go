// Package audit appends usage records to the append-only audit ledger.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/watchtower/pkg/cost"
	"github.com/kiranshivaraju/watchtower/pkg/models"
)

const maxDetailBytes = 500

// Writer persists audit records. store.Store satisfies it.
type Writer interface {
	CreateAuditRecord(ctx context.Context, rec *models.AuditRecord) error
}

// Entry describes one unit of attempted work.
type Entry struct {
	TenantID uuid.UUID
	Endpoint string
	Usage    models.Usage
	Status   string
	// Detail is an operator-facing note, e.g. the fetch failure reason.
	Detail string
}

// Logger prices entries with the cost model and appends them to the ledger.
type Logger struct {
	w   Writer
	now func() time.Time
}

func NewLogger(w Writer) *Logger {
	return &Logger{w: w, now: func() time.Time { return time.Now().UTC() }}
}

// Record appends exactly one audit record for e and returns it.
func (l *Logger) Record(ctx context.Context, e Entry) (*models.AuditRecord, error) {
	in, out := max(e.Usage.TokensIn, 0), max(e.Usage.TokensOut, 0)

	rec := &models.AuditRecord{
		ID:        uuid.New(),
		TenantID:  e.TenantID,
		Endpoint:  e.Endpoint,
		TokensIn:  in,
		TokensOut: out,
		CostUSD:   cost.Round(cost.Compute(in, out)),
		Status:    e.Status,
		CreatedAt: l.now(),
	}
	if rec.Status != models.AuditStatusFailed {
		rec.Status = models.AuditStatusSuccess
	}
	if e.Detail != "" {
		detail := truncateString(e.Detail, maxDetailBytes)
		rec.Detail = &detail
	}

	if err := l.w.CreateAuditRecord(ctx, rec); err != nil {
		slog.Error("audit write failed",
			"tenant_id", e.TenantID, "endpoint", e.Endpoint, "status", rec.Status, "error", err)
		return nil, fmt.Errorf("recording audit: %w", err)
	}

	slog.Debug("audit recorded",
		"tenant_id", e.TenantID,
		"endpoint", e.Endpoint,
		"status", rec.Status,
		"tokens_in", in,
		"tokens_out", out,
		"cost_usd", cost.Format(rec.CostUSD),
	)
	return rec, nil
}

// truncateString truncates s to maxBytes without splitting UTF-8 runes.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
