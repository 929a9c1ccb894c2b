package audit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/watchtower/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockWriter struct {
	mu      sync.Mutex
	records []*models.AuditRecord
	err     error
}

func (m *mockWriter) CreateAuditRecord(_ context.Context, rec *models.AuditRecord) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func TestRecord_PricesUsage(t *testing.T) {
	w := &mockWriter{}
	l := NewLogger(w)
	tenantID := uuid.New()

	rec, err := l.Record(context.Background(), Entry{
		TenantID: tenantID,
		Endpoint: models.EndpointMonitoringAnalysis,
		Usage:    models.Usage{TokensIn: 1000, TokensOut: 1000},
		Status:   models.AuditStatusSuccess,
	})
	require.NoError(t, err)

	require.Len(t, w.records, 1)
	assert.Same(t, rec, w.records[0])
	assert.Equal(t, tenantID, rec.TenantID)
	assert.Equal(t, 0.0005, rec.CostUSD)
	assert.Equal(t, models.AuditStatusSuccess, rec.Status)
	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.Nil(t, rec.Detail)
	assert.WithinDuration(t, time.Now(), rec.CreatedAt, 5*time.Second)
}

func TestRecord_ZeroUsageIsFree(t *testing.T) {
	w := &mockWriter{}
	rec, err := NewLogger(w).Record(context.Background(), Entry{
		TenantID: uuid.New(),
		Endpoint: models.EndpointMonitoringAnalysis,
		Status:   models.AuditStatusSuccess,
	})
	require.NoError(t, err)
	assert.Zero(t, rec.TokensIn)
	assert.Zero(t, rec.TokensOut)
	assert.Zero(t, rec.CostUSD)
}

func TestRecord_ClampsNegativeUsage(t *testing.T) {
	rec, err := NewLogger(&mockWriter{}).Record(context.Background(), Entry{
		Endpoint: models.EndpointMonitoringAnalysis,
		Usage:    models.Usage{TokensIn: -5, TokensOut: 10},
		Status:   models.AuditStatusSuccess,
	})
	require.NoError(t, err)
	assert.Zero(t, rec.TokensIn)
	assert.Equal(t, 10, rec.TokensOut)
}

func TestRecord_FailedWithDetail(t *testing.T) {
	rec, err := NewLogger(&mockWriter{}).Record(context.Background(), Entry{
		Endpoint: models.EndpointCrawlerError,
		Status:   models.AuditStatusFailed,
		Detail:   "HTTP 404",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AuditStatusFailed, rec.Status)
	require.NotNil(t, rec.Detail)
	assert.Equal(t, "HTTP 404", *rec.Detail)
}

func TestRecord_UnknownStatusBecomesSuccess(t *testing.T) {
	rec, err := NewLogger(&mockWriter{}).Record(context.Background(), Entry{Status: "whatever"})
	require.NoError(t, err)
	assert.Equal(t, models.AuditStatusSuccess, rec.Status)
}

func TestRecord_TruncatesDetail(t *testing.T) {
	rec, err := NewLogger(&mockWriter{}).Record(context.Background(), Entry{
		Status: models.AuditStatusFailed,
		Detail: strings.Repeat("é", 400),
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(*rec.Detail), maxDetailBytes)
}

func TestRecord_WriteError(t *testing.T) {
	_, err := NewLogger(&mockWriter{err: errors.New("db down")}).Record(context.Background(), Entry{
		Status: models.AuditStatusSuccess,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "hello", truncateString("hello", 10))
	assert.Equal(t, "hel", truncateString("hello", 3))
	assert.Equal(t, "", truncateString("日本", 2))
	assert.Equal(t, "日", truncateString("日本", 4))
}
