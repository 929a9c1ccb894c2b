package scheduler_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/watchtower/internal/ai"
	"github.com/kiranshivaraju/watchtower/internal/ai/mock"
	"github.com/kiranshivaraju/watchtower/internal/audit"
	"github.com/kiranshivaraju/watchtower/internal/entitlement"
	"github.com/kiranshivaraju/watchtower/internal/monitor"
	"github.com/kiranshivaraju/watchtower/internal/scheduler"
	"github.com/kiranshivaraju/watchtower/internal/store"
	"github.com/kiranshivaraju/watchtower/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipelineStore backs a real orchestrator with in-memory state. Methods the
// pipeline never calls fall through to the nil embedded Store.
type pipelineStore struct {
	store.Store
	mu      sync.Mutex
	configs []*models.MonitoringConfig
	audits  []*models.AuditRecord
	marks   int
}

func (s *pipelineStore) Ping(context.Context) error { return nil }

func (s *pipelineStore) ListActiveConfigs(context.Context, store.ConfigFilter) ([]*models.MonitoringConfig, error) {
	return s.configs, nil
}

func (s *pipelineStore) GetTenant(context.Context, uuid.UUID) (*models.Tenant, error) {
	return nil, store.ErrNotFound
}

func (s *pipelineStore) MarkConfigRun(context.Context, uuid.UUID, time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks++
	return nil
}

func (s *pipelineStore) CreateAnalyzedItem(context.Context, *models.AnalyzedItem) error { return nil }

func (s *pipelineStore) CreateAuditRecord(_ context.Context, rec *models.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, rec)
	return nil
}

type panickingFetcher struct{ calls atomic.Int32 }

func (f *panickingFetcher) Fetch(context.Context, string) ([]byte, error) {
	f.calls.Add(1)
	panic("fetcher blew up")
}

type allowAll struct{}

func (allowAll) Check(context.Context, uuid.UUID) entitlement.Decision {
	return entitlement.Entitled{PlanID: "pro"}
}

func TestTick_PipelinePanicDoesNotStopLaterTicks(t *testing.T) {
	st := &pipelineStore{configs: []*models.MonitoringConfig{{
		ID:        uuid.New(),
		TenantID:  uuid.New(),
		URLs:      []string{"https://example.com/a"},
		Frequency: models.FrequencyHourly,
		IsActive:  true,
	}}}
	fetcher := &panickingFetcher{}
	orch := monitor.NewOrchestrator(monitor.Deps{
		Store:    st,
		Fetcher:  fetcher,
		Gate:     allowAll{},
		Analyzer: ai.NewAnalyzer(mock.NewMockProvider(), time.Second, 0.2),
		Audit:    audit.NewLogger(st),
		Workers:  2,
	})
	s := scheduler.New(orch, nil, scheduler.Options{})

	s.Tick()
	s.Tick()

	assert.Equal(t, int32(2), fetcher.calls.Load())
	st.mu.Lock()
	defer st.mu.Unlock()
	require.Len(t, st.audits, 2)
	assert.Equal(t, models.AuditStatusFailed, st.audits[0].Status)
	assert.Equal(t, 2, st.marks)
}
