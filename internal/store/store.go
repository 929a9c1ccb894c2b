package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/watchtower/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error

	GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetActivePlan(ctx context.Context, tenantID uuid.UUID) (string, error)

	ListActiveConfigs(ctx context.Context, filter ConfigFilter) ([]*models.MonitoringConfig, error)
	MarkConfigRun(ctx context.Context, tenantID uuid.UUID, at time.Time) error

	CreateAnalyzedItem(ctx context.Context, item *models.AnalyzedItem) error
	ListAnalyzedItems(ctx context.Context, filter ItemFilter) ([]*models.AnalyzedItem, int, error)

	CreateAuditRecord(ctx context.Context, rec *models.AuditRecord) error
	SumAuditUsage(ctx context.Context, tenantID uuid.UUID, since time.Time) (*models.UsageSummary, error)
}

// ConfigFilter selects active monitoring configs whose tenant holds an
// active subscription at Now. TenantID narrows the result to one tenant.
type ConfigFilter struct {
	TenantID *uuid.UUID
	Now      time.Time
}

type ItemFilter struct {
	TenantID uuid.UUID
	Since    time.Time
	Page     int
	Limit    int
}

// Normalize clamps pagination to the supported range.
func (f *ItemFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Page <= 0 {
		f.Page = 1
	}
}
