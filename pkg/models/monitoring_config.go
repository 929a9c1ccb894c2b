package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	FrequencyHourly = "hourly"
	FrequencyDaily  = "daily"
)

// MonitoringConfig is a tenant's watch list. A tenant has at most one.
// The pipeline only ever writes LastRunAt.
type MonitoringConfig struct {
	ID        uuid.UUID  `db:"id"            json:"id"`
	TenantID  uuid.UUID  `db:"tenant_id"     json:"tenant_id"`
	Keywords  []string   `db:"keywords"      json:"keywords"`
	URLs      []string   `db:"urls_to_track" json:"urls_to_track"`
	Frequency string     `db:"frequency"     json:"frequency"`
	IsActive  bool       `db:"is_active"     json:"is_active"`
	LastRunAt *time.Time `db:"last_run_at"   json:"last_run_at,omitempty"`
	CreatedAt time.Time  `db:"created_at"    json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"    json:"updated_at"`
}
