package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	AuditStatusSuccess = "SUCCESS"
	AuditStatusFailed  = "FAILED"
)

// Logical operations recorded in the audit ledger.
const (
	EndpointMonitoringAnalysis = "MONITORING_ANALYSIS"
	EndpointCrawlerError       = "CRAWLER_ERROR"
	EndpointAdminSearch        = "ADMIN_SEARCH"
)

// AuditRecord is an append-only ledger row. The sum of CostUSD over a period
// is the tenant's AI spend.
type AuditRecord struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	TenantID  uuid.UUID `db:"tenant_id"  json:"tenant_id"`
	Endpoint  string    `db:"endpoint"   json:"endpoint"`
	TokensIn  int       `db:"tokens_in"  json:"tokens_in"`
	TokensOut int       `db:"tokens_out" json:"tokens_out"`
	CostUSD   float64   `db:"cost_usd"   json:"cost_usd"`
	Status    string    `db:"status"     json:"status"`
	Detail    *string   `db:"detail"     json:"detail,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// UsageSummary aggregates a tenant's audit ledger since a point in time.
type UsageSummary struct {
	TenantID  uuid.UUID `json:"tenant_id"`
	Since     time.Time `json:"since"`
	Calls     int       `json:"calls"`
	Failed    int       `json:"failed"`
	TokensIn  int64     `json:"tokens_in"`
	TokensOut int64     `json:"tokens_out"`
	CostUSD   float64   `json:"cost_usd"`
}
