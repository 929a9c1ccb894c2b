package models

import (
	"time"

	"github.com/google/uuid"
)

// AnalyzedItem is one analyzed page from one monitoring pass. Rows are never updated.
type AnalyzedItem struct {
	ID          uuid.UUID `db:"id"           json:"id"`
	TenantID    uuid.UUID `db:"tenant_id"    json:"tenant_id"`
	SourceURL   string    `db:"source_url"   json:"source_url"`
	Content     string    `db:"content"      json:"content"`
	Summary     string    `db:"summary"      json:"summary"`
	Keywords    []string  `db:"keywords"     json:"keywords"`
	Sentiment   string    `db:"sentiment"    json:"sentiment"`
	Impact      string    `db:"impact"       json:"impact"`
	SnapshotKey *string   `db:"snapshot_key" json:"snapshot_key,omitempty"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
}
