package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Scopes granted to tenant API keys. Every key carries ScopeMonitoring;
// ScopeAdmin additionally unlocks cross-tenant runs and grounded search.
const (
	ScopeMonitoring = "monitoring"
	ScopeAdmin      = "admin"
)

// APIKey authenticates a tenant against the client and admin APIs.
// The raw key is handed out once; only its bcrypt hash and 8-char prefix are stored.
type APIKey struct {
	ID         uuid.UUID  `db:"id"           json:"id"`
	TenantID   uuid.UUID  `db:"tenant_id"    json:"tenant_id"`
	Name       string     `db:"name"         json:"name"`
	KeyHash    string     `db:"key_hash"     json:"-"`
	KeyPrefix  string     `db:"key_prefix"   json:"key_prefix"`
	Scopes     []string   `db:"scopes"       json:"scopes"`
	LastUsedAt *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	DeletedAt  *time.Time `db:"deleted_at"   json:"-"`
	CreatedAt  time.Time  `db:"created_at"   json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"   json:"updated_at"`
}

// Revoked reports whether the key was soft-deleted.
func (k *APIKey) Revoked() bool { return k.DeletedAt != nil }

// HasScope reports whether scopes grants scope. Admin implies every scope.
func HasScope(scopes []string, scope string) bool {
	return slices.Contains(scopes, scope) || slices.Contains(scopes, ScopeAdmin)
}
