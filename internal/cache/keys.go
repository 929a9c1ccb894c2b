package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}

// PlanKey caches a tenant's active plan id for the entitlement gate.
func PlanKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("plan:%s", tenantID)
}

// CycleLockKey guards a monitoring cycle across replicas.
func CycleLockKey() string {
	return "monitor:cycle:lock"
}

// TenantLockKey guards an on-demand run for a single tenant.
func TenantLockKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("monitor:tenant:lock:%s", tenantID)
}
