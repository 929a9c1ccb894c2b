package entitlement

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/watchtower/internal/cache"
	"github.com/kiranshivaraju/watchtower/internal/store"
)

// Reasons carried by NotEntitled.
const (
	ReasonDisabled     = "ai analysis disabled"
	ReasonNoPlan       = "no active plan"
	ReasonNotAllowed   = "plan does not include ai analysis"
	ReasonLookupFailed = "plan lookup failed"
)

// Decision is the outcome of an entitlement check: Entitled or NotEntitled.
type Decision interface {
	isDecision()
}

type Entitled struct {
	PlanID string
}

type NotEntitled struct {
	PlanID string
	Reason string
}

func (Entitled) isDecision()    {}
func (NotEntitled) isDecision() {}

// PlanLookup resolves a tenant's current plan. store.Store satisfies it.
type PlanLookup interface {
	GetActivePlan(ctx context.Context, tenantID uuid.UUID) (string, error)
}

// Gate decides whether a tenant may use provider-backed analysis.
type Gate struct {
	plans   PlanLookup
	cache   cache.Cache
	catalog *Catalog
	enabled bool
	ttl     time.Duration
}

// NewGate creates a Gate. c may be nil, in which case every check hits the store.
func NewGate(plans PlanLookup, c cache.Cache, catalog *Catalog, enabled bool, ttl time.Duration) *Gate {
	return &Gate{plans: plans, cache: c, catalog: catalog, enabled: enabled, ttl: ttl}
}

// IsEnabled reports whether planID is entitled to AI analysis.
func (g *Gate) IsEnabled(planID string) bool {
	return g.enabled && g.catalog.Grants(planID, FeatureAIAnalysis)
}

// Check resolves the tenant's plan and returns the entitlement decision.
// A lookup failure is treated as not entitled; the pipeline continues on the fallback path.
func (g *Gate) Check(ctx context.Context, tenantID uuid.UUID) Decision {
	if !g.enabled {
		return NotEntitled{Reason: ReasonDisabled}
	}

	planID, err := g.planFor(ctx, tenantID)
	if err != nil {
		slog.Warn("entitlement lookup failed", "tenant_id", tenantID, "error", err)
		return NotEntitled{Reason: ReasonLookupFailed}
	}
	if planID == "" {
		return NotEntitled{Reason: ReasonNoPlan}
	}
	if !g.IsEnabled(planID) {
		return NotEntitled{PlanID: planID, Reason: ReasonNotAllowed}
	}
	return Entitled{PlanID: planID}
}

// planFor returns "" when the tenant has no active plan.
func (g *Gate) planFor(ctx context.Context, tenantID uuid.UUID) (string, error) {
	key := cache.PlanKey(tenantID)
	if g.cache != nil && g.ttl > 0 {
		if val, found, err := g.cache.Get(ctx, key); err == nil && found {
			return string(val), nil
		}
	}

	planID, err := g.plans.GetActivePlan(ctx, tenantID)
	if errors.Is(err, store.ErrNotFound) {
		planID, err = "", nil
	}
	if err != nil {
		return "", err
	}

	if g.cache != nil && g.ttl > 0 {
		if err := g.cache.Set(ctx, key, []byte(planID), g.ttl); err != nil {
			slog.Debug("plan cache write failed", "tenant_id", tenantID, "error", err)
		}
	}
	return planID, nil
}
