package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/watchtower/internal/store"
	"github.com/kiranshivaraju/watchtower/pkg/models"
)

// Interval returns the run interval for a frequency. Unknown values are treated as daily.
func Interval(frequency string) time.Duration {
	if frequency == models.FrequencyHourly {
		return time.Hour
	}
	return 24 * time.Hour
}

// IsDue reports whether cfg should run in batch mode at now.
func IsDue(cfg *models.MonitoringConfig, now time.Time) bool {
	if cfg.LastRunAt == nil {
		return true
	}
	return now.Sub(*cfg.LastRunAt) >= Interval(cfg.Frequency)
}

// ConfigSource lists active configs of subscribed tenants. store.Store satisfies it.
type ConfigSource interface {
	ListActiveConfigs(ctx context.Context, filter store.ConfigFilter) ([]*models.MonitoringConfig, error)
}

// Resolver selects the monitoring configs that should run now.
type Resolver struct {
	configs ConfigSource
}

func NewResolver(configs ConfigSource) *Resolver {
	return &Resolver{configs: configs}
}

// Due returns the configs to run. With a nil tenantID every eligible config
// whose interval elapsed is returned. With a tenantID the time predicate is
// skipped and only that tenant's config is considered.
func (r *Resolver) Due(ctx context.Context, now time.Time, tenantID *uuid.UUID) ([]*models.MonitoringConfig, error) {
	configs, err := r.configs.ListActiveConfigs(ctx, store.ConfigFilter{TenantID: tenantID, Now: now})
	if err != nil {
		return nil, fmt.Errorf("listing active configs: %w", err)
	}
	if tenantID != nil {
		return configs, nil
	}

	due := make([]*models.MonitoringConfig, 0, len(configs))
	for _, cfg := range configs {
		if IsDue(cfg, now) {
			due = append(due, cfg)
		}
	}
	return due, nil
}
