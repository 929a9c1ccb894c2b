// Package monitor selects due monitoring configs and runs the
// fetch, extract, gate, analyze, persist and audit pipeline over their URLs.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/watchtower/internal/ai"
	"github.com/kiranshivaraju/watchtower/internal/audit"
	"github.com/kiranshivaraju/watchtower/internal/entitlement"
	"github.com/kiranshivaraju/watchtower/internal/extract"
	"github.com/kiranshivaraju/watchtower/internal/fetch"
	"github.com/kiranshivaraju/watchtower/internal/snapshot"
	"github.com/kiranshivaraju/watchtower/internal/store"
	"github.com/kiranshivaraju/watchtower/pkg/models"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrStoreUnavailable aborts a cycle when the data store cannot be reached.
	ErrStoreUnavailable = errors.New("data store unavailable")
	// ErrNoActiveConfig is returned by RunTenant when the tenant has nothing to run.
	ErrNoActiveConfig = errors.New("no active monitoring config")
)

// Gate decides entitlement per tenant. *entitlement.Gate satisfies it.
type Gate interface {
	Check(ctx context.Context, tenantID uuid.UUID) entitlement.Decision
}

// Analyzer is the analysis adapter. *ai.Analyzer satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, req ai.AnalyzeRequest, decision entitlement.Decision) ai.Outcome
}

// Deps are the collaborators of an Orchestrator. Archiver may be nil.
type Deps struct {
	Store    store.Store
	Fetcher  fetch.Fetcher
	Gate     Gate
	Analyzer Analyzer
	Audit    *audit.Logger
	Archiver snapshot.Archiver
	Workers  int
}

// Orchestrator runs monitoring cycles. It holds no per-run state and is safe
// for concurrent use.
type Orchestrator struct {
	store    store.Store
	resolver *Resolver
	fetcher  fetch.Fetcher
	gate     Gate
	analyzer Analyzer
	audit    *audit.Logger
	archiver snapshot.Archiver
	workers  int
	now      func() time.Time
}

func NewOrchestrator(d Deps) *Orchestrator {
	archiver := d.Archiver
	if archiver == nil {
		archiver = snapshot.Noop{}
	}
	workers := d.Workers
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{
		store:    d.Store,
		resolver: NewResolver(d.Store),
		fetcher:  d.Fetcher,
		gate:     d.Gate,
		analyzer: d.Analyzer,
		audit:    d.Audit,
		archiver: archiver,
		workers:  workers,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RunDue processes every config that is due now.
func (o *Orchestrator) RunDue(ctx context.Context) (*Report, error) {
	return o.run(ctx, nil)
}

// RunTenant processes the tenant's config regardless of when it last ran.
func (o *Orchestrator) RunTenant(ctx context.Context, tenantID uuid.UUID) (*Report, error) {
	return o.run(ctx, &tenantID)
}

func (o *Orchestrator) run(ctx context.Context, tenantID *uuid.UUID) (*Report, error) {
	started := o.now()
	b := &reportBuilder{r: Report{StartedAt: started}}

	configs, err := o.resolver.Due(ctx, started, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if tenantID != nil && len(configs) == 0 {
		return nil, ErrNoActiveConfig
	}
	b.r.ConfigsDue = len(configs)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for _, cfg := range configs {
		if gctx.Err() != nil {
			b.merge(configTally{})
			continue
		}
		g.Go(func() (err error) {
			var tally configTally
			defer func() {
				if r := recover(); r != nil {
					slog.Error("monitoring config panicked",
						"tenant_id", cfg.TenantID,
						"panic", r,
						"stack", string(debug.Stack()),
					)
					tally.panics++
					tally.completed = false
					err = nil
				}
				b.merge(tally)
			}()
			tally, err = o.runConfig(gctx, cfg)
			return err
		})
	}
	err = g.Wait()

	report := b.report()
	report.FinishedAt = o.now()

	slog.Info("monitoring cycle finished",
		"configs_due", report.ConfigsDue,
		"configs_completed", report.ConfigsCompleted,
		"configs_interrupted", report.ConfigsInterrupted,
		"urls_attempted", report.URLsAttempted,
		"items_created", report.ItemsCreated,
		"duration_ms", report.FinishedAt.Sub(started).Milliseconds(),
	)

	if err != nil {
		return report, err
	}
	if ctx.Err() != nil {
		return report, ctx.Err()
	}
	return report, nil
}

// runConfig attempts every URL of cfg in order and marks the config run once
// all of them were attempted. Only a lost data store is returned as an error.
func (o *Orchestrator) runConfig(ctx context.Context, cfg *models.MonitoringConfig) (configTally, error) {
	var tally configTally
	start := time.Now()
	log := slog.With("tenant_id", cfg.TenantID)

	prompts, err := o.prompts(ctx, cfg.TenantID)
	if err != nil {
		return tally, err
	}

	for _, url := range cfg.URLs {
		if ctx.Err() != nil {
			log.Warn("monitoring config interrupted", "urls_attempted", tally.urlsAttempted, "urls_total", len(cfg.URLs))
			return tally, nil
		}
		if err := o.attemptURL(ctx, cfg, prompts, url, &tally); err != nil {
			return tally, err
		}
	}

	if err := o.store.MarkConfigRun(context.WithoutCancel(ctx), cfg.TenantID, o.now()); err != nil {
		log.Error("marking config run failed", "error", err)
		if fatal := o.checkStore(ctx); fatal != nil {
			return tally, fatal
		}
	}
	tally.completed = true

	log.Info("monitoring config processed",
		"urls", len(cfg.URLs),
		"items_created", tally.itemsCreated,
		"fetch_failures", tally.fetchFailures,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return tally, nil
}

func (o *Orchestrator) prompts(ctx context.Context, tenantID uuid.UUID) (models.PromptOverrides, error) {
	tenant, err := o.store.GetTenant(ctx, tenantID)
	if err == nil {
		return tenant.Prompts(), nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		slog.Warn("loading tenant prompts failed", "tenant_id", tenantID, "error", err)
		if fatal := o.checkStore(ctx); fatal != nil {
			return models.PromptOverrides{}, fatal
		}
	}
	return models.PromptOverrides{}, nil
}

// attemptURL runs processURL and turns a panic into a FAILED audit for url,
// so the remaining URLs of the config still run.
func (o *Orchestrator) attemptURL(ctx context.Context, cfg *models.MonitoringConfig, prompts models.PromptOverrides, url string, tally *configTally) (err error) {
	attempted := tally.urlsAttempted
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		slog.Error("monitoring pipeline panicked",
			"tenant_id", cfg.TenantID,
			"url", url,
			"panic", r,
			"stack", string(debug.Stack()),
		)
		tally.panics++
		if tally.urlsAttempted == attempted {
			tally.urlsAttempted++
		}
		err = o.recordPanic(ctx, cfg.TenantID, url, r)
	}()
	return o.processURL(ctx, cfg, prompts, url, tally)
}

func (o *Orchestrator) recordPanic(ctx context.Context, tenantID uuid.UUID, url string, cause any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("auditing pipeline panic failed", "tenant_id", tenantID, "url", url, "panic", r)
			err = nil
		}
	}()
	_, auditErr := o.audit.Record(context.WithoutCancel(ctx), audit.Entry{
		TenantID: tenantID,
		Endpoint: models.EndpointMonitoringAnalysis,
		Status:   models.AuditStatusFailed,
		Detail:   fmt.Sprintf("%s: internal error: %v", url, cause),
	})
	if auditErr != nil {
		return o.checkStore(ctx)
	}
	return nil
}

// processURL runs the per-URL pipeline. Every path that attempts the URL ends
// in exactly one audit record, except for too-short pages and cancellation.
func (o *Orchestrator) processURL(ctx context.Context, cfg *models.MonitoringConfig, prompts models.PromptOverrides, url string, tally *configTally) error {
	log := slog.With("tenant_id", cfg.TenantID, "url", url)
	// Writes use a detached context so an attempted URL is always recorded.
	writeCtx := context.WithoutCancel(ctx)

	body, err := o.fetcher.Fetch(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		tally.urlsAttempted++
		tally.fetchFailures++
		log.Warn("fetch failed", "stage", "fetching", "error", err)
		_, auditErr := o.audit.Record(writeCtx, audit.Entry{
			TenantID: cfg.TenantID,
			Endpoint: models.EndpointCrawlerError,
			Status:   models.AuditStatusFailed,
			Detail:   fmt.Sprintf("%s: %s", url, fetch.Describe(err)),
		})
		if auditErr != nil {
			return o.checkStore(ctx)
		}
		return nil
	}

	text, ok := extract.Extract(body)
	if !ok {
		tally.skippedTooShort++
		log.Debug("extracted text too short, skipping", "stage", "extracting")
		return nil
	}
	tally.urlsAttempted++
	tally.itemsProcessed++

	decision := o.gate.Check(ctx, cfg.TenantID)
	outcome := o.analyzer.Analyze(ctx, ai.AnalyzeRequest{
		TenantID: cfg.TenantID,
		Text:     text,
		Keywords: cfg.Keywords,
		Prompts:  prompts,
	}, decision)

	entry := audit.Entry{TenantID: cfg.TenantID, Endpoint: models.EndpointMonitoringAnalysis}
	switch out := outcome.(type) {
	case ai.Analyzed:
		entry.Status = models.AuditStatusSuccess
		entry.Usage = out.Usage
	case ai.NotEntitled:
		tally.notEntitled++
		entry.Status = models.AuditStatusSuccess
	case ai.Failed:
		tally.analysisFailures++
		entry.Status = models.AuditStatusFailed
		entry.Detail = out.Err.Error()
		if r := out.Reported; r.TokensIn > 0 || r.TokensOut > 0 {
			entry.Detail = fmt.Sprintf("%s (provider reported %d in / %d out tokens)", entry.Detail, r.TokensIn, r.TokensOut)
		}
	}

	storeFailed := false
	now := o.now()
	item := &models.AnalyzedItem{
		ID:        uuid.New(),
		TenantID:  cfg.TenantID,
		SourceURL: url,
		Content:   text,
		Summary:   outcome.Analysis().Summary,
		Keywords:  outcome.Analysis().Keywords,
		Sentiment: outcome.Analysis().Sentiment,
		Impact:    outcome.Analysis().Impact,
		CreatedAt: now,
	}
	if key, err := o.archiver.Archive(writeCtx, cfg.TenantID, url, body, now); err != nil {
		log.Warn("snapshot archive failed", "stage", "persisting", "error", err)
	} else if key != "" {
		item.SnapshotKey = &key
	}

	if err := o.store.CreateAnalyzedItem(writeCtx, item); err != nil {
		tally.persistFailures++
		storeFailed = true
		log.Error("saving analyzed item failed", "stage", "persisting", "error", err)
	} else {
		tally.itemsCreated++
	}

	if _, err := o.audit.Record(writeCtx, entry); err != nil {
		storeFailed = true
	}

	if storeFailed {
		return o.checkStore(ctx)
	}
	return nil
}

// checkStore converts a failed write into a fatal error when the store is unreachable.
func (o *Orchestrator) checkStore(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := o.store.Ping(pingCtx); err != nil {
		slog.Error("data store unreachable, aborting cycle", "error", err)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
