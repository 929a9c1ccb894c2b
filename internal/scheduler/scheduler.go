// Package scheduler drives monitoring cycles on a fixed tick and serves
// on-demand runs. Batch cycles are serialised in-process and, when a Locker
// is configured, across replicas.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/watchtower/internal/cache"
	"github.com/kiranshivaraju/watchtower/internal/monitor"
	"github.com/robfig/cron/v3"
)

var (
	ErrCycleInProgress     = errors.New("monitoring cycle already in progress")
	ErrTenantRunInProgress = errors.New("monitoring run already in progress for tenant")
)

// Runner executes monitoring cycles. *monitor.Orchestrator satisfies it.
type Runner interface {
	RunDue(ctx context.Context) (*monitor.Report, error)
	RunTenant(ctx context.Context, tenantID uuid.UUID) (*monitor.Report, error)
}

// Locker is the distributed lock subset of cache.Cache.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

type Options struct {
	Interval time.Duration
	LockTTL  time.Duration
}

type Scheduler struct {
	runner   Runner
	locker   Locker
	interval time.Duration
	lockTTL  time.Duration

	cron   *cron.Cron
	batch  sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Scheduler. locker may be nil, in which case only the
// in-process guard applies.
func New(runner Runner, locker Locker, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 60 * time.Second
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Minute
	}
	logger := cronLogger{l: slog.Default().With("component", "scheduler")}
	return &Scheduler{
		runner:   runner,
		locker:   locker,
		interval: opts.Interval,
		lockTTL:  opts.LockTTL,
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
	}
}

// Start registers the tick and starts the cron loop. Cycles run under a
// context derived from ctx that Stop cancels.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, s.Tick); err != nil {
		s.cancel()
		return fmt.Errorf("schedule monitoring tick: %w", err)
	}
	s.cron.Start()
	slog.Info("scheduler started", "interval", s.interval.String())
	return nil
}

// Stop cancels any running cycle and waits for it to return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		slog.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running cycle: %w", ctx.Err())
	}
}

// Tick runs one batch cycle and logs its outcome. It never panics.
func (s *Scheduler) Tick() {
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}

	report, err := s.RunNow(ctx)
	switch {
	case errors.Is(err, ErrCycleInProgress):
		slog.Debug("monitoring tick skipped, cycle already running")
	case errors.Is(err, context.Canceled):
		slog.Warn("monitoring tick cancelled")
	case err != nil:
		slog.Error("monitoring tick failed", "error", err)
	default:
		slog.Debug("monitoring tick completed", "items_created", report.ItemsCreated)
	}
}

// RunNow runs a batch cycle immediately. It returns ErrCycleInProgress when
// another batch holds the cycle lock, in this process or another replica.
func (s *Scheduler) RunNow(ctx context.Context) (*monitor.Report, error) {
	if !s.batch.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer s.batch.Unlock()

	release, err := s.lock(ctx, cache.CycleLockKey())
	if err != nil {
		return nil, err
	}
	if release == nil {
		return nil, ErrCycleInProgress
	}
	defer release()

	return safeRun(func() (*monitor.Report, error) {
		return s.runner.RunDue(ctx)
	})
}

// RunTenant runs the tenant's config immediately, bypassing the due predicate.
func (s *Scheduler) RunTenant(ctx context.Context, tenantID uuid.UUID) (*monitor.Report, error) {
	release, err := s.lock(ctx, cache.TenantLockKey(tenantID))
	if err != nil {
		return nil, err
	}
	if release == nil {
		return nil, ErrTenantRunInProgress
	}
	defer release()

	return safeRun(func() (*monitor.Report, error) {
		return s.runner.RunTenant(ctx, tenantID)
	})
}

// lock acquires key and returns its release func, or nil when the lock is held
// elsewhere. Without a locker, or when the locker fails, the run proceeds
// unlocked.
func (s *Scheduler) lock(ctx context.Context, key string) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}
	token, ok, err := s.locker.AcquireLock(ctx, key, s.lockTTL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("acquiring monitoring lock failed, running unlocked", "key", key, "error", err)
		return noop, nil
	}
	if !ok {
		return nil, nil
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.locker.ReleaseLock(releaseCtx, key, token); err != nil {
			slog.Warn("releasing monitoring lock failed", "key", key, "error", err)
		}
	}, nil
}

func safeRun(fn func() (*monitor.Report, error)) (report *monitor.Report, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("panic in monitoring cycle",
				"error", rec,
				"stack", string(debug.Stack()),
			)
			report, err = nil, fmt.Errorf("monitoring cycle panicked: %v", rec)
		}
	}()
	return fn()
}

// cronLogger routes cron's logging through slog.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}

var _ cron.Logger = cronLogger{}
