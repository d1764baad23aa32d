package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/deskhub/helpdesk/internal/domain"
	"github.com/deskhub/helpdesk/internal/ingest"
	"github.com/deskhub/helpdesk/internal/lock"
)

// Runner executes one import and reports how many messages it persisted.
// Implemented by ingest.Importer.
type Runner interface {
	Run(ctx context.Context, opts ingest.Options) (int, error)
}

// ConnResetter drops idle pooled connections. The mail run can sit on the
// wire for minutes; stale database connections are cheaper to re-open than
// to time out mid-transaction.
type ConnResetter interface {
	Reset()
}

// Hooks are metric callbacks invoked after every RunOnce.
// result is one of "ok", "error", "skipped".
type Hooks struct {
	OnRun func(result string, imported int, elapsed time.Duration)
}

// Config carries the polling knobs, all sourced from the environment.
type Config struct {
	LockName   string
	Interval   time.Duration
	Retries    int
	RetryDelay time.Duration
	Options    ingest.Options
	Resetter   ConnResetter
	Hooks      Hooks
}

// Poller drives periodic mail imports. Every cycle first claims a named
// time-bounded lock so that only one process polls the shared mailbox, no
// matter how many replicas run the same configuration.
type Poller struct {
	runner Runner
	locker lock.Locker
	cfg    Config
	logger *zap.Logger
}

func NewPoller(runner Runner, locker lock.Locker, cfg Config, logger *zap.Logger) *Poller {
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	return &Poller{runner: runner, locker: locker, cfg: cfg, logger: logger}
}

// Run ticks every interval and imports any unread mail.
// Stops cleanly when ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.logger.Info("mail poller started",
		zap.Duration("interval", p.cfg.Interval),
		zap.String("lock", p.cfg.LockName))

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("mail poller stopping")
			return
		case <-ticker.C:
			if _, err := p.RunOnce(ctx); err != nil && !errors.Is(err, domain.ErrLockHeld) {
				p.logger.Error("mail poll failed", zap.Error(err))
			}
		}
	}
}

// RunOnce performs a single locked import cycle. When another process
// holds the lock it returns domain.ErrLockHeld without touching the
// mailbox; callers decide whether that is worth reporting.
func (p *Poller) RunOnce(ctx context.Context) (int, error) {
	release, ok, err := p.locker.Acquire(ctx, p.cfg.LockName)
	if err != nil {
		p.observe("error", 0, 0)
		return 0, err
	}
	if !ok {
		p.logger.Debug("mail poll skipped, lock held elsewhere",
			zap.String("lock", p.cfg.LockName))
		p.observe("skipped", 0, 0)
		return 0, domain.ErrLockHeld
	}
	defer release()

	if p.cfg.Resetter != nil {
		p.cfg.Resetter.Reset()
		defer p.cfg.Resetter.Reset()
	}

	start := time.Now()
	count, err := p.runWithRetries(ctx)
	elapsed := time.Since(start)
	if err != nil {
		p.observe("error", count, elapsed)
		return count, err
	}

	p.observe("ok", count, elapsed)
	if count > 0 {
		p.logger.Info("mail imported",
			zap.Int("count", count),
			zap.Duration("elapsed", elapsed))
	}
	return count, nil
}

// runWithRetries re-runs the import on transient protocol failures only.
// Auth and configuration errors surface immediately: retrying an expired
// refresh token or a missing mailbox record cannot succeed.
func (p *Poller) runWithRetries(ctx context.Context) (int, error) {
	var lastCount int
	var lastErr error
	for attempt := 1; attempt <= p.cfg.Retries; attempt++ {
		count, err := p.runner.Run(ctx, p.cfg.Options)
		if err == nil {
			return count, nil
		}
		// A failed attempt may still have persisted part of the batch;
		// keep its count so the caller does not under-report.
		lastCount, lastErr = count, err
		if !domain.Retryable(err) || attempt == p.cfg.Retries {
			break
		}

		p.logger.Warn("mail import failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", p.cfg.RetryDelay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return lastCount, ctx.Err()
		case <-time.After(p.cfg.RetryDelay):
		}
	}
	return lastCount, lastErr
}

func (p *Poller) observe(result string, imported int, elapsed time.Duration) {
	if p.cfg.Hooks.OnRun != nil {
		p.cfg.Hooks.OnRun(result, imported, elapsed)
	}
}
