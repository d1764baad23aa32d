package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/deskhub/helpdesk/internal/domain"
	"github.com/deskhub/helpdesk/internal/ingest"
	"github.com/deskhub/helpdesk/internal/lock"
	"github.com/deskhub/helpdesk/internal/scheduler"
)

// scriptedRunner returns one scripted outcome per call.
type scriptedRunner struct {
	outcomes []outcome
	calls    int
}

type outcome struct {
	count int
	err   error
}

func (r *scriptedRunner) Run(context.Context, ingest.Options) (int, error) {
	if r.calls >= len(r.outcomes) {
		r.calls++
		return 0, nil
	}
	o := r.outcomes[r.calls]
	r.calls++
	return o.count, o.err
}

func newPoller(runner scheduler.Runner, locker lock.Locker, cfg scheduler.Config) *scheduler.Poller {
	if cfg.LockName == "" {
		cfg.LockName = "mail-poll"
	}
	if cfg.Retries == 0 {
		cfg.Retries = 3
	}
	cfg.RetryDelay = time.Millisecond
	return scheduler.NewPoller(runner, locker, cfg, zap.NewNop())
}

func TestPoller_RunOnceImports(t *testing.T) {
	runner := &scriptedRunner{outcomes: []outcome{{count: 4}}}
	p := newPoller(runner, lock.NewMemoryLocker(), scheduler.Config{})

	count, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 4 {
		t.Fatalf("expected 4, got %d", count)
	}
	if runner.calls != 1 {
		t.Fatalf("expected a single run, got %d", runner.calls)
	}
}

func TestPoller_ContendedLockSkipsWithoutRunning(t *testing.T) {
	locker := lock.NewMemoryLocker()
	release, ok, err := locker.Acquire(context.Background(), "mail-poll")
	if err != nil || !ok {
		t.Fatalf("setup acquire failed: ok=%v err=%v", ok, err)
	}
	defer release()

	runner := &scriptedRunner{}
	p := newPoller(runner, locker, scheduler.Config{})

	_, err = p.RunOnce(context.Background())
	if !errors.Is(err, domain.ErrLockHeld) {
		t.Fatalf("expected domain.ErrLockHeld, got %v", err)
	}
	if runner.calls != 0 {
		t.Fatal("a contended cycle must not touch the mailbox")
	}
}

func TestPoller_LockReleasedAfterFailure(t *testing.T) {
	locker := lock.NewMemoryLocker()
	runner := &scriptedRunner{outcomes: []outcome{
		{err: fmt.Errorf("%w: connection reset", domain.ErrProtocol)},
		{err: fmt.Errorf("%w: connection reset", domain.ErrProtocol)},
		{err: fmt.Errorf("%w: connection reset", domain.ErrProtocol)},
		{count: 1},
	}}
	p := newPoller(runner, locker, scheduler.Config{})

	if _, err := p.RunOnce(context.Background()); !errors.Is(err, domain.ErrProtocol) {
		t.Fatalf("expected protocol error after exhausted retries, got %v", err)
	}

	// The failed cycle must not wedge the lock for the next one.
	count, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("follow-up cycle failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1, got %d", count)
	}
}

func TestPoller_RetriesTransientProtocolFailures(t *testing.T) {
	runner := &scriptedRunner{outcomes: []outcome{
		{err: fmt.Errorf("%w: server hiccup", domain.ErrProtocol)},
		{count: 2},
	}}
	p := newPoller(runner, lock.NewMemoryLocker(), scheduler.Config{})

	count, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}
	if runner.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", runner.calls)
	}
}

func TestPoller_RetriesAreBounded(t *testing.T) {
	transient := fmt.Errorf("%w: server hiccup", domain.ErrProtocol)
	runner := &scriptedRunner{outcomes: []outcome{
		{err: transient}, {err: transient}, {err: transient}, {err: transient},
	}}
	p := newPoller(runner, lock.NewMemoryLocker(), scheduler.Config{Retries: 3})

	if _, err := p.RunOnce(context.Background()); !errors.Is(err, domain.ErrProtocol) {
		t.Fatalf("expected protocol error, got %v", err)
	}
	if runner.calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", runner.calls)
	}
}

func TestPoller_AuthFailureIsNotRetried(t *testing.T) {
	runner := &scriptedRunner{outcomes: []outcome{
		{err: fmt.Errorf("%w: refresh token revoked", domain.ErrAuth)},
		{count: 9},
	}}
	p := newPoller(runner, lock.NewMemoryLocker(), scheduler.Config{})

	if _, err := p.RunOnce(context.Background()); !errors.Is(err, domain.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if runner.calls != 1 {
		t.Fatalf("auth failures must surface immediately, got %d attempts", runner.calls)
	}
}

func TestPoller_FailedRunKeepsPartialCount(t *testing.T) {
	// A run can persist part of the batch and then fail. The cycle still
	// surfaces the error, but the persisted count must not be discarded.
	var imported int
	hooks := scheduler.Hooks{OnRun: func(_ string, n int, _ time.Duration) {
		imported += n
	}}
	runner := &scriptedRunner{outcomes: []outcome{
		{count: 2, err: fmt.Errorf("%w: refresh token revoked", domain.ErrAuth)},
	}}
	p := newPoller(runner, lock.NewMemoryLocker(), scheduler.Config{Hooks: hooks})

	count, err := p.RunOnce(context.Background())
	if !errors.Is(err, domain.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if count != 2 {
		t.Fatalf("expected the partial count 2, got %d", count)
	}
	if imported != 2 {
		t.Fatalf("expected 2 imported reported to the hook, got %d", imported)
	}
}

func TestPoller_MetricHookSeesEveryOutcome(t *testing.T) {
	var results []string
	var imported int
	hooks := scheduler.Hooks{OnRun: func(result string, n int, _ time.Duration) {
		results = append(results, result)
		imported += n
	}}

	locker := lock.NewMemoryLocker()
	runner := &scriptedRunner{outcomes: []outcome{
		{count: 1},
		{err: fmt.Errorf("%w: bad mailbox", domain.ErrConfig)},
	}}
	p := newPoller(runner, locker, scheduler.Config{Hooks: hooks})

	if _, err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	if _, err := p.RunOnce(context.Background()); err == nil {
		t.Fatal("second cycle should fail")
	}

	release, _, _ := locker.Acquire(context.Background(), "mail-poll")
	if _, err := p.RunOnce(context.Background()); !errors.Is(err, domain.ErrLockHeld) {
		t.Fatalf("expected lock contention, got %v", err)
	}
	release()

	if imported != 1 {
		t.Fatalf("expected 1 imported reported to the hook, got %d", imported)
	}

	want := []string{"ok", "error", "skipped"}
	if len(results) != len(want) {
		t.Fatalf("expected %v, got %v", want, results)
	}
	for i := range want {
		if results[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, results)
		}
	}
}

func TestPoller_CancelledContextStopsRetryLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := &scriptedRunner{outcomes: []outcome{
		{err: fmt.Errorf("%w: server hiccup", domain.ErrProtocol)},
	}}
	p := scheduler.NewPoller(runner, lock.NewMemoryLocker(), scheduler.Config{
		LockName:   "mail-poll",
		Retries:    3,
		RetryDelay: time.Hour,
	}, zap.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := p.RunOnce(ctx)
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunOnce did not stop on cancellation")
	}
}
