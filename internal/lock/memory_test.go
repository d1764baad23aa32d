package lock_test

import (
	"context"
	"testing"

	"github.com/deskhub/helpdesk/internal/lock"
)

func TestMemoryLocker_MutualExclusion(t *testing.T) {
	l := lock.NewMemoryLocker()
	ctx := context.Background()

	release, ok, err := l.Acquire(ctx, "mail-poll")
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}

	_, ok, err = l.Acquire(ctx, "mail-poll")
	if err != nil {
		t.Fatalf("contended acquire returned error: %v", err)
	}
	if ok {
		t.Fatal("expected contended acquire to fail")
	}

	// A different name is an independent lock.
	release2, ok, _ := l.Acquire(ctx, "other")
	if !ok {
		t.Fatal("expected acquire of a different lock name to succeed")
	}
	release2()

	release()
	release() // idempotent

	_, ok, _ = l.Acquire(ctx, "mail-poll")
	if !ok {
		t.Fatal("expected acquire after release to succeed")
	}
}
