package pubsub_test

import (
	"context"
	"testing"
	"time"

	"github.com/deskhub/helpdesk/internal/domain"
	"github.com/deskhub/helpdesk/internal/pubsub"
)

func recv(t *testing.T, sub pubsub.Subscription) domain.Notification {
	t.Helper()
	select {
	case n := <-sub.C():
		return n
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
		return domain.Notification{}
	}
}

func TestHub_PublishReachesAllGroupSubscribers(t *testing.T) {
	hub := pubsub.NewHub()
	ctx := context.Background()

	a, _ := hub.Subscribe(ctx, "user:1")
	b, _ := hub.Subscribe(ctx, "user:1")
	other, _ := hub.Subscribe(ctx, "user:2")

	payload := domain.Notification{Title: "New ticket", URL: "/tickets/42", Level: domain.LevelInfo}
	if err := hub.Publish(ctx, "user:1", payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := recv(t, a); got != payload {
		t.Fatalf("subscriber a: got %+v", got)
	}
	if got := recv(t, b); got != payload {
		t.Fatalf("subscriber b: got %+v", got)
	}
	select {
	case n := <-other.C():
		t.Fatalf("subscriber of another group received %+v", n)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_CloseUnsubscribes(t *testing.T) {
	hub := pubsub.NewHub()
	ctx := context.Background()

	sub, _ := hub.Subscribe(ctx, domain.BroadcastGroup)
	if got := hub.SubscriberCount(domain.BroadcastGroup); got != 1 {
		t.Fatalf("expected 1 subscriber, got %d", got)
	}

	if err := sub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("second close must be a no-op, got %v", err)
	}

	if got := hub.SubscriberCount(domain.BroadcastGroup); got != 0 {
		t.Fatalf("expected 0 subscribers after close, got %d", got)
	}

	// A publish after close must not panic and must reach nobody.
	if err := hub.Publish(ctx, domain.BroadcastGroup, domain.Notification{Title: "x"}); err != nil {
		t.Fatalf("publish after close: %v", err)
	}
}

func TestHub_PublishOrderWithinGroup(t *testing.T) {
	hub := pubsub.NewHub()
	ctx := context.Background()

	sub, _ := hub.Subscribe(ctx, "user:7")
	for i, title := range []string{"first", "second", "third"} {
		if err := hub.Publish(ctx, "user:7", domain.Notification{Title: title}); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}

	for _, want := range []string{"first", "second", "third"} {
		if got := recv(t, sub).Title; got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
}
