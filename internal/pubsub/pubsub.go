// Package pubsub provides the group-addressable delivery primitive the
// notification fanout publishes into and the connection gateway reads
// from. Publishers address a group name; every current subscriber of that
// group receives the payload.
package pubsub

import (
	"context"

	"github.com/deskhub/helpdesk/internal/domain"
)

// Publisher is the write side of the delivery channel.
type Publisher interface {
	// Publish delivers the payload to every subscriber of group that was
	// fully registered before the call began. Delivery is best-effort:
	// callers log and drop on error, they never retry.
	Publish(ctx context.Context, group string, n domain.Notification) error
}

// Subscriber is the read side of the delivery channel.
type Subscriber interface {
	Subscribe(ctx context.Context, group string) (Subscription, error)
}

// Channel combines both sides; the in-memory hub and the redis channel
// implement it.
type Channel interface {
	Publisher
	Subscriber
}

// Subscription is one live membership in one group.
type Subscription interface {
	// C yields payloads published to the group, in publish order within
	// that group. The channel is closed by Close.
	C() <-chan domain.Notification
	// Close unsubscribes. Safe to call more than once.
	Close() error
}
