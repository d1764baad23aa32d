package pubsub

import (
	"context"
	"sync"

	"github.com/deskhub/helpdesk/internal/domain"
)

// subBuffer bounds how far a slow subscriber may lag before publishes to
// it are dropped.
const subBuffer = 64

// Hub is the in-process implementation of Channel. It backs single-node
// deployments and every unit test; multi-node deployments use the redis
// channel instead.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[*hubSubscription]struct{}
}

func NewHub() *Hub {
	return &Hub{groups: make(map[string]map[*hubSubscription]struct{})}
}

func (h *Hub) Publish(_ context.Context, group string, n domain.Notification) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.groups[group] {
		select {
		case sub.ch <- n:
		default:
			// Subscriber is not draining; drop rather than block the
			// publisher. Delivery is best-effort.
		}
	}
	return nil
}

func (h *Hub) Subscribe(_ context.Context, group string) (Subscription, error) {
	sub := &hubSubscription{
		hub:   h,
		group: group,
		ch:    make(chan domain.Notification, subBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.groups[group] == nil {
		h.groups[group] = make(map[*hubSubscription]struct{})
	}
	h.groups[group][sub] = struct{}{}
	return sub, nil
}

// SubscriberCount reports the current number of subscriptions in a group.
// Used by tests asserting connection-lifecycle invariants.
func (h *Hub) SubscriberCount(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

type hubSubscription struct {
	hub   *Hub
	group string
	ch    chan domain.Notification
	once  sync.Once
}

func (s *hubSubscription) C() <-chan domain.Notification { return s.ch }

func (s *hubSubscription) Close() error {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.groups[s.group], s)
		if len(s.hub.groups[s.group]) == 0 {
			delete(s.hub.groups, s.group)
		}
		s.hub.mu.Unlock()
		close(s.ch)
	})
	return nil
}

var _ Channel = (*Hub)(nil)
