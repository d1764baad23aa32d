package fanout

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/deskhub/helpdesk/internal/domain"
)

const (
	dispatchWorkers = 4
	dispatchBuffer  = 1024
	publishTimeout  = 5 * time.Second
)

type job struct {
	group   string
	payload domain.Notification
}

// dispatcher decouples ticket mutations from delivery-channel publishes.
// Enqueue never blocks: a full buffer drops the dispatch, keeping the
// fire-and-forget contract even when the channel is slow.
type dispatcher struct {
	jobs    chan job
	deliver func(group string, payload domain.Notification)
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func newDispatcher(deliver func(string, domain.Notification), logger *zap.Logger) *dispatcher {
	d := &dispatcher{
		jobs:    make(chan job, dispatchBuffer),
		deliver: deliver,
		logger:  logger,
	}
	for i := 0; i < dispatchWorkers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for j := range d.jobs {
				d.deliver(j.group, j.payload)
			}
		}()
	}
	return d
}

func (d *dispatcher) enqueue(group string, payload domain.Notification, hooks Hooks) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	select {
	case d.jobs <- job{group: group, payload: payload}:
	default:
		d.logger.Warn("notification dropped: dispatch queue full",
			zap.String("group", group))
		hooks.OnDropped()
	}
}

func (d *dispatcher) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	close(d.jobs)
	d.wg.Wait()
}
