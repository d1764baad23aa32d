package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/deskhub/helpdesk/internal/domain"
)

// RedisChannel implements Channel on redis pub/sub, giving group-addressed
// delivery across multiple server processes. Group names map directly to
// redis channels; payloads travel as JSON.
type RedisChannel struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisChannel(client *redis.Client, logger *zap.Logger) *RedisChannel {
	return &RedisChannel{client: client, logger: logger}
}

func (c *RedisChannel) Publish(ctx context.Context, group string, n domain.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := c.client.Publish(ctx, group, data).Err(); err != nil {
		return fmt.Errorf("publish to %q: %w", group, err)
	}
	return nil
}

func (c *RedisChannel) Subscribe(ctx context.Context, group string) (Subscription, error) {
	ps := c.client.Subscribe(ctx, group)

	// Force the SUBSCRIBE round-trip so the caller is registered before
	// Subscribe returns; contemporaneous publishes must reach it.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe to %q: %w", group, err)
	}

	sub := &redisSubscription{
		ps:  ps,
		ch:  make(chan domain.Notification, subBuffer),
		log: c.logger.With(zap.String("group", group)),
	}
	go sub.pump()
	return sub, nil
}

type redisSubscription struct {
	ps   *redis.PubSub
	ch   chan domain.Notification
	log  *zap.Logger
	once sync.Once
}

func (s *redisSubscription) pump() {
	defer close(s.ch)
	for msg := range s.ps.Channel() {
		var n domain.Notification
		if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
			s.log.Warn("dropping undecodable notification payload", zap.Error(err))
			continue
		}
		select {
		case s.ch <- n:
		default:
			s.log.Warn("dropping notification: subscriber not draining")
		}
	}
}

func (s *redisSubscription) C() <-chan domain.Notification { return s.ch }

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		err = s.ps.Close()
	})
	return err
}

var _ Channel = (*RedisChannel)(nil)
