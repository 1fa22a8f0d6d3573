package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"vcf-drop/internal/domain"
	"vcf-drop/pkg/logger"
	"vcf-drop/pkg/redis"
)

// RedisNotifier carries events between replicas over Redis pub/sub
type RedisNotifier struct {
	client  *redis.Client
	channel string
	logger  *logger.Logger
}

// NewRedisNotifier creates a notifier on the environment's events channel
func NewRedisNotifier(client *redis.Client, log *logger.Logger) *RedisNotifier {
	return &RedisNotifier{
		client:  client,
		channel: client.KeyBuilder.ChannelEvents(),
		logger:  log,
	}
}

// Publish sends event to every subscribed replica
func (n *RedisNotifier) Publish(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscribe opens a pub/sub subscription. Undecodable messages are skipped.
func (n *RedisNotifier) Subscribe(ctx context.Context) (<-chan domain.Event, func(), error) {
	sub := n.client.Subscribe(ctx, n.channel)
	// Wait for the confirmation so no event published after return is missed
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to events: %w", err)
	}

	out := make(chan domain.Event, subscriberBuffer)
	done := make(chan struct{})
	msgs := sub.Channel()

	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event domain.Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					n.logger.WithError(err).Warn("Dropping malformed event")
					continue
				}
				select {
				case out <- event:
				default:
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = sub.Close()
		})
	}
	return out, cancel, nil
}
