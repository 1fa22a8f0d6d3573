// Package notify fans out best-effort change events to every open session.
// Events are wake-up signals only; receivers re-read state from the store.
package notify

import (
	"context"
	"sync"

	"vcf-drop/internal/domain"
)

// subscriberBuffer is how many undelivered events a slow subscriber may hold
// before further events to it are dropped
const subscriberBuffer = 16

// Notifier publishes change events and hands out subscriptions
type Notifier interface {
	Publish(ctx context.Context, event domain.Event) error
	// Subscribe returns a channel of events and a cancel func that closes it
	Subscribe(ctx context.Context) (<-chan domain.Event, func(), error)
}

// Broadcaster is the in-process Notifier
type Broadcaster struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan domain.Event
}

// NewBroadcaster creates an empty broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan domain.Event)}
}

// Publish delivers event to every subscriber without blocking
func (b *Broadcaster) Publish(_ context.Context, event domain.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe registers a new subscriber
func (b *Broadcaster) Subscribe(context.Context) (<-chan domain.Event, func(), error) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan domain.Event, subscriberBuffer)
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
	return ch, cancel, nil
}

// Subscribers returns the number of open subscriptions
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
