package app

import (
	"context"
	"sync"
	"time"

	"github.com/yourusername/clipq-go/internal/domain"
)

// EventPublisher delivers worker events to the queue coordinator
type EventPublisher interface {
	// Publish reports whether the event was accepted
	Publish(ctx context.Context, ev domain.Event) bool
}

// eventChannel is the bounded channel between workers and the coordinator.
// Lossy kinds are dropped when it is full; the rest wait for room.
type eventChannel struct {
	ch chan domain.Event
}

func newEventChannel(size int) *eventChannel {
	if size < 1 {
		size = 1
	}
	return &eventChannel{ch: make(chan domain.Event, size)}
}

func (c *eventChannel) Publish(ctx context.Context, ev domain.Event) bool {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	if !ev.Blocking() {
		select {
		case c.ch <- ev:
			return true
		default:
			return false
		}
	}

	select {
	case c.ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// subscriberBuffer is how many events a slow subscriber may lag behind
const subscriberBuffer = 64

// Broadcaster fans coordinator events out to any number of subscribers.
// Slow subscribers miss events rather than stall the coordinator.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan domain.Event]struct{}
}

// NewBroadcaster creates an empty broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subscribers: make(map[chan domain.Event]struct{})}
}

// Subscribe returns a channel of events and a function that ends the
// subscription and closes the channel
func (b *Broadcaster) Subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, subscriberBuffer)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish sends ev to every subscriber that has room for it
func (b *Broadcaster) Publish(ev domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Count returns the number of active subscribers
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
