// Package bus provides the in-process change-notification hub. The durable
// backend publishes per-record change events on it, the local document store
// publishes coarse reload signals, and the sync coordinator and realtime SSE
// feed subscribe. Keys are account ids.
package bus

import (
	"sync"

	"github.com/focusdeck/focusdeck/internal/domain"
)

// Bus is a keyed fan-out hub implementing domain.Notifier.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]map[chan domain.ChangeEvent]struct{}
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[string]map[chan domain.ChangeEvent]struct{})}
}

// Publish delivers an event to every subscriber of key.
// Slow subscribers drop events rather than block the publisher.
func (b *Bus) Publish(key string, ev domain.ChangeEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[key] {
		select {
		case ch <- ev:
		default:
			// subscriber too slow, drop the event
		}
	}
}

// Subscribe registers a new subscriber for key. Returns the channel and an
// unsubscribe func. The channel is closed on unsubscribe.
func (b *Bus) Subscribe(key string) (<-chan domain.ChangeEvent, func()) {
	ch := make(chan domain.ChangeEvent, 64)

	b.mu.Lock()
	if b.subs[key] == nil {
		b.subs[key] = make(map[chan domain.ChangeEvent]struct{})
	}
	b.subs[key][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[key], ch)
			if len(b.subs[key]) == 0 {
				delete(b.subs, key)
			}
			b.mu.Unlock()
			close(ch)
		})
	}
}

// SubscriberCount returns the number of subscribers for key.
func (b *Bus) SubscriberCount(key string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[key])
}
