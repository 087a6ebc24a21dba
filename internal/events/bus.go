package events

import (
	"sync"
)

const defaultBufSize = 256

// EventBus fans events out to subscriber channels, either per topic or
// across every topic at once. Publishing never blocks: a subscriber that
// stops draining its channel loses events rather than stalling the
// scheduler.
type EventBus struct {
	mu      sync.RWMutex
	subs    map[string][]chan Event
	allSubs []chan Event
	closed  bool
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[string][]chan Event)}
}

// Subscribe returns a channel carrying events published to one topic.
// bufSize <= 0 selects the default buffer.
func (b *EventBus) Subscribe(topic string, bufSize int) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := b.newSubLocked(bufSize)
	if !b.closed {
		b.subs[topic] = append(b.subs[topic], ch)
	}
	return ch
}

// SubscribeAll returns a channel carrying every published event regardless
// of topic. bufSize <= 0 selects the default buffer.
func (b *EventBus) SubscribeAll(bufSize int) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := b.newSubLocked(bufSize)
	if !b.closed {
		b.allSubs = append(b.allSubs, ch)
	}
	return ch
}

// newSubLocked makes a subscriber channel, already closed when the bus is.
func (b *EventBus) newSubLocked(bufSize int) chan Event {
	if bufSize <= 0 {
		bufSize = defaultBufSize
	}
	ch := make(chan Event, bufSize)
	if b.closed {
		close(ch)
	}
	return ch
}

// Publish delivers an event to the topic's subscribers and to every
// SubscribeAll channel. Full channels drop the event.
func (b *EventBus) Publish(topic string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, ch := range b.subs[topic] {
		select {
		case ch <- event:
		default:
		}
	}
	for _, ch := range b.allSubs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Close shuts the bus down and closes all subscriber channels. Idempotent.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, channels := range b.subs {
		for _, ch := range channels {
			close(ch)
		}
	}
	for _, ch := range b.allSubs {
		close(ch)
	}
}
