// Package events provides in-process event delivery for the peer's
// external consumer, plus combinators for fanning events out to
// additional sinks (log, broker).
package events

import (
	"errors"
	"sync"
)

// Event pairs a topic with its typed payload.
type Event struct {
	Topic   string
	Payload any
}

// Bus is a buffered in-process publisher. It is the surface the UI (or
// any other local consumer) subscribes to. Publishing never blocks: if
// the subscriber falls behind and the buffer fills, the oldest pending
// event is dropped in favor of the new one.
type Bus struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{ch: make(chan Event, buffer)}
}

// Events is the subscription channel; it is closed by Close.
func (b *Bus) Events() <-chan Event { return b.ch }

func (b *Bus) Publish(topic string, event any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New("event bus closed")
	}
	for {
		select {
		case b.ch <- Event{Topic: topic, Payload: event}:
			return nil
		default:
			// full: drop the oldest and retry
			select {
			case <-b.ch:
			default:
			}
		}
	}
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.ch)
	}
}
