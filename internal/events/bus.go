// Package events is the in-process pub/sub channel between the agent's
// services and its outward surfaces (websocket, tray). Subscribers get their
// own buffered channel; a slow subscriber loses its oldest events instead of
// blocking publishers.
package events

import (
	"sync"
	"time"
)

const (
	TypeRepairStarted   = "repair.started"
	TypeRepairCompleted = "repair.completed"
	TypeRepairFailed    = "repair.failed"
	TypeOutputDetected  = "output.detected"
	TypeSessionUpdated  = "session.updated"
)

const subscriberBuffer = 32

type Event struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	AttemptID string      `json:"attempt_id,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	At        time.Time   `json:"at"`
}

type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber. The returned cancel function must be
// called when the subscriber is done; it closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber without blocking. When a
// subscriber's buffer is full, its oldest event is dropped to make room.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- e:
			default:
			}
		}
	}
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
