// Package eventbus implements the store's change-event model and its
// pull-delivery subscriber registry (§4.5).
package eventbus

import (
	"sync"
	"sync/atomic"

	"chunkstore/internal/chunk"
	"chunkstore/internal/notify"
)

// Kind distinguishes an addition from a deletion event.
type Kind int

const (
	Addition Kind = iota
	Deletion
)

func (k Kind) String() string {
	if k == Deletion {
		return "deletion"
	}
	return "addition"
}

// Event is one change to the store's chunk set. ID is unique and strictly
// increasing across the store's lifetime (§4.5).
type Event struct {
	ID    uint64
	Kind  Kind
	Chunk *chunk.Chunk
}

// Handle identifies a registered subscriber, returned by Subscribe.
type Handle uint64

// Bus assigns monotonic event ids and fans a completed batch of events out
// to registered subscribers. There is no internal goroutine or queue:
// Dispatch runs subscriber callbacks synchronously on the caller's
// goroutine, matching §5 ("no internal task scheduler, no timer, no I/O")
// and §4.5 ("the store does not spawn threads; delivery is the caller's
// responsibility").
type Bus struct {
	counter uint64 // atomic

	mu          sync.Mutex
	nextHandle  Handle
	subscribers map[Handle]func([]Event)

	changed *notify.Signal
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{
		subscribers: make(map[Handle]func([]Event)),
		changed:     notify.NewSignal(),
	}
}

// NextEventID returns the next event id. It is a pure atomic counter and
// does not take the bus's lock (§5 "the query_id and event_id atomics are
// incremented without taking the main lock").
func (b *Bus) NextEventID() uint64 {
	return atomic.AddUint64(&b.counter, 1)
}

// Subscribe registers handler to be called with every future Dispatch batch.
func (b *Bus) Subscribe(handler func([]Event)) Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextHandle++
	h := b.nextHandle
	b.subscribers[h] = handler
	return h
}

// Unsubscribe removes a previously registered subscriber. A no-op if h is unknown.
func (b *Bus) Unsubscribe(h Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, h)
}

// Dispatch delivers a completed event batch to every subscriber and wakes
// any goroutine waiting on Changed(). A panicking handler is recovered so
// one bad subscriber cannot unwind the mutating call that produced the
// events (§7 "Event handlers that fail do not interrupt the mutating
// operation").
func (b *Bus) Dispatch(events []Event) {
	if len(events) == 0 {
		return
	}
	b.mu.Lock()
	handlers := make([]func([]Event), 0, len(b.subscribers))
	for _, h := range b.subscribers {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		callSafely(h, events)
	}
	b.changed.Notify()
}

func callSafely(handler func([]Event), events []Event) {
	defer func() { _ = recover() }()
	handler(events)
}

// Changed returns a channel closed the next time Dispatch delivers a
// non-empty batch. Callers that want to react to store mutations without
// registering a subscriber can poll this instead.
func (b *Bus) Changed() <-chan struct{} {
	return b.changed.C()
}
