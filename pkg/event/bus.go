package event

import "sync"

// Bus is a single process-wide queue of events with FIFO semantics per
// producer. It does not interpret events, only orders and delivers them:
// events enqueued by the same caller within one handler invocation are
// delivered in enqueue order; cross-producer order is unspecified (a plain
// FIFO slice satisfies both). A single mutex guards all state, and a
// condition variable parks the lone dispatcher goroutine between Drain
// iterations instead of spinning.
type Bus struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []Event
	closed bool
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	b := &Bus{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Enqueue appends e to the tail of the queue. Non-blocking; never drops.
func (b *Bus) Enqueue(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.items = append(b.items, e)
	b.cond.Signal()
}

// EnqueueAll enqueues a batch in order, preserving the invariant that
// events produced by one handler invocation are delivered in that order.
func (b *Bus) EnqueueAll(events []Event) {
	if len(events) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.items = append(b.items, events...)
	b.cond.Signal()
}

// Next blocks until an event is available or the bus is stopped, returning
// ok=false in the latter case. This is the cooperative single-consumer
// primitive Drain is built from.
func (b *Bus) Next() (Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.items) == 0 && !b.closed {
		b.cond.Wait()
	}
	if len(b.items) == 0 {
		return Event{}, false
	}
	e := b.items[0]
	b.items = b.items[1:]
	return e, true
}

// TryNext returns the head event without blocking. ok=false if the queue is
// currently empty (used by the environment's quiescence check in round
// mode, which must not block waiting for more events).
func (b *Bus) TryNext() (Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) == 0 {
		return Event{}, false
	}
	e := b.items[0]
	b.items = b.items[1:]
	return e, true
}

// Len reports the number of events currently queued.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Empty reports whether the queue currently holds no events.
func (b *Bus) Empty() bool {
	return b.Len() == 0
}

// Stop unblocks any goroutine parked in Next and causes future Enqueue
// calls to be silently dropped. Idempotent.
func (b *Bus) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.cond.Broadcast()
}

// Drain returns a cooperative-consumer iterator function: repeated calls
// yield the next event until the bus stops, at which point ok is false.
// Intended for use by the single dispatcher goroutine; calling Drain's
// returned function from more than one goroutine breaks the per-target FIFO
// guarantee the dispatcher relies on.
func (b *Bus) Drain() func() (Event, bool) {
	return b.Next
}
