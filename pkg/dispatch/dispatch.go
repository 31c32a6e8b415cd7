// Package dispatch implements the single cooperative consumer that drains
// the event bus and delivers events to local or remote targets.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codeready-toolchain/agentsim/pkg/event"
)

// LocalRuntime delivers an event to the local agent runtime's registered
// handler for event.Kind, returning any follow-up events. handled is false
// if no handler is registered for the kind on that agent.
type LocalRuntime interface {
	Dispatch(ctx context.Context, ev event.Event) (followups []event.Event, handled bool, err error)
}

// RemoteForwarder forwards an event to the worker hosting its target, used
// in distributed mode (pkg/distnode on the master side).
type RemoteForwarder interface {
	Forward(ev event.Event) error
}

// EnvSink receives events addressed to event.EnvAgentID.
type EnvSink interface {
	HandleEnvEvent(ev event.Event)
}

// Locator answers whether an agent id is hosted locally. known is false if
// the agent id is not recognized anywhere (dropped with a log
// §4.5 "forward_event... If the target worker is unknown... dropped with a
// log").
type Locator interface {
	IsLocal(agentID string) (local, known bool)
}

// Dispatcher is the single cooperative consumer draining the bus. Ordering:
// per-target FIFO, round-robin fairness across targets by default..Worker poll-loop plus a bounded
// semaphore capping concurrent handler executions.
type Dispatcher struct {
	bus       *event.Bus
	runtime   LocalRuntime
	forwarder RemoteForwarder // nil in single-node mode
	envSink   EnvSink
	locator   Locator
	sem       chan struct{}

	mu     sync.Mutex
	queues map[string][]event.Event
	order  []string
	cursor int

	wg       sync.WaitGroup
	inFlight atomic.Int64
}

// New creates a Dispatcher. concurrency bounds the number of local handler
// invocations running at once (0 means unbounded).
func New(bus *event.Bus, runtime LocalRuntime, forwarder RemoteForwarder, envSink EnvSink, locator Locator, concurrency int) *Dispatcher {
	d := &Dispatcher{
		bus:       bus,
		runtime:   runtime,
		forwarder: forwarder,
		envSink:   envSink,
		locator:   locator,
		queues:    make(map[string][]event.Event),
	}
	if concurrency > 0 {
		d.sem = make(chan struct{}, concurrency)
	}
	return d
}

// Run drains the bus until it is stopped (event.Bus.Stop, called by the
// environment on termination) and every in-flight handler has returned.
func (d *Dispatcher) Run(ctx context.Context) {
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		for {
			ev, ok := d.bus.Next()
			if !ok {
				return
			}
			d.push(ev)
		}
	}()

	for {
		ev, ok := d.popNext()
		if ok {
			d.dispatchOne(ctx, ev)
			continue
		}
		select {
		case <-pumpDone:
			if !d.hasPending() {
				d.wg.Wait()
				return
			}
		case <-ctx.Done():
			d.wg.Wait()
			return
		case <-time.After(time.Millisecond):
		}
	}
}

func (d *Dispatcher) push(ev event.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := ev.ToAgentID
	if _, exists := d.queues[key]; !exists {
		d.order = append(d.order, key)
	}
	d.queues[key] = append(d.queues[key], ev)
}

// popNext implements round-robin fairness: starting from the cursor, it
// returns the head event of the first non-empty target queue, advancing
// the cursor past it.
func (d *Dispatcher) popNext() (event.Event, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.order)
	for i := 0; i < n; i++ {
		idx := (d.cursor + i) % n
		key := d.order[idx]
		q := d.queues[key]
		if len(q) == 0 {
			continue
		}
		ev := q[0]
		d.queues[key] = q[1:]
		d.cursor = (idx + 1) % n
		return ev, true
	}
	return event.Event{}, false
}

// Quiescent reports whether the bus is empty, every target queue is empty
// and no local handler invocation is in flight — the condition
// Environment's round-mode clock waits on before advancing.
func (d *Dispatcher) Quiescent() bool {
	return d.bus.Empty() && !d.hasPending() && d.inFlight.Load() == 0
}

func (d *Dispatcher) hasPending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, q := range d.queues {
		if len(q) > 0 {
			return true
		}
	}
	return false
}

func (d *Dispatcher) dispatchOne(ctx context.Context, ev event.Event) {
	if ev.ToAgentID == event.EnvAgentID {
		d.envSink.HandleEnvEvent(ev)
		return
	}

	local, known := d.locator.IsLocal(ev.ToAgentID)
	if !known {
		slog.Warn("dispatch: target agent unknown, dropping event", "to", ev.ToAgentID, "kind", ev.Kind)
		return
	}

	if !local {
		if d.forwarder == nil {
			slog.Warn("dispatch: remote target but no forwarder configured", "to", ev.ToAgentID)
			return
		}
		if err := d.forwarder.Forward(ev); err != nil {
			slog.Warn("dispatch: forward failed", "to", ev.ToAgentID, "error", err)
		}
		return
	}

	if d.sem != nil {
		d.sem <- struct{}{}
	}
	d.wg.Add(1)
	d.inFlight.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.inFlight.Add(-1)
		if d.sem != nil {
			defer func() { <-d.sem }()
		}
		followups, handled, err := d.runtime.Dispatch(ctx, ev)
		if err != nil {
			slog.Error("dispatch: handler error", "agent", ev.ToAgentID, "kind", ev.Kind, "error", err)
		}
		if !handled {
			slog.Warn("dispatch: no handler registered, dropping event", "agent", ev.ToAgentID, "kind", ev.Kind)
			return
		}
		if len(followups) > 0 {
			d.bus.EnqueueAll(followups)
		}
	}()
}
