// Package environment owns the clock, the pending-event queue, global env
// state and termination conditions.
package environment

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/agentsim/pkg/event"
	"github.com/codeready-toolchain/agentsim/pkg/record"
)

// Mode selects the clock's advancement policy.
type Mode string

const (
	ModeRound Mode = "round"
	ModeTick  Mode = "tick"
)

// AgentDataSource is implemented by whatever holds live agent profiles —
// normally the agent runtime's local registry, and on a master, also a
// remote aggregator that fans out to workers (pkg/distnode). Environment
// queries every registered source and merges results, so get_agent_data_by_type
// returns entries for agents wherever they are hosted.
type AgentDataSource interface {
	GetAgentData(agentID, key string, def any) (any, bool)
	GetAgentDataByType(agentType, key string) map[string]any
}

// TerminationReason explains why Environment.Run returned.
type TerminationReason string

const (
	ReasonMaxSteps TerminationReason = "max_steps"
	ReasonEndEvent TerminationReason = "end_event"
	ReasonStopCall TerminationReason = "stop_simulation"
)

// Config configures one Environment instance.
type Config struct {
	Mode       Mode
	MaxSteps   int
	TrailID    string
	UniverseID string // defaults to "main"

	// TickInterval is the wall-clock cadence between StartEvent emissions
	// in tick mode. Ignored in round mode.
	TickInterval time.Duration

	// Participants lists the agent ids that receive StartEvent each
	// round/tick. A scene may narrow this per round via ParticipantsFunc.
	Participants []string
}

// Environment is the single authoritative clock and env-state owner. In
// single/master mode this is the authoritative environment; in worker
// mode, ProxyEnv (pkg/proxyenv) presents the same data-access contract but
// forwards to the master hosting this type.
type Environment struct {
	cfg   Config
	bus   *event.Bus
	store Store

	mu          sync.Mutex
	roundNumber int
	startTime   time.Time
	terminated  bool
	termReason  TerminationReason

	pendingMu        sync.Mutex
	pendingDecisions []record.DecisionRecord
	pendingEvents    []record.EventRecord

	sourcesMu sync.RWMutex
	sources   []AgentDataSource

	cancel context.CancelFunc

	// onTermination is invoked once, under no lock, when the environment
	// terminates: it flushes the batch processor, closes the sink and
	// signals workers. Wired by
	// the caller (cmd/agentsim) since those concerns live in other packages.
	onTermination func(reason TerminationReason)
}

// New creates an Environment. store is typically NewMemoryStore() for a
// single/master node; onTerminate is called exactly once at termination.
func New(cfg Config, bus *event.Bus, store Store, onTerminate func(TerminationReason)) *Environment {
	if cfg.UniverseID == "" {
		cfg.UniverseID = "main"
	}
	return &Environment{
		cfg:           cfg,
		bus:           bus,
		store:         store,
		onTermination: onTerminate,
	}
}

// SetParticipants replaces the StartEvent participant roster. Callers build
// the agent registry (and so learn the final set of agent ids) after
// constructing the Environment it depends on as an EnvDataAccessor, so this
// is set in a second step; call it before Run, which is the first point
// anything reads cfg.Participants.
func (e *Environment) SetParticipants(ids []string) {
	e.cfg.Participants = ids
}

// RegisterSource adds an AgentDataSource consulted by GetAgentData and
// GetAgentDataByType. Call order does not matter; a key present in more
// than one source returns the first source's value for GetAgentData, and
// all sources' entries for GetAgentDataByType (a real agent id should only
// live in one source, but duplicates favor the first registered).
func (e *Environment) RegisterSource(src AgentDataSource) {
	e.sourcesMu.Lock()
	defer e.sourcesMu.Unlock()
	e.sources = append(e.sources, src)
}

// AddEvent enqueues e onto the bus.
func (e *Environment) AddEvent(ev event.Event) {
	e.bus.Enqueue(ev.WithTimestamp(time.Now()))
}

// GetData reads env-state key k, returning def if absent.
func (e *Environment) GetData(ctx context.Context, k string, def any) any {
	v, ok, err := e.store.Get(ctx, k)
	if err != nil {
		slog.Error("environment: store read failed", "key", k, "error", err)
		return def
	}
	if !ok {
		return def
	}
	return v
}

// UpdateData writes env-state key k. Never fails locally;
// a store error is logged and swallowed, matching the "writes never fail
// locally" failure semantics.
func (e *Environment) UpdateData(ctx context.Context, k string, v any) {
	if err := e.store.Set(ctx, k, v); err != nil {
		slog.Error("environment: store write failed", "key", k, "error", err)
	}
}

// GetAgentData reads one agent's profile field across every registered
// source, returning def if no source has it.
func (e *Environment) GetAgentData(agentID, key string, def any) any {
	e.sourcesMu.RLock()
	defer e.sourcesMu.RUnlock()
	for _, src := range e.sources {
		if v, ok := src.GetAgentData(agentID, key, def); ok {
			return v
		}
	}
	return def
}

// GetAgentDataByType returns {agent_id: value} across all registered
// sources, local and remote.
func (e *Environment) GetAgentDataByType(agentType, key string) map[string]any {
	e.sourcesMu.RLock()
	defer e.sourcesMu.RUnlock()
	out := make(map[string]any)
	for _, src := range e.sources {
		for id, v := range src.GetAgentDataByType(agentType, key) {
			if _, exists := out[id]; !exists {
				out[id] = v
			}
		}
	}
	return out
}

// QueueEvent appends rec to the durable event-recording buffer, forwarded
// to the batch processor by whoever owns the flush loop.
func (e *Environment) QueueEvent(rec record.EventRecord) {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()
	e.pendingEvents = append(e.pendingEvents, rec)
}

// QueueDecision appends rec to the durable decision-recording buffer.
func (e *Environment) QueueDecision(rec record.DecisionRecord) {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()
	e.pendingDecisions = append(e.pendingDecisions, rec)
}

// DrainPending returns and clears the pending event/decision buffers. The
// batch processor calls this on its flush cadence rather than owning the
// buffer itself, keeping Environment as the single writer.
func (e *Environment) DrainPending() ([]record.EventRecord, []record.DecisionRecord) {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()
	evs := e.pendingEvents
	decs := e.pendingDecisions
	e.pendingEvents = nil
	e.pendingDecisions = nil
	return evs, decs
}

// RoundNumber returns the current (monotonically increasing) round number.
func (e *Environment) RoundNumber() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.roundNumber
}

// TrailID returns this run's trail identity.
func (e *Environment) TrailID() string { return e.cfg.TrailID }

// UniverseID returns this run's universe identity (default "main").
func (e *Environment) UniverseID() string { return e.cfg.UniverseID }

// Terminated reports whether the environment has stopped.
func (e *Environment) Terminated() (bool, TerminationReason) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.terminated, e.termReason
}

// StopSimulation is the external stop_simulation() call.
func (e *Environment) StopSimulation() {
	e.terminate(ReasonStopCall)
}

// HandleEndEvent is called by the dispatcher when an EndEvent addressed to
// ENV is observed.
func (e *Environment) HandleEndEvent() {
	e.terminate(ReasonEndEvent)
}

func (e *Environment) terminate(reason TerminationReason) {
	e.mu.Lock()
	if e.terminated {
		e.mu.Unlock()
		return
	}
	e.terminated = true
	e.termReason = reason
	cancel := e.cancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.bus.Stop()
	slog.Info("environment terminated", "reason", reason, "round", e.RoundNumber())
	if e.onTermination != nil {
		e.onTermination(reason)
	}
}

// Run drives the clock until termination, emitting StartEvent per round
// (ModeRound) or per tick (ModeTick). quiescent is called by the caller's
// dispatcher-aware loop in round mode to check "bus empty AND all
// dispatched handlers returned AND no follow-ups remain"; in
// tick mode it is ignored.
func (e *Environment) Run(ctx context.Context, quiescent func() bool) error {
	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.startTime = time.Now()
	e.cancel = cancel
	e.mu.Unlock()
	defer cancel()

	switch e.cfg.Mode {
	case ModeTick:
		return e.runTick(ctx)
	default:
		return e.runRound(ctx, quiescent)
	}
}

func (e *Environment) runRound(ctx context.Context, quiescent func() bool) error {
	for {
		if done, _ := e.Terminated(); done {
			return nil
		}
		if e.cfg.MaxSteps == 0 {
			e.terminate(ReasonMaxSteps)
			return nil
		}

		e.emitStart()

		for quiescent != nil && !quiescent() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				time.Sleep(time.Millisecond)
			}
		}

		e.mu.Lock()
		e.roundNumber++
		reached := e.roundNumber >= e.cfg.MaxSteps
		e.mu.Unlock()

		if reached {
			e.terminate(ReasonMaxSteps)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

func (e *Environment) runTick(ctx context.Context) error {
	if e.cfg.TickInterval <= 0 {
		return fmt.Errorf("environment: tick mode requires a positive TickInterval")
	}
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if done, _ := e.Terminated(); done {
				return nil
			}
			e.emitStart()
			e.mu.Lock()
			e.roundNumber++
			reached := e.cfg.MaxSteps > 0 && e.roundNumber >= e.cfg.MaxSteps
			e.mu.Unlock()
			if reached {
				e.terminate(ReasonMaxSteps)
				return nil
			}
		}
	}
}

func (e *Environment) emitStart() {
	for _, agentID := range e.cfg.Participants {
		e.AddEvent(event.Event{
			EventID:     fmt.Sprintf("start-%s-%d", agentID, e.RoundNumber()),
			FromAgentID: event.EnvAgentID,
			ToAgentID:   agentID,
			Kind:        event.KindStart,
			Timestamp:   time.Now(),
		})
	}
}
