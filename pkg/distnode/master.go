package distnode

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/codeready-toolchain/agentsim/pkg/event"
)

// EventSender forwards a single event to a worker over the wire (JSON-over-
// HTTP in this implementation; see client.go).
type EventSender interface {
	SendEvent(ctx context.Context, addr string, port int, ev event.Event) error
}

// Master holds the worker registry and agent placement map for a master
// node. All mutations go through a single lock.
type Master struct {
	mu        sync.Mutex
	workers   map[string]*WorkerInfo
	order     []string // registration order, for stable placement tie-break
	placement map[string]string // agent_id -> worker_id

	expectedWorkers int
	workerTimeout   time.Duration
	sender          EventSender

	shuttingDown bool
}

// NewMaster creates a Master expecting expectedWorkers registrations before
// it is considered initialized.
func NewMaster(expectedWorkers int, workerTimeout time.Duration, sender EventSender) *Master {
	return &Master{
		workers:         make(map[string]*WorkerInfo),
		placement:       make(map[string]string),
		expectedWorkers: expectedWorkers,
		workerTimeout:   workerTimeout,
		sender:          sender,
	}
}

// RegisterWorker records a new worker and its initial heartbeat.
func (m *Master) RegisterWorker(workerID, addr string, port int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.workers[workerID]; !exists {
		m.order = append(m.order, workerID)
	}
	m.workers[workerID] = &WorkerInfo{
		WorkerID:      workerID,
		Address:       addr,
		Port:          port,
		Status:        "active",
		LastHeartbeat: time.Now(),
	}
}

// Heartbeat updates last_heartbeat for workerID. Returns false if unknown.
func (m *Master) Heartbeat(workerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workers[workerID]
	if !ok {
		return false
	}
	w.LastHeartbeat = time.Now()
	return true
}

// Ready reports whether enough workers have registered to begin allocation.
func (m *Master) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workers) >= m.expectedWorkers
}

// ActiveWorkers returns a snapshot of every currently registered worker,
// used to fan a get_agent_data_by_type query out to all of them since the
// master does not track which agent types live on which worker.
func (m *Master) ActiveWorkers() []WorkerInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]WorkerInfo, 0, len(m.workers))
	for _, id := range m.order {
		if w, ok := m.workers[id]; ok {
			out = append(out, *w)
		}
	}
	return out
}

// AllocateAgent assigns agentID to the worker with the lowest agent_count,
// ties broken by registration order, and records the placement for the
// life of the trail. Returns the chosen worker_id, or false
// if no workers are registered.
func (m *Master) AllocateAgent(agentID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.placement[agentID]; ok {
		return existing, true
	}

	candidates := append([]string(nil), m.order...)
	sort.SliceStable(candidates, func(i, j int) bool {
		return m.workers[candidates[i]].AgentCount < m.workers[candidates[j]].AgentCount
	})

	var chosen string
	for _, id := range candidates {
		if w, ok := m.workers[id]; ok && w.Status == "active" {
			chosen = id
			break
		}
	}
	if chosen == "" {
		return "", false
	}

	m.placement[agentID] = chosen
	w := m.workers[chosen]
	w.AgentCount++
	w.AgentIDs = append(w.AgentIDs, agentID)
	return chosen, true
}

// ClaimAgent records agentID as hosted by workerID, as reported by the
// worker itself at startup rather than chosen by AllocateAgent. Used when a
// worker builds its agent set from a static config partition so the master's placement map still has full routing knowledge for
// forward_event. Returns false if workerID is not registered.
func (m *Master) ClaimAgent(workerID, agentID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workers[workerID]
	if !ok {
		return false
	}
	if existing, already := m.placement[agentID]; already && existing == workerID {
		return true
	}
	m.placement[agentID] = workerID
	w.AgentCount++
	w.AgentIDs = append(w.AgentIDs, agentID)
	return true
}

// AllAgentIDs returns every agent id currently placed on a worker, order
// unspecified.
func (m *Master) AllAgentIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.placement))
	for id := range m.placement {
		ids = append(ids, id)
	}
	return ids
}

// WorkerFor returns the worker hosting agentID, if known.
func (m *Master) WorkerFor(agentID string) (*WorkerInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.placement[agentID]
	if !ok {
		return nil, false
	}
	w, ok := m.workers[id]
	if !ok {
		return nil, false
	}
	cp := *w
	return &cp, true
}

// ForwardEvent looks up the worker hosting ev.ToAgentID and sends ev there.
// Drops with a log if the target is unknown, or if shutdown is in progress.
func (m *Master) ForwardEvent(ctx context.Context, ev event.Event) error {
	m.mu.Lock()
	if m.shuttingDown {
		m.mu.Unlock()
		slog.Debug("distnode: forwarding suppressed during shutdown", "to", ev.ToAgentID)
		return nil
	}
	workerID, ok := m.placement[ev.ToAgentID]
	if !ok {
		m.mu.Unlock()
		slog.Warn("distnode: no placement for agent, dropping event", "to", ev.ToAgentID)
		return nil
	}
	w, ok := m.workers[workerID]
	if !ok {
		m.mu.Unlock()
		slog.Warn("distnode: placement worker gone, dropping event", "to", ev.ToAgentID, "worker_id", workerID)
		return nil
	}
	addr, port := w.Address, w.Port
	m.mu.Unlock()

	return m.sender.SendEvent(ctx, addr, port, ev)
}

// BeginShutdown suppresses further forwarding (called before Terminate is
// broadcast to workers).
func (m *Master) BeginShutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shuttingDown = true
}

// SweepStaleWorkers removes any worker whose last heartbeat is older than
// workerTimeout, marking its agents unavailable (placement entries are
// removed so further forwards to them log-and-drop).
func (m *Master) SweepStaleWorkers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed []string
	cutoff := time.Now().Add(-m.workerTimeout)
	for id, w := range m.workers {
		if w.LastHeartbeat.Before(cutoff) {
			removed = append(removed, id)
			delete(m.workers, id)
			for _, agentID := range w.AgentIDs {
				delete(m.placement, agentID)
			}
		}
	}
	if len(removed) > 0 {
		newOrder := m.order[:0:0]
		for _, id := range m.order {
			if _, ok := m.workers[id]; ok {
				newOrder = append(newOrder, id)
			}
		}
		m.order = newOrder
		slog.Warn("distnode: removed stale workers", "workers", removed)
	}
	return removed
}

// RunLivenessSweep launches a background ticker calling SweepStaleWorkers
// every interval until ctx is cancelled.
func (m *Master) RunLivenessSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SweepStaleWorkers()
		}
	}
}

// WorkerCount returns the number of currently registered workers.
func (m *Master) WorkerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workers)
}
