// Package relationship implements the directed, labeled edges between
// agents and a cached snapshot of each edge's target profile.
package relationship

import "sync"

// Relationship is a directed edge owner_id -> target_id with a label, free
// attributes and a cached snapshot of the target's public profile taken at
// edge creation. The snapshot is refreshed only on an explicit Refresh call;
// staleness is allowed by design.
type Relationship struct {
	OwnerID    string
	TargetID   string
	Label      string
	Attributes map[string]any
	Snapshot   map[string]any
}

// Manager owns every Relationship an agent holds, keyed by (target_id,
// label) so an owner may hold multiple labeled edges to the same target.
// One Manager per agent, never a single global lock.
type Manager struct {
	mu    sync.RWMutex
	owner string
	edges map[edgeKey]*Relationship
}

type edgeKey struct {
	target string
	label  string
}

// NewManager creates an empty relationship manager for ownerID.
func NewManager(ownerID string) *Manager {
	return &Manager{owner: ownerID, edges: make(map[edgeKey]*Relationship)}
}

// SnapshotFunc produces the target's public profile snapshot at edge
// creation/refresh time; callers pass a closure over their agent registry
// so this package has no dependency on the agent runtime.
type SnapshotFunc func(targetID string) (map[string]any, bool)

// Add creates or replaces the edge (targetID, label), capturing snapshot
// now via snap.
func (m *Manager) Add(targetID, label string, attributes map[string]any, snap SnapshotFunc) *Relationship {
	s, _ := snap(targetID)
	rel := &Relationship{
		OwnerID:    m.owner,
		TargetID:   targetID,
		Label:      label,
		Attributes: attributes,
		Snapshot:   s,
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges[edgeKey{targetID, label}] = rel
	return rel
}

// Get returns the edge (targetID, label) if it exists.
func (m *Manager) Get(targetID, label string) (*Relationship, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rel, ok := m.edges[edgeKey{targetID, label}]
	return rel, ok
}

// ByLabel returns every edge carrying the given label, in no particular order.
func (m *Manager) ByLabel(label string) []*Relationship {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Relationship
	for k, rel := range m.edges {
		if k.label == label {
			out = append(out, rel)
		}
	}
	return out
}

// All returns every relationship the manager holds.
func (m *Manager) All() []*Relationship {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Relationship, 0, len(m.edges))
	for _, rel := range m.edges {
		out = append(out, rel)
	}
	return out
}

// Refresh re-captures the snapshot for edge (targetID, label) using snap.
// Returns false if the edge does not exist.
func (m *Manager) Refresh(targetID, label string, snap SnapshotFunc) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	rel, ok := m.edges[edgeKey{targetID, label}]
	if !ok {
		return false
	}
	s, _ := snap(targetID)
	rel.Snapshot = s
	return true
}

// Remove deletes the edge (targetID, label) if present.
func (m *Manager) Remove(targetID, label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.edges, edgeKey{targetID, label})
}
