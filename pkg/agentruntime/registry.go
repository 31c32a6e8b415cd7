package agentruntime

import (
	"context"
	"sync"

	"github.com/codeready-toolchain/agentsim/pkg/event"
)

// Registry holds every Runtime hosted by this process (all of them on a
// single node, a shard of them on a worker). It implements both
// dispatch.LocalRuntime (for event delivery) and environment.AgentDataSource
// (for get_agent_data / get_agent_data_by_type).
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*Runtime
	byType map[string][]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		agents: make(map[string]*Runtime),
		byType: make(map[string][]string),
	}
}

// Add registers rt under its AgentID, indexed by AgentType.
func (r *Registry) Add(rt *Runtime) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[rt.AgentID()] = rt
	r.byType[rt.AgentType()] = append(r.byType[rt.AgentType()], rt.AgentID())
}

// AllAgentIDs returns every agent id hosted by this registry, order
// unspecified. Used to build the environment's StartEvent participant
// roster.
func (r *Registry) AllAgentIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	return ids
}

// Get returns the Runtime for agentID, if hosted here.
func (r *Registry) Get(agentID string) (*Runtime, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.agents[agentID]
	return rt, ok
}

// IsLocal satisfies dispatch.Locator: every agent in this registry is
// local; unknown ids report known=false so the dispatcher can consult a
// remote placement map before dropping (pkg/distnode wraps Registry with
// that fallback on a master).
func (r *Registry) IsLocal(agentID string) (local, known bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.agents[agentID]
	return ok, ok
}

// Dispatch satisfies dispatch.LocalRuntime.
func (r *Registry) Dispatch(ctx context.Context, ev event.Event) ([]event.Event, bool, error) {
	rt, ok := r.Get(ev.ToAgentID)
	if !ok {
		return nil, false, nil
	}
	return rt.HandleEvent(ctx, ev)
}

// GetAgentData satisfies environment.AgentDataSource.
func (r *Registry) GetAgentData(agentID, key string, def any) (any, bool) {
	rt, ok := r.Get(agentID)
	if !ok {
		return def, false
	}
	return rt.GetData(key, def), true
}

// GetAgentDataByType satisfies environment.AgentDataSource.
func (r *Registry) GetAgentDataByType(agentType, key string) map[string]any {
	r.mu.RLock()
	ids := append([]string(nil), r.byType[agentType]...)
	r.mu.RUnlock()

	out := make(map[string]any, len(ids))
	for _, id := range ids {
		rt, ok := r.Get(id)
		if !ok {
			continue
		}
		out[id] = rt.GetData(key, nil)
	}
	return out
}

// Snapshot builds a SnapshotFunc (pkg/relationship) backed by this
// registry's public profile data.
func (r *Registry) Snapshot(targetID string) (map[string]any, bool) {
	rt, ok := r.Get(targetID)
	if !ok {
		return nil, false
	}
	return rt.Profile.Snapshot(), true
}
