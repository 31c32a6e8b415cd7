package profile

import (
	"sync"

	"github.com/google/uuid"
)

// AgentProfile is a mapping from field name to value, split into public and
// private sets by its Schema. agent_profile_id is set exactly once at
// construction and is globally unique within a trail. Each profile carries
// its own mutex rather than sharing one across all agents.
type AgentProfile struct {
	mu sync.RWMutex

	id        string
	agentType string
	schema    *Schema
	data      map[string]any
}

// New constructs a profile for agentType, seeding data from initial (e.g.
// loaded from profile/data/<agent_type>.json) with schema defaults filling
// in anything initial omits. The profile id is generated once, here.
func New(agentType string, schema *Schema, initial map[string]any) *AgentProfile {
	data := schema.Defaults()
	for k, v := range initial {
		data[k] = v
	}
	return &AgentProfile{
		id:        uuid.NewString(),
		agentType: agentType,
		schema:    schema,
		data:      data,
	}
}

// ID returns the profile's globally unique agent_profile_id.
func (p *AgentProfile) ID() string { return p.id }

// AgentType returns the scene-declared type this profile was built from.
func (p *AgentProfile) AgentType() string { return p.agentType }

// GetData performs a dotted-path read, e.g. GetData("a.b.0.c", nil).
func (p *AgentProfile) GetData(path string, def any) any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return getPath(p.data, path, def)
}

// UpdateData performs a last-writer-wins dotted-path write.
func (p *AgentProfile) UpdateData(path string, v any) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return setPath(p.data, path, v)
}

// UpdateIf performs a test-and-set conditional write: predicate receives
// the current value at path (or def, which callers typically pass as the
// field's zero value) and, if it returns true, updater computes the new
// value from the current one. The whole read-check-write happens under the
// profile's lock, giving CAS-like semantics for concurrent handlers.
func (p *AgentProfile) UpdateIf(path string, predicate func(cur any) bool, updater func(cur any) any) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur := getPath(p.data, path, nil)
	if !predicate(cur) {
		return false
	}
	return setPath(p.data, path, updater(cur))
}

// Snapshot returns a shallow copy of the public fields only, for use by
// Relationship edge caching and get_agent_data_by_type. Values themselves
// are not deep-copied; callers must not mutate nested maps/slices returned
// here.
func (p *AgentProfile) Snapshot() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]any, len(p.schema.Fields))
	for _, f := range p.schema.PublicFields() {
		if v, ok := p.data[f.Name]; ok {
			out[f.Name] = v
		}
	}
	return out
}

// Raw returns a shallow copy of every field, public and private, for
// internal use by the runtime and proxy (never exposed cross-agent).
func (p *AgentProfile) Raw() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]any, len(p.data))
	for k, v := range p.data {
		out[k] = v
	}
	return out
}
