package distnode

import "context"

// LocalAgentSource is the subset of *agentruntime.Registry a worker needs to
// answer inbound agent-data RPCs (the master polling get_agent_data /
// get_agent_data_by_type for agents this worker hosts).
type LocalAgentSource interface {
	GetAgentData(agentID, key string, def any) (any, bool)
	GetAgentDataByType(agentType, key string) map[string]any
}

// WorkerAgentAccessor adapts a worker's local agent registry to the
// EnvAccessor interface so its Server can serve /agent-data and
// /agent-data-by-type. A worker has no authoritative env state of its own
// (that lives on the master, see pkg/proxyenv) so GetData/UpdateData/
// StopSimulation are no-ops here — the master never calls them on a worker.
type WorkerAgentAccessor struct {
	source LocalAgentSource
}

// NewWorkerAgentAccessor wraps source for use with Server.SetEnvAccessor on
// a worker node.
func NewWorkerAgentAccessor(source LocalAgentSource) *WorkerAgentAccessor {
	return &WorkerAgentAccessor{source: source}
}

func (a *WorkerAgentAccessor) GetData(_ context.Context, _ string, def any) any { return def }
func (a *WorkerAgentAccessor) UpdateData(_ context.Context, _ string, _ any)    {}
func (a *WorkerAgentAccessor) StopSimulation()                                 {}

func (a *WorkerAgentAccessor) GetAgentData(agentID, key string, def any) any {
	v, ok := a.source.GetAgentData(agentID, key, def)
	if !ok {
		return def
	}
	return v
}

func (a *WorkerAgentAccessor) GetAgentDataByType(agentType, key string) map[string]any {
	return a.source.GetAgentDataByType(agentType, key)
}
