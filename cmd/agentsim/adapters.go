package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/agentsim/pkg/agentruntime"
	"github.com/codeready-toolchain/agentsim/pkg/batch"
	"github.com/codeready-toolchain/agentsim/pkg/distnode"
	"github.com/codeready-toolchain/agentsim/pkg/environment"
	"github.com/codeready-toolchain/agentsim/pkg/event"
	"github.com/codeready-toolchain/agentsim/pkg/record"
)

// remoteAgentQueryTimeout bounds a master's fan-out to workers while
// answering GetAgentData/GetAgentDataByType — these calls sit behind
// environment.AgentDataSource, a synchronous, no-context contract, so the
// timeout has to live here instead of coming from a caller's ctx.
const remoteAgentQueryTimeout = 3 * time.Second

// remoteAgentSource satisfies environment.AgentDataSource on a master by
// querying the worker(s) hosting the requested agent(s) over distnode.
// GetAgentData resolves the single owning worker via the placement map;
// GetAgentDataByType has no type-to-worker index (the master never learns
// agent types, only ids) so it fans out to every active
// worker and merges, relying on each worker's own registry to return only
// its local matches.
type remoteAgentSource struct {
	client *distnode.Client
	master *distnode.Master
}

func (r *remoteAgentSource) GetAgentData(agentID, key string, def any) (any, bool) {
	w, ok := r.master.WorkerFor(agentID)
	if !ok {
		return def, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), remoteAgentQueryTimeout)
	defer cancel()
	v, err := r.client.GetAgentData(ctx, w.Address, w.Port, agentID, key)
	if err != nil || v == nil {
		return def, false
	}
	return v, true
}

func (r *remoteAgentSource) GetAgentDataByType(agentType, key string) map[string]any {
	out := make(map[string]any)
	for _, w := range r.master.ActiveWorkers() {
		ctx, cancel := context.WithTimeout(context.Background(), remoteAgentQueryTimeout)
		values, err := r.client.GetAgentDataByType(ctx, w.Address, w.Port, agentType, key)
		cancel()
		if err != nil {
			slog.Warn("main: get_agent_data_by_type fan-out failed for worker", "worker_id", w.WorkerID, "error", err)
			continue
		}
		for id, v := range values {
			out[id] = v
		}
	}
	return out
}

// envEventSink adapts *environment.Environment to dispatch.EnvSink. Real
// env-state reads/writes by local handlers go through direct Runtime method
// calls (EnvDataAccessor), so only two kinds of ENV-addressed event ever
// reach here: local end-of-trail signals, and — on a master, where
// dataHandler is wired — a worker's proxied get/update_data or
// get_agent_data_by_type request arriving over distnode.
type envEventSink struct {
	env         *environment.Environment
	dataHandler *distnode.EnvEventHandler // nil on single-node and on workers
}

func (s *envEventSink) HandleEnvEvent(ev event.Event) {
	switch ev.Kind {
	case event.KindEnd:
		s.env.HandleEndEvent()
	case event.KindData, event.KindDataUpdate, event.KindAgentDataByType:
		if s.dataHandler == nil {
			slog.Warn("main: dropping proxied env request, no data handler wired", "kind", ev.Kind)
			return
		}
		s.dataHandler.Enqueue(ev)
	default:
		slog.Warn("main: env sink ignoring unsupported event kind", "kind", ev.Kind)
	}
}

// decisionQueuer satisfies agentruntime.DecisionSink by forwarding straight
// to this node's own batch processor. Every node, including workers, runs
// its own Processor and Sink connection rather than proxying decision
// writes through the master.
type decisionQueuer struct {
	processor *batch.Processor
}

func (q *decisionQueuer) QueueDecision(rec record.DecisionRecord) {
	q.processor.AddDecisionRecord(rec)
}

// masterLocator satisfies dispatch.Locator on a master node: an agent is
// local if this node's own registry hosts it (a master may host agents in
// a degenerate single-worker-less setup), otherwise local if a worker
// placement is known.
type masterLocator struct {
	registry *agentruntime.Registry
	master   *distnode.Master
}

func (l *masterLocator) IsLocal(agentID string) (local, known bool) {
	if local, known := l.registry.IsLocal(agentID); known {
		return local, true
	}
	_, ok := l.master.WorkerFor(agentID)
	return false, ok
}

// masterForwarder satisfies dispatch.RemoteForwarder on a master: forward
// means resolve the owning worker and send over the wire.
type masterForwarder struct {
	master *distnode.Master
}

func (f *masterForwarder) Forward(ev event.Event) error {
	return f.master.ForwardEvent(context.Background(), ev)
}

// workerForwarder satisfies dispatch.RemoteForwarder on a worker: any
// follow-up addressed to a non-local agent is sent up to the master, which
// holds the full placement map. Workers never talk to each other directly.
type workerForwarder struct {
	client     *distnode.Client
	masterAddr string
	masterPort int
}

func (f *workerForwarder) Forward(ev event.Event) error {
	return f.client.SendEvent(context.Background(), f.masterAddr, f.masterPort, ev)
}

// workerLocator satisfies dispatch.Locator on a worker: if the agent is
// hosted here it's local; otherwise it's assumed known (forward it to the
// master and let the master's placement map decide) since a worker has no
// visibility into global placement.
type workerLocator struct {
	registry *agentruntime.Registry
}

func (l *workerLocator) IsLocal(agentID string) (local, known bool) {
	if local, known := l.registry.IsLocal(agentID); known {
		return local, true
	}
	return false, true
}

// workerEnvSink satisfies dispatch.EnvSink on a worker. Agent data
// operations never reach this path — Runtime.GetEnvData calls ProxyEnv
// directly, out of band from the event bus — so the only ENV-addressed
// event a worker's local dispatcher ever sees is an agent-emitted EndEvent,
// which a worker has no authority to act on locally: it asks the master to
// stop the trail instead.
type workerEnvSink struct {
	client     *distnode.Client
	masterAddr string
	masterPort int
}

func (s *workerEnvSink) HandleEnvEvent(ev event.Event) {
	switch ev.Kind {
	case event.KindEnd:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.client.StopSimulation(ctx, s.masterAddr, s.masterPort); err != nil {
			slog.Error("main: worker failed to relay end event to master", "error", err)
		}
	default:
		slog.Warn("main: worker env sink ignoring event kind", "kind", ev.Kind)
	}
}
