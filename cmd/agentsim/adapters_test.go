package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/agentsim/pkg/agentruntime"
	"github.com/codeready-toolchain/agentsim/pkg/batch"
	"github.com/codeready-toolchain/agentsim/pkg/distnode"
	"github.com/codeready-toolchain/agentsim/pkg/record"
	"github.com/codeready-toolchain/agentsim/pkg/sink"
)

func TestDecisionQueuerForwardsToProcessor(t *testing.T) {
	s := sink.NewMemory()
	p := batch.New(batch.Config{BatchSize: 1}, s)
	p.Start(context.Background())
	defer p.Stop()

	q := &decisionQueuer{processor: p}
	q.QueueDecision(record.DecisionRecord{DecisionID: "d1", AgentID: "a1"})

	require.Eventually(t, func() bool {
		recs, err := s.GetAgentDecisions(context.Background(), sink.Filters{})
		return err == nil && len(recs) == 1
	}, time.Second, time.Millisecond, "decision should reach the sink via the processor")
}

func TestMasterLocatorPrefersLocalRegistry(t *testing.T) {
	registry := agentruntime.NewRegistry()
	master := distnode.NewMaster(0, time.Minute, nil)

	l := &masterLocator{registry: registry, master: master}

	_, known := l.IsLocal("ghost")
	assert.False(t, known, "an id neither local nor placed must be unknown")
}

func TestMasterLocatorFallsBackToPlacement(t *testing.T) {
	registry := agentruntime.NewRegistry()
	master := distnode.NewMaster(1, time.Minute, nil)
	master.RegisterWorker("w1", "host1", 9001)
	master.ClaimAgent("w1", "a0")

	l := &masterLocator{registry: registry, master: master}

	local, known := l.IsLocal("a0")
	assert.True(t, known)
	assert.False(t, local, "a0 is hosted by a worker, not this node")
}

func TestWorkerLocatorUnknownAgentAssumedForwardable(t *testing.T) {
	registry := agentruntime.NewRegistry()
	l := &workerLocator{registry: registry}

	local, known := l.IsLocal("somewhere-else")
	assert.False(t, local)
	assert.True(t, known, "a worker has no global view, so it forwards anything it doesn't host")
}

func startStubWorkerServer(t *testing.T, agentID, key string, value any) (addr string, port int) {
	t.Helper()
	addr, port, _ = startStubWorkerServerWithLifecycle(t, agentID, key, value)
	return addr, port
}

func startStubWorkerServerWithLifecycle(t *testing.T, agentID, key string, value any) (addr string, port int, lifecycle *distnode.Lifecycle) {
	t.Helper()
	lifecycle = distnode.NewLifecycle()
	server := distnode.NewServer(distnode.RoleWorker, "w1", lifecycle)
	server.SetEnvAccessor(&fakeWorkerEnv{agentID: agentID, key: key, value: value})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = server.StartWithListener(ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	})

	tcpAddr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", tcpAddr.Port, lifecycle
}

type fakeWorkerEnv struct {
	agentID string
	key     string
	value   any
}

func (f *fakeWorkerEnv) GetData(ctx context.Context, k string, def any) any { return def }
func (f *fakeWorkerEnv) UpdateData(ctx context.Context, k string, v any)    {}
func (f *fakeWorkerEnv) StopSimulation()                                   {}

func (f *fakeWorkerEnv) GetAgentData(agentID, key string, def any) any {
	if agentID == f.agentID && key == f.key {
		return f.value
	}
	return def
}

func (f *fakeWorkerEnv) GetAgentDataByType(agentType, key string) map[string]any {
	return map[string]any{f.agentID: f.value}
}

func TestRemoteAgentSourceQueriesOwningWorker(t *testing.T) {
	addr, port := startStubWorkerServer(t, "a0", "mood", "curious")

	master := distnode.NewMaster(1, time.Minute, distnode.NewClient(time.Second))
	master.RegisterWorker("w1", addr, port)
	master.ClaimAgent("w1", "a0")

	src := &remoteAgentSource{client: distnode.NewClient(time.Second), master: master}

	v, ok := src.GetAgentData("a0", "mood", "default")
	require.True(t, ok)
	assert.Equal(t, "curious", v)

	_, ok = src.GetAgentData("unplaced", "mood", "default")
	assert.False(t, ok)

	byType := src.GetAgentDataByType("villager", "mood")
	assert.Equal(t, "curious", byType["a0"])
}
