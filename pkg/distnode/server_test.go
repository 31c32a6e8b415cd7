package distnode

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/codeready-toolchain/agentsim/pkg/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEnv struct {
	data      map[string]any
	agentData map[string]map[string]any // agent_id -> key -> value
}

func (s *stubEnv) GetData(ctx context.Context, k string, def any) any {
	if v, ok := s.data[k]; ok {
		return v
	}
	return def
}

func (s *stubEnv) UpdateData(ctx context.Context, k string, v any) {
	if s.data == nil {
		s.data = map[string]any{}
	}
	s.data[k] = v
}

func (s *stubEnv) GetAgentData(agentID, key string, def any) any {
	if m, ok := s.agentData[agentID]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return def
}

func (s *stubEnv) GetAgentDataByType(agentType, key string) map[string]any {
	out := map[string]any{}
	for id, m := range s.agentData {
		if v, ok := m[key]; ok {
			out[id] = v
		}
	}
	return out
}

func (s *stubEnv) StopSimulation() {
	if s.data == nil {
		s.data = map[string]any{}
	}
	s.data["stopped"] = true
}

type bufBus struct {
	got []event.Event
}

func (b *bufBus) Enqueue(ev event.Event) { b.got = append(b.got, ev) }

func startTestServer(t *testing.T, s *Server) (addr string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = s.StartWithListener(ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})

	tcpAddr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", tcpAddr.Port
}

func TestServerRegisterWorkerAndHeartbeat(t *testing.T) {
	master := NewMaster(1, time.Minute, &stubSender{})
	s := NewServer(RoleMaster, "master-1", NewLifecycle())
	s.SetMaster(master)
	addr, port := startTestServer(t, s)

	client := NewClient(time.Second)
	require.Eventually(t, func() bool {
		return client.RegisterWorker(context.Background(), addr, port, "w1", "127.0.0.1", 1) == nil
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, client.Heartbeat(context.Background(), addr, port, "w1"))
	assert.Equal(t, 1, master.WorkerCount())
}

func TestServerEnvDataRoundTrip(t *testing.T) {
	env := &stubEnv{}
	s := NewServer(RoleMaster, "master-1", NewLifecycle())
	s.SetEnvAccessor(env)
	addr, port := startTestServer(t, s)
	client := NewClient(time.Second)

	require.Eventually(t, func() bool {
		return client.UpdateEnvData(context.Background(), addr, port, "k1", "v1") == nil
	}, time.Second, 5*time.Millisecond)

	v, err := client.GetEnvData(context.Background(), addr, port, "k1")
	require.NoError(t, err)
	assert.Equal(t, "v1", v)
}

func TestServerSendEventDeliversToReceiver(t *testing.T) {
	bus := &bufBus{}
	s := NewServer(RoleWorker, "worker-1", NewLifecycle())
	s.SetEventReceiver(bus)
	addr, port := startTestServer(t, s)
	client := NewClient(time.Second)

	require.Eventually(t, func() bool {
		return client.SendEvent(context.Background(), addr, port, event.Event{EventID: "e1", ToAgentID: "a1"}) == nil
	}, time.Second, 5*time.Millisecond)

	require.Len(t, bus.got, 1)
	assert.Equal(t, "e1", bus.got[0].EventID)
}

func TestServerStopSimulationInvokesAccessor(t *testing.T) {
	env := &stubEnv{}
	s := NewServer(RoleMaster, "master-1", NewLifecycle())
	s.SetEnvAccessor(env)
	addr, port := startTestServer(t, s)
	client := NewClient(time.Second)

	require.Eventually(t, func() bool {
		return client.StopSimulation(context.Background(), addr, port) == nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, true, env.data["stopped"])
}

func TestServerRejectsRegisterWorkerWhenNotMaster(t *testing.T) {
	s := NewServer(RoleWorker, "worker-1", NewLifecycle())
	addr, port := startTestServer(t, s)
	client := NewClient(time.Second)

	var err error
	require.Eventually(t, func() bool {
		err = client.RegisterWorker(context.Background(), addr, port, "w1", "a", 1)
		return true
	}, time.Second, 5*time.Millisecond)
	assert.Error(t, err)
}
