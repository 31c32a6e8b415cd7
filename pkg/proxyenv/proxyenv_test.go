package proxyenv

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/codeready-toolchain/agentsim/pkg/distnode"
	"github.com/codeready-toolchain/agentsim/pkg/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnv struct {
	data      map[string]any
	agentData map[string]map[string]any
}

func (f *fakeEnv) GetData(ctx context.Context, k string, def any) any {
	if v, ok := f.data[k]; ok {
		return v
	}
	return def
}

func (f *fakeEnv) UpdateData(ctx context.Context, k string, v any) {
	if f.data == nil {
		f.data = map[string]any{}
	}
	f.data[k] = v
}

func (f *fakeEnv) GetAgentData(agentID, key string, def any) any {
	if m, ok := f.agentData[agentID]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return def
}

func (f *fakeEnv) GetAgentDataByType(agentType, key string) map[string]any {
	out := map[string]any{}
	for id, m := range f.agentData {
		if v, ok := m[key]; ok {
			out[id] = v
		}
	}
	return out
}

func (f *fakeEnv) StopSimulation() {}

// startMaster boots a distnode.Server acting as a master with an
// EnvEventHandler wired as its event receiver, on a random local port.
func startMaster(t *testing.T, env *fakeEnv) (addr string, port int) {
	t.Helper()
	master := distnode.NewMaster(0, time.Minute, distnode.NewClient(time.Second))
	s := distnode.NewServer(distnode.RoleMaster, "master-1", distnode.NewLifecycle())
	s.SetMaster(master)
	s.SetEnvAccessor(env)
	s.SetEventReceiver(distnode.NewEnvEventHandler(env, distnode.NewClient(time.Second)))

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

// startWorkerReceiver boots a distnode.Server for the worker side that
// routes inbound events through a Receiver wrapping proxy.
func startWorkerReceiver(t *testing.T, proxy *ProxyEnv, local LocalReceiver) (addr string, port int) {
	t.Helper()
	s := distnode.NewServer(distnode.RoleWorker, "worker-1", distnode.NewLifecycle())
	s.SetEventReceiver(NewReceiver(proxy, local))

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

type bufReceiver struct {
	got []event.Event
}

func (b *bufReceiver) Enqueue(ev event.Event) { b.got = append(b.got, ev) }

func TestProxyEnvGetDataRoundTrip(t *testing.T) {
	env := &fakeEnv{data: map[string]any{"k1": "v1"}}
	masterAddr, masterPort := startMaster(t, env)

	local := &bufReceiver{}
	proxy := New(Config{MasterAddr: masterAddr, MasterPort: masterPort, Timeout: 2 * time.Second}, distnode.NewClient(time.Second))
	workerAddr, workerPort := startWorkerReceiver(t, proxy, local)
	proxy.cfg.SelfAddr = workerAddr
	proxy.cfg.SelfPort = workerPort

	got := proxy.GetData(context.Background(), "k1", "fallback")
	assert.Equal(t, "v1", got)
}

func TestProxyEnvGetDataMissingKeyReturnsDefault(t *testing.T) {
	env := &fakeEnv{}
	masterAddr, masterPort := startMaster(t, env)
	local := &bufReceiver{}
	proxy := New(Config{MasterAddr: masterAddr, MasterPort: masterPort, Timeout: 2 * time.Second}, distnode.NewClient(time.Second))
	workerAddr, workerPort := startWorkerReceiver(t, proxy, local)
	proxy.cfg.SelfAddr = workerAddr
	proxy.cfg.SelfPort = workerPort

	got := proxy.GetData(context.Background(), "ghost", "fallback")
	assert.Equal(t, "fallback", got)
}

func TestProxyEnvUpdateDataRoundTrip(t *testing.T) {
	env := &fakeEnv{}
	masterAddr, masterPort := startMaster(t, env)
	local := &bufReceiver{}
	proxy := New(Config{MasterAddr: masterAddr, MasterPort: masterPort, Timeout: 2 * time.Second}, distnode.NewClient(time.Second))
	workerAddr, workerPort := startWorkerReceiver(t, proxy, local)
	proxy.cfg.SelfAddr = workerAddr
	proxy.cfg.SelfPort = workerPort

	proxy.UpdateData(context.Background(), "k2", "v2")
	assert.Eventually(t, func() bool {
		return env.GetData(context.Background(), "k2", nil) == "v2"
	}, time.Second, 5*time.Millisecond)
}

func TestProxyEnvTimesOutWhenMasterUnreachable(t *testing.T) {
	proxy := New(Config{MasterAddr: "127.0.0.1", MasterPort: 1, Timeout: 50 * time.Millisecond}, distnode.NewClient(20*time.Millisecond))
	got := proxy.GetData(context.Background(), "k1", "fallback")
	assert.Equal(t, "fallback", got)
}

func TestReceiverFallsThroughToLocalForUnrelatedEvent(t *testing.T) {
	proxy := New(Config{Timeout: time.Second}, distnode.NewClient(time.Second))
	local := &bufReceiver{}
	r := NewReceiver(proxy, local)

	r.Enqueue(event.Event{Kind: event.KindStart, EventID: "e1"})
	require.Len(t, local.got, 1)
}

func TestReceiverDeliversResponseToPendingFuture(t *testing.T) {
	proxy := New(Config{Timeout: time.Second}, distnode.NewClient(time.Second))
	local := &bufReceiver{}
	r := NewReceiver(proxy, local)

	ch := proxy.register("r1")
	r.Enqueue(event.Event{Kind: event.KindDataResponse, Payload: map[string]any{"request_id": "r1", "value": "x"}})

	select {
	case resp := <-ch:
		assert.Equal(t, "x", resp.Payload["value"])
	case <-time.After(time.Second):
		t.Fatal("expected delivery to pending future")
	}
	assert.Empty(t, local.got)
}
