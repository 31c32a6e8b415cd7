// Package proxyenv implements the worker-side stand-in for the environment.
// It presents the same data-access contract as pkg/environment but forwards
// every operation to the master, correlating request/response pairs by
// request_id.
package proxyenv

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/agentsim/pkg/distnode"
	"github.com/codeready-toolchain/agentsim/pkg/event"
)

// Config configures one ProxyEnv.
type Config struct {
	MasterAddr string
	MasterPort int
	SelfAddr   string
	SelfPort   int
	Timeout    time.Duration // per-request hard timeout, no implicit retry
}

// ProxyEnv forwards get_data/update_data/get_agent_data(_by_type)/
// stop_simulation to the master. Every outbound request carries a
// request_id; Deliver completes the matching parked future when the
// paired response event arrives over the worker's distnode server
// connection.
type ProxyEnv struct {
	cfg    Config
	client *distnode.Client

	mu      sync.Mutex
	pending map[string]chan event.Event
}

// New creates a ProxyEnv. client is typically distnode.NewClient(cfg.Timeout).
func New(cfg Config, client *distnode.Client) *ProxyEnv {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &ProxyEnv{cfg: cfg, client: client, pending: make(map[string]chan event.Event)}
}

func (p *ProxyEnv) register(requestID string) chan event.Event {
	ch := make(chan event.Event, 1)
	p.mu.Lock()
	p.pending[requestID] = ch
	p.mu.Unlock()
	return ch
}

func (p *ProxyEnv) unregister(requestID string) {
	p.mu.Lock()
	delete(p.pending, requestID)
	p.mu.Unlock()
}

// Deliver routes an inbound response event to its parked future. Returns
// false if no request is waiting on it (stale/duplicate/unknown reply) —
// the caller (the worker's distnode EventReceiver) falls back to normal
// local dispatch in that case.
func (p *ProxyEnv) Deliver(ev event.Event) bool {
	requestID := ev.GetString("request_id")
	if requestID == "" {
		return false
	}
	p.mu.Lock()
	ch, ok := p.pending[requestID]
	p.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- ev:
	default:
	}
	return true
}

func (p *ProxyEnv) await(ctx context.Context, requestID string) (event.Event, error) {
	ch := p.register(requestID)
	defer p.unregister(requestID)

	timer := time.NewTimer(p.cfg.Timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return event.Event{}, ctx.Err()
	case <-timer.C:
		return event.Event{}, fmt.Errorf("proxyenv: request %s timed out after %s", requestID, p.cfg.Timeout)
	}
}

func (p *ProxyEnv) send(ctx context.Context, kind string, payload map[string]any) (event.Event, error) {
	requestID := uuid.NewString()
	payload["request_id"] = requestID
	payload["reply_addr"] = p.cfg.SelfAddr
	payload["reply_port"] = p.cfg.SelfPort

	ev := event.Event{
		FromAgentID: event.EnvAgentID,
		ToAgentID:   event.EnvAgentID,
		Kind:        kind,
		Payload:     payload,
	}

	ch := p.register(requestID)
	defer p.unregister(requestID)

	if err := p.client.SendEvent(ctx, p.cfg.MasterAddr, p.cfg.MasterPort, ev); err != nil {
		return event.Event{}, err
	}

	timer := time.NewTimer(p.cfg.Timeout)
	defer timer.Stop()
	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return event.Event{}, ctx.Err()
	case <-timer.C:
		return event.Event{}, fmt.Errorf("proxyenv: request %s timed out after %s", requestID, p.cfg.Timeout)
	}
}

// GetData forwards get_env_data_from_master. Returns def on any failure —
// get_data never fails locally.
func (p *ProxyEnv) GetData(ctx context.Context, k string, def any) any {
	resp, err := p.send(ctx, event.KindData, map[string]any{"key": k, "default": def})
	if err != nil {
		return def
	}
	v, ok := resp.Get("value")
	if !ok {
		return def
	}
	return v
}

// UpdateData forwards update_env_data_on_master. Failures are logged by the
// caller, not surfaced, mirroring Environment.UpdateData's local semantics.
func (p *ProxyEnv) UpdateData(ctx context.Context, k string, v any) {
	_, _ = p.send(ctx, event.KindDataUpdate, map[string]any{"key": k, "value": v})
}

// GetAgentData forwards to the master, which resolves the owning worker.
func (p *ProxyEnv) GetAgentData(ctx context.Context, agentID, key string, def any) any {
	v, err := p.client.GetAgentData(ctx, p.cfg.MasterAddr, p.cfg.MasterPort, agentID, key)
	if err != nil || v == nil {
		return def
	}
	return v
}

// GetAgentDataByType forwards an AgentDataByTypeEvent; the master fans out
// to every worker hosting agents of that type and merges the results.
func (p *ProxyEnv) GetAgentDataByType(ctx context.Context, agentType, key string) map[string]any {
	resp, err := p.send(ctx, event.KindAgentDataByType, map[string]any{"agent_type": agentType, "key": key})
	if err != nil {
		return map[string]any{}
	}
	values, _ := resp.Payload["values"].(map[string]any)
	if values == nil {
		return map[string]any{}
	}
	return values
}

// StopSimulation asks the master to initiate shutdown.
func (p *ProxyEnv) StopSimulation() {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
	defer cancel()
	_ = p.client.StopSimulation(ctx, p.cfg.MasterAddr, p.cfg.MasterPort)
}
