package llmclient

import (
	"context"
	"sync"
)

// Router load-balances Call/Embed across a set of named Client instances
// using round-robin selection, and accumulates per-client TokenUsage for
// an out-of-scope monitor to poll. One Router exists per call kind (chat,
// embedding) since the simulator config keeps those lists separate.
type Router struct {
	mu      sync.Mutex
	clients []Client
	next    int
	usage   map[string]TokenUsage
}

// NewRouter builds a router over the given clients, in the order they
// should be tried round-robin.
func NewRouter(clients ...Client) *Router {
	return &Router{
		clients: clients,
		usage:   make(map[string]TokenUsage),
	}
}

// pick returns the next client round-robin and advances the cursor.
func (r *Router) pick() (Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.clients) == 0 {
		return nil, false
	}
	c := r.clients[r.next%len(r.clients)]
	r.next++
	return c, true
}

// Call routes to the next client in rotation and records its usage.
func (r *Router) Call(ctx context.Context, system string, messages []Message) (Response, error) {
	c, ok := r.pick()
	if !ok {
		return Response{}, ErrNoClients
	}
	resp, err := c.Call(ctx, system, messages)
	if err != nil {
		return resp, err
	}
	r.recordUsage(c.Name(), resp.Usage)
	return resp, nil
}

// Embed routes to the next client in rotation.
func (r *Router) Embed(ctx context.Context, text string) ([]float64, error) {
	c, ok := r.pick()
	if !ok {
		return nil, ErrNoClients
	}
	return c.Embed(ctx, text)
}

func (r *Router) recordUsage(name string, u TokenUsage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	agg := r.usage[name]
	agg.InputTokens += u.InputTokens
	agg.OutputTokens += u.OutputTokens
	agg.ThinkingTokens += u.ThinkingTokens
	r.usage[name] = agg
}

// Usage returns a snapshot of accumulated token usage per client name, for
// a caller (a monitor or dashboard) to poll separately from chat/embed.
func (r *Router) Usage() map[string]TokenUsage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]TokenUsage, len(r.usage))
	for k, v := range r.usage {
		out[k] = v
	}
	return out
}

// Len reports how many clients are registered.
func (r *Router) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
