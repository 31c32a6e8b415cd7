package distnode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/codeready-toolchain/agentsim/pkg/event"
)

// Client issues distnode RPCs over JSON-over-HTTP. Used both by a master's
// EventSender (forwarding to workers) and by pkg/proxyenv (a worker talking
// to its master).
type Client struct {
	httpClient *http.Client
}

// NewClient builds a Client with the given per-request timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

func baseURL(addr string, port int) string {
	return fmt.Sprintf("http://%s:%d/distnode", addr, port)
}

func (c *Client) doJSON(ctx context.Context, method, url string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("distnode client: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("distnode client: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("distnode client: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("distnode client: %s %s: status %d: %s", method, url, resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// RegisterWorker registers with the master at addr:port.
func (c *Client) RegisterWorker(ctx context.Context, addr string, port int, workerID, selfAddr string, selfPort int) error {
	return c.doJSON(ctx, http.MethodPost, baseURL(addr, port)+"/register-worker",
		registerWorkerRequest{WorkerID: workerID, Address: selfAddr, Port: selfPort}, nil)
}

// Heartbeat pings the master.
func (c *Client) Heartbeat(ctx context.Context, addr string, port int, workerID string) error {
	return c.doJSON(ctx, http.MethodPost, baseURL(addr, port)+"/heartbeat",
		heartbeatRequest{WorkerID: workerID}, nil)
}

// ClaimAgents reports the agent ids this worker hosts to the master,
// populating its placement map without going through AllocateAgent.
func (c *Client) ClaimAgents(ctx context.Context, addr string, port int, workerID string, agentIDs []string) error {
	return c.doJSON(ctx, http.MethodPost, baseURL(addr, port)+"/claim-agents",
		claimAgentsRequest{WorkerID: workerID, AgentIDs: agentIDs}, nil)
}

// SendEvent delivers ev to the node at addr:port. Satisfies EventSender.
func (c *Client) SendEvent(ctx context.Context, addr string, port int, ev event.Event) error {
	return c.doJSON(ctx, http.MethodPost, baseURL(addr, port)+"/event", eventRequest{Event: ev}, nil)
}

// GetEnvData reads an env key from the master.
func (c *Client) GetEnvData(ctx context.Context, addr string, port int, key string) (any, error) {
	var out struct {
		Value any `json:"value"`
	}
	url := fmt.Sprintf("%s/env-data?key=%s", baseURL(addr, port), key)
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

// UpdateEnvData writes an env key on the master.
func (c *Client) UpdateEnvData(ctx context.Context, addr string, port int, key string, value any) error {
	return c.doJSON(ctx, http.MethodPost, baseURL(addr, port)+"/env-data",
		envDataRequest{Key: key, Value: value}, nil)
}

// GetAgentData reads one agent field from the master.
func (c *Client) GetAgentData(ctx context.Context, addr string, port int, agentID, key string) (any, error) {
	var out struct {
		Value any `json:"value"`
	}
	url := fmt.Sprintf("%s/agent-data?agent_id=%s&key=%s", baseURL(addr, port), agentID, key)
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

// GetAgentDataByType fans a type query out through the master.
func (c *Client) GetAgentDataByType(ctx context.Context, addr string, port int, agentType, key string) (map[string]any, error) {
	out := map[string]any{}
	url := fmt.Sprintf("%s/agent-data-by-type?agent_type=%s&key=%s", baseURL(addr, port), agentType, key)
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StopSimulation asks the master to begin shutdown.
func (c *Client) StopSimulation(ctx context.Context, addr string, port int) error {
	return c.doJSON(ctx, http.MethodPost, baseURL(addr, port)+"/stop", nil, nil)
}

// Terminate tells the node at addr:port to enter its shutting-down state,
// used by a master fanning out shutdown to every worker it knows about.
func (c *Client) Terminate(ctx context.Context, addr string, port int) error {
	return c.doJSON(ctx, http.MethodPost, baseURL(addr, port)+"/terminate", nil, nil)
}
