package distnode

import (
	"context"
	"net"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/codeready-toolchain/agentsim/pkg/event"
)

// EnvAccessor is the subset of *environment.Environment the RPC surface
// needs. Declared locally (rather than imported) so pkg/distnode does not
// force every caller to depend on pkg/environment's full surface —
// *environment.Environment satisfies this interface as-is.
type EnvAccessor interface {
	GetData(ctx context.Context, k string, def any) any
	UpdateData(ctx context.Context, k string, v any)
	GetAgentData(agentID, key string, def any) any
	GetAgentDataByType(agentType, key string) map[string]any
	StopSimulation()
}

// EventReceiver accepts an inbound event for local delivery, normally
// *event.Bus.Enqueue.
type EventReceiver interface {
	Enqueue(ev event.Event)
}

// Server exposes the master/worker RPC surface as JSON-over-HTTP handlers,
// using the same Echo v5 wiring shape throughout (Set* methods, route
// groups, graceful Start/Shutdown).
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	role       Role
	nodeID     string
	master     *Master       // nil on a worker
	env        EnvAccessor   // nil if this node has no local environment (pure worker)
	receiver   EventReceiver // nil if this node does not accept inbound events
	lifecycle  *Lifecycle
}

// NewServer builds the Echo app and registers every distnode route.
func NewServer(role Role, nodeID string, lifecycle *Lifecycle) *Server {
	e := echo.New()
	s := &Server{echo: e, role: role, nodeID: nodeID, lifecycle: lifecycle}
	e.Use(middleware.BodyLimit(2 * 1024 * 1024))
	s.setupRoutes()
	return s
}

// SetMaster wires the master-side registry (master role only).
func (s *Server) SetMaster(m *Master) { s.master = m }

// SetEnvAccessor wires the local environment data access (single/master, or
// a worker's proxy-backed accessor if it chooses to expose one).
func (s *Server) SetEnvAccessor(env EnvAccessor) { s.env = env }

// SetEventReceiver wires where inbound forwarded events are delivered
// (worker role: the local bus).
func (s *Server) SetEventReceiver(r EventReceiver) { s.receiver = r }

type registerWorkerRequest struct {
	WorkerID string `json:"worker_id"`
	Address  string `json:"address"`
	Port     int    `json:"port"`
}

type heartbeatRequest struct {
	WorkerID string `json:"worker_id"`
}

type claimAgentsRequest struct {
	WorkerID string   `json:"worker_id"`
	AgentIDs []string `json:"agent_ids"`
}

type eventRequest struct {
	Event event.Event `json:"event"`
}

type envDataRequest struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func (s *Server) setupRoutes() {
	g := s.echo.Group("/distnode")

	g.POST("/register-worker", s.handleRegisterWorker)
	g.POST("/heartbeat", s.handleHeartbeat)
	g.POST("/claim-agents", s.handleClaimAgents)
	g.POST("/event", s.handleEvent)
	g.GET("/env-data", s.handleGetEnvData)
	g.POST("/env-data", s.handleUpdateEnvData)
	g.GET("/agent-data", s.handleGetAgentData)
	g.GET("/agent-data-by-type", s.handleGetAgentDataByType)
	g.POST("/stop", s.handleStop)
	g.POST("/terminate", s.handleTerminate)
}

func (s *Server) handleRegisterWorker(c *echo.Context) error {
	if s.master == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "not a master node")
	}
	var req registerWorkerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s.master.RegisterWorker(req.WorkerID, req.Address, req.Port)
	return c.JSON(http.StatusOK, map[string]any{"ready": s.master.Ready()})
}

func (s *Server) handleHeartbeat(c *echo.Context) error {
	if s.master == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "not a master node")
	}
	var req heartbeatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !s.master.Heartbeat(req.WorkerID) {
		return echo.NewHTTPError(http.StatusNotFound, "unknown worker")
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleClaimAgents(c *echo.Context) error {
	if s.master == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "not a master node")
	}
	var req claimAgentsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	for _, agentID := range req.AgentIDs {
		if !s.master.ClaimAgent(req.WorkerID, agentID) {
			return echo.NewHTTPError(http.StatusNotFound, "unknown worker")
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleEvent(c *echo.Context) error {
	if s.receiver == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "node does not accept events")
	}
	var req eventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s.receiver.Enqueue(req.Event)
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleGetEnvData(c *echo.Context) error {
	if s.env == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "node has no environment")
	}
	key := c.QueryParam("key")
	v := s.env.GetData(c.Request().Context(), key, nil)
	return c.JSON(http.StatusOK, map[string]any{"value": v})
}

func (s *Server) handleUpdateEnvData(c *echo.Context) error {
	if s.env == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "node has no environment")
	}
	var req envDataRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s.env.UpdateData(c.Request().Context(), req.Key, req.Value)
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleGetAgentData(c *echo.Context) error {
	if s.env == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "node has no environment")
	}
	agentID := c.QueryParam("agent_id")
	key := c.QueryParam("key")
	v := s.env.GetAgentData(agentID, key, nil)
	return c.JSON(http.StatusOK, map[string]any{"value": v})
}

func (s *Server) handleGetAgentDataByType(c *echo.Context) error {
	if s.env == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "node has no environment")
	}
	agentType := c.QueryParam("agent_type")
	key := c.QueryParam("key")
	return c.JSON(http.StatusOK, s.env.GetAgentDataByType(agentType, key))
}

func (s *Server) handleStop(c *echo.Context) error {
	if s.env == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "node has no environment")
	}
	s.env.StopSimulation()
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleTerminate(c *echo.Context) error {
	if s.master != nil {
		s.master.BeginShutdown()
	}
	if s.lifecycle != nil {
		_ = s.lifecycle.Transition(StateShuttingDown)
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

// Start starts the HTTP server on addr (non-blocking except for the accept
// loop — call in a goroutine).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo, ReadHeaderTimeout: 5 * time.Second}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts on a pre-created listener, used by tests serving
// on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo, ReadHeaderTimeout: 5 * time.Second}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
