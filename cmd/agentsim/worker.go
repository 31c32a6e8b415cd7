package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/agentsim/pkg/batch"
	"github.com/codeready-toolchain/agentsim/pkg/dispatch"
	"github.com/codeready-toolchain/agentsim/pkg/distnode"
	"github.com/codeready-toolchain/agentsim/pkg/event"
	"github.com/codeready-toolchain/agentsim/pkg/llmclient"
	"github.com/codeready-toolchain/agentsim/pkg/masking"
	"github.com/codeready-toolchain/agentsim/pkg/proxyenv"
	"github.com/codeready-toolchain/agentsim/pkg/scene"
	"github.com/codeready-toolchain/agentsim/pkg/simconfig"
)

const (
	heartbeatInterval  = 5 * time.Second
	lifecyclePollEvery = 500 * time.Millisecond
)

// runWorker builds and hosts a static shard of the scene's agents, reports
// them to the master over ClaimAgents, and proxies every env-state and
// cross-worker operation through ProxyEnv. A worker has
// no local Environment: it never runs the round clock, only reacts to
// StartEvents the master forwards in.
func runWorker(ctx context.Context, nodeID string, cfg *simconfig.Config, sc *scene.Scene) error {
	// A real deployment shares one trail_id across every node in the run by
	// passing it down at launch (the master mints it and the orchestrator —
	// k8s job template, compose env_file — propagates it to each worker).
	// Absent that, a worker mints its own so decisions are still recorded,
	// just without cross-node trail correlation.
	trailID := getEnv("TRAIL_ID", "")
	if trailID == "" {
		trailID = nodeID + "-standalone-trail"
		slog.Warn("main: worker started without TRAIL_ID, decisions will not correlate with the master's trail", "node_id", nodeID)
	}
	universeID := "main"

	selfAddr := getEnv("WORKER_ADDRESS", "127.0.0.1")
	selfPort := cfg.Distribution.WorkerPort
	masterAddr := cfg.Distribution.MasterAddress
	masterPort := cfg.Distribution.MasterPort

	sinkImpl, closeSink, err := buildSink(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeSink()

	processor := batch.New(batch.Config{}, sinkImpl)
	processor.Start(ctx)
	defer processor.Stop()

	client := distnode.NewClient(rpcTimeout)
	proxy := proxyenv.New(proxyenv.Config{
		MasterAddr: masterAddr,
		MasterPort: masterPort,
		SelfAddr:   selfAddr,
		SelfPort:   selfPort,
		Timeout:    rpcTimeout,
	}, client)

	bus := event.NewBus()
	lifecycle := distnode.NewLifecycle()

	registry, err := buildRegistry(sc, cfg.Agent, sharedCollaborators{
		LLM:        llmclient.NewRouter(),
		Decisions:  &decisionQueuer{processor: processor},
		EnvData:    proxy,
		Masker:     masking.NewService(),
		Step:       func() int { return 0 }, // the round clock lives on the master; not threaded back yet
		TrailID:    trailID,
		UniverseID: universeID,
	})
	if err != nil {
		return err
	}

	server := distnode.NewServer(distnode.RoleWorker, nodeID, lifecycle)
	server.SetEnvAccessor(distnode.NewWorkerAgentAccessor(registry))
	server.SetEventReceiver(proxyenv.NewReceiver(proxy, bus))

	// StateShuttingDown is only reachable from Ready/Running (distnode.go's
	// allowed-transitions table), so this worker must advance through both
	// before waitShutdown's poll on /terminate can ever see it.
	_ = lifecycle.Transition(distnode.StateReady)
	_ = lifecycle.Transition(distnode.StateRunning)

	addr := fmt.Sprintf(":%d", selfPort)
	go server.Start(addr)

	heartbeatCtx, cancelHeartbeat := context.WithCancel(ctx)
	defer cancelHeartbeat()
	go func() {
		if err := distnode.RunHeartbeatLoop(heartbeatCtx, client, masterAddr, masterPort, nodeID, selfAddr, selfPort, heartbeatInterval); err != nil {
			slog.Error("main: worker registration failed", "error", err)
		}
	}()

	if err := client.ClaimAgents(ctx, masterAddr, masterPort, nodeID, registry.AllAgentIDs()); err != nil {
		return fmt.Errorf("agentsim: claiming agents with master: %w", err)
	}

	locator := &workerLocator{registry: registry}
	forwarder := &workerForwarder{client: client, masterAddr: masterAddr, masterPort: masterPort}
	envSink := &workerEnvSink{client: client, masterAddr: masterAddr, masterPort: masterPort}
	d := dispatch.New(bus, registry, forwarder, envSink, locator, 0)

	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		d.Run(ctx)
	}()

	runErr := waitShutdown(ctx, lifecycle)
	_ = server.Shutdown(context.Background())
	<-dispatcherDone
	return runErr
}

// waitShutdown blocks until the master tells this worker to terminate (via
// the distnode /terminate route, observed through lifecycle) or ctx is
// cancelled.
func waitShutdown(ctx context.Context, lifecycle *distnode.Lifecycle) error {
	ticker := time.NewTicker(lifecyclePollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if lifecycle.State() == distnode.StateShuttingDown {
				return nil
			}
		}
	}
}
