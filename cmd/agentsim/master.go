package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/agentsim/pkg/batch"
	"github.com/codeready-toolchain/agentsim/pkg/dispatch"
	"github.com/codeready-toolchain/agentsim/pkg/distnode"
	"github.com/codeready-toolchain/agentsim/pkg/environment"
	"github.com/codeready-toolchain/agentsim/pkg/event"
	"github.com/codeready-toolchain/agentsim/pkg/llmclient"
	"github.com/codeready-toolchain/agentsim/pkg/masking"
	"github.com/codeready-toolchain/agentsim/pkg/scene"
	"github.com/codeready-toolchain/agentsim/pkg/simconfig"
)

const (
	workerTimeout      = 30 * time.Second
	livenessSweepEvery = 10 * time.Second
	rpcTimeout         = 10 * time.Second
	readyPollInterval  = 200 * time.Millisecond
	settleAfterReady   = 2 * time.Second
)

// runMaster hosts the authoritative Environment, accepts worker registrations
// and agent claims over distnode, and may itself host a share of agents
// (a master with zero locally-configured agent types is the common case;
// nothing stops a master from also acting as a worker).
func runMaster(ctx context.Context, nodeID string, cfg *simconfig.Config, sc *scene.Scene) error {
	trailID := uuid.NewString()
	universeID := "main"

	sinkImpl, closeSink, err := buildSink(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeSink()

	processor := batch.New(batch.Config{}, sinkImpl)
	processor.Start(ctx)
	defer processor.Stop()

	bus := event.NewBus()
	client := distnode.NewClient(rpcTimeout)
	master := distnode.NewMaster(cfg.Distribution.ExpectedWorkers, workerTimeout, client)
	lifecycle := distnode.NewLifecycle()

	server := distnode.NewServer(distnode.RoleMaster, nodeID, lifecycle)
	server.SetMaster(master)
	server.SetEventReceiver(bus)

	var env *environment.Environment
	env = environment.New(environment.Config{
		Mode:       environment.Mode(cfg.Simulator.Environment.Mode),
		MaxSteps:   cfg.Simulator.Environment.MaxSteps,
		TrailID:    trailID,
		UniverseID: universeID,
	}, bus, buildStore(), func(reason environment.TerminationReason) {
		flushPending(ctx, env, processor)
		broadcastTerminate(client, master)
		processor.Stop()
	})
	server.SetEnvAccessor(env)
	dataHandler := distnode.NewEnvEventHandler(env, client)

	registry, err := buildRegistry(sc, cfg.Agent, sharedCollaborators{
		LLM:        llmclient.NewRouter(),
		Decisions:  env,
		EnvData:    env,
		Masker:     masking.NewService(),
		Step:       env.RoundNumber,
		TrailID:    trailID,
		UniverseID: universeID,
	})
	if err != nil {
		return err
	}
	env.RegisterSource(registry)
	env.RegisterSource(&remoteAgentSource{client: client, master: master})

	locator := &masterLocator{registry: registry, master: master}
	forwarder := &masterForwarder{master: master}
	d := dispatch.New(bus, registry, forwarder, &envEventSink{env: env, dataHandler: dataHandler}, locator, 0)

	addr := fmt.Sprintf(":%d", cfg.Distribution.MasterPort)
	go server.Start(addr)
	go master.RunLivenessSweep(ctx, livenessSweepEvery)

	if err := waitReady(ctx, master); err != nil {
		return err
	}
	time.Sleep(settleAfterReady)

	env.SetParticipants(append(registry.AllAgentIDs(), master.AllAgentIDs()...))

	go runDrainLoop(ctx, env, processor)

	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		d.Run(ctx)
	}()

	runErr := env.Run(ctx, d.Quiescent)
	<-dispatcherDone
	_ = server.Shutdown(context.Background())
	return runErr
}

// waitReady blocks until every expected worker has registered, or ctx is
// cancelled. A deployment with expected_workers: 0 is ready immediately —
// the master then runs agents locally with no distribution at all.
func waitReady(ctx context.Context, master *distnode.Master) error {
	if master.Ready() {
		return nil
	}
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if master.Ready() {
				return nil
			}
		}
	}
}

// broadcastTerminate tells every worker the master knows about to begin
// shutdown, so worker processes don't linger after the trail ends.
func broadcastTerminate(client *distnode.Client, master *distnode.Master) {
	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()
	for _, w := range master.ActiveWorkers() {
		_ = client.Terminate(ctx, w.Address, w.Port)
	}
}
