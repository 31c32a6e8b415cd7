package main

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/agentsim/pkg/batch"
	"github.com/codeready-toolchain/agentsim/pkg/dispatch"
	"github.com/codeready-toolchain/agentsim/pkg/environment"
	"github.com/codeready-toolchain/agentsim/pkg/event"
	"github.com/codeready-toolchain/agentsim/pkg/llmclient"
	"github.com/codeready-toolchain/agentsim/pkg/masking"
	"github.com/codeready-toolchain/agentsim/pkg/scene"
	"github.com/codeready-toolchain/agentsim/pkg/simconfig"
)

// drainInterval is how often single/master nodes drain the environment's
// pending decision/event buffers into the local batch processor.
const drainInterval = 200 * time.Millisecond

// runSingle runs every component in one process: no distribution layer,
// no remote forwarding, every agent local.
func runSingle(ctx context.Context, nodeID string, cfg *simconfig.Config, sc *scene.Scene) error {
	trailID := uuid.NewString()

	sinkImpl, closeSink, err := buildSink(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeSink()

	processor := batch.New(batch.Config{}, sinkImpl)
	processor.Start(ctx)
	defer processor.Stop()

	bus := event.NewBus()
	var env *environment.Environment
	env = environment.New(environment.Config{
		Mode:       environment.Mode(cfg.Simulator.Environment.Mode),
		MaxSteps:   cfg.Simulator.Environment.MaxSteps,
		TrailID:    trailID,
		UniverseID: "main",
	}, bus, buildStore(), func(reason environment.TerminationReason) {
		flushPending(ctx, env, processor)
		processor.Stop()
	})

	registry, err := buildRegistry(sc, cfg.Agent, sharedCollaborators{
		LLM:        llmclient.NewRouter(),
		Decisions:  env,
		EnvData:    env,
		Masker:     masking.NewService(),
		Step:       env.RoundNumber,
		TrailID:    trailID,
		UniverseID: "main",
	})
	if err != nil {
		return err
	}
	env.RegisterSource(registry)
	env.SetParticipants(registry.AllAgentIDs())

	d := dispatch.New(bus, registry, nil, &envEventSink{env: env}, registry, 0)

	go runDrainLoop(ctx, env, processor)

	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		d.Run(ctx)
	}()

	runErr := env.Run(ctx, d.Quiescent)
	<-dispatcherDone
	return runErr
}

func flushPending(ctx context.Context, env *environment.Environment, processor *batch.Processor) {
	evs, decs := env.DrainPending()
	for _, r := range evs {
		processor.AddStorageEvent(r)
	}
	for _, r := range decs {
		processor.AddDecisionRecord(r)
	}
}

func runDrainLoop(ctx context.Context, env *environment.Environment, processor *batch.Processor) {
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			flushPending(ctx, env, processor)
			if done, _ := env.Terminated(); done {
				return
			}
		}
	}
}
