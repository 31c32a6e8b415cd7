package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codeready-toolchain/agentsim/pkg/agentruntime"
	"github.com/codeready-toolchain/agentsim/pkg/event"
)

// registerDefaultHandlers wires the one built-in reaction every agent gets
// out of the box: on StartEvent, ask the LLM façade for a reaction given
// the agent's own public profile as observation. Bespoke per-scenario
// handler logic is scene-author code registered the same way
// (rt.RegisterEvent), and is out of scope here.
func registerDefaultHandlers(rt *agentruntime.Runtime) {
	rt.RegisterEvent(event.KindStart, handleStart)
}

func handleStart(ctx context.Context, rt *agentruntime.Runtime, ev event.Event) ([]event.Event, error) {
	observation := fmt.Sprintf("%v", rt.Profile.Snapshot())
	instruction := "Given your current state, describe your next action as a JSON object."

	reaction, err := rt.GenerateReaction(ctx, ev, instruction, observation)
	if err != nil {
		return nil, err
	}
	slog.Debug("agentsim: default handler produced reaction", "agent", rt.AgentID(), "reaction", reaction)
	return nil, nil
}
