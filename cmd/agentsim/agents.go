package main

import (
	"fmt"

	"github.com/codeready-toolchain/agentsim/pkg/agentruntime"
	"github.com/codeready-toolchain/agentsim/pkg/llmclient"
	"github.com/codeready-toolchain/agentsim/pkg/masking"
	"github.com/codeready-toolchain/agentsim/pkg/memory"
	"github.com/codeready-toolchain/agentsim/pkg/scene"
	"github.com/codeready-toolchain/agentsim/pkg/simconfig"
)

// sharedCollaborators bundles everything buildRegistry needs besides the
// scene and per-type instance counts, so single/master/worker wiring can
// each assemble it once and reuse it across agent types.
type sharedCollaborators struct {
	LLM        *llmclient.Router
	Decisions  agentruntime.DecisionSink
	EnvData    agentruntime.EnvDataAccessor
	Masker     *masking.Service
	Step       agentruntime.StepProvider
	TrailID    string
	UniverseID string
}

// newMemoryStrategy builds the agent.memory-configured strategy. Concrete
// reasoning strategies belong to scene handler code (out of scope); this
// core ships only the window/no-op built-ins.
func newMemoryStrategy(cfg simconfig.MemoryConfig) memory.Strategy {
	switch cfg.Strategy {
	case "window":
		capacity := 20
		if v, ok := cfg.Extra["capacity"]; ok {
			if f, ok := v.(int); ok {
				capacity = f
			} else if f, ok := v.(float64); ok {
				capacity = int(f)
			}
		}
		return memory.NewWindowStrategy(capacity)
	default:
		return memory.NoopStrategy{}
	}
}

// buildRegistry instantiates one agentruntime.Runtime per profile instance
// for every agent type listed in agentCfg.Profile, seeding profiles from sc
// and registering the built-in default handler (handlers.go).
func buildRegistry(sc *scene.Scene, agentCfg simconfig.AgentSectionConfig, collab sharedCollaborators) (*agentruntime.Registry, error) {
	registry := agentruntime.NewRegistry()
	mem := newMemoryStrategy(agentCfg.Memory)

	for agentType, pc := range agentCfg.Profile {
		profiles, err := sc.BuildProfiles(agentType, pc.Count)
		if err != nil {
			return nil, fmt.Errorf("agentsim: building profiles for %s: %w", agentType, err)
		}

		systemPrompt := sc.Manifest.AgentTypes[agentType]
		for _, prof := range profiles {
			rt := agentruntime.New(prof, agentruntime.Config{
				AgentType:    agentType,
				SystemPrompt: systemPrompt,
				LLM:          collab.LLM,
				Decisions:    collab.Decisions,
				EnvData:      collab.EnvData,
				Masker:       collab.Masker,
				Step:         collab.Step,
				TrailID:      collab.TrailID,
				UniverseID:   collab.UniverseID,
			})
			rt.Memory = mem
			registerDefaultHandlers(rt)
			registry.Add(rt)
		}
	}

	return registry, nil
}
