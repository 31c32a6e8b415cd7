// Package agentruntime implements each agent's handler table, the
// generate_reaction LLM invocation with decision recording, and the data
// operations handlers call.
package agentruntime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/agentsim/pkg/event"
	"github.com/codeready-toolchain/agentsim/pkg/llmclient"
	"github.com/codeready-toolchain/agentsim/pkg/masking"
	"github.com/codeready-toolchain/agentsim/pkg/memory"
	"github.com/codeready-toolchain/agentsim/pkg/profile"
	"github.com/codeready-toolchain/agentsim/pkg/record"
	"github.com/codeready-toolchain/agentsim/pkg/relationship"
	"github.com/codeready-toolchain/agentsim/pkg/simerrors"
)

// maxParseRetries bounds generate_reaction's retry-on-malformed-JSON loop.
const maxParseRetries = 2

// HandlerFunc is the handler protocol: consumes an event and the owning
// Runtime, returns follow-up events.
type HandlerFunc func(ctx context.Context, rt *Runtime, ev event.Event) ([]event.Event, error)

// LLMCaller is the subset of llmclient.Client/Router a Runtime needs.
type LLMCaller interface {
	Call(ctx context.Context, system string, messages []llmclient.Message) (llmclient.Response, error)
}

// DecisionSink receives completed DecisionRecords — normally the
// Environment (single/master) or ProxyEnv (worker).
type DecisionSink interface {
	QueueDecision(rec record.DecisionRecord)
}

// EnvDataAccessor is the remote-capable env-state read contract used by
// get_env_data — Environment on single/master, ProxyEnv on a worker.
type EnvDataAccessor interface {
	GetData(ctx context.Context, k string, def any) any
}

// StepProvider reports the current round/step number, for stamping
// decisions.
type StepProvider func() int

// Runtime owns one agent's profile, relationships, optional memory/planning
// hooks and handler table.
type Runtime struct {
	agentID      string
	agentType    string
	systemPrompt string

	Profile       *profile.AgentProfile
	Relationships *relationship.Manager
	Memory        memory.Strategy
	Planning      memory.PlanningBase

	handlersMu sync.RWMutex
	handlers   map[string]HandlerFunc

	llm       LLMCaller
	decisions DecisionSink
	envData   EnvDataAccessor
	masker    *masking.Service
	step      StepProvider

	trailID    string
	universeID string
}

// Config bundles the collaborators a Runtime needs, supplied by whatever
// wires up the scene (cmd/agentsim).
type Config struct {
	AgentType    string
	SystemPrompt string
	LLM          LLMCaller
	Decisions    DecisionSink
	EnvData      EnvDataAccessor
	Masker       *masking.Service
	Step         StepProvider
	TrailID      string
	UniverseID   string
}

// New constructs a Runtime for prof, whose ID becomes the agent id used in
// routing and decision records.
func New(prof *profile.AgentProfile, cfg Config) *Runtime {
	mem := cfg.Masker
	if mem == nil {
		mem = masking.NewService()
	}
	return &Runtime{
		agentID:       prof.ID(),
		agentType:     cfg.AgentType,
		systemPrompt:  cfg.SystemPrompt,
		Profile:       prof,
		Relationships: relationship.NewManager(prof.ID()),
		Memory:        memory.NoopStrategy{},
		handlers:      make(map[string]HandlerFunc),
		llm:           cfg.LLM,
		decisions:     cfg.Decisions,
		envData:       cfg.EnvData,
		masker:        mem,
		step:          cfg.Step,
		trailID:       cfg.TrailID,
		universeID:    cfg.UniverseID,
	}
}

// AgentID returns the routing identity (equal to the backing profile's ID).
func (rt *Runtime) AgentID() string { return rt.agentID }

// AgentType returns the scene-declared type.
func (rt *Runtime) AgentType() string { return rt.agentType }

// RegisterEvent registers handler for kind. Idempotent: calling it again
// for the same kind simply replaces the handler.
func (rt *Runtime) RegisterEvent(kind string, h HandlerFunc) {
	rt.handlersMu.Lock()
	defer rt.handlersMu.Unlock()
	rt.handlers[kind] = h
}

// HandleEvent looks up the handler for ev.Kind and invokes it. handled is
// false if no handler is registered.4.3 ("log and drop").
func (rt *Runtime) HandleEvent(ctx context.Context, ev event.Event) (followups []event.Event, handled bool, err error) {
	rt.handlersMu.RLock()
	h, ok := rt.handlers[ev.Kind]
	rt.handlersMu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	followups, err = h(ctx, rt, ev)
	if err != nil {
		slog.Error("agentruntime: handler error", "agent", rt.agentID, "kind", ev.Kind, "error", err)
		rt.recordDecision(ev, "", "", llmclient.TokenUsage{}, 0, err.Error())
		return nil, true, simerrors.WithEvent(simerrors.KindHandler, rt.agentID, ev.EventID, err)
	}
	return followups, true, nil
}

// GetEnvData reads environment state, delegating to whichever accessor
// (local Environment or remote ProxyEnv) this runtime was wired with.
func (rt *Runtime) GetEnvData(ctx context.Context, k string, def any) any {
	if rt.envData == nil {
		return def
	}
	return rt.envData.GetData(ctx, k, def)
}

// GetData is the profile dotted-path read accessor.
func (rt *Runtime) GetData(path string, def any) any {
	return rt.Profile.GetData(path, def)
}

// UpdateData is the profile last-writer-wins dotted-path write accessor.
func (rt *Runtime) UpdateData(path string, v any) bool {
	return rt.Profile.UpdateData(path, v)
}

// UpdateIf is the profile's CAS-like conditional write accessor.
func (rt *Runtime) UpdateIf(path string, predicate func(cur any) bool, updater func(cur any) any) bool {
	return rt.Profile.UpdateIf(path, predicate, updater)
}

// GenerateReaction invokes the LLM façade with the agent's system prompt,
// instruction and observation, parses the response as a JSON object, and
// records a decision. triggerEvent supplies the event_id and
// (via rt.step) the step the decision is stamped with.
//
// On a malformed response it retries up to maxParseRetries times with a
// stricter instruction; on exhaustion it returns an empty reaction and
// records the failure.
func (rt *Runtime) GenerateReaction(ctx context.Context, triggerEvent event.Event, instruction, observation string) (map[string]any, error) {
	start := time.Now()
	prompt := instruction + "\n\n" + observation
	messages := []llmclient.Message{{Role: llmclient.RoleUser, Content: prompt}}

	var lastOutput string
	var lastErr error
	for attempt := 0; attempt <= maxParseRetries; attempt++ {
		sys := rt.systemPrompt
		if attempt > 0 {
			sys += "\n\nYour previous response could not be parsed. Respond with ONLY a single valid JSON object and nothing else."
		}

		resp, err := rt.llm.Call(ctx, sys, messages)
		if err != nil {
			rt.recordDecision(triggerEvent, prompt, "", llmclient.TokenUsage{}, time.Since(start), err.Error())
			return nil, simerrors.WithEvent(simerrors.KindHandler, rt.agentID, triggerEvent.EventID, err)
		}
		lastOutput = resp.Text

		var parsed map[string]any
		if jsonErr := json.Unmarshal([]byte(resp.Text), &parsed); jsonErr == nil {
			rt.recordDecision(triggerEvent, prompt, resp.Text, resp.Usage, time.Since(start), "")
			return parsed, nil
		} else {
			lastErr = jsonErr
			slog.Warn("agentruntime: llm response failed to parse as JSON, retrying",
				"agent", rt.agentID, "attempt", attempt, "error", jsonErr)
		}
	}

	reason := fmt.Sprintf("llm parse error exhausted retries: %v", lastErr)
	rt.recordDecision(triggerEvent, prompt, lastOutput, llmclient.TokenUsage{}, time.Since(start), reason)
	return map[string]any{}, simerrors.WithEvent(simerrors.KindLLMParse, rt.agentID, triggerEvent.EventID, lastErr)
}

func (rt *Runtime) recordDecision(trigger event.Event, prompt, output string, usage llmclient.TokenUsage, procTime time.Duration, reason string) {
	if rt.decisions == nil {
		return
	}
	step := 0
	if rt.step != nil {
		step = rt.step()
	}
	rec := record.DecisionRecord{
		DecisionID:     uuid.NewString(),
		TrailID:        rt.trailID,
		UniverseID:     rt.universeID,
		AgentID:        rt.agentID,
		AgentType:      rt.agentType,
		Step:           step,
		Timestamp:      time.Now(),
		EventID:        trigger.EventID,
		Context:        trigger.Payload,
		Prompt:         rt.masker.Mask(prompt),
		Output:         rt.masker.Mask(output),
		ProcessingTime: procTime,
		TokenUsage:     usage,
	}
	if reason != "" {
		rec.Reason = &reason
	}
	rt.decisions.QueueDecision(rec)
}
