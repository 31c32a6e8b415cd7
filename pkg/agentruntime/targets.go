package agentruntime

import (
	"log/slog"

	"github.com/codeready-toolchain/agentsim/pkg/event"
)

// CoerceTargetIDs implements the handler protocol's target_ids coercion
//: "ENV" routes to the environment, a scalar is
// wrapped to a single-element list, unknown ids are dropped with a
// warning. raw is typically the "target_ids" field of a generate_reaction
// response. known, if non-nil, reports whether an id is a live agent;
// pass nil to skip the liveness check (e.g. in tests).
func CoerceTargetIDs(raw any, known func(id string) bool) []string {
	if raw == nil {
		return nil
	}

	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case []string:
		items = make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
	default:
		items = []any{v}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		id, ok := item.(string)
		if !ok || id == "" {
			continue
		}
		if id == event.EnvAgentID {
			out = append(out, id)
			continue
		}
		if known != nil && !known(id) {
			slog.Warn("agentruntime: unknown target_id dropped", "target_id", id)
			continue
		}
		out = append(out, id)
	}
	return out
}
