// Package sink implements the durable decision/event store: an append-only store indexed by (trail_id, universe_id, step,
// agent_id), plus an embedded/no-op variant for "sink disabled" mode.
package sink

import (
	"context"

	"github.com/codeready-toolchain/agentsim/pkg/record"
)

// ExportFormat selects export_training_data's output encoding.
type ExportFormat string

const (
	FormatJSON  ExportFormat = "json"
	FormatJSONL ExportFormat = "jsonl"
	FormatCSV   ExportFormat = "csv"
)

// Filters narrows get_agent_decisions / export_training_data.
type Filters struct {
	TrailID    string
	AgentID    string
	UniverseID string
	StartStep  *int
	EndStep    *int
	Limit      int
}

// Sink is the durable append-only decision/event store. Implementations
// also satisfy pkg/batch.Sink (RecordDecisions/RecordEvents) so the batch
// processor can flush directly into one.
type Sink interface {
	RecordDecisions(ctx context.Context, recs []record.DecisionRecord) error
	RecordEvents(ctx context.Context, recs []record.EventRecord) error

	RecordDecision(ctx context.Context, rec record.DecisionRecord) (string, error)
	AddFeedback(ctx context.Context, decisionID, text string) error
	AddRating(ctx context.Context, decisionID string, rating float64) error
	AddReason(ctx context.Context, decisionID, text string) error
	GetAgentDecisions(ctx context.Context, f Filters) ([]record.DecisionRecord, error)
	ExportTrainingData(ctx context.Context, f Filters, format ExportFormat, includeContext bool) ([]byte, error)
}

func matchesFilter(rec record.DecisionRecord, f Filters) bool {
	if f.TrailID != "" && rec.TrailID != f.TrailID {
		return false
	}
	if f.AgentID != "" && rec.AgentID != f.AgentID {
		return false
	}
	if f.UniverseID != "" && rec.UniverseID != f.UniverseID {
		return false
	}
	if f.StartStep != nil && rec.Step < *f.StartStep {
		return false
	}
	if f.EndStep != nil && rec.Step > *f.EndStep {
		return false
	}
	return true
}

func filterDecisions(all []record.DecisionRecord, f Filters) []record.DecisionRecord {
	out := make([]record.DecisionRecord, 0, len(all))
	for _, rec := range all {
		if matchesFilter(rec, f) {
			out = append(out, rec)
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}
