package sink

import (
	"context"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/agentsim/pkg/record"
)

// NoopSink satisfies Sink for "sink disabled" mode: writes
// return a synthetic decision_id and are otherwise discarded; reads return
// empty.
type NoopSink struct{}

// NewNoop creates a disabled sink.
func NewNoop() *NoopSink { return &NoopSink{} }

func (NoopSink) RecordDecisions(ctx context.Context, recs []record.DecisionRecord) error { return nil }
func (NoopSink) RecordEvents(ctx context.Context, recs []record.EventRecord) error        { return nil }

func (NoopSink) RecordDecision(ctx context.Context, rec record.DecisionRecord) (string, error) {
	return uuid.NewString(), nil
}

func (NoopSink) AddFeedback(ctx context.Context, decisionID, text string) error { return nil }
func (NoopSink) AddRating(ctx context.Context, decisionID string, rating float64) error {
	return nil
}
func (NoopSink) AddReason(ctx context.Context, decisionID, text string) error { return nil }

func (NoopSink) GetAgentDecisions(ctx context.Context, f Filters) ([]record.DecisionRecord, error) {
	return nil, nil
}

func (NoopSink) ExportTrainingData(ctx context.Context, f Filters, format ExportFormat, includeContext bool) ([]byte, error) {
	return encodeExport(nil, format, includeContext)
}
