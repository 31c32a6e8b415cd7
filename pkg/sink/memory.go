package sink

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/agentsim/pkg/record"
)

// MemorySink is an in-process Sink backed by a slice under a mutex. Useful
// for a single-node embedded deployment that wants durable-decision
// semantics (get_agent_decisions, export_training_data) without standing up
// PostgreSQL, and for tests.
type MemorySink struct {
	mu        sync.Mutex
	decisions []record.DecisionRecord
	events    []record.EventRecord
}

// NewMemory creates an empty MemorySink.
func NewMemory() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) RecordDecisions(ctx context.Context, recs []record.DecisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range recs {
		if rec.DecisionID == "" {
			rec.DecisionID = uuid.NewString()
		}
		s.decisions = append(s.decisions, rec)
	}
	return nil
}

func (s *MemorySink) RecordEvents(ctx context.Context, recs []record.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, recs...)
	return nil
}

func (s *MemorySink) RecordDecision(ctx context.Context, rec record.DecisionRecord) (string, error) {
	if rec.DecisionID == "" {
		rec.DecisionID = uuid.NewString()
	}
	if err := s.RecordDecisions(ctx, []record.DecisionRecord{rec}); err != nil {
		return "", err
	}
	return rec.DecisionID, nil
}

func (s *MemorySink) findIndex(decisionID string) int {
	for i, rec := range s.decisions {
		if rec.DecisionID == decisionID {
			return i
		}
	}
	return -1
}

func (s *MemorySink) AddFeedback(ctx context.Context, decisionID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.findIndex(decisionID); i >= 0 {
		s.decisions[i].Feedback = &text
	}
	return nil
}

func (s *MemorySink) AddRating(ctx context.Context, decisionID string, rating float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.findIndex(decisionID); i >= 0 {
		s.decisions[i].Rating = &rating
	}
	return nil
}

func (s *MemorySink) AddReason(ctx context.Context, decisionID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.findIndex(decisionID); i >= 0 {
		s.decisions[i].Reason = &text
	}
	return nil
}

func (s *MemorySink) GetAgentDecisions(ctx context.Context, f Filters) ([]record.DecisionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filterDecisions(s.decisions, f), nil
}

func (s *MemorySink) ExportTrainingData(ctx context.Context, f Filters, format ExportFormat, includeContext bool) ([]byte, error) {
	recs, _ := s.GetAgentDecisions(ctx, f)
	return encodeExport(recs, format, includeContext)
}
