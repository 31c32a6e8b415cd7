package sink

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/agentsim/pkg/record"
)

func TestMemorySinkRecordDecisionAssignsIDWhenMissing(t *testing.T) {
	s := NewMemory()
	id, err := s.RecordDecision(context.Background(), record.DecisionRecord{TrailID: "t1", AgentID: "A1", UniverseID: "main"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestMemorySinkAddFeedbackRatingReason(t *testing.T) {
	s := NewMemory()
	id, err := s.RecordDecision(context.Background(), record.DecisionRecord{DecisionID: "d1", TrailID: "t1", AgentID: "A1", UniverseID: "main"})
	require.NoError(t, err)

	require.NoError(t, s.AddFeedback(context.Background(), id, "good"))
	require.NoError(t, s.AddRating(context.Background(), id, 0.9))
	require.NoError(t, s.AddReason(context.Background(), id, "because"))

	got, err := s.GetAgentDecisions(context.Background(), Filters{TrailID: "t1", AgentID: "A1", UniverseID: "main"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Feedback)
	assert.Equal(t, "good", *got[0].Feedback)
	require.NotNil(t, got[0].Rating)
	assert.Equal(t, 0.9, *got[0].Rating)
	require.NotNil(t, got[0].Reason)
	assert.Equal(t, "because", *got[0].Reason)
}

func TestMemorySinkGetAgentDecisionsFiltersByAgent(t *testing.T) {
	s := NewMemory()
	_, _ = s.RecordDecision(context.Background(), record.DecisionRecord{DecisionID: "d1", TrailID: "t1", AgentID: "A1", UniverseID: "main"})
	_, _ = s.RecordDecision(context.Background(), record.DecisionRecord{DecisionID: "d2", TrailID: "t1", AgentID: "A2", UniverseID: "main"})

	got, err := s.GetAgentDecisions(context.Background(), Filters{TrailID: "t1", AgentID: "A1", UniverseID: "main"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "d1", got[0].DecisionID)
}

func TestMemorySinkExportTrainingDataMatchesGetAgentDecisions(t *testing.T) {
	s := NewMemory()
	_, _ = s.RecordDecision(context.Background(), record.DecisionRecord{DecisionID: "d1", TrailID: "t1", AgentID: "A1", UniverseID: "main", Output: `{"answer":"x"}`})

	jsonl, err := s.ExportTrainingData(context.Background(), Filters{TrailID: "t1", AgentID: "A1", UniverseID: "main"}, FormatJSONL, true)
	require.NoError(t, err)
	assert.Contains(t, string(jsonl), `"answer":"x"`)
}

func TestNoopSinkReturnsSyntheticIDAndEmptyReads(t *testing.T) {
	s := NewNoop()
	id, err := s.RecordDecision(context.Background(), record.DecisionRecord{})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got, err := s.GetAgentDecisions(context.Background(), Filters{})
	require.NoError(t, err)
	assert.Empty(t, got)
}
