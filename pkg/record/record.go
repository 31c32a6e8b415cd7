// Package record defines the durable record shapes produced by the
// simulation — DecisionRecord and EventRecord — shared by the environment's
// pending-decisions buffer, the agent runtime, the batch processor and the
// sink.
package record

import (
	"time"

	"github.com/codeready-toolchain/agentsim/pkg/llmclient"
)

// DecisionRecord is one LLM invocation by a handler. decision_id is a UUID
// minted fresh at creation; once written to the sink its immutable fields
// (everything but Rating/Feedback/Reason) never change, and the mutable
// fields are last-writer-wins.
type DecisionRecord struct {
	DecisionID     string
	TrailID        string
	UniverseID     string
	AgentID        string
	AgentType      string
	Step           int
	Timestamp      time.Time
	EventID        string
	Context        map[string]any
	Prompt         string
	Output         string
	ProcessingTime time.Duration
	TokenUsage     llmclient.TokenUsage

	// Mutable, last-writer-wins.
	Rating   *float64
	Feedback *string
	Reason   *string
}

// EventRecord is the durable-storage projection of an Event, scoped by
// trail/universe for the sink's append-only index.
type EventRecord struct {
	TrailID       string
	UniverseID    string
	EventID       string
	ParentEventID string
	FromAgentID   string
	ToAgentID     string
	EventKind     string
	Timestamp     time.Time
	Payload       map[string]any
}
