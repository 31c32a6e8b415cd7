package sink

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/codeready-toolchain/agentsim/pkg/record"
)

// exportRecord is the JSON wire shape for one decision, ISO-8601 timestamps.
type exportRecord struct {
	DecisionID     string         `json:"decision_id"`
	TrailID        string         `json:"trail_id"`
	UniverseID     string         `json:"universe_id"`
	AgentID        string         `json:"agent_id"`
	AgentType      string         `json:"agent_type"`
	Step           int            `json:"step"`
	EventID        string         `json:"event_id"`
	Timestamp      string         `json:"timestamp"`
	Context        map[string]any `json:"context,omitempty"`
	Prompt         string         `json:"prompt"`
	Output         string         `json:"output"`
	ProcessingMS   int64          `json:"processing_ms"`
	InputTokens    int            `json:"input_tokens"`
	OutputTokens   int            `json:"output_tokens"`
	ThinkingTokens int            `json:"thinking_tokens"`
	Rating         *float64       `json:"rating,omitempty"`
	Feedback       *string        `json:"feedback,omitempty"`
	Reason         *string        `json:"reason,omitempty"`
}

func toExportRecord(rec record.DecisionRecord, includeContext bool) exportRecord {
	out := exportRecord{
		DecisionID:     rec.DecisionID,
		TrailID:        rec.TrailID,
		UniverseID:     rec.UniverseID,
		AgentID:        rec.AgentID,
		AgentType:      rec.AgentType,
		Step:           rec.Step,
		EventID:        rec.EventID,
		Timestamp:      rec.Timestamp.Format(time.RFC3339),
		Prompt:         rec.Prompt,
		Output:         rec.Output,
		ProcessingMS:   rec.ProcessingTime.Milliseconds(),
		InputTokens:    rec.TokenUsage.InputTokens,
		OutputTokens:   rec.TokenUsage.OutputTokens,
		ThinkingTokens: rec.TokenUsage.ThinkingTokens,
		Rating:         rec.Rating,
		Feedback:       rec.Feedback,
		Reason:         rec.Reason,
	}
	if includeContext {
		out.Context = rec.Context
	}
	return out
}

// encodeExport serializes recs in the requested format. CSV flattens
// context to a single JSON-string column.
func encodeExport(recs []record.DecisionRecord, format ExportFormat, includeContext bool) ([]byte, error) {
	switch format {
	case FormatJSON:
		return encodeJSON(recs, includeContext)
	case FormatJSONL:
		return encodeJSONL(recs, includeContext)
	case FormatCSV:
		return encodeCSV(recs, includeContext)
	default:
		return nil, fmt.Errorf("sink: unsupported export format %q", format)
	}
}

func encodeJSON(recs []record.DecisionRecord, includeContext bool) ([]byte, error) {
	out := make([]exportRecord, len(recs))
	for i, rec := range recs {
		out[i] = toExportRecord(rec, includeContext)
	}
	return json.Marshal(out)
}

func encodeJSONL(recs []record.DecisionRecord, includeContext bool) ([]byte, error) {
	var buf bytes.Buffer
	for _, rec := range recs {
		line, err := json.Marshal(toExportRecord(rec, includeContext))
		if err != nil {
			return nil, err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

var csvHeader = []string{
	"decision_id", "trail_id", "universe_id", "agent_id", "agent_type", "step",
	"event_id", "timestamp", "context", "prompt", "output", "processing_ms",
	"input_tokens", "output_tokens", "thinking_tokens", "rating", "feedback", "reason",
}

func encodeCSV(recs []record.DecisionRecord, includeContext bool) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}

	for _, rec := range recs {
		exp := toExportRecord(rec, includeContext)
		contextCol := ""
		if includeContext && exp.Context != nil {
			ctxJSON, err := json.Marshal(exp.Context)
			if err != nil {
				return nil, err
			}
			contextCol = string(ctxJSON)
		}
		row := []string{
			exp.DecisionID, exp.TrailID, exp.UniverseID, exp.AgentID, exp.AgentType,
			strconv.Itoa(exp.Step), exp.EventID, exp.Timestamp, contextCol,
			exp.Prompt, exp.Output, strconv.FormatInt(exp.ProcessingMS, 10),
			strconv.Itoa(exp.InputTokens), strconv.Itoa(exp.OutputTokens), strconv.Itoa(exp.ThinkingTokens),
			floatPtrToString(exp.Rating), stringPtrOrEmpty(exp.Feedback), stringPtrOrEmpty(exp.Reason),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func floatPtrToString(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func stringPtrOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
