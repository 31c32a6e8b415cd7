// Package event defines the simulation's typed message and its reserved
// kinds. Events are immutable once enqueued; the bus that carries them is
// implemented in bus.go.
package event

import "time"

// EnvAgentID is the reserved agent identifier for the environment itself.
const EnvAgentID = "ENV"

// Reserved event kinds understood by the environment and dispatcher.
const (
	KindStart               = "StartEvent"
	KindEnd                 = "EndEvent"
	KindData                = "DataEvent"
	KindDataResponse        = "DataResponseEvent"
	KindDataUpdate          = "DataUpdateEvent"
	KindDataUpdateResponse  = "DataUpdateResponseEvent"
	KindAgentDataByType     = "AgentDataByTypeEvent"
	KindAgentDataByTypeResp = "AgentDataByTypeResponseEvent"
)

// Event is the tagged-variant message exchanged between agents and the
// environment. Kind is the discriminant used to look up a handler; Payload
// carries kind-specific data as a generic map, mirroring the source
// system's per-class event hierarchy.
//
// Events are immutable once enqueued onto the bus: nothing in this package
// mutates an Event after Bus.Enqueue returns.
type Event struct {
	EventID       string
	ParentEventID string
	FromAgentID   string
	ToAgentID     string
	Kind          string
	Timestamp     time.Time
	Payload       map[string]any
}

// Get reads a payload key, returning ok=false if absent. Convenience
// wrapper; handlers are free to index Payload directly.
func (e Event) Get(key string) (any, bool) {
	if e.Payload == nil {
		return nil, false
	}
	v, ok := e.Payload[key]
	return v, ok
}

// GetString reads a payload key as a string, returning "" if absent or of
// the wrong type.
func (e Event) GetString(key string) string {
	v, ok := e.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// GetInt reads a payload key as an int, accepting both int (set in-process)
// and float64 (decoded from JSON after a wire round trip), returning 0 if
// absent or of another type.
func (e Event) GetInt(key string) int {
	v, ok := e.Get(key)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

// WithTimestamp returns a copy of e with Timestamp set, if it was zero.
// The dispatcher calls this on ingress so that round-trip preserves every
// field except a Timestamp set on arrival when absent.
func (e Event) WithTimestamp(now time.Time) Event {
	if !e.Timestamp.IsZero() {
		return e
	}
	e.Timestamp = now
	return e
}
