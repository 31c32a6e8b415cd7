package distnode

import (
	"context"
	"log/slog"

	"github.com/codeready-toolchain/agentsim/pkg/event"
)

// EnvEventHandler services DataEvent/DataUpdateEvent/AgentDataByTypeEvent
// arriving from a worker's ProxyEnv and replies with the paired response
// event sent back to the requester. Wired as a master node's
// distnode.EventReceiver for events forwarded to ENV.
type EnvEventHandler struct {
	env    EnvAccessor
	sender EventSender
}

// NewEnvEventHandler builds a handler over env, replying via sender.
func NewEnvEventHandler(env EnvAccessor, sender EventSender) *EnvEventHandler {
	return &EnvEventHandler{env: env, sender: sender}
}

// Enqueue satisfies EventReceiver; dispatches by ev.Kind.
func (h *EnvEventHandler) Enqueue(ev event.Event) {
	switch ev.Kind {
	case event.KindData:
		h.handleGet(ev)
	case event.KindDataUpdate:
		h.handleUpdate(ev)
	case event.KindAgentDataByType:
		h.handleByType(ev)
	default:
		slog.Warn("distnode: env event handler ignoring unsupported kind", "kind", ev.Kind)
	}
}

func (h *EnvEventHandler) replyAddr(ev event.Event) (string, int) {
	return ev.GetString("reply_addr"), ev.GetInt("reply_port")
}

func (h *EnvEventHandler) handleGet(ev event.Event) {
	key := ev.GetString("key")
	def, _ := ev.Get("default")
	value := h.env.GetData(context.Background(), key, def)

	addr, port := h.replyAddr(ev)
	reply := event.Event{
		ParentEventID: ev.EventID,
		FromAgentID:   event.EnvAgentID,
		ToAgentID:     ev.FromAgentID,
		Kind:          event.KindDataResponse,
		Payload:       map[string]any{"request_id": ev.GetString("request_id"), "value": value},
	}
	if err := h.sender.SendEvent(context.Background(), addr, port, reply); err != nil {
		slog.Error("distnode: failed to reply to get_data request", "error", err)
	}
}

func (h *EnvEventHandler) handleUpdate(ev event.Event) {
	key := ev.GetString("key")
	value, _ := ev.Get("value")
	h.env.UpdateData(context.Background(), key, value)

	addr, port := h.replyAddr(ev)
	reply := event.Event{
		ParentEventID: ev.EventID,
		FromAgentID:   event.EnvAgentID,
		ToAgentID:     ev.FromAgentID,
		Kind:          event.KindDataUpdateResponse,
		Payload:       map[string]any{"request_id": ev.GetString("request_id")},
	}
	if err := h.sender.SendEvent(context.Background(), addr, port, reply); err != nil {
		slog.Error("distnode: failed to reply to update_data request", "error", err)
	}
}

func (h *EnvEventHandler) handleByType(ev event.Event) {
	agentType := ev.GetString("agent_type")
	key := ev.GetString("key")
	values := h.env.GetAgentDataByType(agentType, key)

	addr, port := h.replyAddr(ev)
	reply := event.Event{
		ParentEventID: ev.EventID,
		FromAgentID:   event.EnvAgentID,
		ToAgentID:     ev.FromAgentID,
		Kind:          event.KindAgentDataByTypeResp,
		Payload:       map[string]any{"request_id": ev.GetString("request_id"), "values": values},
	}
	if err := h.sender.SendEvent(context.Background(), addr, port, reply); err != nil {
		slog.Error("distnode: failed to reply to agent_data_by_type request", "error", err)
	}
}
