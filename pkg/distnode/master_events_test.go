package distnode

import (
	"context"
	"testing"

	"github.com/codeready-toolchain/agentsim/pkg/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvEventHandlerServicesGetData(t *testing.T) {
	env := &stubEnv{data: map[string]any{"k1": "v1"}}
	sender := &stubSender{}
	h := NewEnvEventHandler(env, sender)

	h.Enqueue(event.Event{
		Kind: event.KindData, FromAgentID: "worker-1", EventID: "e1",
		Payload: map[string]any{"key": "k1", "request_id": "r1", "reply_addr": "127.0.0.1", "reply_port": 9100},
	})

	require.Len(t, sender.got, 1)
	reply := sender.got[0]
	assert.Equal(t, event.KindDataResponse, reply.Kind)
	assert.Equal(t, "r1", reply.Payload["request_id"])
	assert.Equal(t, "v1", reply.Payload["value"])
	assert.Equal(t, "worker-1", reply.ToAgentID)
}

func TestEnvEventHandlerServicesUpdateData(t *testing.T) {
	env := &stubEnv{}
	sender := &stubSender{}
	h := NewEnvEventHandler(env, sender)

	h.Enqueue(event.Event{
		Kind: event.KindDataUpdate, FromAgentID: "worker-1",
		Payload: map[string]any{"key": "k1", "value": "v2", "request_id": "r2", "reply_addr": "a", "reply_port": 1},
	})

	assert.Equal(t, "v2", env.GetData(context.Background(), "k1", nil))
	require.Len(t, sender.got, 1)
	assert.Equal(t, event.KindDataUpdateResponse, sender.got[0].Kind)
}

func TestEnvEventHandlerServicesAgentDataByType(t *testing.T) {
	env := &stubEnv{agentData: map[string]map[string]any{
		"a1": {"score": 1.0},
		"a2": {"score": 2.0},
	}}
	sender := &stubSender{}
	h := NewEnvEventHandler(env, sender)

	h.Enqueue(event.Event{
		Kind: event.KindAgentDataByType, FromAgentID: "worker-1",
		Payload: map[string]any{"agent_type": "Citizen", "key": "score", "request_id": "r3", "reply_addr": "a", "reply_port": 1},
	})

	require.Len(t, sender.got, 1)
	reply := sender.got[0]
	assert.Equal(t, event.KindAgentDataByTypeResp, reply.Kind)
	values := reply.Payload["values"].(map[string]any)
	assert.Len(t, values, 2)
}

func TestEnvEventHandlerIgnoresUnsupportedKind(t *testing.T) {
	sender := &stubSender{}
	h := NewEnvEventHandler(&stubEnv{}, sender)
	h.Enqueue(event.Event{Kind: "SomethingElse"})
	assert.Empty(t, sender.got)
}
