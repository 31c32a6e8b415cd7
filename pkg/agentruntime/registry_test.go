package agentruntime

import (
	"context"
	"testing"

	"github.com/codeready-toolchain/agentsim/pkg/event"
	"github.com/codeready-toolchain/agentsim/pkg/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func schemaWithScore() *profile.Schema {
	return &profile.Schema{Fields: []profile.FieldSchema{{Name: "score", Type: profile.FieldInt, Default: 0.0}}}
}

func TestRegistryDispatchUnknownAgent(t *testing.T) {
	r := NewRegistry()
	_, handled, err := r.Dispatch(context.Background(), event.Event{ToAgentID: "ghost"})
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestRegistryIsLocal(t *testing.T) {
	r := NewRegistry()
	p := profile.New("T", schemaWithScore(), nil)
	rt := New(p, Config{AgentType: "T"})
	r.Add(rt)

	local, known := r.IsLocal(rt.AgentID())
	assert.True(t, local)
	assert.True(t, known)

	_, known = r.IsLocal("ghost")
	assert.False(t, known)
}

func TestRegistryGetAgentDataByType(t *testing.T) {
	r := NewRegistry()
	for _, score := range []float64{0, 1, 2} {
		p := profile.New("T", schemaWithScore(), map[string]any{"score": score})
		rt := New(p, Config{AgentType: "T"})
		r.Add(rt)
	}

	got := r.GetAgentDataByType("T", "score")
	assert.Len(t, got, 3)
	for _, v := range got {
		assert.Contains(t, []float64{0, 1, 2}, v)
	}
}

func TestRegistryGetAgentDataMissingAgent(t *testing.T) {
	r := NewRegistry()
	_, ok := r.GetAgentData("ghost", "score", nil)
	assert.False(t, ok)
}
