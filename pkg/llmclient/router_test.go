package llmclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	name  string
	text  string
	usage TokenUsage
	err   error
}

func (s *stubClient) Call(ctx context.Context, system string, messages []Message) (Response, error) {
	if s.err != nil {
		return Response{}, s.err
	}
	return Response{Text: s.text, Usage: s.usage}, nil
}

func (s *stubClient) Embed(ctx context.Context, text string) ([]float64, error) {
	return []float64{1, 2, 3}, nil
}

func (s *stubClient) Name() string { return s.name }

func TestRouterRoundRobin(t *testing.T) {
	a := &stubClient{name: "a", text: "from-a"}
	b := &stubClient{name: "b", text: "from-b"}
	r := NewRouter(a, b)

	resp1, err := r.Call(context.Background(), "sys", nil)
	require.NoError(t, err)
	resp2, err := r.Call(context.Background(), "sys", nil)
	require.NoError(t, err)
	resp3, err := r.Call(context.Background(), "sys", nil)
	require.NoError(t, err)

	assert.Equal(t, "from-a", resp1.Text)
	assert.Equal(t, "from-b", resp2.Text)
	assert.Equal(t, "from-a", resp3.Text)
}

func TestRouterNoClients(t *testing.T) {
	r := NewRouter()
	_, err := r.Call(context.Background(), "sys", nil)
	assert.ErrorIs(t, err, ErrNoClients)
}

func TestRouterAccumulatesUsage(t *testing.T) {
	a := &stubClient{name: "a", usage: TokenUsage{InputTokens: 10, OutputTokens: 5}}
	r := NewRouter(a)

	_, err := r.Call(context.Background(), "sys", nil)
	require.NoError(t, err)
	_, err = r.Call(context.Background(), "sys", nil)
	require.NoError(t, err)

	usage := r.Usage()
	require.Contains(t, usage, "a")
	assert.Equal(t, 20, usage["a"].InputTokens)
	assert.Equal(t, 10, usage["a"].OutputTokens)
}
