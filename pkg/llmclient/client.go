// Package llmclient is the pluggable LLM client façade: a routed,
// load-balanced chat/embedding interface with token accounting.
//
// The core treats provider SDKs as out of scope; this package defines the
// Client contract every provider adapter implements and a Router that
// load-balances across configured provider instances by config name.
package llmclient

import (
	"context"
	"fmt"
)

// Message roles.ConversationMessage roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string
	Content string
}

// TokenUsage is populated by a Client.Call and threaded through to the
// DecisionRecord. Queried in aggregate by the
// out-of-scope monitor.
type TokenUsage struct {
	InputTokens    int
	OutputTokens   int
	ThinkingTokens int
}

// Response is the result of a Call: the generated text plus its usage.
type Response struct {
	Text  string
	Usage TokenUsage
}

// Client is the pluggable interface every LLM provider adapter implements.
// call(system, messages) -> text and embed(text) -> vector.
type Client interface {
	// Call sends system plus the conversation and returns the generated text.
	Call(ctx context.Context, system string, messages []Message) (Response, error)

	// Embed returns an embedding vector for text.
	Embed(ctx context.Context, text string) ([]float64, error)

	// Name identifies this client instance for routing/logging (the
	// model config's config_name).
	Name() string
}

// ProviderConfig mirrors the simulator config's model.chat / model.embedding
// entries: every entry carries provider, config_name and
// model_name.
type ProviderConfig struct {
	Provider   string
	ConfigName string
	ModelName  string
	Extra      map[string]any
}

// ErrNoClients is returned by Router.Call/Embed when no client is registered.
var ErrNoClients = fmt.Errorf("llmclient: no clients registered")
