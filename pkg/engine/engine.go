package engine

import (
	"context"

	"github.com/go-go-golems/bookchat/pkg/conversation"
)

// Turn is one role-tagged entry of a structured request. Roles use the
// conversation vocabulary; mapping "assistant" to a provider's own naming
// (e.g. Gemini's "model") is an adapter detail.
type Turn struct {
	Role conversation.Role
	Text string
}

// ChatRequest is the provider-agnostic structured request the orchestrator
// assembles: a system preamble, the ordered turns in exact chronological
// order, and a model identifier. Adapters must not reorder, deduplicate, or
// truncate the turns.
type ChatRequest struct {
	System string
	Turns  []Turn
	Model  string
}

type ChatResponse struct {
	Text string
}

// Engine is the backend capability this core depends on. Implementations
// wrap a specific provider; the orchestrator treats them interchangeably.
type Engine interface {
	// IsConfigured reports whether the adapter has the credentials it needs.
	// Chat must short-circuit with ErrNotConfigured when it returns false.
	IsConfigured() bool

	// Chat runs the structured request and returns the assistant's text.
	// Implementations bound the call with the configured timeout; expiry
	// surfaces as a backend error.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}
