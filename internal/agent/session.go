// Package agent hides the LLM transport behind a small session
// contract (SPEC_FULL §4.5): connect, query, stream typed events,
// disconnect. Concrete providers (internal/agent/anthropicsession,
// internal/agent/faketext) implement Session; the orchestrator only
// ever talks to the interface.
package agent

import (
	"context"
)

// Role identifies who authored a message in the turn prompt.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Part is a marker interface implemented by every message part kind,
// modeled after the provider-agnostic Part union used throughout the
// agent runtimes in the retrieval pack.
type Part interface{ isPart() }

// TextPart is plain text content.
type TextPart struct{ Text string }

func (TextPart) isPart() {}

// ImagePart carries a base64-ready image (the rendered canvas snapshot).
type ImagePart struct {
	MediaType string // e.g. "image/png"
	Data      []byte
}

func (ImagePart) isPart() {}

// ToolUsePart is a model-issued tool call.
type ToolUsePart struct {
	ID    string
	Name  string
	Input map[string]any
}

func (ToolUsePart) isPart() {}

// ToolResultPart carries the result of a tool call back to the model.
type ToolResultPart struct {
	ToolUseID string
	Content   []Part
	IsError   bool
}

func (ToolResultPart) isPart() {}

// Message is one turn of conversation.
type Message struct {
	Role  Role
	Parts []Part
}

// ToolSpec describes one callable tool for the provider's tool-use API.
// Name must match ^[a-zA-Z0-9_-]{1,64}$ across every provider adapter.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// ConnectOptions configures a session at construction time.
type ConnectOptions struct {
	SystemPrompt     string
	Tools            []ToolSpec
	WorkingDirectory string
	StreamPartial    bool
}

// EventKind discriminates the typed events yielded by ReceiveResponse.
type EventKind int

const (
	EventTextDelta EventKind = iota
	EventTextBlock
	EventToolUse
	EventToolResult
	EventSystem
	EventResult
	EventError
)

// Event is one item in the streamed turn response.
type Event struct {
	Kind      EventKind
	Text      string
	ToolUse   *ToolUsePart
	ToolUseID string // for EventToolResult, which call this answers
	Result    *ToolResultPart
	Err       error
	// Done is only meaningful on EventResult: whether the agent declared
	// the piece complete during this turn.
	Done bool
}

// ToolHandler executes one tool call and returns its result content.
type ToolHandler func(ctx context.Context, name string, input map[string]any) (content []Part, isError bool, err error)

// Session hides the LLM transport. One Session per workspace; it is
// reconnected for each turn's options if the system prompt changes
// (e.g. a drawing-style switch).
type Session interface {
	// Connect establishes (or re-establishes) the session with opts.
	Connect(ctx context.Context, opts ConnectOptions, handlers map[string]ToolHandler) error
	// Query delivers the turn prompt.
	Query(ctx context.Context, msg Message) error
	// ReceiveResponse streams the turn's events on the returned channel,
	// which is closed when the turn ends (EventResult/EventError was the
	// last event) or ctx is canceled.
	ReceiveResponse(ctx context.Context) (<-chan Event, error)
	// Disconnect tears down the session.
	Disconnect() error
}
