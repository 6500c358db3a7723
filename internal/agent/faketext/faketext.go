// Package faketext is an agent.Session implementation that never
// touches the network: it replays a scripted sequence of turns. Used
// by orchestrator/dispatcher tests and by local development without an
// Anthropic API key.
package faketext

import (
	"context"
	"fmt"

	"github.com/fawa-io/monocanvas/internal/agent"
)

// Turn is one scripted agent turn.
type Turn struct {
	// ToolCalls are invoked in order against the registered handlers.
	ToolCalls []ToolCall
	Thinking  string
	Done      bool
}

// ToolCall names a tool and its input for a scripted turn.
type ToolCall struct {
	Name  string
	Input map[string]any
}

// Session is a deterministic, scriptable Session used in tests.
type Session struct {
	Turns    []Turn
	next     int
	handlers map[string]agent.ToolHandler
	events   chan agent.Event
}

// New builds a faketext session that will play turns in order, cycling
// back to the last turn once exhausted (so a test loop's safety-net
// timeout path keeps working without panicking on an empty slice).
func New(turns []Turn) *Session {
	return &Session{Turns: turns}
}

func (s *Session) Connect(_ context.Context, _ agent.ConnectOptions, handlers map[string]agent.ToolHandler) error {
	s.handlers = handlers
	return nil
}

func (s *Session) Query(ctx context.Context, _ agent.Message) error {
	if len(s.Turns) == 0 {
		s.events = make(chan agent.Event, 1)
		close(s.events)
		return nil
	}
	turn := s.Turns[s.next]
	if s.next < len(s.Turns)-1 {
		s.next++
	}

	ch := make(chan agent.Event, 8+len(turn.ToolCalls)*2)
	ch <- agent.Event{Kind: agent.EventTextDelta, Text: turn.Thinking}

	for i, call := range turn.ToolCalls {
		id := fmt.Sprintf("call_%d", i)
		ch <- agent.Event{Kind: agent.EventToolUse, ToolUse: &agent.ToolUsePart{ID: id, Name: call.Name, Input: call.Input}}
		handler, ok := s.handlers[call.Name]
		var content []agent.Part
		var isErr bool
		var err error
		if ok {
			content, isErr, err = handler(ctx, call.Name, call.Input)
		} else {
			content, isErr, err = nil, true, fmt.Errorf("no handler registered for tool %q", call.Name)
		}
		_ = err
		ch <- agent.Event{Kind: agent.EventToolResult, ToolUseID: id, Result: &agent.ToolResultPart{ToolUseID: id, Content: content, IsError: isErr}}
	}

	ch <- agent.Event{Kind: agent.EventResult, Done: turn.Done}
	close(ch)
	s.events = ch
	return nil
}

func (s *Session) ReceiveResponse(_ context.Context) (<-chan agent.Event, error) {
	return s.events, nil
}

func (s *Session) Disconnect() error { return nil }
