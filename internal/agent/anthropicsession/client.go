// Package anthropicsession implements agent.Session on top of the
// Anthropic Messages API, modeled on goa-ai's features/model/anthropic
// adapter: a narrow MessagesClient interface satisfied by the real SDK
// client (or a test double), streaming translated into agent.Event,
// and an internal tool-call loop so one orchestrator "turn" can span
// several tool round-trips before the model yields a final answer.
package anthropicsession

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/fawa-io/monocanvas/internal/agent"
	"github.com/fawa-io/monocanvas/internal/fwlog"
)

func encodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// MessagesClient captures the subset of the SDK used by this adapter,
// so tests can pass a fake instead of a real HTTP-backed client.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Session implements agent.Session against a single Anthropic model.
type Session struct {
	msg       MessagesClient
	model     string
	maxTokens int64

	opts     agent.ConnectOptions
	handlers map[string]agent.ToolHandler

	history []sdk.MessageParam
}

// New builds a session from an API key, using the SDK's default HTTP
// client configuration.
func New(apiKey, model string) *Session {
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return &Session{msg: &client.Messages, model: model, maxTokens: 4096}
}

// NewWithClient injects an already-constructed MessagesClient, for tests.
func NewWithClient(msg MessagesClient, model string) *Session {
	return &Session{msg: msg, model: model, maxTokens: 4096}
}

func (s *Session) Connect(_ context.Context, opts agent.ConnectOptions, handlers map[string]agent.ToolHandler) error {
	s.opts = opts
	s.handlers = handlers
	s.history = nil
	return nil
}

func (s *Session) Disconnect() error {
	s.history = nil
	return nil
}

// Query appends the turn prompt to history; the actual model call and
// tool loop happen in ReceiveResponse so the caller can stream events
// as they occur.
func (s *Session) Query(_ context.Context, msg agent.Message) error {
	param, err := encodeMessage(msg)
	if err != nil {
		return fmt.Errorf("anthropicsession: encoding query: %w", err)
	}
	s.history = append(s.history, param)
	return nil
}

func (s *Session) ReceiveResponse(ctx context.Context) (<-chan agent.Event, error) {
	ch := make(chan agent.Event, 32)
	go s.runTurn(ctx, ch)
	return ch, nil
}

// runTurn drives the tool-call loop: ask the model, relay text/tool
// events, execute any tool calls via the registered handlers, feed
// their results back, and repeat until the model stops requesting
// tools or an error/cancellation ends the turn.
func (s *Session) runTurn(ctx context.Context, ch chan<- agent.Event) {
	defer close(ch)

	tools := encodeTools(s.opts.Tools)
	const maxRounds = 20

	for round := 0; round < maxRounds; round++ {
		select {
		case <-ctx.Done():
			ch <- agent.Event{Kind: agent.EventError, Err: ctx.Err()}
			return
		default:
		}

		params := sdk.MessageNewParams{
			Model:     sdk.Model(s.model),
			MaxTokens: s.maxTokens,
			Messages:  s.history,
			Tools:     tools,
		}
		if s.opts.SystemPrompt != "" {
			params.System = []sdk.TextBlockParam{{Text: s.opts.SystemPrompt}}
		}

		resp, err := s.msg.New(ctx, params)
		if err != nil {
			ch <- agent.Event{Kind: agent.EventError, Err: err}
			return
		}

		assistantContent := make([]sdk.ContentBlockParamUnion, 0, len(resp.Content))
		for _, block := range resp.Content {
			assistantContent = append(assistantContent, block.ToParam())
		}
		s.history = append(s.history, sdk.MessageParam{
			Role:    sdk.MessageParamRoleAssistant,
			Content: assistantContent,
		})

		var toolUses []sdk.ContentBlockUnion
		done := false
		for _, block := range resp.Content {
			switch variant := block.AsAny().(type) {
			case sdk.TextBlock:
				ch <- agent.Event{Kind: agent.EventTextBlock, Text: variant.Text}
			case sdk.ToolUseBlock:
				input := map[string]any{}
				if len(variant.Input) > 0 {
					_ = json.Unmarshal(variant.Input, &input)
				}
				if variant.Name == "mark_piece_done" {
					done = true
				}
				ch <- agent.Event{Kind: agent.EventToolUse, ToolUse: &agent.ToolUsePart{ID: variant.ID, Name: variant.Name, Input: input}}
				toolUses = append(toolUses, block)
			}
		}

		if len(toolUses) == 0 {
			ch <- agent.Event{Kind: agent.EventResult, Done: done}
			return
		}

		results := make([]sdk.ContentBlockParamUnion, 0, len(toolUses))
		for _, block := range toolUses {
			tu := block.AsAny().(sdk.ToolUseBlock)
			input := map[string]any{}
			if len(tu.Input) > 0 {
				_ = json.Unmarshal(tu.Input, &input)
			}
			handler, ok := s.handlers[tu.Name]
			var content []agent.Part
			var isErr bool
			if !ok {
				isErr = true
				content = []agent.Part{agent.TextPart{Text: fmt.Sprintf("unknown tool %q", tu.Name)}}
			} else {
				var herr error
				content, isErr, herr = handler(ctx, tu.Name, input)
				if herr != nil {
					isErr = true
					content = []agent.Part{agent.TextPart{Text: herr.Error()}}
				}
			}
			ch <- agent.Event{Kind: agent.EventToolResult, ToolUseID: tu.ID, Result: &agent.ToolResultPart{ToolUseID: tu.ID, Content: content, IsError: isErr}}
			results = append(results, encodeToolResult(tu.ID, content, isErr))
		}

		s.history = append(s.history, sdk.MessageParam{
			Role:    sdk.MessageParamRoleUser,
			Content: results,
		})

		if done {
			ch <- agent.Event{Kind: agent.EventResult, Done: true}
			return
		}
	}

	fwlog.Warnf("anthropicsession: turn exceeded max tool-call rounds (%d), ending turn", maxRounds)
	ch <- agent.Event{Kind: agent.EventResult, Done: false}
}

func encodeTools(specs []agent.ToolSpec) []sdk.ToolUnionParam {
	out := make([]sdk.ToolUnionParam, 0, len(specs))
	for _, t := range specs {
		schema := sdk.ToolInputSchemaParam{}
		if props, ok := t.InputSchema["properties"]; ok {
			schema.Properties = props
		}
		out = append(out, sdk.ToolUnionParam{
			OfTool: &sdk.ToolParam{
				Name:        t.Name,
				Description: sdk.String(t.Description),
				InputSchema: schema,
			},
		})
	}
	return out
}

func encodeMessage(msg agent.Message) (sdk.MessageParam, error) {
	blocks := make([]sdk.ContentBlockParamUnion, 0, len(msg.Parts))
	for _, p := range msg.Parts {
		switch v := p.(type) {
		case agent.TextPart:
			blocks = append(blocks, sdk.NewTextBlock(v.Text))
		case agent.ImagePart:
			blocks = append(blocks, sdk.NewImageBlockBase64(v.MediaType, encodeBase64(v.Data)))
		default:
			return sdk.MessageParam{}, fmt.Errorf("anthropicsession: unsupported query part %T", p)
		}
	}
	role := sdk.MessageParamRoleUser
	if msg.Role == agent.RoleAssistant {
		role = sdk.MessageParamRoleAssistant
	}
	return sdk.MessageParam{Role: role, Content: blocks}, nil
}

func encodeToolResult(toolUseID string, content []agent.Part, isError bool) sdk.ContentBlockParamUnion {
	var text string
	for _, p := range content {
		if tp, ok := p.(agent.TextPart); ok {
			if text != "" {
				text += "\n"
			}
			text += tp.Text
		}
	}
	return sdk.NewToolResultBlock(toolUseID, text, isError)
}
