package models

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicDecider uses Anthropic tool use. The rendered system prompt goes
// in the system block; each step replays as a tool_use/tool_result pair.
type AnthropicDecider struct {
	Client    *anthropic.Client
	Model     string
	MaxTokens int64
}

// NewAnthropicDecider reads ANTHROPIC_API_KEY from the env.
func NewAnthropicDecider(model string) (*AnthropicDecider, error) {
	key := os.Getenv("ANTHROPIC_API_KEY")
	if key == "" {
		return nil, errors.New("missing ANTHROPIC_API_KEY")
	}
	if model == "" {
		model = defaultAnthropicModel
	}
	cl := anthropic.NewClient(anthropicopt.WithAPIKey(key))
	return &AnthropicDecider{Client: &cl, Model: model, MaxTokens: 1024}, nil
}

func (a *AnthropicDecider) Decide(ctx context.Context, conv Conversation) (Decision, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.Model),
		MaxTokens: a.MaxTokens,
		Messages:  anthropicMessages(conv),
		Tools:     anthropicTools(conv),
	}
	if sp := strings.TrimSpace(conv.SystemPrompt); sp != "" {
		params.System = []anthropic.TextBlockParam{{Text: sp}}
	}
	msg, err := a.Client.Messages.New(ctx, params)
	if err != nil {
		return Decision{}, err
	}

	var reply strings.Builder
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.ToolUseBlock:
			call := &ToolCall{ID: b.ID, Name: b.Name, RawArguments: string(b.Input)}
			if args, err := decodeArguments(string(b.Input)); err == nil {
				call.Arguments = args
			}
			return Decision{Call: call}, nil
		case anthropic.TextBlock:
			reply.WriteString(b.Text)
		}
	}
	return Decision{Reply: reply.String()}, nil
}

func anthropicTools(conv Conversation) []anthropic.ToolUnionParam {
	if len(conv.Tools) == 0 {
		return nil
	}
	out := make([]anthropic.ToolUnionParam, 0, len(conv.Tools))
	for _, spec := range conv.Tools {
		var schema anthropic.ToolInputSchemaParam
		if spec.InputSchema != nil {
			schema.Properties = spec.InputSchema.Properties
			schema.Required = spec.InputSchema.Required
		}
		tool := anthropic.ToolUnionParamOfTool(schema, spec.Name)
		if spec.Description != "" {
			tool.OfTool.Description = anthropic.String(spec.Description)
		}
		out = append(out, tool)
	}
	return out
}

// anthropicMessages keeps the strict user/assistant alternation the API
// requires: consecutive history turns of one role are merged.
func anthropicMessages(conv Conversation) []anthropic.MessageParam {
	msgs := make([]anthropic.MessageParam, 0, len(conv.History)+2*len(conv.Steps)+1)
	var pending []string
	pendingRole := ""
	flush := func() {
		if len(pending) == 0 {
			return
		}
		block := anthropic.NewTextBlock(strings.Join(pending, "\n\n"))
		if pendingRole == RoleAssistant {
			msgs = append(msgs, anthropic.NewAssistantMessage(block))
		} else {
			msgs = append(msgs, anthropic.NewUserMessage(block))
		}
		pending = nil
	}
	push := func(role, text string) {
		if strings.TrimSpace(text) == "" {
			return
		}
		if role != RoleAssistant {
			role = RoleUser
		}
		if role != pendingRole {
			flush()
			pendingRole = role
		}
		pending = append(pending, text)
	}

	for _, m := range conv.History {
		if pendingRole == "" && m.Role == RoleAssistant && strings.TrimSpace(m.Content) != "" {
			// the API rejects a conversation that opens with the assistant
			push(RoleUser, "(earlier conversation)")
		}
		push(m.Role, m.Content)
	}
	push(RoleUser, conv.Input)
	flush()

	for i, step := range conv.Steps {
		id := callID(step.Call, i)
		input := json.RawMessage(encodeArguments(step.Call))
		if !json.Valid(input) {
			input = json.RawMessage("{}")
		}
		msgs = append(msgs,
			anthropic.NewAssistantMessage(anthropic.NewToolUseBlock(id, input, step.Call.Name)),
			anthropic.NewUserMessage(anthropic.NewToolResultBlock(id, step.Observation, false)),
		)
	}
	return msgs
}
