package models

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIDecider uses OpenAI native function calling.
type OpenAIDecider struct {
	Client      *openai.Client
	Model       string
	Temperature float32
}

func NewOpenAIDecider(model string) *OpenAIDecider {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_KEY") // fallback
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIDecider{Client: openai.NewClient(apiKey), Model: model, Temperature: 0.1}
}

func (o *OpenAIDecider) Decide(ctx context.Context, conv Conversation) (Decision, error) {
	resp, err := o.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.Model,
		Temperature: o.Temperature,
		Messages:    openAIMessages(conv),
		Tools:       openAITools(conv),
	})
	if err != nil {
		return Decision{}, err
	}
	if len(resp.Choices) == 0 {
		return Decision{}, errors.New("no response from OpenAI")
	}
	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) > 0 {
		tc := msg.ToolCalls[0]
		call := &ToolCall{ID: tc.ID, Name: tc.Function.Name, RawArguments: tc.Function.Arguments}
		if args, err := decodeArguments(tc.Function.Arguments); err == nil {
			call.Arguments = args
		}
		return Decision{Call: call}, nil
	}
	return Decision{Reply: msg.Content}, nil
}

func openAITools(conv Conversation) []openai.Tool {
	if len(conv.Tools) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(conv.Tools))
	for _, spec := range conv.Tools {
		fn := &openai.FunctionDefinition{Name: spec.Name, Description: spec.Description}
		if spec.InputSchema != nil {
			fn.Parameters = spec.InputSchema
		}
		out = append(out, openai.Tool{Type: openai.ToolTypeFunction, Function: fn})
	}
	return out
}

func openAIMessages(conv Conversation) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(conv.History)+2*len(conv.Steps)+2)
	if sp := strings.TrimSpace(conv.SystemPrompt); sp != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: sp})
	}
	for _, m := range conv.History {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: conv.Input})
	for i, step := range conv.Steps {
		id := callID(step.Call, i)
		msgs = append(msgs,
			openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:   id,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      step.Call.Name,
						Arguments: encodeArguments(step.Call),
					},
				}},
			},
			openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    step.Observation,
				ToolCallID: id,
			},
		)
	}
	return msgs
}
