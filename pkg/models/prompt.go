package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/prince1katiyar/Parking-project/pkg/tools"
)

const toolPrefix = "tool:"

// PromptDecider drives a plain text model with a tool-aware prompt. The model
// calls a tool by answering `tool:<name> <json arguments>`; any other answer
// is the reply.
type PromptDecider struct {
	LLM Agent
}

func NewPromptDecider(llm Agent) *PromptDecider {
	return &PromptDecider{LLM: llm}
}

func (p *PromptDecider) Decide(ctx context.Context, conv Conversation) (Decision, error) {
	if p.LLM == nil {
		return Decision{}, errors.New("prompt decider requires a language model")
	}
	raw, err := p.LLM.Generate(ctx, BuildPrompt(conv))
	if err != nil {
		return Decision{}, err
	}
	return ParseDecision(textOf(raw)), nil
}

// BuildPrompt renders conv for a text-completion model.
func BuildPrompt(conv Conversation) string {
	var sb strings.Builder
	sb.Grow(4096)

	sb.WriteString(strings.TrimSpace(conv.SystemPrompt))

	if rendered := renderTools(conv.Tools); rendered != "" {
		sb.WriteString("\n\n")
		sb.WriteString(rendered)
	}

	sb.WriteString("\n\nConversation memory:\n")
	sb.WriteString(renderHistory(conv.History))

	if len(conv.Steps) > 0 {
		sb.WriteString("\nTool results for the current message:\n")
		for i, step := range conv.Steps {
			sb.WriteString(fmt.Sprintf("%d. %s%s %s\n", i+1, toolPrefix, step.Call.Name, encodeArguments(step.Call)))
			sb.WriteString("   => ")
			sb.WriteString(escapePromptContent(strings.TrimSpace(step.Observation)))
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\nCurrent user message:\n")
	sb.WriteString(strings.TrimSpace(conv.Input))
	sb.WriteString("\n\nCompose the best possible assistant reply.\n")
	return sb.String()
}

func renderTools(specs []tools.ToolSpec) string {
	if len(specs) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Available tools:\n")
	for _, spec := range specs {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", spec.Name, spec.Description))
		if spec.InputSchema != nil {
			if schemaJSON, err := json.Marshal(spec.InputSchema); err == nil {
				sb.WriteString("  Input schema: ")
				sb.Write(schemaJSON)
				sb.WriteString("\n")
			}
		}
	}
	sb.WriteString("Invoke a tool with: `tool:<name> <json arguments>` on a line of its own, and nothing else.\n")
	return sb.String()
}

func renderHistory(history []Message) string {
	if len(history) == 0 {
		return "(no stored memory)\n"
	}
	var sb strings.Builder
	n := 0
	for _, msg := range history {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		n++
		sb.WriteString(fmt.Sprintf("%d. [%s] %s\n", n, msg.Role, escapePromptContent(content)))
	}
	if n == 0 {
		return "(no stored memory)\n"
	}
	return sb.String()
}

// escapePromptContent safely escapes content that might break formatting.
func escapePromptContent(s string) string {
	return strings.ReplaceAll(s, "`", "'")
}

// ParseDecision reads a model answer. The first line starting with `tool:`
// turns the answer into a tool call whose arguments run to the end of the text.
func ParseDecision(text string) Decision {
	trimmed := strings.TrimSpace(text)
	lines := strings.Split(trimmed, "\n")
	for i, line := range lines {
		candidate := strings.TrimLeft(strings.TrimSpace(line), "`")
		if !strings.HasPrefix(strings.ToLower(candidate), toolPrefix) {
			continue
		}
		rest := candidate[len(toolPrefix):]
		if i+1 < len(lines) {
			rest += "\n" + strings.Join(lines[i+1:], "\n")
		}
		rest = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(rest), "`"))
		name, rawArgs := splitCommand(rest)
		call := &ToolCall{Name: name, RawArguments: rawArgs}
		if args, err := decodeArguments(rawArgs); err == nil {
			call.Arguments = args
		}
		return Decision{Call: call}
	}
	return Decision{Reply: trimmed}
}

func splitCommand(payload string) (string, string) {
	payload = strings.TrimSpace(payload)
	idx := strings.IndexAny(payload, " \t\n")
	if idx < 0 {
		return payload, ""
	}
	return payload[:idx], strings.TrimSpace(payload[idx+1:])
}
