package models

import (
	"context"
	"fmt"
	"strings"
)

// DummyLLM is a lightweight model implementation useful for local testing without API calls.
// It echoes the current user message, passes `tool:` messages through so tools
// can be driven by hand, and reports the latest tool result once there is one.
type DummyLLM struct {
	Prefix string
}

func NewDummyLLM(prefix string) *DummyLLM {
	if strings.TrimSpace(prefix) == "" {
		prefix = "Dummy response:"
	}
	return &DummyLLM{Prefix: prefix}
}

func (d *DummyLLM) Generate(_ context.Context, prompt string) (any, error) {
	if obs := lastObservation(prompt); obs != "" {
		return fmt.Sprintf("%s %s", d.Prefix, obs), nil
	}
	input := currentMessage(prompt)
	if strings.HasPrefix(strings.ToLower(input), toolPrefix) {
		return input, nil
	}
	if input == "" {
		input = "<empty prompt>"
	}
	return fmt.Sprintf("%s %s", d.Prefix, input), nil
}

func currentMessage(prompt string) string {
	const marker = "Current user message:\n"
	idx := strings.LastIndex(prompt, marker)
	if idx < 0 {
		return lastNonEmptyLine(prompt)
	}
	rest := prompt[idx+len(marker):]
	if end := strings.Index(rest, "\n\nCompose the best possible assistant reply."); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

func lastObservation(prompt string) string {
	if !strings.Contains(prompt, "Tool results for the current message:") {
		return ""
	}
	lines := strings.Split(prompt, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "=> ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "=> "))
		}
	}
	return ""
}

func lastNonEmptyLine(prompt string) string {
	lines := strings.Split(prompt, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if candidate := strings.TrimSpace(lines[i]); candidate != "" {
			return candidate
		}
	}
	return ""
}

var _ Agent = (*DummyLLM)(nil)
