package models

import (
	"context"
	"fmt"
	"strings"
)

// NewLLMProvider returns a text-completion model for the text tool protocol.
func NewLLMProvider(ctx context.Context, provider string, model string) (Agent, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "ollama":
		return NewOllamaLLM(model)
	case "dummy", "":
		return NewDummyLLM(""), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}

// NewDecider returns the Decider for provider. OpenAI, Gemini and Anthropic
// use native tool calling; the rest go through PromptDecider.
func NewDecider(ctx context.Context, provider string, model string) (Decider, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "openai":
		return NewOpenAIDecider(model), nil
	case "gemini", "google":
		return NewGeminiDecider(ctx, model)
	case "anthropic", "claude":
		return NewAnthropicDecider(model)
	default:
		llm, err := NewLLMProvider(ctx, provider, model)
		if err != nil {
			return nil, err
		}
		return NewPromptDecider(llm), nil
	}
}
