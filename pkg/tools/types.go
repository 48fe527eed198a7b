package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
)

// ToolSpec describes a tool so a model can decide when and how to call it.
type ToolSpec struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"input_schema"`
}

// ToolRequest captures an invocation request for a tool.
type ToolRequest struct {
	SessionID string
	Arguments map[string]any
}

// ToolResponse is the observation text produced by a tool plus optional metadata.
type ToolResponse struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Mutator is implemented by tools that change persistent state. Such a call
// may have been applied even when its caller stopped waiting.
type Mutator interface {
	Mutates() bool
}

// Tool exposes a capability to the resolution loop.
type Tool interface {
	Spec() ToolSpec
	Invoke(ctx context.Context, req ToolRequest) (ToolResponse, error)
}
