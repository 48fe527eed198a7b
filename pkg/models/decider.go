package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/prince1katiyar/Parking-project/pkg/tools"
)

// ErrMalformedDecision is returned for a decision that is neither a reply nor a tool call.
var ErrMalformedDecision = errors.New("malformed model decision")

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one prior conversation turn shown to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolCall is a model's request to run a tool. RawArguments keeps the text
// the model produced; Arguments is nil when that text was not a JSON object.
type ToolCall struct {
	ID           string         `json:"id,omitempty"`
	Name         string         `json:"name"`
	Arguments    map[string]any `json:"arguments"`
	RawArguments string         `json:"raw_arguments,omitempty"`
}

// Step pairs a tool call with the observation it produced.
type Step struct {
	Call        ToolCall `json:"call"`
	Observation string   `json:"observation"`
}

// Conversation is everything a Decider sees for one decision.
type Conversation struct {
	SystemPrompt string
	History      []Message
	Input        string
	Tools        []tools.ToolSpec
	Steps        []Step
}

// Decision is either a final Reply or a tool Call, never both.
type Decision struct {
	Reply string
	Call  *ToolCall
}

// Validate reports ErrMalformedDecision when d is empty or ambiguous.
func (d Decision) Validate() error {
	hasReply := strings.TrimSpace(d.Reply) != ""
	switch {
	case d.Call != nil && hasReply:
		return fmt.Errorf("%w: both reply and tool call", ErrMalformedDecision)
	case d.Call != nil && strings.TrimSpace(d.Call.Name) == "":
		return fmt.Errorf("%w: tool call without a name", ErrMalformedDecision)
	case d.Call == nil && !hasReply:
		return fmt.Errorf("%w: empty decision", ErrMalformedDecision)
	}
	return nil
}

// Decider turns a conversation into the next action.
type Decider interface {
	Decide(ctx context.Context, conv Conversation) (Decision, error)
}

// decodeArguments parses a JSON object of tool arguments. Blank input is an
// empty argument set.
func decodeArguments(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func encodeArguments(call ToolCall) string {
	if strings.TrimSpace(call.RawArguments) != "" {
		return call.RawArguments
	}
	if call.Arguments == nil {
		return "{}"
	}
	data, err := json.Marshal(call.Arguments)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func callID(call ToolCall, idx int) string {
	if call.ID != "" {
		return call.ID
	}
	return fmt.Sprintf("call_%d", idx+1)
}
