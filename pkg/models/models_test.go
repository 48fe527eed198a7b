package models

import (
	"context"
	"errors"
	"strings"
	"testing"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	genai "github.com/google/generative-ai-go/genai"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/sashabaranov/go-openai"

	"github.com/prince1katiyar/Parking-project/pkg/tools"
)

func TestNewDummyLLMDefaultPrefix(t *testing.T) {
	llm := NewDummyLLM("")
	resp, err := llm.Generate(context.Background(), "line1\nline2")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if got := resp.(string); got != "Dummy response: line2" {
		t.Fatalf("unexpected response: %q", got)
	}
}

func TestDummyLLMHandlesEmptyPrompt(t *testing.T) {
	llm := NewDummyLLM("Prefix")
	resp, err := llm.Generate(context.Background(), "\n\n\n")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if got := resp.(string); got != "Prefix <empty prompt>" {
		t.Fatalf("unexpected response: %q", got)
	}
}

func TestDummyLLMEchoesCurrentMessage(t *testing.T) {
	prompt := BuildPrompt(Conversation{SystemPrompt: "sys", Input: "I need parking"})
	resp, err := NewDummyLLM("").Generate(context.Background(), prompt)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if got := resp.(string); got != "Dummy response: I need parking" {
		t.Fatalf("unexpected response: %q", got)
	}
}

func TestNewLLMProviderErrorsOnUnknownProvider(t *testing.T) {
	if _, err := NewLLMProvider(context.Background(), "unknown", "model"); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestNewDeciderSelectsAdapter(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "dummy-key")
	d, err := NewDecider(context.Background(), "openai", "")
	if err != nil {
		t.Fatalf("NewDecider returned error: %v", err)
	}
	if od, ok := d.(*OpenAIDecider); !ok || od.Model != defaultOpenAIModel {
		t.Fatalf("expected *OpenAIDecider with default model, got %#v", d)
	}

	d, err = NewDecider(context.Background(), "dummy", "")
	if err != nil {
		t.Fatalf("NewDecider returned error: %v", err)
	}
	if _, ok := d.(*PromptDecider); !ok {
		t.Fatalf("expected *PromptDecider, got %T", d)
	}

	t.Setenv("ANTHROPIC_API_KEY", "")
	if _, err := NewDecider(context.Background(), "anthropic", ""); err == nil {
		t.Fatalf("expected error without ANTHROPIC_API_KEY")
	}
}

func TestParseDecisionReply(t *testing.T) {
	d := ParseDecision("  Which location would you like?  ")
	if d.Call != nil || d.Reply != "Which location would you like?" {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestParseDecisionToolCall(t *testing.T) {
	d := ParseDecision("Let me look that up.\n`tool:SearchParkingSpots {\"vehicle_type\": \"car\",\n \"location\": \"Downtown Mall\", \"duration_hours\": 2}`")
	if d.Call == nil {
		t.Fatalf("expected tool call, got reply %q", d.Reply)
	}
	if d.Call.Name != "SearchParkingSpots" {
		t.Fatalf("unexpected tool name: %q", d.Call.Name)
	}
	if d.Call.Arguments["location"] != "Downtown Mall" || d.Call.Arguments["duration_hours"] != float64(2) {
		t.Fatalf("unexpected arguments: %#v", d.Call.Arguments)
	}
}

func TestParseDecisionKeepsMalformedArguments(t *testing.T) {
	d := ParseDecision("tool:BookParkingSpot slot 4 please")
	if d.Call == nil {
		t.Fatalf("expected tool call")
	}
	if d.Call.Arguments != nil {
		t.Fatalf("expected nil arguments for non-JSON payload, got %#v", d.Call.Arguments)
	}
	if d.Call.RawArguments != "slot 4 please" {
		t.Fatalf("unexpected raw arguments: %q", d.Call.RawArguments)
	}
}

func TestDecisionValidate(t *testing.T) {
	cases := []struct {
		name string
		d    Decision
		ok   bool
	}{
		{"reply", Decision{Reply: "hi"}, true},
		{"call", Decision{Call: &ToolCall{Name: "x"}}, true},
		{"empty", Decision{Reply: "  "}, false},
		{"both", Decision{Reply: "hi", Call: &ToolCall{Name: "x"}}, false},
		{"unnamed call", Decision{Call: &ToolCall{}}, false},
	}
	for _, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, ErrMalformedDecision) {
			t.Fatalf("%s: expected ErrMalformedDecision, got %v", tc.name, err)
		}
	}
}

func sampleConversation() Conversation {
	return Conversation{
		SystemPrompt: "You are a parking assistant.",
		History: []Message{
			{Role: RoleUser, Content: "I drive a car"},
			{Role: RoleAssistant, Content: "Where would you like to park?"},
		},
		Input: "Downtown Mall for 2 hours",
		Tools: []tools.ToolSpec{{
			Name:        "SearchParkingSpots",
			Description: "Search for available parking spots.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"location":       {Type: "string"},
					"duration_hours": {Type: "integer"},
				},
				Required: []string{"location", "duration_hours"},
			},
		}},
		Steps: []Step{{
			Call:        ToolCall{Name: "SearchParkingSpots", Arguments: map[string]any{"location": "Downtown Mall"}},
			Observation: "Successfully found 2 parking spot(s)",
		}},
	}
}

func TestBuildPromptSections(t *testing.T) {
	prompt := BuildPrompt(sampleConversation())
	for _, want := range []string{
		"You are a parking assistant.",
		"Available tools:\n- SearchParkingSpots: Search for available parking spots.",
		"Input schema: ",
		"Conversation memory:\n1. [user] I drive a car\n2. [assistant] Where would you like to park?",
		"1. tool:SearchParkingSpots {\"location\":\"Downtown Mall\"}\n   => Successfully found 2 parking spot(s)",
		"Current user message:\nDowntown Mall for 2 hours",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestPromptDeciderWithDummy(t *testing.T) {
	d := NewPromptDecider(NewDummyLLM(""))
	dec, err := d.Decide(context.Background(), Conversation{Input: `tool:GetAvailableLocationsForVehicle {"vehicle_type":"car"}`})
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	if dec.Call == nil || dec.Call.Name != "GetAvailableLocationsForVehicle" || dec.Call.Arguments["vehicle_type"] != "car" {
		t.Fatalf("unexpected decision: %+v", dec)
	}

	conv := Conversation{
		Input: `tool:GetAvailableLocationsForVehicle {"vehicle_type":"car"}`,
		Steps: []Step{{Call: *dec.Call, Observation: "Downtown Mall, Airport North"}},
	}
	dec, err = d.Decide(context.Background(), conv)
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	if dec.Reply != "Dummy response: Downtown Mall, Airport North" {
		t.Fatalf("unexpected reply: %q", dec.Reply)
	}
}

func TestScriptedDecider(t *testing.T) {
	s := NewScriptedDecider(Call("SearchParkingSpots", nil), Reply("done"))
	first, err := s.Decide(context.Background(), Conversation{Input: "a"})
	if err != nil || first.Call == nil {
		t.Fatalf("expected tool call, got %+v, %v", first, err)
	}
	second, err := s.Decide(context.Background(), Conversation{Input: "b"})
	if err != nil || second.Reply != "done" {
		t.Fatalf("expected reply, got %+v, %v", second, err)
	}
	if _, err := s.Decide(context.Background(), Conversation{}); !errors.Is(err, ErrScriptExhausted) {
		t.Fatalf("expected ErrScriptExhausted, got %v", err)
	}
	if s.Calls() != 3 || s.Conversations()[1].Input != "b" {
		t.Fatalf("unexpected recorded conversations: %+v", s.Conversations())
	}

	repeat := NewScriptedDecider(Reply("again"))
	repeat.Repeat = true
	for i := 0; i < 3; i++ {
		if d, err := repeat.Decide(context.Background(), Conversation{}); err != nil || d.Reply != "again" {
			t.Fatalf("iteration %d: unexpected %+v, %v", i, d, err)
		}
	}
}

func TestOpenAIMessagesPairToolResults(t *testing.T) {
	msgs := openAIMessages(sampleConversation())
	if len(msgs) != 6 {
		t.Fatalf("expected 6 messages, got %d", len(msgs))
	}
	if msgs[0].Role != openai.ChatMessageRoleSystem || msgs[3].Content != "Downtown Mall for 2 hours" {
		t.Fatalf("unexpected leading messages: %+v", msgs[:4])
	}
	call, result := msgs[4], msgs[5]
	if len(call.ToolCalls) != 1 || call.ToolCalls[0].Function.Name != "SearchParkingSpots" {
		t.Fatalf("unexpected tool call message: %+v", call)
	}
	if result.Role != openai.ChatMessageRoleTool || result.ToolCallID != call.ToolCalls[0].ID {
		t.Fatalf("tool result not paired with call: %+v", result)
	}
	if got := openAITools(sampleConversation()); len(got) != 1 || got[0].Function.Name != "SearchParkingSpots" {
		t.Fatalf("unexpected tools: %+v", got)
	}
}

func TestAnthropicMessagesPairToolUse(t *testing.T) {
	msgs := anthropicMessages(sampleConversation())
	if len(msgs) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(msgs))
	}
	wantRoles := []anthropic.MessageParamRole{
		anthropic.MessageParamRoleUser, anthropic.MessageParamRoleAssistant, anthropic.MessageParamRoleUser,
		anthropic.MessageParamRoleAssistant, anthropic.MessageParamRoleUser,
	}
	for i, m := range msgs {
		if m.Role != wantRoles[i] {
			t.Fatalf("message %d: expected role %s, got %s", i, wantRoles[i], m.Role)
		}
	}
	if txt := msgs[2].Content[0].OfText; txt == nil || txt.Text != "Downtown Mall for 2 hours" {
		t.Fatalf("expected the current input before tool steps, got %+v", msgs[2].Content[0])
	}
	use, result := msgs[3].Content[0].OfToolUse, msgs[4].Content[0].OfToolResult
	if use == nil || use.Name != "SearchParkingSpots" {
		t.Fatalf("unexpected tool use block: %+v", msgs[3].Content[0])
	}
	if result == nil || result.ToolUseID != use.ID {
		t.Fatalf("tool result not paired with tool use: %+v", msgs[4].Content[0])
	}

	params := anthropicTools(sampleConversation())
	if len(params) != 1 || params[0].OfTool == nil || params[0].OfTool.Name != "SearchParkingSpots" {
		t.Fatalf("unexpected tools: %+v", params)
	}
	if got := params[0].OfTool.InputSchema.Required; len(got) != 2 {
		t.Fatalf("expected required fields to carry over, got %v", got)
	}
}

func TestAnthropicMessagesAlternateRoles(t *testing.T) {
	conv := Conversation{
		History: []Message{
			{Role: RoleAssistant, Content: "Which vehicle?"},
			{Role: RoleAssistant, Content: "Car or SUV?"},
			{Role: RoleUser, Content: "car"},
		},
		Input: "near the airport",
	}
	msgs := anthropicMessages(conv)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 alternating messages, got %d", len(msgs))
	}
	if msgs[0].Role != anthropic.MessageParamRoleUser {
		t.Fatalf("expected a user message first, got %s", msgs[0].Role)
	}
	if txt := msgs[1].Content[0].OfText; txt == nil || txt.Text != "Which vehicle?\n\nCar or SUV?" {
		t.Fatalf("expected consecutive assistant turns merged, got %+v", msgs[1].Content[0])
	}
	if txt := msgs[2].Content[0].OfText; txt == nil || txt.Text != "car\n\nnear the airport" {
		t.Fatalf("expected history and input merged into one user turn, got %+v", msgs[2].Content[0])
	}
}

func TestGeminiConversion(t *testing.T) {
	conv := sampleConversation()
	contents := geminiContents(conv)
	if len(contents) != 5 {
		t.Fatalf("expected 5 contents, got %d", len(contents))
	}
	if contents[1].Role != "model" {
		t.Fatalf("expected assistant history as model role, got %q", contents[1].Role)
	}
	last := contents[len(contents)-1]
	if _, ok := last.Parts[0].(genai.FunctionResponse); !ok {
		t.Fatalf("expected function response to be sent last, got %T", last.Parts[0])
	}

	schema := geminiSchema(conv.Tools[0].InputSchema)
	if schema.Type != genai.TypeObject || schema.Properties["duration_hours"].Type != genai.TypeInteger {
		t.Fatalf("unexpected schema conversion: %+v", schema)
	}
	if len(schema.Required) != 2 {
		t.Fatalf("expected required fields to carry over, got %v", schema.Required)
	}
}
