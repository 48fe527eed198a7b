package models

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"github.com/google/jsonschema-go/jsonschema"
	"google.golang.org/api/option"
)

// ---------------------------- Google Gemini ----------------------------------

const defaultGeminiModel = "gemini-1.5-flash"

// GeminiDecider uses Gemini function declarations.
type GeminiDecider struct {
	Client *genai.Client
	Model  string
}

func NewGeminiDecider(ctx context.Context, model string) (*GeminiDecider, error) {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("missing GOOGLE_API_KEY or GEMINI_API_KEY")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiDecider{Client: client, Model: model}, nil
}

func (g *GeminiDecider) Decide(ctx context.Context, conv Conversation) (Decision, error) {
	model := g.Client.GenerativeModel(g.Model)
	if sp := strings.TrimSpace(conv.SystemPrompt); sp != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(sp)}}
	}
	if decls := geminiDeclarations(conv); len(decls) > 0 {
		model.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	contents := geminiContents(conv)
	chat := model.StartChat()
	chat.History = contents[:len(contents)-1]

	resp, err := chat.SendMessage(ctx, contents[len(contents)-1].Parts...)
	if err != nil {
		return Decision{}, fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Decision{}, errors.New("gemini: empty response")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.FunctionCall:
			args := p.Args
			if args == nil {
				args = map[string]any{}
			}
			return Decision{Call: &ToolCall{Name: p.Name, Arguments: args}}, nil
		case genai.Text:
			text.WriteString(string(p))
		}
	}
	return Decision{Reply: text.String()}, nil
}

// geminiContents lays out history, the new message and the tool exchange so
// far. The last element is the one to send.
func geminiContents(conv Conversation) []*genai.Content {
	out := make([]*genai.Content, 0, len(conv.History)+2*len(conv.Steps)+1)
	for _, m := range conv.History {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		out = append(out, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	out = append(out, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(conv.Input)}})
	for _, step := range conv.Steps {
		out = append(out,
			&genai.Content{Role: "model", Parts: []genai.Part{genai.FunctionCall{Name: step.Call.Name, Args: step.Call.Arguments}}},
			&genai.Content{Role: "user", Parts: []genai.Part{genai.FunctionResponse{
				Name:     step.Call.Name,
				Response: map[string]any{"result": step.Observation},
			}}},
		)
	}
	return out
}

func geminiDeclarations(conv Conversation) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(conv.Tools))
	for _, spec := range conv.Tools {
		out = append(out, &genai.FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  geminiSchema(spec.InputSchema),
		})
	}
	return out
}

func geminiSchema(s *jsonschema.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{Description: s.Description, Required: s.Required}
	switch s.Type {
	case "object":
		out.Type = genai.TypeObject
	case "integer":
		out.Type = genai.TypeInteger
	case "number":
		out.Type = genai.TypeNumber
	case "boolean":
		out.Type = genai.TypeBoolean
	case "array":
		out.Type = genai.TypeArray
		out.Items = geminiSchema(s.Items)
	default:
		out.Type = genai.TypeString
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = geminiSchema(prop)
		}
	}
	return out
}
