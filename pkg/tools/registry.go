package tools

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// Registry is the in-memory catalog of tools available to the resolution loop.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	specs    map[string]ToolSpec
	resolved map[string]*jsonschema.Resolved
	order    []string
}

// NewRegistry constructs a registry seeded with the provided tools.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{
		tools:    make(map[string]Tool),
		specs:    make(map[string]ToolSpec),
		resolved: make(map[string]*jsonschema.Resolved),
	}
	for _, tool := range tools {
		if err := r.Register(tool); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool using a lower-cased key. Duplicate names return an error.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("tool is nil")
	}
	spec := tool.Spec()
	key := strings.ToLower(strings.TrimSpace(spec.Name))
	if key == "" {
		return fmt.Errorf("tool name is empty")
	}

	var resolved *jsonschema.Resolved
	if spec.InputSchema != nil {
		var err error
		resolved, err = spec.InputSchema.Resolve(nil)
		if err != nil {
			return fmt.Errorf("tool %s has an invalid input schema: %w", spec.Name, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[key]; exists {
		return fmt.Errorf("tool %s already registered", spec.Name)
	}
	r.tools[key] = tool
	r.specs[key] = spec
	r.resolved[key] = resolved
	r.order = append(r.order, key)
	return nil
}

// Lookup returns the tool and its specification if present.
func (r *Registry) Lookup(name string) (Tool, ToolSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := strings.ToLower(strings.TrimSpace(name))
	tool, ok := r.tools[key]
	if !ok {
		return nil, ToolSpec{}, false
	}
	return tool, r.specs[key], true
}

// Mutates reports whether the named tool changes persistent state.
func (r *Registry) Mutates(name string) bool {
	tool, _, ok := r.Lookup(name)
	if !ok {
		return false
	}
	m, ok := tool.(Mutator)
	return ok && m.Mutates()
}

// Specs returns a snapshot of the tool specifications in registration order.
func (r *Registry) Specs() []ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]ToolSpec, 0, len(r.order))
	for _, key := range r.order {
		specs = append(specs, r.specs[key])
	}
	return specs
}

// Validate coerces and checks args against the named tool's schema. The
// returned map is the coerced copy that Invoke would pass to the tool.
func (r *Registry) Validate(name string, args map[string]any) (map[string]any, error) {
	r.mu.RLock()
	key := strings.ToLower(strings.TrimSpace(name))
	spec, ok := r.specs[key]
	resolved := r.resolved[key]
	r.mu.RUnlock()

	if !ok {
		return nil, &ValidationError{Tool: name, Reason: "no tool with this name is registered", Err: ErrUnknownTool}
	}
	coerced := coerceArguments(spec.InputSchema, args)
	if resolved == nil {
		return coerced, nil
	}
	if err := resolved.Validate(coerced); err != nil {
		return nil, &ValidationError{Tool: spec.Name, Reason: err.Error(), Err: err}
	}
	return coerced, nil
}

// Invoke validates the request arguments and runs the tool. Failures other
// than validation are returned as *CapabilityError.
func (r *Registry) Invoke(ctx context.Context, name string, req ToolRequest) (ToolResponse, error) {
	args, err := r.Validate(name, req.Arguments)
	if err != nil {
		return ToolResponse{}, err
	}
	tool, spec, _ := r.Lookup(name)
	req.Arguments = args

	resp, err := tool.Invoke(ctx, req)
	if err == nil {
		return resp, nil
	}
	var verr *ValidationError
	var cerr *CapabilityError
	if errors.As(err, &verr) || errors.As(err, &cerr) {
		return ToolResponse{}, err
	}
	return ToolResponse{}, &CapabilityError{Tool: spec.Name, Action: "run " + spec.Name, Err: err}
}

// coerceArguments copies args, drops null values and converts values that
// only differ from the declared property type by representation ("3" for an
// integer, 42 for a string).
func coerceArguments(schema *jsonschema.Schema, args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		if v == nil {
			continue
		}
		out[k] = v
	}
	if schema == nil {
		return out
	}
	for name, prop := range schema.Properties {
		v, ok := out[name]
		if !ok || prop == nil {
			continue
		}
		switch prop.Type {
		case "integer", "number":
			if f, ok := toFloat(v); ok {
				out[name] = f
			}
		case "string":
			switch n := v.(type) {
			case float64:
				out[name] = strconv.FormatFloat(n, 'f', -1, 64)
			case int:
				out[name] = strconv.Itoa(n)
			case int64:
				out[name] = strconv.FormatInt(n, 10)
			}
		}
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
