package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prince1katiyar/Parking-project/pkg/models"
	"github.com/prince1katiyar/Parking-project/pkg/parking"
	"github.com/prince1katiyar/Parking-project/pkg/tools"
)

const (
	DefaultMaxIterations = 10
	DefaultCallTimeout   = 30 * time.Second
)

// Resolver runs the decide / invoke loop for a single user message.
type Resolver struct {
	decider       models.Decider
	registry      *tools.Registry
	systemPrompt  string
	maxIterations int
	callTimeout   time.Duration
	logger        *zap.Logger
	observer      Observer
}

// Options configure a new Resolver.
type Options struct {
	Decider  models.Decider
	Registry *tools.Registry
	// SystemPrompt may contain SessionPlaceholder. Empty means DefaultSystemPrompt.
	SystemPrompt  string
	MaxIterations int
	CallTimeout   time.Duration
	Logger        *zap.Logger
	Observer      Observer
}

// New creates a Resolver with the provided options.
func New(opts Options) (*Resolver, error) {
	if opts.Decider == nil {
		return nil, errors.New("resolver requires a decider")
	}
	if opts.Registry == nil {
		return nil, errors.New("resolver requires a tool registry")
	}
	r := &Resolver{
		decider:       opts.Decider,
		registry:      opts.Registry,
		systemPrompt:  opts.SystemPrompt,
		maxIterations: opts.MaxIterations,
		callTimeout:   opts.CallTimeout,
		logger:        opts.Logger,
		observer:      opts.Observer,
	}
	if r.maxIterations <= 0 {
		r.maxIterations = DefaultMaxIterations
	}
	if r.callTimeout <= 0 {
		r.callTimeout = DefaultCallTimeout
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.observer == nil {
		r.observer = nopObserver{}
	}
	return r, nil
}

// Request is one user message together with the retrieved history.
type Request struct {
	SessionID string
	Input     string
	History   []models.Message
}

// Result is the outcome of Resolve. Reply is always set.
type Result struct {
	Reply      string
	Outcome    Outcome
	Steps      []models.Step
	Iterations int
	Err        error
}

// Resolve decides, invokes tools and loops until the model replies, the
// iteration budget runs out or something fails. It never returns an empty
// reply: every failure degrades to Apology.
func (r *Resolver) Resolve(ctx context.Context, req Request) (res Result) {
	log := r.logger.With(zap.String("session_id", req.SessionID))
	defer func() {
		if p := recover(); p != nil {
			log.Error("resolver panicked", zap.Any("panic", p))
			res = r.fail(res, fmt.Errorf("panic: %v", p))
		}
		r.observer.Resolved(string(res.Outcome), res.Iterations)
	}()

	conv := models.Conversation{
		SystemPrompt: RenderSystemPrompt(r.systemPrompt, req.SessionID),
		History:      req.History,
		Input:        req.Input,
		Tools:        r.registry.Specs(),
	}

	state := AwaitingModelDecision
	for {
		log.Debug("resolver state", zap.Stringer("state", state), zap.Int("iteration", res.Iterations))

		if res.Iterations >= r.maxIterations {
			log.Warn("iteration budget exhausted", zap.Int("max_iterations", r.maxIterations))
			res.Reply = Apology
			res.Outcome = OutcomeBudgetExhausted
			res.Err = ErrIterationBudgetExhausted
			return res
		}

		decision, err := withTimeout(ctx, r.callTimeout, 0, func(ctx context.Context) (models.Decision, error) {
			return r.decider.Decide(ctx, conv)
		})
		if err == nil {
			err = decision.Validate()
		}
		if err != nil {
			log.Error("model decision failed", zap.Error(err))
			return r.fail(res, err)
		}

		if decision.Call == nil {
			state = Replying
			reply := cleanReply(decision.Reply)
			if reply == "" {
				return r.fail(res, models.ErrMalformedDecision)
			}
			log.Debug("resolver state", zap.Stringer("state", state))
			res.Reply = reply
			res.Outcome = OutcomeReplied
			return res
		}

		state = InvokingCapability
		log.Debug("resolver state", zap.Stringer("state", state), zap.String("tool", decision.Call.Name))
		call := *decision.Call
		if call.ID == "" {
			call.ID = uuid.NewString()
		}
		res.Iterations++
		step := models.Step{Call: call, Observation: r.invoke(ctx, log, req.SessionID, call)}
		res.Steps = append(res.Steps, step)
		conv.Steps = append(conv.Steps, step)
		state = AwaitingModelDecision
	}
}

func (r *Resolver) fail(res Result, err error) Result {
	res.Reply = Apology
	res.Outcome = OutcomeFailed
	res.Err = err
	return res
}

// invoke runs one tool call and returns the observation text. Every error is
// folded into the observation so the model can react to it.
func (r *Resolver) invoke(ctx context.Context, log *zap.Logger, sessionID string, call models.ToolCall) string {
	if call.Arguments == nil {
		err := &tools.ValidationError{Tool: call.Name, Reason: fmt.Sprintf("arguments must be a JSON object, got %q", call.RawArguments)}
		r.observer.ToolCalled(call.Name, toolOutcome(err))
		return tools.Observation(err)
	}

	var settle time.Duration
	if r.registry.Mutates(call.Name) {
		settle = r.callTimeout
	}
	resp, err := withTimeout(ctx, r.callTimeout, settle, func(ctx context.Context) (tools.ToolResponse, error) {
		return r.registry.Invoke(ctx, call.Name, tools.ToolRequest{SessionID: sessionID, Arguments: call.Arguments})
	})
	if err != nil {
		var verr *tools.ValidationError
		var cerr *tools.CapabilityError
		if !errors.As(err, &verr) && !errors.As(err, &cerr) {
			err = &tools.CapabilityError{Tool: call.Name, Action: "run " + call.Name, Err: err}
		}
		r.observer.ToolCalled(call.Name, toolOutcome(err))
		log.Warn("tool call failed", zap.String("tool", call.Name), zap.Error(err))
		return tools.Observation(err)
	}
	r.observer.ToolCalled(call.Name, toolOutcome(nil))
	log.Debug("tool call succeeded", zap.String("tool", call.Name))
	return strings.TrimSpace(resp.Content)
}

func toolOutcome(err error) string {
	var verr *tools.ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &verr):
		return "validation_error"
	case errors.Is(err, parking.ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "capability_error"
	}
}

// withTimeout runs fn under a deadline and stops waiting once it expires,
// even if fn ignores its context. A positive settle keeps waiting that much
// longer for fn to report what it did; if it still has not, the error wraps
// tools.ErrOutcomeUnknown. Panics inside fn become errors.
func withTimeout[T any](ctx context.Context, timeout, settle time.Duration, fn func(context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		v, err := fn(callCtx)
		done <- outcome{val: v, err: err}
	}()

	select {
	case out := <-done:
		return out.val, out.err
	case <-callCtx.Done():
	}

	var zero T
	if settle <= 0 {
		return zero, callCtx.Err()
	}
	timer := time.NewTimer(settle)
	defer timer.Stop()
	select {
	case out := <-done:
		return out.val, out.err
	case <-timer.C:
		return zero, fmt.Errorf("%w: %w", tools.ErrOutcomeUnknown, callCtx.Err())
	}
}
