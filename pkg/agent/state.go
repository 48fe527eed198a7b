package agent

import "errors"

// Apology is the reply used whenever the loop cannot produce a normal answer.
const Apology = "I'm sorry, I ran into an unexpected problem. Could you please try rephrasing or try again in a moment?"

// ErrIterationBudgetExhausted is set on Result.Err when the tool-call budget ran out.
var ErrIterationBudgetExhausted = errors.New("iteration budget exhausted")

// State is a node of the resolution state machine.
type State int

const (
	AwaitingModelDecision State = iota
	InvokingCapability
	Replying
)

func (s State) String() string {
	switch s {
	case AwaitingModelDecision:
		return "awaiting_model_decision"
	case InvokingCapability:
		return "invoking_capability"
	case Replying:
		return "replying"
	default:
		return "unknown"
	}
}

// Outcome summarises how a Resolve call ended.
type Outcome string

const (
	OutcomeReplied         Outcome = "replied"
	OutcomeBudgetExhausted Outcome = "iteration_budget_exhausted"
	OutcomeFailed          Outcome = "failed"
)

// Observer receives loop events; internal/observability implements it with
// Prometheus collectors.
type Observer interface {
	ToolCalled(tool, outcome string)
	Resolved(outcome string, iterations int)
}

type nopObserver struct{}

func (nopObserver) ToolCalled(string, string) {}
func (nopObserver) Resolved(string, int)      {}
