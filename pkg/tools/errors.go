package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/prince1katiyar/Parking-project/pkg/parking"
)

var (
	// ErrUnknownTool is wrapped by the ValidationError returned for unregistered names.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrOutcomeUnknown marks a state-changing call that was still running when
	// its caller gave up on it.
	ErrOutcomeUnknown = errors.New("outcome unknown")
)

// ValidationError reports arguments that do not satisfy a tool's schema, or a
// call to a tool that does not exist.
type ValidationError struct {
	Tool   string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("SchemaViolation: %s: %s", e.Tool, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// CapabilityError reports a failure while a tool was running. Action is a
// human readable description such as "book the parking spot".
type CapabilityError struct {
	Tool   string
	Action string
	Err    error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("CapabilityFailure: %s: could not %s: %v", e.Tool, e.Action, e.Err)
}

func (e *CapabilityError) Unwrap() error { return e.Err }

// Observation renders a tool failure as text the model can act on.
func Observation(err error) string {
	if err == nil {
		return ""
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		if errors.Is(verr, ErrUnknownTool) {
			return fmt.Sprintf("%s. Use one of the listed tools.", verr.Error())
		}
		return fmt.Sprintf("%s. Correct the arguments and try again.", verr.Error())
	}

	action := "complete the request"
	var cerr *CapabilityError
	if errors.As(err, &cerr) && cerr.Action != "" {
		action = cerr.Action
	}
	switch {
	case errors.Is(err, ErrOutcomeUnknown):
		return fmt.Sprintf("I encountered an issue trying to %s. Error: the request timed out while it was still running, so it may have gone through. Do not retry it; tell the user to check their bookings before booking again.", action)
	case errors.Is(err, parking.ErrSlotUnavailable):
		return fmt.Sprintf("I encountered an issue trying to %s. Error: the slot is no longer available or does not exist. Please search again for available parking spots.", action)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("I encountered an issue trying to %s. Error: the request timed out. Please try again or rephrase.", action)
	}
	cause := err
	if cerr != nil && cerr.Err != nil {
		cause = cerr.Err
	}
	return fmt.Sprintf("I encountered an issue trying to %s. Error: %v. Please try again or rephrase.", action, cause)
}
