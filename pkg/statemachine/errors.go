package statemachine

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("transition needs from, to and event")
	ErrInvalidEvent      = errors.New("event cannot be nil")

	// ErrNoTransition means the table has no row for the state and event.
	ErrNoTransition = errors.New("no transition declared")
	// ErrTransitionRejected means rows exist but every guard said no.
	ErrTransitionRejected = errors.New("transition rejected by guards")
)

// TransitionError reports which state and event failed to fire.
// It unwraps to ErrNoTransition or ErrTransitionRejected.
type TransitionError struct {
	State string
	Event string
	Err   error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: state %q, event %q", e.Err, e.State, e.Event)
}

func (e *TransitionError) Unwrap() error { return e.Err }

// IsNoTransitionAvailableError reports whether err wraps ErrNoTransition.
func IsNoTransitionAvailableError(err error) bool {
	return errors.Is(err, ErrNoTransition)
}

// IsTransitionRejectedError reports whether err wraps ErrTransitionRejected.
func IsTransitionRejectedError(err error) bool {
	return errors.Is(err, ErrTransitionRejected)
}
