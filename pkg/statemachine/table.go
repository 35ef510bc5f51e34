package statemachine

import (
	"context"
	"fmt"
)

// Table is an immutable transition table.
// It holds no current state: callers pass the state they loaded and persist
// the result themselves, so one Table can be shared by every request.
type Table struct {
	// [fromState][event][]TransitionDef, ordered by declaration
	transitions map[string]map[string][]TransitionDef
}

// New builds a transition table from the given options.
func New(opts ...Option) (*Table, error) {
	t := &Table{transitions: make(map[string]map[string][]TransitionDef)}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustNew is like New but panics if any option fails to apply.
func MustNew(opts ...Option) *Table {
	t, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create transition table: %v", err))
	}
	return t
}

func (t *Table) add(from, to State, event Event, guards []Guard) error {
	if from == nil || to == nil || event == nil {
		return ErrInvalidTransition
	}

	fromName := from.Name()
	if _, ok := t.transitions[fromName]; !ok {
		t.transitions[fromName] = make(map[string][]TransitionDef)
	}

	// Multiple transitions allowed for same from/event to support guard-based branching
	t.transitions[fromName][event.Name()] = append(t.transitions[fromName][event.Name()], TransitionDef{
		From:   from,
		To:     to,
		Event:  event,
		Guards: guards,
	})
	return nil
}

// Next returns the state reached from `from` when `event` fires.
// The first declared transition whose guards all pass wins.
func (t *Table) Next(ctx context.Context, from State, event Event, data any) (State, error) {
	if from == nil || event == nil {
		return nil, ErrInvalidEvent
	}

	candidates := t.transitions[from.Name()][event.Name()]
	if len(candidates) == 0 {
		return nil, &TransitionError{State: from.Name(), Event: event.Name(), Err: ErrNoTransition}
	}

	for _, tr := range candidates {
		if guardsPass(ctx, tr.Guards, from, event, data) {
			return tr.To, nil
		}
	}

	return nil, &TransitionError{State: from.Name(), Event: event.Name(), Err: ErrTransitionRejected}
}

// Can reports whether event would move `from` anywhere.
func (t *Table) Can(ctx context.Context, from State, event Event, data any) bool {
	_, err := t.Next(ctx, from, event, data)
	return err == nil
}

// Events lists the names of events declared for the given state, without evaluating guards.
func (t *Table) Events(from State) []string {
	if from == nil {
		return nil
	}
	events := make([]string, 0, len(t.transitions[from.Name()]))
	for name := range t.transitions[from.Name()] {
		events = append(events, name)
	}
	return events
}

func guardsPass(ctx context.Context, guards []Guard, from State, event Event, data any) bool {
	for _, g := range guards {
		if g != nil && !g(ctx, from, event, data) {
			return false
		}
	}
	return true
}
