package statemachine

import "context"

// State and Event are compared by Name, so any named type works as long as
// names are unique within a Table.
type (
	State interface{ Name() string }
	Event interface{ Name() string }
)

// Guard decides at run time whether a declared transition applies. data is
// whatever the caller passed to Next, such as the plan a payment is for.
type Guard func(ctx context.Context, from State, event Event, data any) bool

// TransitionDef declares that Event moves From to To when every guard passes.
type TransitionDef struct {
	From   State
	To     State
	Event  Event
	Guards []Guard
}

// StringState and StringEvent cover tables keyed by plain strings.
type (
	StringState string
	StringEvent string
)

func (s StringState) Name() string { return string(s) }
func (e StringEvent) Name() string { return string(e) }
