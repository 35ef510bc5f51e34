// Package statemachine provides a stateless, table-driven finite state machine.
//
// A Table declares which events move which states where. It does not hold a
// current state: callers load the state from storage, ask the table for the
// next one, and persist the result. That keeps the table safe to share between
// goroutines and lets the storage layer own concurrency control.
//
// # Usage
//
//	const (
//	    Draft    = statemachine.StringState("draft")
//	    InReview = statemachine.StringState("in_review")
//	    Submit   = statemachine.StringEvent("submit")
//	)
//
//	table := statemachine.MustNew(
//	    statemachine.WithTransition(Draft, InReview, Submit),
//	)
//
//	next, err := table.Next(ctx, Draft, Submit, nil)
//
// # Guards
//
// Guards veto a transition based on runtime data. When several transitions
// share a from/event pair, the first one whose guards pass wins:
//
//	isOwner := func(ctx context.Context, from statemachine.State, evt statemachine.Event, data any) bool {
//	    role, ok := data.(string)
//	    return ok && role == "owner"
//	}
//
// # Error Handling
//
//	if statemachine.IsNoTransitionAvailableError(err) { /* not declared */ }
//	if statemachine.IsTransitionRejectedError(err)   { /* declared, vetoed by guards */ }
package statemachine
