package subscription

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/journalkit/pkg/entitlement"
	"github.com/dmitrymomot/journalkit/pkg/statemachine"
)

var (
	eventStartTrial = statemachine.StringEvent("start_trial")
	eventActivate   = statemachine.StringEvent("activate")
	eventExpire     = statemachine.StringEvent("expire")
	eventCancel     = statemachine.StringEvent("cancel")
)

// paidPlan only lets activation through with a purchasable plan passed as data.
func paidPlan(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
	plan, ok := data.(entitlement.Plan)
	return ok && plan.Paid()
}

// lifecycle is the only place allowed status moves are declared.
// Nothing re-enters trial: a replayed or late event can never move a paying user backwards.
var lifecycle = statemachine.MustNew(statemachine.WithTransitions([]statemachine.TransitionDef{
	{From: StatusNone, To: StatusTrial, Event: eventStartTrial},

	{From: StatusNone, To: StatusActive, Event: eventActivate, Guards: []statemachine.Guard{paidPlan}},
	{From: StatusTrial, To: StatusActive, Event: eventActivate, Guards: []statemachine.Guard{paidPlan}},
	{From: StatusActive, To: StatusActive, Event: eventActivate, Guards: []statemachine.Guard{paidPlan}},
	{From: StatusExpired, To: StatusActive, Event: eventActivate, Guards: []statemachine.Guard{paidPlan}},
	{From: StatusCancelled, To: StatusActive, Event: eventActivate, Guards: []statemachine.Guard{paidPlan}},

	{From: StatusTrial, To: StatusExpired, Event: eventExpire},
	{From: StatusActive, To: StatusExpired, Event: eventExpire},

	{From: StatusActive, To: StatusCancelled, Event: eventCancel},
}))

// transition moves sub to the status reached by event, or returns ErrInvalidTransition.
func transition(ctx context.Context, sub *Subscription, event statemachine.Event, data any) error {
	from := sub.Status
	if from == "" {
		from = StatusNone
	}
	next, err := lifecycle.Next(ctx, from, event, data)
	if err != nil {
		return fmt.Errorf("%w: %s on %s: %w", ErrInvalidTransition, from, event.Name(), err)
	}
	sub.Status = next.(Status)
	return nil
}

// CanTransition reports whether a status accepts the named lifecycle event.
// Exposed for diagnostics; mutations always go through the service.
func CanTransition(ctx context.Context, from Status, event string, plan entitlement.Plan) bool {
	return lifecycle.Can(ctx, from, statemachine.StringEvent(event), plan)
}
