package subscription

import (
	"fmt"
	"strings"

	"github.com/dmitrymomot/journalkit/pkg/entitlement"
)

// PriceTable maps provider price, variant or product IDs to plans.
// It is the one place where provider catalog IDs meet entitlement tiers.
type PriceTable map[string]entitlement.Plan

// NewPriceTable builds a table from raw "id -> plan" pairs, as loaded from configuration.
// Only paid plans may be mapped; anything else is a configuration error.
func NewPriceTable(raw map[string]string) (PriceTable, error) {
	table := make(PriceTable, len(raw))
	for id, name := range raw {
		id = strings.TrimSpace(id)
		plan := entitlement.ParsePlan(name)
		if id == "" {
			return nil, fmt.Errorf("%w: empty price id", ErrInvalidPriceTable)
		}
		if !plan.Paid() {
			return nil, fmt.Errorf("%w: price %q maps to %q, want pro or unlimited", ErrInvalidPriceTable, id, name)
		}
		table[id] = plan
	}
	return table, nil
}

// Lookup returns the plan for id. ok is false for unknown ids.
func (t PriceTable) Lookup(id string) (entitlement.Plan, bool) {
	plan, ok := t[strings.TrimSpace(id)]
	return plan, ok
}

// Resolve returns the plan for id, or PlanNone for unknown and empty ids.
// Providers add prices before configuration catches up, so this never fails.
func (t PriceTable) Resolve(id string) entitlement.Plan {
	if plan, ok := t.Lookup(id); ok {
		return plan
	}
	return entitlement.PlanNone
}
