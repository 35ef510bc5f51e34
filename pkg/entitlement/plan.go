package entitlement

import "strings"

// Plan is the commercial tier that controls feature access.
type Plan string

const (
	PlanNone      Plan = "none"
	PlanTrial     Plan = "trial"
	PlanPro       Plan = "pro"
	PlanUnlimited Plan = "unlimited"
)

// planRanks orders plans from the lowest to the highest tier.
// A plan with a higher rank grants a superset of the capabilities of every lower plan.
var planRanks = map[Plan]int{
	PlanNone:      0,
	PlanTrial:     1,
	PlanPro:       2,
	PlanUnlimited: 3,
}

// Plans returns all known plans ordered from the lowest tier to the highest.
func Plans() []Plan {
	return []Plan{PlanNone, PlanTrial, PlanPro, PlanUnlimited}
}

// ParsePlan converts a raw tag into a Plan.
// Empty and unknown values resolve to PlanNone instead of failing.
func ParsePlan(s string) Plan {
	p := Plan(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := planRanks[p]; ok {
		return p
	}
	return PlanNone
}

// Valid reports whether p is one of the known plans.
func (p Plan) Valid() bool {
	_, ok := planRanks[p]
	return ok
}

// Rank returns the tier position of the plan. Unknown plans rank as PlanNone.
func (p Plan) Rank() int {
	return planRanks[p]
}

// AtLeast reports whether p is the same tier as other or higher.
func (p Plan) AtLeast(other Plan) bool {
	return p.Rank() >= other.Rank()
}

// Paid reports whether the plan comes from a completed purchase.
func (p Plan) Paid() bool {
	return p == PlanPro || p == PlanUnlimited
}

func (p Plan) String() string {
	return string(p)
}
