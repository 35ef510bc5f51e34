package entitlement

// Capability is a named feature gated by the subscription plan.
type Capability string

const (
	AIJournalInsights    Capability = "aiJournalInsights"
	GoalTracking         Capability = "goalTracking"
	EnhancedMoodTracking Capability = "enhancedMoodTracking"
	CalendarIntegration  Capability = "calendarIntegration"
	AdvancedAnalytics    Capability = "advancedAnalytics"
	ExportFeatures       Capability = "exportFeatures"
	CustomPersonalities  Capability = "customPersonalities"
	PrioritySupport      Capability = "prioritySupport"
	EarlyAccess          Capability = "earlyAccess"
)

// tier describes the minimum plan granting a capability and the copy shown
// to users who don't have it yet.
type tier struct {
	plan    Plan
	message string
}

// tiers is the single source of truth for capability gating.
// Every capability must have an entry; the resolver and RequiredPlan read only from here.
var tiers = map[Capability]tier{
	AIJournalInsights:    {PlanPro, "Upgrade to Pro to unlock AI insights on your journal entries."},
	GoalTracking:         {PlanPro, "Upgrade to Pro to set and track personal goals."},
	EnhancedMoodTracking: {PlanPro, "Upgrade to Pro for enhanced mood tracking."},
	CalendarIntegration:  {PlanPro, "Upgrade to Pro to connect your calendar."},
	AdvancedAnalytics:    {PlanUnlimited, "Upgrade to Unlimited for advanced analytics."},
	ExportFeatures:       {PlanUnlimited, "Upgrade to Unlimited to export your journal."},
	CustomPersonalities:  {PlanUnlimited, "Upgrade to Unlimited to create custom AI personalities."},
	PrioritySupport:      {PlanUnlimited, "Upgrade to Unlimited for priority support."},
	EarlyAccess:          {PlanUnlimited, "Upgrade to Unlimited to get early access to new features."},
}

// capabilityOrder keeps a stable iteration order for listings and serialization.
var capabilityOrder = []Capability{
	AIJournalInsights,
	GoalTracking,
	EnhancedMoodTracking,
	CalendarIntegration,
	AdvancedAnalytics,
	ExportFeatures,
	CustomPersonalities,
	PrioritySupport,
	EarlyAccess,
}

// Capabilities returns every capability in the schema in a stable order.
func Capabilities() []Capability {
	out := make([]Capability, len(capabilityOrder))
	copy(out, capabilityOrder)
	return out
}

// Valid reports whether c is part of the schema.
func (c Capability) Valid() bool {
	_, ok := tiers[c]
	return ok
}

func (c Capability) String() string {
	return string(c)
}

// RequiredPlan returns the minimum plan that grants the capability.
// Returns PlanNone when no plan grants it, including unknown capabilities.
func RequiredPlan(c Capability) Plan {
	if !c.Valid() {
		return PlanNone
	}
	for _, p := range Plans() {
		if grants(p, c) {
			return p
		}
	}
	return PlanNone
}

// UpgradeMessage returns the user-facing copy explaining how to unlock c.
func UpgradeMessage(c Capability) string {
	t, ok := tiers[c]
	if !ok {
		return "This feature is not available."
	}
	return t.message
}

func grants(p Plan, c Capability) bool {
	t, ok := tiers[c]
	if !ok || t.plan == PlanNone {
		return false
	}
	return p.AtLeast(t.plan)
}
