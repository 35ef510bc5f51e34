package entitlement

import "fmt"

// Access is the full capability set derived from a plan.
// Every field is always populated; a zero Access denies everything.
type Access struct {
	AIJournalInsights    bool `json:"aiJournalInsights"`
	GoalTracking         bool `json:"goalTracking"`
	EnhancedMoodTracking bool `json:"enhancedMoodTracking"`
	CalendarIntegration  bool `json:"calendarIntegration"`
	AdvancedAnalytics    bool `json:"advancedAnalytics"`
	ExportFeatures       bool `json:"exportFeatures"`
	CustomPersonalities  bool `json:"customPersonalities"`
	PrioritySupport      bool `json:"prioritySupport"`
	EarlyAccess          bool `json:"earlyAccess"`
}

// Resolve maps a plan to its capability set.
// Unknown plans are treated as PlanNone.
func Resolve(p Plan) Access {
	if !p.Valid() {
		p = PlanNone
	}
	return Access{
		AIJournalInsights:    grants(p, AIJournalInsights),
		GoalTracking:         grants(p, GoalTracking),
		EnhancedMoodTracking: grants(p, EnhancedMoodTracking),
		CalendarIntegration:  grants(p, CalendarIntegration),
		AdvancedAnalytics:    grants(p, AdvancedAnalytics),
		ExportFeatures:       grants(p, ExportFeatures),
		CustomPersonalities:  grants(p, CustomPersonalities),
		PrioritySupport:      grants(p, PrioritySupport),
		EarlyAccess:          grants(p, EarlyAccess),
	}
}

// HasAccess reports whether the plan grants the capability.
// Returns ErrUnknownCapability for capabilities outside the schema.
func HasAccess(p Plan, c Capability) (bool, error) {
	if !c.Valid() {
		return false, fmt.Errorf("%w: %q", ErrUnknownCapability, c)
	}
	return Resolve(p).Has(c), nil
}

// MustHaveAccess is like HasAccess but panics on unknown capabilities.
// Intended for call sites that pass one of the exported constants.
func MustHaveAccess(p Plan, c Capability) bool {
	ok, err := HasAccess(p, c)
	if err != nil {
		panic(err)
	}
	return ok
}

// Has returns the flag for c. Unknown capabilities are denied.
func (a Access) Has(c Capability) bool {
	switch c {
	case AIJournalInsights:
		return a.AIJournalInsights
	case GoalTracking:
		return a.GoalTracking
	case EnhancedMoodTracking:
		return a.EnhancedMoodTracking
	case CalendarIntegration:
		return a.CalendarIntegration
	case AdvancedAnalytics:
		return a.AdvancedAnalytics
	case ExportFeatures:
		return a.ExportFeatures
	case CustomPersonalities:
		return a.CustomPersonalities
	case PrioritySupport:
		return a.PrioritySupport
	case EarlyAccess:
		return a.EarlyAccess
	default:
		return false
	}
}

// Map returns the capability set keyed by capability name.
func (a Access) Map() map[Capability]bool {
	m := make(map[Capability]bool, len(capabilityOrder))
	for _, c := range capabilityOrder {
		m[c] = a.Has(c)
	}
	return m
}

// Covers reports whether a grants every capability granted by other.
func (a Access) Covers(other Access) bool {
	for _, c := range capabilityOrder {
		if other.Has(c) && !a.Has(c) {
			return false
		}
	}
	return true
}
