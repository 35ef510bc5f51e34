// Package entitlement maps a subscription plan to the set of features a user can access.
//
// Everything here is pure and synchronous: there is no I/O, no state and no configuration.
// A single tier table assigns each Capability the minimum Plan that unlocks it, and the
// resolver, the per-capability lookups and the upgrade copy are all derived from it.
//
// # Plans
//
// Plans are ordered none < trial < pro < unlimited. Each plan grants a superset of the
// capabilities of every lower plan. Unknown plan tags are treated as none.
//
// # Usage
//
//	access := entitlement.Resolve(entitlement.PlanPro)
//	if access.GoalTracking {
//		// render goals
//	}
//
//	ok, err := entitlement.HasAccess(plan, entitlement.AdvancedAnalytics)
//	if err != nil {
//		// unknown capability: a bug in the caller
//	}
//
//	if !ok {
//		msg := entitlement.UpgradeMessage(entitlement.AdvancedAnalytics)
//		need := entitlement.RequiredPlan(entitlement.AdvancedAnalytics) // unlimited
//	}
package entitlement
