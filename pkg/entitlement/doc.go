// Package entitlement resolves what an account is allowed to do right now.
//
// The resolver is a pure read path: it joins the stored account record,
// active add-ons, optional per-account limit overrides, the plan catalog
// and the current period's usage totals into a single Entitlements
// snapshot. Resolution never mutates state. An account whose subscription
// lapsed is projected onto the free plan at read time while its stored
// PlanID stays untouched, so a later reactivation needs no repair step.
//
// Snapshots are point-in-time: a snapshot taken before a usage write does
// not reflect that write. Callers that gate work on limits should resolve
// immediately before checking (see the gate package).
//
// Manual features let operators grant individual features outside the plan
// matrix; unknown names are dropped at resolution so a stale grant can
// never widen access. Baseline tools are always present in AllowedTools
// regardless of plan or subscription state.
package entitlement
