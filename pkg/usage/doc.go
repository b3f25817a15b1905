// Package usage implements the usage ledger: an append-only record of
// consumption events scoped to (account, resource, billing period).
//
// A billing period is one calendar month in the canonical billing timezone.
// Every record carries its period bounds and a per-(account, resource)
// monotonic sequence number assigned at append time, so period totals used
// for overage reporting can be reasoned about in receipt order.
//
// The ledger is intentionally decoupled from limit enforcement: limits gate
// permission to act, not permission to log. The "check limit then record"
// sequence across the gate and the ledger is not atomic — two concurrent
// requests can both pass the check before either records. Limits here are
// advisory and billable, so soft overshoot is accepted. Deployments that
// need hard quotas should replace Store.Append with a conditional
// increment-and-compare against the running period total inside the
// datastore.
package usage
