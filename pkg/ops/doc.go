// Package ops is the billing operation façade: one operation per
// user-initiated action (upgrade, downgrade, cancel, retry_payment,
// update_card, check_usage_limits, record_usage), each returning a tagged
// Result with a stable machine code. Mutating actions carry meta marking
// them dangerous and confirmation-gated, since they have real monetary
// effect.
//
// The package also mounts the HTTP surface over chi, including the provider
// webhook endpoint. Authentication is an upstream collaborator; handlers
// read the account id the upstream stamped onto the request context.
package ops
