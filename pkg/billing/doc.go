// Package billing keeps local account state and the payment provider in
// step. The Synchronizer owns the outbound direction (customer
// provisioning, checkout, plan changes, cancellation, overage reporting,
// payment retries); the Reconciler owns the inbound direction, applying
// webhook events behind a deduplication guard.
//
// The provider is the source of truth for subscription state. Local writes
// happen only after a provider call succeeded, and anything the provider
// settles later (scheduled plan switches, period-end cancellations, payment
// outcomes) is left for the Reconciler rather than written optimistically.
package billing
