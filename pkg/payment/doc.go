// Package payment abstracts the payment provider behind a narrow Provider
// interface and ships the Stripe implementation. Every call is one
// synchronous round trip; failures come back as *ProviderError carrying the
// provider's code and message, and never leave partial local state behind.
//
// Price identifiers are opaque injected configuration (PriceTable); the
// package never resolves them against the provider.
package payment
