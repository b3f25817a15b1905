// Package gate enforces per-period usage limits in front of metered
// operations. It composes the entitlement resolver (what the limit is and
// how much was used) with the usage ledger (the append-only record of what
// happened), and keeps the two concerns strictly apart: checks never write,
// writes are never blocked.
package gate
