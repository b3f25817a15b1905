// Package notify records billing notifications (usage alerts, payment
// outcomes, trial expiry, upcoming renewals) for downstream delivery. The
// stored record is the system of record; email mirroring is optional and
// best-effort.
package notify
