// Package catalog provides the plan catalog: a read-only lookup of
// subscription plans with their feature lists and per-period resource limits.
//
// A limit is a *int64 where nil means unlimited; this mirrors the nullable
// limit columns used by pricing configuration and keeps "no limit" distinct
// from "limit of zero". Unknown plan ids are always an error — callers that
// want the free-tier fallback must ask for FreePlanID explicitly, so that an
// accidental bad id can never grant (or deny) the wrong plan silently.
//
// Plans can be loaded from an in-memory definition (NewInMemSource with
// DefaultPlans) or from a YAML file (NewFileSource) deployed alongside the
// service. The catalog is immutable after construction and safe for
// concurrent use without locking.
package catalog
