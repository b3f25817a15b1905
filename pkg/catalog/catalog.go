package catalog

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
)

// FreePlanID is the plan every account falls back to when its subscription
// is no longer active. The fallback is always an explicit caller decision;
// the catalog itself never substitutes it for an unknown id.
const FreePlanID = "free"

// Source defines how plans are loaded into the catalog.
type Source interface {
	Load(ctx context.Context) (map[string]Plan, error)
}

// Catalog is a read-only lookup of plans, per-plan feature lists and per-plan
// resource limits. Safe for concurrent use: the plan map is immutable after
// construction.
type Catalog struct {
	plans map[string]Plan
}

// New loads plans from the given source and validates them.
// Panics if src is nil to fail fast during initialization.
func New(ctx context.Context, src Source) (*Catalog, error) {
	if src == nil {
		panic("catalog: Source is required")
	}

	plans, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	if len(plans) == 0 {
		return nil, errors.Join(ErrFailedToLoadPlans, ErrNoPlans)
	}

	if err := validatePlans(plans); err != nil {
		return nil, err
	}

	return &Catalog{plans: plans}, nil
}

// Plan returns the plan with the given id.
// Unknown ids are an error, never silently defaulted.
func (c *Catalog) Plan(planID string) (Plan, error) {
	plan, exists := c.plans[planID]
	if !exists {
		return Plan{}, fmt.Errorf("%w: %s", ErrUnknownPlan, planID)
	}
	return plan, nil
}

// LimitsFor returns the resource limits of a plan. A nil value for a resource
// means unlimited. The returned map is a copy.
func (c *Catalog) LimitsFor(planID string) (map[Resource]*int64, error) {
	plan, err := c.Plan(planID)
	if err != nil {
		return nil, err
	}
	return maps.Clone(plan.Limits), nil
}

// FeaturesFor returns the feature list of a plan as a copy.
func (c *Catalog) FeaturesFor(planID string) ([]Feature, error) {
	plan, err := c.Plan(planID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(plan.Features), nil
}

// Verify checks that a plan id is present in the catalog.
func (c *Catalog) Verify(planID string) error {
	_, err := c.Plan(planID)
	return err
}

// PlanIDs returns all plan ids, sorted by tier then id for stable output.
func (c *Catalog) PlanIDs() []string {
	ids := slices.Collect(maps.Keys(c.plans))
	slices.SortFunc(ids, func(a, b string) int {
		if d := c.plans[a].Tier - c.plans[b].Tier; d != 0 {
			return d
		}
		return compareStrings(a, b)
	})
	return ids
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// validatePlans catches configuration mistakes at startup rather than
// letting them surface as runtime entitlement bugs.
func validatePlans(plans map[string]Plan) error {
	if _, hasFree := plans[FreePlanID]; !hasFree {
		return errors.Join(ErrInvalidPlanConfiguration,
			fmt.Errorf("catalog must contain the %q fallback plan", FreePlanID))
	}

	for planID, plan := range plans {
		if plan.ID != planID {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan ID mismatch: map key %s != plan.ID %s", planID, plan.ID))
		}
		if plan.TrialDays < 0 {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan %s has negative trial days: %d", planID, plan.TrialDays))
		}
		if plan.Tier < 0 {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan %s has negative tier: %d", planID, plan.Tier))
		}
		for res, limit := range plan.Limits {
			if limit != nil && *limit < 0 {
				return errors.Join(ErrInvalidPlanConfiguration,
					fmt.Errorf("plan %s has negative limit for %s: %d", planID, res, *limit))
			}
		}
		for _, f := range plan.Features {
			if !slices.Contains(KnownFeatures, f) {
				return errors.Join(ErrInvalidPlanConfiguration,
					fmt.Errorf("plan %s references unknown feature %q", planID, f))
			}
		}
	}
	return nil
}
