package catalog

import (
	"slices"
	"time"
)

// Plan describes a subscription plan: the features it includes and the
// per-period limits on metered resources. A nil limit means unlimited.
// Plans are immutable at runtime; the catalog is replaced only by deployment.
type Plan struct {
	ID          string
	Name        string
	Description string
	Tier        int // ordering for upgrade/downgrade classification, free == 0
	Limits      map[Resource]*int64
	Features    []Feature
	Public      bool // available for self-service signup
	TrialDays   int
	Price       Money
	Interval    BillingInterval
}

// HasFeature reports whether the plan includes the given feature.
func (p Plan) HasFeature(f Feature) bool {
	return slices.Contains(p.Features, f)
}

// TrialEndsAt calculates when the trial period ends.
// Returns startedAt unchanged if the plan has no trial.
func (p Plan) TrialEndsAt(startedAt time.Time) time.Time {
	if p.TrialDays <= 0 {
		return startedAt
	}
	return startedAt.AddDate(0, 0, p.TrialDays).UTC()
}

// LimitChange represents a change in a resource limit between two plans.
// A nil From or To means unlimited on that side.
type LimitChange struct {
	From *int64
	To   *int64
}

// PlanComparison contains the differences between two plans. Used to explain
// upgrades and downgrades to users before they confirm a billing action.
type PlanComparison struct {
	NewFeatures     []Feature
	LostFeatures    []Feature
	IncreasedLimits map[Resource]LimitChange
	DecreasedLimits map[Resource]LimitChange
}

// HasDecreases reports whether the target plan reduces any limit or drops
// any feature compared to the current one.
func (c *PlanComparison) HasDecreases() bool {
	return len(c.DecreasedLimits) > 0 || len(c.LostFeatures) > 0
}

// ComparePlans returns the differences between current and target plans.
func ComparePlans(current, target *Plan) *PlanComparison {
	if current == nil || target == nil {
		return nil
	}

	cmp := &PlanComparison{
		NewFeatures:     make([]Feature, 0),
		LostFeatures:    make([]Feature, 0),
		IncreasedLimits: make(map[Resource]LimitChange),
		DecreasedLimits: make(map[Resource]LimitChange),
	}

	for _, f := range target.Features {
		if !slices.Contains(current.Features, f) {
			cmp.NewFeatures = append(cmp.NewFeatures, f)
		}
	}
	for _, f := range current.Features {
		if !slices.Contains(target.Features, f) {
			cmp.LostFeatures = append(cmp.LostFeatures, f)
		}
	}

	for res, targetLimit := range target.Limits {
		currentLimit, exists := current.Limits[res]
		if !exists {
			continue
		}

		change := LimitChange{From: currentLimit, To: targetLimit}
		switch {
		case currentLimit == nil && targetLimit == nil:
			// both unlimited
		case currentLimit == nil:
			// unlimited to limited is always a decrease
			cmp.DecreasedLimits[res] = change
		case targetLimit == nil:
			cmp.IncreasedLimits[res] = change
		case *targetLimit > *currentLimit:
			cmp.IncreasedLimits[res] = change
		case *targetLimit < *currentLimit:
			cmp.DecreasedLimits[res] = change
		}
	}

	return cmp
}
