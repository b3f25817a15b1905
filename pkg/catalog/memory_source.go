package catalog

import (
	"context"
	"slices"
)

type inMemSource struct {
	plans map[string]Plan
}

// NewInMemSource returns an in-memory Source with a deep copy of the given
// plans. Panics if no plans are provided so the catalog never starts empty.
// Deep copying keeps later mutations of the inputs from leaking in.
func NewInMemSource(plans ...Plan) Source {
	if len(plans) == 0 {
		panic("catalog: at least one plan is required")
	}

	plansCopy := make(map[string]Plan, len(plans))
	for _, plan := range plans {
		plansCopy[plan.ID] = clonePlan(plan)
	}

	return &inMemSource{plans: plansCopy}
}

// Load returns a copy of all plans.
func (s *inMemSource) Load(ctx context.Context) (map[string]Plan, error) {
	plansCopy := make(map[string]Plan, len(s.plans))
	for id, plan := range s.plans {
		plansCopy[id] = clonePlan(plan)
	}
	return plansCopy, nil
}

func clonePlan(p Plan) Plan {
	limits := make(map[Resource]*int64, len(p.Limits))
	for res, limit := range p.Limits {
		if limit == nil {
			limits[res] = nil
			continue
		}
		v := *limit
		limits[res] = &v
	}

	return Plan{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Tier:        p.Tier,
		Limits:      limits,
		Features:    slices.Clone(p.Features),
		Public:      p.Public,
		TrialDays:   p.TrialDays,
		Price:       p.Price,
		Interval:    p.Interval,
	}
}
