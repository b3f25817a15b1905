package catalog

import "errors"

var (
	ErrUnknownPlan              = errors.New("unknown plan id")
	ErrInvalidPlanConfiguration = errors.New("invalid plan configuration")
	ErrFailedToLoadPlans        = errors.New("failed to load plan catalog")
	ErrNoPlans                  = errors.New("plan catalog is empty")
)
