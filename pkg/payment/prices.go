package payment

import (
	"github.com/xspensesai/billingkit/pkg/catalog"
)

// PriceTable maps plan ids and metered resources to the provider's price
// identifiers. The identifiers are opaque injected configuration; the table
// never tries to resolve them itself.
type PriceTable struct {
	// Plans maps a plan id to the recurring price charged for it.
	Plans map[string]string
	// Metered maps a resource to the metered overage price attached to
	// paid subscriptions.
	Metered map[catalog.Resource]string
}

// PriceForPlan returns the recurring price id for a plan.
func (t PriceTable) PriceForPlan(planID string) (string, error) {
	id, ok := t.Plans[planID]
	if !ok || id == "" {
		return "", ErrUnknownPrice
	}
	return id, nil
}

// PriceForResource returns the metered price id for a resource.
func (t PriceTable) PriceForResource(res catalog.Resource) (string, error) {
	id, ok := t.Metered[res]
	if !ok || id == "" {
		return "", ErrUnknownPrice
	}
	return id, nil
}

// PlanForPrice reverse-maps a price id back to the plan it charges for.
// Used by the webhook path to attribute provider events to a plan.
func (t PriceTable) PlanForPrice(priceID string) (string, bool) {
	for planID, id := range t.Plans {
		if id == priceID {
			return planID, true
		}
	}
	return "", false
}
