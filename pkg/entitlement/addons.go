package entitlement

import "github.com/xspensesai/billingkit/pkg/catalog"

// addonFeatures is the closed mapping from purchasable add-on ids to the one
// feature flag each grants. An add-on id outside this table grants nothing.
var addonFeatures = map[string]catalog.Feature{
	"addon_bank_sync":        catalog.FeatureBankSync,
	"addon_custom_reports":   catalog.FeatureCustomReports,
	"addon_priority_support": catalog.FeaturePrioritySupport,
}

// FeatureForAddon returns the feature flag granted by an add-on id.
func FeatureForAddon(addonID string) (catalog.Feature, bool) {
	f, ok := addonFeatures[addonID]
	return f, ok
}

// KnownAddonIDs returns the ids of all purchasable add-ons.
func KnownAddonIDs() []string {
	ids := make([]string, 0, len(addonFeatures))
	for id := range addonFeatures {
		ids = append(ids, id)
	}
	return ids
}
