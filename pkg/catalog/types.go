package catalog

// Resource represents a metered resource type tracked per billing period.
type Resource string

const (
	ResourceOCRPages  Resource = "ocr_pages"
	ResourceAPICalls  Resource = "api_calls"
	ResourceStorageGB Resource = "storage_gb"
)

// UnitFor returns the unit of measure a resource is recorded in.
func UnitFor(res Resource) string {
	switch res {
	case ResourceOCRPages:
		return "page"
	case ResourceAPICalls:
		return "call"
	case ResourceStorageGB:
		return "gb"
	default:
		return "unit"
	}
}

// Feature represents a plan-specific capability that can be enabled per plan,
// granted manually on an account, or attached through an add-on.
type Feature string

const (
	FeatureSmartImport     Feature = "smart_import"
	FeatureAIAssistant     Feature = "ai_assistant"
	FeatureAnalytics       Feature = "analytics"
	FeatureTeam            Feature = "team_collaboration"
	FeatureAPIAccess       Feature = "api_access"
	FeatureCustomReports   Feature = "custom_reports"
	FeatureBankSync        Feature = "bank_sync"
	FeaturePrioritySupport Feature = "priority_support"
)

// KnownFeatures lists every feature the engine understands. Unknown feature
// strings (e.g. from a stale manual override) are ignored during resolution
// rather than granting anything by accident.
var KnownFeatures = []Feature{
	FeatureSmartImport,
	FeatureAIAssistant,
	FeatureAnalytics,
	FeatureTeam,
	FeatureAPIAccess,
	FeatureCustomReports,
	FeatureBankSync,
	FeaturePrioritySupport,
}

// Money represents a monetary amount in the smallest currency unit.
type Money struct {
	Amount   int64  `yaml:"amount"`   // cents for USD
	Currency string `yaml:"currency"` // ISO 4217 code
}

// BillingInterval represents the billing frequency for a subscription plan.
type BillingInterval string

const (
	BillingIntervalNone    BillingInterval = "none" // free plans with no billing
	BillingIntervalMonthly BillingInterval = "monthly"
	BillingIntervalAnnual  BillingInterval = "annual"
)

// Limit wraps a literal limit value for use in plan definitions.
// A nil *int64 in a plan's limit map means the resource is unlimited.
func Limit(v int64) *int64 {
	return &v
}
