package catalog

// DefaultPlans returns the built-in plan tiers. Deployments that price
// differently should ship their own catalog file instead (see NewFileSource).
func DefaultPlans() []Plan {
	return []Plan{
		{
			ID:       FreePlanID,
			Name:     "Free",
			Tier:     0,
			Public:   true,
			Interval: BillingIntervalNone,
			Limits: map[Resource]*int64{
				ResourceOCRPages:  Limit(10),
				ResourceAPICalls:  Limit(100),
				ResourceStorageGB: Limit(1),
			},
			Features: []Feature{},
		},
		{
			ID:        "personal",
			Name:      "Personal",
			Tier:      1,
			Public:    true,
			TrialDays: 14,
			Price:     Money{Amount: 999, Currency: "USD"},
			Interval:  BillingIntervalMonthly,
			Limits: map[Resource]*int64{
				ResourceOCRPages:  Limit(100),
				ResourceAPICalls:  Limit(1000),
				ResourceStorageGB: Limit(10),
			},
			Features: []Feature{
				FeatureSmartImport,
				FeatureAIAssistant,
			},
		},
		{
			ID:        "business",
			Name:      "Business",
			Tier:      2,
			Public:    true,
			TrialDays: 14,
			Price:     Money{Amount: 2999, Currency: "USD"},
			Interval:  BillingIntervalMonthly,
			Limits: map[Resource]*int64{
				ResourceOCRPages:  Limit(1000),
				ResourceAPICalls:  Limit(10000),
				ResourceStorageGB: Limit(100),
			},
			Features: []Feature{
				FeatureSmartImport,
				FeatureAIAssistant,
				FeatureAnalytics,
				FeatureTeam,
				FeatureAPIAccess,
				FeatureCustomReports,
			},
		},
		{
			ID:       "enterprise",
			Name:     "Enterprise",
			Tier:     3,
			Public:   false,
			Price:    Money{Amount: 9999, Currency: "USD"},
			Interval: BillingIntervalMonthly,
			Limits: map[Resource]*int64{
				ResourceOCRPages:  nil, // unlimited
				ResourceAPICalls:  nil,
				ResourceStorageGB: Limit(1000),
			},
			Features: []Feature{
				FeatureSmartImport,
				FeatureAIAssistant,
				FeatureAnalytics,
				FeatureTeam,
				FeatureAPIAccess,
				FeatureCustomReports,
				FeatureBankSync,
				FeaturePrioritySupport,
			},
		},
	}
}
