package entitlement_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xspensesai/billingkit/pkg/catalog"
	"github.com/xspensesai/billingkit/pkg/entitlement"
	"github.com/xspensesai/billingkit/pkg/usage"
)

func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(context.Background(), catalog.NewInMemSource(catalog.DefaultPlans()...))
	require.NoError(t, err)
	return cat
}

type resolverFixture struct {
	accounts entitlement.AccountStore
	addons   entitlement.AddonStore
	ledger   *usage.Ledger
	resolver *entitlement.Resolver
}

func newResolverFixture(t *testing.T, now time.Time, opts ...entitlement.ResolverOption) *resolverFixture {
	t.Helper()

	accounts := entitlement.NewMemAccountStore()
	addons := entitlement.NewMemAddonStore()
	ledger := usage.NewLedger(usage.NewMemStore(), usage.WithClock(func() time.Time { return now }))

	opts = append([]entitlement.ResolverOption{
		entitlement.WithClock(func() time.Time { return now }),
	}, opts...)

	return &resolverFixture{
		accounts: accounts,
		addons:   addons,
		ledger:   ledger,
		resolver: entitlement.NewResolver(accounts, addons, newTestCatalog(t), ledger, opts...),
	}
}

func TestResolveActivePaidPlan(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fx := newResolverFixture(t, now)

	id := uuid.New()
	require.NoError(t, fx.accounts.Create(ctx, &entitlement.Account{
		ID:     id,
		Email:  "kai@example.com",
		PlanID: "personal",
		Status: entitlement.StatusActive,
	}))

	ent, err := fx.resolver.Resolve(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, "personal", ent.PlanID)
	assert.Equal(t, "personal", ent.EffectivePlanID)
	assert.True(t, ent.HasFeature(catalog.FeatureSmartImport))
	assert.True(t, ent.HasFeature(catalog.FeatureAIAssistant))
	assert.False(t, ent.HasFeature(catalog.FeatureTeam))
	assert.True(t, ent.IsWithinLimits)

	require.NotNil(t, ent.Limits[catalog.ResourceOCRPages])
	assert.EqualValues(t, 100, *ent.Limits[catalog.ResourceOCRPages])
}

func TestResolveUnknownAccount(t *testing.T) {
	t.Parallel()

	fx := newResolverFixture(t, time.Now())

	_, err := fx.resolver.Resolve(context.Background(), uuid.New())
	require.ErrorIs(t, err, entitlement.ErrAccountNotFound)
}

// An account whose subscription lapsed resolves to free-plan features and
// limits, while the stored PlanID stays untouched so reactivation needs no
// repair write.
func TestResolveInactiveProjectsToFreePlan(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fx := newResolverFixture(t, now)

	id := uuid.New()
	require.NoError(t, fx.accounts.Create(ctx, &entitlement.Account{
		ID:     id,
		Email:  "lapsed@example.com",
		PlanID: "business",
		Status: entitlement.StatusPastDue,
	}))

	ent, err := fx.resolver.Resolve(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, "business", ent.PlanID)
	assert.Equal(t, catalog.FreePlanID, ent.EffectivePlanID)
	assert.False(t, ent.HasFeature(catalog.FeatureSmartImport))

	require.NotNil(t, ent.Limits[catalog.ResourceOCRPages])
	assert.EqualValues(t, 10, *ent.Limits[catalog.ResourceOCRPages])

	// The stored record is untouched by resolution.
	acct, err := fx.accounts.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "business", acct.PlanID)
}

func TestResolveTrialAndGraceKeepPaidPlan(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		mutate  func(a *entitlement.Account)
		inTrial bool
		inGrace bool
	}{
		{
			name: "trialing",
			mutate: func(a *entitlement.Account) {
				a.Status = entitlement.StatusTrialing
				ends := now.Add(5 * 24 * time.Hour)
				a.TrialEndsAt = &ends
			},
			inTrial: true,
		},
		{
			name: "past due within grace",
			mutate: func(a *entitlement.Account) {
				a.Status = entitlement.StatusPastDue
				ends := now.Add(3 * 24 * time.Hour)
				a.GracePeriodEndsAt = &ends
			},
			inGrace: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fx := newResolverFixture(t, now)
			id := uuid.New()
			acct := &entitlement.Account{ID: id, Email: "t@example.com", PlanID: "personal"}
			tc.mutate(acct)
			require.NoError(t, fx.accounts.Create(ctx, acct))

			ent, err := fx.resolver.Resolve(ctx, id)
			require.NoError(t, err)

			assert.Equal(t, "personal", ent.EffectivePlanID)
			assert.Equal(t, tc.inTrial, ent.IsInTrial)
			assert.Equal(t, tc.inGrace, ent.IsInGracePeriod)
		})
	}
}

func TestResolveExpiredGraceFallsToFree(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fx := newResolverFixture(t, now)

	id := uuid.New()
	ended := now.Add(-time.Hour)
	require.NoError(t, fx.accounts.Create(ctx, &entitlement.Account{
		ID:                id,
		Email:             "expired@example.com",
		PlanID:            "personal",
		Status:            entitlement.StatusPastDue,
		GracePeriodEndsAt: &ended,
	}))

	ent, err := fx.resolver.Resolve(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, catalog.FreePlanID, ent.EffectivePlanID)
	assert.False(t, ent.IsInGracePeriod)
}

func TestResolveManualAndAddonFeatures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fx := newResolverFixture(t, now)

	id := uuid.New()
	require.NoError(t, fx.accounts.Create(ctx, &entitlement.Account{
		ID:     id,
		Email:  "manual@example.com",
		PlanID: catalog.FreePlanID,
		Status: entitlement.StatusActive,
		ManualFeatures: []catalog.Feature{
			catalog.FeatureAnalytics,
			"totally_made_up", // unknown names never widen access
		},
	}))
	require.NoError(t, fx.addons.Upsert(ctx, entitlement.Addon{
		AccountID: id,
		AddonID:   "addon_bank_sync",
		Feature:   catalog.FeatureBankSync,
		Status:    entitlement.AddonActive,
	}))
	require.NoError(t, fx.addons.Upsert(ctx, entitlement.Addon{
		AccountID: id,
		AddonID:   "addon_custom_reports",
		Feature:   catalog.FeatureCustomReports,
		Status:    entitlement.AddonCanceled,
	}))

	ent, err := fx.resolver.Resolve(ctx, id)
	require.NoError(t, err)

	assert.True(t, ent.HasFeature(catalog.FeatureAnalytics))
	assert.True(t, ent.HasFeature(catalog.FeatureBankSync))
	assert.False(t, ent.HasFeature(catalog.FeatureCustomReports), "canceled add-on grants nothing")
	assert.False(t, ent.HasFeature("totally_made_up"))
}

// Data export and deletion are available on every plan and in every
// subscription state.
func TestBaselineToolsArePlanIndependent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fx := newResolverFixture(t, now)

	accounts := []*entitlement.Account{
		{ID: uuid.New(), Email: "a@example.com", PlanID: catalog.FreePlanID, Status: entitlement.StatusActive},
		{ID: uuid.New(), Email: "b@example.com", PlanID: "enterprise", Status: entitlement.StatusActive},
		{ID: uuid.New(), Email: "c@example.com", PlanID: "business", Status: entitlement.StatusCanceled},
	}
	for _, acct := range accounts {
		require.NoError(t, fx.accounts.Create(ctx, acct))
	}

	for _, acct := range accounts {
		ent, err := fx.resolver.Resolve(ctx, acct.ID)
		require.NoError(t, err)
		assert.True(t, ent.CanUseTool(entitlement.ToolExportData), "account %s", acct.Email)
		assert.True(t, ent.CanUseTool(entitlement.ToolDeleteData), "account %s", acct.Email)
	}
}

func TestResolveCurrentPeriodUsage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fx := newResolverFixture(t, now)

	id := uuid.New()
	require.NoError(t, fx.accounts.Create(ctx, &entitlement.Account{
		ID:     id,
		Email:  "usage@example.com",
		PlanID: "personal",
		Status: entitlement.StatusActive,
	}))

	_, err := fx.ledger.Record(ctx, id, catalog.ResourceOCRPages, 60)
	require.NoError(t, err)
	_, err = fx.ledger.Record(ctx, id, catalog.ResourceOCRPages, 50)
	require.NoError(t, err)

	ent, err := fx.resolver.Resolve(ctx, id)
	require.NoError(t, err)

	assert.EqualValues(t, 110, ent.Usage[catalog.ResourceOCRPages])
	assert.False(t, ent.IsWithinLimits, "110 recorded against a limit of 100")
	assert.False(t, ent.WithinLimit(catalog.ResourceOCRPages, 1))
	assert.Equal(t, 110, ent.UsagePercent(catalog.ResourceOCRPages))

	remaining, limited := ent.Remaining(catalog.ResourceOCRPages)
	require.True(t, limited)
	assert.EqualValues(t, 0, remaining, "remaining never goes negative")
}

func TestResolveUnlimitedResources(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fx := newResolverFixture(t, now)

	id := uuid.New()
	require.NoError(t, fx.accounts.Create(ctx, &entitlement.Account{
		ID:     id,
		Email:  "ent@example.com",
		PlanID: "enterprise",
		Status: entitlement.StatusActive,
	}))

	_, err := fx.ledger.Record(ctx, id, catalog.ResourceOCRPages, 1_000_000)
	require.NoError(t, err)

	ent, err := fx.resolver.Resolve(ctx, id)
	require.NoError(t, err)

	assert.True(t, ent.IsWithinLimits)
	assert.True(t, ent.WithinLimit(catalog.ResourceOCRPages, 1_000_000))
	assert.Equal(t, -1, ent.UsagePercent(catalog.ResourceOCRPages))

	_, limited := ent.Remaining(catalog.ResourceOCRPages)
	assert.False(t, limited)
}

func TestResolveLimitOverridesReplacePlanLimits(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	id := uuid.New()
	overrides := stubOverrides{
		id: {
			catalog.ResourceOCRPages: catalog.Limit(500),
			catalog.ResourceAPICalls: nil,
		},
	}
	fx := newResolverFixture(t, now, entitlement.WithLimitOverrides(overrides))

	require.NoError(t, fx.accounts.Create(ctx, &entitlement.Account{
		ID:     id,
		Email:  "override@example.com",
		PlanID: "personal",
		Status: entitlement.StatusActive,
	}))

	ent, err := fx.resolver.Resolve(ctx, id)
	require.NoError(t, err)

	require.NotNil(t, ent.Limits[catalog.ResourceOCRPages])
	assert.EqualValues(t, 500, *ent.Limits[catalog.ResourceOCRPages])
	assert.True(t, ent.WithinLimit(catalog.ResourceAPICalls, 1_000_000), "overridden to unlimited")

	// The override row replaces plan limits wholesale, so storage is now
	// unmetered rather than inheriting the plan's value.
	_, metered := ent.Limits[catalog.ResourceStorageGB]
	assert.False(t, metered)
}

type stubOverrides map[uuid.UUID]map[catalog.Resource]*int64

func (s stubOverrides) OverridesFor(ctx context.Context, accountID uuid.UUID) (map[catalog.Resource]*int64, error) {
	return s[accountID], nil
}

func TestToolsForFeatures(t *testing.T) {
	t.Parallel()

	t.Run("empty feature set still grants baseline", func(t *testing.T) {
		t.Parallel()

		tools := entitlement.ToolsForFeatures(nil)
		assert.ElementsMatch(t, []entitlement.Tool{
			entitlement.ToolDeleteData,
			entitlement.ToolExportData,
		}, tools)
	})

	t.Run("overlapping grants are deduplicated", func(t *testing.T) {
		t.Parallel()

		tools := entitlement.ToolsForFeatures([]catalog.Feature{
			catalog.FeatureAnalytics,
			catalog.FeatureCustomReports,
		})

		count := 0
		for _, tool := range tools {
			if tool == entitlement.ToolGenerateReport {
				count++
			}
		}
		assert.Equal(t, 1, count)
		assert.Contains(t, tools, entitlement.ToolManageKnowledgePack)
	})

	t.Run("result is sorted", func(t *testing.T) {
		t.Parallel()

		tools := entitlement.ToolsForFeatures([]catalog.Feature{
			catalog.FeatureAIAssistant,
			catalog.FeatureTeam,
			catalog.FeatureAPIAccess,
		})
		assert.IsType(t, []entitlement.Tool{}, tools)
		for i := 1; i < len(tools); i++ {
			assert.LessOrEqual(t, tools[i-1], tools[i])
		}
	})
}
