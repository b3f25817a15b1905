package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xspensesai/billingkit/pkg/catalog"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("loads default plans", func(t *testing.T) {
		t.Parallel()

		c, err := catalog.New(context.Background(), catalog.NewInMemSource(catalog.DefaultPlans()...))
		require.NoError(t, err)
		assert.Equal(t, []string{"free", "personal", "business", "enterprise"}, c.PlanIDs())
	})

	t.Run("rejects catalog without free plan", func(t *testing.T) {
		t.Parallel()

		src := catalog.NewInMemSource(catalog.Plan{ID: "personal", Tier: 1})
		_, err := catalog.New(context.Background(), src)
		require.ErrorIs(t, err, catalog.ErrInvalidPlanConfiguration)
	})

	t.Run("rejects plan id mismatch", func(t *testing.T) {
		t.Parallel()

		// map key comes from plan.ID in the in-mem source, so build a
		// broken source directly
		src := brokenSource{plans: map[string]catalog.Plan{
			"free":  {ID: "free"},
			"other": {ID: "personal", Tier: 1},
		}}
		_, err := catalog.New(context.Background(), src)
		require.ErrorIs(t, err, catalog.ErrInvalidPlanConfiguration)
	})

	t.Run("rejects unknown feature", func(t *testing.T) {
		t.Parallel()

		src := catalog.NewInMemSource(
			catalog.Plan{ID: "free"},
			catalog.Plan{ID: "personal", Tier: 1, Features: []catalog.Feature{"typo_feature"}},
		)
		_, err := catalog.New(context.Background(), src)
		require.ErrorIs(t, err, catalog.ErrInvalidPlanConfiguration)
	})
}

type brokenSource struct {
	plans map[string]catalog.Plan
}

func (s brokenSource) Load(ctx context.Context) (map[string]catalog.Plan, error) {
	return s.plans, nil
}

func TestCatalogLookups(t *testing.T) {
	t.Parallel()

	c, err := catalog.New(context.Background(), catalog.NewInMemSource(catalog.DefaultPlans()...))
	require.NoError(t, err)

	t.Run("limits for known plan", func(t *testing.T) {
		t.Parallel()

		limits, err := c.LimitsFor("personal")
		require.NoError(t, err)
		require.NotNil(t, limits[catalog.ResourceOCRPages])
		assert.EqualValues(t, 100, *limits[catalog.ResourceOCRPages])
	})

	t.Run("nil limit means unlimited", func(t *testing.T) {
		t.Parallel()

		limits, err := c.LimitsFor("enterprise")
		require.NoError(t, err)
		assert.Contains(t, limits, catalog.ResourceOCRPages)
		assert.Nil(t, limits[catalog.ResourceOCRPages])
	})

	t.Run("unknown plan is an error, not a default", func(t *testing.T) {
		t.Parallel()

		_, err := c.LimitsFor("premium")
		require.ErrorIs(t, err, catalog.ErrUnknownPlan)

		_, err = c.FeaturesFor("premium")
		require.ErrorIs(t, err, catalog.ErrUnknownPlan)

		require.ErrorIs(t, c.Verify("premium"), catalog.ErrUnknownPlan)
	})

	t.Run("features are copies", func(t *testing.T) {
		t.Parallel()

		features, err := c.FeaturesFor("business")
		require.NoError(t, err)
		require.NotEmpty(t, features)
		features[0] = "mutated"

		again, err := c.FeaturesFor("business")
		require.NoError(t, err)
		assert.NotEqual(t, catalog.Feature("mutated"), again[0])
	})
}

func TestComparePlans(t *testing.T) {
	t.Parallel()

	c, err := catalog.New(context.Background(), catalog.NewInMemSource(catalog.DefaultPlans()...))
	require.NoError(t, err)

	personal, err := c.Plan("personal")
	require.NoError(t, err)
	business, err := c.Plan("business")
	require.NoError(t, err)
	enterprise, err := c.Plan("enterprise")
	require.NoError(t, err)

	t.Run("upgrade gains features and limits", func(t *testing.T) {
		t.Parallel()

		cmp := catalog.ComparePlans(&personal, &business)
		require.NotNil(t, cmp)
		assert.Contains(t, cmp.NewFeatures, catalog.FeatureAnalytics)
		assert.Empty(t, cmp.LostFeatures)
		assert.Contains(t, cmp.IncreasedLimits, catalog.ResourceOCRPages)
		assert.False(t, cmp.HasDecreases())
	})

	t.Run("downgrade from unlimited is a decrease", func(t *testing.T) {
		t.Parallel()

		cmp := catalog.ComparePlans(&enterprise, &business)
		require.NotNil(t, cmp)
		assert.Contains(t, cmp.DecreasedLimits, catalog.ResourceOCRPages)
		assert.True(t, cmp.HasDecreases())
	})

	t.Run("nil plans", func(t *testing.T) {
		t.Parallel()

		assert.Nil(t, catalog.ComparePlans(nil, &business))
		assert.Nil(t, catalog.ComparePlans(&business, nil))
	})
}
