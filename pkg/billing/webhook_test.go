package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xspensesai/billingkit/pkg/billing"
	"github.com/xspensesai/billingkit/pkg/catalog"
	"github.com/xspensesai/billingkit/pkg/entitlement"
	"github.com/xspensesai/billingkit/pkg/notify"
	"github.com/xspensesai/billingkit/pkg/payment"
)

type reconcilerFixture struct {
	accounts entitlement.AccountStore
	addons   entitlement.AddonStore
	subs     billing.SubscriptionStore
	storage  notify.Storage
	rec      *billing.Reconciler
	now      time.Time
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	accounts := entitlement.NewMemAccountStore()
	addons := entitlement.NewMemAddonStore()
	subs := billing.NewMemSubscriptionStore()
	storage := notify.NewMemStorage()

	rec := billing.NewReconciler(accounts, addons, subs, billing.NewMemDeduplicator(), testPrices,
		billing.WithReconcilerNotifier(notify.NewManager(storage)),
		billing.WithReconcilerClock(func() time.Time { return now }),
	)

	return &reconcilerFixture{
		accounts: accounts,
		addons:   addons,
		subs:     subs,
		storage:  storage,
		rec:      rec,
		now:      now,
	}
}

func (fx *reconcilerFixture) createAccount(t *testing.T, planID string, status entitlement.Status) *entitlement.Account {
	t.Helper()

	acct := &entitlement.Account{
		ID:                uuid.New(),
		Email:             "hook@example.com",
		PlanID:            planID,
		Status:            status,
		BillingCustomerID: "cus_1",
	}
	require.NoError(t, fx.accounts.Create(t.Context(), acct))
	return acct
}

func TestProcessDeduplicatesRedelivery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newReconcilerFixture(t)
	acct := fx.createAccount(t, "personal", entitlement.StatusActive)

	ev := &payment.Event{
		ID:         "evt_1",
		Type:       payment.EventPaymentSucceeded,
		CustomerID: "cus_1",
		InvoiceID:  "in_1",
	}
	require.NoError(t, fx.rec.Process(ctx, ev))
	require.NoError(t, fx.rec.Process(ctx, ev))

	list, err := notify.NewManager(fx.storage).List(ctx, acct.ID, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1, "redelivery must not double-apply")
}

// A failed handler releases the dedup mark so the provider's redelivery can
// retry the event.
func TestProcessFailureAllowsRetry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newReconcilerFixture(t)

	ev := &payment.Event{
		ID:         "evt_orphan",
		Type:       payment.EventPaymentFailed,
		CustomerID: "cus_unknown",
		InvoiceID:  "in_1",
	}
	require.ErrorIs(t, fx.rec.Process(ctx, ev), billing.ErrUnattributableEvent)

	// The account appears (e.g. replica lag resolved); the retry lands.
	acct := fx.createAccount(t, "personal", entitlement.StatusActive)
	ev.CustomerID = acct.BillingCustomerID
	require.NoError(t, fx.rec.Process(ctx, ev))

	got, err := fx.accounts.Get(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, entitlement.StatusPastDue, got.Status)
}

func TestCheckoutCompletedActivatesPlan(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newReconcilerFixture(t)
	acct := fx.createAccount(t, catalog.FreePlanID, entitlement.StatusActive)

	ev := &payment.Event{
		ID:             "evt_checkout",
		Type:           payment.EventCheckoutCompleted,
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
		Metadata: map[string]string{
			"account_id": acct.ID.String(),
			"plan_id":    "personal",
		},
	}
	require.NoError(t, fx.rec.Process(ctx, ev))

	got, err := fx.accounts.Get(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, "personal", got.PlanID)
	assert.Equal(t, entitlement.StatusActive, got.Status)

	mirror, err := fx.subs.GetByProviderID(ctx, "sub_1")
	require.NoError(t, err)
	require.NotNil(t, mirror)
	assert.Equal(t, acct.ID, mirror.AccountID)
	assert.Equal(t, "personal", mirror.PlanID)
}

func TestCheckoutCompletedActivatesAddon(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newReconcilerFixture(t)
	acct := fx.createAccount(t, "personal", entitlement.StatusActive)

	ev := &payment.Event{
		ID:         "evt_addon",
		Type:       payment.EventCheckoutCompleted,
		CustomerID: "cus_1",
		Metadata: map[string]string{
			"account_id": acct.ID.String(),
			"addon_id":   "addon_bank_sync",
		},
	}
	require.NoError(t, fx.rec.Process(ctx, ev))

	active, err := fx.addons.ListActive(ctx, acct.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, catalog.FeatureBankSync, active[0].Feature)

	// Plan is untouched by an addon purchase.
	got, err := fx.accounts.Get(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, "personal", got.PlanID)
}

// A scheduled plan switch crosses the period boundary as a
// subscription.updated event carrying the new price; this is where a
// non-immediate downgrade finally lands locally.
func TestSubscriptionUpdatedAppliesScheduledSwitch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newReconcilerFixture(t)
	acct := fx.createAccount(t, "business", entitlement.StatusActive)

	periodEnd := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	ev := &payment.Event{
		ID:             "evt_sub_updated",
		Type:           payment.EventSubscriptionUpdated,
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
		Subscription: &payment.Subscription{
			ID:               "sub_1",
			CustomerID:       "cus_1",
			Status:           "active",
			CurrentPeriodEnd: periodEnd,
			Items: []payment.SubscriptionItem{
				{ID: "si_plan", PriceID: "price_personal"},
			},
		},
	}
	require.NoError(t, fx.rec.Process(ctx, ev))

	got, err := fx.accounts.Get(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, "personal", got.PlanID)

	mirror, err := fx.subs.GetByProviderID(ctx, "sub_1")
	require.NoError(t, err)
	require.NotNil(t, mirror)
	assert.Equal(t, periodEnd, mirror.CurrentPeriodEnd)
}

func TestSubscriptionDeletedDropsToFree(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newReconcilerFixture(t)
	acct := fx.createAccount(t, "business", entitlement.StatusActive)

	ev := &payment.Event{
		ID:         "evt_sub_deleted",
		Type:       payment.EventSubscriptionDeleted,
		CustomerID: "cus_1",
		Subscription: &payment.Subscription{
			ID:         "sub_1",
			CustomerID: "cus_1",
			Status:     "canceled",
		},
	}
	require.NoError(t, fx.rec.Process(ctx, ev))

	got, err := fx.accounts.Get(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.FreePlanID, got.PlanID)
	assert.Equal(t, entitlement.StatusCanceled, got.Status)
}

func TestPaymentFailedGrantsGraceWindow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newReconcilerFixture(t)
	acct := fx.createAccount(t, "personal", entitlement.StatusActive)

	ev := &payment.Event{
		ID:         "evt_pay_failed",
		Type:       payment.EventPaymentFailed,
		CustomerID: "cus_1",
		InvoiceID:  "in_1",
	}
	require.NoError(t, fx.rec.Process(ctx, ev))

	got, err := fx.accounts.Get(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, entitlement.StatusPastDue, got.Status)
	require.NotNil(t, got.PaymentFailedAt)
	require.NotNil(t, got.GracePeriodEndsAt)
	assert.Equal(t, fx.now.Add(7*24*time.Hour), *got.GracePeriodEndsAt)

	list, err := notify.NewManager(fx.storage).List(ctx, acct.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, notify.TypePaymentFailed, list[0].Type)
}

func TestPaymentSucceededClearsGrace(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newReconcilerFixture(t)
	acct := fx.createAccount(t, "personal", entitlement.StatusPastDue)

	failedAt := fx.now.Add(-24 * time.Hour)
	graceEnds := fx.now.Add(6 * 24 * time.Hour)
	acct.PaymentFailedAt = &failedAt
	acct.GracePeriodEndsAt = &graceEnds
	require.NoError(t, fx.accounts.Save(ctx, acct))

	ev := &payment.Event{
		ID:         "evt_pay_ok",
		Type:       payment.EventPaymentSucceeded,
		CustomerID: "cus_1",
		InvoiceID:  "in_2",
	}
	require.NoError(t, fx.rec.Process(ctx, ev))

	got, err := fx.accounts.Get(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, entitlement.StatusActive, got.Status)
	assert.Nil(t, got.PaymentFailedAt)
	assert.Nil(t, got.GracePeriodEndsAt)
}

func TestTrialAndInvoiceNotifications(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newReconcilerFixture(t)
	acct := fx.createAccount(t, "personal", entitlement.StatusTrialing)

	require.NoError(t, fx.rec.Process(ctx, &payment.Event{
		ID:         "evt_trial",
		Type:       payment.EventTrialWillEnd,
		CustomerID: "cus_1",
	}))
	require.NoError(t, fx.rec.Process(ctx, &payment.Event{
		ID:         "evt_upcoming",
		Type:       payment.EventUpcomingInvoice,
		CustomerID: "cus_1",
		InvoiceID:  "in_3",
	}))

	list, err := notify.NewManager(fx.storage).List(ctx, acct.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, notify.TypeUpcomingInvoice, list[0].Type)
	assert.Equal(t, notify.TypeTrialEnding, list[1].Type)
}

func TestIgnoredEventsAreAcknowledged(t *testing.T) {
	t.Parallel()

	fx := newReconcilerFixture(t)
	require.NoError(t, fx.rec.Process(context.Background(), &payment.Event{
		ID:   "evt_noop",
		Type: payment.EventIgnored,
	}))
}

func TestDeduplicators(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dedup := billing.NewMemDeduplicator()

	seen, err := dedup.Seen(ctx, "evt_a")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = dedup.Seen(ctx, "evt_a")
	require.NoError(t, err)
	assert.True(t, seen)

	require.NoError(t, dedup.Forget(ctx, "evt_a"))
	seen, err = dedup.Seen(ctx, "evt_a")
	require.NoError(t, err)
	assert.False(t, seen)
}
