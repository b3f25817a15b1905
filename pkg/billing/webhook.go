package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/xspensesai/billingkit/pkg/catalog"
	"github.com/xspensesai/billingkit/pkg/entitlement"
	"github.com/xspensesai/billingkit/pkg/logger"
	"github.com/xspensesai/billingkit/pkg/notify"
	"github.com/xspensesai/billingkit/pkg/payment"
)

// DefaultGracePeriod is the forgiveness window granted after a failed
// payment before the account drops to the free plan.
const DefaultGracePeriod = 7 * 24 * time.Hour

// Reconciler applies provider webhook events to local state. It is the
// separate reconciliation path the synchronizer leaves non-immediate
// transitions to: period-boundary plan switches, cancel-at-period-end
// lapses and payment outcomes all land here.
type Reconciler struct {
	accounts entitlement.AccountStore
	addons   entitlement.AddonStore
	subs     SubscriptionStore
	dedup    Deduplicator
	prices   payment.PriceTable
	notifier Notifier
	log      *slog.Logger
	grace    time.Duration
	now      func() time.Time
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithReconcilerNotifier wires payment and trial notifications.
func WithReconcilerNotifier(n Notifier) ReconcilerOption {
	return func(r *Reconciler) {
		if n != nil {
			r.notifier = n
		}
	}
}

// WithReconcilerLogger sets the logger. Defaults to slog.Default().
func WithReconcilerLogger(log *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if log != nil {
			r.log = log
		}
	}
}

// WithGracePeriod overrides the post-payment-failure window.
func WithGracePeriod(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if d > 0 {
			r.grace = d
		}
	}
}

// WithReconcilerClock overrides the time source. Intended for tests.
func WithReconcilerClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// NewReconciler creates a Reconciler.
// Panics if any required dependency is nil to fail fast during
// initialization.
func NewReconciler(
	accounts entitlement.AccountStore,
	addons entitlement.AddonStore,
	subs SubscriptionStore,
	dedup Deduplicator,
	prices payment.PriceTable,
	opts ...ReconcilerOption,
) *Reconciler {
	if accounts == nil {
		panic("billing: AccountStore is required")
	}
	if addons == nil {
		panic("billing: AddonStore is required")
	}
	if subs == nil {
		panic("billing: SubscriptionStore is required")
	}
	if dedup == nil {
		panic("billing: Deduplicator is required")
	}

	r := &Reconciler{
		accounts: accounts,
		addons:   addons,
		subs:     subs,
		dedup:    dedup,
		prices:   prices,
		log:      slog.Default(),
		grace:    DefaultGracePeriod,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Process applies one event. Redeliveries are absorbed by the
// deduplicator; a failed handler releases the mark so the provider's next
// redelivery retries it.
func (r *Reconciler) Process(ctx context.Context, ev *payment.Event) error {
	if ev.Type == payment.EventIgnored {
		return nil
	}

	seen, err := r.dedup.Seen(ctx, ev.ID)
	if err != nil {
		return err
	}
	if seen {
		r.log.DebugContext(ctx, "duplicate webhook event skipped", logger.EventID(ev.ID))
		return nil
	}

	if err := r.apply(ctx, ev); err != nil {
		if ferr := r.dedup.Forget(ctx, ev.ID); ferr != nil {
			r.log.ErrorContext(ctx, "failed event could not be unmarked, redelivery will be dropped",
				logger.EventID(ev.ID),
				logger.Error(ferr),
			)
		}
		return err
	}
	return nil
}

func (r *Reconciler) apply(ctx context.Context, ev *payment.Event) error {
	switch ev.Type {
	case payment.EventCheckoutCompleted:
		return r.applyCheckoutCompleted(ctx, ev)
	case payment.EventSubscriptionUpdated:
		return r.applySubscriptionUpdated(ctx, ev)
	case payment.EventSubscriptionDeleted:
		return r.applySubscriptionDeleted(ctx, ev)
	case payment.EventPaymentFailed:
		return r.applyPaymentFailed(ctx, ev)
	case payment.EventPaymentSucceeded:
		return r.applyPaymentSucceeded(ctx, ev)
	case payment.EventTrialWillEnd:
		return r.applyTrialWillEnd(ctx, ev)
	case payment.EventUpcomingInvoice:
		return r.applyUpcomingInvoice(ctx, ev)
	default:
		return nil
	}
}

func (r *Reconciler) applyCheckoutCompleted(ctx context.Context, ev *payment.Event) error {
	acct, err := r.accountFor(ctx, ev)
	if err != nil {
		return err
	}

	if addonID := ev.Metadata["addon_id"]; addonID != "" {
		feature, ok := entitlement.FeatureForAddon(addonID)
		if !ok {
			r.log.WarnContext(ctx, "checkout completed for unknown addon",
				slog.String("addon_id", addonID),
				logger.AccountID(acct.ID),
			)
			return nil
		}
		return r.addons.Upsert(ctx, entitlement.Addon{
			AccountID: acct.ID,
			AddonID:   addonID,
			Feature:   feature,
			Status:    entitlement.AddonActive,
		})
	}

	planID := ev.Metadata["plan_id"]
	if planID == "" {
		r.log.WarnContext(ctx, "checkout completed without plan metadata",
			logger.EventID(ev.ID),
			logger.AccountID(acct.ID),
		)
		return nil
	}

	acct.PlanID = planID
	acct.Status = entitlement.StatusActive
	acct.GracePeriodEndsAt = nil
	acct.PaymentFailedAt = nil
	if err := r.accounts.Save(ctx, acct); err != nil {
		return err
	}

	if ev.SubscriptionID != "" {
		return r.subs.Upsert(ctx, Subscription{
			ProviderID: ev.SubscriptionID,
			AccountID:  acct.ID,
			PlanID:     planID,
			Status:     "active",
		})
	}
	return nil
}

func (r *Reconciler) applySubscriptionUpdated(ctx context.Context, ev *payment.Event) error {
	if ev.Subscription == nil {
		return nil
	}
	acct, err := r.accountFor(ctx, ev)
	if err != nil {
		return err
	}

	planID := r.planFromItems(ev.Subscription)
	if err := r.mirror(ctx, acct.ID, planID, ev.Subscription); err != nil {
		return err
	}

	// A scheduled plan switch or provider-side status change lands here;
	// only meaningful transitions are written back.
	changed := false
	if planID != "" && planID != acct.PlanID {
		acct.PlanID = planID
		changed = true
	}
	if status, ok := mapProviderStatus(ev.Subscription.Status); ok && status != acct.Status {
		acct.Status = status
		changed = true
	}
	if !changed {
		return nil
	}
	return r.accounts.Save(ctx, acct)
}

func (r *Reconciler) applySubscriptionDeleted(ctx context.Context, ev *payment.Event) error {
	acct, err := r.accountFor(ctx, ev)
	if err != nil {
		return err
	}

	if ev.Subscription != nil {
		if err := r.mirror(ctx, acct.ID, r.planFromItems(ev.Subscription), ev.Subscription); err != nil {
			return err
		}
	}

	acct.PlanID = catalog.FreePlanID
	acct.Status = entitlement.StatusCanceled
	acct.GracePeriodEndsAt = nil
	acct.PaymentFailedAt = nil
	return r.accounts.Save(ctx, acct)
}

func (r *Reconciler) applyPaymentFailed(ctx context.Context, ev *payment.Event) error {
	acct, err := r.accountFor(ctx, ev)
	if err != nil {
		return err
	}

	now := r.now()
	graceEnds := now.Add(r.grace)
	acct.Status = entitlement.StatusPastDue
	acct.PaymentFailedAt = &now
	acct.GracePeriodEndsAt = &graceEnds
	if err := r.accounts.Save(ctx, acct); err != nil {
		return err
	}

	if r.notifier != nil {
		err := r.notifier.PaymentFailed(ctx, acct.ID, acct.Email, notify.PaymentFailedPayload{
			InvoiceID:         ev.InvoiceID,
			GracePeriodEndsAt: graceEnds,
		})
		if err != nil {
			r.log.WarnContext(ctx, "payment-failed notification not recorded", logger.Error(err))
		}
	}
	return nil
}

func (r *Reconciler) applyPaymentSucceeded(ctx context.Context, ev *payment.Event) error {
	acct, err := r.accountFor(ctx, ev)
	if err != nil {
		return err
	}

	acct.Status = entitlement.StatusActive
	acct.PaymentFailedAt = nil
	acct.GracePeriodEndsAt = nil
	if err := r.accounts.Save(ctx, acct); err != nil {
		return err
	}

	if r.notifier != nil {
		err := r.notifier.PaymentSucceeded(ctx, acct.ID, acct.Email, notify.PaymentSucceededPayload{
			InvoiceID: ev.InvoiceID,
		})
		if err != nil {
			r.log.WarnContext(ctx, "payment-succeeded notification not recorded", logger.Error(err))
		}
	}
	return nil
}

func (r *Reconciler) applyTrialWillEnd(ctx context.Context, ev *payment.Event) error {
	if r.notifier == nil {
		return nil
	}
	acct, err := r.accountFor(ctx, ev)
	if err != nil {
		return err
	}

	trialEnds := r.now()
	if acct.TrialEndsAt != nil {
		trialEnds = *acct.TrialEndsAt
	}
	return r.notifier.TrialEnding(ctx, acct.ID, acct.Email, notify.TrialEndingPayload{
		TrialEndsAt: trialEnds,
	})
}

func (r *Reconciler) applyUpcomingInvoice(ctx context.Context, ev *payment.Event) error {
	if r.notifier == nil {
		return nil
	}
	acct, err := r.accountFor(ctx, ev)
	if err != nil {
		return err
	}
	return r.notifier.UpcomingInvoice(ctx, acct.ID, acct.Email, notify.UpcomingInvoicePayload{
		InvoiceID: ev.InvoiceID,
	})
}

// accountFor matches an event to a local account, preferring the account id
// stamped in metadata and falling back to the provider customer reference.
func (r *Reconciler) accountFor(ctx context.Context, ev *payment.Event) (*entitlement.Account, error) {
	if raw := ev.Metadata["account_id"]; raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			acct, err := r.accounts.Get(ctx, id)
			if err == nil {
				return acct, nil
			}
			if !errors.Is(err, entitlement.ErrAccountNotFound) {
				return nil, err
			}
		}
	}
	if ev.CustomerID != "" {
		acct, err := r.accounts.GetByBillingCustomerID(ctx, ev.CustomerID)
		if err == nil {
			return acct, nil
		}
		if !errors.Is(err, entitlement.ErrAccountNotFound) {
			return nil, err
		}
	}
	return nil, ErrUnattributableEvent
}

func (r *Reconciler) mirror(ctx context.Context, accountID uuid.UUID, planID string, sub *payment.Subscription) error {
	return r.subs.Upsert(ctx, Subscription{
		ProviderID:         sub.ID,
		AccountID:          accountID,
		PlanID:             planID,
		Status:             sub.Status,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
	})
}

func (r *Reconciler) planFromItems(sub *payment.Subscription) string {
	for _, item := range sub.Items {
		if planID, ok := r.prices.PlanForPrice(item.PriceID); ok {
			return planID
		}
	}
	return ""
}

func mapProviderStatus(s string) (entitlement.Status, bool) {
	switch s {
	case "active":
		return entitlement.StatusActive, true
	case "trialing":
		return entitlement.StatusTrialing, true
	case "past_due":
		return entitlement.StatusPastDue, true
	case "canceled":
		return entitlement.StatusCanceled, true
	case "incomplete", "incomplete_expired":
		return entitlement.StatusIncomplete, true
	default:
		return "", false
	}
}
