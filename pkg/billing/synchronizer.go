package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/xspensesai/billingkit/pkg/catalog"
	"github.com/xspensesai/billingkit/pkg/entitlement"
	"github.com/xspensesai/billingkit/pkg/logger"
	"github.com/xspensesai/billingkit/pkg/notify"
	"github.com/xspensesai/billingkit/pkg/payment"
	"github.com/xspensesai/billingkit/pkg/usage"
)

// UsageReader is the slice of the usage ledger the synchronizer needs.
type UsageReader interface {
	TotalFor(ctx context.Context, accountID uuid.UUID, res catalog.Resource, period usage.Period) (int64, error)
}

// Notifier records billing notifications. Satisfied by *notify.Manager.
type Notifier interface {
	UsageAlert(ctx context.Context, accountID uuid.UUID, accountEmail string, p notify.UsageAlertPayload) error
	PaymentFailed(ctx context.Context, accountID uuid.UUID, accountEmail string, p notify.PaymentFailedPayload) error
	PaymentSucceeded(ctx context.Context, accountID uuid.UUID, accountEmail string, p notify.PaymentSucceededPayload) error
	TrialEnding(ctx context.Context, accountID uuid.UUID, accountEmail string, p notify.TrialEndingPayload) error
	UpcomingInvoice(ctx context.Context, accountID uuid.UUID, accountEmail string, p notify.UpcomingInvoicePayload) error
}

// URLs are the hosted-page return addresses handed to the provider.
type URLs struct {
	CheckoutSuccess string
	CheckoutCancel  string
	PortalReturn    string
}

// Synchronizer keeps local account state and the payment provider in step.
// Every method is one provider round trip at most; on provider failure no
// local state is mutated, and retries are the caller's responsibility.
type Synchronizer struct {
	accounts entitlement.AccountStore
	provider payment.Provider
	prices   payment.PriceTable
	catalog  *catalog.Catalog
	ledger   UsageReader
	overages OverageStore
	notifier Notifier
	urls     URLs
	log      *slog.Logger
	loc      *time.Location
	now      func() time.Time
}

// SynchronizerOption configures a Synchronizer.
type SynchronizerOption func(*Synchronizer)

// WithNotifier wires usage-alert and payment notifications.
func WithNotifier(n Notifier) SynchronizerOption {
	return func(s *Synchronizer) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithURLs sets the hosted-page return addresses.
func WithURLs(urls URLs) SynchronizerOption {
	return func(s *Synchronizer) { s.urls = urls }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) SynchronizerOption {
	return func(s *Synchronizer) {
		if log != nil {
			s.log = log
		}
	}
}

// WithLocation sets the billing timezone. Must match the ledger's location.
func WithLocation(loc *time.Location) SynchronizerOption {
	return func(s *Synchronizer) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) SynchronizerOption {
	return func(s *Synchronizer) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSynchronizer creates a Synchronizer.
// Panics if any required dependency is nil to fail fast during
// initialization.
func NewSynchronizer(
	accounts entitlement.AccountStore,
	provider payment.Provider,
	prices payment.PriceTable,
	cat *catalog.Catalog,
	ledger UsageReader,
	overages OverageStore,
	opts ...SynchronizerOption,
) *Synchronizer {
	if accounts == nil {
		panic("billing: AccountStore is required")
	}
	if provider == nil {
		panic("billing: payment provider is required")
	}
	if cat == nil {
		panic("billing: catalog is required")
	}
	if ledger == nil {
		panic("billing: usage reader is required")
	}
	if overages == nil {
		panic("billing: overage store is required")
	}

	s := &Synchronizer{
		accounts: accounts,
		provider: provider,
		prices:   prices,
		catalog:  cat,
		ledger:   ledger,
		overages: overages,
		log:      slog.Default(),
		loc:      time.UTC,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureCustomer returns the account with a live provider customer
// reference, creating one when missing. If the referenced customer was
// deleted at the provider out-of-band, a replacement is provisioned
// transparently. Idempotent under normal operation: the existence check
// guards repeat calls from creating duplicates.
func (s *Synchronizer) EnsureCustomer(ctx context.Context, accountID uuid.UUID) (*entitlement.Account, error) {
	acct, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if acct.BillingCustomerID != "" {
		cust, err := s.provider.RetrieveCustomer(ctx, acct.BillingCustomerID)
		if err == nil && !cust.Deleted {
			return acct, nil
		}
		if err != nil {
			s.log.WarnContext(ctx, "billing customer no longer resolves, re-provisioning",
				logger.AccountID(accountID),
				slog.String("customer_id", acct.BillingCustomerID),
				logger.Error(err),
			)
		}
	}

	cust, err := s.provider.CreateCustomer(ctx, acct.Email, map[string]string{
		"account_id": accountID.String(),
	})
	if err != nil {
		return nil, err
	}
	err = s.accounts.SetBillingCustomerID(ctx, accountID, acct.BillingCustomerID, cust.ID)
	if err != nil {
		if !errors.Is(err, entitlement.ErrCustomerConflict) {
			return nil, err
		}
		// A concurrent provisioner swapped the reference first; adopt
		// theirs. The customer created here becomes an unreferenced
		// provider record, which is harmless.
		s.log.InfoContext(ctx, "billing customer provisioning race lost, adopting winner",
			logger.AccountID(accountID),
			slog.String("customer_id", cust.ID),
		)
	}
	return s.accounts.Get(ctx, accountID)
}

// CreateCheckoutSession builds a hosted-checkout redirect for the plan.
// Stateless: the account only transitions once the provider confirms
// payment through the webhook path.
func (s *Synchronizer) CreateCheckoutSession(ctx context.Context, accountID uuid.UUID, planID string) (string, error) {
	plan, err := s.catalog.Plan(planID)
	if err != nil {
		return "", err
	}
	priceID, err := s.prices.PriceForPlan(planID)
	if err != nil {
		return "", fmt.Errorf("%w for plan %q", payment.ErrUnknownPrice, planID)
	}

	acct, err := s.EnsureCustomer(ctx, accountID)
	if err != nil {
		return "", err
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, payment.CheckoutParams{
		CustomerID: acct.BillingCustomerID,
		PriceID:    priceID,
		TrialDays:  int64(plan.TrialDays),
		SuccessURL: s.urls.CheckoutSuccess,
		CancelURL:  s.urls.CheckoutCancel,
		Metadata: map[string]string{
			"account_id": accountID.String(),
			"plan_id":    planID,
		},
	})
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}

// ChangeResult describes how a plan change was applied.
type ChangeResult struct {
	PlanID string
	// Immediate is true when the priced item was swapped in place with
	// proration; false when the switch is scheduled for the period
	// boundary.
	Immediate bool
	// EffectiveAt is when the new plan takes effect.
	EffectiveAt time.Time
	// CheckoutURL is set instead when no active subscription existed and
	// the change falls back to hosted checkout.
	CheckoutURL string
}

// HandlePlanChange moves the account to another plan. Upgrades may be
// immediate (in-place item swap with proration) or scheduled; downgrades
// are always scheduled for the period boundary, so a lower-tier request
// with immediate set is coerced to scheduling rather than rejected. The
// local plan id is persisted only after the provider accepted the change,
// and only for immediate changes; scheduled switches land through the
// webhook path at the boundary.
func (s *Synchronizer) HandlePlanChange(ctx context.Context, accountID uuid.UUID, toPlanID string, immediate bool) (*ChangeResult, error) {
	acct, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct.BillingCustomerID == "" {
		return nil, ErrNoBillingAccount
	}

	toPlan, err := s.catalog.Plan(toPlanID)
	if err != nil {
		return nil, err
	}
	fromPlan, err := s.catalog.Plan(acct.PlanID)
	if err != nil {
		return nil, err
	}
	newPriceID, err := s.prices.PriceForPlan(toPlanID)
	if err != nil {
		return nil, fmt.Errorf("%w for plan %q", payment.ErrUnknownPrice, toPlanID)
	}

	// Downgrades keep paid-for capacity until the period ends.
	if toPlan.Tier < fromPlan.Tier {
		immediate = false
	}

	sub, item, err := s.activePlanSubscription(ctx, acct)
	if err != nil {
		return nil, err
	}

	if immediate {
		err := s.provider.UpdateSubscriptionItem(ctx, payment.PlanChangeParams{
			SubscriptionID: sub.ID,
			ItemID:         item.ID,
			NewPriceID:     newPriceID,
		})
		if err != nil {
			return nil, err
		}

		acct.PlanID = toPlanID
		if err := s.accounts.Save(ctx, acct); err != nil {
			// The provider change went through; flag for reconciliation
			// instead of pretending it failed.
			s.log.ErrorContext(ctx, "plan changed at provider but local save failed, needs reconciliation",
				logger.AccountID(accountID),
				logger.PlanID(toPlanID),
				logger.Error(err),
			)
			return nil, err
		}
		return &ChangeResult{PlanID: toPlanID, Immediate: true, EffectiveAt: s.now()}, nil
	}

	err = s.provider.CreateSubscriptionSchedule(ctx, payment.ScheduleParams{
		SubscriptionID: sub.ID,
		CurrentPriceID: item.PriceID,
		NewPriceID:     newPriceID,
		PeriodBoundary: sub.CurrentPeriodEnd,
	})
	if err != nil {
		return nil, err
	}
	return &ChangeResult{PlanID: toPlanID, Immediate: false, EffectiveAt: sub.CurrentPeriodEnd}, nil
}

// CancelResult describes how a cancellation was applied.
type CancelResult struct {
	Immediate   bool
	EffectiveAt time.Time
}

// Cancel ends the account's subscription. Immediate hard-cancels at the
// provider and drops the account to the free plan right away. Otherwise
// the subscription is marked to lapse at the period boundary and local
// state stays untouched until the webhook path observes the boundary.
func (s *Synchronizer) Cancel(ctx context.Context, accountID uuid.UUID, immediate bool) (*CancelResult, error) {
	acct, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct.BillingCustomerID == "" {
		return nil, ErrNoBillingAccount
	}

	sub, _, err := s.activePlanSubscription(ctx, acct)
	if err != nil {
		return nil, err
	}

	if immediate {
		if err := s.provider.CancelSubscription(ctx, sub.ID); err != nil {
			return nil, err
		}
		acct.PlanID = catalog.FreePlanID
		acct.Status = entitlement.StatusCanceled
		if err := s.accounts.Save(ctx, acct); err != nil {
			return nil, err
		}
		return &CancelResult{Immediate: true, EffectiveAt: s.now()}, nil
	}

	if err := s.provider.SetCancelAtPeriodEnd(ctx, sub.ID, true); err != nil {
		return nil, err
	}
	return &CancelResult{Immediate: false, EffectiveAt: sub.CurrentPeriodEnd}, nil
}

// RetryPayment retries a failed invoice. No local state changes on
// success; the provider's own invoice-paid webhook is the authority for
// clearing dues.
func (s *Synchronizer) RetryPayment(ctx context.Context, invoiceID string) error {
	return s.provider.PayInvoice(ctx, invoiceID)
}

// BillingPortalURL returns a hosted portal session for payment method
// updates.
func (s *Synchronizer) BillingPortalURL(ctx context.Context, accountID uuid.UUID) (string, error) {
	acct, err := s.EnsureCustomer(ctx, accountID)
	if err != nil {
		return "", err
	}
	return s.provider.CreateBillingPortalSession(ctx, acct.BillingCustomerID, s.urls.PortalReturn)
}

// OverageReport describes the outcome of a ReportUsage call.
type OverageReport struct {
	Resource catalog.Resource
	// Overage is max(0, total - limit) for the current period.
	Overage int64
	// Reported is true when a provider call was made this invocation. A
	// false with nonzero Overage means an equal or larger quantity was
	// already on file for the period.
	Reported bool
	Percent  int
}

// ReportUsage pushes the account's current-period overage for the resource
// to the provider's metered line item. Only active subscriptions are
// billed for overage; trial and grace windows never are. The provider call
// sets the absolute overage, and the overage store keeps reports monotonic
// within a period, so retries and out-of-order deliveries can never lower
// the billed quantity. A usage-alert notification is recorded whenever an
// overage exists.
func (s *Synchronizer) ReportUsage(ctx context.Context, accountID uuid.UUID, res catalog.Resource) (*OverageReport, error) {
	acct, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if acct.Status != entitlement.StatusActive || acct.IsInTrialAt(now) || acct.IsInGracePeriodAt(now) {
		return &OverageReport{Resource: res}, nil
	}

	limits, err := s.catalog.LimitsFor(acct.PlanID)
	if err != nil {
		return nil, err
	}
	limit, metered := limits[res]
	if !metered || limit == nil {
		return &OverageReport{Resource: res}, nil
	}

	period := usage.CurrentPeriod(s.loc, now)
	total, err := s.ledger.TotalFor(ctx, accountID, res, period)
	if err != nil {
		return nil, err
	}

	report := &OverageReport{Resource: res}
	if *limit > 0 {
		report.Percent = int((total * 100) / *limit)
	}
	if total <= *limit {
		return report, nil
	}
	report.Overage = total - *limit

	prev, err := s.overages.MaxReported(ctx, accountID, res, period.Key())
	if err != nil {
		return nil, err
	}
	if report.Overage > prev {
		if acct.BillingCustomerID == "" {
			return nil, ErrNoBillingAccount
		}
		sub, err := s.meteredItem(ctx, acct, res)
		if err != nil {
			return nil, err
		}
		if err := s.provider.ReportUsage(ctx, sub.ID, report.Overage, now); err != nil {
			return nil, err
		}
		if err := s.overages.RecordReported(ctx, accountID, res, period.Key(), report.Overage); err != nil {
			// The provider already has the value; a failed record only
			// risks a redundant future set.
			s.log.WarnContext(ctx, "overage reported but not recorded locally",
				logger.AccountID(accountID),
				logger.Resource(res),
				logger.Error(err),
			)
		}
		report.Reported = true
	}

	if s.notifier != nil {
		err := s.notifier.UsageAlert(ctx, accountID, acct.Email, notify.UsageAlertPayload{
			Resource: res,
			Usage:    total,
			Limit:    *limit,
			Percent:  report.Percent,
		})
		if err != nil {
			s.log.WarnContext(ctx, "usage alert not recorded",
				logger.AccountID(accountID),
				logger.Error(err),
			)
		}
	}
	return report, nil
}

// activePlanSubscription finds the provider subscription carrying a plan
// price, and that item.
func (s *Synchronizer) activePlanSubscription(ctx context.Context, acct *entitlement.Account) (*payment.Subscription, *payment.SubscriptionItem, error) {
	subs, err := s.provider.ListActiveSubscriptions(ctx, acct.BillingCustomerID)
	if err != nil {
		return nil, nil, err
	}
	for i := range subs {
		for j := range subs[i].Items {
			if _, ok := s.prices.PlanForPrice(subs[i].Items[j].PriceID); ok {
				return &subs[i], &subs[i].Items[j], nil
			}
		}
	}
	return nil, nil, ErrNoActiveSubscription
}

// meteredItem finds the subscription item priced with the resource's
// metered price.
func (s *Synchronizer) meteredItem(ctx context.Context, acct *entitlement.Account, res catalog.Resource) (*payment.SubscriptionItem, error) {
	meteredPrice, err := s.prices.PriceForResource(res)
	if err != nil {
		return nil, err
	}

	subs, err := s.provider.ListActiveSubscriptions(ctx, acct.BillingCustomerID)
	if err != nil {
		return nil, err
	}
	for i := range subs {
		if item, ok := subs[i].Item(meteredPrice); ok {
			return &item, nil
		}
	}
	if len(subs) == 0 {
		return nil, ErrNoActiveSubscription
	}
	return nil, errors.Join(ErrNoMeteredItem, fmt.Errorf("resource %s", res))
}
