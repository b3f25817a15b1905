package payment

import (
	"context"
	"errors"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// StripeProvider implements Provider over the Stripe API. The *client.API
// is injected rather than taken from the package-level singleton so tests
// and multi-tenant setups can carry their own keys.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
}

// NewStripeProvider creates a Stripe-backed Provider.
// Panics if the API client is nil to fail fast during initialization.
func NewStripeProvider(api *client.API, webhookSecret string) *StripeProvider {
	if api == nil {
		panic("payment: stripe client is required")
	}
	return &StripeProvider{api: api, webhookSecret: webhookSecret}
}

func (p *StripeProvider) CreateCustomer(ctx context.Context, email string, metadata map[string]string) (*Customer, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	cust, err := p.api.Customers.New(params)
	if err != nil {
		return nil, wrapStripeErr("customers.create", err)
	}
	return &Customer{ID: cust.ID, Email: cust.Email}, nil
}

func (p *StripeProvider) RetrieveCustomer(ctx context.Context, customerID string) (*Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	cust, err := p.api.Customers.Get(customerID, params)
	if err != nil {
		return nil, wrapStripeErr("customers.retrieve", err)
	}
	return &Customer{ID: cust.ID, Email: cust.Email, Deleted: cust.Deleted}, nil
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, cp CheckoutParams) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Customer:   stripe.String(cp.CustomerID),
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(cp.SuccessURL),
		CancelURL:  stripe.String(cp.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(cp.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	for k, v := range cp.Metadata {
		params.AddMetadata(k, v)
	}
	if cp.TrialDays > 0 || len(cp.Metadata) > 0 {
		subData := &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: cp.Metadata,
		}
		if cp.TrialDays > 0 {
			subData.TrialPeriodDays = stripe.Int64(cp.TrialDays)
		}
		params.SubscriptionData = subData
	}

	sess, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, wrapStripeErr("checkout.sessions.create", err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (p *StripeProvider) ListActiveSubscriptions(ctx context.Context, customerID string) ([]Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	params.Context = ctx

	var subs []Subscription
	iter := p.api.Subscriptions.List(params)
	for iter.Next() {
		subs = append(subs, normalizeSubscription(iter.Subscription()))
	}
	if err := iter.Err(); err != nil {
		return nil, wrapStripeErr("subscriptions.list", err)
	}
	return subs, nil
}

func (p *StripeProvider) UpdateSubscriptionItem(ctx context.Context, pc PlanChangeParams) error {
	params := &stripe.SubscriptionItemParams{
		Price: stripe.String(pc.NewPriceID),
		// Invoice the partial-period difference right away instead of
		// rolling it into the next cycle.
		ProrationBehavior: stripe.String("always_invoice"),
	}
	params.Context = ctx

	if _, err := p.api.SubscriptionItems.Update(pc.ItemID, params); err != nil {
		return wrapStripeErr("subscription_items.update", err)
	}
	return nil
}

// CreateSubscriptionSchedule is two provider calls: the schedule must first
// be created from the live subscription, then rewritten with the two-phase
// transition, because the API rejects phases on a from_subscription create.
func (p *StripeProvider) CreateSubscriptionSchedule(ctx context.Context, sp ScheduleParams) error {
	createParams := &stripe.SubscriptionScheduleParams{
		FromSubscription: stripe.String(sp.SubscriptionID),
	}
	createParams.Context = ctx

	schedule, err := p.api.SubscriptionSchedules.New(createParams)
	if err != nil {
		return wrapStripeErr("subscription_schedules.create", err)
	}

	var phaseStart int64
	if len(schedule.Phases) > 0 {
		phaseStart = schedule.Phases[0].StartDate
	}
	boundary := sp.PeriodBoundary.Unix()

	updateParams := &stripe.SubscriptionScheduleParams{
		Phases: []*stripe.SubscriptionSchedulePhaseParams{
			{
				Items: []*stripe.SubscriptionSchedulePhaseItemParams{
					{Price: stripe.String(sp.CurrentPriceID)},
				},
				StartDate: stripe.Int64(phaseStart),
				EndDate:   stripe.Int64(boundary),
			},
			{
				Items: []*stripe.SubscriptionSchedulePhaseItemParams{
					{Price: stripe.String(sp.NewPriceID)},
				},
				StartDate: stripe.Int64(boundary),
			},
		},
	}
	updateParams.Context = ctx

	if _, err := p.api.SubscriptionSchedules.Update(schedule.ID, updateParams); err != nil {
		return wrapStripeErr("subscription_schedules.update", err)
	}
	return nil
}

func (p *StripeProvider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx

	if _, err := p.api.Subscriptions.Cancel(subscriptionID, params); err != nil {
		return wrapStripeErr("subscriptions.cancel", err)
	}
	return nil
}

func (p *StripeProvider) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) error {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(cancel),
	}
	params.Context = ctx

	if _, err := p.api.Subscriptions.Update(subscriptionID, params); err != nil {
		return wrapStripeErr("subscriptions.update", err)
	}
	return nil
}

func (p *StripeProvider) PayInvoice(ctx context.Context, invoiceID string) error {
	params := &stripe.InvoicePayParams{}
	params.Context = ctx

	if _, err := p.api.Invoices.Pay(invoiceID, params); err != nil {
		return wrapStripeErr("invoices.pay", err)
	}
	return nil
}

func (p *StripeProvider) CreateBillingPortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	sess, err := p.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", wrapStripeErr("billing_portal.sessions.create", err)
	}
	return sess.URL, nil
}

func (p *StripeProvider) ReportUsage(ctx context.Context, itemID string, quantity int64, at time.Time) error {
	params := &stripe.UsageRecordParams{
		SubscriptionItem: stripe.String(itemID),
		Quantity:         stripe.Int64(quantity),
		Timestamp:        stripe.Int64(at.Unix()),
		// Absolute value, never increment, so a retry or an out-of-order
		// delivery cannot double-bill.
		Action: stripe.String(stripe.UsageRecordActionSet),
	}
	params.Context = ctx

	if _, err := p.api.UsageRecords.New(params); err != nil {
		return wrapStripeErr("usage_records.create", err)
	}
	return nil
}

func normalizeSubscription(sub *stripe.Subscription) Subscription {
	out := Subscription{
		ID:                 sub.ID,
		Status:             string(sub.Status),
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		CurrentPeriodStart: time.Unix(sub.CurrentPeriodStart, 0).UTC(),
		CurrentPeriodEnd:   time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			si := SubscriptionItem{ID: item.ID}
			if item.Price != nil {
				si.PriceID = item.Price.ID
			}
			out.Items = append(out.Items, si)
		}
	}
	return out
}

func wrapStripeErr(op string, err error) error {
	var sErr *stripe.Error
	if errors.As(err, &sErr) {
		return &ProviderError{Op: op, Code: string(sErr.Code), Message: sErr.Msg, Err: err}
	}
	return &ProviderError{Op: op, Message: err.Error(), Err: err}
}
