package ops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/xspensesai/billingkit/pkg/billing"
	"github.com/xspensesai/billingkit/pkg/catalog"
	"github.com/xspensesai/billingkit/pkg/entitlement"
	"github.com/xspensesai/billingkit/pkg/gate"
	"github.com/xspensesai/billingkit/pkg/logger"
	"github.com/xspensesai/billingkit/pkg/payment"
	"github.com/xspensesai/billingkit/pkg/usage"
)

// Facade exposes one operation per user-initiated billing action. It
// validates required identifiers, dispatches to the synchronizer or the
// gate, and maps every failure onto a tagged Result; no error or panic
// crosses this boundary.
type Facade struct {
	sync     *billing.Synchronizer
	gate     *gate.Gate
	resolver *entitlement.Resolver
	log      *slog.Logger
}

// FacadeOption configures a Facade.
type FacadeOption func(*Facade)

// WithFacadeLogger sets the logger. Defaults to slog.Default().
func WithFacadeLogger(log *slog.Logger) FacadeOption {
	return func(f *Facade) {
		if log != nil {
			f.log = log
		}
	}
}

// NewFacade creates a Facade.
// Panics if any dependency is nil to fail fast during initialization.
func NewFacade(sync *billing.Synchronizer, g *gate.Gate, resolver *entitlement.Resolver, opts ...FacadeOption) *Facade {
	if sync == nil {
		panic("ops: synchronizer is required")
	}
	if g == nil {
		panic("ops: gate is required")
	}
	if resolver == nil {
		panic("ops: resolver is required")
	}

	f := &Facade{
		sync:     sync,
		gate:     g,
		resolver: resolver,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Execute runs one action for the account and returns the tagged result.
func (f *Facade) Execute(ctx context.Context, accountID uuid.UUID, req Request) Result {
	if _, known := MetaFor(req.Action); !known {
		return fail(CodeValidation, fmt.Sprintf("unknown action %q", req.Action))
	}
	if msg := validate(req); msg != "" {
		return fail(CodeValidation, msg)
	}

	var res Result
	switch req.Action {
	case ActionUpgrade:
		res = f.upgrade(ctx, accountID, req)
	case ActionDowngrade:
		res = f.downgrade(ctx, accountID, req)
	case ActionCancel:
		res = f.cancel(ctx, accountID, req)
	case ActionRetryPayment:
		res = f.retryPayment(ctx, req)
	case ActionUpdateCard:
		res = f.updateCard(ctx, accountID)
	case ActionCheckUsage:
		res = f.checkUsage(ctx, accountID, req)
	case ActionRecordUsage:
		res = f.recordUsage(ctx, accountID, req)
	}

	if res.Status != "ok" {
		f.log.InfoContext(ctx, "billing action failed",
			slog.String("action", string(req.Action)),
			logger.AccountID(accountID),
			slog.String("code", res.Code),
		)
	}
	return res
}

// validate reports the first missing required field for the action, empty
// when the request is complete.
func validate(req Request) string {
	switch req.Action {
	case ActionUpgrade, ActionDowngrade:
		if req.PlanID == "" {
			return fmt.Sprintf("plan_id is required for %s", req.Action)
		}
	case ActionRetryPayment:
		if req.InvoiceID == "" {
			return "invoice_id is required for retry_payment"
		}
	case ActionCheckUsage, ActionRecordUsage:
		if req.Resource == "" {
			return fmt.Sprintf("resource_type is required for %s", req.Action)
		}
		if req.Quantity <= 0 {
			return fmt.Sprintf("quantity must be positive for %s", req.Action)
		}
	}
	return ""
}

func (f *Facade) upgrade(ctx context.Context, accountID uuid.UUID, req Request) Result {
	change, err := f.sync.HandlePlanChange(ctx, accountID, req.PlanID, req.Immediate)
	if errors.Is(err, billing.ErrNoActiveSubscription) {
		// First paid plan: no subscription to swap, go through checkout.
		url, err := f.sync.CreateCheckoutSession(ctx, accountID, req.PlanID)
		if err != nil {
			return f.failure(ctx, err)
		}
		return ok("Complete your upgrade through the checkout page.", map[string]any{
			"checkout_url": url,
		})
	}
	if err != nil {
		return f.failure(ctx, err)
	}
	return ok(changeMessage("upgraded", change), changeData(change))
}

func (f *Facade) downgrade(ctx context.Context, accountID uuid.UUID, req Request) Result {
	if req.PlanID == catalog.FreePlanID {
		// The free plan has no price to swap the subscription to; moving
		// to it means ending the paid subscription.
		res, err := f.sync.Cancel(ctx, accountID, req.Immediate)
		if err != nil {
			return f.failure(ctx, err)
		}
		msg := fmt.Sprintf("Plan will be downgraded to %s when the subscription ends on %s.",
			catalog.FreePlanID, res.EffectiveAt.Format("January 2, 2006"))
		if res.Immediate {
			msg = "Plan downgraded to the free plan immediately."
		}
		return ok(msg, map[string]any{
			"plan_id":      catalog.FreePlanID,
			"immediate":    res.Immediate,
			"effective_at": res.EffectiveAt,
		})
	}

	change, err := f.sync.HandlePlanChange(ctx, accountID, req.PlanID, req.Immediate)
	if err != nil {
		return f.failure(ctx, err)
	}
	return ok(changeMessage("downgraded", change), changeData(change))
}

func changeMessage(verb string, change *billing.ChangeResult) string {
	if change.Immediate {
		return fmt.Sprintf("Plan %s to %s, effective immediately with prorated billing.", verb, change.PlanID)
	}
	return fmt.Sprintf("Plan will be %s to %s at the end of the current billing period (%s).",
		verb, change.PlanID, change.EffectiveAt.Format("January 2, 2006"))
}

func changeData(change *billing.ChangeResult) map[string]any {
	return map[string]any{
		"plan_id":      change.PlanID,
		"immediate":    change.Immediate,
		"effective_at": change.EffectiveAt,
	}
}

func (f *Facade) cancel(ctx context.Context, accountID uuid.UUID, req Request) Result {
	res, err := f.sync.Cancel(ctx, accountID, req.Immediate)
	if err != nil {
		return f.failure(ctx, err)
	}
	msg := fmt.Sprintf("Subscription will end on %s; your plan stays active until then.",
		res.EffectiveAt.Format("January 2, 2006"))
	if res.Immediate {
		msg = "Subscription canceled immediately; your account is on the free plan."
	}
	return ok(msg, map[string]any{
		"immediate":    res.Immediate,
		"effective_at": res.EffectiveAt,
	})
}

func (f *Facade) retryPayment(ctx context.Context, req Request) Result {
	if err := f.sync.RetryPayment(ctx, req.InvoiceID); err != nil {
		return f.failure(ctx, err)
	}
	return ok("Payment retry submitted.", map[string]any{
		"invoice_id": req.InvoiceID,
	})
}

func (f *Facade) updateCard(ctx context.Context, accountID uuid.UUID) Result {
	url, err := f.sync.BillingPortalURL(ctx, accountID)
	if err != nil {
		return f.failure(ctx, err)
	}
	return ok("Update your payment method through the billing portal.", map[string]any{
		"portal_url": url,
	})
}

func (f *Facade) checkUsage(ctx context.Context, accountID uuid.UUID, req Request) Result {
	d, err := f.gate.CanProceed(ctx, accountID, req.Resource, req.Quantity)
	if err != nil {
		return f.failure(ctx, err)
	}

	data := map[string]any{
		"allowed":        d.Allowed,
		"grace_override": d.GraceOverride,
		"usage":          d.Usage,
	}
	if d.Limit != nil {
		data["limit"] = *d.Limit
	}

	msg := fmt.Sprintf("Using %d more %s is within your plan limit.", req.Quantity, req.Resource)
	switch {
	case d.GraceOverride:
		msg = fmt.Sprintf("You are over your %s limit, but your grace period lets this through.", req.Resource)
	case !d.Allowed:
		msg = fmt.Sprintf("Using %d more %s would exceed your plan limit.", req.Quantity, req.Resource)
	}
	return ok(msg, data)
}

func (f *Facade) recordUsage(ctx context.Context, accountID uuid.UUID, req Request) Result {
	rec, err := f.gate.Record(ctx, accountID, req.Resource, req.Quantity)
	if err != nil {
		return f.failure(ctx, err)
	}

	data := map[string]any{
		"resource_type": rec.Resource,
		"quantity":      rec.Quantity,
		"period_start":  rec.PeriodStart,
		"period_end":    rec.PeriodEnd,
		"seq":           rec.Seq,
	}

	// The write is already durable; overage reporting rides along and its
	// failure must not look like a failed record.
	report, err := f.sync.ReportUsage(ctx, accountID, req.Resource)
	if err != nil {
		f.log.ErrorContext(ctx, "usage recorded but overage report failed, needs reconciliation",
			logger.AccountID(accountID),
			logger.Resource(req.Resource),
			logger.Error(err),
		)
	} else if report.Overage > 0 {
		data["overage"] = report.Overage
		data["usage_percent"] = report.Percent
	}

	return ok(fmt.Sprintf("Recorded %d %s.", req.Quantity, req.Resource), data)
}

// Usage returns the account's current entitlements snapshot for display.
func (f *Facade) Usage(ctx context.Context, accountID uuid.UUID) (*entitlement.Entitlements, error) {
	return f.resolver.Resolve(ctx, accountID)
}

// failure maps an error onto the façade's stable code taxonomy.
func (f *Facade) failure(ctx context.Context, err error) Result {
	switch {
	case errors.Is(err, entitlement.ErrAccountNotFound):
		return fail(CodeAccountNotFound, "Account not found.")
	case errors.Is(err, catalog.ErrUnknownPlan):
		return fail(CodeUnknownPlan, "Unknown plan.")
	case errors.Is(err, usage.ErrInvalidQuantity):
		return fail(CodeInvalidQuantity, "Quantity must be a positive amount.")
	case errors.Is(err, billing.ErrNoBillingAccount):
		return fail(CodeNoBillingAccount, "No billing account is set up yet.")
	case errors.Is(err, billing.ErrNoActiveSubscription):
		return fail(CodeNoActiveSubscription, "No active subscription.")
	case errors.Is(err, payment.ErrUnknownPrice):
		return fail(CodeProviderError, "This plan is not available for purchase.")
	}
	if pe, isProvider := payment.IsProviderError(err); isProvider {
		f.log.ErrorContext(ctx, "payment provider call failed",
			slog.String("op", pe.Op),
			slog.String("provider_code", pe.Code),
			logger.Error(err),
		)
		return fail(CodeProviderError, "The payment provider rejected the request; please try again.")
	}

	f.log.ErrorContext(ctx, "billing action error", logger.Error(err))
	return fail(CodeInternal, "Something went wrong; please try again.")
}
