package billing

import "errors"

var (
	// ErrNoBillingAccount means the account has no payment provider
	// customer reference yet.
	ErrNoBillingAccount = errors.New("account has no billing customer")
	// ErrNoActiveSubscription means no active plan subscription exists at
	// the provider for the account.
	ErrNoActiveSubscription = errors.New("no active subscription")
	// ErrNoMeteredItem means the active subscription carries no metered
	// line item for the resource.
	ErrNoMeteredItem = errors.New("no metered subscription item for resource")
	// ErrUnattributableEvent means a webhook event could not be matched to
	// a local account.
	ErrUnattributableEvent = errors.New("webhook event does not match any account")
)
