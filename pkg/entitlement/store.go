package entitlement

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/xspensesai/billingkit/pkg/catalog"
)

// AccountStore persists accounts.
type AccountStore interface {
	// Get retrieves an account by id.
	// Returns ErrAccountNotFound if no account exists.
	Get(ctx context.Context, id uuid.UUID) (*Account, error)

	// GetByBillingCustomerID retrieves an account by its payment provider
	// customer reference. Returns ErrAccountNotFound if none matches.
	GetByBillingCustomerID(ctx context.Context, customerID string) (*Account, error)

	// Create stores a new account.
	Create(ctx context.Context, acct *Account) error

	// Save updates an existing account.
	Save(ctx context.Context, acct *Account) error

	// SetBillingCustomerID swaps the provider customer reference from the
	// value the caller last observed to customerID. The swap is atomic:
	// when the stored reference no longer matches observed, a concurrent
	// provisioner won and ErrCustomerConflict is returned so the caller
	// can re-read and adopt the winner's value. An empty observed value
	// fills an unset reference.
	SetBillingCustomerID(ctx context.Context, id uuid.UUID, observed, customerID string) error
}

// EnsureAccount returns the account, provisioning a default free-plan record
// when none exists yet. Safe against concurrent signups: the loser of a
// create race re-reads the winner's row.
func EnsureAccount(ctx context.Context, store AccountStore, id uuid.UUID, email string) (*Account, error) {
	acct, err := store.Get(ctx, id)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	acct = &Account{
		ID:     id,
		Email:  email,
		PlanID: catalog.FreePlanID,
		Status: StatusActive,
	}
	if err := store.Create(ctx, acct); err != nil {
		if errors.Is(err, ErrAccountAlreadyExists) {
			return store.Get(ctx, id)
		}
		return nil, err
	}
	return acct, nil
}

// AddonStore persists per-account add-ons.
type AddonStore interface {
	// ListActive returns the account's add-ons with status active.
	ListActive(ctx context.Context, accountID uuid.UUID) ([]Addon, error)

	// Upsert creates or reactivates an add-on row, keyed by
	// (account id, addon id).
	Upsert(ctx context.Context, addon Addon) error

	// Cancel marks the add-on canceled. Missing rows are a no-op.
	Cancel(ctx context.Context, accountID uuid.UUID, addonID string) error
}

// LimitOverrideStore supplies account-specific limit overrides. When an
// override row exists for an account it replaces the plan limits wholesale.
// Optional: a nil store means no overrides.
type LimitOverrideStore interface {
	// OverridesFor returns the override limits for an account, or
	// (nil, nil) when the account has none.
	OverridesFor(ctx context.Context, accountID uuid.UUID) (map[catalog.Resource]*int64, error)
}
