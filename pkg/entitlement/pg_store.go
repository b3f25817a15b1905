package entitlement

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xspensesai/billingkit/pkg/catalog"
	"github.com/xspensesai/billingkit/pkg/pg"
)

// pgAccountStore is the Postgres-backed AccountStore over the accounts table.
type pgAccountStore struct {
	pool *pgxpool.Pool
}

// NewPgAccountStore returns an AccountStore backed by the accounts table.
func NewPgAccountStore(pool *pgxpool.Pool) AccountStore {
	if pool == nil {
		panic("entitlement: pgxpool is required")
	}
	return &pgAccountStore{pool: pool}
}

const accountColumns = `
	id, email, plan_id, subscription_status, trial_ends_at,
	grace_period_ends_at, payment_failed_at, manual_features,
	billing_customer_id, created_at, updated_at, deleted_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var acct Account
	var features []string
	var customerID *string

	err := row.Scan(
		&acct.ID, &acct.Email, &acct.PlanID, &acct.Status, &acct.TrialEndsAt,
		&acct.GracePeriodEndsAt, &acct.PaymentFailedAt, &features,
		&customerID, &acct.CreatedAt, &acct.UpdatedAt, &acct.DeletedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrAccountNotFound
		}
		return nil, errors.Join(ErrStoreFailure, err)
	}

	acct.ManualFeatures = make([]catalog.Feature, 0, len(features))
	for _, f := range features {
		acct.ManualFeatures = append(acct.ManualFeatures, catalog.Feature(f))
	}
	if customerID != nil {
		acct.BillingCustomerID = *customerID
	}
	return &acct, nil
}

func (s *pgAccountStore) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

func (s *pgAccountStore) GetByBillingCustomerID(ctx context.Context, customerID string) (*Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE billing_customer_id = $1`, customerID)
	return scanAccount(row)
}

func (s *pgAccountStore) Create(ctx context.Context, acct *Account) error {
	features := make([]string, 0, len(acct.ManualFeatures))
	for _, f := range acct.ManualFeatures {
		features = append(features, string(f))
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts
			(id, email, plan_id, subscription_status, trial_ends_at,
			 grace_period_ends_at, payment_failed_at, manual_features,
			 billing_customer_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), now(), now())`,
		acct.ID, acct.Email, acct.PlanID, acct.Status, acct.TrialEndsAt,
		acct.GracePeriodEndsAt, acct.PaymentFailedAt, features,
		acct.BillingCustomerID)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return ErrAccountAlreadyExists
		}
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}

func (s *pgAccountStore) Save(ctx context.Context, acct *Account) error {
	features := make([]string, 0, len(acct.ManualFeatures))
	for _, f := range acct.ManualFeatures {
		features = append(features, string(f))
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts SET
			email = $2,
			plan_id = $3,
			subscription_status = $4,
			trial_ends_at = $5,
			grace_period_ends_at = $6,
			payment_failed_at = $7,
			manual_features = $8,
			billing_customer_id = NULLIF($9, ''),
			deleted_at = $10,
			updated_at = now()
		WHERE id = $1`,
		acct.ID, acct.Email, acct.PlanID, acct.Status, acct.TrialEndsAt,
		acct.GracePeriodEndsAt, acct.PaymentFailedAt, features,
		acct.BillingCustomerID, acct.DeletedAt)
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// SetBillingCustomerID is a compare-and-swap on the stored reference. The
// IS NOT DISTINCT FROM guard treats NULL and '' as the same unset state, so
// filling an empty reference and replacing a stale one both go through the
// same conditional update, and a concurrent winner is surfaced as
// ErrCustomerConflict rather than silently dropped.
func (s *pgAccountStore) SetBillingCustomerID(ctx context.Context, id uuid.UUID, observed, customerID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts SET
			billing_customer_id = NULLIF($2, ''),
			updated_at = now()
		WHERE id = $1
		  AND billing_customer_id IS NOT DISTINCT FROM NULLIF($3, '')`,
		id, customerID, observed)
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return ErrCustomerConflict
	}
	return nil
}

// pgAddonStore is the Postgres-backed AddonStore over account_addons.
type pgAddonStore struct {
	pool *pgxpool.Pool
}

// NewPgAddonStore returns an AddonStore backed by the account_addons table.
func NewPgAddonStore(pool *pgxpool.Pool) AddonStore {
	if pool == nil {
		panic("entitlement: pgxpool is required")
	}
	return &pgAddonStore{pool: pool}
}

func (s *pgAddonStore) ListActive(ctx context.Context, accountID uuid.UUID) ([]Addon, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT account_id, addon_id, feature, status, created_at, updated_at
		FROM account_addons
		WHERE account_id = $1 AND status = $2`,
		accountID, AddonActive)
	if err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	defer rows.Close()

	var addons []Addon
	for rows.Next() {
		var a Addon
		var feature string
		if err := rows.Scan(&a.AccountID, &a.AddonID, &feature, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, errors.Join(ErrStoreFailure, err)
		}
		a.Feature = catalog.Feature(feature)
		addons = append(addons, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	return addons, nil
}

func (s *pgAddonStore) Upsert(ctx context.Context, addon Addon) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO account_addons (account_id, addon_id, feature, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (account_id, addon_id)
		DO UPDATE SET feature = EXCLUDED.feature, status = EXCLUDED.status, updated_at = now()`,
		addon.AccountID, addon.AddonID, string(addon.Feature), addon.Status)
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}

func (s *pgAddonStore) Cancel(ctx context.Context, accountID uuid.UUID, addonID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE account_addons SET status = $3, updated_at = now()
		WHERE account_id = $1 AND addon_id = $2`,
		accountID, addonID, AddonCanceled)
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}

// pgLimitOverrideStore reads account-specific limit overrides.
type pgLimitOverrideStore struct {
	pool *pgxpool.Pool
}

// NewPgLimitOverrideStore returns a LimitOverrideStore backed by the
// account_limit_overrides table.
func NewPgLimitOverrideStore(pool *pgxpool.Pool) LimitOverrideStore {
	if pool == nil {
		panic("entitlement: pgxpool is required")
	}
	return &pgLimitOverrideStore{pool: pool}
}

func (s *pgLimitOverrideStore) OverridesFor(ctx context.Context, accountID uuid.UUID) (map[catalog.Resource]*int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT resource_type, max_quantity
		FROM account_limit_overrides
		WHERE account_id = $1`,
		accountID)
	if err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	defer rows.Close()

	var overrides map[catalog.Resource]*int64
	for rows.Next() {
		var res string
		var limit *int64
		if err := rows.Scan(&res, &limit); err != nil {
			return nil, errors.Join(ErrStoreFailure, err)
		}
		if overrides == nil {
			overrides = make(map[catalog.Resource]*int64)
		}
		overrides[catalog.Resource(res)] = limit
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	return overrides, nil
}
