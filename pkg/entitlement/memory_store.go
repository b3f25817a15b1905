package entitlement

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memAccountStore is an in-memory AccountStore for tests and single-process
// development.
type memAccountStore struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]Account
}

// NewMemAccountStore returns an empty in-memory AccountStore.
func NewMemAccountStore() AccountStore {
	return &memAccountStore{
		accounts: make(map[uuid.UUID]Account),
	}
}

func (s *memAccountStore) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return cloneAccount(acct), nil
}

func (s *memAccountStore) GetByBillingCustomerID(ctx context.Context, customerID string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, acct := range s.accounts {
		if acct.BillingCustomerID != "" && acct.BillingCustomerID == customerID {
			return cloneAccount(acct), nil
		}
	}
	return nil, ErrAccountNotFound
}

func (s *memAccountStore) Create(ctx context.Context, acct *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[acct.ID]; exists {
		return ErrAccountAlreadyExists
	}
	now := time.Now().UTC()
	acct.CreatedAt = now
	acct.UpdatedAt = now
	s.accounts[acct.ID] = *cloneAccount(*acct)
	return nil
}

func (s *memAccountStore) Save(ctx context.Context, acct *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[acct.ID]; !exists {
		return ErrAccountNotFound
	}
	acct.UpdatedAt = time.Now().UTC()
	s.accounts[acct.ID] = *cloneAccount(*acct)
	return nil
}

// SetBillingCustomerID mirrors the Postgres store's compare-and-swap so that
// race-loser behavior is observable in tests.
func (s *memAccountStore) SetBillingCustomerID(ctx context.Context, id uuid.UUID, observed, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, exists := s.accounts[id]
	if !exists {
		return ErrAccountNotFound
	}
	if acct.BillingCustomerID != observed {
		return ErrCustomerConflict
	}
	acct.BillingCustomerID = customerID
	acct.UpdatedAt = time.Now().UTC()
	s.accounts[id] = acct
	return nil
}

func cloneAccount(a Account) *Account {
	a.ManualFeatures = slices.Clone(a.ManualFeatures)
	return &a
}

type addonKey struct {
	accountID uuid.UUID
	addonID   string
}

// memAddonStore is an in-memory AddonStore.
type memAddonStore struct {
	mu     sync.RWMutex
	addons map[addonKey]Addon
}

// NewMemAddonStore returns an empty in-memory AddonStore.
func NewMemAddonStore() AddonStore {
	return &memAddonStore{
		addons: make(map[addonKey]Addon),
	}
}

func (s *memAddonStore) ListActive(ctx context.Context, accountID uuid.UUID) ([]Addon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []Addon
	for _, addon := range s.addons {
		if addon.AccountID == accountID && addon.Status == AddonActive {
			active = append(active, addon)
		}
	}
	return active, nil
}

func (s *memAddonStore) Upsert(ctx context.Context, addon Addon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	key := addonKey{accountID: addon.AccountID, addonID: addon.AddonID}
	if existing, ok := s.addons[key]; ok {
		addon.CreatedAt = existing.CreatedAt
	} else {
		addon.CreatedAt = now
	}
	addon.UpdatedAt = now
	s.addons[key] = addon
	return nil
}

func (s *memAddonStore) Cancel(ctx context.Context, accountID uuid.UUID, addonID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := addonKey{accountID: accountID, addonID: addonID}
	addon, ok := s.addons[key]
	if !ok {
		return nil
	}
	addon.Status = AddonCanceled
	addon.UpdatedAt = time.Now().UTC()
	s.addons[key] = addon
	return nil
}
