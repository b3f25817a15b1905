package entitlement

import "errors"

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountAlreadyExists = errors.New("account already exists")
	ErrFailedToLoadAddons   = errors.New("failed to load account addons")
	ErrFailedToLoadUsage    = errors.New("failed to load usage totals")
	ErrStoreFailure         = errors.New("account store failure")
	ErrCustomerConflict     = errors.New("billing customer reference changed concurrently")
)
