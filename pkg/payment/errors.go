package payment

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidWebhookSignature = errors.New("invalid webhook signature")
	ErrUnknownPrice            = errors.New("no price configured")
)

// ProviderError wraps a payment-provider failure, preserving the provider's
// own error code and message for logging. The wrapped error keeps the raw
// provider payload reachable through errors.As.
type ProviderError struct {
	// Op is the provider operation that failed, e.g. "customers.create".
	Op string
	// Code is the provider's machine error code when it supplied one.
	Code string
	// Message is the provider's human-readable description.
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payment provider %s failed: %s (%s)", e.Op, e.Message, e.Code)
	}
	return fmt.Sprintf("payment provider %s failed: %s", e.Op, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsProviderError reports whether the error chain contains a provider
// failure, and returns it.
func IsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
