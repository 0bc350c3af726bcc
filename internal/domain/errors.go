package domain

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. ProviderError wraps one of the provider kinds so
// callers can test with errors.Is.
var (
	ErrProviderUnavailable   = errors.New("provider unavailable")
	ErrProviderDataMalformed = errors.New("provider data malformed")
	ErrInvalidLocation       = errors.New("invalid location")
	ErrInvalidHorizon        = errors.New("invalid horizon")
)

// ProviderError is a failure attributed to one upstream provider.
type ProviderError struct {
	Provider string
	Kind     error
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Unavailable reports a network failure, 5xx, 429 or timeout.
func Unavailable(provider string, err error) error {
	return &ProviderError{Provider: provider, Kind: ErrProviderUnavailable, Err: err}
}

// Malformed reports a payload that violates the provider's schema.
func Malformed(provider string, err error) error {
	return &ProviderError{Provider: provider, Kind: ErrProviderDataMalformed, Err: err}
}

// IsProviderFailure reports whether err should trigger retry and fallback.
// Malformed payloads are treated like unavailability for that purpose.
func IsProviderFailure(err error) bool {
	return errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrProviderDataMalformed)
}
