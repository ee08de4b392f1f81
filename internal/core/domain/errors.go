package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrValidation indicates malformed or invalid input.
	ErrValidation = errors.New("invalid input")

	// ErrUnauthorized indicates a missing, expired, revoked or forged credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidCredentials indicates a login with a wrong username or password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrQuotaExceeded indicates an upload would push a user past their storage ceiling.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrReservationFinalized indicates Commit or Release was called twice.
	ErrReservationFinalized = errors.New("reservation already finalized")

	// ErrUnsupportedFormat indicates no text extractor handles the uploaded file.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrStorage indicates the persistent store failed.
	ErrStorage = errors.New("storage failure")

	// ErrProviderFailed indicates an external search provider failed.
	ErrProviderFailed = errors.New("provider failed")

	// ErrRateLimited indicates an upstream or local rate limit was hit.
	ErrRateLimited = errors.New("rate limited")
)

// QuotaExceededError carries the numbers behind a rejected reservation.
type QuotaExceededError struct {
	UserID    string
	Used      int64
	Requested int64
	Limit     int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("storage quota exceeded: %d bytes used, %d requested, limit %d",
		e.Used, e.Requested, e.Limit)
}

// Unwrap allows errors.Is(err, ErrQuotaExceeded).
func (e *QuotaExceededError) Unwrap() error {
	return ErrQuotaExceeded
}

// ProviderErrorKind classifies a provider failure.
type ProviderErrorKind string

// Provider failure kinds.
const (
	ProviderErrorNetwork     ProviderErrorKind = "network"
	ProviderErrorTimeout     ProviderErrorKind = "timeout"
	ProviderErrorRateLimited ProviderErrorKind = "rate_limited"
	ProviderErrorStatus      ProviderErrorKind = "status"
	ProviderErrorMalformed   ProviderErrorKind = "malformed"
	ProviderErrorConfig      ProviderErrorKind = "config"
)

// ProviderError wraps any failure of an external search provider.
// The aggregator logs these and treats them as zero results.
type ProviderError struct {
	Source     SourceKind
	Provider   string
	Kind       ProviderErrorKind
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s provider %s: %s", e.Source, e.Provider, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is reports ErrProviderFailed for every provider error, and ErrRateLimited for throttled ones.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrProviderFailed:
		return true
	case ErrRateLimited:
		return e.Kind == ProviderErrorRateLimited
	}
	return false
}
