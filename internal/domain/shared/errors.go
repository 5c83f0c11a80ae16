// Package shared contains common domain errors used across all domain packages.
// This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
	"time"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation   = errors.New("validation error")
	ErrInvalidInput = errors.New("invalid input")

	// Configuration errors. Fatal, never retried.
	ErrConfig = errors.New("configuration error")

	// External service errors
	ErrAPIFailure         = errors.New("external api failure")
	ErrRateLimited        = errors.New("rate limited")
	ErrServiceUnavailable = errors.New("service unavailable")

	// Competition states. These are terminal states rendered as informative
	// responses rather than failures.
	ErrNoActivePeriod         = errors.New("no active competition period")
	ErrEmptyLeaderboard       = errors.New("leaderboard is empty")
	ErrInvalidHistoricalDate  = errors.New("invalid historical date")
	ErrMissingBaseline        = errors.New("missing baseline")
	ErrSnapshotUnavailable    = errors.New("snapshot unavailable")
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrStalePeriod rejects a baseline write sampled for a period that is no
	// longer active, or written while the rollover wipe is still pending.
	ErrStalePeriod = errors.New("stale competition period")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "superlative", "gameapi", "store"
	Op      string // Operation that failed, e.g., "Rank", "Rollover"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// UPSTREAM ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// UpstreamError is returned by external API adapters. It carries the HTTP
// status and an optional server-specified retry delay.
type UpstreamError struct {
	Service    string
	Op         string
	Status     int
	Message    string
	RetryAfter time.Duration
	Err        error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("%s.%s: %s", e.Service, e.Op, e.Message)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is matches ErrRateLimited for 429 responses and ErrAPIFailure otherwise.
func (e *UpstreamError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.Status == 429
	case ErrAPIFailure:
		return e.Status != 429
	}
	return false
}

// RetryAfterHint extracts a retry hint from any UpstreamError in err's chain.
func RetryAfterHint(err error) (time.Duration, bool) {
	var up *UpstreamError
	if errors.As(err, &up) && up.RetryAfter > 0 {
		return up.RetryAfter, true
	}
	return 0, false
}

// ══════════════════════════════════════════════════════════════════════════════
// PREDICATES
// ══════════════════════════════════════════════════════════════════════════════

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidInput)
}

// IsRateLimited checks if the error is a rate-limit error.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsInformational reports terminal states that should be rendered as
// non-alarming responses rather than failures.
func IsInformational(err error) bool {
	return errors.Is(err, ErrNoActivePeriod) ||
		errors.Is(err, ErrEmptyLeaderboard) ||
		errors.Is(err, ErrInvalidHistoricalDate) ||
		errors.Is(err, ErrSnapshotUnavailable)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrAPIFailure) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrRateLimited)
}
