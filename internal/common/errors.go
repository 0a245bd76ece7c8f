// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// ErrValidation marks malformed input. Never retried.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a reference to an unknown item, account or transaction.
	ErrNotFound = errors.New("not found")
	// ErrProvider marks a failure talking to the transaction provider.
	ErrProvider = errors.New("provider error")
	// ErrStore marks a failure in the ledger store.
	ErrStore = errors.New("store error")

	// Provider errors.
	ErrPlaidRateLimit = errors.New("plaid rate limit exceeded")
	// ErrSyncMutated is returned when the provider's data changed mid-pagination
	// and the pass must restart from its original cursor.
	ErrSyncMutated = errors.New("transactions changed during pagination")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Kind is the machine-distinguishable failure category surfaced at
// operation boundaries.
type Kind string

// Failure kinds.
const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindProvider   Kind = "provider"
	KindStore      Kind = "store"
	KindInternal   Kind = "internal"
)

// KindOf classifies an error by the sentinel it wraps.
func KindOf(err error) Kind {
	var validationErr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validationErr), errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrProvider), errors.Is(err, ErrPlaidRateLimit), errors.Is(err, ErrSyncMutated):
		return KindProvider
	case errors.Is(err, ErrStore):
		return KindStore
	default:
		return KindInternal
	}
}

// ValidationError describes one rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid input: %s", e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a validation error for a field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFound wraps ErrNotFound with the kind and key of the missing record.
func NotFound(what string, key any) error {
	return fmt.Errorf("%s %v: %w", what, key, ErrNotFound)
}

// StoreError wraps a storage failure so it classifies as KindStore while
// keeping the underlying error reachable.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, &kindError{kind: ErrStore, err: err})
}

// ProviderError wraps a provider failure so it classifies as KindProvider.
func ProviderError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, &kindError{kind: ErrProvider, err: err})
}

// kindError tags err with a kind sentinel without changing its message.
type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string   { return e.err.Error() }
func (e *kindError) Unwrap() []error { return []error{e.kind, e.err} }

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrPlaidRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
