package services

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation error")
	// ErrStore matches every *StoreError.
	ErrStore = errors.New("store error")
	// ErrEventPublish is returned when a checkout event could not be published.
	ErrEventPublish = errors.New("event publish failed")
	// ErrCheckoutIncomplete is returned when the checkout event went out but
	// the cart could not be cleared afterwards.
	ErrCheckoutIncomplete = errors.New("checkout published but cart not cleared")
)

// ValidationError rejects caller input. It is never retried.
type ValidationError struct {
	Field  string
	Reason string
	// Err is the underlying cause, e.g. repository.ErrInvalidIdentifier.
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// StoreError wraps a backend failure. The engine does not retry; the
// caller may retry the whole operation (safe for remove and clear, not for
// add, which accumulates).
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("cart store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }
