package application

import (
	"errors"
	"fmt"
)

var (
	ErrValidation            = errors.New("validation failed")
	ErrOrderNotFound         = errors.New("order not found for external reference")
	ErrStoreUnavailable      = errors.New("store unavailable")
	ErrInvalidTransition     = errors.New("invalid order status transition")
	ErrGatewayPaymentMissing = errors.New("payment not found at gateway")
	ErrGatewayUnavailable    = errors.New("gateway unavailable")
)

// ValidationError is returned before any store is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// StoreError wraps an unexpected store or lock failure. It matches
// ErrStoreUnavailable and unwraps to the underlying error.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStoreUnavailable }

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
