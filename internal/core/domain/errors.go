package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrNotFound          = errors.New("not found")
	ErrLockBusy          = errors.New("cart busy, retry")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrForbidden         = errors.New("forbidden")
	ErrPaymentSetup      = errors.New("payment setup failed")
	ErrValidationFailed  = errors.New("cart validation failed")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)

// ValidationError carries the per-line messages produced by cart validation.
// It matches ErrValidationFailed under errors.Is so callers can branch on the
// kind without inspecting messages.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("cart validation failed: %s", strings.Join(e.Messages, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}
