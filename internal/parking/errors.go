package parking

import (
	"errors"
	"fmt"
)

// Business outcomes a caller is expected to handle.
var (
	ErrInvalidAttribute = errors.New("invalid attribute")
	ErrAlreadyParked    = errors.New("vehicle already parked")
	ErrUnavailable      = errors.New("no suitable spot available")
	ErrNotFound         = errors.New("not found")
	ErrPaymentFailed    = errors.New("payment failed")
)

// ErrInvalidArgument is an ErrInvalidAttribute raised for operation arguments
// rather than construction input.
var ErrInvalidArgument = fmt.Errorf("%w: invalid argument", ErrInvalidAttribute)

// ErrInvalidTransition signals a state machine misuse: completing a ticket
// twice, paying twice, occupying a spot that is not available.
var ErrInvalidTransition = errors.New("invalid state transition")

// IsOperational reports whether err is an expected business outcome as
// opposed to a broken precondition.
func IsOperational(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrInvalidTransition):
		return false
	case errors.Is(err, ErrInvalidAttribute),
		errors.Is(err, ErrAlreadyParked),
		errors.Is(err, ErrUnavailable),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrPaymentFailed):
		return true
	default:
		return false
	}
}
