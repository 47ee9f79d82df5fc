// Package apperr defines the error kinds returned across the points core.
//
// Every failure a caller can act on carries one of the sentinel kinds below.
// Callers test for a kind with errors.Is and show Message(err) to the user.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidState        = errors.New("invalid state")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientPoints  = errors.New("insufficient points")
	ErrOutOfStock          = errors.New("out of stock")
	ErrRewardUnavailable   = errors.New("reward unavailable")
	ErrDuplicateAssignment = errors.New("duplicate assignment")
	ErrPhotoRequired       = errors.New("photo required")
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation error")
	ErrBelowRedeemed       = errors.New("below redeemed")
	ErrConflict            = errors.New("conflict")
	ErrCorruptLedger       = errors.New("corrupt ledger")
)

var kinds = []error{
	ErrInvalidState,
	ErrInsufficientBalance,
	ErrInsufficientPoints,
	ErrOutOfStock,
	ErrRewardUnavailable,
	ErrDuplicateAssignment,
	ErrPhotoRequired,
	ErrNotFound,
	ErrValidation,
	ErrBelowRedeemed,
	ErrConflict,
	ErrCorruptLedger,
}

// Error is a kinded failure with a user-facing message.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

// New returns an *Error of the given kind.
func New(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func InvalidState(format string, args ...any) error {
	return New(ErrInvalidState, format, args...)
}

func NotFound(format string, args ...any) error {
	return New(ErrNotFound, format, args...)
}

func Validation(format string, args ...any) error {
	return New(ErrValidation, format, args...)
}

// KindOf returns the sentinel kind carried by err, or nil for errors outside
// the taxonomy (storage failures and the like).
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Message returns the user-facing text for err. Errors outside the taxonomy
// get a generic message so storage details never leak.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		if ae.Msg != "" {
			return ae.Msg
		}
		return ae.Kind.Error()
	}
	if k := KindOf(err); k != nil {
		return k.Error()
	}
	return "internal error"
}

// Code returns a stable snake_case identifier for the kind of err.
func Code(err error) string {
	switch KindOf(err) {
	case ErrInvalidState:
		return "invalid_state"
	case ErrInsufficientBalance:
		return "insufficient_balance"
	case ErrInsufficientPoints:
		return "insufficient_points"
	case ErrOutOfStock:
		return "out_of_stock"
	case ErrRewardUnavailable:
		return "reward_unavailable"
	case ErrDuplicateAssignment:
		return "duplicate_assignment"
	case ErrPhotoRequired:
		return "photo_required"
	case ErrNotFound:
		return "not_found"
	case ErrValidation:
		return "validation_error"
	case ErrBelowRedeemed:
		return "below_redeemed"
	case ErrConflict:
		return "conflict"
	case ErrCorruptLedger:
		return "corrupt_ledger"
	default:
		return "internal"
	}
}
