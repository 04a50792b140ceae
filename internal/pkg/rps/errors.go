package rps

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("already exists")
	ErrOutOfOrder        = errors.New("out of order")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrMalformedPayload  = errors.New("could not unpack")
	ErrInvalidOffer      = errors.New("invalid offer")
)

// HaltError reports a broken invariant. Replaying further transactions on
// top of the state that produced it would diverge from honest nodes.
type HaltError struct {
	Height int64
	Reason string
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("halt at height %d: %s", e.Height, e.Reason)
}

func halt(height int64, format string, args ...any) *HaltError {
	return &HaltError{Height: height, Reason: fmt.Sprintf(format, args...)}
}

func IsHalt(err error) (*HaltError, bool) {
	var h *HaltError
	if errors.As(err, &h) {
		return h, true
	}

	return nil, false
}
