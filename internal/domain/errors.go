package domain

import (
	"errors"
	"fmt"
)

// Error kinds shared by every layer. Specific errors wrap one of these so the
// transport can map them with errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidState    = errors.New("invalid state")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUpstream        = errors.New("upstream failure")
	ErrConflict        = errors.New("concurrent modification")
)

var (
	ErrEmptyCart            = Errorf(ErrInvalidState, "cart is empty, nothing to checkout")
	ErrLineItemNotFound     = Errorf(ErrNotFound, "item not found in cart")
	ErrInvalidQuantity      = Errorf(ErrInvalidArgument, "quantity must be at least 1")
	ErrInvalidSignature     = Errorf(ErrUpstream, "payment notification signature invalid")
	ErrPaymentsDisabled     = Errorf(ErrUpstream, "payment provider is not configured")
	ErrInvalidPaymentMethod = Errorf(ErrInvalidArgument, "unsupported payment method")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// Errorf builds an error of the given kind whose message is only the formatted
// text, so it can be shown to clients as is.
func Errorf(kind error, format string, args ...any) error {
	return &kindError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// ClientMessage returns the text of the outermost error in err's chain that
// was built with Errorf.
func ClientMessage(err error) (string, bool) {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.msg, true
	}
	return "", false
}
