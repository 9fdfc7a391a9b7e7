package ledger

import (
	"errors"
	"fmt"
)

// ErrorKind classifies ledger failures
type ErrorKind string

const (
	InvalidRequest     ErrorKind = "invalid_request"
	InsufficientFunds  ErrorKind = "insufficient_funds"
	NoHolding          ErrorKind = "no_holding"
	InsufficientShares ErrorKind = "insufficient_shares"
	NotFound           ErrorKind = "not_found"
)

// Error is a business-rule failure returned by the engine.
// Two errors match under errors.Is when their kinds are equal.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrInvalidRequest     = &Error{Kind: InvalidRequest, Message: "invalid request"}
	ErrInsufficientFunds  = &Error{Kind: InsufficientFunds, Message: "insufficient cash balance"}
	ErrNoHolding          = &Error{Kind: NoHolding, Message: "no holding"}
	ErrInsufficientShares = &Error{Kind: InsufficientShares, Message: "insufficient shares"}
	ErrNotFound           = &Error{Kind: NotFound, Message: "transaction not found"}
)

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the ErrorKind from err, if it carries one
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// MessageOf returns the user-facing message of a ledger error, or "" for other errors
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}
