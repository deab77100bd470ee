// Package rpcerr defines the error taxonomy surfaced by the in3 client.
//
// Callers should branch on Kind rather than matching error strings. Error()
// returns the human message verbatim so transport failures reach the caller
// exactly as the capability reported them.
package rpcerr

import (
	"errors"
	"fmt"
)

// Kind is a stable category for programmatic error handling.
type Kind string

const (
	// KindTryAgain is internal: the attempt's tree is stale and must be rebuilt.
	// The driver absorbs it; it never reaches a caller.
	KindTryAgain      Kind = "TryAgain"
	KindTransport     Kind = "Transport"
	KindVerification  Kind = "Verification"
	KindSigning       Kind = "Signing"
	KindInternal      Kind = "Internal"
	KindConfiguration Kind = "Configuration"
	KindExhausted     Kind = "Exhausted"
)

// Error is the client's structured error type.
//
// Message is intended for humans; do not match on it.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// New returns an error of the given kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with fmt.Sprintf formatting.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an error of the given kind caused by cause.
// If cause already carries a Kind it is returned unchanged.
func Wrap(kind Kind, msg string, cause error) error {
	if cause == nil {
		return New(kind, msg)
	}
	var e *Error
	if errors.As(cause, &e) {
		return cause
	}
	if msg == "" {
		msg = cause.Error()
	}
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) an *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// KindOf returns the Kind of err, or "" if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}
