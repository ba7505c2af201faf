// internal/app/system/backend/errors.go
package backend

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure that leaves a backend.
type ErrorKind string

const (
	// KindContext is a usage error: missing school or year, a read-only
	// year, conflicting filters. Never retried.
	KindContext ErrorKind = "context"
	// KindTransport covers network failures and non-2xx responses.
	KindTransport ErrorKind = "transport"
	// KindAuth is a missing or rejected bearer token.
	KindAuth ErrorKind = "auth"
)

// Error is the single error shape returned by all backends, so callers never
// branch on which backend produced it.
type Error struct {
	Kind    ErrorKind
	Message string
	Status  int   // HTTP status when the error came from a response, else 0
	Err     error // underlying cause, if any
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s error (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ContextError builds a KindContext error.
func ContextError(format string, args ...any) *Error {
	return &Error{Kind: KindContext, Message: fmt.Sprintf(format, args...)}
}

// AuthError builds a KindAuth error.
func AuthError(status int, message string) *Error {
	return &Error{Kind: KindAuth, Status: status, Message: message}
}

// TransportError builds a KindTransport error wrapping cause.
func TransportError(status int, message string, cause error) *Error {
	return &Error{Kind: KindTransport, Status: status, Message: message, Err: cause}
}

// IsKind reports whether err is (or wraps) a backend Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind == kind
	}
	return false
}

// ErrNoToken is wrapped by the auth error returned when the self-hosted path
// has no stored token.
var ErrNoToken = errors.New("no bearer token; log in first")
