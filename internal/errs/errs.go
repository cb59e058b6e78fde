// Package errs defines the request error taxonomy shared by the admission
// pipeline and its HTTP surface. User-visible messages stay generic; detail
// only ever reaches the audit store.
package errs

import (
	"errors"
	"net/http"
	"time"
)

type Kind int

const (
	KindInput         Kind = iota // malformed, out-of-range, or unsafe payload
	KindAuth                      // missing or invalid identity
	KindAuthorization             // valid identity, insufficient role
	KindRateLimit                 // throttled
	KindSecurityBlock             // hard-blocked before business logic
	KindNotFound                  // referenced record does not exist
	KindConflict                  // duplicate submission
	KindUpstream                  // persistence or dependency failure
)

// Error is a terminal request error. Audit-write and correlation failures are
// never modeled as Error values; they are swallowed by their owners.
type Error struct {
	Kind       Kind
	Code       string
	Message    string
	Details    []string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Input(details ...string) *Error {
	return &Error{Kind: KindInput, Code: "VALIDATION_FAILED", Message: "validation failed", Details: details}
}

func Auth() *Error {
	return &Error{Kind: KindAuth, Code: "UNAUTHORIZED", Message: "authentication required"}
}

func Forbidden() *Error {
	return &Error{Kind: KindAuthorization, Code: "FORBIDDEN", Message: "insufficient permissions"}
}

func RateLimited(retryAfter time.Duration) *Error {
	return &Error{Kind: KindRateLimit, Code: "RATE_LIMIT_EXCEEDED", Message: "rate limit exceeded", RetryAfter: retryAfter}
}

func SecurityBlock() *Error {
	return &Error{Kind: KindSecurityBlock, Code: "SECURITY_BLOCK", Message: "request blocked"}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Code: "NOT_FOUND", Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Code: "CONFLICT", Message: message}
}

func Upstream(err error) *Error {
	return &Error{Kind: KindUpstream, Code: "INTERNAL_ERROR", Message: "internal error", Err: err}
}

// HTTPStatus maps an error to its response status. Unknown errors are
// treated as upstream failures.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindInput:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindAuthorization, KindSecurityBlock:
		return http.StatusForbidden
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// As extracts a taxonomy error, if err carries one.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
