// Package apperr defines the broker's error taxonomy. Every failure that reaches
// the HTTP boundary is either an *Error or is treated as an internal error.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure. The HTTP layer maps each kind to a status code.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindRateLimited
	KindScanPending
	KindInfected
	KindNotFound
	KindUpstream
	KindUnavailable
	KindTimeout
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindRateLimited:
		return "rate_limited"
	case KindScanPending:
		return "scan_pending"
	case KindInfected:
		return "infected"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	case KindUnavailable:
		return "unavailable"
	case KindTimeout:
		return "timeout"
	case KindConfig:
		return "config"
	default:
		return "internal"
	}
}

// Error is a classified failure. Code and Message are safe to show to callers;
// Err is the underlying cause and is only ever logged.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports a missing or malformed request field.
func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Code: "bad_request", Message: field + ": " + message}
}

// Missing reports that a required field was not supplied.
func Missing(field string) *Error {
	return Validation(field, "is required")
}

// InvalidJSON reports an undecodable request body.
func InvalidJSON(err error) *Error {
	return &Error{Kind: KindValidation, Code: "invalid_json", Message: "request body must be a valid JSON object", Err: err}
}

// Unauthorized reports a caller that failed authentication.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: "unauthorized", Message: message}
}

// RateLimited reports a caller over its request budget.
func RateLimited(message string) *Error {
	return &Error{Kind: KindRateLimited, Code: "rate_limited", Message: message}
}

// Pending reports an object whose virus scan has not finished.
func Pending() *Error {
	return &Error{Kind: KindScanPending, Code: "pending", Message: "Virus scan in progress"}
}

// Infected reports an object that failed the virus scan.
func Infected() *Error {
	return &Error{Kind: KindInfected, Code: "infected", Message: "File failed virus scan"}
}

// NotFound reports a missing object.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Code: "not_found", Message: message}
}

// Unavailable reports a dependency the broker refuses to proceed without.
func Unavailable(message string, err error) *Error {
	return &Error{Kind: KindUnavailable, Code: "unavailable", Message: message, Err: err}
}

// Config reports missing or invalid configuration.
func Config(message string) *Error {
	return &Error{Kind: KindConfig, Code: "config_error", Message: message}
}

// Upstream wraps a failure from the object store. Deadline and cancellation
// errors are reported as timeouts instead.
func Upstream(op string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Kind: KindTimeout, Code: "timeout", Message: op + " timed out", Err: err}
	}
	return &Error{Kind: KindUpstream, Code: "upstream_error", Message: op + " failed", Err: err}
}

// KindOf returns the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
