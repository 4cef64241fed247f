package apierror

import (
	"fmt"
	"strings"
	"time"
)

// Kind classifies every error the gateway surfaces to a client. Callers
// switch on Kind rather than on concrete error types.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuthentication Kind = "authentication"
	KindRateLimit      Kind = "rate_limit"
	KindInternal       Kind = "internal"
)

// FieldViolation is a single violated input rule, tagged with the field it
// belongs to. Validation errors carry the complete list, never just the
// first.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the tagged-variant error for everything that crosses the HTTP
// boundary. Exactly one payload is meaningful per kind: Violations for
// validation, LockedFor for authentication (optional), ResetAt for rate
// limit.
type Error struct {
	Kind       Kind
	Message    string
	Violations []FieldViolation
	LockedFor  time.Duration
	ResetAt    time.Time
	cause      error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Violations) > 0 {
		parts := make([]string, 0, len(e.Violations))
		for _, v := range e.Violations {
			parts = append(parts, v.Field+": "+v.Message)
		}
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, strings.Join(parts, "; "))
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the internal cause for logging; the cause is never
// rendered into a response body.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Validation builds a validation error from the full list of violations.
func Validation(violations ...FieldViolation) *Error {
	return &Error{
		Kind:       KindValidation,
		Message:    "validation failed",
		Violations: violations,
	}
}

// Authentication builds the generic 401-class error. The message must stay
// safe to disclose; factor-specific detail belongs in the audit log.
func Authentication(message string) *Error {
	return &Error{Kind: KindAuthentication, Message: message}
}

// Locked is an authentication error that discloses the remaining lock
// time. Lock duration does not reveal password correctness, so it is safe.
func Locked(remaining time.Duration) *Error {
	return &Error{
		Kind:      KindAuthentication,
		Message:   fmt.Sprintf("account is locked, try again in %s", remaining.Round(time.Second)),
		LockedFor: remaining,
	}
}

// RateLimited carries the window reset instant for client backoff.
func RateLimited(resetAt time.Time) *Error {
	return &Error{
		Kind:    KindRateLimit,
		Message: "too many requests",
		ResetAt: resetAt,
	}
}

// Internal wraps an unexpected error behind a generic message. The cause
// is reachable through Unwrap for logging only.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: "unexpected server error", cause: cause}
}
