/*
errors.go - Error taxonomy for the leave engine

PURPOSE:
  Every failure the engine or its callers can report belongs to one Kind.
  Callers decide how to react by Kind, not by message text.

ERROR KINDS:
  1. Validation    - malformed input caught before any network call
  2. Authorization - AccessPolicy denial, never retried
  3. State         - AlreadyReviewed / InvalidTarget, or a 409 from the backend
  4. NotFound      - referenced employee or record absent
  5. Transport     - network/backend failure, including Unauthenticated (401)

PROPAGATION:
  Validation and State errors are surfaced as user-facing messages.
  Authorization errors indicate a policy violation.
  Transport errors other than Unauthenticated may be retried manually.
  Unauthenticated tears down the session, whichever operation raised it.

USAGE:
  if errors.Is(err, leave.ErrAlreadyReviewed) { ... }
  if leave.IsUnauthenticated(err) { session.Teardown() }

SEE ALSO:
  - lifecycle.go: raises Authorization and State errors
  - backend/client.go: raises Transport and NotFound errors
*/
package leave

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindState         Kind = "state"
	KindNotFound      Kind = "not_found"
	KindTransport     Kind = "transport"
)

// Error is the single structured error type of the engine. Two errors match
// under errors.Is when their Kind and Code agree, so a sentinel decorated
// with With still matches the bare sentinel.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Detail  string

	// StatusCode is the HTTP status observed for transport errors, 0 otherwise.
	StatusCode int

	Err error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// With returns a copy of e carrying a formatted detail.
func (e *Error) With(format string, args ...any) *Error {
	cp := *e
	cp.Detail = fmt.Sprintf(format, args...)
	return &cp
}

// Wrap returns a copy of e wrapping cause.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

// WithStatus returns a copy of e recording an HTTP status.
func (e *Error) WithStatus(status int) *Error {
	cp := *e
	cp.StatusCode = status
	return &cp
}

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// Validation
	ErrInvalidDateRange = &Error{Kind: KindValidation, Code: "invalid_date_range", Message: "start date must be on or before end date"}
	ErrMissingDates     = &Error{Kind: KindValidation, Code: "missing_dates", Message: "start and end dates are required"}
	ErrInvalidDays      = &Error{Kind: KindValidation, Code: "invalid_days", Message: "days requested must be at least 1"}
	ErrEmptyReason      = &Error{Kind: KindValidation, Code: "empty_reason", Message: "reason is required"}
	ErrInvalidRole      = &Error{Kind: KindValidation, Code: "invalid_role", Message: "invalid role"}
	ErrInvalidStatus    = &Error{Kind: KindValidation, Code: "invalid_status", Message: "invalid status"}
	ErrInvalidSort      = &Error{Kind: KindValidation, Code: "invalid_sort", Message: "invalid sort"}
	ErrInvalidQuery     = &Error{Kind: KindValidation, Code: "invalid_query", Message: "invalid query"}
	ErrPasswordMismatch = &Error{Kind: KindValidation, Code: "password_mismatch", Message: "passwords do not match"}
	ErrPasswordTooShort = &Error{Kind: KindValidation, Code: "password_too_short", Message: "password must be at least 6 characters long"}
	ErrMissingField     = &Error{Kind: KindValidation, Code: "missing_field", Message: "required field missing"}
	ErrInvalidField     = &Error{Kind: KindValidation, Code: "invalid_field", Message: "invalid field"}
	ErrRejected         = &Error{Kind: KindValidation, Code: "rejected", Message: "backend service rejected the request"}

	// Authorization
	ErrUnauthorized   = &Error{Kind: KindAuthorization, Code: "unauthorized", Message: "principal lacks the required capability"}
	ErrSubmitForOther = &Error{Kind: KindAuthorization, Code: "submit_for_other", Message: "employees may only submit leave for themselves"}

	// State
	ErrAlreadyReviewed = &Error{Kind: KindState, Code: "already_reviewed", Message: "leave request has already been reviewed"}
	ErrInvalidTarget   = &Error{Kind: KindState, Code: "invalid_target", Message: "target status must be approved or rejected"}
	ErrStaleReload     = &Error{Kind: KindState, Code: "stale_reload", Message: "a newer reload has already been installed"}
	ErrConflict        = &Error{Kind: KindState, Code: "conflict", Message: "request conflicts with the current state"}

	// Not found
	ErrNotFound = &Error{Kind: KindNotFound, Code: "not_found", Message: "resource not found"}

	// Transport
	ErrUnauthenticated = &Error{Kind: KindTransport, Code: "unauthenticated", Message: "session is no longer authenticated"}
	ErrBackend         = &Error{Kind: KindTransport, Code: "backend", Message: "backend service request failed"}
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsClientError returns true if the error is due to invalid client input or
// a state conflict the user must resolve.
func IsClientError(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindState:
		return true
	}
	return false
}

// IsUnauthenticated returns true if the session must be torn down.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}

// IsRetryable returns true for transport failures a user may retry manually.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransport && !IsUnauthenticated(err)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
