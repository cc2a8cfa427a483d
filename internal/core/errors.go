// Package core holds the error taxonomy shared by every coordinator.
//
// Conflict and Cooldown are expected business outcomes, not failures: callers
// must be able to branch on them and show the stable message to the person at
// the kiosk. TransientStore wraps driver-level trouble so interactive paths
// can surface it immediately while the sweeper retries.
package core

import "errors"

// Code identifies the business meaning of an error.
type Code string

const (
	CodeNotFound       Code = "NOT_FOUND"
	CodeConflict       Code = "CONFLICT"
	CodeCooldown       Code = "COOLDOWN"
	CodeValidation     Code = "VALIDATION"
	CodeTransientStore Code = "STORE_UNAVAILABLE"
)

// Error is a coded error carrying a business-level message that is stable
// regardless of the underlying storage error text.
type Error struct {
	code  Code
	msg   string
	cause error
}

func (e *Error) Error() string { return e.msg }
func (e *Error) Code() Code    { return e.code }
func (e *Error) Unwrap() error { return e.cause }

// NotFound reports an absent entity or session.
func NotFound(msg string) error { return &Error{code: CodeNotFound, msg: msg} }

// Conflict reports an operation that would violate an exclusivity or
// availability invariant.
func Conflict(msg string) error { return &Error{code: CodeConflict, msg: msg} }

// Cooldown reports a scan rejected because the same code was accepted too
// recently.
func Cooldown(msg string) error { return &Error{code: CodeCooldown, msg: msg} }

// Invalid reports malformed input.
func Invalid(msg string) error { return &Error{code: CodeValidation, msg: msg} }

// StoreUnavailable wraps a transient storage failure. The cause is kept for
// logs; callers only see the stable message.
func StoreUnavailable(cause error) error {
	return &Error{code: CodeTransientStore, msg: "storage temporarily unavailable", cause: cause}
}

// CodeOf extracts the business code from err, or "" for plain system errors.
func CodeOf(err error) Code {
	var ce interface{ Code() Code }
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}

// IsBusiness reports whether err is an expected business outcome rather than
// a system failure.
func IsBusiness(err error) bool {
	switch CodeOf(err) {
	case CodeNotFound, CodeConflict, CodeCooldown, CodeValidation:
		return true
	}
	return false
}
