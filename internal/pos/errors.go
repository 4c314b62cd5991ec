package pos

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes failures of the data layer.
type ErrorCode string

const (
	// ErrCodeValidation indicates malformed input. Caller's fault, never retried.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeStorage indicates the local durable store failed. The write did not happen.
	ErrCodeStorage ErrorCode = "STORAGE"

	// ErrCodeDelivery indicates the remote authority did not accept a payload.
	// Recovered by queuing; never a failure of the local write.
	ErrCodeDelivery ErrorCode = "DELIVERY"
)

// Error is the typed error returned by the store, gateway, and engine.
//
// Error includes structured fields for diagnostics:
//   - Op names the failing operation ("set price sheet", "send sale", ...)
//   - Field names the offending input field for validation errors
//   - StatusCode is the HTTP status for delivery errors (0 on transport failure)
//   - Rejected marks delivery errors the remote refused outright (4xx)
type Error struct {
	Code       ErrorCode
	Op         string
	Field      string
	Message    string
	StatusCode int
	Rejected   bool
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Field != "":
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, msg, e.Field)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %s: %s (status=%d)", e.Code, e.Op, msg, e.StatusCode)
	case e.Op != "":
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError creates an Error for a rejected input field.
func NewValidationError(field, message string) *Error {
	return &Error{Code: ErrCodeValidation, Field: field, Message: message}
}

// NewStorageError wraps a failure of the local store.
func NewStorageError(op string, err error) *Error {
	return &Error{Code: ErrCodeStorage, Op: op, Err: err}
}

// NewDeliveryError creates an Error for a failed remote call.
// A 4xx status marks the payload as rejected; anything else is transient.
func NewDeliveryError(op string, status int, err error) *Error {
	return &Error{
		Code:       ErrCodeDelivery,
		Op:         op,
		StatusCode: status,
		Rejected:   status >= 400 && status < 500,
		Err:        err,
	}
}

func hasCode(err error, code ErrorCode) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// IsValidationError returns true if err is or wraps a validation error.
func IsValidationError(err error) bool {
	return hasCode(err, ErrCodeValidation)
}

// IsStorageError returns true if err is or wraps a storage error.
func IsStorageError(err error) bool {
	return hasCode(err, ErrCodeStorage)
}

// IsDeliveryError returns true if err is or wraps a delivery error.
func IsDeliveryError(err error) bool {
	return hasCode(err, ErrCodeDelivery)
}

// IsRejected returns true if the remote refused the payload itself.
// Retrying the same payload will keep failing.
func IsRejected(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeDelivery && pe.Rejected
	}
	return false
}

// IsTransient returns true for delivery failures that are safe to retry
// unchanged (network errors, 5xx).
func IsTransient(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeDelivery && !pe.Rejected
	}
	return false
}
