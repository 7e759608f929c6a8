package http

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is an error that carries its HTTP status and a stable code.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func newAppError(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

func BadRequestError(message string) *AppError {
	return newAppError(http.StatusBadRequest, "ERR_BAD_REQUEST", message)
}

func BadRequestErrorf(format string, a ...interface{}) *AppError {
	return BadRequestError(fmt.Sprintf(format, a...))
}

// ConflictError is returned when a run is already active or a tariff is in
// the wrong state for the requested transition.
func ConflictError(message string) *AppError {
	return newAppError(http.StatusConflict, "ERR_CONFLICT", message)
}

func TooManyRequestsError(message string) *AppError {
	return newAppError(http.StatusTooManyRequests, "ERR_RATE_LIMITED", message)
}

// ErrorStatus pairs a sentinel error with the status it is served as.
type ErrorStatus struct {
	Target error
	Status int
	Code   string
}

// Classify wraps err in an AppError using the first matching rule. Errors
// that match nothing are returned unchanged and later served as a 500.
func Classify(err error, rules ...ErrorStatus) error {
	var appErr *AppError
	if err == nil || errors.As(err, &appErr) {
		return err
	}
	for _, r := range rules {
		if errors.Is(err, r.Target) {
			e := newAppError(r.Status, r.Code, err.Error())
			e.Err = err
			return e
		}
	}
	return err
}
