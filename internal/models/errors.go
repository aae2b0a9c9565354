package models

import "fmt"

type ErrorCategory string

const (
	CategoryUpstream    ErrorCategory = "upstream"
	CategoryAcquisition ErrorCategory = "acquisition"
	CategoryToolRequest ErrorCategory = "tool_request"
	CategoryLoop        ErrorCategory = "loop"
	CategoryTimeout     ErrorCategory = "timeout"
)

// AppError is the typed error carried across service boundaries. Acquisition
// errors are never fatal; callers downgrade them to an internal context note.
type AppError struct {
	Code     string
	Category ErrorCategory
	Message  string
	Cause    error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func NewTimeoutError(code, message string) *AppError {
	return &AppError{Code: code, Category: CategoryTimeout, Message: message}
}

func NewExternalError(code, message string) *AppError {
	return &AppError{Code: code, Category: CategoryUpstream, Message: message}
}

func NewAcquisitionError(code, message string) *AppError {
	return &AppError{Code: code, Category: CategoryAcquisition, Message: message}
}

func WrapExternalError(code string, err error) *AppError {
	return &AppError{Code: code, Category: CategoryUpstream, Message: "external call failed", Cause: err}
}
