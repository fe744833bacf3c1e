package apperrors

import (
	"errors"
	"fmt"
)

type ErrorType string

const (
	ErrTransport  ErrorType = "TRANSPORT_ERROR"
	ErrAuth       ErrorType = "AUTH_ERROR"
	ErrDecode     ErrorType = "DECODE_ERROR"
	ErrValidation ErrorType = "VALIDATION_ERROR"
	ErrConfig     ErrorType = "CONFIG_ERROR"
)

// AppError is the standard error struct for the pipeline. Every failure in
// the poll path carries a type so callers can decide whether to clear
// credentials, skip a record or skip the whole cycle.
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: msg,
		Cause:   cause,
	}
}

func NewTransport(msg string, cause error) *AppError {
	return New(ErrTransport, msg, cause)
}

func NewAuth(msg string, cause error) *AppError {
	return New(ErrAuth, msg, cause)
}

func NewDecode(msg string, cause error) *AppError {
	return New(ErrDecode, msg, cause)
}

func NewValidation(msg string) *AppError {
	return New(ErrValidation, msg, nil)
}

func NewConfig(msg string, cause error) *AppError {
	return New(ErrConfig, msg, cause)
}

// IsType reports whether err (or anything it wraps) is an AppError of the
// given type.
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}

// Wrap converts an arbitrary error into an AppError, passing AppErrors
// through unchanged.
func Wrap(errType ErrorType, err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(errType, err.Error(), err)
}
