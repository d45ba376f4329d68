package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// Error codes, grouped by the pipeline's failure taxonomy: transient
// failures are retried, data-quality failures skip the item, policy
// rejections are expected control flow.
const (
	ErrTransient ErrorCode = iota + 1000
	ErrDataQuality
	ErrPolicyRejected
	ErrNotFound
	ErrBadRequest
	ErrInternal
)

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Error constructors
func Transient(message string, err error) *AppError {
	return &AppError{Code: ErrTransient, Message: message, Err: err}
}

func DataQuality(message string, err error) *AppError {
	return &AppError{Code: ErrDataQuality, Message: message, Err: err}
}

func PolicyRejected(message string) *AppError {
	return &AppError{Code: ErrPolicyRejected, Message: message}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{Code: ErrBadRequest, Message: message, Err: err}
}

func Internal(err error) *AppError {
	return &AppError{Code: ErrInternal, Message: "internal error", Err: err}
}

// IsTransient reports whether err carries the transient code anywhere in
// its chain.
func IsTransient(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrTransient
}
