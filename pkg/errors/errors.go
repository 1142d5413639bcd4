package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

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

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrValidation
	ErrIdentityProvider
	ErrProfileStore
	ErrInvariantViolation
)

var codeNames = map[ErrorCode]string{
	ErrNotFound:           "not_found",
	ErrBadRequest:         "bad_request",
	ErrUnauthorized:       "unauthorized",
	ErrForbidden:          "forbidden",
	ErrInternal:           "internal",
	ErrValidation:         "validation",
	ErrIdentityProvider:   "identity_provider",
	ErrProfileStore:       "profile_store",
	ErrInvariantViolation: "invariant_violation",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code_%d", int(c))
}

// HTTPStatus maps an error code onto the status returned to API callers.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrBadRequest, ErrValidation:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

func NewUnauthorized(message string, err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: message,
		Err:     err,
	}
}

func NewForbidden(message string, err error) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
		Err:     err,
	}
}

// NewValidation reports missing or malformed input. No side effects have
// happened when this is returned.
func NewValidation(message string) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: message,
	}
}

func NewIdentityProvider(message string, err error) *AppError {
	return &AppError{
		Code:    ErrIdentityProvider,
		Message: message,
		Err:     err,
	}
}

func NewProfileStore(message string, err error) *AppError {
	return &AppError{
		Code:    ErrProfileStore,
		Message: message,
		Err:     err,
	}
}

// NewInvariantViolation reports a contract breach by an external collaborator.
func NewInvariantViolation(message string) *AppError {
	return &AppError{
		Code:    ErrInvariantViolation,
		Message: message,
	}
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the code of the first AppError in err's chain, or zero.
func CodeOf(err error) ErrorCode {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return 0
}

func Is(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
