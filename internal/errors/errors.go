package errors

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
)

// Common error classes used across the application.
var (
	ErrNotFound         = new(ErrCodeNotFound, "resource not found")
	ErrValidation       = new(ErrCodeValidation, "validation error")
	ErrInvalidOperation = new(ErrCodeInvalidOperation, "invalid operation")
	ErrConflict         = new(ErrCodeConflict, "conflict")
	ErrPermissionDenied = new(ErrCodePermissionDenied, "permission denied")
	ErrDatabase         = new(ErrCodeDatabase, "database error")
	ErrSystem           = new(ErrCodeSystemError, "system error")

	// maps error classes to http status codes; first match wins, so client
	// classes are checked before server ones
	statusCodes = []struct {
		class  error
		status int
	}{
		{ErrNotFound, http.StatusNotFound},
		{ErrValidation, http.StatusBadRequest},
		{ErrInvalidOperation, http.StatusUnprocessableEntity},
		{ErrConflict, http.StatusConflict},
		{ErrPermissionDenied, http.StatusForbidden},
		{ErrDatabase, http.StatusInternalServerError},
		{ErrSystem, http.StatusInternalServerError},
	}
)

const (
	ErrCodeSystemError      = "system_error"
	ErrCodeNotFound         = "not_found"
	ErrCodeValidation       = "validation_error"
	ErrCodeInvalidOperation = "invalid_operation"
	ErrCodeConflict         = "conflict"
	ErrCodePermissionDenied = "permission_denied"
	ErrCodeDatabase         = "database_error"
)

// InternalError is an error class. Concrete errors are marked with one of the
// class values above so that errors.Is can classify them.
type InternalError struct {
	Code    string // Machine-readable error code
	Message string // Human-readable error message
	Err     error  // Underlying error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.DisplayError()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) DisplayError() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is implements error matching for wrapped errors
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}

	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}

	return e.Code == t.Code
}

func new(code string, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
	}
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidOperation checks if an error is an invalid operation error
func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// HTTPStatusFromErr maps an error to the status code of its class.
func HTTPStatusFromErr(err error) int {
	for _, sc := range statusCodes {
		if errors.Is(err, sc.class) {
			return sc.status
		}
	}
	return http.StatusInternalServerError
}

// Hint returns the user facing hints attached to err, joined by "; ".
// Falls back to the class message when no hint was attached.
func Hint(err error) string {
	hints := errors.GetAllHints(err)
	if len(hints) > 0 {
		return strings.Join(hints, "; ")
	}
	for _, sc := range statusCodes {
		if errors.Is(err, sc.class) {
			return sc.class.(*InternalError).Message
		}
	}
	return "internal server error"
}
