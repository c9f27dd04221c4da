package app

import (
	"fmt"
	"net/http"
)

// DomainError is a business-rule failure that already knows how it should be
// reported: the HTTP status, a stable machine-readable code, and a message
// safe to show to the caller. Anything else that bubbles up is treated as an
// internal error by mapError.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return e.Code + ": " + e.Message
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{Status: status, Code: code, Message: message, Details: details}
}

// validationError is the common 400 VALIDATION_ERROR case.
func validationError(message string, details any) *DomainError {
	return domainError(http.StatusBadRequest, "VALIDATION_ERROR", message, details)
}

// validationErrorf is validationError with a formatted message.
func validationErrorf(format string, args ...any) *DomainError {
	return validationError(fmt.Sprintf(format, args...), nil)
}
