package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies a failure observed while talking to the remote API
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeConnection  ErrorType = "connection"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeRedirect    ErrorType = "redirect"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeCanceled    ErrorType = "canceled"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents an API error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error (code %d): %s: %v", e.Type, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(t ErrorType, code int, format string, args ...interface{}) *Error {
	return &Error{Type: t, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a typed error around a cause
func Wrap(t ErrorType, code int, err error, msg string) *Error {
	return &Error{Type: t, Code: code, Message: msg, Err: err}
}

// TypeOf returns the type of the first *Error in err's chain, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether err carries the given error type
func Is(err error, t ErrorType) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Type == t
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeConnection, ErrorTypeRateLimit,
		ErrorTypeServerError, ErrorTypeRedirect:
		return true
	case ErrorTypeAuth, ErrorTypeNotFound, ErrorTypeParsing, ErrorTypeCanceled:
		return false
	default:
		return false
	}
}

// ClassifyStatus maps a non-200 HTTP status onto an error type
func ClassifyStatus(statusCode int) ErrorType {
	switch {
	case statusCode >= 300 && statusCode < 400:
		return ErrorTypeRedirect
	case statusCode == 400:
		// the API reports exhausted quota with a plain 400
		return ErrorTypeRateLimit
	case statusCode == 401:
		return ErrorTypeAuth
	case statusCode == 404:
		return ErrorTypeNotFound
	default:
		return ErrorTypeServerError
	}
}
