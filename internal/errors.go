package internal

import (
	"errors"
	"net/http"
)

// HTTPError is an error with a status code and a message safe to show to
// API clients. The error handler renders it; Err is only logged.
type HTTPError struct {
	Err       error
	Message   string
	Detail    string
	ErrorCode string
	RequestID string
	Code      int
}

func (e *HTTPError) Error() string { return e.Message }
func (e *HTTPError) Unwrap() error { return e.Err }

// HTTPErrorOption configures an HTTPError.
type HTTPErrorOption func(*HTTPError)

func NewHTTPError(code int, message string, opts ...HTTPErrorOption) *HTTPError {
	e := &HTTPError{Code: code, Message: message}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithError attaches the cause for logs.
func WithError(err error) HTTPErrorOption {
	return func(e *HTTPError) { e.Err = err }
}

func WithDetail(detail string) HTTPErrorOption {
	return func(e *HTTPError) { e.Detail = detail }
}

// WithErrorCode sets a stable machine-readable code, e.g. "invalid_signature".
func WithErrorCode(code string) HTTPErrorOption {
	return func(e *HTTPError) { e.ErrorCode = code }
}

func WithRequestID(id string) HTTPErrorOption {
	return func(e *HTTPError) { e.RequestID = id }
}

func statusError(code int) func(string, ...HTTPErrorOption) *HTTPError {
	return func(message string, opts ...HTTPErrorOption) *HTTPError {
		return NewHTTPError(code, message, opts...)
	}
}

var (
	ErrBadRequest         = statusError(http.StatusBadRequest)
	ErrUnauthorized       = statusError(http.StatusUnauthorized)
	ErrForbidden          = statusError(http.StatusForbidden)
	ErrNotFound           = statusError(http.StatusNotFound)
	ErrConflict           = statusError(http.StatusConflict)
	ErrUnprocessable      = statusError(http.StatusUnprocessableEntity)
	ErrTooManyRequests    = statusError(http.StatusTooManyRequests)
	ErrInternal           = statusError(http.StatusInternalServerError)
	ErrServiceUnavailable = statusError(http.StatusServiceUnavailable)
)

// IsHTTPError reports whether err wraps an *HTTPError.
func IsHTTPError(err error) bool {
	return AsHTTPError(err) != nil
}

// AsHTTPError returns the *HTTPError wrapped by err, or nil.
func AsHTTPError(err error) *HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return nil
}
