// Package errors defines the error values rendered in API responses.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is an error with a stable client facing code and HTTP status.
// Internal carries the cause for logs and never reaches the client.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.Internal != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	default:
		return e.Message
	}
}

// Unwrap exposes the internal error to errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is matches any AppError carrying the same code, so a copy made by
// WithInternal or WithMessage still matches its catalog entry.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if e == nil || !errors.As(target, &other) || other == nil {
		return false
	}
	return e.Code == other.Code
}

// WithInternal returns a copy of e carrying err as its cause.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}
	cpy := *e
	cpy.Internal = err
	return &cpy
}

// WithMessage returns a copy of e with a different client message.
func (e *AppError) WithMessage(message string) *AppError {
	if e == nil {
		return nil
	}
	cpy := *e
	cpy.Message = message
	return &cpy
}

// New builds an application error.
func New(code, message string, statusCode int) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: statusCode}
}

var (
	ErrBadRequest       = New("BAD_REQUEST", "Invalid request", http.StatusBadRequest)
	ErrUnauthorized     = New("UNAUTHORIZED", "Authentication required", http.StatusUnauthorized)
	ErrForbidden        = New("FORBIDDEN", "Insufficient scope", http.StatusForbidden)
	ErrNotFound         = New("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrMethodNotAllowed = New("METHOD_NOT_ALLOWED", "Method not allowed", http.StatusMethodNotAllowed)
	ErrRateLimit        = New("RATE_LIMIT_EXCEEDED", "Too many requests, please slow down", http.StatusTooManyRequests)
	ErrInternalServer   = New("INTERNAL_SERVER_ERROR", "Something went wrong", http.StatusInternalServerError)
	ErrStoreUnavailable = New("STORE_UNAVAILABLE", "Cache store is unavailable", http.StatusServiceUnavailable)
)

// FromError returns the AppError inside err, or ErrInternalServer wrapping it.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServer.WithInternal(err)
}

// NewBadRequest returns ErrBadRequest with message.
func NewBadRequest(message string) *AppError {
	return ErrBadRequest.WithMessage(message)
}
