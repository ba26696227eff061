package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrAuthRejected = errors.New("authentication rejected")
	ErrResolution   = errors.New("profile resolution failed")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrUnavailable  = errors.New("service unavailable")
	ErrDecode       = errors.New("malformed response")
)

type AppError struct {
	Err     error  // sentinel error for errors.Is checks
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// AuthRejected indicates the identity provider refused the credentials.
// The login screen surfaces this as a modal; there is no automated retry.
func AuthRejected(message string) *AppError {
	return &AppError{
		Err:     ErrAuthRejected,
		Message: message,
	}
}

// ResolutionFailed indicates a signed-in principal could not be turned
// into a usable user context (network failure, absent profile, missing
// nickname). The flow must not proceed as an anonymous user.
func ResolutionFailed(authID, reason string) *AppError {
	return &AppError{
		Err:     ErrResolution,
		Message: fmt.Sprintf("could not resolve profile for %s: %s", authID, reason),
	}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Unavailable wraps a transport-level failure (connection refused,
// unexpected status) from one of the remote collaborators.
func Unavailable(operation string, err error) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: fmt.Sprintf("%s: %v", operation, err),
	}
}

// DecodeFailed indicates a response body did not match its typed
// contract. Responses are decoded strictly so shape drift fails fast
// instead of propagating half-filled structs through the app.
func DecodeFailed(operation, reason string) *AppError {
	return &AppError{
		Err:     ErrDecode,
		Message: fmt.Sprintf("%s: %s", operation, reason),
	}
}
