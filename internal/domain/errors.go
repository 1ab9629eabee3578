package domain

import (
	"errors"
	"fmt"
)

var (
	ErrItemNotFound       = errors.New("item not found")
	ErrAlreadyLiked       = errors.New("already liked")
	ErrAlreadyDisliked    = errors.New("already disliked")
	ErrSyncInProgress     = errors.New("sync already running")
	ErrInvalidCredential  = errors.New("invalid API key")
	ErrIdentityNotAllowed = errors.New("unauthorized user")
	ErrUpstream           = errors.New("upstream request failed")
)

// ValidationError reports malformed or missing input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// UpstreamError wraps a failure of the external item-data source.
type UpstreamError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	msg := e.Op
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUpstream
}

// Is lets errors.Is(err, ErrUpstream) match every UpstreamError.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}
