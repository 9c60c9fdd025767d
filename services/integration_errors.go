package services

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrSyncAlreadyRunning = errors.New("sync already running for entity type")
	ErrUnknownEntityType  = errors.New("unknown entity type")
	ErrInvalidSyncMode    = errors.New("invalid sync mode")
	ErrEventNotFound      = errors.New("webhook event not found")
	ErrEventNotReplayable = errors.New("webhook event is not replayable")
)

// ErrorKind classifies a remote API failure. Retry decisions are driven
// entirely by this classification.
type ErrorKind string

const (
	ErrKindUnauthorized ErrorKind = "unauthorized"
	ErrKindNotFound     ErrorKind = "not_found"
	ErrKindValidation   ErrorKind = "validation"
	ErrKindRateLimited  ErrorKind = "rate_limited"
	ErrKindServer       ErrorKind = "server"
	ErrKindNetwork      ErrorKind = "network"
)

// APIError is a classified failure of a remote API call.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	// FieldErrors carries field-level detail for validation failures.
	FieldErrors map[string]string
	// RetryAfter is the server-supplied reset hint on rate-limit responses.
	RetryAfter *time.Duration
	Err        error
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("remote api %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("remote api %s: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Retryable reports whether the failure may succeed on a later attempt.
func (e *APIError) Retryable() bool {
	if e == nil {
		return false
	}
	switch e.Kind {
	case ErrKindRateLimited, ErrKindServer, ErrKindNetwork:
		return true
	}
	return false
}

// MappingError signals structurally malformed remote input. It names the
// offending field and is never retried.
type MappingError struct {
	EntityType string
	Field      string
	Err        error
}

func (e *MappingError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("mapping %s: field %s: %v", e.EntityType, e.Field, e.Err)
	}
	return fmt.Sprintf("mapping %s: field %s is malformed", e.EntityType, e.Field)
}

func (e *MappingError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// isRetryable decides whether an error from a page fetch or a webhook handler
// is eligible for another attempt. Mapping and non-retryable API kinds stop
// immediately; anything else (database hiccups, plain network errors) is
// treated as transient.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var mapErr *MappingError
	if errors.As(err, &mapErr) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return true
}
