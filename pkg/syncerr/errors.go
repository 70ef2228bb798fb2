// Package syncerr defines the error taxonomy shared by the platform
// synchronization engine. Callers classify failures with errors.Is/errors.As
// to choose between rejecting, retrying, and failing a sync operation.
package syncerr

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification with errors.Is
var (
	// ErrRateLimited marks an external "too many requests" response. The rate
	// limiter retries these with backoff before giving up.
	ErrRateLimited = errors.New("rate limited by external platform")

	// ErrTransient marks a network-level failure worth retrying
	ErrTransient = errors.New("transient network error")

	// ErrNotFound marks an external record that no longer exists
	ErrNotFound = errors.New("external record not found")
)

// SignatureError indicates an inbound webhook failed authenticity
// verification. The payload is rejected before any sync operation is created.
type SignatureError struct {
	Platform string
	Reason   string
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("invalid %s webhook signature: %s", e.Platform, e.Reason)
}

// ValidationError indicates a payload is malformed. The sync operation fails
// immediately with no retry.
type ValidationError struct {
	Platform string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s payload: %s", e.Platform, e.Reason)
}

// RateLimitExceededError indicates the backoff retry budget for a rate-limited
// call was exhausted. Reported to the sync operation tracker as a failure.
type RateLimitExceededError struct {
	Platform string
	Attempts int
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("%s rate limit still exceeded after %d attempts", e.Platform, e.Attempts)
}

func (e *RateLimitExceededError) Unwrap() error {
	return ErrRateLimited
}

// UnknownPlatformError indicates a platform name with no registered adapter.
// This is a configuration or programming error, never retried.
type UnknownPlatformError struct {
	Platform string
}

func (e *UnknownPlatformError) Error() string {
	return fmt.Sprintf("unknown platform '%s'", e.Platform)
}

// PersistenceError wraps a store failure. The current operation fails but any
// already-durable pending record survives for later reprocessing.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
