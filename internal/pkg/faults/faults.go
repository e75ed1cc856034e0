package faults

import (
	"errors"

	"go.temporal.io/sdk/temporal"
)

// Error types shared between activities and the project workflow. The
// workflow never looks past the type string and the retryable bit; these
// names also feed the per-activity NonRetryableErrorTypes lists so the
// Temporal server stops retrying permanent failures on its own.
const (
	TypeValidation        = "ValidationError"
	TypeTransientProvider = "TransientProviderError"
	TypePermanentProvider = "PermanentProviderError"
	TypeCorruptSession    = "CorruptSessionError"
)

// Validation marks malformed caller input. The offending intent is dropped,
// never requeued.
func Validation(msg string, cause error) error {
	return temporal.NewNonRetryableApplicationError(msg, TypeValidation, cause)
}

// Transient marks rate limiting, upstream 5xx and timeouts. Safe to retry
// with the same input.
func Transient(msg string, cause error) error {
	return temporal.NewApplicationError(msg, TypeTransientProvider, cause)
}

// Permanent marks policy rejections and bad requests. Surfaced as a
// recoverable error state, but the same payload must not be replayed blindly.
func Permanent(msg string, cause error) error {
	return temporal.NewNonRetryableApplicationError(msg, TypePermanentProvider, cause)
}

// CorruptSession marks an unreadable persisted conversation record. Retrying
// against the same record can never succeed.
func CorruptSession(msg string, cause error) error {
	return temporal.NewNonRetryableApplicationError(msg, TypeCorruptSession, cause)
}

// Classification is the only view of an activity failure the workflow acts on.
type Classification struct {
	Kind      string
	Message   string
	Retryable bool
}

// Classify extracts the taxonomy from an activity error. ok is false for
// anything outside the declared types; those errors are allowed to propagate
// and fail the workflow so unexpected bugs stay visible.
func Classify(err error) (Classification, bool) {
	if err == nil {
		return Classification{}, false
	}

	var timeoutErr *temporal.TimeoutError
	if errors.As(err, &timeoutErr) {
		return Classification{
			Kind:      TypeTransientProvider,
			Message:   "operation timed out",
			Retryable: true,
		}, true
	}

	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) {
		return Classification{}, false
	}
	switch appErr.Type() {
	case TypeValidation, TypeTransientProvider, TypePermanentProvider, TypeCorruptSession:
		return Classification{
			Kind:      appErr.Type(),
			Message:   appErr.Message(),
			Retryable: !appErr.NonRetryable(),
		}, true
	default:
		return Classification{}, false
	}
}
