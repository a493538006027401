// Package common defines shared constants and sentinel errors used across
// client and server layers of daybook. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// ErrValidation rejects input synchronously (content too long, mutation
	// of a non-draft entry). Nothing is applied.
	ErrValidation = errors.New("validation error")

	// ErrInvalidState is returned when an operation does not fit the
	// current lifecycle state (double submission, draft for a closed day).
	// Local state is left unchanged.
	ErrInvalidState = errors.New("invalid state")

	// ErrVersionConflict is returned by the remote store when a push would
	// overwrite a strictly newer document.
	ErrVersionConflict = errors.New("version conflict")

	// ErrTransport wraps network and remote store failures. These are
	// retried and never surface as data loss.
	ErrTransport = errors.New("transport error")

	// ErrSchedulerFailed marks a deadline transition that failed and will
	// not be retried automatically.
	ErrSchedulerFailed = errors.New("deadline scheduler failed")

	// Auth errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrUnauthorized = errors.New("unauthorized")
)
