package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrTaskNotFound is returned when a task ID does not exist in storage.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidState is returned when a task's status disallows the
	// requested transition, e.g. executing a DISABLED task.
	ErrInvalidState = errors.New("invalid task state")

	// ErrCredential is returned when remote credentials are missing or
	// rejected. Credential failures are never retried; the user has to
	// re-authenticate first.
	ErrCredential = errors.New("credential error")

	// ErrStorage is returned when the underlying key-value store fails to
	// persist or load the task aggregate.
	ErrStorage = errors.New("storage error")

	// ErrValidation is returned when a domain entity fails validation.
	ErrValidation = errors.New("validation failed")
)

// IsCredentialError reports whether err is a credential-class failure.
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrCredential)
}
