package store

import (
	"fmt"

	"github.com/markvault/markvault/internal/domain"
)

// StorageError wraps a persistence failure with the operation that caused
// it. It unwraps to domain.ErrStorage so callers can classify it.
type StorageError struct {
	Operation string
	Err       error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying persistence failure.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, domain.ErrStorage) match any StorageError.
func (e *StorageError) Is(target error) bool {
	return target == domain.ErrStorage
}

func newStorageError(operation string, err error) *StorageError {
	return &StorageError{Operation: operation, Err: err}
}
