package services

import (
	"errors"
	"fmt"
)

// ErrAlreadyFinalized is returned when a completion or failure transition
// finds the evaluation record no longer in the processing state. The guard
// makes the grading result apply at most once per record.
var ErrAlreadyFinalized = errors.New("evaluation record already finalized")

// InputError marks a request rejected before any external service is
// contacted: unsupported file type, empty answer key, empty OCR text.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

// NewInputError creates an InputError with the given user-facing message
func NewInputError(format string, args ...interface{}) *InputError {
	return &InputError{Message: fmt.Sprintf(format, args...)}
}

// StorageError marks a failed object-storage or database operation in the
// evaluation pipeline.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
