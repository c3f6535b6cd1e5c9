package models

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input rejected before hashing.
	ErrValidation = errors.New("validation failed")

	// ErrTimestampRegression is returned when a draft is older than the ledger tail.
	ErrTimestampRegression = errors.New("timestamp precedes ledger tail")

	// ErrTailChanged is returned when the tail moved between read and append.
	// The caller retries against the new tail.
	ErrTailChanged = errors.New("ledger tail changed concurrently")

	ErrEntryNotFound  = errors.New("entry not found")
	ErrLedgerNotFound = errors.New("ledger not found")
	ErrEntryDeleted   = errors.New("entry is deleted")
	ErrDuplicateEntry = errors.New("entry id already exists in ledger")

	// ErrIntegrityViolation is returned when an edit would rehash over a
	// chain that already fails verification.
	ErrIntegrityViolation = errors.New("ledger fails verification")
)

// ValidationError describes one rejected field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
