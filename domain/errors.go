package domain

import (
	"errors"
	"fmt"
)

// ErrTransactionFinal is returned when a step or status change is attempted on
// a transaction that has already committed or rolled back.
var ErrTransactionFinal = errors.New("transaction already finalized")

// ValidationError marks a malformed request or event. It is rejected outright
// and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// MissingMappingError marks a propagation whose prerequisite mapping does not
// exist. It signals an ordering defect upstream, not transient unavailability,
// so it is surfaced immediately and never retried.
type MissingMappingError struct {
	EntityType   EntityType
	SourceID     string
	SourceSystem System
}

func (e *MissingMappingError) Error() string {
	return fmt.Sprintf("no mapping for %s %s in %s", e.EntityType, e.SourceID, e.SourceSystem)
}

// TransientExternalError marks a network, timeout, or server failure from a
// collaborator. It is the only error kind the dispatcher retries.
type TransientExternalError struct {
	System System
	Op     string
	Err    error
}

func (e *TransientExternalError) Error() string {
	return fmt.Sprintf("%s %s: transient failure: %v", e.System, e.Op, e.Err)
}

func (e *TransientExternalError) Unwrap() error { return e.Err }

// PermanentExternalError marks a non-retriable client error from a
// collaborator. The transaction is rolled back and the error surfaced.
type PermanentExternalError struct {
	System System
	Op     string
	Status int
	Err    error
}

func (e *PermanentExternalError) Error() string {
	return fmt.Sprintf("%s %s: permanent failure (status %d): %v", e.System, e.Op, e.Status, e.Err)
}

func (e *PermanentExternalError) Unwrap() error { return e.Err }

// PersistenceError marks a local store write failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure in %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsTransient reports whether err should be retried by the dispatcher.
func IsTransient(err error) bool {
	var transient *TransientExternalError
	return errors.As(err, &transient)
}

// IsMissingMapping reports whether err is a missing prerequisite mapping.
func IsMissingMapping(err error) bool {
	var missing *MissingMappingError
	return errors.As(err, &missing)
}
