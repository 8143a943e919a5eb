package service

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine's domain failures. Callers branch with
// errors.Is; the typed wrappers below carry the record id in the message.
// Store/transport failures are returned as-is, wrapped, and match none of
// these.
var (
	ErrNotFound        = errors.New("document not found")
	ErrMissingRevision = errors.New("missing revision id")
	ErrConflict        = errors.New("revision conflict")
	ErrInvalidArgument = errors.New("invalid argument")
)

type NotFoundError struct {
	ID any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no record found for id '%v'", e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// MissingRevisionError reports an update payload that did not echo the
// revision it was based on.
type MissingRevisionError struct {
	ID any
}

func (e *MissingRevisionError) Error() string {
	return fmt.Sprintf("record '%v': the current revision id must be provided as 'revision.id'", e.ID)
}

func (e *MissingRevisionError) Is(target error) bool { return target == ErrMissingRevision }

// ConflictError reports a stale revision, whether caught by the fast
// comparison or by the conditional write modifying nothing.
type ConflictError struct {
	ID any
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("record '%v' has been updated by another writer. Fetch the current revision and try again", e.ID)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

type InvalidArgumentError struct {
	Reason string
}

func (e *InvalidArgumentError) Error() string { return e.Reason }

func (e *InvalidArgumentError) Is(target error) bool { return target == ErrInvalidArgument }
