package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by lookups that match no account.
	ErrNotFound = errors.New("not found")
	// ErrFileUnreachable marks an upload whose file cannot be stat'ed or read.
	ErrFileUnreachable = errors.New("file unreachable")
	// ErrEmptyBatch marks an upload that produced no persisted account.
	ErrEmptyBatch = errors.New("no accounts created")
)

// ConflictError reports a candidate colliding with an existing account on a
// unique field. ExistingID is uuid.Nil when the storage layer rejected the
// insert without telling which row holds the value.
type ConflictError struct {
	Field      UniqueField
	Value      string
	ExistingID uuid.UUID
}

func (e *ConflictError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("account with %s %q already exists", e.Field, e.Value)
	}
	return fmt.Sprintf("account with the same %s already exists", e.Field)
}

// ValidationError reports malformed input that reached the repository.
type ValidationError struct {
	Fields  []string
	Message string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s: %s", strings.Join(e.Fields, ", "), e.Message)
	}
	return e.Message
}

// StructuralError reports a bus payload that is not a well-formed envelope.
type StructuralError struct {
	Reason string
	Err    error
}

func (e *StructuralError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid message format: %s: %v", e.Reason, e.Err)
	}
	return "invalid message format: " + e.Reason
}

func (e *StructuralError) Unwrap() error { return e.Err }

// PublishError wraps a failed notification publish.
type PublishError struct {
	SubjectID string
	Err       error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("failed to publish notification for %s: %v", e.SubjectID, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// IsConflict reports whether err is, or wraps, a ConflictError.
func IsConflict(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}
