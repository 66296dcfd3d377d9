// errors.go
// Typed failure taxonomy for the sync engine. Every operation surfaces one
// of these (or a wrapped chain ending in one); nothing fails silently.

package models

import "fmt"

// ValidationError rejects an operation before any state is mutated, e.g. a
// blank checklist status or a missing transition reason.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NotFoundError reports a referenced remote document that does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// TransientIOError reports an unavailable remote store or local cache. The
// engine never retries internally; retry policy belongs to the caller.
type TransientIOError struct {
	Op  string
	Err error
}

func (e *TransientIOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientIOError) Unwrap() error { return e.Err }

// DecodeError reports a malformed cached or remote record. Report assembly
// degrades on it; a section load fails with it.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
