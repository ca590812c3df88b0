package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks malformed or missing input. It is fatal to the current request.
	ErrValidation = errors.New("domain: validation failed")
	// ErrNotFound is returned when a stored record does not exist.
	ErrNotFound = errors.New("domain: not found")
	// ErrSeedNotFound is returned when the catalog has no track for a seed query.
	ErrSeedNotFound = errors.New("domain: seed track not found")
	// ErrTransport marks a failed call to an external collaborator.
	ErrTransport = errors.New("domain: transport failure")
	// ErrPersistence marks a history storage failure.
	ErrPersistence = errors.New("domain: persistence failure")
	// ErrMissingCredentials means a collaborator was not configured with its credentials.
	ErrMissingCredentials = errors.New("domain: missing credentials")
)

// ValidationError describes an input that could not be accepted.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("validation error")
	if e.Field != "" {
		fmt.Fprintf(&b, ": %s", e.Field)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ValidationError) Unwrap() error { return e.Err }

// MissingFieldError lists required feature fields absent from a language-model payload.
type MissingFieldError struct {
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Fields, ", "))
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrValidation }

// InvalidFieldError reports a field whose value cannot be coerced to the expected type.
type InvalidFieldError struct {
	Field string
	Value any
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid value for %s: %v", e.Field, e.Value)
}

func (e *InvalidFieldError) Is(target error) bool { return target == ErrValidation }

// TransportError wraps a failed collaborator call (catalog or language model).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

func (e *TransportError) Unwrap() error { return e.Err }

// PersistenceError wraps a history store I/O failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func (e *PersistenceError) Unwrap() error { return e.Err }
