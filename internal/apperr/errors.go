package apperr

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Client-correctable failures.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrBayInactive       = errors.New("bay is inactive")
	ErrSlotConflict      = errors.New("slot conflict")
	ErrNotScheduled      = errors.New("task is not scheduled")
	ErrAlreadyScheduled  = errors.New("task is already scheduled")
	ErrInvalidTransition = errors.New("invalid task status transition")
	ErrBayInUse          = errors.New("bay is referenced by active tasks")
	ErrDuplicate         = errors.New("already exists")
	ErrStaleVersion      = errors.New("task was modified concurrently")
)

// ErrIntegrityViolation is not user-correctable and must reach operators.
var ErrIntegrityViolation = errors.New("integrity violation")

// ValidationError describes malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid is shorthand for a *ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFound wraps ErrNotFound with the kind and id of the missing record.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

// ConflictError names the task whose window collides with a requested one.
type ConflictError struct {
	BayID  string
	TaskID string
	Start  time.Time
	End    time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: bay %s is booked by task %s from %s to %s",
		ErrSlotConflict, e.BayID, e.TaskID, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

func (e *ConflictError) Unwrap() error { return ErrSlotConflict }

// IntegrityError reports more than one task occupying a bay at the same time.
type IntegrityError struct {
	BayID   string
	TaskIDs []string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s: bay %s is occupied by tasks %s at once",
		ErrIntegrityViolation, e.BayID, strings.Join(e.TaskIDs, ", "))
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrityViolation }

// Code is a short machine-readable label for err, used in API bodies and metric labels.
func Code(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrBayInactive):
		return "bay_inactive"
	case errors.Is(err, ErrSlotConflict):
		return "slot_conflict"
	case errors.Is(err, ErrNotScheduled):
		return "not_scheduled"
	case errors.Is(err, ErrAlreadyScheduled):
		return "already_scheduled"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrBayInUse):
		return "bay_in_use"
	case errors.Is(err, ErrDuplicate):
		return "duplicate"
	case errors.Is(err, ErrStaleVersion):
		return "stale_version"
	case errors.Is(err, ErrIntegrityViolation):
		return "integrity_violation"
	}
	return "internal"
}
