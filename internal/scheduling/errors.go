package scheduling

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/timeutil"
)

var (
	ErrProviderNotFound      = errors.New("provider not found")
	ErrProviderInactive      = errors.New("provider is inactive")
	ErrBookingNotFound       = errors.New("booking not found")
	ErrScheduleEntryNotFound = errors.New("schedule entry not found")
	ErrOverrideNotFound      = errors.New("availability override not found")

	ErrValidation          = errors.New("validation failed")
	ErrOverlap             = errors.New("entry overlaps an existing entry")
	ErrTimeConflict        = errors.New("time conflicts with an existing booking")
	ErrOutsideAvailability = errors.New("time is outside provider availability")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrBookingNotActive    = errors.New("booking is no longer active")
	ErrProviderBusy        = errors.New("provider schedule is being booked, please retry")
)

// errStatusChanged is returned by ledgers when a compare-and-set update finds
// a different current status than expected.
var errStatusChanged = errors.New("status changed concurrently")

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Field+": "+e.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (v ValidationErrors) Is(target error) bool { return target == ErrValidation }

func invalid(field, format string, args ...any) ValidationErrors {
	return ValidationErrors{{Field: field, Message: fmt.Sprintf(format, args...)}}
}

type ConflictKind string

const (
	ConflictNone                ConflictKind = "none"
	ConflictTime                ConflictKind = "time_conflict"
	ConflictOutsideAvailability ConflictKind = "outside_availability"
)

// ConflictError rejects a booking request. BookingID names the clashing
// booking for time conflicts when the ledger knows it.
type ConflictError struct {
	Kind      ConflictKind
	BookingID *uuid.UUID
}

func (e *ConflictError) Error() string {
	if e.Kind == ConflictOutsideAvailability {
		return ErrOutsideAvailability.Error()
	}
	if e.BookingID != nil {
		return fmt.Sprintf("%s (booking %s)", ErrTimeConflict, e.BookingID)
	}
	return ErrTimeConflict.Error()
}

func (e *ConflictError) Is(target error) bool {
	switch e.Kind {
	case ConflictTime:
		return target == ErrTimeConflict
	case ConflictOutsideAvailability:
		return target == ErrOutsideAvailability
	}
	return false
}

type TransitionError struct {
	Field string
	From  string
	To    string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition from %q to %q", e.Field, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// OverlapError names the stored entry a rejected write collides with.
type OverlapError struct {
	ExistingID uuid.UUID
	Existing   timeutil.Interval
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("%s %s (%s)", ErrOverlap, e.Existing, e.ExistingID)
}

func (e *OverlapError) Is(target error) bool { return target == ErrOverlap }
