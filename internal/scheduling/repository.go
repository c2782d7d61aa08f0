package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/timeutil"
)

// ProviderDirectory is the read-only view of the external provider directory.
type ProviderDirectory interface {
	ProviderExists(ctx context.Context, id uuid.UUID) (bool, error)
	ProviderIsActive(ctx context.Context, id uuid.UUID) (bool, error)
}

// ScheduleStore holds recurring weekly templates. Lists are ordered by day
// then start time.
type ScheduleStore interface {
	ListWeeklyEntries(ctx context.Context, providerID uuid.UUID) ([]WeeklyScheduleEntry, error)
	ListWeeklyEntriesForDay(ctx context.Context, providerID uuid.UUID, day time.Weekday) ([]WeeklyScheduleEntry, error)
	// ReplaceWeeklyEntries swaps the whole template in one unit.
	ReplaceWeeklyEntries(ctx context.Context, providerID uuid.UUID, entries []WeeklyScheduleEntry) error
	// InsertWeeklyEntry calls verify with the entries already stored for the
	// same day and inserts only when it returns nil, atomically.
	InsertWeeklyEntry(ctx context.Context, e *WeeklyScheduleEntry, verify func(existing []WeeklyScheduleEntry) error) error
	DeleteWeeklyEntry(ctx context.Context, providerID, id uuid.UUID) error
}

// OverrideStore holds date-specific exceptions, ordered by start time with
// all-day overrides first.
type OverrideStore interface {
	ListOverrides(ctx context.Context, providerID uuid.UUID, date time.Time) ([]AvailabilityOverride, error)
	InsertOverride(ctx context.Context, o *AvailabilityOverride, verify func(existing []AvailabilityOverride) error) error
	DeleteOverride(ctx context.Context, providerID, id uuid.UUID) error
}

// BookingLedger is the authoritative set of bookings.
//
// Reserve and Move are the only ways a booking gains occupied time. Each runs
// verify against the occupying bookings of the target (provider, date) and
// commits only when verify returns nil; no other Reserve or Move for the same
// provider and date may interleave between the read and the write.
type BookingLedger interface {
	GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error)
	// ListOccupying returns pending, confirmed and completed bookings ordered by start.
	ListOccupying(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Booking, error)
	Reserve(ctx context.Context, b *Booking, verify func(occupying []Booking) error) error
	Move(ctx context.Context, id uuid.UUID, date time.Time, start timeutil.TimeOfDay, durationMinutes int,
		verify func(current Booking, occupying []Booking) error) (*Booking, error)
	// UpdateStatus and UpdatePaymentStatus are compare-and-set on the current value.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to BookingStatus) (*Booking, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, from, to PaymentStatus) (*Booking, error)
	// ListActiveUntil returns pending and confirmed bookings dated on or before date.
	ListActiveUntil(ctx context.Context, date time.Time) ([]Booking, error)
	InsertEvent(ctx context.Context, ev EventLog) error
}

// Stores groups the collaborators the service reads and writes.
type Stores struct {
	Providers ProviderDirectory
	Schedules ScheduleStore
	Overrides OverrideStore
	Bookings  BookingLedger
}
