package scheduling

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/timeutil"
)

func noSlots(func(timeutil.TimeOfDay) bool) {}

// ListFreeSlots returns the bookable slot starts of a provider on date in
// ascending order. A granularity of zero uses the configured default. Closed
// days and inactive providers yield an empty sequence.
//
// The data is read once; the sequence is advisory and bookings made after the
// read are not reflected in it.
func (s *Service) ListFreeSlots(ctx context.Context, providerID uuid.UUID, date time.Time, granularity int) (iter.Seq[timeutil.TimeOfDay], error) {
	if granularity == 0 {
		granularity = s.cfg.SlotGranularity
	}
	if err := validateGranularity(granularity); err != nil {
		return nil, err
	}
	if date.IsZero() {
		return nil, invalid("date", "is required")
	}

	if err := s.requireProvider(ctx, providerID); err != nil {
		if errors.Is(err, ErrProviderInactive) {
			return noSlots, nil
		}
		return nil, err
	}

	date = timeutil.DateOf(date)
	windows, err := s.dayWindows(ctx, providerID, date)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return noSlots, nil
	}

	occupying, err := s.stores.Bookings.ListOccupying(ctx, providerID, date)
	if err != nil {
		return nil, fmt.Errorf("list occupying bookings: %w", err)
	}

	return freeSlots(windows, occupying, granularity), nil
}

// WouldConflict decides whether a booking of durationMinutes at start on date
// could be made right now. exclude names a booking to ignore, the one being
// moved. Inactive providers have no availability.
func (s *Service) WouldConflict(ctx context.Context, providerID uuid.UUID, date time.Time, start timeutil.TimeOfDay, durationMinutes int, exclude *uuid.UUID) (Decision, error) {
	errs := validateSpan("start_time", start, "duration_minutes", durationMinutes)
	if date.IsZero() {
		errs = append(errs, invalid("date", "is required")...)
	}
	if len(errs) > 0 {
		return Decision{}, errs
	}

	if err := s.requireProvider(ctx, providerID); err != nil {
		if errors.Is(err, ErrProviderInactive) {
			return Decision{Kind: ConflictOutsideAvailability}, nil
		}
		return Decision{}, err
	}

	date = timeutil.DateOf(date)
	windows, err := s.dayWindows(ctx, providerID, date)
	if err != nil {
		return Decision{}, err
	}
	occupying, err := s.stores.Bookings.ListOccupying(ctx, providerID, date)
	if err != nil {
		return Decision{}, fmt.Errorf("list occupying bookings: %w", err)
	}

	return decide(windows, occupying, timeutil.Span(start, durationMinutes), exclude), nil
}
