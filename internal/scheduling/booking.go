package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-scheduling/internal/events"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/timeutil"
)

// maxAmount is the first value that no longer fits bookings.amount NUMERIC(12, 2).
var maxAmount = decimal.New(1, 10)

func validateBookingRequest(req BookingRequest) error {
	var errs ValidationErrors
	if err := ValidateStruct(req); err != nil {
		verrs, ok := err.(ValidationErrors)
		if !ok {
			return err
		}
		errs = append(errs, verrs...)
	}
	if req.ClinicID == uuid.Nil {
		errs = append(errs, invalid("clinic_id", "is required")...)
	}
	if req.Date.IsZero() {
		errs = append(errs, invalid("date", "is required")...)
	}
	switch {
	case req.Amount.IsNegative():
		errs = append(errs, invalid("amount", "must not be negative")...)
	case !req.Amount.Equal(req.Amount.Truncate(2)):
		errs = append(errs, invalid("amount", "must have at most 2 decimal places")...)
	case req.Amount.GreaterThanOrEqual(maxAmount):
		errs = append(errs, invalid("amount", "must be less than %s", maxAmount)...)
	}
	if req.DurationMinutes > 0 {
		errs = append(errs, validateSpan("start_time", req.StartTime, "duration_minutes", req.DurationMinutes)...)
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// CheckAndCreateBooking reserves the requested interval as a pending booking.
// The conflict check and the insert run under the provider's lock for the
// date and inside one ledger reservation, so two requests can never both
// occupy overlapping time.
func (s *Service) CheckAndCreateBooking(ctx context.Context, req BookingRequest) (*Booking, error) {
	if err := validateBookingRequest(req); err != nil {
		return nil, err
	}
	if err := s.requireProvider(ctx, req.ProviderID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	b := &Booking{
		ID:              uuid.New(),
		ClinicID:        req.ClinicID,
		ProviderID:      req.ProviderID,
		ServiceID:       req.ServiceID,
		Patient:         req.Patient,
		Date:            timeutil.DateOf(req.Date),
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		Amount:          req.Amount,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	proposed := b.Interval()

	err := s.withProviderLock(ctx, b.ProviderID, b.Date, func(lockCtx context.Context) error {
		windows, err := s.dayWindows(lockCtx, b.ProviderID, b.Date)
		if err != nil {
			return err
		}
		return s.stores.Bookings.Reserve(lockCtx, b, func(occupying []Booking) error {
			return decide(windows, occupying, proposed, nil).Err()
		})
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info().
		Str("booking_id", b.ID.String()).
		Str("provider_id", b.ProviderID.String()).
		Str("date", timeutil.FormatDate(b.Date)).
		Stringer("start_time", b.StartTime).
		Int("duration_minutes", b.DurationMinutes).
		Msg("booking created")

	s.logEvent(ctx, b, events.TypeBookingCreated, map[string]any{
		"clinic_id":        b.ClinicID.String(),
		"date":             timeutil.FormatDate(b.Date),
		"start_time":       b.StartTime.String(),
		"duration_minutes": b.DurationMinutes,
		"status":           b.Status,
	})

	return b, nil
}

func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.stores.Bookings.GetBooking(ctx, id)
}

// Reschedule moves an active booking to a new date and time. The booking is
// excluded from its own conflict check.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, date time.Time, start timeutil.TimeOfDay, durationMinutes int) (*Booking, error) {
	errs := validateSpan("start_time", start, "duration_minutes", durationMinutes)
	if date.IsZero() {
		errs = append(errs, invalid("date", "is required")...)
	}
	if len(errs) > 0 {
		return nil, errs
	}

	current, err := s.stores.Bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.Active() {
		return nil, ErrBookingNotActive
	}
	if err := s.requireProvider(ctx, current.ProviderID); err != nil {
		return nil, err
	}

	date = timeutil.DateOf(date)
	proposed := timeutil.Span(start, durationMinutes)

	var moved *Booking
	err = s.withProviderLock(ctx, current.ProviderID, date, func(lockCtx context.Context) error {
		windows, err := s.dayWindows(lockCtx, current.ProviderID, date)
		if err != nil {
			return err
		}
		moved, err = s.stores.Bookings.Move(lockCtx, id, date, start, durationMinutes, func(cur Booking, occupying []Booking) error {
			if !cur.Status.Active() {
				return ErrBookingNotActive
			}
			return decide(windows, occupying, proposed, &id).Err()
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, moved, events.TypeBookingRescheduled, map[string]any{
		"from_date":             timeutil.FormatDate(current.Date),
		"from_start_time":       current.StartTime.String(),
		"from_duration_minutes": current.DurationMinutes,
		"date":                  timeutil.FormatDate(moved.Date),
		"start_time":            moved.StartTime.String(),
		"duration_minutes":      moved.DurationMinutes,
	})

	return moved, nil
}

// bookingEnd is the instant a booking ends in the clinic's wall clock.
func (s *Service) bookingEnd(b Booking) time.Time {
	return timeutil.At(b.Date, b.Interval().End, s.cfg.ClinicLocation)
}
