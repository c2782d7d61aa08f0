package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/events"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/timeutil"
)

// casAttempts bounds how often a status update is retried after losing a
// compare-and-set race.
const casAttempts = 3

// Transition moves a booking to target. Leaving pending/confirmed for
// cancelled or no_show releases the interval immediately.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, target BookingStatus) (*Booking, error) {
	if _, ok := bookingTransitions[target]; !ok {
		return nil, invalid("status", "unknown booking status %q", target)
	}

	var last *Booking
	for range casAttempts {
		b, err := s.stores.Bookings.GetBooking(ctx, id)
		if err != nil {
			return nil, err
		}
		last = b

		if !CanTransition(b.Status, target) {
			return nil, &TransitionError{Field: "status", From: string(b.Status), To: string(target)}
		}

		updated, err := s.stores.Bookings.UpdateStatus(ctx, id, b.Status, target)
		if errors.Is(err, errStatusChanged) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("update booking status: %w", err)
		}

		logging.FromContext(ctx).Info().
			Str("booking_id", id.String()).
			Str("from", string(b.Status)).
			Str("to", string(target)).
			Msg("booking status changed")

		s.logEvent(ctx, updated, events.TypeBookingStatusChanged, map[string]any{
			"from": b.Status,
			"to":   target,
		})
		return updated, nil
	}

	return nil, &TransitionError{Field: "status", From: string(last.Status), To: string(target)}
}

func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.Transition(ctx, id, StatusConfirmed)
}

// Complete is called by the consultation workflow once the visit is done.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.Transition(ctx, id, StatusCompleted)
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.Transition(ctx, id, StatusCancelled)
}

func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.Transition(ctx, id, StatusNoShow)
}

// OnPaymentStatusChanged mirrors a payment event onto the booking. Delivering
// the current status again is a no-op. The booking status is never touched.
func (s *Service) OnPaymentStatusChanged(ctx context.Context, id uuid.UUID, status PaymentStatus) (*Booking, error) {
	if _, ok := paymentTransitions[status]; !ok {
		return nil, invalid("payment_status", "unknown payment status %q", status)
	}

	var last *Booking
	for range casAttempts {
		b, err := s.stores.Bookings.GetBooking(ctx, id)
		if err != nil {
			return nil, err
		}
		last = b

		if b.PaymentStatus == status {
			return b, nil
		}
		if !CanChangePayment(b.PaymentStatus, status) {
			return nil, &TransitionError{Field: "payment_status", From: string(b.PaymentStatus), To: string(status)}
		}

		updated, err := s.stores.Bookings.UpdatePaymentStatus(ctx, id, b.PaymentStatus, status)
		if errors.Is(err, errStatusChanged) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("update payment status: %w", err)
		}

		s.logEvent(ctx, updated, events.TypePaymentStatusChanged, map[string]any{
			"from": b.PaymentStatus,
			"to":   status,
		})
		return updated, nil
	}

	return nil, &TransitionError{Field: "payment_status", From: string(last.PaymentStatus), To: string(status)}
}

// MarkOverdueNoShows marks every pending or confirmed booking that ended more
// than the configured grace period before now as no_show. It returns how many
// bookings were marked.
func (s *Service) MarkOverdueNoShows(ctx context.Context, now time.Time) (int, error) {
	today := timeutil.DateOf(now.In(s.cfg.ClinicLocation))

	candidates, err := s.stores.Bookings.ListActiveUntil(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("list active bookings: %w", err)
	}

	logger := logging.FromContext(ctx)
	marked := 0
	for _, b := range candidates {
		if now.Before(s.bookingEnd(b).Add(s.cfg.NoShowGrace)) {
			continue
		}

		if _, err := s.Transition(ctx, b.ID, StatusNoShow); err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				// cancelled or completed in the meantime
				logger.Debug().Str("booking_id", b.ID.String()).Msg("skip no-show, status moved on")
				continue
			}
			return marked, fmt.Errorf("mark booking %s no_show: %w", b.ID, err)
		}
		marked++
	}

	return marked, nil
}
