package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/events"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

type Service struct {
	stores    Stores
	locker    redisclient.Locker
	publisher events.Publisher
	cfg       config.Config
	now       func() time.Time
}

func NewService(stores Stores, locker redisclient.Locker, publisher events.Publisher, cfg config.Config) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if cfg.ClinicLocation == nil {
		cfg.ClinicLocation = time.UTC
	}
	if cfg.SlotGranularity <= 0 {
		cfg.SlotGranularity = 30
	}
	return &Service{
		stores:    stores,
		locker:    locker,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

// requireProvider fails with ErrProviderNotFound or ErrProviderInactive.
func (s *Service) requireProvider(ctx context.Context, id uuid.UUID) error {
	if err := s.providerExists(ctx, id); err != nil {
		return err
	}
	active, err := s.stores.Providers.ProviderIsActive(ctx, id)
	if err != nil {
		return fmt.Errorf("check provider active: %w", err)
	}
	if !active {
		return ErrProviderInactive
	}
	return nil
}

func (s *Service) providerExists(ctx context.Context, id uuid.UUID) error {
	ok, err := s.stores.Providers.ProviderExists(ctx, id)
	if err != nil {
		return fmt.Errorf("check provider: %w", err)
	}
	if !ok {
		return ErrProviderNotFound
	}
	return nil
}

func (s *Service) withProviderLock(ctx context.Context, providerID uuid.UUID, date time.Time, fn func(ctx context.Context) error) error {
	err := s.locker.WithProviderLock(ctx, providerID, date, fn)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrProviderBusy
	}
	return err
}

// logEvent appends to the event log and publishes the event. Failures are
// logged only; the booking change has already been committed.
func (s *Service) logEvent(ctx context.Context, b *Booking, eventType string, data map[string]any) {
	logger := logging.FromContext(ctx)
	// the write has committed, so the record outlives the caller's deadline
	ctx = context.WithoutCancel(ctx)

	payload, err := json.Marshal(data)
	if err != nil {
		logger.Error().Err(err).Str("event_type", eventType).Msg("marshal event payload")
		return
	}

	bookingID := b.ID
	ev := EventLog{
		EventType: eventType,
		BookingID: &bookingID,
		Payload:   payload,
		CreatedAt: s.now().UTC(),
	}
	if err := s.stores.Bookings.InsertEvent(ctx, ev); err != nil {
		logger.Error().Err(err).
			Str("event_type", eventType).
			Str("booking_id", b.ID.String()).
			Msg("failed to insert event log")
	}

	err = s.publisher.Publish(ctx, events.Event{
		ID:         uuid.New(),
		Type:       eventType,
		BookingID:  b.ID,
		ProviderID: b.ProviderID,
		OccurredAt: ev.CreatedAt,
		Data:       data,
	})
	if err != nil {
		logger.Warn().Err(err).
			Str("event_type", eventType).
			Str("booking_id", b.ID.String()).
			Msg("failed to publish event")
	}
}
