package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	TypeBookingCreated       = "booking.created"
	TypeBookingStatusChanged = "booking.status_changed"
	TypeBookingRescheduled   = "booking.rescheduled"
	TypePaymentStatusChanged = "booking.payment_status_changed"
)

// Header keys attached to every published message.
const (
	HeaderEventID   = "event-id"
	HeaderEventType = "event-type"
	HeaderSource    = "source"
	HeaderRequestID = "request-id"
)

// Event is a booking lifecycle notification for the surrounding subsystems.
type Event struct {
	ID         uuid.UUID      `json:"id"`
	Type       string         `json:"type"`
	BookingID  uuid.UUID      `json:"booking_id"`
	ProviderID uuid.UUID      `json:"provider_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
