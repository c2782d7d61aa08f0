package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-scheduling/internal/timeutil"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
	StatusNoShow    BookingStatus = "no_show"
)

func ParseBookingStatus(s string) (BookingStatus, error) {
	st := BookingStatus(s)
	if _, ok := bookingTransitions[st]; !ok {
		return "", ValidationErrors{{Field: "status", Message: fmt.Sprintf("unknown booking status %q", s)}}
	}
	return st, nil
}

// Occupies reports whether a booking in this status blocks its interval.
func (s BookingStatus) Occupies() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted:
		return true
	}
	return false
}

// Active bookings can still be moved or transitioned.
func (s BookingStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s BookingStatus) Terminal() bool {
	return len(bookingTransitions[s]) == 0
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
	PaymentFailed   PaymentStatus = "failed"
)

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	st := PaymentStatus(s)
	if _, ok := paymentTransitions[st]; !ok {
		return "", ValidationErrors{{Field: "payment_status", Message: fmt.Sprintf("unknown payment status %q", s)}}
	}
	return st, nil
}

// Provider is the directory's view of a bookable doctor or staff member.
type Provider struct {
	ID        uuid.UUID
	ClinicID  uuid.UUID
	Name      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type WeeklyScheduleEntry struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	DayOfWeek  time.Weekday
	StartTime  timeutil.TimeOfDay
	EndTime    timeutil.TimeOfDay
	Available  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (e WeeklyScheduleEntry) Interval() timeutil.Interval {
	return timeutil.Interval{Start: e.StartTime, End: e.EndTime}
}

// AvailabilityOverride replaces the weekly template for one calendar date.
// A nil time range means the whole day.
type AvailabilityOverride struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	Date       time.Time
	StartTime  *timeutil.TimeOfDay
	EndTime    *timeutil.TimeOfDay
	Available  bool
	Reason     string
	CreatedAt  time.Time
}

func (o AvailabilityOverride) AllDay() bool {
	return o.StartTime == nil || o.EndTime == nil
}

func (o AvailabilityOverride) Interval() timeutil.Interval {
	if o.AllDay() {
		return timeutil.Interval{Start: 0, End: timeutil.MinutesPerDay}
	}
	return timeutil.Interval{Start: *o.StartTime, End: *o.EndTime}
}

type PatientFields struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Phone string `json:"phone,omitempty" validate:"omitempty,e164"`
}

type Booking struct {
	ID              uuid.UUID
	ClinicID        uuid.UUID
	ProviderID      uuid.UUID
	ServiceID       *uuid.UUID
	Patient         PatientFields
	Date            time.Time
	StartTime       timeutil.TimeOfDay
	DurationMinutes int
	Status          BookingStatus
	PaymentStatus   PaymentStatus
	Amount          decimal.Decimal
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (b Booking) Interval() timeutil.Interval {
	return timeutil.Span(b.StartTime, b.DurationMinutes)
}

// BookingRequest is the input of CheckAndCreateBooking.
type BookingRequest struct {
	ProviderID      uuid.UUID          `json:"provider_id"`
	ClinicID        uuid.UUID          `json:"clinic_id"`
	ServiceID       *uuid.UUID         `json:"service_id,omitempty"`
	Date            time.Time          `json:"date"`
	StartTime       timeutil.TimeOfDay `json:"start_time"`
	DurationMinutes int                `json:"duration_minutes" validate:"min=1,max=1440"`
	Patient         PatientFields      `json:"patient"`
	Amount          decimal.Decimal    `json:"amount"`
}

type EventLog struct {
	ID        int64
	EventType string
	BookingID *uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}
