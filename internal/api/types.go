package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

type CreateBookingRequest struct {
	ClinicID        string                   `json:"clinic_id" validate:"required,uuid"`
	ServiceID       *string                  `json:"service_id,omitempty" validate:"omitempty,uuid"`
	Date            string                   `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime       string                   `json:"start_time" validate:"required,timeofday"`
	DurationMinutes int                      `json:"duration_minutes" validate:"required,min=1,max=1440"`
	Patient         scheduling.PatientFields `json:"patient"`
	Amount          string                   `json:"amount,omitempty" validate:"omitempty,numeric"`
}

type RescheduleRequest struct {
	Date            string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime       string `json:"start_time" validate:"required,timeofday"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,min=1,max=1440"`
}

type TransitionRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed completed cancelled no_show"`
}

type PaymentStatusRequest struct {
	PaymentStatus string `json:"payment_status" validate:"required,oneof=pending paid refunded failed"`
}

type BookingResponse struct {
	ID              uuid.UUID                `json:"id"`
	ClinicID        uuid.UUID                `json:"clinic_id"`
	ProviderID      uuid.UUID                `json:"provider_id"`
	ServiceID       *uuid.UUID               `json:"service_id,omitempty"`
	Patient         scheduling.PatientFields `json:"patient"`
	Date            string                   `json:"date"`
	StartTime       string                   `json:"start_time"`
	EndTime         string                   `json:"end_time"`
	DurationMinutes int                      `json:"duration_minutes"`
	Status          string                   `json:"status"`
	PaymentStatus   string                   `json:"payment_status"`
	Amount          string                   `json:"amount"`
	CreatedAt       time.Time                `json:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

type SlotsResponse struct {
	ProviderID  uuid.UUID `json:"provider_id"`
	Date        string    `json:"date"`
	Granularity int       `json:"granularity"`
	Slots       []string  `json:"slots"`
}

type ConflictResponse struct {
	Conflict  bool       `json:"conflict"`
	Kind      string     `json:"kind"`
	BookingID *uuid.UUID `json:"booking_id,omitempty"`
}

type WeeklyEntryRequest struct {
	DayOfWeek *int   `json:"day_of_week" validate:"required,min=0,max=6"`
	StartTime string `json:"start_time" validate:"required,timeofday"`
	EndTime   string `json:"end_time" validate:"required,timeofday"`
	Available *bool  `json:"available,omitempty"`
}

type WeeklyTemplateRequest struct {
	Entries []WeeklyEntryRequest `json:"entries" validate:"dive"`
}

type WeeklyEntryResponse struct {
	ID        uuid.UUID `json:"id"`
	DayOfWeek int       `json:"day_of_week"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Available bool      `json:"available"`
}

type OverrideRequest struct {
	Date      string  `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime *string `json:"start_time,omitempty" validate:"omitempty,timeofday"`
	EndTime   *string `json:"end_time,omitempty" validate:"omitempty,timeofday"`
	Available *bool   `json:"available" validate:"required"`
	Reason    string  `json:"reason,omitempty" validate:"max=500"`
}

type OverrideResponse struct {
	ID        uuid.UUID `json:"id"`
	Date      string    `json:"date"`
	StartTime *string   `json:"start_time,omitempty"`
	EndTime   *string   `json:"end_time,omitempty"`
	Available bool      `json:"available"`
	Reason    string    `json:"reason,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}
