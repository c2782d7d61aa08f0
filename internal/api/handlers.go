package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-scheduling/internal/scheduling"
	"github.com/hackgods/clinic-scheduling/internal/timeutil"
)

func toBookingResponse(b *scheduling.Booking) BookingResponse {
	return BookingResponse{
		ID:              b.ID,
		ClinicID:        b.ClinicID,
		ProviderID:      b.ProviderID,
		ServiceID:       b.ServiceID,
		Patient:         b.Patient,
		Date:            timeutil.FormatDate(b.Date),
		StartTime:       b.StartTime.String(),
		EndTime:         b.StartTime.Add(b.DurationMinutes).String(),
		DurationMinutes: b.DurationMinutes,
		Status:          string(b.Status),
		PaymentStatus:   string(b.PaymentStatus),
		Amount:          b.Amount.StringFixed(2),
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func createBookingHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := uuidParam(w, r, "provider_id")
		if !ok {
			return
		}

		var req CreateBookingRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		// Formats were checked by the validator above.
		date, _ := timeutil.ParseDate(req.Date)
		start, _ := timeutil.ParseTimeOfDay(req.StartTime)
		in := scheduling.BookingRequest{
			ProviderID:      providerID,
			ClinicID:        uuid.MustParse(req.ClinicID),
			Date:            date,
			StartTime:       start,
			DurationMinutes: req.DurationMinutes,
			Patient:         req.Patient,
		}
		if req.ServiceID != nil {
			sid := uuid.MustParse(*req.ServiceID)
			in.ServiceID = &sid
		}
		if req.Amount != "" {
			amount, err := decimal.NewFromString(req.Amount)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "validation_failed",
					[]scheduling.ValidationError{{Field: "amount", Message: "must be a decimal number"}})
				return
			}
			in.Amount = amount
		}

		b, err := svc.CheckAndCreateBooking(r.Context(), in)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toBookingResponse(b))
	}
}

func getBookingHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		b, err := svc.GetBooking(r.Context(), id)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

func transitionBookingHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var req TransitionRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		b, err := svc.Transition(r.Context(), id, scheduling.BookingStatus(req.Status))
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

func rescheduleBookingHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var req RescheduleRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		date, _ := timeutil.ParseDate(req.Date)
		start, _ := timeutil.ParseTimeOfDay(req.StartTime)
		b, err := svc.Reschedule(r.Context(), id, date, start, req.DurationMinutes)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

func paymentStatusHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var req PaymentStatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		b, err := svc.OnPaymentStatusChanged(r.Context(), id, scheduling.PaymentStatus(req.PaymentStatus))
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}
