package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/clinic-scheduling/internal/scheduling"
	"github.com/hackgods/clinic-scheduling/internal/timeutil"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code string, details any) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// decodeJSON reads a single JSON object and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	if err := scheduling.ValidateStruct(dst); err != nil {
		handleError(w, r, err)
		return false
	}
	return true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, fmt.Sprintf("%s must be a valid UUID", name))
		return uuid.Nil, false
	}
	return id, true
}

func dateQuery(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing_date", "date query parameter is required")
		return time.Time{}, false
	}
	d, err := timeutil.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be formatted as YYYY-MM-DD")
		return time.Time{}, false
	}
	return d, true
}

// handleError maps service errors onto status codes. Storage failures are
// logged and reported without detail.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs scheduling.ValidationErrors
	var conflict *scheduling.ConflictError

	switch {
	case errors.As(err, &verrs):
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", []scheduling.ValidationError(verrs))
	case errors.Is(err, scheduling.ErrProviderNotFound):
		writeError(w, http.StatusNotFound, "provider_not_found", err.Error())
	case errors.Is(err, scheduling.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
	case errors.Is(err, scheduling.ErrScheduleEntryNotFound):
		writeError(w, http.StatusNotFound, "schedule_entry_not_found", err.Error())
	case errors.Is(err, scheduling.ErrOverrideNotFound):
		writeError(w, http.StatusNotFound, "override_not_found", err.Error())
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   string(conflict.Kind),
			Details: ConflictResponse{Conflict: true, Kind: string(conflict.Kind), BookingID: conflict.BookingID},
		})
	case errors.Is(err, scheduling.ErrOverlap):
		writeError(w, http.StatusConflict, "overlap", err.Error())
	case errors.Is(err, scheduling.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, scheduling.ErrBookingNotActive):
		writeError(w, http.StatusConflict, "booking_not_active", err.Error())
	case errors.Is(err, scheduling.ErrProviderInactive):
		writeError(w, http.StatusConflict, "provider_inactive", err.Error())
	case errors.Is(err, scheduling.ErrProviderBusy):
		writeError(w, http.StatusConflict, "provider_busy", err.Error())
	default:
		loggerFor(r).Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
