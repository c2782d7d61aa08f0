package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/scheduling"
	"github.com/hackgods/clinic-scheduling/internal/timeutil"
)

func listSlotsHandler(svc *scheduling.Service, defaultGranularity int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := uuidParam(w, r, "provider_id")
		if !ok {
			return
		}
		date, ok := dateQuery(w, r)
		if !ok {
			return
		}

		granularity := defaultGranularity
		if raw := r.URL.Query().Get("granularity"); raw != "" {
			g, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_granularity", "granularity must be an integer")
				return
			}
			granularity = g
		}

		seq, err := svc.ListFreeSlots(r.Context(), providerID, date, granularity)
		if err != nil {
			handleError(w, r, err)
			return
		}

		slots := []string{}
		for t := range seq {
			slots = append(slots, t.String())
		}

		writeJSON(w, http.StatusOK, SlotsResponse{
			ProviderID:  providerID,
			Date:        timeutil.FormatDate(date),
			Granularity: granularity,
			Slots:       slots,
		})
	}
}

func conflictsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := uuidParam(w, r, "provider_id")
		if !ok {
			return
		}
		date, ok := dateQuery(w, r)
		if !ok {
			return
		}

		q := r.URL.Query()
		start, err := timeutil.ParseTimeOfDay(q.Get("start"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", "start must be formatted as HH:MM")
			return
		}
		duration, err := strconv.Atoi(q.Get("duration"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_duration", "duration must be an integer number of minutes")
			return
		}

		var exclude *uuid.UUID
		if raw := q.Get("exclude"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_exclude", "exclude must be a valid UUID")
				return
			}
			exclude = &id
		}

		d, err := svc.WouldConflict(r.Context(), providerID, date, start, duration, exclude)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, ConflictResponse{
			Conflict:  d.Conflicts(),
			Kind:      string(d.Kind),
			BookingID: d.BookingID,
		})
	}
}
