package api

import (
	"net/http"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/scheduling"
	"github.com/hackgods/clinic-scheduling/internal/timeutil"
)

func toWeeklyEntry(req WeeklyEntryRequest) scheduling.WeeklyScheduleEntry {
	start, _ := timeutil.ParseTimeOfDay(req.StartTime)
	end, _ := timeutil.ParseTimeOfDay(req.EndTime)
	available := true
	if req.Available != nil {
		available = *req.Available
	}
	return scheduling.WeeklyScheduleEntry{
		DayOfWeek: time.Weekday(*req.DayOfWeek),
		StartTime: start,
		EndTime:   end,
		Available: available,
	}
}

func toWeeklyEntryResponses(entries []scheduling.WeeklyScheduleEntry) []WeeklyEntryResponse {
	out := make([]WeeklyEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, WeeklyEntryResponse{
			ID:        e.ID,
			DayOfWeek: int(e.DayOfWeek),
			StartTime: e.StartTime.String(),
			EndTime:   e.EndTime.String(),
			Available: e.Available,
		})
	}
	return out
}

func timeString(t *timeutil.TimeOfDay) *string {
	if t == nil {
		return nil
	}
	s := t.String()
	return &s
}

func toOverrideResponse(o scheduling.AvailabilityOverride) OverrideResponse {
	return OverrideResponse{
		ID:        o.ID,
		Date:      timeutil.FormatDate(o.Date),
		StartTime: timeString(o.StartTime),
		EndTime:   timeString(o.EndTime),
		Available: o.Available,
		Reason:    o.Reason,
	}
}

func getWeeklyScheduleHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := uuidParam(w, r, "provider_id")
		if !ok {
			return
		}

		entries, err := svc.GetWeeklyTemplate(r.Context(), providerID)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toWeeklyEntryResponses(entries))
	}
}

func putWeeklyScheduleHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := uuidParam(w, r, "provider_id")
		if !ok {
			return
		}

		var req WeeklyTemplateRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		entries := make([]scheduling.WeeklyScheduleEntry, 0, len(req.Entries))
		for _, e := range req.Entries {
			entries = append(entries, toWeeklyEntry(e))
		}

		stored, err := svc.SetWeeklyTemplate(r.Context(), providerID, entries)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toWeeklyEntryResponses(stored))
	}
}

func addWeeklyEntryHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := uuidParam(w, r, "provider_id")
		if !ok {
			return
		}

		var req WeeklyEntryRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		e := toWeeklyEntry(req)
		e.ProviderID = providerID
		stored, err := svc.AddWeeklyEntry(r.Context(), e)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toWeeklyEntryResponses([]scheduling.WeeklyScheduleEntry{*stored})[0])
	}
}

func removeWeeklyEntryHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := uuidParam(w, r, "provider_id")
		if !ok {
			return
		}
		entryID, ok := uuidParam(w, r, "entry_id")
		if !ok {
			return
		}

		if err := svc.RemoveWeeklyEntry(r.Context(), providerID, entryID); err != nil {
			handleError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func listOverridesHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := uuidParam(w, r, "provider_id")
		if !ok {
			return
		}
		date, ok := dateQuery(w, r)
		if !ok {
			return
		}

		overrides, err := svc.GetOverrides(r.Context(), providerID, date)
		if err != nil {
			handleError(w, r, err)
			return
		}

		out := make([]OverrideResponse, 0, len(overrides))
		for _, o := range overrides {
			out = append(out, toOverrideResponse(o))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func addOverrideHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := uuidParam(w, r, "provider_id")
		if !ok {
			return
		}

		var req OverrideRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		date, _ := timeutil.ParseDate(req.Date)
		o := scheduling.AvailabilityOverride{
			ProviderID: providerID,
			Date:       date,
			Available:  *req.Available,
			Reason:     req.Reason,
		}
		if req.StartTime != nil {
			t, _ := timeutil.ParseTimeOfDay(*req.StartTime)
			o.StartTime = &t
		}
		if req.EndTime != nil {
			t, _ := timeutil.ParseTimeOfDay(*req.EndTime)
			o.EndTime = &t
		}

		stored, err := svc.AddOverride(r.Context(), o)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toOverrideResponse(*stored))
	}
}

func removeOverrideHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := uuidParam(w, r, "provider_id")
		if !ok {
			return
		}
		overrideID, ok := uuidParam(w, r, "override_id")
		if !ok {
			return
		}

		if err := svc.RemoveOverride(r.Context(), providerID, overrideID); err != nil {
			handleError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func dayWindowsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := uuidParam(w, r, "provider_id")
		if !ok {
			return
		}
		date, ok := dateQuery(w, r)
		if !ok {
			return
		}

		windows, err := svc.DayWindows(r.Context(), providerID, date)
		if err != nil {
			handleError(w, r, err)
			return
		}

		out := make([]string, 0, len(windows))
		for _, iv := range windows {
			out = append(out, iv.String())
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"provider_id": providerID,
			"date":        timeutil.FormatDate(date),
			"windows":     out,
		})
	}
}
