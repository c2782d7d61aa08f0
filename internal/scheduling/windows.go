package scheduling

import (
	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/timeutil"
)

// resolveWindows derives the merged availability windows of one day. Any
// override for the date replaces the weekly entries entirely, so an
// unavailable all-day override closes the day even when the template has
// hours. Only entries and overrides flagged available contribute windows.
func resolveWindows(weekly []WeeklyScheduleEntry, overrides []AvailabilityOverride) []timeutil.Interval {
	var raw []timeutil.Interval

	if len(overrides) > 0 {
		for _, o := range overrides {
			if o.Available && !o.AllDay() {
				raw = append(raw, o.Interval())
			}
		}
		return timeutil.Merge(raw)
	}

	for _, e := range weekly {
		if e.Available {
			raw = append(raw, e.Interval())
		}
	}
	return timeutil.Merge(raw)
}

func busyIntervals(occupying []Booking, exclude *uuid.UUID) []timeutil.Interval {
	out := make([]timeutil.Interval, 0, len(occupying))
	for _, b := range occupying {
		if !b.Status.Occupies() || (exclude != nil && b.ID == *exclude) {
			continue
		}
		out = append(out, b.Interval())
	}
	return out
}
