package timeutil

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// ParseDate parses YYYY-MM-DD into midnight UTC.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}

// DateOf drops the clock part, keeping the calendar date of ts as seen in its
// own location. The result is always midnight UTC.
func DateOf(ts time.Time) time.Time {
	y, m, d := ts.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// At combines a calendar date and a wall-clock time in loc. The clock is
// read on the wall, so days with a daylight-saving shift keep their hours;
// 24:00 becomes midnight of the next day.
func At(date time.Time, t TimeOfDay, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc)
}
