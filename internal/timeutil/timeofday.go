package timeutil

import (
	"errors"
	"fmt"
	"time"
)

// MinutesPerDay is the exclusive upper bound of a TimeOfDay. A value equal to
// it is accepted as the end of a window ("24:00").
const MinutesPerDay = 24 * 60

var ErrInvalidTimeOfDay = errors.New("invalid time of day")

// TimeOfDay is a wall-clock time expressed as minutes after midnight.
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay accepts "HH:MM" and "HH:MM:SS" (seconds must be zero).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	bad := fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	if len(s) != 5 && len(s) != 8 {
		return 0, bad
	}
	h, okH := twoDigits(s[0:2])
	m, okM := twoDigits(s[3:5])
	if !okH || !okM || s[2] != ':' || m > 59 {
		return 0, bad
	}
	if len(s) == 8 {
		sec, ok := twoDigits(s[6:8])
		if !ok || s[5] != ':' || sec != 0 {
			return 0, bad
		}
	}
	t := NewTimeOfDay(h, m)
	if t > MinutesPerDay {
		return 0, bad
	}
	return t, nil
}

func twoDigits(s string) (int, bool) {
	if s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, false
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), true
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) Valid() bool { return t >= 0 && t <= MinutesPerDay }

func (t TimeOfDay) Add(minutes int) TimeOfDay { return t + TimeOfDay(minutes) }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTimeOfDay, int(t))
	}
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Duration converts the offset from midnight into a time.Duration.
func (t TimeOfDay) Duration() time.Duration {
	return time.Duration(t) * time.Minute
}

// Microseconds is the representation Postgres uses for the time type.
func (t TimeOfDay) Microseconds() int64 {
	return int64(t.Duration() / time.Microsecond)
}

// FromMicroseconds truncates sub-minute precision.
func FromMicroseconds(us int64) TimeOfDay {
	return TimeOfDay(time.Duration(us) * time.Microsecond / time.Minute)
}
