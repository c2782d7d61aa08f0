package scheduling

import (
	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/timeutil"
)

// Decision is the outcome of a conflict check.
type Decision struct {
	Kind      ConflictKind
	BookingID *uuid.UUID
}

func (d Decision) Conflicts() bool { return d.Kind != ConflictNone }

// Err converts a conflicting decision into a *ConflictError, nil otherwise.
func (d Decision) Err() error {
	if !d.Conflicts() {
		return nil
	}
	return &ConflictError{Kind: d.Kind, BookingID: d.BookingID}
}

// decide checks p against the day's windows first, then against every
// occupying booking except exclude. Overlap is half-open: touching intervals
// are fine, any shared minute is a conflict.
func decide(windows []timeutil.Interval, occupying []Booking, p timeutil.Interval, exclude *uuid.UUID) Decision {
	if !timeutil.AnyContains(windows, p) {
		return Decision{Kind: ConflictOutsideAvailability}
	}

	for _, b := range occupying {
		if !b.Status.Occupies() || (exclude != nil && b.ID == *exclude) {
			continue
		}
		if b.Interval().Overlaps(p) {
			id := b.ID
			return Decision{Kind: ConflictTime, BookingID: &id}
		}
	}

	return Decision{Kind: ConflictNone}
}
