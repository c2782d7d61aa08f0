package scheduling

import (
	"iter"

	"github.com/hackgods/clinic-scheduling/internal/timeutil"
)

// freeSlots subtracts the busy time from the windows and yields every
// granularity-sized slot that fits inside a free sub-interval. The returned
// sequence only reads its inputs, so it can be ranged over any number of times.
func freeSlots(windows []timeutil.Interval, occupying []Booking, granularity int) iter.Seq[timeutil.TimeOfDay] {
	free := timeutil.Subtract(windows, busyIntervals(occupying, nil))

	return func(yield func(timeutil.TimeOfDay) bool) {
		for _, iv := range free {
			for t := range timeutil.Steps(iv, granularity) {
				if !yield(t) {
					return
				}
			}
		}
	}
}
