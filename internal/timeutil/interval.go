package timeutil

import (
	"fmt"
	"iter"
	"slices"
)

// Interval is a half-open range [Start, End) of wall-clock minutes.
type Interval struct {
	Start TimeOfDay
	End   TimeOfDay
}

// Span builds the interval covering minutes starting at start.
func Span(start TimeOfDay, minutes int) Interval {
	return Interval{Start: start, End: start.Add(minutes)}
}

func (iv Interval) Empty() bool { return iv.End <= iv.Start }

// Overlaps reports whether the two half-open intervals share at least one
// minute. Touching intervals do not overlap.
func (iv Interval) Overlaps(o Interval) bool {
	return iv.Start < o.End && o.Start < iv.End
}

// Contains reports whether o lies entirely inside iv.
func (iv Interval) Contains(o Interval) bool {
	return iv.Start <= o.Start && o.End <= iv.End
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%s, %s)", iv.Start, iv.End)
}

func compareStart(a, b Interval) int {
	if a.Start != b.Start {
		return int(a.Start - b.Start)
	}
	return int(a.End - b.End)
}

// Merge returns the union of ivs as sorted, disjoint intervals. Overlapping
// and adjacent intervals are joined; empty ones are dropped.
func Merge(ivs []Interval) []Interval {
	sorted := make([]Interval, 0, len(ivs))
	for _, iv := range ivs {
		if !iv.Empty() {
			sorted = append(sorted, iv)
		}
	}
	slices.SortFunc(sorted, compareStart)

	out := make([]Interval, 0, len(sorted))
	for _, iv := range sorted {
		if n := len(out); n > 0 && iv.Start <= out[n-1].End {
			if iv.End > out[n-1].End {
				out[n-1].End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// Subtract removes every busy interval from windows. Both inputs may be
// unsorted; the result is sorted and disjoint.
func Subtract(windows, busy []Interval) []Interval {
	free := Merge(windows)
	for _, b := range Merge(busy) {
		next := free[:0:0]
		for _, w := range free {
			if !w.Overlaps(b) {
				next = append(next, w)
				continue
			}
			if w.Start < b.Start {
				next = append(next, Interval{Start: w.Start, End: b.Start})
			}
			if b.End < w.End {
				next = append(next, Interval{Start: b.End, End: w.End})
			}
		}
		free = next
	}
	return free
}

// Steps yields the start of every step-sized block that fits fully inside iv,
// beginning at iv.Start.
func Steps(iv Interval, step int) iter.Seq[TimeOfDay] {
	return func(yield func(TimeOfDay) bool) {
		if step <= 0 {
			return
		}
		for t := iv.Start; t.Add(step) <= iv.End; t = t.Add(step) {
			if !yield(t) {
				return
			}
		}
	}
}

// AnyContains reports whether some interval in ivs fully contains p.
func AnyContains(ivs []Interval, p Interval) bool {
	for _, iv := range ivs {
		if iv.Contains(p) {
			return true
		}
	}
	return false
}
