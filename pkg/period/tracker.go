package period

import (
	"iter"
	"slices"
	"time"
)

// DefaultEpoch is the first month the warehouse is loaded from.
var DefaultEpoch = Date(2021, time.January, 1) //nolint:gochecknoglobals // immutable default

// Tracker computes which calendar months are not yet covered by logged loads.
type Tracker struct {
	epoch time.Time
}

// NewTracker creates a tracker walking months from the month containing epoch.
func NewTracker(epoch time.Time) *Tracker {
	if epoch.IsZero() {
		epoch = DefaultEpoch
	}

	return &Tracker{epoch: MonthStart(epoch)}
}

// Epoch returns the first month start the tracker walks from.
func (t *Tracker) Epoch() time.Time {
	return t.epoch
}

// Unprocessed yields, in ascending order, every month window from the epoch up
// to the month containing today that no single history entry fully contains.
// The window of the current month ends at today. The sequence is recomputed on
// every iteration.
func (t *Tracker) Unprocessed(history []Period, today time.Time) iter.Seq[Period] {
	today = Truncate(today)

	return func(yield func(Period) bool) {
		for start := t.epoch; !start.After(today); start = start.AddDate(0, 1, 0) {
			window := Period{Start: start, End: MonthEnd(start)}
			if window.End.After(today) {
				window.End = today
			}

			if Covered(history, window) {
				continue
			}

			if !yield(window) {
				return
			}
		}
	}
}

// UnprocessedList collects Unprocessed into a slice.
func (t *Tracker) UnprocessedList(history []Period, today time.Time) []Period {
	return slices.Collect(t.Unprocessed(history, today))
}

// Covered reports whether a single entry of history fully contains window.
// Coverage is never assembled from several overlapping entries.
func Covered(history []Period, window Period) bool {
	return slices.ContainsFunc(history, func(h Period) bool {
		return h.Contains(window)
	})
}
