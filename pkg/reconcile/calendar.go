package reconcile

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tirta-dwh/dwhetl/pkg/period"
	"github.com/tirta-dwh/dwhetl/pkg/warehouse"
)

// DefaultCalendarEpoch is the first date of the time dimension.
var DefaultCalendarEpoch = period.Date(2020, time.January, 1) //nolint:gochecknoglobals // immutable default

// CalendarBuilder generates the contiguous date dimension.
type CalendarBuilder struct {
	epoch time.Time
}

// NewCalendarBuilder creates a builder starting at epoch.
func NewCalendarBuilder(epoch time.Time) *CalendarBuilder {
	if epoch.IsZero() {
		epoch = DefaultCalendarEpoch
	}

	return &CalendarBuilder{epoch: period.Truncate(epoch)}
}

// Generate returns one unnumbered row per date from the epoch to upTo inclusive.
func (b *CalendarBuilder) Generate(upTo time.Time) []warehouse.CalendarDate {
	upTo = period.Truncate(upTo)
	if upTo.Before(b.epoch) {
		return nil
	}

	dates := make([]warehouse.CalendarDate, 0, int(upTo.Sub(b.epoch).Hours()/24)+1)
	for d := b.epoch; !d.After(upTo); d = d.AddDate(0, 0, 1) {
		dates = append(dates, warehouse.NewCalendarDate(0, d))
	}

	return dates
}

// Ensure appends every missing date up to upTo and returns the full time
// dimension. Existing rows are never modified; new rows are numbered after the
// current maximum id in ascending date order.
func (b *CalendarBuilder) Ensure(
	ctx context.Context,
	log logrus.FieldLogger,
	store warehouse.Store,
	existing []warehouse.CalendarDate,
	upTo time.Time,
) ([]warehouse.CalendarDate, error) {
	_, merged, err := Reconcile(ctx, log, store, CalendarDimension, b.Generate(upTo), existing)

	return merged, err
}

// CalendarIndex maps calendar dates to their time keys.
type CalendarIndex map[string]int64

// NewCalendarIndex indexes dates by day.
func NewCalendarIndex(dates []warehouse.CalendarDate) CalendarIndex {
	idx := make(CalendarIndex, len(dates))
	for _, d := range dates {
		idx[d.Date.Format(period.DateLayout)] = d.ID
	}

	return idx
}

// Lookup returns the time key of the day containing t.
func (c CalendarIndex) Lookup(t time.Time) (int64, bool) {
	id, ok := c[t.Format(period.DateLayout)]
	return id, ok
}
