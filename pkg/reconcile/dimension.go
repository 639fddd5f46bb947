// Package reconcile merges extracted rows into the warehouse: dimension
// upserts with surrogate key assignment, the calendar, and fact resolution
// with deduplication against rows already loaded.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tirta-dwh/dwhetl/pkg/observability"
	"github.com/tirta-dwh/dwhetl/pkg/period"
	"github.com/tirta-dwh/dwhetl/pkg/warehouse"
)

// Dimension declares how rows of one dimension table are matched, compared
// and numbered.
type Dimension[R any, K comparable] struct {
	Table warehouse.Table
	// Key returns the natural key, including any discriminator
	Key func(R) K
	// ID returns the surrogate id
	ID func(R) int64
	// WithID returns a copy of the row carrying id
	WithID func(R, int64) R
	// Changed reports whether a candidate's attributes differ from the stored
	// row. Nil for dimensions without attributes.
	Changed func(candidate, existing R) bool
	// Rows wraps a slice for the warehouse store
	Rows func([]R) warehouse.Rows
}

// Changes is the outcome of planning a dimension reconciliation.
type Changes[R any] struct {
	// Updates carry the existing surrogate id and the candidate attributes
	Updates []R
	// Inserts carry newly assigned surrogate ids
	Inserts []R
}

// Empty reports whether nothing needs writing.
func (c Changes[R]) Empty() bool {
	return len(c.Updates) == 0 && len(c.Inserts) == 0
}

// Plan classifies candidates against existing rows. Candidates are deduped by
// natural key, first occurrence winning. Unmatched candidates become inserts
// numbered contiguously from the existing maximum id, in candidate order.
func (d Dimension[R, K]) Plan(candidates, existing []R) Changes[R] {
	stored := make(map[K]R, len(existing))

	var maxID int64

	for _, row := range existing {
		stored[d.Key(row)] = row
		maxID = max(maxID, d.ID(row))
	}

	var changes Changes[R]

	seen := make(map[K]struct{}, len(candidates))

	for _, c := range candidates {
		key := d.Key(c)
		if _, dup := seen[key]; dup {
			continue
		}

		seen[key] = struct{}{}

		current, ok := stored[key]
		if !ok {
			maxID++
			changes.Inserts = append(changes.Inserts, d.WithID(c, maxID))

			continue
		}

		if d.Changed != nil && d.Changed(c, current) {
			changes.Updates = append(changes.Updates, d.WithID(c, d.ID(current)))
		}
	}

	return changes
}

// Merge returns existing with the updates applied and the inserts appended.
func (d Dimension[R, K]) Merge(existing []R, changes Changes[R]) []R {
	updated := make(map[K]R, len(changes.Updates))
	for _, u := range changes.Updates {
		updated[d.Key(u)] = u
	}

	merged := make([]R, 0, len(existing)+len(changes.Inserts))

	for _, row := range existing {
		if u, ok := updated[d.Key(row)]; ok {
			row = u
		}

		merged = append(merged, row)
	}

	return append(merged, changes.Inserts...)
}

// Reconcile plans candidates against existing, writes the changes in one
// transaction and returns them with the resulting dimension contents.
func Reconcile[R any, K comparable](
	ctx context.Context,
	log logrus.FieldLogger,
	store warehouse.Store,
	d Dimension[R, K],
	candidates, existing []R,
) (Changes[R], []R, error) {
	start := time.Now()
	changes := d.Plan(candidates, existing)

	if !changes.Empty() {
		if err := store.ApplyDimension(ctx, d.Table, d.Rows(changes.Updates), d.Rows(changes.Inserts)); err != nil {
			return changes, nil, fmt.Errorf("failed to reconcile %s: %w", d.Table.Name, err)
		}
	}

	observability.RecordDimensionChanges(d.Table.Name, len(changes.Inserts), len(changes.Updates))

	log.WithFields(logrus.Fields{
		"dimension":  d.Table.Name,
		"candidates": len(candidates),
		"inserts":    len(changes.Inserts),
		"updates":    len(changes.Updates),
		"duration":   time.Since(start),
	}).Info("Reconciled dimension")

	return changes, d.Merge(existing, changes), nil
}

// Dimension descriptors for every dimension the engine maintains.
//
//nolint:gochecknoglobals // immutable descriptors
var (
	CustomerDimension = Dimension[warehouse.Customer, warehouse.CustomerKey]{
		Table: warehouse.CustomerTable,
		Key:   warehouse.Customer.Key,
		ID:    func(c warehouse.Customer) int64 { return c.ID },
		WithID: func(c warehouse.Customer, id int64) warehouse.Customer {
			c.ID = id
			return c
		},
		Changed: func(c, e warehouse.Customer) bool { return c.Status != e.Status },
		Rows:    func(rs []warehouse.Customer) warehouse.Rows { return warehouse.Customers(rs) },
	}

	TariffDimension = Dimension[warehouse.Tariff, string]{
		Table: warehouse.TariffTable,
		Key:   func(t warehouse.Tariff) string { return t.Code },
		ID:    func(t warehouse.Tariff) int64 { return t.ID },
		WithID: func(t warehouse.Tariff, id int64) warehouse.Tariff {
			t.ID = id
			return t
		},
		Changed: func(c, e warehouse.Tariff) bool { return c.Name != e.Name },
		Rows:    func(rs []warehouse.Tariff) warehouse.Rows { return warehouse.Tariffs(rs) },
	}

	CalendarDimension = Dimension[warehouse.CalendarDate, string]{
		Table: warehouse.CalendarTable,
		Key:   func(d warehouse.CalendarDate) string { return d.Date.Format(period.DateLayout) },
		ID:    func(d warehouse.CalendarDate) int64 { return d.ID },
		WithID: func(d warehouse.CalendarDate, id int64) warehouse.CalendarDate {
			d.ID = id
			return d
		},
		Rows: func(rs []warehouse.CalendarDate) warehouse.Rows { return warehouse.CalendarDates(rs) },
	}

	ComplaintTypeDimension = Dimension[warehouse.ComplaintType, string]{
		Table: warehouse.ComplaintTypeTable,
		Key:   func(c warehouse.ComplaintType) string { return c.Label },
		ID:    func(c warehouse.ComplaintType) int64 { return c.ID },
		WithID: func(c warehouse.ComplaintType, id int64) warehouse.ComplaintType {
			c.ID = id
			return c
		},
		Rows: func(rs []warehouse.ComplaintType) warehouse.Rows { return warehouse.ComplaintTypes(rs) },
	}

	OutcomeDimension = Dimension[warehouse.Outcome, string]{
		Table: warehouse.OutcomeTable,
		Key:   func(o warehouse.Outcome) string { return o.Label },
		ID:    func(o warehouse.Outcome) int64 { return o.ID },
		WithID: func(o warehouse.Outcome, id int64) warehouse.Outcome {
			o.ID = id
			return o
		},
		Rows: func(rs []warehouse.Outcome) warehouse.Rows { return warehouse.Outcomes(rs) },
	}
)
