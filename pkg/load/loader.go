// Package load appends reconciled rows to the warehouse, one table at a time.
package load

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tirta-dwh/dwhetl/pkg/observability"
	"github.com/tirta-dwh/dwhetl/pkg/warehouse"
)

// ErrExcludedTable is returned when rows target a table written during reconciliation
var ErrExcludedTable = errors.New("table is written during reconciliation")

// TableResult is the outcome of loading one table.
type TableResult struct {
	Table   string `json:"table"`
	Rows    int64  `json:"rows"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`

	err error
}

// Err returns the load error, if any.
func (r TableResult) Err() error {
	return r.err
}

// Report collects the per-table results of one load pass.
type Report struct {
	Tables []TableResult `json:"tables"`
}

// Loaded returns the total number of rows inserted.
func (r Report) Loaded() int64 {
	var n int64
	for _, t := range r.Tables {
		n += t.Rows
	}

	return n
}

// Failed returns the results of the tables that could not be loaded.
func (r Report) Failed() []TableResult {
	var failed []TableResult

	for _, t := range r.Tables {
		if t.err != nil {
			failed = append(failed, t)
		}
	}

	return failed
}

// Err joins the errors of every failed table.
func (r Report) Err() error {
	errs := make([]error, 0, len(r.Tables))
	for _, t := range r.Failed() {
		errs = append(errs, t.err)
	}

	return errors.Join(errs...)
}

// Loader bulk appends rows. Dimensions reconciled in place are never loaded
// through it; it handles the fact tables and the complaint-type dimension.
type Loader struct {
	log      logrus.FieldLogger
	store    warehouse.Store
	excluded map[string]bool
}

// NewLoader creates a loader writing to store.
func NewLoader(log logrus.FieldLogger, store warehouse.Store) *Loader {
	return &Loader{
		log:   log.WithField("component", "loader"),
		store: store,
		excluded: map[string]bool{
			warehouse.CustomerTable.Name: true,
			warehouse.TariffTable.Name:   true,
			warehouse.CalendarTable.Name: true,
			warehouse.OutcomeTable.Name:  true,
		},
	}
}

// Excluded reports whether table is written during reconciliation and skipped here.
func (l *Loader) Excluded(table string) bool {
	return l.excluded[table]
}

// Load appends rows to their table and returns the inserted count.
func (l *Loader) Load(ctx context.Context, rows warehouse.Rows) (int64, error) {
	table := rows.Table().Name

	if l.excluded[table] {
		return 0, fmt.Errorf("%w: %s", ErrExcludedTable, table)
	}

	if rows.Len() == 0 {
		return 0, nil
	}

	n, err := l.store.Append(ctx, rows)
	observability.RecordLoad(table, n, err)

	if err != nil {
		return n, fmt.Errorf("failed to load %s: %w", table, err)
	}

	return n, nil
}

// LoadAll loads each row set in order. A failing table is logged and
// recorded; the remaining tables are still attempted.
func (l *Loader) LoadAll(ctx context.Context, sets ...warehouse.Rows) Report {
	report := Report{Tables: make([]TableResult, 0, len(sets))}

	for _, rows := range sets {
		table := rows.Table().Name
		log := l.log.WithField("table", table)

		if l.excluded[table] {
			log.Info("Skipping table written during reconciliation")
			report.Tables = append(report.Tables, TableResult{Table: table, Skipped: true})

			continue
		}

		n, err := l.Load(ctx, rows)
		result := TableResult{Table: table, Rows: n, err: err}

		if err != nil {
			result.Error = err.Error()
			log.WithError(err).Error("Failed to load table")
		} else {
			log.WithField("rows", n).Info("Loaded table")
		}

		report.Tables = append(report.Tables, result)
	}

	return report
}
