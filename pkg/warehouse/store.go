package warehouse

import (
	"context"
	"errors"

	"github.com/tirta-dwh/dwhetl/pkg/period"
)

// Static errors for warehouse access
var (
	// ErrTableMismatch is returned when update and insert batches target different tables
	ErrTableMismatch = errors.New("update and insert rows target different tables")
	// ErrNotDimension is returned when a dimension write targets a fact table
	ErrNotDimension = errors.New("table is not a dimension")
)

// Store reads and writes the dimension and fact tables.
type Store interface {
	Customers(ctx context.Context) ([]Customer, error)
	Tariffs(ctx context.Context) ([]Tariff, error)
	Calendar(ctx context.Context) ([]CalendarDate, error)
	ComplaintTypes(ctx context.Context) ([]ComplaintType, error)
	Outcomes(ctx context.Context) ([]Outcome, error)

	// Fact key reads are limited to rows whose time key falls inside p.
	TransactionKeys(ctx context.Context, p period.Period) (KeySet[TransactionKey], error)
	ComplaintKeys(ctx context.Context, p period.Period) (KeySet[ComplaintKey], error)
	DisconnectionKeys(ctx context.Context, p period.Period) (KeySet[DisconnectionKey], error)
	NewConnectionKeys(ctx context.Context, p period.Period) (KeySet[NewConnectionKey], error)

	// ApplyDimension overwrites the attributes of updates, matched by natural
	// key, and appends inserts, in one transaction.
	ApplyDimension(ctx context.Context, table Table, updates, inserts Rows) error
	// Append bulk inserts rows into their table and returns the inserted count.
	Append(ctx context.Context, rows Rows) (int64, error)
	// DeleteFacts removes fact rows whose time key falls inside p from every
	// fact table and returns the deleted count per table.
	DeleteFacts(ctx context.Context, p period.Period) (map[string]int64, error)
}

// HistoryStore persists the ETL history log.
type HistoryStore interface {
	// InsertHistory appends an entry and returns its id.
	InsertHistory(ctx context.Context, entry HistoryEntry) (int64, error)
	// HistoryRanges returns the periods of all entries with status.
	HistoryRanges(ctx context.Context, status string) ([]period.Period, error)
	// HistoryPage returns entries newest first, and the total entry count.
	HistoryPage(ctx context.Context, limit, offset int) ([]HistoryEntry, int64, error)
	// HistoryOverlaps reports whether an entry contains the start or the end of p.
	HistoryOverlaps(ctx context.Context, p period.Period) (bool, error)
}
