package testutil

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/tirta-dwh/dwhetl/pkg/period"
	"github.com/tirta-dwh/dwhetl/pkg/warehouse"
)

// ErrInjected is returned by MemoryWarehouse operations configured to fail.
var ErrInjected = errors.New("injected failure")

var (
	_ warehouse.Store        = (*MemoryWarehouse)(nil)
	_ warehouse.HistoryStore = (*MemoryWarehouse)(nil)
)

// MemoryWarehouse is an in-memory warehouse.Store and warehouse.HistoryStore.
// Tables named in FailAppend or FailApply return ErrInjected.
type MemoryWarehouse struct {
	mu sync.Mutex

	CustomerRows      []warehouse.Customer
	TariffRows        []warehouse.Tariff
	CalendarRows      []warehouse.CalendarDate
	ComplaintTypeRows []warehouse.ComplaintType
	OutcomeRows       []warehouse.Outcome
	TransactionRows   []warehouse.Transaction
	ComplaintRows     []warehouse.Complaint
	DisconnectionRows []warehouse.Disconnection
	NewConnectionRows []warehouse.NewConnection
	History           []warehouse.HistoryEntry

	FailAppend  map[string]bool
	FailApply   map[string]bool
	FailHistory bool

	// Updates counts the single-row dimension updates applied per table.
	Updates map[string]int
}

// NewMemoryWarehouse returns an empty in-memory warehouse.
func NewMemoryWarehouse() *MemoryWarehouse {
	return &MemoryWarehouse{
		FailAppend: map[string]bool{},
		FailApply:  map[string]bool{},
		Updates:    map[string]int{},
	}
}

func (m *MemoryWarehouse) Customers(_ context.Context) ([]warehouse.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.CustomerRows), nil
}

func (m *MemoryWarehouse) Tariffs(_ context.Context) ([]warehouse.Tariff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.TariffRows), nil
}

func (m *MemoryWarehouse) Calendar(_ context.Context) ([]warehouse.CalendarDate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.CalendarRows), nil
}

func (m *MemoryWarehouse) ComplaintTypes(_ context.Context) ([]warehouse.ComplaintType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.ComplaintTypeRows), nil
}

func (m *MemoryWarehouse) Outcomes(_ context.Context) ([]warehouse.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.OutcomeRows), nil
}

// timeIDs returns the time keys of the calendar dates inside p. Caller holds mu.
func (m *MemoryWarehouse) timeIDs(p period.Period) map[int64]bool {
	ids := map[int64]bool{}

	for _, d := range m.CalendarRows {
		if p.Includes(d.Date) {
			ids[d.ID] = true
		}
	}

	return ids
}

func keysInPeriod[R any, K comparable](m *MemoryWarehouse, p period.Period, rows func() []R, key func(R) K, timeID func(R) int64) warehouse.KeySet[K] {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := m.timeIDs(p)
	set := warehouse.NewKeySet[K]()

	for _, r := range rows() {
		if ids[timeID(r)] {
			set.Add(key(r))
		}
	}

	return set
}

func (m *MemoryWarehouse) TransactionKeys(_ context.Context, p period.Period) (warehouse.KeySet[warehouse.TransactionKey], error) {
	return keysInPeriod(m, p, func() []warehouse.Transaction { return m.TransactionRows }, warehouse.Transaction.Key,
		func(r warehouse.Transaction) int64 { return r.TimeID }), nil
}

func (m *MemoryWarehouse) ComplaintKeys(_ context.Context, p period.Period) (warehouse.KeySet[warehouse.ComplaintKey], error) {
	return keysInPeriod(m, p, func() []warehouse.Complaint { return m.ComplaintRows }, warehouse.Complaint.Key,
		func(r warehouse.Complaint) int64 { return r.TimeID }), nil
}

func (m *MemoryWarehouse) DisconnectionKeys(_ context.Context, p period.Period) (warehouse.KeySet[warehouse.DisconnectionKey], error) {
	return keysInPeriod(m, p, func() []warehouse.Disconnection { return m.DisconnectionRows }, warehouse.Disconnection.Key,
		func(r warehouse.Disconnection) int64 { return r.TimeID }), nil
}

func (m *MemoryWarehouse) NewConnectionKeys(_ context.Context, p period.Period) (warehouse.KeySet[warehouse.NewConnectionKey], error) {
	return keysInPeriod(m, p, func() []warehouse.NewConnection { return m.NewConnectionRows }, warehouse.NewConnection.Key,
		func(r warehouse.NewConnection) int64 { return r.TimeID }), nil
}

func (m *MemoryWarehouse) ApplyDimension(_ context.Context, table warehouse.Table, updates, inserts warehouse.Rows) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailApply[table.Name] {
		return fmt.Errorf("%w: apply %s", ErrInjected, table.Name)
	}

	switch u := updates.(type) {
	case warehouse.Customers:
		for _, row := range u {
			for i := range m.CustomerRows {
				if m.CustomerRows[i].Key() == row.Key() {
					m.CustomerRows[i].Status = row.Status
					m.Updates[table.Name]++
				}
			}
		}
	case warehouse.Tariffs:
		for _, row := range u {
			for i := range m.TariffRows {
				if m.TariffRows[i].Code == row.Code {
					m.TariffRows[i].Name = row.Name
					m.Updates[table.Name]++
				}
			}
		}
	case nil, warehouse.CalendarDates, warehouse.Outcomes, warehouse.ComplaintTypes:
		// no updatable attributes
	default:
		return fmt.Errorf("unsupported dimension update %T", updates)
	}

	if inserts == nil {
		return nil
	}

	return m.appendLocked(inserts)
}

func (m *MemoryWarehouse) Append(_ context.Context, rows warehouse.Rows) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rows == nil {
		return 0, nil
	}

	if m.FailAppend[rows.Table().Name] {
		return 0, fmt.Errorf("%w: append %s", ErrInjected, rows.Table().Name)
	}

	if err := m.appendLocked(rows); err != nil {
		return 0, err
	}

	return int64(rows.Len()), nil
}

func (m *MemoryWarehouse) appendLocked(rows warehouse.Rows) error {
	switch r := rows.(type) {
	case warehouse.Customers:
		m.CustomerRows = append(m.CustomerRows, r...)
	case warehouse.Tariffs:
		m.TariffRows = append(m.TariffRows, r...)
	case warehouse.CalendarDates:
		m.CalendarRows = append(m.CalendarRows, r...)
	case warehouse.ComplaintTypes:
		m.ComplaintTypeRows = append(m.ComplaintTypeRows, r...)
	case warehouse.Outcomes:
		m.OutcomeRows = append(m.OutcomeRows, r...)
	case warehouse.Transactions:
		m.TransactionRows = append(m.TransactionRows, r...)
	case warehouse.Complaints:
		m.ComplaintRows = append(m.ComplaintRows, r...)
	case warehouse.Disconnections:
		m.DisconnectionRows = append(m.DisconnectionRows, r...)
	case warehouse.NewConnections:
		m.NewConnectionRows = append(m.NewConnectionRows, r...)
	default:
		return fmt.Errorf("unsupported rows %T", rows)
	}

	return nil
}

func (m *MemoryWarehouse) DeleteFacts(_ context.Context, p period.Period) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := m.timeIDs(p)
	deleted := map[string]int64{}

	deleted[warehouse.TransactionTable.Name] = deleteWhere(&m.TransactionRows, func(r warehouse.Transaction) bool { return ids[r.TimeID] })
	deleted[warehouse.ComplaintTable.Name] = deleteWhere(&m.ComplaintRows, func(r warehouse.Complaint) bool { return ids[r.TimeID] })
	deleted[warehouse.DisconnectionTable.Name] = deleteWhere(&m.DisconnectionRows, func(r warehouse.Disconnection) bool { return ids[r.TimeID] })
	deleted[warehouse.NewConnectionTable.Name] = deleteWhere(&m.NewConnectionRows, func(r warehouse.NewConnection) bool { return ids[r.TimeID] })

	return deleted, nil
}

func deleteWhere[T any](rows *[]T, match func(T) bool) int64 {
	before := len(*rows)
	*rows = slices.DeleteFunc(*rows, match)

	return int64(before - len(*rows))
}

func (m *MemoryWarehouse) InsertHistory(_ context.Context, entry warehouse.HistoryEntry) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailHistory {
		return 0, fmt.Errorf("%w: history", ErrInjected)
	}

	entry.ID = int64(len(m.History) + 1)
	m.History = append(m.History, entry)

	return entry.ID, nil
}

func (m *MemoryWarehouse) HistoryRanges(_ context.Context, status string) ([]period.Period, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []period.Period

	for _, e := range m.History {
		if e.Status == status {
			out = append(out, period.Period{Start: e.Start, End: e.End})
		}
	}

	return out, nil
}

func (m *MemoryWarehouse) HistoryPage(_ context.Context, limit, offset int) ([]warehouse.HistoryEntry, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sorted := slices.Clone(m.History)
	slices.SortStableFunc(sorted, func(a, b warehouse.HistoryEntry) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}

		return int(b.ID - a.ID)
	})

	total := int64(len(sorted))
	if offset >= len(sorted) {
		return []warehouse.HistoryEntry{}, total, nil
	}

	end := min(offset+limit, len(sorted))

	return sorted[offset:end], total, nil
}

func (m *MemoryWarehouse) HistoryOverlaps(_ context.Context, p period.Period) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.History {
		h := period.Period{Start: e.Start, End: e.End}
		if h.Includes(p.Start) || h.Includes(p.End) {
			return true, nil
		}
	}

	return false, nil
}

// LogPeriod appends a completed history entry for p.
func (m *MemoryWarehouse) LogPeriod(p period.Period, status string, at time.Time) {
	_, _ = m.InsertHistory(context.Background(), warehouse.HistoryEntry{
		Timestamp: at, Start: p.Start, End: p.End, Status: status,
	})
}

// SeedCalendar fills the time dimension with one row per day of p, ids from 1.
func (m *MemoryWarehouse) SeedCalendar(p period.Period) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for d := p.Start; !d.After(p.End); d = d.AddDate(0, 0, 1) {
		m.CalendarRows = append(m.CalendarRows, warehouse.NewCalendarDate(int64(len(m.CalendarRows)+1), d))
	}
}

// TimeID returns the time key of date d, or 0.
func (m *MemoryWarehouse) TimeID(d time.Time) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.CalendarRows {
		if c.Date.Equal(period.Truncate(d)) {
			return c.ID
		}
	}

	return 0
}
