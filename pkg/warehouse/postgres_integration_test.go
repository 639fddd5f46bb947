//go:build integration

package warehouse_test

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tirta-dwh/dwhetl/internal/testutil"
	"github.com/tirta-dwh/dwhetl/pkg/period"
	"github.com/tirta-dwh/dwhetl/pkg/warehouse"
)

func newStore(t *testing.T) *warehouse.PostgresStore {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	conn := testutil.NewPostgresContainer(t)
	store := warehouse.NewPostgresStore(log, conn.Client)

	require.NoError(t, store.Migrate(t.Context()))
	// Migrations are idempotent.
	require.NoError(t, store.Migrate(t.Context()))

	return store
}

func seedCalendar(t *testing.T, store *warehouse.PostgresStore, p period.Period) {
	t.Helper()

	var dates warehouse.CalendarDates
	for d, id := p.Start, int64(1); !d.After(p.End); d, id = d.AddDate(0, 0, 1), id+1 {
		dates = append(dates, warehouse.NewCalendarDate(id, d))
	}

	require.NoError(t, store.ApplyDimension(t.Context(), warehouse.CalendarTable, nil, dates))
}

func TestPostgresDimensions(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()

	inserts := warehouse.Customers{
		{ID: 1, Code: "C1", Region: "01", Status: "A"},
		{ID: 2, Code: "C1", Region: "02", Status: "A"},
	}
	require.NoError(t, store.ApplyDimension(ctx, warehouse.CustomerTable, nil, inserts))

	updates := warehouse.Customers{{ID: 1, Code: "C1", Region: "01", Status: "N"}}
	require.NoError(t, store.ApplyDimension(ctx, warehouse.CustomerTable, updates, warehouse.Customers{}))

	customers, err := store.Customers(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 2)

	byRegion := map[string]warehouse.Customer{}
	for _, c := range customers {
		byRegion[c.Region] = c
	}

	assert.Equal(t, "N", byRegion["01"].Status)
	assert.Equal(t, "A", byRegion["02"].Status)

	err = store.ApplyDimension(ctx, warehouse.TransactionTable, nil, nil)
	require.ErrorIs(t, err, warehouse.ErrNotDimension)
}

func TestPostgresFactsAndDelete(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()

	jan := period.Month(period.Date(2021, time.January, 1))
	feb := period.Month(period.Date(2021, time.February, 1))
	seedCalendar(t, store, period.New(jan.Start, feb.End))

	calendar, err := store.Calendar(ctx)
	require.NoError(t, err)
	require.Len(t, calendar, 59)

	janID, febID := calendar[0].ID, calendar[31].ID

	n, err := store.Append(ctx, warehouse.Transactions{
		{CustomerCode: "C1", TariffCode: "R1", TimeID: janID, Usage: 10, AmountDue: 50, AmountPaid: 50},
		{CustomerCode: "C1", TariffCode: "R1", TimeID: febID, Usage: 12, AmountDue: 60, AmountPaid: 55, Penalty: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = store.Append(ctx, warehouse.Disconnections{{CustomerCode: "C2", TimeID: janID}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	keys, err := store.TransactionKeys(ctx, jan)
	require.NoError(t, err)
	assert.Len(t, keys, 1)
	assert.True(t, keys.Has(warehouse.TransactionKey{CustomerCode: "C1", TimeID: janID}))

	deleted, err := store.DeleteFacts(ctx, jan)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted[warehouse.TransactionTable.Name])
	assert.Equal(t, int64(1), deleted[warehouse.DisconnectionTable.Name])

	keys, err = store.TransactionKeys(ctx, jan)
	require.NoError(t, err)
	assert.Empty(t, keys)

	// February is untouched.
	keys, err = store.TransactionKeys(ctx, feb)
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestPostgresHistory(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()

	jan := period.Month(period.Date(2021, time.January, 1))
	feb := period.Month(period.Date(2021, time.February, 1))
	base := time.Date(2021, time.March, 1, 8, 0, 0, 0, time.UTC)

	for i, p := range []period.Period{jan, feb} {
		id, err := store.InsertHistory(ctx, warehouse.HistoryEntry{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Start:     p.Start,
			End:       p.End,
			Status:    "Selesai",
		})
		require.NoError(t, err)
		assert.Positive(t, id)
	}

	ranges, err := store.HistoryRanges(ctx, "Selesai")
	require.NoError(t, err)
	require.Len(t, ranges, 2)
	assert.True(t, ranges[0].Start.Equal(jan.Start))

	ranges, err = store.HistoryRanges(ctx, "Gagal")
	require.NoError(t, err)
	assert.Empty(t, ranges)

	entries, total, err := store.HistoryPage(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Start.Equal(feb.Start), "newest entry first")

	overlaps, err := store.HistoryOverlaps(ctx, period.New(jan.End, feb.Start))
	require.NoError(t, err)
	assert.True(t, overlaps)

	march := period.Month(period.Date(2021, time.March, 1))
	overlaps, err = store.HistoryOverlaps(ctx, march)
	require.NoError(t, err)
	assert.False(t, overlaps)
}
