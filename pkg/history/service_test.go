package history

import (
	"testing"
	"time"

	"github.com/creasty/defaults"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tirta-dwh/dwhetl/internal/testutil"
	"github.com/tirta-dwh/dwhetl/pkg/period"
)

func testConfig(t *testing.T) Config {
	t.Helper()

	var cfg Config
	require.NoError(t, defaults.Set(&cfg))

	return cfg
}

func newTestService(t *testing.T, cache *PageCache) (*Service, *testutil.MemoryWarehouse, *clockwork.FakeClock) {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	store := testutil.NewMemoryWarehouse()
	clock := clockwork.NewFakeClockAt(time.Date(2021, time.March, 15, 10, 0, 0, 0, time.UTC))

	return NewService(log, store, cache, clock, testConfig(t)), store, clock
}

func TestConfigDefaults(t *testing.T) {
	cfg := testConfig(t)

	assert.Equal(t, "Selesai", cfg.Status)
	assert.Equal(t, 20, cfg.DefaultPageSize)
	assert.Equal(t, 200, cfg.MaxPageSize)
	require.NoError(t, cfg.Validate())

	cfg.Status = ""
	require.ErrorIs(t, cfg.Validate(), ErrStatusRequired)

	cfg = testConfig(t)
	cfg.DefaultPageSize = 500
	require.ErrorIs(t, cfg.Validate(), ErrInvalidPageSize)
}

func TestPageSize(t *testing.T) {
	cfg := testConfig(t)

	assert.Equal(t, 20, cfg.pageSize(0))
	assert.Equal(t, 20, cfg.pageSize(-3))
	assert.Equal(t, 7, cfg.pageSize(7))
	assert.Equal(t, 200, cfg.pageSize(1000))
}

func TestRecordAndRanges(t *testing.T) {
	svc, store, clock := newTestService(t, nil)
	jan := period.Month(period.Date(2021, time.January, 1))

	entry, err := svc.Record(t.Context(), jan)
	require.NoError(t, err)
	assert.Equal(t, int64(1), entry.ID)
	assert.Equal(t, "Selesai", entry.Status)
	assert.Equal(t, clock.Now().UTC(), entry.Timestamp)

	// entries with another status never count as processed
	store.LogPeriod(period.Month(period.Date(2021, time.February, 1)), "Gagal", clock.Now())

	ranges, err := svc.Ranges(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []period.Period{jan}, ranges)

	pending, err := svc.Unprocessed(t.Context(), period.NewTracker(period.Date(2021, time.January, 1)))
	require.NoError(t, err)
	assert.Equal(t, []period.Period{
		period.Month(period.Date(2021, time.February, 1)),
		period.New(period.Date(2021, time.March, 1), period.Date(2021, time.March, 15)),
	}, pending)
}

func TestRecordFailure(t *testing.T) {
	svc, store, _ := newTestService(t, nil)
	store.FailHistory = true

	_, err := svc.Record(t.Context(), period.Month(period.Date(2021, time.January, 1)))
	require.ErrorIs(t, err, testutil.ErrInjected)
}

func TestOverlaps(t *testing.T) {
	svc, store, clock := newTestService(t, nil)
	store.LogPeriod(period.New(period.Date(2021, time.January, 10), period.Date(2021, time.January, 20)), "Selesai", clock.Now())

	tests := []struct {
		name     string
		p        period.Period
		overlaps bool
	}{
		{name: "contains start", p: period.New(period.Date(2021, time.January, 15), period.Date(2021, time.February, 5)), overlaps: true},
		{name: "contains end", p: period.New(period.Date(2021, time.January, 1), period.Date(2021, time.January, 10)), overlaps: true},
		{name: "disjoint", p: period.New(period.Date(2021, time.January, 21), period.Date(2021, time.January, 31))},
		// an entry strictly inside the requested period contains neither bound
		{name: "strictly enclosing", p: period.New(period.Date(2021, time.January, 1), period.Date(2021, time.January, 31))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Overlaps(t.Context(), tt.p)
			require.NoError(t, err)
			assert.Equal(t, tt.overlaps, got)
		})
	}
}

func TestListPaginates(t *testing.T) {
	svc, store, clock := newTestService(t, nil)

	for m := time.January; m <= time.May; m++ {
		store.LogPeriod(period.Month(period.Date(2021, m, 1)), "Selesai", clock.Now().Add(time.Duration(m)*time.Hour))
	}

	page, err := svc.List(t.Context(), 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, time.May, page.Entries[0].Start.Month())
	assert.Equal(t, time.April, page.Entries[1].Start.Month())

	page, err = svc.List(t.Context(), 2, 4)
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, time.January, page.Entries[0].Start.Month())

	page, err = svc.List(t.Context(), 0, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Entries)
	assert.Equal(t, 20, page.Limit)

	_, err = svc.List(t.Context(), 10, -1)
	require.ErrorIs(t, err, ErrInvalidOffset)
}

func TestListUsesCacheUntilRecord(t *testing.T) {
	mr, client := testutil.NewRedis(t)
	svc, store, clock := newTestService(t, NewPageCache(client, time.Minute))

	store.LogPeriod(period.Month(period.Date(2021, time.January, 1)), "Selesai", clock.Now())

	page, err := svc.List(t.Context(), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.True(t, mr.Exists(pagesKey))

	// written behind the service's back, so only visible once the cache is dropped
	store.LogPeriod(period.Month(period.Date(2021, time.February, 1)), "Selesai", clock.Now())

	page, err = svc.List(t.Context(), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	_, err = svc.Record(t.Context(), period.Month(period.Date(2021, time.March, 1)))
	require.NoError(t, err)
	assert.False(t, mr.Exists(pagesKey))

	page, err = svc.List(t.Context(), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
}

func TestPageCacheExpires(t *testing.T) {
	mr, client := testutil.NewRedis(t)
	cache := NewPageCache(client, time.Minute)

	require.NoError(t, cache.Set(t.Context(), &Page{Total: 3, Limit: 20}))

	got, err := cache.Get(t.Context(), 20, 0)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(3), got.Total)

	mr.FastForward(2 * time.Minute)

	got, err = cache.Get(t.Context(), 20, 0)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestNilPageCache(t *testing.T) {
	var cache *PageCache

	got, err := cache.Get(t.Context(), 20, 0)
	require.NoError(t, err)
	assert.Nil(t, got)
	require.NoError(t, cache.Set(t.Context(), &Page{}))
	require.NoError(t, cache.Invalidate(t.Context()))
}
