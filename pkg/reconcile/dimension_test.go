package reconcile

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tirta-dwh/dwhetl/internal/testutil"
	"github.com/tirta-dwh/dwhetl/pkg/period"
	"github.com/tirta-dwh/dwhetl/pkg/warehouse"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	return log
}

func TestPlan(t *testing.T) {
	tests := []struct {
		name       string
		existing   []warehouse.Customer
		candidates []warehouse.Customer
		expected   Changes[warehouse.Customer]
	}{
		{
			name:       "changed attribute becomes an update keeping the surrogate id",
			existing:   []warehouse.Customer{{ID: 5, Code: "C1", Status: "A"}},
			candidates: []warehouse.Customer{{Code: "C1", Status: "N"}},
			expected: Changes[warehouse.Customer]{
				Updates: []warehouse.Customer{{ID: 5, Code: "C1", Status: "N"}},
			},
		},
		{
			name:       "new keys are numbered from the existing maximum in order",
			existing:   []warehouse.Customer{{ID: 5, Code: "C1", Status: "A"}, {ID: 2, Code: "C2", Status: "A"}},
			candidates: []warehouse.Customer{{Code: "C9", Status: "A"}, {Code: "C10", Status: "A"}},
			expected: Changes[warehouse.Customer]{
				Inserts: []warehouse.Customer{{ID: 6, Code: "C9", Status: "A"}, {ID: 7, Code: "C10", Status: "A"}},
			},
		},
		{
			name:       "unchanged rows are left alone",
			existing:   []warehouse.Customer{{ID: 1, Code: "C1", Status: "A"}},
			candidates: []warehouse.Customer{{Code: "C1", Status: "A"}},
		},
		{
			name:       "empty dimension starts at one",
			candidates: []warehouse.Customer{{Code: "C1"}, {Code: "C2"}},
			expected: Changes[warehouse.Customer]{
				Inserts: []warehouse.Customer{{ID: 1, Code: "C1"}, {ID: 2, Code: "C2"}},
			},
		},
		{
			name:       "candidates are deduped by natural key, first wins",
			candidates: []warehouse.Customer{{Code: "C1", Status: "A"}, {Code: "C1", Status: "N"}},
			expected: Changes[warehouse.Customer]{
				Inserts: []warehouse.Customer{{ID: 1, Code: "C1", Status: "A"}},
			},
		},
		{
			name:       "region discriminates customers sharing a code",
			existing:   []warehouse.Customer{{ID: 3, Code: "C1", Region: "01", Status: "A"}},
			candidates: []warehouse.Customer{{Code: "C1", Region: "02", Status: "A"}, {Code: "C1", Region: "01", Status: "B"}},
			expected: Changes[warehouse.Customer]{
				Updates: []warehouse.Customer{{ID: 3, Code: "C1", Region: "01", Status: "B"}},
				Inserts: []warehouse.Customer{{ID: 4, Code: "C1", Region: "02", Status: "A"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CustomerDimension.Plan(tt.candidates, tt.existing)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestPlanWithoutAttributes(t *testing.T) {
	existing := []warehouse.Outcome{{ID: 1, Label: "Y"}}
	got := OutcomeDimension.Plan([]warehouse.Outcome{{Label: "Y"}, {Label: "Sudah"}}, existing)

	assert.Empty(t, got.Updates)
	assert.Equal(t, []warehouse.Outcome{{ID: 2, Label: "Sudah"}}, got.Inserts)
}

func TestMerge(t *testing.T) {
	existing := []warehouse.Tariff{{ID: 1, Code: "R1", Name: "Rumah"}, {ID: 2, Code: "N1", Name: "Niaga"}}
	changes := TariffDimension.Plan([]warehouse.Tariff{{Code: "N1", Name: "Niaga Kecil"}, {Code: "S1", Name: "Sosial"}}, existing)

	merged := TariffDimension.Merge(existing, changes)
	assert.Equal(t, []warehouse.Tariff{
		{ID: 1, Code: "R1", Name: "Rumah"},
		{ID: 2, Code: "N1", Name: "Niaga Kecil"},
		{ID: 3, Code: "S1", Name: "Sosial"},
	}, merged)
	assert.Equal(t, "Rumah", existing[0].Name)
}

func TestReconcilePersistsChanges(t *testing.T) {
	store := testutil.NewMemoryWarehouse()
	store.CustomerRows = []warehouse.Customer{{ID: 5, Code: "C1", Region: "01", Status: "A"}}

	candidates := []warehouse.Customer{
		{Code: "C1", Region: "01", Status: "N"},
		{Code: "C9", Region: "01", Status: "A"},
	}

	existing, err := store.Customers(t.Context())
	require.NoError(t, err)

	changes, merged, err := Reconcile(t.Context(), testLogger(), store, CustomerDimension, candidates, existing)
	require.NoError(t, err)
	assert.Len(t, changes.Updates, 1)
	assert.Len(t, changes.Inserts, 1)
	assert.Equal(t, merged, store.CustomerRows)
	assert.Equal(t, 1, store.Updates[warehouse.CustomerTable.Name])

	// a second pass over the persisted state writes nothing
	existing, err = store.Customers(t.Context())
	require.NoError(t, err)

	again, _, err := Reconcile(t.Context(), testLogger(), store, CustomerDimension, candidates, existing)
	require.NoError(t, err)
	assert.True(t, again.Empty())
	assert.Equal(t, 1, store.Updates[warehouse.CustomerTable.Name])
}

func TestReconcileFailure(t *testing.T) {
	store := testutil.NewMemoryWarehouse()
	store.FailApply[warehouse.TariffTable.Name] = true

	_, _, err := Reconcile(t.Context(), testLogger(), store, TariffDimension, []warehouse.Tariff{{Code: "R1"}}, nil)
	require.ErrorIs(t, err, testutil.ErrInjected)

	// nothing to write means the store is not touched
	_, _, err = Reconcile(t.Context(), testLogger(), store, TariffDimension, nil, nil)
	require.NoError(t, err)
}

func TestProperty_DimensionReconciliation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	// batches of customer codes drawn from a small space so keys repeat across batches
	toCandidates := func(codes []int, status int) []warehouse.Customer {
		out := make([]warehouse.Customer, len(codes))
		for i, c := range codes {
			out[i] = warehouse.Customer{Code: fmt.Sprintf("C%d", c), Region: "01", Status: fmt.Sprintf("S%d", (c+status)%3)}
		}

		return out
	}

	properties.Property("surrogate ids stay unique and the maximum never decreases", prop.ForAll(
		func(batches [][]int, status int) bool {
			var dim []warehouse.Customer

			var maxID int64

			for i, codes := range batches {
				changes := CustomerDimension.Plan(toCandidates(codes, status+i), dim)
				dim = CustomerDimension.Merge(dim, changes)

				ids := map[int64]bool{}
				keys := map[warehouse.CustomerKey]bool{}

				var newMax int64

				for _, c := range dim {
					if ids[c.ID] || keys[c.Key()] {
						return false
					}

					ids[c.ID] = true
					keys[c.Key()] = true
					newMax = max(newMax, c.ID)
				}

				if newMax < maxID {
					return false
				}

				maxID = newMax
			}

			return true
		},
		gen.SliceOf(gen.SliceOf(gen.IntRange(0, 30))),
		gen.IntRange(0, 2),
	))

	properties.Property("reconciling the same candidates twice changes nothing the second time", prop.ForAll(
		func(existingCodes, codes []int) bool {
			existing := CustomerDimension.Merge(nil, CustomerDimension.Plan(toCandidates(existingCodes, 1), nil))
			candidates := toCandidates(codes, 2)

			after := CustomerDimension.Merge(existing, CustomerDimension.Plan(candidates, existing))

			return CustomerDimension.Plan(candidates, after).Empty()
		},
		gen.SliceOf(gen.IntRange(0, 30)),
		gen.SliceOf(gen.IntRange(0, 30)),
	))

	properties.TestingRun(t)
}

func TestCalendarGenerate(t *testing.T) {
	b := NewCalendarBuilder(period.Date(2020, time.January, 1))

	dates := b.Generate(time.Date(2020, time.January, 3, 18, 0, 0, 0, time.UTC))
	require.Len(t, dates, 3)
	assert.Equal(t, warehouse.NewCalendarDate(0, period.Date(2020, time.January, 3)), dates[2])

	assert.Nil(t, b.Generate(period.Date(2019, time.December, 31)))
	assert.Len(t, b.Generate(period.Date(2020, time.December, 31)), 366)
}

func TestCalendarEnsure(t *testing.T) {
	store := testutil.NewMemoryWarehouse()
	b := NewCalendarBuilder(period.Date(2020, time.January, 1))

	full, err := b.Ensure(t.Context(), testLogger(), store, nil, period.Date(2020, time.January, 10))
	require.NoError(t, err)
	require.Len(t, full, 10)
	assert.Equal(t, int64(1), full[0].ID)
	assert.Equal(t, int64(10), full[9].ID)
	assert.Len(t, store.CalendarRows, 10)

	full, err = b.Ensure(t.Context(), testLogger(), store, store.CalendarRows, period.Date(2020, time.January, 12))
	require.NoError(t, err)
	require.Len(t, full, 12)
	assert.Equal(t, warehouse.NewCalendarDate(12, period.Date(2020, time.January, 12)), full[11])
	assert.Len(t, store.CalendarRows, 12)

	// nothing missing, nothing written
	_, err = b.Ensure(t.Context(), testLogger(), store, store.CalendarRows, period.Date(2020, time.January, 5))
	require.NoError(t, err)
	assert.Len(t, store.CalendarRows, 12)
}

func TestCalendarIndex(t *testing.T) {
	idx := NewCalendarIndex([]warehouse.CalendarDate{warehouse.NewCalendarDate(42, period.Date(2021, time.March, 2))})

	id, ok := idx.Lookup(time.Date(2021, time.March, 2, 14, 5, 0, 0, time.UTC))
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, ok = idx.Lookup(period.Date(2021, time.March, 3))
	assert.False(t, ok)
}
