package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tirta-dwh/dwhetl/internal/testutil"
	"github.com/tirta-dwh/dwhetl/pkg/period"
	"github.com/tirta-dwh/dwhetl/pkg/source"
	"github.com/tirta-dwh/dwhetl/pkg/warehouse"
)

var ptr = testutil.Ptr[float64]

// testCalendar numbers every day of 2021 from 1.
func testCalendar() CalendarIndex {
	b := NewCalendarBuilder(period.Date(2021, time.January, 1))
	dates := b.Generate(period.Date(2021, time.December, 31))

	for i := range dates {
		dates[i].ID = int64(i + 1)
	}

	return NewCalendarIndex(dates)
}

func timeID(t *testing.T, cal CalendarIndex, d time.Time) int64 {
	t.Helper()

	id, ok := cal.Lookup(d)
	require.True(t, ok)

	return id
}

func TestAmountDue(t *testing.T) {
	tests := []struct {
		name     string
		due      *float64
		paid     *float64
		penalty  *float64
		expected float64
		ok       bool
	}{
		{name: "present amount is kept", due: ptr(100), paid: ptr(80), penalty: ptr(5), expected: 100, ok: true},
		{name: "missing with zero penalty uses paid", paid: ptr(80), penalty: ptr(0), expected: 80, ok: true},
		{name: "missing with penalty subtracts it", paid: ptr(80), penalty: ptr(5), expected: 75, ok: true},
		{name: "missing with unknown paid is dropped", penalty: ptr(0)},
		{name: "missing with unknown penalty is dropped", paid: ptr(80)},
		{name: "nothing known is dropped"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AmountDue(tt.due, tt.paid, tt.penalty)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.expected, got, 1e-9)
		})
	}
}

func TestResolveTransactions(t *testing.T) {
	cal := testCalendar()
	jan := timeID(t, cal, period.Date(2021, time.January, 1))

	readings := []source.MeterReading{
		{CustomerCode: "C1", Year: 2021, Month: 1, TariffCode: "R1", Usage: ptr(12), AmountDue: ptr(60000)},
		{CustomerCode: "C1", Year: 2021, Month: 1, TariffCode: "R9", Usage: ptr(99)}, // duplicate
		{CustomerCode: "C2", Year: 2021, Month: 1, TariffCode: "R2"},
		{CustomerCode: "C3", Year: 2021, Month: 1, TariffCode: "R1", Usage: ptr(3)},
	}
	payments := []source.Payment{
		{CustomerCode: "C1", Year: 2021, Month: 1, AmountPaid: ptr(60000), Penalty: ptr(0)},
		{CustomerCode: "C2", Year: 2021, Month: 1, AmountPaid: ptr(55000), Penalty: ptr(5000)},
		{CustomerCode: "C4", Year: 2021, Month: 1, AmountPaid: ptr(10000), Penalty: ptr(0)}, // payment only
		{CustomerCode: "C5", Year: 2019, Month: 1, AmountPaid: ptr(1), Penalty: ptr(0)},     // outside calendar
	}

	facts, stats := ResolveTransactions(readings, payments, cal, warehouse.NewKeySet[warehouse.TransactionKey]())

	assert.Equal(t, warehouse.Transactions{
		{CustomerCode: "C1", TariffCode: "R1", TimeID: jan, Usage: 12, AmountDue: 60000, AmountPaid: 60000},
		{CustomerCode: "C2", TariffCode: "R2", TimeID: jan, AmountDue: 50000, AmountPaid: 55000, Penalty: 5000},
		{CustomerCode: "C4", TimeID: jan, AmountDue: 10000, AmountPaid: 10000},
	}, facts)

	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 1, stats.Invalid) // C3 has no amount due and no payment
	assert.Equal(t, 1, stats.UnknownDate)
	assert.Equal(t, 3, stats.New)
}

func TestResolveTransactionsSkipsLoadedKeys(t *testing.T) {
	cal := testCalendar()
	jan := timeID(t, cal, period.Date(2021, time.January, 1))

	readings := []source.MeterReading{
		{CustomerCode: "C1", Year: 2021, Month: 1, AmountDue: ptr(1)},
		{CustomerCode: "C2", Year: 2021, Month: 1, AmountDue: ptr(2)},
	}

	existing := warehouse.NewKeySet(warehouse.TransactionKey{CustomerCode: "C1", TimeID: jan})

	facts, stats := ResolveTransactions(readings, nil, cal, existing)
	require.Len(t, facts, 1)
	assert.Equal(t, "C2", facts[0].CustomerCode)
	assert.Equal(t, 1, stats.Existing)

	// re-resolving after loading yields nothing
	for _, f := range facts {
		existing.Add(f.Key())
	}

	facts, _ = ResolveTransactions(readings, nil, cal, existing)
	assert.Empty(t, facts)
}

func TestResolveComplaints(t *testing.T) {
	cal := testCalendar()
	at := func(day int) *time.Time {
		v := time.Date(2021, time.February, day, 9, 30, 0, 0, time.UTC)
		return &v
	}
	str := testutil.Ptr[string]

	rows := []source.Complaint{
		{CustomerID: str("P1"), Type: str("Air Keruh"), Timestamp: at(1)},
		{CustomerID: str("P1"), Type: str("air keruh"), Timestamp: at(1)}, // same after normalising
		{CustomerID: str("P2"), Type: nil, Timestamp: at(2)},
		{CustomerID: str("P3"), Type: str(""), Timestamp: at(3)},
		{CustomerID: str("P4"), Type: str("Meter Rusak"), Timestamp: at(4)},
		{CustomerID: nil, Type: str("Meter Rusak"), Timestamp: at(5)},
		{CustomerID: str("P6"), Type: str("Meter Rusak"), Timestamp: nil},
	}

	types := []warehouse.ComplaintType{{ID: 4, Label: "meter rusak"}}
	existing := warehouse.NewKeySet(warehouse.ComplaintKey{CustomerID: "P4", TimeID: timeID(t, cal, *at(4)), ComplaintTypeID: 4})

	res := ResolveComplaints(rows, cal, types, existing)

	assert.Equal(t, warehouse.ComplaintTypes{{ID: 5, Label: "air keruh"}, {ID: 6, Label: OtherComplaintType}}, res.NewTypes)
	assert.Equal(t, warehouse.Complaints{
		{CustomerID: "P1", ComplaintTypeID: 5, TimeID: timeID(t, cal, *at(1))},
		{CustomerID: "P2", ComplaintTypeID: 6, TimeID: timeID(t, cal, *at(2))},
		{CustomerID: "P3", ComplaintTypeID: 6, TimeID: timeID(t, cal, *at(3))},
	}, res.Facts)
	assert.Equal(t, 2, res.Stats.Invalid)
	assert.Equal(t, 1, res.Stats.Duplicates)
	assert.Equal(t, 1, res.Stats.Existing)
}

func TestComplaintTypeLabel(t *testing.T) {
	s := "Tagihan Tinggi"
	empty := ""

	assert.Equal(t, "tagihan tinggi", ComplaintTypeLabel(&s))
	assert.Equal(t, OtherComplaintType, ComplaintTypeLabel(&empty))
	assert.Equal(t, OtherComplaintType, ComplaintTypeLabel(nil))
}

func TestResolveDisconnections(t *testing.T) {
	cal := testCalendar()
	str := testutil.Ptr[string]
	d1 := period.Date(2021, time.March, 1)
	d2 := period.Date(2021, time.March, 2)

	rows := []source.Disconnection{
		{CustomerCode: "C1", Date: d1, Outcome: str(" Sudah ")},
		{CustomerCode: "C1", Date: d1, Outcome: str("Belum")}, // duplicate
		{CustomerCode: "C2", Date: d1, Outcome: str("   ")},
		{CustomerCode: "C3", Date: d2, Outcome: nil},
		{CustomerCode: "C4", Date: d2, Outcome: str("Belum")},
	}

	existing := warehouse.NewKeySet(warehouse.DisconnectionKey{CustomerCode: "C4", TimeID: timeID(t, cal, d2)})

	res := ResolveDisconnections(rows, cal, existing)

	assert.Equal(t, []string{"Sudah", "Belum"}, res.Labels)
	require.Len(t, res.Pending, 3)
	assert.Equal(t, "Sudah", res.Pending[0].Outcome)
	assert.Empty(t, res.Pending[1].Outcome)
	assert.Equal(t, 1, res.Stats.Duplicates)
	assert.Equal(t, 1, res.Stats.Existing)

	facts := BackfillDisconnections(res.Pending, []warehouse.Outcome{{ID: 1, Label: "Sudah"}, {ID: 2, Label: "Belum"}})
	require.NotNil(t, facts[0].OutcomeID)
	assert.Equal(t, int64(1), *facts[0].OutcomeID)
	assert.Nil(t, facts[1].OutcomeID)
	assert.Nil(t, facts[2].OutcomeID)
}

func TestResolveNewConnections(t *testing.T) {
	cal := testCalendar()
	str := testutil.Ptr[string]
	n := testutil.Ptr[int64]
	d := period.Date(2021, time.April, 7)

	rows := []source.NewConnection{
		{RegistrationCode: "01REG001", Date: d, Outcome: str("T"), Count: n(2)},  // count forces Y
		{RegistrationCode: "01REG001", Date: d, Outcome: str("T"), Count: n(0)},  // duplicate
		{RegistrationCode: "02REG002", Date: d, Outcome: str(" T "), Count: nil}, // null count
		{RegistrationCode: "03REG003", Date: d, Outcome: str(""), Count: n(0)},   // blank outcome
		{RegistrationCode: "05REG005", Date: d, Outcome: nil, Count: nil},        // null outcome
		{RegistrationCode: "06REG006", Date: d, Outcome: nil, Count: n(-1)},      // null outcome, negative count
		{RegistrationCode: "04XYZ004", Date: d, Outcome: str("Y"), Count: n(1)},  // not a registration
	}

	res := ResolveNewConnections(rows, cal, warehouse.NewKeySet[warehouse.NewConnectionKey]())

	assert.Equal(t, []string{RealizedOutcome, "T"}, res.Labels)
	assert.Equal(t, 4, res.Stats.Invalid)
	assert.Equal(t, 1, res.Stats.Duplicates)
	require.Len(t, res.Pending, 2)
	assert.NotContains(t, res.Labels, "None")

	assert.Equal(t, PendingNewConnection{
		Fact:    warehouse.NewConnection{RegistrationCode: "01REG001", Region: "01", TimeID: timeID(t, cal, d), Count: 2},
		Outcome: RealizedOutcome,
	}, res.Pending[0])
	assert.Equal(t, int64(0), res.Pending[1].Fact.Count)
	assert.Equal(t, "T", res.Pending[1].Outcome)
}

func TestOutcomeCandidates(t *testing.T) {
	got := OutcomeCandidates([]string{"Sudah", "Belum"}, []string{"Y", "Sudah", "T"})
	assert.Equal(t, []warehouse.Outcome{{Label: "Belum"}, {Label: "Sudah"}, {Label: "T"}, {Label: "Y"}}, got)
}

func TestRegionOf(t *testing.T) {
	assert.Equal(t, "01", regionOf("01REG9"))
	assert.Equal(t, "7", regionOf("7"))
	assert.Equal(t, "", regionOf(""))
}

func TestFactDedupAgainstExisting(t *testing.T) {
	// existing (C1, 42); candidates (C1, 42) and (C2, 43) leave only (C2, 43)
	existing := warehouse.NewKeySet(warehouse.DisconnectionKey{CustomerCode: "C1", TimeID: 42})
	candidates := []warehouse.Disconnection{
		{CustomerCode: "C1", TimeID: 42},
		{CustomerCode: "C2", TimeID: 43},
	}

	out, loaded, dup := keepNew(candidates, warehouse.Disconnection.Key, existing)
	assert.Equal(t, []warehouse.Disconnection{{CustomerCode: "C2", TimeID: 43}}, out)
	assert.Equal(t, 1, loaded)
	assert.Zero(t, dup)
	assert.Len(t, existing, 1)
}
