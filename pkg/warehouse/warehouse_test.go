package warehouse

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMock = errors.New("mock failure")

// mockClient records statements and copies instead of talking to PostgreSQL.
type mockClient struct {
	execs   []string
	copies  map[string][][]any
	execErr error
	txCalls int
}

func (m *mockClient) Query(_ context.Context, _ string, _ []any, _ func(pgx.Rows) error) error {
	return errMock
}

func (m *mockClient) Exec(_ context.Context, sql string, _ ...any) (int64, error) {
	m.execs = append(m.execs, sql)
	return 0, m.execErr
}

func (m *mockClient) CopyFrom(_ context.Context, table string, _ []string, rows [][]any) (int64, error) {
	if m.copies == nil {
		m.copies = map[string][][]any{}
	}

	m.copies[table] = append(m.copies[table], rows...)

	return int64(len(rows)), nil
}

func (m *mockClient) InTx(_ context.Context, _ func(pgx.Tx) error) error {
	m.txCalls++
	return nil
}

func (m *mockClient) Start() error { return nil }
func (m *mockClient) Stop() error  { return nil }

func newTestStore(client *mockClient) *PostgresStore {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	return NewPostgresStore(log, client)
}

func TestUpdateStatement(t *testing.T) {
	sql, cols := updateStatement(CustomerTable)
	assert.Equal(t, "UPDATE dim_pelanggan SET status = $1 WHERE kodepelanggan = $2 AND wilayah = $3", sql)
	assert.Equal(t, []string{"status", "kodepelanggan", "wilayah"}, cols)

	sql, cols = updateStatement(TariffTable)
	assert.Equal(t, "UPDATE dim_goltarif SET namagoltarif = $1 WHERE kodegoltarif = $2", sql)
	assert.Equal(t, []string{"namagoltarif", "kodegoltarif"}, cols)
}

func TestRowsFollowColumnOrder(t *testing.T) {
	outcome := int64(3)

	tests := []struct {
		name     string
		rows     Rows
		expected []any
	}{
		{
			name:     "customer",
			rows:     Customers{{ID: 7, Code: "C1", Region: "01", Status: "A"}},
			expected: []any{int64(7), "C1", "01", "A"},
		},
		{
			name:     "transaction",
			rows:     Transactions{{CustomerCode: "C1", TariffCode: "R1", TimeID: 42, Usage: 10, AmountDue: 50, AmountPaid: 55, Penalty: 5}},
			expected: []any{"C1", "R1", int64(42), 10.0, 50.0, 55.0, 5.0},
		},
		{
			name:     "new connection",
			rows:     NewConnections{{RegistrationCode: "01REG9", Region: "01", OutcomeID: &outcome, TimeID: 9, Count: 2}},
			expected: []any{"01REG9", "01", &outcome, int64(9), int64(2)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := tt.rows.Values()
			require.Len(t, values, 1)
			assert.Equal(t, tt.expected, values[0])
			assert.Len(t, values[0], len(tt.rows.Table().Columns))
		})
	}
}

func TestTableDescriptorsAreConsistent(t *testing.T) {
	for _, table := range append(DimensionTables(), FactTables()...) {
		for _, col := range append(append([]string{}, table.Key...), table.Attributes...) {
			assert.GreaterOrEqual(t, table.ColumnIndex(col), 0, "%s.%s", table.Name, col)
		}

		if !table.Fact {
			assert.Equal(t, 0, table.ColumnIndex(table.ID), table.Name)
		}
	}
}

func TestNewCalendarDate(t *testing.T) {
	d := NewCalendarDate(12, time.Date(2021, time.February, 28, 17, 30, 0, 0, time.UTC))
	assert.Equal(t, CalendarDate{ID: 12, Date: time.Date(2021, time.February, 28, 0, 0, 0, 0, time.UTC), Day: 28, Month: 2, Year: 2021}, d)
}

func TestKeySet(t *testing.T) {
	s := NewKeySet(TransactionKey{"C1", 42})
	assert.True(t, s.Has(TransactionKey{"C1", 42}))
	assert.False(t, s.Has(TransactionKey{"C1", 43}))
	assert.True(t, s.Add(TransactionKey{"C1", 43}))
	assert.False(t, s.Add(TransactionKey{"C1", 43}))
	assert.Len(t, s, 2)
}

func TestApplyDimensionRejectsMismatchedTables(t *testing.T) {
	client := &mockClient{}
	store := newTestStore(client)

	err := store.ApplyDimension(t.Context(), CustomerTable, Tariffs{{ID: 1}}, nil)
	require.ErrorIs(t, err, ErrTableMismatch)

	err = store.ApplyDimension(t.Context(), TransactionTable, nil, Transactions{{}})
	require.ErrorIs(t, err, ErrNotDimension)

	require.NoError(t, store.ApplyDimension(t.Context(), CustomerTable, Customers{}, Customers{{ID: 1}}))
	assert.Equal(t, 1, client.txCalls)
}

func TestAppend(t *testing.T) {
	client := &mockClient{}
	store := newTestStore(client)

	n, err := store.Append(t.Context(), Complaints{{CustomerID: "P1", ComplaintTypeID: 1, TimeID: 5}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, [][]any{{"P1", int64(1), int64(5)}}, client.copies["fact_pengaduan"])

	n, err = store.Append(t.Context(), Complaints{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMigrate(t *testing.T) {
	client := &mockClient{}
	require.NoError(t, newTestStore(client).Migrate(t.Context()))
	assert.Len(t, client.execs, len(schema))

	for _, table := range append(DimensionTables(), FactTables()...) {
		found := slices.ContainsFunc(client.execs, func(stmt string) bool {
			return strings.HasPrefix(stmt, "CREATE TABLE IF NOT EXISTS "+table.Name+" (")
		})
		assert.True(t, found, table.Name)
	}

	failing := &mockClient{execErr: errMock}
	require.ErrorIs(t, newTestStore(failing).Migrate(t.Context()), errMock)
	assert.Len(t, failing.execs, 1)
}
