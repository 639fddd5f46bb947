// Package warehouse provides typed access to the dimensional warehouse: the
// dimension and fact tables the ETL engine writes and the history log it keeps.
package warehouse

import "slices"

// Table describes a warehouse table written by the engine.
type Table struct {
	// Name is the physical table name
	Name string
	// Columns lists every column the engine writes, in value order
	Columns []string
	// Key lists the natural key columns
	Key []string
	// Attributes lists the columns overwritten when a dimension row changes
	Attributes []string
	// ID is the surrogate key column of a dimension, empty for facts
	ID string
	// Fact marks fact tables
	Fact bool
}

// Warehouse tables. The names are read by the reporting UI and must not change.
//
//nolint:gochecknoglobals // immutable table descriptors
var (
	CustomerTable = Table{
		Name:       "dim_pelanggan",
		Columns:    []string{"id_pelanggan", "kodepelanggan", "wilayah", "status"},
		Key:        []string{"kodepelanggan", "wilayah"},
		Attributes: []string{"status"},
		ID:         "id_pelanggan",
	}
	TariffTable = Table{
		Name:       "dim_goltarif",
		Columns:    []string{"id_goltarif", "kodegoltarif", "namagoltarif"},
		Key:        []string{"kodegoltarif"},
		Attributes: []string{"namagoltarif"},
		ID:         "id_goltarif",
	}
	CalendarTable = Table{
		Name:    "dim_waktu",
		Columns: []string{"id_waktu", "date", "day", "month", "year"},
		Key:     []string{"date"},
		ID:      "id_waktu",
	}
	ComplaintTypeTable = Table{
		Name:    "dim_jenispengaduan",
		Columns: []string{"id_jenispengaduan", "jenis_pengaduan"},
		Key:     []string{"jenis_pengaduan"},
		ID:      "id_jenispengaduan",
	}
	OutcomeTable = Table{
		Name:    "dim_realisasi",
		Columns: []string{"id_realisasi", "jenis_realisasi"},
		Key:     []string{"jenis_realisasi"},
		ID:      "id_realisasi",
	}
	TransactionTable = Table{
		Name:    "fact_transaksi",
		Columns: []string{"kodepelanggan", "kodegoltarif", "id_waktu", "pemakaian", "tagihan", "jumlahbayar", "denda"},
		Key:     []string{"kodepelanggan", "id_waktu"},
		Fact:    true,
	}
	ComplaintTable = Table{
		Name:    "fact_pengaduan",
		Columns: []string{"idpelanggan", "id_jenispengaduan", "id_waktu"},
		Key:     []string{"idpelanggan", "id_waktu", "id_jenispengaduan"},
		Fact:    true,
	}
	DisconnectionTable = Table{
		Name:    "fact_pemutusan",
		Columns: []string{"kodepelanggan", "id_realisasi", "id_waktu"},
		Key:     []string{"kodepelanggan", "id_waktu"},
		Fact:    true,
	}
	NewConnectionTable = Table{
		Name:    "fact_sbbaru",
		Columns: []string{"kodecpelanggan", "wilayah", "id_realisasi", "id_waktu", "jumlah"},
		Key:     []string{"kodecpelanggan", "id_waktu"},
		Fact:    true,
	}
	HistoryTable = Table{
		Name:    "etl_history",
		Columns: []string{"timestamp", "start_date", "end_date", "status"},
		ID:      "id_riwayat",
	}
)

// FactTables lists every fact table, in load order.
func FactTables() []Table {
	return []Table{TransactionTable, ComplaintTable, DisconnectionTable, NewConnectionTable}
}

// DimensionTables lists every dimension table.
func DimensionTables() []Table {
	return []Table{CustomerTable, TariffTable, CalendarTable, ComplaintTypeTable, OutcomeTable}
}

// ColumnIndex returns the position of column in t.Columns, or -1.
func (t Table) ColumnIndex(column string) int {
	return slices.Index(t.Columns, column)
}

// Rows is a typed batch of rows bound for one table.
type Rows interface {
	// Table returns the destination table
	Table() Table
	// Len returns the number of rows
	Len() int
	// Values returns each row's values in Table().Columns order
	Values() [][]any
}
