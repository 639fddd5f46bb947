package source

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// Entity names a source entity.
type Entity string

// Source entities, in extraction order.
const (
	EntityCustomer      Entity = "customer"
	EntityTariff        Entity = "tariff"
	EntityMeterReading  Entity = "meter_reading"
	EntityPayment       Entity = "payment"
	EntityDisconnection Entity = "disconnection"
	EntityComplaint     Entity = "complaint"
	EntityNewConnection Entity = "new_connection"
)

// Entities lists every source entity in extraction order.
func Entities() []Entity {
	return []Entity{
		EntityCustomer, EntityTariff, EntityMeterReading, EntityPayment,
		EntityDisconnection, EntityComplaint, EntityNewConnection,
	}
}

// entitySpec holds the columns read for an entity and the expression its
// window is matched on. Master tables have no date expression.
type entitySpec struct {
	columns []string
	date    string
}

//nolint:gochecknoglobals // immutable entity definitions
var specs = map[Entity]entitySpec{
	EntityCustomer: {
		columns: []string{"kodepelanggan", "COALESCE(wilayah, '')", "COALESCE(status, '')"},
	},
	EntityTariff: {
		columns: []string{"kodegoltarif", "COALESCE(namagoltarif, '')"},
	},
	EntityMeterReading: {
		columns: []string{"kodepelanggan", "tahun::int", "bulan::int", "COALESCE(kodegoltarif, '')",
			"pemakaian::float8", "tagihan::float8"},
		date: "make_date(tahun::int, bulan::int, 1)",
	},
	EntityPayment: {
		columns: []string{"kodepelanggan", "tahun::int", "bulan::int", "jumlahbayar::float8", "denda::float8"},
		date:    "make_date(tahun::int, bulan::int, 1)",
	},
	EntityDisconnection: {
		columns: []string{"kodepelanggan", "tglstk::date", "realisasistk"},
		date:    "tglstk::date",
	},
	EntityComplaint: {
		columns: []string{"idpelanggan", "jnspengaduan", "tgl::timestamp"},
		date:    "tgl::timestamp::date",
	},
	EntityNewConnection: {
		columns: []string{"kodecpelanggan", "tglreg::date", "realisasi", "jumlah::bigint"},
		date:    "tglreg::date",
	},
}

const selectTemplate = `SELECT {{ .columns | join ", " }} FROM {{ .schema | default "public" }}.{{ .table }}
{{- if .date }} WHERE {{ .date }} BETWEEN $1 AND $2{{ end }}`

// QueryBuilder renders the extraction query of each entity.
type QueryBuilder struct {
	tmpl   *template.Template
	schema string
	tables map[Entity]string
}

// NewQueryBuilder parses the extraction template for the configured tables.
func NewQueryBuilder(schema string, tables Tables) (*QueryBuilder, error) {
	tmpl, err := template.New("extract").Funcs(sprig.TxtFuncMap()).Parse(selectTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	return &QueryBuilder{tmpl: tmpl, schema: schema, tables: tables.byEntity()}, nil
}

// Build returns the query for entity and whether it takes the window bounds as $1 and $2.
func (q *QueryBuilder) Build(entity Entity) (string, bool, error) {
	spec, ok := specs[entity]
	if !ok {
		return "", false, fmt.Errorf("unknown entity %q", entity)
	}

	var buf bytes.Buffer
	if err := q.tmpl.Execute(&buf, map[string]any{
		"columns": spec.columns,
		"schema":  q.schema,
		"table":   q.tables[entity],
		"date":    spec.date,
	}); err != nil {
		return "", false, fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), spec.date != "", nil
}
