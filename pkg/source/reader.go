package source

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/tirta-dwh/dwhetl/pkg/period"
	"github.com/tirta-dwh/dwhetl/pkg/postgres"
)

// Reader reads source entities. Windowed reads return the rows whose entity
// date falls inside the period.
type Reader interface {
	Customers(ctx context.Context) ([]Customer, error)
	Tariffs(ctx context.Context) ([]Tariff, error)
	MeterReadings(ctx context.Context, p period.Period) ([]MeterReading, error)
	Payments(ctx context.Context, p period.Period) ([]Payment, error)
	Disconnections(ctx context.Context, p period.Period) ([]Disconnection, error)
	Complaints(ctx context.Context, p period.Period) ([]Complaint, error)
	NewConnections(ctx context.Context, p period.Period) ([]NewConnection, error)
}

var _ Reader = (*PostgresReader)(nil)

// PostgresReader reads source entities from the operational database.
type PostgresReader struct {
	log     logrus.FieldLogger
	client  postgres.ClientInterface
	queries *QueryBuilder
}

// NewPostgresReader creates a reader for the configured source tables.
func NewPostgresReader(log logrus.FieldLogger, client postgres.ClientInterface, cfg *Config) (*PostgresReader, error) {
	queries, err := NewQueryBuilder(cfg.Schema, cfg.Tables)
	if err != nil {
		return nil, err
	}

	return &PostgresReader{
		log:     log.WithField("component", "source"),
		client:  client,
		queries: queries,
	}, nil
}

func read[T any](ctx context.Context, r *PostgresReader, entity Entity, p *period.Period, scan pgx.RowToFunc[T]) ([]T, error) {
	sql, windowed, err := r.queries.Build(entity)
	if err != nil {
		return nil, err
	}

	var args []any
	if windowed && p != nil {
		args = []any{p.Start, p.End}
	}

	rows, err := postgres.Collect(ctx, r.client, sql, args, scan)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", entity, err)
	}

	return rows, nil
}

func (r *PostgresReader) Customers(ctx context.Context) ([]Customer, error) {
	return read(ctx, r, EntityCustomer, nil, func(row pgx.CollectableRow) (Customer, error) {
		var c Customer
		err := row.Scan(&c.Code, &c.Region, &c.Status)

		return c, err
	})
}

func (r *PostgresReader) Tariffs(ctx context.Context) ([]Tariff, error) {
	return read(ctx, r, EntityTariff, nil, func(row pgx.CollectableRow) (Tariff, error) {
		var t Tariff
		err := row.Scan(&t.Code, &t.Name)

		return t, err
	})
}

func (r *PostgresReader) MeterReadings(ctx context.Context, p period.Period) ([]MeterReading, error) {
	return read(ctx, r, EntityMeterReading, &p, func(row pgx.CollectableRow) (MeterReading, error) {
		var m MeterReading
		err := row.Scan(&m.CustomerCode, &m.Year, &m.Month, &m.TariffCode, &m.Usage, &m.AmountDue)

		return m, err
	})
}

func (r *PostgresReader) Payments(ctx context.Context, p period.Period) ([]Payment, error) {
	return read(ctx, r, EntityPayment, &p, func(row pgx.CollectableRow) (Payment, error) {
		var pay Payment
		err := row.Scan(&pay.CustomerCode, &pay.Year, &pay.Month, &pay.AmountPaid, &pay.Penalty)

		return pay, err
	})
}

func (r *PostgresReader) Disconnections(ctx context.Context, p period.Period) ([]Disconnection, error) {
	return read(ctx, r, EntityDisconnection, &p, func(row pgx.CollectableRow) (Disconnection, error) {
		var d Disconnection
		err := row.Scan(&d.CustomerCode, &d.Date, &d.Outcome)

		return d, err
	})
}

func (r *PostgresReader) Complaints(ctx context.Context, p period.Period) ([]Complaint, error) {
	return read(ctx, r, EntityComplaint, &p, func(row pgx.CollectableRow) (Complaint, error) {
		var c Complaint
		err := row.Scan(&c.CustomerID, &c.Type, &c.Timestamp)

		return c, err
	})
}

func (r *PostgresReader) NewConnections(ctx context.Context, p period.Period) ([]NewConnection, error) {
	return read(ctx, r, EntityNewConnection, &p, func(row pgx.CollectableRow) (NewConnection, error) {
		var n NewConnection
		err := row.Scan(&n.RegistrationCode, &n.Date, &n.Outcome, &n.Count)

		return n, err
	})
}
