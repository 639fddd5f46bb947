package warehouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/tirta-dwh/dwhetl/pkg/period"
	"github.com/tirta-dwh/dwhetl/pkg/postgres"
)

var (
	_ Store        = (*PostgresStore)(nil)
	_ HistoryStore = (*PostgresStore)(nil)
)

// PostgresStore implements Store and HistoryStore over a pooled client.
type PostgresStore struct {
	log    logrus.FieldLogger
	client postgres.ClientInterface
}

// NewPostgresStore creates a warehouse store.
func NewPostgresStore(log logrus.FieldLogger, client postgres.ClientInterface) *PostgresStore {
	return &PostgresStore{
		log:    log.WithField("component", "warehouse"),
		client: client,
	}
}

// periodTimeIDs selects the time keys of the dates inside a period bound as $1..$2.
const periodTimeIDs = `SELECT id_waktu FROM dim_waktu WHERE date BETWEEN $1 AND $2`

func (s *PostgresStore) Customers(ctx context.Context) ([]Customer, error) {
	return postgres.Collect(ctx, s.client,
		`SELECT id_pelanggan, kodepelanggan, COALESCE(wilayah, ''), COALESCE(status, '') FROM dim_pelanggan`, nil,
		func(row pgx.CollectableRow) (Customer, error) {
			var c Customer
			err := row.Scan(&c.ID, &c.Code, &c.Region, &c.Status)

			return c, err
		})
}

func (s *PostgresStore) Tariffs(ctx context.Context) ([]Tariff, error) {
	return postgres.Collect(ctx, s.client,
		`SELECT id_goltarif, kodegoltarif, COALESCE(namagoltarif, '') FROM dim_goltarif`, nil,
		func(row pgx.CollectableRow) (Tariff, error) {
			var t Tariff
			err := row.Scan(&t.ID, &t.Code, &t.Name)

			return t, err
		})
}

func (s *PostgresStore) Calendar(ctx context.Context) ([]CalendarDate, error) {
	return postgres.Collect(ctx, s.client,
		`SELECT id_waktu, date, day, month, year FROM dim_waktu ORDER BY date`, nil,
		func(row pgx.CollectableRow) (CalendarDate, error) {
			var d CalendarDate
			err := row.Scan(&d.ID, &d.Date, &d.Day, &d.Month, &d.Year)

			return d, err
		})
}

func (s *PostgresStore) ComplaintTypes(ctx context.Context) ([]ComplaintType, error) {
	return postgres.Collect(ctx, s.client,
		`SELECT id_jenispengaduan, jenis_pengaduan FROM dim_jenispengaduan`, nil,
		func(row pgx.CollectableRow) (ComplaintType, error) {
			var c ComplaintType
			err := row.Scan(&c.ID, &c.Label)

			return c, err
		})
}

func (s *PostgresStore) Outcomes(ctx context.Context) ([]Outcome, error) {
	return postgres.Collect(ctx, s.client,
		`SELECT id_realisasi, jenis_realisasi FROM dim_realisasi`, nil,
		func(row pgx.CollectableRow) (Outcome, error) {
			var o Outcome
			err := row.Scan(&o.ID, &o.Label)

			return o, err
		})
}

func (s *PostgresStore) TransactionKeys(ctx context.Context, p period.Period) (KeySet[TransactionKey], error) {
	return collectKeys(ctx, s.client, TransactionTable, p, func(row pgx.CollectableRow) (TransactionKey, error) {
		var k TransactionKey
		err := row.Scan(&k.CustomerCode, &k.TimeID)

		return k, err
	})
}

func (s *PostgresStore) ComplaintKeys(ctx context.Context, p period.Period) (KeySet[ComplaintKey], error) {
	return collectKeys(ctx, s.client, ComplaintTable, p, func(row pgx.CollectableRow) (ComplaintKey, error) {
		var k ComplaintKey
		err := row.Scan(&k.CustomerID, &k.TimeID, &k.ComplaintTypeID)

		return k, err
	})
}

func (s *PostgresStore) DisconnectionKeys(ctx context.Context, p period.Period) (KeySet[DisconnectionKey], error) {
	return collectKeys(ctx, s.client, DisconnectionTable, p, func(row pgx.CollectableRow) (DisconnectionKey, error) {
		var k DisconnectionKey
		err := row.Scan(&k.CustomerCode, &k.TimeID)

		return k, err
	})
}

func (s *PostgresStore) NewConnectionKeys(ctx context.Context, p period.Period) (KeySet[NewConnectionKey], error) {
	return collectKeys(ctx, s.client, NewConnectionTable, p, func(row pgx.CollectableRow) (NewConnectionKey, error) {
		var k NewConnectionKey
		err := row.Scan(&k.RegistrationCode, &k.TimeID)

		return k, err
	})
}

func collectKeys[K comparable](
	ctx context.Context,
	client postgres.ClientInterface,
	table Table,
	p period.Period,
	scan pgx.RowToFunc[K],
) (KeySet[K], error) {
	sql := fmt.Sprintf(`SELECT %s FROM %s WHERE id_waktu IN (%s)`,
		strings.Join(table.Key, ", "), table.Name, periodTimeIDs)

	keys, err := postgres.Collect(ctx, client, sql, []any{p.Start, p.End}, scan)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s keys: %w", table.Name, err)
	}

	return NewKeySet(keys...), nil
}

func (s *PostgresStore) ApplyDimension(ctx context.Context, table Table, updates, inserts Rows) error {
	if table.Fact {
		return fmt.Errorf("%w: %s", ErrNotDimension, table.Name)
	}

	for _, rows := range []Rows{updates, inserts} {
		if rows != nil && rows.Table().Name != table.Name {
			return fmt.Errorf("%w: %s and %s", ErrTableMismatch, table.Name, rows.Table().Name)
		}
	}

	updateSQL, updateCols := updateStatement(table)

	return s.client.InTx(ctx, func(tx pgx.Tx) error {
		if updates != nil {
			for _, values := range updates.Values() {
				args := make([]any, len(updateCols))
				for i, col := range updateCols {
					args[i] = values[table.ColumnIndex(col)]
				}

				if _, err := tx.Exec(ctx, updateSQL, args...); err != nil {
					return fmt.Errorf("failed to update %s: %w", table.Name, err)
				}
			}
		}

		if inserts != nil && inserts.Len() > 0 {
			if _, err := tx.CopyFrom(ctx, postgres.Identifier(table.Name), table.Columns,
				pgx.CopyFromRows(inserts.Values())); err != nil {
				return fmt.Errorf("failed to insert into %s: %w", table.Name, err)
			}
		}

		return nil
	})
}

// updateStatement builds the single-row UPDATE for a dimension and the column
// order of its bind arguments: attributes first, then the natural key.
func updateStatement(table Table) (string, []string) {
	cols := make([]string, 0, len(table.Attributes)+len(table.Key))
	sets := make([]string, 0, len(table.Attributes))
	wheres := make([]string, 0, len(table.Key))

	for _, col := range table.Attributes {
		cols = append(cols, col)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(cols)))
	}

	for _, col := range table.Key {
		cols = append(cols, col)
		wheres = append(wheres, fmt.Sprintf("%s = $%d", col, len(cols)))
	}

	return fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		table.Name, strings.Join(sets, ", "), strings.Join(wheres, " AND ")), cols
}

func (s *PostgresStore) Append(ctx context.Context, rows Rows) (int64, error) {
	if rows == nil || rows.Len() == 0 {
		return 0, nil
	}

	table := rows.Table()

	return s.client.CopyFrom(ctx, table.Name, table.Columns, rows.Values())
}

func (s *PostgresStore) DeleteFacts(ctx context.Context, p period.Period) (map[string]int64, error) {
	deleted := make(map[string]int64, len(FactTables()))

	err := s.client.InTx(ctx, func(tx pgx.Tx) error {
		for _, table := range FactTables() {
			tag, err := tx.Exec(ctx,
				fmt.Sprintf(`DELETE FROM %s WHERE id_waktu IN (%s)`, table.Name, periodTimeIDs), p.Start, p.End)
			if err != nil {
				return fmt.Errorf("failed to delete from %s: %w", table.Name, err)
			}

			deleted[table.Name] = tag.RowsAffected()
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"period": p.String(), "deleted": deleted}).Info("Deleted period facts")

	return deleted, nil
}

func (s *PostgresStore) InsertHistory(ctx context.Context, entry HistoryEntry) (int64, error) {
	ids, err := postgres.Collect(ctx, s.client,
		`INSERT INTO etl_history (timestamp, start_date, end_date, status) VALUES ($1, $2, $3, $4) RETURNING id_riwayat`,
		[]any{entry.Timestamp, entry.Start, entry.End, entry.Status},
		pgx.RowTo[int64])
	if err != nil {
		return 0, fmt.Errorf("failed to insert history entry: %w", err)
	}

	if len(ids) == 0 {
		return 0, nil
	}

	return ids[0], nil
}

func (s *PostgresStore) HistoryRanges(ctx context.Context, status string) ([]period.Period, error) {
	return postgres.Collect(ctx, s.client,
		`SELECT start_date, end_date FROM etl_history WHERE status = $1 ORDER BY start_date`,
		[]any{status},
		func(row pgx.CollectableRow) (period.Period, error) {
			var p period.Period
			err := row.Scan(&p.Start, &p.End)

			return p, err
		})
}

func (s *PostgresStore) HistoryPage(ctx context.Context, limit, offset int) ([]HistoryEntry, int64, error) {
	entries, err := postgres.Collect(ctx, s.client,
		`SELECT id_riwayat, timestamp, start_date, end_date, status FROM etl_history
		ORDER BY timestamp DESC, id_riwayat DESC LIMIT $1 OFFSET $2`,
		[]any{limit, offset},
		func(row pgx.CollectableRow) (HistoryEntry, error) {
			var e HistoryEntry
			err := row.Scan(&e.ID, &e.Timestamp, &e.Start, &e.End, &e.Status)

			return e, err
		})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read history page: %w", err)
	}

	totals, err := postgres.Collect(ctx, s.client, `SELECT COUNT(*) FROM etl_history`, nil, pgx.RowTo[int64])
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count history entries: %w", err)
	}

	var total int64
	if len(totals) > 0 {
		total = totals[0]
	}

	return entries, total, nil
}

func (s *PostgresStore) HistoryOverlaps(ctx context.Context, p period.Period) (bool, error) {
	found, err := postgres.Collect(ctx, s.client,
		`SELECT EXISTS (SELECT 1 FROM etl_history
		WHERE (start_date <= $1 AND end_date >= $1) OR (start_date <= $2 AND end_date >= $2))`,
		[]any{p.Start, p.End}, pgx.RowTo[bool])
	if err != nil {
		return false, fmt.Errorf("failed to check history overlap: %w", err)
	}

	return len(found) > 0 && found[0], nil
}
