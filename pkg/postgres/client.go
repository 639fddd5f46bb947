package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/tirta-dwh/dwhetl/pkg/observability"
)

// Define static errors
var (
	ErrNotStarted = errors.New("postgres client not started")
)

// ClientInterface defines the methods for interacting with PostgreSQL
type ClientInterface interface {
	// Query runs a query and hands the open rows to fn. Rows are closed afterwards.
	Query(ctx context.Context, sql string, args []any, fn func(pgx.Rows) error) error
	// Exec runs a statement and returns the number of affected rows
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
	// CopyFrom bulk inserts rows into table using the COPY protocol
	CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
	// InTx runs fn inside a transaction that commits when fn returns nil
	InTx(ctx context.Context, fn func(tx pgx.Tx) error) error
	// Start connects the pool
	Start() error
	// Stop closes the pool
	Stop() error
}

type client struct {
	log           logrus.FieldLogger
	name          string
	cfg           *Config
	poolConfig    *pgxpool.Config
	pool          *pgxpool.Pool
	debug         bool
	queryTimeout  time.Duration
	insertTimeout time.Duration
}

// NewClient creates a pooled PostgreSQL client. name labels logs and metrics,
// e.g. "source" or "warehouse".
func NewClient(logger logrus.FieldLogger, name string, cfg *Config) (ClientInterface, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg.SetDefaults()

	poolConfig, err := cfg.PoolConfig()
	if err != nil {
		return nil, err
	}

	return &client{
		log:           logger.WithFields(logrus.Fields{"component": "postgres", "database": name}),
		name:          name,
		cfg:           cfg,
		poolConfig:    poolConfig,
		debug:         cfg.Debug,
		queryTimeout:  cfg.QueryTimeout,
		insertTimeout: cfg.InsertTimeout,
	}, nil
}

func (c *client) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, c.poolConfig)
	if err != nil {
		return fmt.Errorf("failed to create postgres pool: %w", err)
	}

	attempt := 0

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempt++

		if pingErr := pool.Ping(ctx); pingErr != nil {
			c.log.WithError(pingErr).WithField("attempt", attempt).Warn("PostgreSQL not reachable yet")
			return struct{}{}, pingErr
		}

		return struct{}{}, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxElapsedTime(c.cfg.ConnectTimeout))
	if err != nil {
		pool.Close()
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	c.pool = pool

	c.log.WithFields(logrus.Fields{
		"host":      c.poolConfig.ConnConfig.Host,
		"db":        c.poolConfig.ConnConfig.Database,
		"max_conns": c.poolConfig.MaxConns,
	}).Info("Connected to PostgreSQL")

	return nil
}

func (c *client) Stop() error {
	if c.pool != nil {
		c.pool.Close()
		c.pool = nil
	}

	c.log.Info("Closed PostgreSQL pool")

	return nil
}

func (c *client) Query(ctx context.Context, sql string, args []any, fn func(pgx.Rows) error) error {
	if c.pool == nil {
		return ErrNotStarted
	}

	ctx, cancel := c.withTimeout(ctx, c.queryTimeout)
	defer cancel()

	c.debugQuery(sql, args)

	start := time.Now()

	rows, err := c.pool.Query(ctx, sql, args...)
	if err != nil {
		c.record("select", start, err)
		return fmt.Errorf("query execution failed: %w", err)
	}
	defer rows.Close()

	if err := fn(rows); err != nil {
		c.record("select", start, err)
		return fmt.Errorf("failed to read rows: %w", err)
	}

	rows.Close()

	err = rows.Err()
	c.record("select", start, err)

	if err != nil {
		return fmt.Errorf("query execution failed: %w", err)
	}

	return nil
}

func (c *client) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	if c.pool == nil {
		return 0, ErrNotStarted
	}

	ctx, cancel := c.withTimeout(ctx, c.queryTimeout)
	defer cancel()

	c.debugQuery(sql, args)

	start := time.Now()
	tag, err := c.pool.Exec(ctx, sql, args...)
	c.record("exec", start, err)

	if err != nil {
		return 0, fmt.Errorf("execution failed: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (c *client) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if c.pool == nil {
		return 0, ErrNotStarted
	}

	if len(rows) == 0 {
		return 0, nil
	}

	ctx, cancel := c.withTimeout(ctx, c.insertTimeout)
	defer cancel()

	if c.debug {
		c.log.WithFields(logrus.Fields{"table": table, "rows": len(rows)}).Debug("Copying rows")
	}

	start := time.Now()
	n, err := c.pool.CopyFrom(ctx, Identifier(table), columns, pgx.CopyFromRows(rows))
	c.record("copy", start, err)

	if err != nil {
		return n, fmt.Errorf("bulk insert into %s failed: %w", table, err)
	}

	return n, nil
}

func (c *client) InTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	if c.pool == nil {
		return ErrNotStarted
	}

	ctx, cancel := c.withTimeout(ctx, c.insertTimeout)
	defer cancel()

	start := time.Now()
	err := pgx.BeginFunc(ctx, c.pool, fn)
	c.record("tx", start, err)

	return err
}

func (c *client) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	// Respect a deadline the caller already set
	if _, ok := ctx.Deadline(); ok || timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}

func (c *client) debugQuery(sql string, args []any) {
	if !c.debug {
		return
	}

	c.log.WithFields(logrus.Fields{
		"query": strings.Join(strings.Fields(sql), " "),
		"args":  args,
	}).Debug("Executing PostgreSQL query")
}

func (c *client) record(queryType string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	observability.RecordQuery(c.name, queryType, status, time.Since(start).Seconds())
}

// Identifier splits an optionally schema-qualified table name into a pgx identifier.
func Identifier(table string) pgx.Identifier {
	return pgx.Identifier(strings.Split(table, "."))
}

// Collect runs sql and scans every row with fn.
func Collect[T any](ctx context.Context, c ClientInterface, sql string, args []any, fn pgx.RowToFunc[T]) ([]T, error) {
	var out []T

	err := c.Query(ctx, sql, args, func(rows pgx.Rows) error {
		var err error

		out, err = pgx.CollectRows(rows, fn)

		return err
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}
