// Package extract pulls period-scoped rows from every source entity, isolating
// per-entity failures.
package extract

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tirta-dwh/dwhetl/pkg/observability"
	"github.com/tirta-dwh/dwhetl/pkg/period"
	"github.com/tirta-dwh/dwhetl/pkg/source"
)

// Result is the outcome of extracting one entity. A failed extraction carries
// Err and no rows; an empty but successful extraction has neither.
type Result[T any] struct {
	Rows []T
	Err  error
}

// Failed reports whether the extraction failed.
func (r Result[T]) Failed() bool {
	return r.Err != nil
}

// Batch holds the extraction results of one period.
type Batch struct {
	Period         period.Period
	Customers      Result[source.Customer]
	Tariffs        Result[source.Tariff]
	MeterReadings  Result[source.MeterReading]
	Payments       Result[source.Payment]
	Disconnections Result[source.Disconnection]
	Complaints     Result[source.Complaint]
	NewConnections Result[source.NewConnection]
}

// Counts returns the number of rows extracted per entity.
func (b *Batch) Counts() map[source.Entity]int {
	return map[source.Entity]int{
		source.EntityCustomer:      len(b.Customers.Rows),
		source.EntityTariff:        len(b.Tariffs.Rows),
		source.EntityMeterReading:  len(b.MeterReadings.Rows),
		source.EntityPayment:       len(b.Payments.Rows),
		source.EntityDisconnection: len(b.Disconnections.Rows),
		source.EntityComplaint:     len(b.Complaints.Rows),
		source.EntityNewConnection: len(b.NewConnections.Rows),
	}
}

// Failures returns the error of every failed entity.
func (b *Batch) Failures() map[source.Entity]error {
	failures := map[source.Entity]error{}

	for entity, err := range map[source.Entity]error{
		source.EntityCustomer:      b.Customers.Err,
		source.EntityTariff:        b.Tariffs.Err,
		source.EntityMeterReading:  b.MeterReadings.Err,
		source.EntityPayment:       b.Payments.Err,
		source.EntityDisconnection: b.Disconnections.Err,
		source.EntityComplaint:     b.Complaints.Err,
		source.EntityNewConnection: b.NewConnections.Err,
	} {
		if err != nil {
			failures[entity] = err
		}
	}

	return failures
}

// HasPeriodData reports whether any windowed entity returned a row. The
// customer and tariff masters are read in full on every run and do not count.
func (b *Batch) HasPeriodData() bool {
	return len(b.MeterReadings.Rows) > 0 ||
		len(b.Payments.Rows) > 0 ||
		len(b.Disconnections.Rows) > 0 ||
		len(b.Complaints.Rows) > 0 ||
		len(b.NewConnections.Rows) > 0
}

// Extractor reads every source entity for a period.
type Extractor struct {
	log    logrus.FieldLogger
	reader source.Reader
}

// NewExtractor creates an extractor over reader.
func NewExtractor(log logrus.FieldLogger, reader source.Reader) *Extractor {
	return &Extractor{
		log:    log.WithField("component", "extractor"),
		reader: reader,
	}
}

// Extract reads every entity for p. Entity failures are logged and recorded in
// the batch; only cancellation of ctx is returned as an error.
func (e *Extractor) Extract(ctx context.Context, p period.Period) (*Batch, error) {
	b := &Batch{Period: p}
	log := e.log.WithField("period", p.String())

	b.Customers = fetch(ctx, log, source.EntityCustomer, e.reader.Customers)
	b.Tariffs = fetch(ctx, log, source.EntityTariff, e.reader.Tariffs)
	b.MeterReadings = fetch(ctx, log, source.EntityMeterReading, windowed(p, e.reader.MeterReadings))
	b.Payments = fetch(ctx, log, source.EntityPayment, windowed(p, e.reader.Payments))
	b.Disconnections = fetch(ctx, log, source.EntityDisconnection, windowed(p, e.reader.Disconnections))
	b.Complaints = fetch(ctx, log, source.EntityComplaint, windowed(p, e.reader.Complaints))
	b.NewConnections = fetch(ctx, log, source.EntityNewConnection, windowed(p, e.reader.NewConnections))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.WithField("rows", b.Counts()).Info("Extraction finished")

	return b, nil
}

func windowed[T any](p period.Period, fn func(context.Context, period.Period) ([]T, error)) func(context.Context) ([]T, error) {
	return func(ctx context.Context) ([]T, error) {
		return fn(ctx, p)
	}
}

func fetch[T any](ctx context.Context, log logrus.FieldLogger, entity source.Entity, fn func(context.Context) ([]T, error)) Result[T] {
	start := time.Now()

	rows, err := fn(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.WithError(err).WithField("entity", entity).Error("Extraction failed, continuing with an empty result")
		}

		observability.RecordExtraction(string(entity), 0, true)

		return Result[T]{Err: err}
	}

	log.WithFields(logrus.Fields{
		"entity":   entity,
		"rows":     len(rows),
		"duration": time.Since(start),
	}).Debug("Extracted entity")

	observability.RecordExtraction(string(entity), len(rows), false)

	return Result[T]{Rows: rows}
}
