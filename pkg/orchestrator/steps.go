package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/heimdalr/dag"
	"github.com/sirupsen/logrus"

	"github.com/tirta-dwh/dwhetl/pkg/extract"
	"github.com/tirta-dwh/dwhetl/pkg/period"
	"github.com/tirta-dwh/dwhetl/pkg/reconcile"
	"github.com/tirta-dwh/dwhetl/pkg/warehouse"
)

// ErrStepCycle is returned when reconcile steps cannot be ordered
var ErrStepCycle = errors.New("reconcile steps contain a dependency cycle")

// Reconcile step names.
const (
	StepCustomer        = "customer"
	StepTariff          = "tariff"
	StepCalendar        = "calendar"
	StepTransaction     = "transaction"
	StepComplaint       = "complaint"
	StepDisconnection   = "disconnection"
	StepNewConnection   = "new_connection"
	StepOutcome         = "outcome"
	StepOutcomeBackfill = "outcome_backfill"
)

type step struct {
	name  string
	after []string
	run   func(ctx context.Context, w *work) error
}

// work carries the intermediate results of one run between steps.
type work struct {
	log    logrus.FieldLogger
	period period.Period
	today  time.Time
	batch  *extract.Batch
	report *Report

	calendar       reconcile.CalendarIndex
	transactions   warehouse.Transactions
	complaintTypes warehouse.ComplaintTypes
	complaints     warehouse.Complaints
	disconnections reconcile.DisconnectionResult
	newConnections reconcile.NewConnectionResult
	outcomes       []warehouse.Outcome

	resolvedDisconnections warehouse.Disconnections
	resolvedNewConnections warehouse.NewConnections
}

// loadSet returns the rows handed to the loader, in load order.
func (w *work) loadSet() []warehouse.Rows {
	return []warehouse.Rows{
		w.complaintTypes,
		w.transactions,
		w.resolvedDisconnections,
		w.complaints,
		w.resolvedNewConnections,
	}
}

func (o *Orchestrator) steps() []step {
	return []step{
		{name: StepCustomer, run: o.reconcileCustomers},
		{name: StepTariff, run: o.reconcileTariffs},
		{name: StepCalendar, run: o.ensureCalendar},
		{name: StepTransaction, after: []string{StepCustomer, StepTariff, StepCalendar}, run: o.resolveTransactions},
		{name: StepComplaint, after: []string{StepCustomer, StepCalendar}, run: o.resolveComplaints},
		{name: StepDisconnection, after: []string{StepCustomer, StepCalendar}, run: o.resolveDisconnections},
		{name: StepNewConnection, after: []string{StepCalendar}, run: o.resolveNewConnections},
		{name: StepOutcome, after: []string{StepDisconnection, StepNewConnection}, run: o.reconcileOutcomes},
		{name: StepOutcomeBackfill, after: []string{StepOutcome}, run: o.backfillOutcomes},
	}
}

// order sorts steps so every step follows its dependencies. Among ready
// steps the one declared first runs first.
func order(steps []step) ([]step, error) {
	graph := dag.NewDAG()

	for _, s := range steps {
		if err := graph.AddVertexByID(s.name, s.name); err != nil {
			return nil, fmt.Errorf("failed to add step %s: %w", s.name, err)
		}
	}

	for _, s := range steps {
		for _, dep := range s.after {
			if err := graph.AddEdge(dep, s.name); err != nil {
				return nil, fmt.Errorf("invalid dependency %s -> %s: %w", dep, s.name, err)
			}
		}
	}

	done := make(map[string]bool, len(steps))
	ordered := make([]step, 0, len(steps))

	for len(ordered) < len(steps) {
		next := -1

		for i, s := range steps {
			if done[s.name] {
				continue
			}

			parents, err := graph.GetParents(s.name)
			if err != nil {
				return nil, fmt.Errorf("failed to read dependencies of %s: %w", s.name, err)
			}

			ready := true

			for id := range parents {
				if !done[id] {
					ready = false
					break
				}
			}

			if ready {
				next = i
				break
			}
		}

		if next < 0 {
			return nil, ErrStepCycle
		}

		done[steps[next].name] = true
		ordered = append(ordered, steps[next])
	}

	return ordered, nil
}

func reconcileDimension[R any, K comparable](
	ctx context.Context,
	o *Orchestrator,
	w *work,
	d reconcile.Dimension[R, K],
	read func(context.Context) ([]R, error),
	candidates []R,
) ([]R, error) {
	existing, err := read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", d.Table.Name, err)
	}

	changes, merged, err := reconcile.Reconcile(ctx, w.log, o.store, d, candidates, existing)
	if err != nil {
		return nil, err
	}

	w.report.Dimensions[d.Table.Name] = DimensionChange{Inserted: len(changes.Inserts), Updated: len(changes.Updates)}

	return merged, nil
}

func (o *Orchestrator) reconcileCustomers(ctx context.Context, w *work) error {
	_, err := reconcileDimension(ctx, o, w, reconcile.CustomerDimension, o.store.Customers,
		reconcile.CustomerCandidates(w.batch.Customers.Rows))

	return err
}

func (o *Orchestrator) reconcileTariffs(ctx context.Context, w *work) error {
	_, err := reconcileDimension(ctx, o, w, reconcile.TariffDimension, o.store.Tariffs,
		reconcile.TariffCandidates(w.batch.Tariffs.Rows))

	return err
}

func (o *Orchestrator) ensureCalendar(ctx context.Context, w *work) error {
	existing, err := o.store.Calendar(ctx)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", warehouse.CalendarTable.Name, err)
	}

	// dim_waktu never extends past today; later rows resolve to an unknown date
	merged, err := o.calendar.Ensure(ctx, w.log, o.store, existing, w.today)
	if err != nil {
		return err
	}

	w.report.Dimensions[warehouse.CalendarTable.Name] = DimensionChange{Inserted: len(merged) - len(existing)}
	w.calendar = reconcile.NewCalendarIndex(merged)

	return nil
}

func (o *Orchestrator) resolveTransactions(ctx context.Context, w *work) error {
	existing, err := o.store.TransactionKeys(ctx, w.period)
	if err != nil {
		return fmt.Errorf("failed to read transaction keys: %w", err)
	}

	facts, stats := reconcile.ResolveTransactions(w.batch.MeterReadings.Rows, w.batch.Payments.Rows, w.calendar, existing)
	w.transactions = facts
	w.recordFacts(warehouse.TransactionTable.Name, stats)

	return nil
}

func (o *Orchestrator) resolveComplaints(ctx context.Context, w *work) error {
	types, err := o.store.ComplaintTypes(ctx)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", warehouse.ComplaintTypeTable.Name, err)
	}

	existing, err := o.store.ComplaintKeys(ctx, w.period)
	if err != nil {
		return fmt.Errorf("failed to read complaint keys: %w", err)
	}

	res := reconcile.ResolveComplaints(w.batch.Complaints.Rows, w.calendar, types, existing)
	w.complaints = res.Facts
	w.complaintTypes = res.NewTypes
	w.report.Dimensions[warehouse.ComplaintTypeTable.Name] = DimensionChange{Inserted: len(res.NewTypes)}
	w.recordFacts(warehouse.ComplaintTable.Name, res.Stats)

	return nil
}

func (o *Orchestrator) resolveDisconnections(ctx context.Context, w *work) error {
	existing, err := o.store.DisconnectionKeys(ctx, w.period)
	if err != nil {
		return fmt.Errorf("failed to read disconnection keys: %w", err)
	}

	w.disconnections = reconcile.ResolveDisconnections(w.batch.Disconnections.Rows, w.calendar, existing)
	w.recordFacts(warehouse.DisconnectionTable.Name, w.disconnections.Stats)

	return nil
}

func (o *Orchestrator) resolveNewConnections(ctx context.Context, w *work) error {
	existing, err := o.store.NewConnectionKeys(ctx, w.period)
	if err != nil {
		return fmt.Errorf("failed to read new connection keys: %w", err)
	}

	w.newConnections = reconcile.ResolveNewConnections(w.batch.NewConnections.Rows, w.calendar, existing)
	w.recordFacts(warehouse.NewConnectionTable.Name, w.newConnections.Stats)

	return nil
}

func (o *Orchestrator) reconcileOutcomes(ctx context.Context, w *work) error {
	candidates := reconcile.OutcomeCandidates(w.disconnections.Labels, w.newConnections.Labels)

	merged, err := reconcileDimension(ctx, o, w, reconcile.OutcomeDimension, o.store.Outcomes, candidates)
	if err != nil {
		return err
	}

	w.outcomes = merged

	return nil
}

func (o *Orchestrator) backfillOutcomes(_ context.Context, w *work) error {
	w.resolvedDisconnections = reconcile.BackfillDisconnections(w.disconnections.Pending, w.outcomes)
	w.resolvedNewConnections = reconcile.BackfillNewConnections(w.newConnections.Pending, w.outcomes)

	return nil
}

func (w *work) recordFacts(table string, stats reconcile.FactStats) {
	w.report.Facts[table] = stats
	stats.Record(w.log, table)
}
