// Package orchestrator runs ETL periods: extraction, dimension and fact
// reconciliation, loading and history logging, one run at a time.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/tirta-dwh/dwhetl/pkg/extract"
	"github.com/tirta-dwh/dwhetl/pkg/history"
	"github.com/tirta-dwh/dwhetl/pkg/load"
	"github.com/tirta-dwh/dwhetl/pkg/observability"
	"github.com/tirta-dwh/dwhetl/pkg/period"
	"github.com/tirta-dwh/dwhetl/pkg/reconcile"
	"github.com/tirta-dwh/dwhetl/pkg/runlock"
	"github.com/tirta-dwh/dwhetl/pkg/warehouse"
)

var (
	// ErrRunInProgress is returned when another run holds the run lock
	ErrRunInProgress = errors.New("another ETL run is in progress")
	// ErrPeriodAlreadyProcessed is returned when a manual period overlaps a logged one
	ErrPeriodAlreadyProcessed = errors.New("period overlaps an already processed period")
)

// Extractor pulls the source rows of one period.
type Extractor interface {
	Extract(ctx context.Context, p period.Period) (*extract.Batch, error)
}

// Orchestrator sequences the ETL components for one period at a time.
type Orchestrator struct {
	log       logrus.FieldLogger
	extractor Extractor
	store     warehouse.Store
	loader    *load.Loader
	history   *history.Service
	lock      runlock.Locker
	tracker   *period.Tracker
	calendar  *reconcile.CalendarBuilder
	clock     clockwork.Clock
	cfg       Config
	plan      []step

	mu      sync.RWMutex
	current *Report
	state   State
	last    *Report
}

// New creates an orchestrator. A nil clock uses the real clock.
func New(
	log logrus.FieldLogger,
	extractor Extractor,
	store warehouse.Store,
	hist *history.Service,
	lock runlock.Locker,
	clock clockwork.Clock,
	cfg Config,
) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid etl config: %w", err)
	}

	epoch, _ := cfg.EpochDate()
	calendarEpoch, _ := cfg.CalendarEpochDate()

	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	o := &Orchestrator{
		log:       log.WithField("component", "orchestrator"),
		extractor: extractor,
		store:     store,
		loader:    load.NewLoader(log, store),
		history:   hist,
		lock:      lock,
		tracker:   period.NewTracker(epoch),
		calendar:  reconcile.NewCalendarBuilder(calendarEpoch),
		clock:     clock,
		cfg:       cfg,
		state:     StateIdle,
	}

	plan, err := order(o.steps())
	if err != nil {
		return nil, err
	}

	o.plan = plan

	return o, nil
}

// Plan returns the reconcile step names in execution order.
func (o *Orchestrator) Plan() []string {
	names := make([]string, len(o.plan))
	for i, s := range o.plan {
		names[i] = s.name
	}

	return names
}

// Status returns the current state, the running report and the last finished one.
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()

	status := Status{State: o.state, Last: o.last}

	if o.current != nil {
		status.Current = &Report{
			RunID:     o.current.RunID,
			Trigger:   o.current.Trigger,
			Period:    o.current.Period,
			Reprocess: o.current.Reprocess,
			State:     o.state,
			StartedAt: o.current.StartedAt,
		}
	}

	return status
}

// Pending lists the months not yet covered by a completed history entry.
func (o *Orchestrator) Pending(ctx context.Context) ([]period.Period, error) {
	pending, err := o.history.Unprocessed(ctx, o.tracker)
	if err != nil {
		return nil, err
	}

	observability.RecordPending(len(pending))

	return pending, nil
}

// RunPeriod runs an explicit period. A period overlapping a logged one is
// refused with ErrPeriodAlreadyProcessed; use Reprocess to load it again.
func (o *Orchestrator) RunPeriod(ctx context.Context, p period.Period, trigger Trigger) (*Report, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if err := o.acquire(ctx, trigger); err != nil {
		return nil, err
	}
	defer o.release()

	overlaps, err := o.history.Overlaps(ctx, p)
	if err != nil {
		return nil, err
	}

	if overlaps {
		o.log.WithField("period", p.String()).Warn("Refusing to run an already processed period")
		return nil, fmt.Errorf("%w: %s", ErrPeriodAlreadyProcessed, p)
	}

	return o.execute(ctx, p, trigger, false)
}

// Reprocess deletes the facts loaded for p and runs it again.
func (o *Orchestrator) Reprocess(ctx context.Context, p period.Period, trigger Trigger) (*Report, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if err := o.acquire(ctx, trigger); err != nil {
		return nil, err
	}
	defer o.release()

	return o.execute(ctx, p, trigger, true)
}

// RunPending runs every unprocessed month in ascending order under one lock.
// A failed month does not stop the pass; all failures are joined.
func (o *Orchestrator) RunPending(ctx context.Context, trigger Trigger) ([]*Report, error) {
	if err := o.acquire(ctx, trigger); err != nil {
		return nil, err
	}
	defer o.release()

	pending, err := o.Pending(ctx)
	if err != nil {
		return nil, err
	}

	o.log.WithFields(logrus.Fields{
		"pending": len(pending),
		"trigger": trigger,
	}).Info("Processing pending periods")

	reports := make([]*Report, 0, len(pending))

	var errs []error

	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		report, err := o.execute(ctx, p, trigger, o.cfg.DeleteBeforeRun)
		reports = append(reports, report)

		if err != nil {
			errs = append(errs, fmt.Errorf("period %s: %w", p, err))
		}
	}

	return reports, errors.Join(errs...)
}

func (o *Orchestrator) acquire(ctx context.Context, trigger Trigger) error {
	if err := o.lock.TryLock(ctx); err != nil {
		if errors.Is(err, runlock.ErrLocked) {
			observability.RecordRunRejected(string(trigger))
			o.log.WithField("trigger", trigger).Warn("Rejected run: another run is in progress")

			return ErrRunInProgress
		}

		return fmt.Errorf("failed to acquire run lock: %w", err)
	}

	return nil
}

func (o *Orchestrator) release() {
	if err := o.lock.Unlock(context.Background()); err != nil {
		o.log.WithError(err).Warn("Failed to release run lock")
	}
}

// execute runs one period. The caller holds the run lock; losing it cancels
// the run with runlock.ErrLockLost.
func (o *Orchestrator) execute(ctx context.Context, p period.Period, trigger Trigger, reprocess bool) (*Report, error) {
	if o.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, o.cfg.RunTimeout)
		defer cancel()
	}

	ctx, cancelRun := context.WithCancelCause(ctx)
	defer cancelRun(nil)

	lost := o.lock.Lost()
	leaseLost := func() bool {
		select {
		case <-lost:
			cancelRun(runlock.ErrLockLost)
			return true
		default:
			return false
		}
	}

	if lost != nil {
		go func() {
			select {
			case <-lost:
				cancelRun(runlock.ErrLockLost)
			case <-ctx.Done():
			}
		}()
	}

	report := &Report{
		RunID:      uuid.NewString(),
		Trigger:    trigger,
		Period:     p,
		Reprocess:  reprocess,
		State:      StateIdle,
		StartedAt:  o.clock.Now(),
		Dimensions: map[string]DimensionChange{},
		Facts:      map[string]reconcile.FactStats{},
	}

	log := o.log.WithFields(logrus.Fields{
		"run_id":  report.RunID,
		"start":   p.Start.Format(period.DateLayout),
		"end":     p.End.Format(period.DateLayout),
		"trigger": trigger,
	})

	o.begin(report)
	defer o.finish(log, report)

	if leaseLost() {
		return o.fail(ctx, log, report, runlock.ErrLockLost)
	}

	if reprocess {
		deleted, err := o.store.DeleteFacts(ctx, p)
		if err != nil {
			return o.fail(ctx, log, report, fmt.Errorf("failed to delete facts: %w", err))
		}

		report.Deleted = deleted

		for table, n := range deleted {
			observability.RecordFactsDeleted(table, n)
		}

		log.WithField("deleted", deleted).Info("Deleted facts for reprocessing")
	}

	o.transition(report, StateExtracting)

	batch, err := o.extractor.Extract(ctx, p)
	if err != nil {
		return o.fail(ctx, log, report, fmt.Errorf("extraction aborted: %w", err))
	}

	report.Extracted = map[string]int{}
	for entity, n := range batch.Counts() {
		report.Extracted[string(entity)] = n
	}

	if failures := batch.Failures(); len(failures) > 0 {
		report.ExtractionErrors = make(map[string]string, len(failures))
		for entity, ferr := range failures {
			report.ExtractionErrors[string(entity)] = ferr.Error()
		}
	}

	if !batch.HasPeriodData() {
		o.transition(report, StateSkipped)
		log.Info("No source data for period, skipping")

		return report, nil
	}

	o.transition(report, StateReconciling)

	w := &work{
		log:    log,
		period: p,
		today:  period.Truncate(o.clock.Now()),
		batch:  batch,
		report: report,
	}

	for _, s := range o.plan {
		if err := s.run(ctx, w); err != nil {
			return o.fail(ctx, log, report, fmt.Errorf("step %s: %w", s.name, err))
		}
	}

	o.transition(report, StateLoading)

	loaded := o.loader.LoadAll(ctx, w.loadSet()...)
	report.Load = &loaded

	// no history entry for a period written without the lease
	if leaseLost() || errors.Is(context.Cause(ctx), runlock.ErrLockLost) {
		return o.fail(ctx, log, report, fmt.Errorf("loading interrupted: %w", runlock.ErrLockLost))
	}

	if failed := loaded.Failed(); len(failed) > 0 {
		log.WithField("failed_tables", len(failed)).Warn("Logging period with failed table loads")
	}

	entry, err := o.history.Record(ctx, p)
	if err != nil {
		report.HistoryError = err.Error()
		log.WithError(err).Warn("Failed to write history entry; loaded facts are kept")
	} else {
		report.HistoryID = entry.ID
		observability.RecordPeriodLogged(p.End)
	}

	o.transition(report, StateLogged)

	log.WithField("loaded", loaded.Loaded()).Info("Period run completed")

	return report, nil
}

func (o *Orchestrator) fail(ctx context.Context, log logrus.FieldLogger, report *Report, err error) (*Report, error) {
	if cause := context.Cause(ctx); errors.Is(cause, runlock.ErrLockLost) && !errors.Is(err, cause) {
		err = fmt.Errorf("%w: %w", cause, err)
	}

	report.Error = err.Error()
	o.transition(report, StateFailed)

	observability.RecordError("orchestrator", "run_failed")
	log.WithError(err).Error("Period run failed")

	return report, err
}

func (o *Orchestrator) begin(report *Report) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.current = report
	o.state = report.State

	observability.RecordRunStart()
}

func (o *Orchestrator) transition(report *Report, state State) {
	o.mu.Lock()
	defer o.mu.Unlock()

	report.State = state
	o.state = state
}

func (o *Orchestrator) finish(log logrus.FieldLogger, report *Report) {
	o.mu.Lock()
	defer o.mu.Unlock()

	report.FinishedAt = o.clock.Now()
	o.current = nil
	o.last = report
	o.state = StateIdle

	observability.RecordRunComplete(string(report.Trigger), string(report.State), report.Duration().Seconds())
	log.WithFields(logrus.Fields{
		"state":    report.State,
		"duration": report.Duration(),
	}).Debug("Run finished")
}
