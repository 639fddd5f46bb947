package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/tirta-dwh/dwhetl/pkg/observability"
	"github.com/tirta-dwh/dwhetl/pkg/orchestrator"
	"github.com/tirta-dwh/dwhetl/pkg/period"
)

// Runner executes ETL runs
type Runner interface {
	RunPending(ctx context.Context, trigger orchestrator.Trigger) ([]*orchestrator.Report, error)
	RunPeriod(ctx context.Context, p period.Period, trigger orchestrator.Trigger) (*orchestrator.Report, error)
	Reprocess(ctx context.Context, p period.Period, trigger orchestrator.Trigger) (*orchestrator.Report, error)
}

// TaskHandler handles ETL task execution
type TaskHandler struct {
	log    logrus.FieldLogger
	runner Runner
	clock  clockwork.Clock
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(log logrus.FieldLogger, runner Runner, clock clockwork.Clock) *TaskHandler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &TaskHandler{
		log:    log.WithField("component", "task-handler"),
		runner: runner,
		clock:  clock,
	}
}

// HandleRunPending handles a pass over every unprocessed month
func (h *TaskHandler) HandleRunPending(ctx context.Context, t *asynq.Task) error {
	payload, err := decodePayload(t.Payload())
	if err != nil {
		observability.RecordError("task-handler", "unmarshal_error")
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	h.log.WithField("trigger", payload.Trigger).Info("Starting pending periods task")

	reports, err := h.runner.RunPending(ctx, payload.Trigger)

	return h.finish(t, reports, err)
}

// HandlePeriodRun handles a manual period run
func (h *TaskHandler) HandlePeriodRun(ctx context.Context, t *asynq.Task) error {
	return h.handlePeriod(ctx, t, h.runner.RunPeriod)
}

// HandlePeriodReprocess handles delete-then-rerun of a period
func (h *TaskHandler) HandlePeriodReprocess(ctx context.Context, t *asynq.Task) error {
	return h.handlePeriod(ctx, t, h.runner.Reprocess)
}

func (h *TaskHandler) handlePeriod(
	ctx context.Context,
	t *asynq.Task,
	run func(context.Context, period.Period, orchestrator.Trigger) (*orchestrator.Report, error),
) error {
	payload, err := decodePayload(t.Payload())
	if err != nil {
		observability.RecordError("task-handler", "unmarshal_error")
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	p, err := payload.Period()
	if err != nil {
		observability.RecordError("task-handler", "invalid_period")
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	h.log.WithFields(logrus.Fields{
		"type":    t.Type(),
		"start":   payload.Start,
		"end":     payload.End,
		"trigger": payload.Trigger,
	}).Info("Starting period task")

	report, err := run(ctx, p, payload.Trigger)

	var reports []*orchestrator.Report
	if report != nil {
		reports = append(reports, report)
	}

	return h.finish(t, reports, err)
}

// finish writes the run reports as the task result and maps run errors to
// task errors. Runs are never retried.
func (h *TaskHandler) finish(t *asynq.Task, reports []*orchestrator.Report, runErr error) error {
	result := TaskResult{
		TaskType:    t.Type(),
		Reports:     reports,
		CompletedAt: h.clock.Now().UTC(),
	}

	if runErr != nil {
		result.Error = runErr.Error()
	}

	if w := t.ResultWriter(); w != nil {
		data, err := json.Marshal(result)
		if err == nil {
			_, err = w.Write(data)
		}

		if err != nil {
			h.log.WithError(err).Warn("Failed to write task result")
		}
	}

	if runErr == nil {
		h.log.WithFields(logrus.Fields{
			"type": t.Type(),
			"runs": len(reports),
		}).Info("Task completed successfully")

		return nil
	}

	switch {
	case errors.Is(runErr, orchestrator.ErrRunInProgress):
		h.log.WithField("type", t.Type()).Warn("Task rejected: another run is in progress")
	case errors.Is(runErr, orchestrator.ErrPeriodAlreadyProcessed):
		h.log.WithField("type", t.Type()).Warn("Task rejected: period already processed")
	default:
		observability.RecordError("task-handler", "run_error")
		h.log.WithError(runErr).WithField("type", t.Type()).Error("Task failed")
	}

	return fmt.Errorf("%w: %w", runErr, asynq.SkipRetry)
}

// Routes returns the task handler routes for Asynq
func (h *TaskHandler) Routes() map[string]asynq.HandlerFunc {
	return map[string]asynq.HandlerFunc{
		TypeRunPending:      h.HandleRunPending,
		TypePeriodRun:       h.HandlePeriodRun,
		TypePeriodReprocess: h.HandlePeriodReprocess,
	}
}

// Mux returns a serve mux routing every ETL task type
func (h *TaskHandler) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	for taskType, handlerFunc := range h.Routes() {
		mux.HandleFunc(taskType, handlerFunc)
	}

	return mux
}
