// Package handlers implements the request handlers of the ETL API.
package handlers

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/tirta-dwh/dwhetl/pkg/history"
	"github.com/tirta-dwh/dwhetl/pkg/orchestrator"
	"github.com/tirta-dwh/dwhetl/pkg/period"
	"github.com/tirta-dwh/dwhetl/pkg/scheduler"
)

// Runs exposes the orchestrator state and pending months
type Runs interface {
	Status() orchestrator.Status
	Pending(ctx context.Context) ([]period.Period, error)
}

// History reads the ETL history log
type History interface {
	List(ctx context.Context, limit, offset int) (*history.Page, error)
	Overlaps(ctx context.Context, p period.Period) (bool, error)
}

// Queue enqueues ETL tasks
type Queue interface {
	EnqueueRunPending(ctx context.Context, trigger orchestrator.Trigger) (*asynq.TaskInfo, error)
	EnqueuePeriod(ctx context.Context, p period.Period, trigger orchestrator.Trigger, reprocess bool) (*asynq.TaskInfo, error)
	QueueStats() (*asynq.QueueInfo, error)
}

// Schedule reports the periodic pass
type Schedule interface {
	Info(ctx context.Context) scheduler.Info
}

// Server implements the API request handlers
type Server struct {
	runs     Runs
	history  History
	queue    Queue
	schedule Schedule
	log      logrus.FieldLogger
}

// NewServer creates a new API server instance. schedule may be nil.
func NewServer(runs Runs, hist History, queue Queue, schedule Schedule, log logrus.FieldLogger) *Server {
	return &Server{
		runs:     runs,
		history:  hist,
		queue:    queue,
		schedule: schedule,
		log:      log.WithField("component", "api.handlers"),
	}
}
