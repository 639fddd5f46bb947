// Package tasks provides ETL task queueing using Asynq
package tasks

import (
	"fmt"
	"time"

	"github.com/tirta-dwh/dwhetl/pkg/orchestrator"
)

const (
	// TypeRunPending is the task type for a pass over every unprocessed month
	TypeRunPending = "etl:run_pending"
	// TypePeriodRun is the task type for a manual period run
	TypePeriodRun = "etl:period_run"
	// TypePeriodReprocess is the task type for delete-then-rerun of a period
	TypePeriodReprocess = "etl:period_reprocess"

	// DefaultQueue is the queue all ETL tasks share
	DefaultQueue = "etl"
)

// IsPeriodTask reports whether the task type carries a period.
func IsPeriodTask(taskType string) bool {
	return taskType == TypePeriodRun || taskType == TypePeriodReprocess
}

// TaskResult is written as the task result once the handler returns
type TaskResult struct {
	TaskType    string                 `json:"task_type"`
	Reports     []*orchestrator.Report `json:"reports"`
	Error       string                 `json:"error,omitempty"`
	CompletedAt time.Time              `json:"completed_at"`
}

// taskID is the asynq task id: one task per type and period can be queued.
func taskID(taskType string, p Payload) string {
	if !IsPeriodTask(taskType) {
		return taskType
	}

	return fmt.Sprintf("%s:%s:%s", taskType, p.Start, p.End)
}
