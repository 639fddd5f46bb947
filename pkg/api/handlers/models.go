package handlers

import (
	"time"

	"github.com/tirta-dwh/dwhetl/pkg/orchestrator"
	"github.com/tirta-dwh/dwhetl/pkg/period"
	"github.com/tirta-dwh/dwhetl/pkg/scheduler"
)

// PeriodRequest is the body of the period endpoints
type PeriodRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// HistoryParams are the query parameters of the history endpoint
type HistoryParams struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

// PeriodResponse is a period in wire format
type PeriodResponse struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func newPeriodResponse(p period.Period) PeriodResponse {
	return PeriodResponse{
		Start: p.Start.Format(period.DateLayout),
		End:   p.End.Format(period.DateLayout),
	}
}

// PendingResponse lists the unprocessed months
type PendingResponse struct {
	Periods []PeriodResponse `json:"periods"`
	Total   int              `json:"total"`
}

// HistoryEntryResponse is one history log entry
type HistoryEntryResponse struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Start     string    `json:"start"`
	End       string    `json:"end"`
	Status    string    `json:"status"`
}

// HistoryResponse is one page of the history log
type HistoryResponse struct {
	Entries []HistoryEntryResponse `json:"entries"`
	Total   int64                  `json:"total"`
	Limit   int                    `json:"limit"`
	Offset  int                    `json:"offset"`
}

// QueueResponse summarizes the task queue
type QueueResponse struct {
	Name     string `json:"name"`
	Pending  int    `json:"pending"`
	Active   int    `json:"active"`
	Archived int    `json:"archived"`
}

// StatusResponse is the engine status
type StatusResponse struct {
	State     orchestrator.State   `json:"state"`
	Current   *orchestrator.Report `json:"current,omitempty"`
	Last      *orchestrator.Report `json:"last,omitempty"`
	Queue     *QueueResponse       `json:"queue,omitempty"`
	Scheduler *scheduler.Info      `json:"scheduler,omitempty"`
}

// TaskResponse acknowledges an enqueued task
type TaskResponse struct {
	TaskID string `json:"task_id"`
	Type   string `json:"type"`
	Queue  string `json:"queue"`
}
