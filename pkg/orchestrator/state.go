package orchestrator

import (
	"time"

	"github.com/tirta-dwh/dwhetl/pkg/load"
	"github.com/tirta-dwh/dwhetl/pkg/period"
	"github.com/tirta-dwh/dwhetl/pkg/reconcile"
)

// State is the lifecycle state of a period run.
type State string

const (
	StateIdle        State = "idle"
	StateExtracting  State = "extracting"
	StateReconciling State = "reconciling"
	StateLoading     State = "loading"
	StateLogged      State = "logged"
	StateFailed      State = "failed"
	StateSkipped     State = "skipped"
)

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateLogged || s == StateFailed || s == StateSkipped
}

// Trigger names what started a run.
type Trigger string

const (
	TriggerCLI      Trigger = "cli"
	TriggerAPI      Trigger = "api"
	TriggerSchedule Trigger = "schedule"
)

// DimensionChange counts the writes made to one dimension.
type DimensionChange struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

// Report describes one period run.
type Report struct {
	RunID      string        `json:"run_id"`
	Trigger    Trigger       `json:"trigger"`
	Period     period.Period `json:"period"`
	Reprocess  bool          `json:"reprocess,omitempty"`
	State      State         `json:"state"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at,omitzero"`

	Deleted          map[string]int64               `json:"deleted,omitempty"`
	Extracted        map[string]int                 `json:"extracted,omitempty"`
	ExtractionErrors map[string]string              `json:"extraction_errors,omitempty"`
	Dimensions       map[string]DimensionChange     `json:"dimensions,omitempty"`
	Facts            map[string]reconcile.FactStats `json:"facts,omitempty"`
	Load             *load.Report                   `json:"load,omitempty"`
	HistoryID        int64                          `json:"history_id,omitempty"`
	HistoryError     string                         `json:"history_error,omitempty"`
	Error            string                         `json:"error,omitempty"`
}

// Duration returns how long the run took, or zero while it is running.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}

	return r.FinishedAt.Sub(r.StartedAt)
}

// Status is a snapshot of the orchestrator.
type Status struct {
	State   State   `json:"state"`
	Current *Report `json:"current,omitempty"`
	Last    *Report `json:"last,omitempty"`
}
