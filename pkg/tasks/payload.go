package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tirta-dwh/dwhetl/pkg/orchestrator"
	"github.com/tirta-dwh/dwhetl/pkg/period"
)

// Payload represents the payload of an ETL task
type Payload struct {
	Start      string               `json:"start,omitempty"`
	End        string               `json:"end,omitempty"`
	Trigger    orchestrator.Trigger `json:"trigger"`
	EnqueuedAt time.Time            `json:"enqueued_at"`
}

// NewPeriodPayload builds the payload of a period task
func NewPeriodPayload(p period.Period, trigger orchestrator.Trigger, now time.Time) Payload {
	return Payload{
		Start:      p.Start.Format(period.DateLayout),
		End:        p.End.Format(period.DateLayout),
		Trigger:    trigger,
		EnqueuedAt: now.UTC(),
	}
}

// Period parses the payload's window
func (p Payload) Period() (period.Period, error) {
	return period.Parse(p.Start, p.End)
}

func decodePayload(data []byte) (Payload, error) {
	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if payload.Trigger == "" {
		payload.Trigger = orchestrator.TriggerAPI
	}

	return payload, nil
}
