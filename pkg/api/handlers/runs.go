package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/tirta-dwh/dwhetl/pkg/history"
	"github.com/tirta-dwh/dwhetl/pkg/orchestrator"
	"github.com/tirta-dwh/dwhetl/pkg/period"
	"github.com/tirta-dwh/dwhetl/pkg/tasks"
)

// Health handles GET /health
func (s *Server) Health(c fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
}

// GetStatus handles GET /api/v1/status
func (s *Server) GetStatus(c fiber.Ctx) error {
	status := s.runs.Status()

	response := StatusResponse{
		State:   status.State,
		Current: status.Current,
		Last:    status.Last,
	}

	if stats, err := s.queue.QueueStats(); err != nil {
		s.log.WithError(err).Debug("Failed to read queue stats")
	} else {
		response.Queue = &QueueResponse{
			Name:     stats.Queue,
			Pending:  stats.Pending,
			Active:   stats.Active,
			Archived: stats.Archived,
		}
	}

	if s.schedule != nil {
		info := s.schedule.Info(c.Context())
		response.Scheduler = &info
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// ListHistory handles GET /api/v1/history
func (s *Server) ListHistory(c fiber.Ctx) error {
	var params HistoryParams
	if err := c.Bind().Query(&params); err != nil {
		return ErrInvalidPagination
	}

	page, err := s.history.List(c.Context(), params.Limit, params.Offset)
	if err != nil {
		if errors.Is(err, history.ErrInvalidOffset) {
			return ErrInvalidPagination
		}

		return err
	}

	response := HistoryResponse{
		Entries: make([]HistoryEntryResponse, 0, len(page.Entries)),
		Total:   page.Total,
		Limit:   page.Limit,
		Offset:  page.Offset,
	}

	for _, entry := range page.Entries {
		response.Entries = append(response.Entries, HistoryEntryResponse{
			ID:        entry.ID,
			Timestamp: entry.Timestamp,
			Start:     entry.Start.Format(period.DateLayout),
			End:       entry.End.Format(period.DateLayout),
			Status:    entry.Status,
		})
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// ListPending handles GET /api/v1/periods/pending
func (s *Server) ListPending(c fiber.Ctx) error {
	pending, err := s.runs.Pending(c.Context())
	if err != nil {
		return err
	}

	response := PendingResponse{
		Periods: make([]PeriodResponse, 0, len(pending)),
		Total:   len(pending),
	}

	for _, p := range pending {
		response.Periods = append(response.Periods, newPeriodResponse(p))
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// EnqueueRun handles POST /api/v1/runs
func (s *Server) EnqueueRun(c fiber.Ctx) error {
	info, err := s.queue.EnqueueRunPending(c.Context(), orchestrator.TriggerAPI)
	if err != nil {
		return s.enqueueError(err)
	}

	return s.accepted(c, info)
}

// RunPeriod handles POST /api/v1/periods/run
func (s *Server) RunPeriod(c fiber.Ctx) error {
	p, err := s.bindPeriod(c)
	if err != nil {
		return err
	}

	overlaps, err := s.history.Overlaps(c.Context(), p)
	if err != nil {
		return err
	}

	if overlaps {
		return ErrPeriodAlreadyProcessed
	}

	info, err := s.queue.EnqueuePeriod(c.Context(), p, orchestrator.TriggerAPI, false)
	if err != nil {
		return s.enqueueError(err)
	}

	return s.accepted(c, info)
}

// ReprocessPeriod handles POST /api/v1/periods/reprocess
func (s *Server) ReprocessPeriod(c fiber.Ctx) error {
	p, err := s.bindPeriod(c)
	if err != nil {
		return err
	}

	info, err := s.queue.EnqueuePeriod(c.Context(), p, orchestrator.TriggerAPI, true)
	if err != nil {
		return s.enqueueError(err)
	}

	return s.accepted(c, info)
}

func (s *Server) bindPeriod(c fiber.Ctx) (period.Period, error) {
	var req PeriodRequest
	if err := c.Bind().JSON(&req); err != nil {
		return period.Period{}, ErrInvalidPeriod
	}

	p, err := period.Parse(req.Start, req.End)
	if err != nil {
		return period.Period{}, ErrInvalidPeriod
	}

	return p, nil
}

func (s *Server) enqueueError(err error) error {
	if errors.Is(err, tasks.ErrTaskQueued) {
		return ErrTaskQueued
	}

	if errors.Is(err, period.ErrInvalidPeriod) {
		return ErrInvalidPeriod
	}

	s.log.WithError(err).Error("Failed to enqueue task")

	return err
}

func (s *Server) accepted(c fiber.Ctx, info *asynq.TaskInfo) error {
	s.log.WithFields(logrus.Fields{
		"task_id": info.ID,
		"type":    info.Type,
	}).Debug("Accepted task")

	return c.Status(fiber.StatusAccepted).JSON(TaskResponse{
		TaskID: info.ID,
		Type:   info.Type,
		Queue:  info.Queue,
	})
}
