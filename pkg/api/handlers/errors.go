package handlers

import "github.com/gofiber/fiber/v3"

var (
	// ErrInvalidPeriod is returned when start or end is missing or malformed
	ErrInvalidPeriod = fiber.NewError(fiber.StatusBadRequest, "invalid period, expected start and end as YYYY-MM-DD with start <= end")
	// ErrInvalidPagination is returned for malformed limit or offset parameters
	ErrInvalidPagination = fiber.NewError(fiber.StatusBadRequest, "invalid pagination, limit and offset must be non-negative integers")
	// ErrPeriodAlreadyProcessed is returned when a run overlaps a logged period
	ErrPeriodAlreadyProcessed = fiber.NewError(fiber.StatusConflict, "period overlaps an already processed period, reprocess it instead")
	// ErrTaskQueued is returned when an identical task is already queued
	ErrTaskQueued = fiber.NewError(fiber.StatusConflict, "an identical task is already queued")
)
