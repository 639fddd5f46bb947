package handlers

import "github.com/gofiber/fiber/v3"

// RegisterHandlers registers the /api/v1 routes on router
func RegisterHandlers(router fiber.Router, s *Server) {
	router.Get("/status", s.GetStatus)
	router.Get("/history", s.ListHistory)
	router.Get("/periods/pending", s.ListPending)
	router.Post("/runs", s.EnqueueRun)
	router.Post("/periods/run", s.RunPeriod)
	router.Post("/periods/reprocess", s.ReprocessPeriod)
}
