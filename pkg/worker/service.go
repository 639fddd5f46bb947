// Package worker runs the single asynq worker that executes queued ETL tasks
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/tirta-dwh/dwhetl/pkg/observability"
	"github.com/tirta-dwh/dwhetl/pkg/tasks"
)

// ErrAlreadyStarted is returned when Start is called twice
var ErrAlreadyStarted = errors.New("worker already started")

// Service defines the public interface for the worker service
type Service interface {
	// Start initializes and starts the worker service
	Start(ctx context.Context) error

	// Stop gracefully shuts down the worker service
	Stop() error
}

// service encapsulates the worker application logic
type service struct {
	config   *Config
	log      logrus.FieldLogger
	redisOpt *asynq.RedisClientOpt
	handler  *tasks.TaskHandler

	mu     sync.Mutex
	server *asynq.Server
}

// NewService creates a new worker service
func NewService(log logrus.FieldLogger, cfg *Config, redisOpt *asynq.RedisClientOpt, handler *tasks.TaskHandler) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &service{
		log:      log.WithField("service", "worker"),
		config:   cfg,
		redisOpt: redisOpt,
		handler:  handler,
	}, nil
}

// Start initializes and starts the worker service
func (s *service) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return ErrAlreadyStarted
	}

	queue := s.config.Queue
	if queue == "" {
		queue = tasks.DefaultQueue
	}

	srv := asynq.NewServer(*s.redisOpt, asynq.Config{
		Concurrency:     Concurrency,
		Queues:          map[string]int{queue: 1},
		ShutdownTimeout: s.config.ShutdownTimeout,
		Logger:          s.log,
		LogLevel:        asynq.WarnLevel,
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			observability.RecordError("worker", "task_failed")
			s.log.WithError(err).WithField("type", task.Type()).Debug("Task finished with error")
		}),
	})

	if err := srv.Start(s.handler.Mux()); err != nil {
		return fmt.Errorf("failed to start worker server: %w", err)
	}

	s.server = srv

	s.log.WithField("queue", queue).Info("Worker service started successfully")

	return nil
}

// Stop gracefully shuts down the worker service
func (s *service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}

	s.server.Shutdown()
	s.server = nil

	s.log.Info("Worker service stopped successfully")

	return nil
}
