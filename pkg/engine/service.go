package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // pprof is intentionally exposed when pprofAddr is configured
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/tirta-dwh/dwhetl/pkg/api"
	"github.com/tirta-dwh/dwhetl/pkg/api/handlers"
	"github.com/tirta-dwh/dwhetl/pkg/observability"
	"github.com/tirta-dwh/dwhetl/pkg/scheduler"
	"github.com/tirta-dwh/dwhetl/pkg/tasks"
	"github.com/tirta-dwh/dwhetl/pkg/worker"
)

// Service runs the API, the single task worker and the scheduler
type Service struct {
	config *Config
	log    *logrus.Logger

	core      *Core
	queue     *tasks.QueueManager
	worker    worker.Service
	scheduler scheduler.Service
	api       api.Service

	// Servers
	healthServer *http.Server
	pprofServer  *http.Server
}

// NewService creates the engine service
func NewService(log *logrus.Logger, cfg *Config) (*Service, error) {
	if err := cfg.ValidateService(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	clock := clockwork.NewRealClock()

	core, err := NewCore(log, cfg, clock)
	if err != nil {
		return nil, err
	}

	asynqRedis, err := cfg.Redis.AsynqOptions()
	if err != nil {
		return nil, err
	}

	queueName := cfg.Redis.PrefixQueue(cfg.Worker.Queue)

	queue := tasks.NewQueueManager(log, asynqRedis, queueName, cfg.Worker.TaskTimeout, clock)

	handler := tasks.NewTaskHandler(log, core.Orchestrator, clock)

	workerCfg := cfg.Worker
	workerCfg.Queue = queueName

	var workerService worker.Service
	if cfg.Worker.Enabled {
		workerService, err = worker.NewService(log, &workerCfg, asynqRedis, handler)
		if err != nil {
			return nil, fmt.Errorf("failed to create worker service: %w", err)
		}
	}

	schedulerService, err := scheduler.NewService(log, &cfg.Scheduler, asynqRedis, core.Redis, queueName, clock)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler service: %w", err)
	}

	routes := handlers.NewServer(core.Orchestrator, core.History, queue, schedulerService, log)

	return &Service{
		log:    log,
		config: cfg,

		core:      core,
		queue:     queue,
		worker:    workerService,
		scheduler: schedulerService,
		api:       api.NewService(&cfg.API, routes, log),
	}, nil
}

// Start initializes and starts the engine
func (a *Service) Start() error {
	a.log.Info("Starting dwhetl engine...")

	ctx := context.Background()

	// Start metrics server
	observability.StartMetricsServer(a.log, a.config.MetricsAddr)

	// Start health check server if configured
	if a.config.HealthCheckAddr != "" {
		a.startHealthCheck()
	}

	// Start pprof server if configured
	if a.config.PProfAddr != "" {
		a.startPProf()
	}

	if err := a.core.Start(); err != nil {
		return err
	}

	if a.worker != nil {
		if err := a.worker.Start(ctx); err != nil {
			return fmt.Errorf("failed to start worker: %w", err)
		}
	}

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	if err := a.api.Start(ctx); err != nil {
		return fmt.Errorf("failed to start API service: %w", err)
	}

	a.log.Info("dwhetl engine started successfully")

	return nil
}

// Stop gracefully shuts down the engine
func (a *Service) Stop() error {
	a.log.Info("Shutting down engine...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopService := func(name string, stopFunc func() error) {
		if err := stopFunc(); err != nil {
			a.log.WithError(err).Errorf("Failed to stop %s", name)
		}
	}

	// 1. Stop the API and scheduler (stop accepting new tasks)
	stopService("API service", a.api.Stop)
	stopService("scheduler service", a.scheduler.Stop)

	// 2. Stop worker (finish the in-flight run)
	if a.worker != nil {
		stopService("worker service", a.worker.Stop)
	}

	stopService("queue manager", a.queue.Close)

	// 3. Close databases and Redis (now safe, nothing is using them)
	if err := a.core.Stop(); err != nil {
		a.log.WithError(err).Error("Failed to stop core clients")
		return err
	}

	// Stop HTTP servers
	if a.healthServer != nil {
		stopService("health check server", func() error { return a.healthServer.Shutdown(ctx) })
	}

	if a.pprofServer != nil {
		stopService("pprof server", func() error { return a.pprofServer.Shutdown(ctx) })
	}

	stopService("metrics server", func() error { return observability.StopMetricsServer(ctx) })

	return nil
}

func (a *Service) startHealthCheck() {
	a.log.WithField("addr", a.config.HealthCheckAddr).Info("Starting health check server")

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(a.core.Orchestrator.Status().State))
	})

	a.healthServer = &http.Server{
		Addr:              a.config.HealthCheckAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := a.healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.WithError(err).Error("Health check server failed")
		}
	}()
}

func (a *Service) startPProf() {
	a.log.WithField("addr", a.config.PProfAddr).Info("Starting pprof server")

	a.pprofServer = &http.Server{
		Addr:              a.config.PProfAddr,
		ReadHeaderTimeout: 120 * time.Second,
	}

	go func() {
		if err := a.pprofServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.WithError(err).Error("Pprof server failed")
		}
	}()
}
