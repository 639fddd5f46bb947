package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/tirta-dwh/dwhetl/pkg/observability"
	"github.com/tirta-dwh/dwhetl/pkg/orchestrator"
	"github.com/tirta-dwh/dwhetl/pkg/tasks"
)

// Service defines the public interface for the scheduler
type Service interface {
	// Start joins leader election; the leader registers the periodic task
	Start(ctx context.Context) error

	// Stop gracefully shuts down the scheduler service
	Stop() error

	// Info reports the schedule, leadership and enqueue times
	Info(ctx context.Context) Info
}

// Info describes the periodic pass as seen by this instance
type Info struct {
	Enabled      bool       `json:"enabled"`
	Schedule     string     `json:"schedule,omitempty"`
	Leader       bool       `json:"leader"`
	NextRun      *time.Time `json:"next_run,omitempty"`
	LastEnqueued *time.Time `json:"last_enqueued,omitempty"`
}

// service manages the scheduled pass over unprocessed months
type service struct {
	log      logrus.FieldLogger
	cfg      *Config
	clock    clockwork.Clock
	redisOpt *asynq.RedisClientOpt
	queue    string
	schedule cron.Schedule
	location *time.Location

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	elector LeaderElector
	tracker scheduleTracker

	mu        sync.Mutex
	scheduler *asynq.Scheduler
}

// NewService creates a new scheduler service
func NewService(
	log logrus.FieldLogger,
	cfg *Config,
	redisOpt *asynq.RedisClientOpt,
	client redis.Cmdable,
	queue string,
	clock clockwork.Clock,
) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	s := &service{
		log:      log.WithField("service", "scheduler"),
		cfg:      cfg,
		clock:    clock,
		redisOpt: redisOpt,
		queue:    queue,
		done:     make(chan struct{}),
		tracker:  newScheduleTracker(log, client),
	}

	if !cfg.Enabled {
		return s, nil
	}

	schedule, err := cfg.parse()
	if err != nil {
		return nil, err
	}

	location, err := cfg.location()
	if err != nil {
		return nil, err
	}

	s.schedule = schedule
	s.location = location
	s.elector = NewLeaderElector(log, client, cfg, clock)

	return s, nil
}

// Start initializes and starts the scheduler service
func (s *service) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.log.Info("Scheduler disabled")
		return nil
	}

	if err := s.elector.Start(ctx); err != nil {
		return fmt.Errorf("failed to start leader election: %w", err)
	}

	s.wg.Add(1)
	go s.handleLeaderElection(ctx)

	s.log.WithField("schedule", s.cfg.Schedule).Info("Scheduler service started (participating in leader election)")

	return nil
}

// Stop gracefully shuts down the scheduler service
func (s *service) Stop() error {
	s.stopOnce.Do(func() {
		close(s.done)

		if s.elector != nil {
			if err := s.elector.Stop(); err != nil {
				s.log.WithError(err).Warn("Failed to stop leader elector")
			}
		}

		s.wg.Wait()
		s.stopScheduler()

		s.log.Info("Scheduler service stopped successfully")
	})

	return nil
}

func (s *service) Info(ctx context.Context) Info {
	info := Info{Enabled: s.cfg.Enabled}

	if !s.cfg.Enabled {
		return info
	}

	info.Schedule = s.cfg.Schedule
	info.Leader = s.elector.IsLeader()

	next := s.schedule.Next(s.clock.Now())
	info.NextRun = &next

	last, err := s.tracker.GetLastRun(ctx, tasks.TypeRunPending)
	if err != nil {
		s.log.WithError(err).Debug("Failed to read last scheduled enqueue")
	} else if !last.IsZero() {
		info.LastEnqueued = &last
	}

	return info
}

// handleLeaderElection starts the periodic registration on promotion and stops it on demotion
func (s *service) handleLeaderElection(ctx context.Context) {
	defer s.wg.Done()

	promoted := s.elector.PromotedChan()
	demoted := s.elector.DemotedChan()

	for {
		select {
		case <-s.done:
			return

		case <-ctx.Done():
			return

		case <-promoted:
			s.log.Info("Promoted to scheduler leader - registering periodic run")

			if err := s.startScheduler(); err != nil {
				observability.RecordError("scheduler", "register_error")
				s.log.WithError(err).Error("Failed to start scheduler as leader")
			}

		case <-demoted:
			s.log.Info("Demoted from scheduler leader")
			s.stopScheduler()
		}
	}
}

func (s *service) startScheduler() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler != nil {
		s.log.Warn("Received promotion but scheduler already running")
		return nil
	}

	payload, err := json.Marshal(tasks.Payload{Trigger: orchestrator.TriggerSchedule})
	if err != nil {
		return err
	}

	scheduler := asynq.NewScheduler(*s.redisOpt, &asynq.SchedulerOpts{
		Location:        s.location,
		Logger:          s.log,
		LogLevel:        asynq.WarnLevel,
		PostEnqueueFunc: s.afterEnqueue,
	})

	uniqueWindow := calculateUniqueWindow(s.schedule, s.clock.Now())

	entryID, err := scheduler.Register(s.cfg.Schedule, asynq.NewTask(tasks.TypeRunPending, payload),
		asynq.Queue(s.queue),
		asynq.Unique(uniqueWindow),
		asynq.MaxRetry(0),
	)
	if err != nil {
		return fmt.Errorf("failed to register %s with schedule %s: %w", tasks.TypeRunPending, s.cfg.Schedule, err)
	}

	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	s.scheduler = scheduler

	s.log.WithFields(logrus.Fields{
		"task_type":     tasks.TypeRunPending,
		"schedule":      s.cfg.Schedule,
		"entry_id":      entryID,
		"unique_window": uniqueWindow.String(),
	}).Info("Registered scheduled task")

	return nil
}

func (s *service) stopScheduler() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler == nil {
		return
	}

	s.scheduler.Shutdown()
	s.scheduler = nil
}

func (s *service) afterEnqueue(info *asynq.TaskInfo, err error) {
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			s.log.Debug("Scheduled run already queued")
			return
		}

		observability.RecordError("scheduler", "enqueue_error")
		s.log.WithError(err).Warn("Failed to enqueue scheduled run")

		return
	}

	observability.RecordTaskEnqueued(info.Type, string(orchestrator.TriggerSchedule))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.tracker.SetLastRun(ctx, info.Type, s.clock.Now()); err != nil {
		s.log.WithError(err).Warn("Failed to record scheduled enqueue")
	}
}

// calculateUniqueWindow returns 80% of the gap between the next two firings,
// bounded to [1s, 5m].
func calculateUniqueWindow(schedule cron.Schedule, now time.Time) time.Duration {
	next := schedule.Next(now)
	interval := schedule.Next(next).Sub(next)

	uniqueWindow := time.Duration(float64(interval) * 0.8)

	if uniqueWindow < time.Second {
		return time.Second
	}

	if uniqueWindow > 5*time.Minute {
		return 5 * time.Minute
	}

	return uniqueWindow
}
