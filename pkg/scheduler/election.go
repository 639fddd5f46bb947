package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var (
	// ErrElectorStopped is returned when the elector is stopped while waiting for leadership
	ErrElectorStopped = errors.New("elector stopped while waiting for leadership")
)

// LeaderElector manages distributed leader election using Redis
type LeaderElector interface {
	Start(ctx context.Context) error
	Stop() error
	IsLeader() bool
	WaitForLeadership(ctx context.Context) error
	PromotedChan() <-chan struct{}
	DemotedChan() <-chan struct{}
}

// elector implements the LeaderElector interface
type elector struct {
	log        logrus.FieldLogger
	redis      redis.Cmdable
	clock      clockwork.Clock
	instanceID string
	leaderKey  string
	leaseTTL   time.Duration
	renewEvery time.Duration

	isLeader bool
	mu       sync.RWMutex

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	promoted chan struct{}
	demoted  chan struct{}
}

// NewLeaderElector creates a new leader elector instance. Only the leader
// registers the periodic schedule; the others stand by.
func NewLeaderElector(log logrus.FieldLogger, client redis.Cmdable, cfg *Config, clock clockwork.Clock) LeaderElector {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	instanceID := uuid.New().String()

	return &elector{
		log: log.WithFields(logrus.Fields{
			"component":   "election",
			"instance_id": instanceID,
		}),
		redis:      client,
		clock:      clock,
		instanceID: instanceID,
		leaderKey:  cfg.LeaderKey,
		leaseTTL:   cfg.LeaseTTL,
		renewEvery: cfg.RenewInterval,
		done:       make(chan struct{}),
		promoted:   make(chan struct{}, 1),
		demoted:    make(chan struct{}, 1),
	}
}

func (e *elector) Start(ctx context.Context) error {
	e.log.Info("Starting leader election")

	e.wg.Add(1)
	go e.run(ctx)

	return nil
}

func (e *elector) Stop() error {
	e.stopOnce.Do(func() {
		e.log.Info("Stopping leader election")
		close(e.done)
		e.wg.Wait()

		e.relinquish(context.Background())

		e.log.Info("Leader election stopped")
	})

	return nil
}

func (e *elector) run(ctx context.Context) {
	defer e.wg.Done()

	ticker := e.clock.NewTicker(e.renewEvery)
	defer ticker.Stop()

	e.campaign(ctx)

	for {
		select {
		case <-e.done:
			return

		case <-ctx.Done():
			return

		case <-ticker.Chan():
			e.campaign(ctx)
		}
	}
}

func (e *elector) campaign(ctx context.Context) {
	wasLeader := e.IsLeader()
	acquired := e.tryAcquire(ctx)

	switch {
	case acquired && !wasLeader:
		e.setLeader(true)
		e.log.Info("Promoted to leader")

		select {
		case e.promoted <- struct{}{}:
		default:
		}
	case !acquired && wasLeader:
		e.setLeader(false)
		e.log.Info("Demoted from leader")

		select {
		case e.demoted <- struct{}{}:
		default:
		}
	}
}

func (e *elector) tryAcquire(ctx context.Context) bool {
	result, err := e.redis.SetNX(ctx, e.leaderKey, e.instanceID, e.leaseTTL).Result()
	if err != nil {
		e.log.WithError(err).Debug("Failed to acquire leader lock")
		return false
	}

	if result {
		e.log.WithField("ttl", e.leaseTTL).Debug("Acquired leader lock")
		return true
	}

	owner, err := e.redis.Get(ctx, e.leaderKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			e.log.WithError(err).Debug("Failed to check lock owner")
		}

		return false
	}

	if owner != e.instanceID {
		e.log.WithField("current_leader", owner).Debug("Another instance holds leadership")
		return false
	}

	if err := e.redis.Expire(ctx, e.leaderKey, e.leaseTTL).Err(); err != nil {
		e.log.WithError(err).Warn("Failed to renew leader lease")
		return false
	}

	return true
}

func (e *elector) relinquish(ctx context.Context) {
	if !e.IsLeader() {
		return
	}

	owner, err := e.redis.Get(ctx, e.leaderKey).Result()
	if err == nil && owner == e.instanceID {
		if err := e.redis.Del(ctx, e.leaderKey).Err(); err != nil {
			e.log.WithError(err).Warn("Failed to delete leader lock")
		} else {
			e.log.Info("Relinquished leader lock")
		}
	}

	e.setLeader(false)
}

func (e *elector) setLeader(isLeader bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.isLeader = isLeader
}

func (e *elector) IsLeader() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isLeader
}

func (e *elector) WaitForLeadership(ctx context.Context) error {
	if e.IsLeader() {
		return nil
	}

	e.log.Info("Waiting for leadership promotion")

	select {
	case <-e.promoted:
		e.log.Info("Leadership acquired")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context canceled while waiting for leadership: %w", ctx.Err())
	case <-e.done:
		return ErrElectorStopped
	}
}

func (e *elector) PromotedChan() <-chan struct{} {
	return e.promoted
}

func (e *elector) DemotedChan() <-chan struct{} {
	return e.demoted
}

var _ LeaderElector = (*elector)(nil)
