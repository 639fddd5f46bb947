package runlock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// releaseScript deletes the lease only when it still belongs to the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the lease only when it still belongs to the caller.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisClient is the subset of the go-redis client the lease needs.
type RedisClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

// Redis is a lease shared by every process using the same key. The holder
// renews it in the background; a crashed holder loses it after the TTL.
type Redis struct {
	log    logrus.FieldLogger
	client RedisClient
	clock  clockwork.Clock
	cfg    Config
	owner  string

	mu   sync.Mutex
	held bool
	done chan struct{}
	lost chan struct{}
	wg   sync.WaitGroup
}

// NewRedis creates a Redis lease. A nil clock uses the real clock.
func NewRedis(log logrus.FieldLogger, client RedisClient, cfg Config, clock clockwork.Clock) *Redis {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	owner := uuid.New().String()

	return &Redis{
		log: log.WithFields(logrus.Fields{
			"component": "runlock",
			"owner":     owner,
		}),
		client: client,
		clock:  clock,
		cfg:    cfg,
		owner:  owner,
	}
}

// Owner returns the id stored in the lease while this process holds it.
func (r *Redis) Owner() string {
	return r.owner
}

func (r *Redis) TryLock(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.held {
		return ErrLocked
	}

	ok, err := r.client.SetNX(ctx, r.cfg.Key, r.owner, r.cfg.TTL).Result()
	if err != nil {
		return fmt.Errorf("failed to acquire run lock: %w", err)
	}

	if !ok {
		return ErrLocked
	}

	r.held = true
	r.done = make(chan struct{})
	r.lost = make(chan struct{})

	r.wg.Add(1)
	go r.renew(r.done, r.lost)

	r.log.WithField("ttl", r.cfg.TTL).Debug("Acquired run lock")

	return nil
}

func (r *Redis) Unlock(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.held {
		return ErrLockNotHeld
	}

	close(r.done)
	r.wg.Wait()
	r.held = false

	deleted, err := releaseScript.Run(ctx, r.client, []string{r.cfg.Key}, r.owner).Int()
	if err != nil {
		return fmt.Errorf("failed to release run lock: %w", err)
	}

	if deleted == 0 {
		r.log.Warn("Run lock expired before release")

		return ErrLockNotHeld
	}

	r.log.Debug("Released run lock")

	return nil
}

func (r *Redis) Held() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.held
}

func (r *Redis) Lost() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lost
}

// renew extends the lease every RenewInterval. It closes lost and stops once
// the key belongs to another owner or has expired.
func (r *Redis) renew(done <-chan struct{}, lost chan<- struct{}) {
	defer r.wg.Done()

	ticker := r.clock.NewTicker(r.cfg.RenewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.Chan():
			ctx, cancel := context.WithTimeout(context.Background(), r.cfg.RenewInterval)
			renewed, err := renewScript.Run(ctx, r.client, []string{r.cfg.Key}, r.owner, r.cfg.TTL.Milliseconds()).Int()
			cancel()

			switch {
			case err != nil:
				r.log.WithError(err).Warn("Failed to renew run lock")
			case renewed == 0:
				r.log.Warn("Run lock lost to another owner")
				close(lost)

				return
			default:
				r.log.Debug("Renewed run lock")
			}
		}
	}
}

var _ Locker = (*Redis)(nil)
