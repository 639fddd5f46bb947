package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const scheduleKeyPrefix = "dwhetl:scheduler:task:" // Full key: dwhetl:scheduler:task:{taskType}

// scheduleTracker remembers when the scheduler last enqueued each task type
type scheduleTracker interface {
	// GetLastRun returns zero time if the task was never enqueued
	GetLastRun(ctx context.Context, taskType string) (time.Time, error)
	SetLastRun(ctx context.Context, taskType string, timestamp time.Time) error
}

type redisScheduleTracker struct {
	log   logrus.FieldLogger
	redis redis.Cmdable
}

func newScheduleTracker(log logrus.FieldLogger, client redis.Cmdable) scheduleTracker {
	return &redisScheduleTracker{
		log:   log.WithField("component", "schedule_tracker"),
		redis: client,
	}
}

func (r *redisScheduleTracker) GetLastRun(ctx context.Context, taskType string) (time.Time, error) {
	val, err := r.redis.Get(ctx, scheduleKeyPrefix+taskType).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, nil
		}

		return time.Time{}, fmt.Errorf("failed to get last run for task %s: %w", taskType, err)
	}

	timestamp, err := time.Parse(time.RFC3339, val)
	if err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"task_type": taskType,
			"raw_value": val,
		}).Error("Failed to parse timestamp")

		return time.Time{}, fmt.Errorf("failed to parse timestamp for task %s: %w", taskType, err)
	}

	return timestamp, nil
}

func (r *redisScheduleTracker) SetLastRun(ctx context.Context, taskType string, timestamp time.Time) error {
	if err := r.redis.Set(ctx, scheduleKeyPrefix+taskType, timestamp.UTC().Format(time.RFC3339), 0).Err(); err != nil {
		return fmt.Errorf("failed to set last run for task %s: %w", taskType, err)
	}

	r.log.WithFields(logrus.Fields{
		"task_type": taskType,
		"timestamp": timestamp,
	}).Debug("Updated last run for task")

	return nil
}

var _ scheduleTracker = (*redisScheduleTracker)(nil)
