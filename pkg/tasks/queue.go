package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/tirta-dwh/dwhetl/pkg/observability"
	"github.com/tirta-dwh/dwhetl/pkg/orchestrator"
	"github.com/tirta-dwh/dwhetl/pkg/period"
)

// ErrTaskQueued is returned when an identical task is already pending or running
var ErrTaskQueued = errors.New("an identical task is already queued")

// QueueManager manages ETL task queuing
type QueueManager struct {
	log       logrus.FieldLogger
	client    *asynq.Client
	inspector *asynq.Inspector
	clock     clockwork.Clock
	queue     string
	timeout   time.Duration
}

// NewQueueManager creates a new queue manager. timeout of 0 leaves tasks unbounded.
func NewQueueManager(log logrus.FieldLogger, redisOpt *asynq.RedisClientOpt, queue string, timeout time.Duration, clock clockwork.Clock) *QueueManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	if queue == "" {
		queue = DefaultQueue
	}

	return &QueueManager{
		log:       log.WithField("component", "queue"),
		client:    asynq.NewClient(*redisOpt),
		inspector: asynq.NewInspector(*redisOpt),
		clock:     clock,
		queue:     queue,
		timeout:   timeout,
	}
}

// Queue returns the queue name tasks are enqueued on
func (q *QueueManager) Queue() string {
	return q.queue
}

// EnqueueRunPending enqueues a pass over every unprocessed month
func (q *QueueManager) EnqueueRunPending(ctx context.Context, trigger orchestrator.Trigger) (*asynq.TaskInfo, error) {
	return q.enqueue(ctx, TypeRunPending, Payload{Trigger: trigger, EnqueuedAt: q.clock.Now().UTC()})
}

// EnqueuePeriod enqueues a period run or, with reprocess, a delete-then-rerun
func (q *QueueManager) EnqueuePeriod(ctx context.Context, p period.Period, trigger orchestrator.Trigger, reprocess bool) (*asynq.TaskInfo, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	taskType := TypePeriodRun
	if reprocess {
		taskType = TypePeriodReprocess
	}

	return q.enqueue(ctx, taskType, NewPeriodPayload(p, trigger, q.clock.Now()))
}

func (q *QueueManager) enqueue(ctx context.Context, taskType string, payload Payload) (*asynq.TaskInfo, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	id := taskID(taskType, payload)

	opts := []asynq.Option{
		asynq.TaskID(id),
		asynq.Queue(q.queue),
		asynq.MaxRetry(0),
	}

	if q.timeout > 0 {
		opts = append(opts, asynq.Timeout(q.timeout))
	}

	task := asynq.NewTask(taskType, data)

	info, err := q.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		// A finished task keeps its id until deleted; replace it.
		if cerr := q.clearFinished(id); cerr != nil {
			return nil, cerr
		}

		info, err = q.client.EnqueueContext(ctx, task, opts...)
	}

	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil, fmt.Errorf("%w: %s", ErrTaskQueued, id)
		}

		observability.RecordError("queue", "enqueue_error")

		return nil, fmt.Errorf("failed to enqueue %s: %w", taskType, err)
	}

	observability.RecordTaskEnqueued(taskType, string(payload.Trigger))

	q.log.WithFields(logrus.Fields{
		"task_id": info.ID,
		"type":    taskType,
		"trigger": payload.Trigger,
	}).Info("Enqueued ETL task")

	return info, nil
}

// clearFinished deletes the task with id when it is archived or completed.
// A task still waiting or running yields ErrTaskQueued.
func (q *QueueManager) clearFinished(id string) error {
	info, err := q.inspector.GetTaskInfo(q.queue, id)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return nil
		}

		return fmt.Errorf("failed to inspect task %s: %w", id, err)
	}

	switch info.State {
	case asynq.TaskStateArchived, asynq.TaskStateCompleted:
		if err := q.inspector.DeleteTask(q.queue, id); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
			return fmt.Errorf("failed to delete finished task %s: %w", id, err)
		}

		return nil
	default:
		return fmt.Errorf("%w: %s (%s)", ErrTaskQueued, id, info.State)
	}
}

// TaskInfo returns the state of a queued or finished task
func (q *QueueManager) TaskInfo(id string) (*asynq.TaskInfo, error) {
	return q.inspector.GetTaskInfo(q.queue, id)
}

// QueueStats returns queue statistics. A queue that never held a task reports zero counts.
func (q *QueueManager) QueueStats() (*asynq.QueueInfo, error) {
	info, err := q.inspector.GetQueueInfo(q.queue)
	if errors.Is(err, asynq.ErrQueueNotFound) {
		return &asynq.QueueInfo{Queue: q.queue}, nil
	}

	return info, err
}

// Close closes the queue manager
func (q *QueueManager) Close() error {
	return errors.Join(q.client.Close(), q.inspector.Close())
}
