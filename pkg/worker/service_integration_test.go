//go:build integration

package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tirta-dwh/dwhetl/internal/testutil"
	"github.com/tirta-dwh/dwhetl/pkg/orchestrator"
	"github.com/tirta-dwh/dwhetl/pkg/period"
	r "github.com/tirta-dwh/dwhetl/pkg/redis"
	"github.com/tirta-dwh/dwhetl/pkg/tasks"
)

type countingRunner struct {
	pending   atomic.Int32
	reprocess atomic.Int32
}

func (c *countingRunner) RunPending(_ context.Context, _ orchestrator.Trigger) ([]*orchestrator.Report, error) {
	c.pending.Add(1)
	return nil, nil
}

func (c *countingRunner) RunPeriod(_ context.Context, p period.Period, _ orchestrator.Trigger) (*orchestrator.Report, error) {
	return &orchestrator.Report{Period: p}, nil
}

func (c *countingRunner) Reprocess(_ context.Context, p period.Period, _ orchestrator.Trigger) (*orchestrator.Report, error) {
	c.reprocess.Add(1)
	return &orchestrator.Report{Period: p, Reprocess: true}, nil
}

func TestWorkerProcessesQueuedTasks(t *testing.T) {
	container := testutil.NewRedisContainer(t)

	cfg := r.Config{URL: container.URL}
	opts, err := cfg.Options()
	require.NoError(t, err)

	redisOpt := r.NewAsynqRedisOptions(opts)

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	runner := &countingRunner{}

	svc, err := NewService(log, &Config{Queue: tasks.DefaultQueue, ShutdownTimeout: 5 * time.Second}, redisOpt, tasks.NewTaskHandler(log, runner, nil))
	require.NoError(t, err)
	require.NoError(t, svc.Start(t.Context()))
	t.Cleanup(func() { _ = svc.Stop() })

	queue := tasks.NewQueueManager(log, redisOpt, tasks.DefaultQueue, 0, nil)
	t.Cleanup(func() { _ = queue.Close() })

	_, err = queue.EnqueueRunPending(t.Context(), orchestrator.TriggerAPI)
	require.NoError(t, err)

	_, err = queue.EnqueuePeriod(t.Context(), period.Month(period.Date(2021, time.January, 1)), orchestrator.TriggerAPI, true)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return runner.pending.Load() == 1 && runner.reprocess.Load() == 1
	}, 20*time.Second, 100*time.Millisecond)
}
