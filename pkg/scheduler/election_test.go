package scheduler

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tirta-dwh/dwhetl/internal/testutil"
)

func TestLeaderElection(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	t.Run("single instance becomes leader", func(t *testing.T) {
		_, client := testutil.NewRedis(t)

		elector := NewLeaderElector(log, client, defaultConfig(t), clockwork.NewFakeClock())
		require.NoError(t, elector.Start(t.Context()))
		defer elector.Stop()

		require.NoError(t, elector.WaitForLeadership(t.Context()))
		assert.True(t, elector.IsLeader())
	})

	t.Run("multiple instances elect one leader", func(t *testing.T) {
		_, client := testutil.NewRedis(t)
		cfg := defaultConfig(t)

		elector1 := NewLeaderElector(log, client, cfg, clockwork.NewFakeClock())
		elector2 := NewLeaderElector(log, client, cfg, clockwork.NewFakeClock())

		require.NoError(t, elector1.Start(t.Context()))
		defer elector1.Stop()

		require.NoError(t, elector1.WaitForLeadership(t.Context()))

		require.NoError(t, elector2.Start(t.Context()))
		defer elector2.Stop()

		assert.Never(t, elector2.IsLeader, 200*time.Millisecond, 20*time.Millisecond)
		assert.True(t, elector1.IsLeader())
	})

	t.Run("leader failover", func(t *testing.T) {
		_, client := testutil.NewRedis(t)
		cfg := defaultConfig(t)
		clock2 := clockwork.NewFakeClock()

		elector1 := NewLeaderElector(log, client, cfg, clockwork.NewFakeClock())
		require.NoError(t, elector1.Start(t.Context()))
		require.NoError(t, elector1.WaitForLeadership(t.Context()))

		elector2 := NewLeaderElector(log, client, cfg, clock2)
		require.NoError(t, elector2.Start(t.Context()))
		defer elector2.Stop()

		// Stopping the leader releases the key.
		require.NoError(t, elector1.Stop())
		assert.False(t, elector1.IsLeader())

		require.NoError(t, clock2.BlockUntilContext(t.Context(), 1))
		clock2.Advance(cfg.RenewInterval)

		require.NoError(t, elector2.WaitForLeadership(t.Context()))
		assert.True(t, elector2.IsLeader())
	})

	t.Run("lost lease demotes", func(t *testing.T) {
		mr, client := testutil.NewRedis(t)
		cfg := defaultConfig(t)
		clock := clockwork.NewFakeClock()

		elector := NewLeaderElector(log, client, cfg, clock)
		require.NoError(t, elector.Start(t.Context()))
		defer elector.Stop()

		require.NoError(t, elector.WaitForLeadership(t.Context()))

		mr.Set(cfg.LeaderKey, "someone-else")

		require.NoError(t, clock.BlockUntilContext(t.Context(), 1))
		clock.Advance(cfg.RenewInterval)

		select {
		case <-elector.DemotedChan():
		case <-time.After(5 * time.Second):
			t.Fatal("expected demotion")
		}

		assert.False(t, elector.IsLeader())
	})
}

func TestScheduleTracker(t *testing.T) {
	_, client := testutil.NewRedis(t)
	tracker := newScheduleTracker(logrus.New(), client)

	last, err := tracker.GetLastRun(t.Context(), "etl:run_pending")
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	ts := time.Date(2021, 3, 15, 1, 0, 0, 0, time.UTC)
	require.NoError(t, tracker.SetLastRun(t.Context(), "etl:run_pending", ts))

	last, err = tracker.GetLastRun(t.Context(), "etl:run_pending")
	require.NoError(t, err)
	assert.True(t, ts.Equal(last))

	require.NoError(t, client.Set(t.Context(), scheduleKeyPrefix+"broken", "yesterday", 0).Err())
	_, err = tracker.GetLastRun(t.Context(), "broken")
	require.Error(t, err)
}
