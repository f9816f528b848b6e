package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waitroom/config"
	"waitroom/internal/status"
	"waitroom/models"
	"waitroom/monitoring"
)

type stubConfigs map[string]*models.QueueConfiguration

func (s stubConfigs) Get(resourceID string) (*models.QueueConfiguration, error) {
	cfg, ok := s[resourceID]
	if !ok {
		return nil, status.ErrConfigurationMissing
	}
	return cfg, nil
}

func newTestQueueService(configs stubConfigs) (*QueueService, *SessionStore, *time.Time) {
	store, now := newTestStore()
	cfg := &config.Config{
		DefaultMaxConcurrent:     10,
		DefaultAvgSessionMinutes: 5,
		DefaultSessionTimeout:    90 * time.Second,
		AdmissionInterval:        time.Second,
		SweepInterval:            time.Second,
		StatsInterval:            time.Minute,
	}

	service := NewQueueService(store, configs, NewNotifier(nil), monitoring.NewMonitor(), cfg)
	return service, store, now
}

func onsaleConfig(maxConcurrent int) stubConfigs {
	return stubConfigs{
		"onsale-1": {
			ResourceID:        "onsale-1",
			MaxConcurrent:     maxConcurrent,
			AvgSessionMinutes: 5,
			SessionTimeout:    90 * time.Second,
		},
	}
}

func TestQueueService_JoinWithFreeCapacity(t *testing.T) {
	service, _, _ := newTestQueueService(onsaleConfig(10))
	ctx := context.Background()

	// Five sessions occupy slots, the sixth still fits.
	for i := 0; i < 5; i++ {
		_, err := service.Join(ctx, "onsale-1", fmt.Sprintf("warm-user-%d", i))
		require.NoError(t, err)
	}

	state, err := service.Join(ctx, "onsale-1", "new-user")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, state.Status)
	assert.Equal(t, 0, state.Position)
	assert.Zero(t, state.EstimatedWaitMinutes)
	assert.Equal(t, 100, state.ProgressPercent)
}

func TestQueueService_JoinAtCapacityQueues(t *testing.T) {
	service, _, _ := newTestQueueService(onsaleConfig(10))
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := service.Join(ctx, "onsale-1", fmt.Sprintf("warm-user-%d", i))
		require.NoError(t, err)
	}

	state, err := service.Join(ctx, "onsale-1", "new-user")
	require.NoError(t, err)
	assert.Equal(t, models.StatusQueued, state.Status)
	assert.Equal(t, 1, state.Position)
	assert.Equal(t, "1st", state.PositionLabel)
	assert.Equal(t, float64(5), state.EstimatedWaitMinutes)
	assert.Equal(t, "About 5 minutes", state.WaitMessage)
	assert.Equal(t, 1, state.TotalQueued)
}

func TestQueueService_JoinUnprovisionedResource(t *testing.T) {
	service, _, _ := newTestQueueService(onsaleConfig(10))

	_, err := service.Join(context.Background(), "ghost-resource", "someone")
	assert.ErrorIs(t, err, status.ErrConfigurationMissing)
}

func TestQueueService_AdmissionPausedWithoutConfiguration(t *testing.T) {
	service, store, _ := newTestQueueService(onsaleConfig(10))
	ctx := context.Background()

	// Sessions exist for a resource whose configuration was removed.
	_, err := store.Join(ctx, "ghost-resource", "alice", 0)
	require.NoError(t, err)

	err = service.AdmitEligible(ctx, "ghost-resource")
	assert.ErrorIs(t, err, status.ErrConfigurationMissing)

	snap := store.Snapshot("ghost-resource")
	assert.Zero(t, snap.ActiveCount, "paused resource must not admit")
	assert.Len(t, snap.Queued, 1)
}

func TestQueueService_HeartbeatNotifyConsumedOnce(t *testing.T) {
	service, _, _ := newTestQueueService(onsaleConfig(1))
	ctx := context.Background()

	_, err := service.Join(ctx, "onsale-1", "holder")
	require.NoError(t, err)
	queued, err := service.Join(ctx, "onsale-1", "waiter")
	require.NoError(t, err)
	require.Equal(t, models.StatusQueued, queued.Status)

	first, err := service.Heartbeat(ctx, queued.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Position)
	assert.True(t, first.Notify, "first computed position should notify")

	// Nothing moved, so the repeat heartbeat must stay quiet.
	second, err := service.Heartbeat(ctx, queued.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Position)
	assert.False(t, second.Notify)
}

func TestQueueService_HeartbeatRecordsDeliveredPosition(t *testing.T) {
	service, store, now := newTestQueueService(onsaleConfig(1))
	ctx := context.Background()

	_, err := service.Join(ctx, "onsale-1", "holder")
	require.NoError(t, err)
	*now = now.Add(time.Second)
	_, err = service.Join(ctx, "onsale-1", "first")
	require.NoError(t, err)
	*now = now.Add(time.Second)
	second, err := service.Join(ctx, "onsale-1", "second")
	require.NoError(t, err)

	state, err := service.Heartbeat(ctx, second.SessionID)
	require.NoError(t, err)
	require.True(t, state.Notify)
	assert.Equal(t, 2, state.Position)

	// The bookkeeping write must carry the position the client was shown.
	stored, err := store.Session(second.SessionID)
	require.NoError(t, err)
	assert.Equal(t, state.Position, stored.LastNotifiedPosition)
}

func TestQueueService_StatusDoesNotConsumeNotification(t *testing.T) {
	service, _, _ := newTestQueueService(onsaleConfig(1))
	ctx := context.Background()

	_, err := service.Join(ctx, "onsale-1", "holder")
	require.NoError(t, err)
	queued, err := service.Join(ctx, "onsale-1", "waiter")
	require.NoError(t, err)

	polled, err := service.Status(ctx, queued.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, polled.Position)
	assert.False(t, polled.Notify)

	// The poll above must not have eaten the pending update.
	beat, err := service.Heartbeat(ctx, queued.SessionID)
	require.NoError(t, err)
	assert.True(t, beat.Notify)
}

func TestQueueService_LeavePromotesNextInLine(t *testing.T) {
	service, _, now := newTestQueueService(onsaleConfig(1))
	ctx := context.Background()

	holder, err := service.Join(ctx, "onsale-1", "holder")
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, holder.Status)

	*now = now.Add(time.Second)
	waiter, err := service.Join(ctx, "onsale-1", "waiter")
	require.NoError(t, err)
	require.Equal(t, models.StatusQueued, waiter.Status)

	require.NoError(t, service.Leave(ctx, holder.SessionID))

	state, err := service.Status(ctx, waiter.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, state.Status)
	assert.Equal(t, 0, state.Position)

	// Heartbeating at the front is never suppressed.
	beat, err := service.Heartbeat(ctx, waiter.SessionID)
	require.NoError(t, err)
	assert.True(t, beat.Notify)
}

func TestQueueService_CompleteFreesSlot(t *testing.T) {
	service, store, now := newTestQueueService(onsaleConfig(1))
	ctx := context.Background()

	holder, err := service.Join(ctx, "onsale-1", "holder")
	require.NoError(t, err)
	*now = now.Add(time.Second)
	waiter, err := service.Join(ctx, "onsale-1", "waiter")
	require.NoError(t, err)

	require.NoError(t, service.Complete(ctx, holder.SessionID))

	snap := store.Snapshot("onsale-1")
	assert.Equal(t, 1, snap.ActiveCount)
	assert.Equal(t, 0, snap.PositionOf(waiter.SessionID))

	// A completed session is terminal.
	_, err = service.Heartbeat(ctx, holder.SessionID)
	assert.ErrorIs(t, err, status.ErrSessionNotFound)
}

func TestQueueService_SweepExpiresAndReadmits(t *testing.T) {
	service, _, now := newTestQueueService(onsaleConfig(1))
	ctx := context.Background()

	holder, err := service.Join(ctx, "onsale-1", "holder")
	require.NoError(t, err)
	waiter, err := service.Join(ctx, "onsale-1", "waiter")
	require.NoError(t, err)

	// The waiter keeps polling; the holder goes silent past the timeout.
	*now = now.Add(30 * time.Second)
	_, err = service.Heartbeat(ctx, waiter.SessionID)
	require.NoError(t, err)

	*now = now.Add(70 * time.Second)
	service.sweepExpired(ctx)

	state, err := service.Status(ctx, waiter.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, state.Status)

	_, err = service.Status(ctx, holder.SessionID)
	assert.ErrorIs(t, err, status.ErrSessionNotFound)
}

func TestQueueService_EvictFreesSlot(t *testing.T) {
	service, _, now := newTestQueueService(onsaleConfig(1))
	ctx := context.Background()

	holder, err := service.Join(ctx, "onsale-1", "holder")
	require.NoError(t, err)
	*now = now.Add(time.Second)
	waiter, err := service.Join(ctx, "onsale-1", "waiter")
	require.NoError(t, err)

	require.NoError(t, service.Evict(ctx, holder.SessionID))

	state, err := service.Status(ctx, waiter.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, state.Status)

	assert.ErrorIs(t, service.Evict(ctx, holder.SessionID), status.ErrSessionNotFound)
}

func TestQueueService_DashboardReflectsState(t *testing.T) {
	service, _, _ := newTestQueueService(onsaleConfig(2))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := service.Join(ctx, "onsale-1", fmt.Sprintf("user-%d", i))
		require.NoError(t, err)
	}

	stats := service.Dashboard()
	require.Len(t, stats, 1)
	assert.Equal(t, "onsale-1", stats[0].ResourceID)
	assert.Equal(t, 2, stats[0].Active)
	assert.Equal(t, 3, stats[0].Queued)
}
