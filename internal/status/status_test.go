package status_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bytedance/sonic"
	"github.com/daminow/chatwarden/internal/status"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTest(t *testing.T) (*status.Monitor, func()) {
	t.Helper()
	// Start miniredis server
	mr, err := miniredis.Run()
	require.NoError(t, err)

	// Create Redis client
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)

	monitor := status.NewMonitor(client, zap.NewNop())

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return monitor, cleanup
}

func TestReportStatus(t *testing.T) {
	monitor, cleanup := setupTest(t)
	defer cleanup()

	ctx := context.Background()

	err := monitor.ReportStatus(ctx, status.Status{
		InstanceID:        "instance-1",
		MessagesProcessed: 42,
		ViolationsFound:   7,
		IsHealthy:         true,
	})
	require.NoError(t, err)

	statuses, err := monitor.GetAllStatuses(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)

	assert.Equal(t, "instance-1", statuses[0].InstanceID)
	assert.Equal(t, uint64(42), statuses[0].MessagesProcessed)
	assert.Equal(t, uint64(7), statuses[0].ViolationsFound)
	assert.True(t, statuses[0].IsHealthy)
	assert.False(t, statuses[0].LastSeen.IsZero())
}

func TestGetAllStatuses_MultipleInstances(t *testing.T) {
	monitor, cleanup := setupTest(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, monitor.ReportStatus(ctx, status.Status{InstanceID: "a", IsHealthy: true}))
	require.NoError(t, monitor.ReportStatus(ctx, status.Status{InstanceID: "b", IsHealthy: false}))

	statuses, err := monitor.GetAllStatuses(ctx)
	require.NoError(t, err)
	assert.Len(t, statuses, 2)
}

func TestGetAllStatuses_StaleInstanceUnhealthy(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	defer client.Close()

	monitor := status.NewMonitor(client, zap.NewNop())
	ctx := context.Background()

	// A heartbeat well past the stale threshold, stored with the healthy flag set
	stale, err := sonic.Marshal(status.Status{
		InstanceID: "stale-1",
		LastSeen:   time.Now().Add(-2 * status.StaleThreshold),
		IsHealthy:  true,
	})
	require.NoError(t, err)

	err = client.Do(ctx, client.B().Set().Key("moderator:stale-1").Value(string(stale)).Build()).Error()
	require.NoError(t, err)

	statuses, err := monitor.GetAllStatuses(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.False(t, statuses[0].IsHealthy)
}
