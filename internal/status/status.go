package status

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

const (
	// HeartbeatInterval is how often the bot reports its status.
	HeartbeatInterval = 10 * time.Second

	// HeartbeatTTL is how long a reported status remains valid.
	HeartbeatTTL = 10 * time.Minute

	// StaleThreshold is how long before an instance is considered offline.
	StaleThreshold = 1 * time.Minute
)

// Status represents a bot instance's current state.
type Status struct {
	InstanceID        string    `json:"instanceId"`
	LastSeen          time.Time `json:"lastSeen"`
	MessagesProcessed uint64    `json:"messagesProcessed"`
	ViolationsFound   uint64    `json:"violationsFound"`
	IsHealthy         bool      `json:"isHealthy"`
}

// Monitor handles status reporting and querying.
type Monitor struct {
	client rueidis.Client
	logger *zap.Logger
}

// NewMonitor creates a new status monitor.
func NewMonitor(client rueidis.Client, logger *zap.Logger) *Monitor {
	return &Monitor{
		client: client,
		logger: logger,
	}
}

// ReportStatus updates an instance's status in Redis.
func (m *Monitor) ReportStatus(ctx context.Context, status Status) error {
	status.LastSeen = time.Now()

	data, err := sonic.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	key := "moderator:" + status.InstanceID

	err = m.client.Do(ctx, m.client.B().Set().Key(key).Value(string(data)).Ex(HeartbeatTTL).Build()).Error()
	if err != nil {
		return fmt.Errorf("failed to store status: %w", err)
	}

	return nil
}

// GetAllStatuses retrieves the statuses of every known instance. Instances
// whose last heartbeat is older than StaleThreshold are reported unhealthy
// regardless of their own flag.
func (m *Monitor) GetAllStatuses(ctx context.Context) ([]Status, error) {
	keys, err := m.client.Do(ctx, m.client.B().Keys().Pattern("moderator:*").Build()).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to get instance keys: %w", err)
	}

	now := time.Now()
	statuses := make([]Status, 0, len(keys))

	for _, key := range keys {
		data, err := m.client.Do(ctx, m.client.B().Get().Key(key).Build()).AsBytes()
		if err != nil {
			m.logger.Error("Failed to get instance status", zap.String("key", key), zap.Error(err))
			continue
		}

		var status Status
		if err := sonic.Unmarshal(data, &status); err != nil {
			m.logger.Error("Failed to unmarshal instance status", zap.String("key", key), zap.Error(err))
			continue
		}

		if now.Sub(status.LastSeen) > StaleThreshold {
			status.IsHealthy = false
		}

		statuses = append(statuses, status)
	}

	return statuses, nil
}
