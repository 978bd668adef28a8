package status

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// Reporter periodically publishes the bot's processing counters. It also
// implements the coordinator's Stats interface.
type Reporter struct {
	monitor    *Monitor
	instanceID string
	processed  atomic.Uint64
	violations atomic.Uint64
	healthy    atomic.Bool
	stopChan   chan struct{}
	stopped    bool
	mu         sync.Mutex
	logger     *zap.Logger
}

// NewReporter creates a new status reporter with a random instance ID.
func NewReporter(client rueidis.Client, logger *zap.Logger) *Reporter {
	r := &Reporter{
		monitor:    NewMonitor(client, logger),
		instanceID: uuid.New().String(),
		stopChan:   make(chan struct{}),
		logger:     logger.Named("status_reporter"),
	}
	r.healthy.Store(true)

	return r
}

// Start begins periodic status reporting.
func (r *Reporter) Start(ctx context.Context) {
	r.mu.Lock()

	if r.stopped {
		r.mu.Unlock()
		return
	}

	r.mu.Unlock()

	go func() {
		ticker := time.NewTicker(HeartbeatInterval)
		defer ticker.Stop()

		// Report initial status
		if err := r.monitor.ReportStatus(ctx, r.snapshot()); err != nil {
			r.logger.Error("Failed to report initial status", zap.Error(err))
		}

		for {
			select {
			case <-ticker.C:
				if err := r.monitor.ReportStatus(ctx, r.snapshot()); err != nil {
					r.logger.Error("Failed to report status", zap.Error(err))
				}
			case <-ctx.Done():
				return
			case <-r.stopChan:
				return
			}
		}
	}()
}

// Stop ends status reporting.
func (r *Reporter) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.stopped {
		close(r.stopChan)
		r.stopped = true
	}
}

// MessageProcessed increments the processed-message counter.
func (r *Reporter) MessageProcessed() {
	r.processed.Add(1)
}

// ViolationFound increments the violation counter.
func (r *Reporter) ViolationFound() {
	r.violations.Add(1)
}

// SetHealthy updates the health flag.
func (r *Reporter) SetHealthy(healthy bool) {
	r.healthy.Store(healthy)
}

// InstanceID returns the unique instance ID.
func (r *Reporter) InstanceID() string {
	return r.instanceID
}

func (r *Reporter) snapshot() Status {
	return Status{
		InstanceID:        r.instanceID,
		MessagesProcessed: r.processed.Load(),
		ViolationsFound:   r.violations.Load(),
		IsHealthy:         r.healthy.Load(),
	}
}
