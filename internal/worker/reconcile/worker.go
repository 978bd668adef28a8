package reconcile

import (
	"context"
	"time"

	"github.com/daminow/chatwarden/internal/database/types"
	"github.com/daminow/chatwarden/internal/moderation"
	"github.com/redis/rueidis"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

const (
	// LockKey guards reconciliation so one instance runs a sweep at a time.
	LockKey = "reconcile:lock"

	// LockTTL bounds how long a crashed instance can hold the lock.
	LockTTL = 5 * time.Minute
)

// SanctionSource provides the sanctions due for reversal.
type SanctionSource interface {
	ListDueSanctions(ctx context.Context, now time.Time) ([]*types.Sanction, error)
	DeleteSanction(ctx context.Context, userID int64, kind types.PunishmentKind) (bool, error)
}

// Worker periodically sweeps the sanction table for entries whose expiry
// passed without the in-process timer firing, for example after a crash
// between restart and restore or when the clock jumped.
type Worker struct {
	store       SanctionSource
	lockClient  rueidis.Client
	revert      moderation.RevertFunc
	interval    time.Duration
	concurrency int
	logger      *zap.Logger
}

// New creates a reconciliation worker.
func New(
	store SanctionSource, lockClient rueidis.Client, revert moderation.RevertFunc,
	interval time.Duration, concurrency int, logger *zap.Logger,
) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}

	return &Worker{
		store:       store,
		lockClient:  lockClient,
		revert:      revert,
		interval:    interval,
		concurrency: concurrency,
		logger:      logger.Named("reconcile"),
	}
}

// Start runs the sweep loop until the context is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Reconcile worker started", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Reconcile worker stopped")
			return
		case <-ticker.C:
			if err := w.sweep(ctx); err != nil {
				w.logger.Error("Sweep failed", zap.Error(err))
			}
		}
	}
}

// sweep reverts every overdue sanction. The Redis lock keeps concurrent
// instances from double-sweeping; losing the race is not an error.
func (w *Worker) sweep(ctx context.Context) error {
	acquired, err := w.acquireLock(ctx)
	if err != nil {
		return err
	}

	if !acquired {
		w.logger.Debug("Another instance holds the reconcile lock")
		return nil
	}
	defer w.releaseLock(ctx)

	due, err := w.store.ListDueSanctions(ctx, time.Now())
	if err != nil {
		return err
	}

	if len(due) == 0 {
		return nil
	}

	w.logger.Info("Reverting overdue sanctions", zap.Int("count", len(due)))

	p := pool.New().WithMaxGoroutines(w.concurrency).WithContext(ctx)
	for _, sanction := range due {
		p.Go(func(ctx context.Context) error {
			w.revertOne(ctx, sanction)
			return nil
		})
	}

	return p.Wait()
}

// revertOne reverses one sanction at the transport and then removes its
// row. Reverting before deleting keeps the row around for the next sweep
// when the transport fails; a duplicate revert after a scheduler timer won
// the race is a no-op.
func (w *Worker) revertOne(ctx context.Context, sanction *types.Sanction) {
	if err := w.revert(ctx, sanction.UserID, sanction.Kind); err != nil {
		w.logger.Error("Failed to revert overdue sanction",
			zap.Int64("userID", sanction.UserID),
			zap.String("kind", string(sanction.Kind)),
			zap.Error(err))

		return
	}

	if _, err := w.store.DeleteSanction(ctx, sanction.UserID, sanction.Kind); err != nil {
		w.logger.Error("Failed to delete reverted sanction",
			zap.Int64("userID", sanction.UserID),
			zap.String("kind", string(sanction.Kind)),
			zap.Error(err))

		return
	}

	w.logger.Info("Reverted overdue sanction",
		zap.Int64("userID", sanction.UserID),
		zap.String("kind", string(sanction.Kind)),
		zap.Time("fireAt", sanction.FireAt))
}

func (w *Worker) acquireLock(ctx context.Context) (bool, error) {
	resp := w.lockClient.Do(ctx, w.lockClient.B().Set().
		Key(LockKey).Value("1").Nx().Ex(LockTTL).Build())
	if err := resp.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

func (w *Worker) releaseLock(ctx context.Context) {
	if err := w.lockClient.Do(ctx, w.lockClient.B().Del().Key(LockKey).Build()).Error(); err != nil {
		w.logger.Error("Failed to release reconcile lock", zap.Error(err))
	}
}
