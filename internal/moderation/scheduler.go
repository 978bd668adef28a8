package moderation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/daminow/chatwarden/internal/database/types"
	"go.uber.org/zap"
)

// SanctionStore persists pending reversals so they survive restarts.
type SanctionStore interface {
	SaveSanction(ctx context.Context, sanction *types.Sanction) error
	DeleteSanction(ctx context.Context, userID int64, kind types.PunishmentKind) (bool, error)
	ListSanctions(ctx context.Context) ([]*types.Sanction, error)
}

// RevertFunc reverses a time-bound restriction at the transport. It must
// be idempotent: reversing a sanction that is no longer active is a no-op.
type RevertFunc func(ctx context.Context, userID int64, kind types.PunishmentKind) error

// Scheduler arms timers that reverse time-bound sanctions at expiry.
// Timers only touch the external restriction; punishment history is never
// rewritten by an expiry.
type Scheduler struct {
	store  SanctionStore
	clock  Clock
	revert RevertFunc
	logger *zap.Logger

	mu     sync.Mutex
	timers map[timerKey]Timer
}

type timerKey struct {
	userID int64
	kind   types.PunishmentKind
}

// NewScheduler creates a Scheduler. revert is invoked exactly once per
// fired timer, from the timer's own goroutine.
func NewScheduler(store SanctionStore, clock Clock, revert RevertFunc, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		store:  store,
		clock:  clock,
		revert: revert,
		logger: logger.Named("scheduler"),
		timers: make(map[timerKey]Timer),
	}
}

// Arm persists the pending reversal and starts its timer. Re-arming an
// already armed (user, kind) pair replaces the previous timer.
func (s *Scheduler) Arm(ctx context.Context, userID int64, kind types.PunishmentKind, d time.Duration) error {
	now := s.clock.Now()

	err := s.store.SaveSanction(ctx, &types.Sanction{
		UserID:   userID,
		Kind:     kind,
		FireAt:   now.Add(d),
		IssuedAt: now,
	})
	if err != nil {
		return fmt.Errorf("%w: persist sanction for user %d: %w", ErrStore, userID, err)
	}

	s.armTimer(userID, kind, d)

	s.logger.Info("Armed sanction reversal",
		zap.Int64("userID", userID),
		zap.String("kind", string(kind)),
		zap.Duration("duration", d))

	return nil
}

// Restore scans persisted sanctions on startup, re-arms unexpired ones and
// immediately reverses the ones that expired while the process was down.
func (s *Scheduler) Restore(ctx context.Context) error {
	sanctions, err := s.store.ListSanctions(ctx)
	if err != nil {
		return fmt.Errorf("%w: list sanctions: %w", ErrStore, err)
	}

	now := s.clock.Now()

	for _, sanction := range sanctions {
		if sanction.Expired(now) {
			s.fire(sanction.UserID, sanction.Kind)
			continue
		}

		s.armTimer(sanction.UserID, sanction.Kind, sanction.FireAt.Sub(now))
	}

	s.logger.Info("Restored sanction timers", zap.Int("count", len(sanctions)))

	return nil
}

// Disarm drops the persisted reversal and stops its timer, for sanctions
// lifted manually before expiry.
func (s *Scheduler) Disarm(ctx context.Context, userID int64, kind types.PunishmentKind) error {
	s.mu.Lock()

	key := timerKey{userID: userID, kind: kind}
	if timer, ok := s.timers[key]; ok {
		timer.Stop()
		delete(s.timers, key)
	}

	s.mu.Unlock()

	if _, err := s.store.DeleteSanction(ctx, userID, kind); err != nil {
		return fmt.Errorf("%w: delete sanction for user %d: %w", ErrStore, userID, err)
	}

	return nil
}

// Close stops all armed timers. Persisted rows are untouched, so the
// reversals are picked up again by the next Restore.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, timer := range s.timers {
		timer.Stop()
		delete(s.timers, key)
	}
}

// armTimer registers the in-memory timer for a pending reversal.
func (s *Scheduler) armTimer(userID int64, kind types.PunishmentKind, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := timerKey{userID: userID, kind: kind}
	if timer, ok := s.timers[key]; ok {
		timer.Stop()
	}

	s.timers[key] = s.clock.AfterFunc(d, func() {
		s.fire(userID, kind)
	})
}

// fire runs one reversal. The revert call runs before the persisted row is
// dropped: reverts are idempotent, so a duplicate attempt is harmless, but a
// row deleted ahead of a failed revert would leave the restriction in place
// with nothing left to retry. On revert failure the row stays for the next
// Restore or reconcile sweep.
func (s *Scheduler) fire(userID int64, kind types.PunishmentKind) {
	ctx := context.Background()

	s.mu.Lock()
	delete(s.timers, timerKey{userID: userID, kind: kind})
	s.mu.Unlock()

	if err := s.revert(ctx, userID, kind); err != nil {
		s.logger.Error("Failed to reverse expired sanction",
			zap.Int64("userID", userID),
			zap.String("kind", string(kind)),
			zap.Error(err))

		return
	}

	if _, err := s.store.DeleteSanction(ctx, userID, kind); err != nil {
		s.logger.Error("Failed to delete reversed sanction",
			zap.Int64("userID", userID),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}

	s.logger.Info("Reversed expired sanction",
		zap.Int64("userID", userID),
		zap.String("kind", string(kind)))
}
