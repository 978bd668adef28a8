package moderation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/daminow/chatwarden/internal/database/models"
	"github.com/daminow/chatwarden/internal/database/types"
	"go.uber.org/zap"
)

// UserStore is the persistence surface the ledger needs. UpdateUser must
// apply fn as a single atomic read-modify-write for the user; fn receives
// nil when no record exists and returns the record to write.
type UserStore interface {
	GetUser(ctx context.Context, userID int64) (*types.User, error)
	UpdateUser(ctx context.Context, userID int64, fn func(*types.User) (*types.User, error)) (*types.User, error)
}

// Ledger owns all writes to user punishment records. Operations against
// the same user serialize; different users proceed independently.
type Ledger struct {
	store  UserStore
	clock  Clock
	locks  sync.Map // userID -> *sync.Mutex
	logger *zap.Logger
}

// NewLedger creates a Ledger over the given store.
func NewLedger(store UserStore, clock Clock, logger *zap.Logger) *Ledger {
	return &Ledger{
		store:  store,
		clock:  clock,
		logger: logger.Named("ledger"),
	}
}

// userLock returns the mutex serializing operations for one user.
func (l *Ledger) userLock(userID int64) *sync.Mutex {
	lock, _ := l.locks.LoadOrStore(userID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// RecordPunishment appends a punishment entry to the user's history,
// creating the record on first punishment, and updates the counters:
// warns and bans are counted, mutes are not. Returns the updated record.
func (l *Ledger) RecordPunishment(
	ctx context.Context, userID int64, alias string,
	kind types.PunishmentKind, reason string, duration types.Duration, issuerID int64,
) (*types.User, error) {
	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	now := l.clock.Now()

	updated, err := l.store.UpdateUser(ctx, userID, func(user *types.User) (*types.User, error) {
		if user == nil {
			user = types.NewUser(userID, alias, now)
		} else if alias != "" {
			// Display alias is last-seen wins
			user.Alias = alias
		}

		user.History = append(user.History, types.NewPunishmentEntry(now, kind, reason, duration, issuerID))

		switch kind {
		case types.PunishmentWarn:
			user.WarningCount++
		case types.PunishmentBan:
			user.BanCount++
		case types.PunishmentMute:
		}

		return user, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: record %s for user %d: %w", ErrStore, kind, userID, err)
	}

	l.logger.Info("Recorded punishment",
		zap.Int64("userID", userID),
		zap.String("kind", string(kind)),
		zap.Int64("issuerID", issuerID),
		zap.Int("warningCount", updated.WarningCount))

	return updated, nil
}

// RemoveLatestWarn deletes the most recent warn entry from the user's
// history and decrements the warning counter. Returns ErrNoWarnings when
// the user has no record or no warnings.
func (l *Ledger) RemoveLatestWarn(ctx context.Context, userID int64) (*types.User, error) {
	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	updated, err := l.store.UpdateUser(ctx, userID, func(user *types.User) (*types.User, error) {
		if user == nil || user.WarningCount == 0 {
			return nil, ErrNoWarnings
		}

		idx := user.LatestWarnIndex()
		if idx < 0 {
			return nil, ErrNoWarnings
		}

		user.History = append(user.History[:idx], user.History[idx+1:]...)
		user.WarningCount--

		return user, nil
	})
	if err != nil {
		if errors.Is(err, ErrNoWarnings) {
			return nil, ErrNoWarnings
		}

		return nil, fmt.Errorf("%w: remove warn for user %d: %w", ErrStore, userID, err)
	}

	l.logger.Info("Removed latest warning",
		zap.Int64("userID", userID),
		zap.Int("warningCount", updated.WarningCount))

	return updated, nil
}

// GetUser loads a user's record.
// Returns ErrStore-wrapped failures and passes through models.ErrUserNotFound.
func (l *Ledger) GetUser(ctx context.Context, userID int64) (*types.User, error) {
	user, err := l.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: load user %d: %w", ErrStore, userID, err)
	}

	return user, nil
}
