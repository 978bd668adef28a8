package models

import (
	"context"
	"fmt"
	"time"

	"github.com/daminow/chatwarden/internal/database/dbretry"
	"github.com/daminow/chatwarden/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// SanctionModel handles database operations for pending sanction reversals.
type SanctionModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewSanction creates a SanctionModel.
func NewSanction(db *bun.DB, logger *zap.Logger) *SanctionModel {
	return &SanctionModel{
		db:     db,
		logger: logger.Named("db_sanction"),
	}
}

// SaveSanction creates or refreshes the pending reversal row for a user and kind.
func (m *SanctionModel) SaveSanction(ctx context.Context, sanction *types.Sanction) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(sanction).
			On("CONFLICT (user_id, kind) DO UPDATE").
			Set("fire_at = EXCLUDED.fire_at").
			Set("issued_at = EXCLUDED.issued_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to save sanction for user %d: %w", sanction.UserID, err)
		}

		return nil
	})
}

// DeleteSanction removes the pending reversal row.
// Returns true if a row was removed, false if the sanction was not active.
func (m *SanctionModel) DeleteSanction(
	ctx context.Context, userID int64, kind types.PunishmentKind,
) (bool, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		result, err := m.db.NewDelete().
			Model((*types.Sanction)(nil)).
			Where("user_id = ?", userID).
			Where("kind = ?", kind).
			Exec(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to delete sanction for user %d: %w", userID, err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return false, err
		}

		return affected > 0, nil
	})
}

// ListSanctions returns all pending reversal rows ordered by due time.
func (m *SanctionModel) ListSanctions(ctx context.Context) ([]*types.Sanction, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Sanction, error) {
		var sanctions []*types.Sanction

		err := m.db.NewSelect().
			Model(&sanctions).
			Order("fire_at ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list sanctions: %w", err)
		}

		return sanctions, nil
	})
}

// ListDueSanctions returns rows whose reversal time has passed.
func (m *SanctionModel) ListDueSanctions(ctx context.Context, now time.Time) ([]*types.Sanction, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Sanction, error) {
		var sanctions []*types.Sanction

		err := m.db.NewSelect().
			Model(&sanctions).
			Where("fire_at <= ?", now).
			Order("fire_at ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list due sanctions: %w", err)
		}

		return sanctions, nil
	})
}
