package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/daminow/chatwarden/internal/database/dbretry"
	"github.com/daminow/chatwarden/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ErrUserNotFound is returned when no record exists for the requested user.
var ErrUserNotFound = errors.New("user record not found")

// UserModel handles database operations for user records.
type UserModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewUser creates a UserModel.
func NewUser(db *bun.DB, logger *zap.Logger) *UserModel {
	return &UserModel{
		db:     db,
		logger: logger.Named("db_user"),
	}
}

// GetUser loads a user record by ID.
// Returns ErrUserNotFound when the record does not exist.
func (m *UserModel) GetUser(ctx context.Context, userID int64) (*types.User, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.User, error) {
		user := new(types.User)

		err := m.db.NewSelect().
			Model(user).
			Where("id = ?", userID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrUserNotFound
			}

			return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
		}

		return user, nil
	})
}

// UpdateUser applies fn to the user's record inside a single transaction,
// holding a row lock so that concurrent writers against the same user
// serialize. When no record exists, fn receives nil and the record it
// returns is inserted.
func (m *UserModel) UpdateUser(
	ctx context.Context, userID int64, fn func(*types.User) (*types.User, error),
) (*types.User, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.User, error) {
		var updated *types.User

		err := m.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
			current := new(types.User)

			err := tx.NewSelect().
				Model(current).
				Where("id = ?", userID).
				For("UPDATE").
				Scan(ctx)
			if err != nil {
				if !errors.Is(err, sql.ErrNoRows) {
					return fmt.Errorf("failed to lock user %d: %w", userID, err)
				}

				current = nil
			}

			updated, err = fn(current)
			if err != nil {
				return err
			}

			updated.UpdatedAt = time.Now()

			_, err = tx.NewInsert().
				Model(updated).
				On("CONFLICT (id) DO UPDATE").
				Set("alias = EXCLUDED.alias").
				Set("warning_count = EXCLUDED.warning_count").
				Set("ban_count = EXCLUDED.ban_count").
				Set("history = EXCLUDED.history").
				Set("updated_at = EXCLUDED.updated_at").
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to write user %d: %w", userID, err)
			}

			return nil
		})
		if err != nil {
			return nil, err
		}

		return updated, nil
	})
}
