package migrations

import (
	"context"
	"fmt"

	"github.com/daminow/chatwarden/internal/database/types"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		tables := []any{
			(*types.User)(nil),
			(*types.Sanction)(nil),
		}

		for _, model := range tables {
			_, err := db.NewCreateTable().
				Model(model).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create table for %T: %w", model, err)
			}
		}

		// Index for the startup scan of unexpired sanctions
		_, err := db.NewCreateIndex().
			Model((*types.Sanction)(nil)).
			Index("sanctions_fire_at_idx").
			Column("fire_at").
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create sanctions index: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		for _, model := range []any{(*types.Sanction)(nil), (*types.User)(nil)} {
			_, err := db.NewDropTable().
				Model(model).
				IfExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to drop table for %T: %w", model, err)
			}
		}

		return nil
	})
}
