package types

import (
	"time"

	"github.com/uptrace/bun"
)

// Sanction is a persisted time-bound restriction awaiting reversal.
// A row exists while the restriction is active; reversing the restriction
// deletes the row, so reversal stays idempotent across timer replays,
// manual unbans and process restarts.
type Sanction struct {
	bun.BaseModel `bun:"table:sanctions"`

	UserID   int64          `bun:",pk"`        // Sanctioned user
	Kind     PunishmentKind `bun:",pk"`        // ban or mute
	FireAt   time.Time      `bun:",notnull"`   // When the reversal is due
	IssuedAt time.Time      `bun:",notnull"`   // When the sanction was applied
}

// Expired reports whether the sanction is due for reversal at the given time.
func (s *Sanction) Expired(now time.Time) bool {
	return !now.Before(s.FireAt)
}
