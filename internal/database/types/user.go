package types

import (
	"time"

	"github.com/uptrace/bun"
)

// User is the persisted per-user moderation record.
type User struct {
	bun.BaseModel `bun:"table:users"`

	ID           int64             `bun:",pk"`                      // Chat user ID
	Alias        string            `bun:",notnull,default:''"`      // Last-seen display alias
	JoinedAt     time.Time         `bun:",notnull"`                 // Set once, on first creation
	WarningCount int               `bun:",notnull,default:0"`       // Count of warn entries in history
	BanCount     int               `bun:",notnull,default:0"`       // Count of ban entries in history
	History      []PunishmentEntry `bun:",type:jsonb,default:'[]'"` // Ordered by creation time
	UpdatedAt    time.Time         `bun:",notnull"`                 // When the record was last written
}

// NewUser creates a fresh record with zero counters.
func NewUser(id int64, alias string, now time.Time) *User {
	return &User{
		ID:        id,
		Alias:     alias,
		JoinedAt:  now,
		UpdatedAt: now,
	}
}

// LatestWarnIndex returns the index of the most recent warn entry,
// scanning backward from the end of the history, or -1 if none exists.
func (u *User) LatestWarnIndex() int {
	for i := len(u.History) - 1; i >= 0; i-- {
		if u.History[i].Kind == PunishmentWarn {
			return i
		}
	}

	return -1
}
