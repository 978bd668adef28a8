package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDuration(t *testing.T) {
	tests := []struct {
		name     string
		kind     PunishmentKind
		amount   int64
		unit     DurationUnit
		expected time.Duration
	}{
		{name: "warn in days", kind: PunishmentWarn, amount: 3, unit: UnitDays, expected: 72 * time.Hour},
		{name: "ban in hours", kind: PunishmentBan, amount: 2, unit: UnitHours, expected: 2 * time.Hour},
		{name: "mute in minutes", kind: PunishmentMute, amount: 30, unit: UnitMinutes, expected: 30 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDuration(tt.kind, tt.amount)
			assert.Equal(t, tt.unit, d.Unit)
			assert.Equal(t, tt.amount, d.Amount)
			assert.Equal(t, tt.expected, d.ToDuration())
		})
	}
}

func TestLatestWarnIndex(t *testing.T) {
	now := time.Now()
	user := NewUser(100, "alice", now)
	assert.Equal(t, -1, user.LatestWarnIndex())

	user.History = []PunishmentEntry{
		NewPunishmentEntry(now, PunishmentWarn, "первое", NewDuration(PunishmentWarn, 0), AutomatedIssuer),
		NewPunishmentEntry(now.Add(time.Minute), PunishmentWarn, "второе", NewDuration(PunishmentWarn, 0), AutomatedIssuer),
		NewPunishmentEntry(now.Add(2*time.Minute), PunishmentMute, "флуд", NewDuration(PunishmentMute, 30), 7),
	}

	// Scans past the trailing mute to the most recent warn
	assert.Equal(t, 1, user.LatestWarnIndex())
}

func TestSanctionExpired(t *testing.T) {
	now := time.Now()
	sanction := &Sanction{UserID: 100, Kind: PunishmentMute, FireAt: now.Add(time.Hour)}

	assert.False(t, sanction.Expired(now))
	assert.True(t, sanction.Expired(now.Add(time.Hour)))
	assert.True(t, sanction.Expired(now.Add(2*time.Hour)))
}
