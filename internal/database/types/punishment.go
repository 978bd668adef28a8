package types

import (
	"time"
)

// PunishmentKind identifies the kind of a punishment entry.
type PunishmentKind string

const (
	PunishmentWarn PunishmentKind = "warn"
	PunishmentMute PunishmentKind = "mute"
	PunishmentBan  PunishmentKind = "ban"
)

// DurationUnit is the time unit a punishment duration is measured in.
// Each punishment kind carries its own unit: days for warns, hours for
// bans, minutes for mutes.
type DurationUnit string

const (
	UnitMinutes DurationUnit = "minutes"
	UnitHours   DurationUnit = "hours"
	UnitDays    DurationUnit = "days"
)

// Duration is a tagged punishment duration. Carrying the unit next to the
// magnitude prevents a bare integer from being read in the wrong unit.
type Duration struct {
	Unit   DurationUnit `json:"unit"`
	Amount int64        `json:"amount"`
}

// UnitFor returns the duration unit implied by a punishment kind.
func UnitFor(kind PunishmentKind) DurationUnit {
	switch kind {
	case PunishmentBan:
		return UnitHours
	case PunishmentMute:
		return UnitMinutes
	default:
		return UnitDays
	}
}

// NewDuration builds a tagged duration for the given kind.
func NewDuration(kind PunishmentKind, amount int64) Duration {
	return Duration{Unit: UnitFor(kind), Amount: amount}
}

// ToDuration converts the tagged value into a time.Duration.
func (d Duration) ToDuration() time.Duration {
	switch d.Unit {
	case UnitHours:
		return time.Duration(d.Amount) * time.Hour
	case UnitDays:
		return time.Duration(d.Amount) * 24 * time.Hour
	default:
		return time.Duration(d.Amount) * time.Minute
	}
}

// AutomatedIssuer marks punishments issued by the rule engine rather than
// an administrator.
const AutomatedIssuer int64 = 0

// PunishmentEntry is a single, immutable punishment in a user's history.
type PunishmentEntry struct {
	// Monotonic entry ID derived from the creation time.
	ID int64 `json:"id"`
	// When the punishment was issued.
	CreatedAt time.Time `json:"createdAt"`
	// Kind of the punishment.
	Kind PunishmentKind `json:"kind"`
	// Free-text reason provided by the issuer or the matched rule.
	Reason string `json:"reason"`
	// Duration of the punishment in the unit implied by its kind.
	Duration Duration `json:"duration"`
	// User ID of the issuing administrator, AutomatedIssuer for the engine.
	IssuerID int64 `json:"issuerId"`
}

// NewPunishmentEntry creates an entry stamped at the given time.
func NewPunishmentEntry(
	now time.Time, kind PunishmentKind, reason string, duration Duration, issuerID int64,
) PunishmentEntry {
	return PunishmentEntry{
		ID:        now.UnixNano(),
		CreatedAt: now,
		Kind:      kind,
		Reason:    reason,
		Duration:  duration,
		IssuerID:  issuerID,
	}
}
