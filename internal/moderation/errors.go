package moderation

import "errors"

var (
	// ErrValidation marks malformed command arguments. No state changes.
	ErrValidation = errors.New("invalid command arguments")
	// ErrUnauthorized marks commands from non-administrators or the wrong chat.
	ErrUnauthorized = errors.New("issuer is not authorized")
	// ErrNoWarnings is returned by RemoveLatestWarn when there is nothing to remove.
	ErrNoWarnings = errors.New("user has no warnings to remove")
	// ErrStore wraps persistence failures so callers can tell a lost
	// punishment from success instead of silently continuing.
	ErrStore = errors.New("punishment store failure")
)
