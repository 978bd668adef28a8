// Package chat defines the transport surface the moderation core depends on.
// Implementations adapt a concrete chat platform to these interfaces; the
// core never imports a platform SDK directly.
package chat

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrMessageNotFound is returned when a message to delete no longer exists.
	ErrMessageNotFound = errors.New("message not found")
	// ErrTransport wraps transport-level failures of send/restrict/ban calls.
	ErrTransport = errors.New("transport error")
)

// Message is an inbound text message as seen by the moderation core.
type Message struct {
	ChatID    int64
	MessageID int
	ThreadID  int
	SenderID  int64
	Alias     string
	Text      string
	Group     bool
	SentAt    time.Time
}

// Permissions describes what a restricted member may still do.
type Permissions struct {
	CanSendMessages bool
	CanSendMedia    bool
	CanSendOther    bool
}

// NoPermissions returns the permission set of a fully muted member.
func NoPermissions() Permissions {
	return Permissions{}
}

// FullPermissions returns the default member permission set.
func FullPermissions() Permissions {
	return Permissions{
		CanSendMessages: true,
		CanSendMedia:    true,
		CanSendOther:    true,
	}
}

// Messenger is the outbound transport surface.
// All methods are safe for concurrent use.
type Messenger interface {
	// DeleteMessage removes a message. Returns ErrMessageNotFound when the
	// message was already removed.
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	// SendMessage posts text to a chat; threadID of zero targets the main thread.
	SendMessage(ctx context.Context, chatID int64, threadID int, text string) error
	// RestrictMember applies a permission set to a member until the given time.
	RestrictMember(ctx context.Context, chatID, userID int64, perms Permissions, until time.Time) error
	// BanMember removes a member from the chat.
	BanMember(ctx context.Context, chatID, userID int64) error
	// UnbanMember lifts a ban. A no-op if the member is not currently banned.
	UnbanMember(ctx context.Context, chatID, userID int64) error
	// IsAdministrator reports whether the user administrates the chat.
	// Results are never cached; callers see the live member state.
	IsAdministrator(ctx context.Context, chatID, userID int64) (bool, error)
}
