// Package telegram adapts the Telegram Bot API to the chat transport
// interfaces via telebot.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/daminow/chatwarden/internal/chat"
	"github.com/daminow/chatwarden/internal/setup/config"
	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// commands routed to the handler as administrator or informational commands.
var commandNames = []string{"ban", "warn", "unwarn", "mute", "unmute", "start", "help", "rules"}

// Bot wraps a telebot instance and implements chat.Messenger.
type Bot struct {
	bot    *tele.Bot
	cfg    *config.Telegram
	retry  *config.Retry
	logger *zap.Logger
}

// New connects to the Telegram Bot API.
func New(cfg *config.Telegram, retry *config.Retry, logger *zap.Logger) (*Bot, error) {
	pollTimeout := time.Duration(cfg.PollTimeout) * time.Second
	if pollTimeout <= 0 {
		pollTimeout = 10 * time.Second
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: pollTimeout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &Bot{
		bot:    bot,
		cfg:    cfg,
		retry:  retry,
		logger: logger.Named("telegram"),
	}, nil
}

// Register wires inbound updates to the handler.
func (b *Bot) Register(ctx context.Context, handler chat.Handler) {
	b.bot.Handle(tele.OnText, func(c tele.Context) error {
		msg := c.Message()
		if msg == nil || msg.Text == "" {
			return nil
		}

		// Channel posts and anonymous admins carry no sender to punish
		if msg.Sender == nil {
			return nil
		}

		handler.HandleMessage(ctx, toMessage(msg))

		return nil
	})

	for _, name := range commandNames {
		b.bot.Handle("/"+name, func(c tele.Context) error {
			msg := c.Message()
			if msg == nil || msg.Sender == nil {
				return nil
			}

			handler.HandleCommand(ctx, chat.Command{
				Name:        strings.TrimPrefix(strings.Fields(msg.Text)[0], "/"),
				Args:        strings.Fields(msg.Payload),
				ChatID:      msg.Chat.ID,
				ThreadID:    msg.ThreadID,
				IssuerID:    msg.Sender.ID,
				IssuerAlias: senderAlias(msg.Sender),
			})

			return nil
		})
	}
}

// Start runs the long-poll loop until the context is cancelled.
func (b *Bot) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		b.bot.Stop()
	}()

	b.logger.Info("Starting Telegram long polling")
	b.bot.Start()
}

// DeleteMessage removes a message from a chat.
func (b *Bot) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	err := b.withRetry(ctx, func() error {
		return b.bot.Delete(&tele.StoredMessage{
			MessageID: strconv.Itoa(messageID),
			ChatID:    chatID,
		})
	})
	if err != nil {
		if strings.Contains(err.Error(), "message to delete not found") {
			return chat.ErrMessageNotFound
		}

		return fmt.Errorf("%w: delete message %d: %w", chat.ErrTransport, messageID, err)
	}

	return nil
}

// SendMessage posts text to a chat, optionally into a thread.
func (b *Bot) SendMessage(ctx context.Context, chatID int64, threadID int, text string) error {
	err := b.withRetry(ctx, func() error {
		_, err := b.bot.Send(tele.ChatID(chatID), text, &tele.SendOptions{ThreadID: threadID})
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: send message: %w", chat.ErrTransport, err)
	}

	return nil
}

// RestrictMember applies a permission set to a chat member until the given time.
func (b *Bot) RestrictMember(
	ctx context.Context, chatID, userID int64, perms chat.Permissions, until time.Time,
) error {
	member := &tele.ChatMember{
		User: &tele.User{ID: userID},
		Rights: tele.Rights{
			CanSendMessages: perms.CanSendMessages,
			CanSendMedia:    perms.CanSendMedia,
			CanSendOther:    perms.CanSendOther,
		},
		RestrictedUntil: until.Unix(),
	}

	err := b.withRetry(ctx, func() error {
		return b.bot.Restrict(&tele.Chat{ID: chatID}, member)
	})
	if err != nil {
		return fmt.Errorf("%w: restrict member %d: %w", chat.ErrTransport, userID, err)
	}

	return nil
}

// BanMember removes a member from the chat.
func (b *Bot) BanMember(ctx context.Context, chatID, userID int64) error {
	err := b.withRetry(ctx, func() error {
		return b.bot.Ban(&tele.Chat{ID: chatID}, &tele.ChatMember{User: &tele.User{ID: userID}})
	})
	if err != nil {
		return fmt.Errorf("%w: ban member %d: %w", chat.ErrTransport, userID, err)
	}

	return nil
}

// UnbanMember lifts a ban. Telegram treats unbanning a non-banned user as a
// no-op, which keeps reversal idempotent.
func (b *Bot) UnbanMember(ctx context.Context, chatID, userID int64) error {
	err := b.withRetry(ctx, func() error {
		return b.bot.Unban(&tele.Chat{ID: chatID}, &tele.User{ID: userID})
	})
	if err != nil {
		return fmt.Errorf("%w: unban member %d: %w", chat.ErrTransport, userID, err)
	}

	return nil
}

// IsAdministrator reports the live administrator status of a chat member.
func (b *Bot) IsAdministrator(ctx context.Context, chatID, userID int64) (bool, error) {
	var member *tele.ChatMember

	err := b.withRetry(ctx, func() error {
		var err error
		member, err = b.bot.ChatMemberOf(&tele.Chat{ID: chatID}, &tele.User{ID: userID})

		return err
	})
	if err != nil {
		return false, fmt.Errorf("%w: member lookup %d: %w", chat.ErrTransport, userID, err)
	}

	return member.Role == tele.Administrator || member.Role == tele.Creator, nil
}

// withRetry runs a transport call with exponential backoff. Flood control and
// network failures are retried; Bad Request responses are permanent.
func (b *Bot) withRetry(ctx context.Context, operation func() error) error {
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(time.Duration(b.retry.Delay)*time.Millisecond),
		backoff.WithMaxInterval(time.Duration(b.retry.MaxDelay)*time.Millisecond),
	), b.retry.MaxRetries)

	return backoff.Retry(func() error {
		err := operation()
		if err == nil {
			return nil
		}

		var flood tele.FloodError
		if errors.As(err, &flood) {
			time.Sleep(time.Duration(flood.RetryAfter) * time.Second)
			return err
		}

		if isNetworkError(err) {
			return err
		}

		return backoff.Permanent(err)
	}, backoff.WithContext(bo, ctx))
}

// isNetworkError checks for transient connectivity failures.
func isNetworkError(err error) bool {
	msg := err.Error()

	return strings.Contains(msg, "connection reset by peer") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "EOF")
}

// toMessage converts a telebot message into the transport-neutral form.
// Channel posts and anonymous admins carry no sender.
func toMessage(msg *tele.Message) chat.Message {
	var senderID int64
	if msg.Sender != nil {
		senderID = msg.Sender.ID
	}

	return chat.Message{
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
		ThreadID:  msg.ThreadID,
		SenderID:  senderID,
		Alias:     senderAlias(msg.Sender),
		Text:      msg.Text,
		Group:     msg.Chat.Type == tele.ChatGroup || msg.Chat.Type == tele.ChatSuperGroup,
		SentAt:    msg.Time(),
	}
}

// senderAlias prefers the username, falling back to the display name.
func senderAlias(user *tele.User) string {
	if user == nil {
		return "unknown"
	}

	if user.Username != "" {
		return "@" + user.Username
	}

	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		return "unknown"
	}

	return name
}
