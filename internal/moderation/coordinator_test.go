package moderation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/daminow/chatwarden/internal/chat"
	"github.com/daminow/chatwarden/internal/database/types"
	"github.com/daminow/chatwarden/internal/moderation/audit"
	"github.com/daminow/chatwarden/internal/moderation/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testGroupChat = int64(1)
	testAdminChat = int64(2)
)

type coordinatorFixture struct {
	coordinator *Coordinator
	messenger   *fakeMessenger
	users       *memoryUserStore
	sanctions   *memorySanctionStore
	clock       *fakeClock
	ledger      *Ledger
	stats       *fakeStats
}

func newCoordinatorFixture(t *testing.T) *coordinatorFixture {
	t.Helper()

	logger := zap.NewNop()
	clock := newFakeClock(time.Date(2026, time.January, 10, 12, 0, 0, 0, time.UTC))
	messenger := newFakeMessenger()
	users := newMemoryUserStore()
	sanctions := newMemorySanctionStore()

	lists := &rules.Lists{
		BannedTerms: []string{"хуй"},
		Spam:        []string{"зарабатывай"},
	}
	engine := NewEngine(rules.NewSet(lists, rules.DefaultThresholds()), time.Hour, clock, logger)
	t.Cleanup(engine.Close)

	auditLog, err := audit.Open(t.TempDir(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = auditLog.Close() })

	ledger := NewLedger(users, clock, logger)
	stats := newFakeStats()

	var coordinator *Coordinator

	scheduler := NewScheduler(sanctions, clock,
		func(ctx context.Context, userID int64, kind types.PunishmentKind) error {
			return coordinator.Revert(ctx, userID, kind)
		}, logger)

	coordinator = NewCoordinator(engine, ledger, scheduler, messenger, auditLog,
		CoordinatorConfig{
			GroupChatID:       testGroupChat,
			AdminChatID:       testAdminChat,
			MuteAfterWarnings: 3,
			AutoMuteMinutes:   30,
			BanAfterWarnings:  5,
			AutoBanHours:      2,
		}, clock, stats, logger)

	return &coordinatorFixture{
		coordinator: coordinator,
		messenger:   messenger,
		users:       users,
		sanctions:   sanctions,
		clock:       clock,
		ledger:      ledger,
		stats:       stats,
	}
}

func groupMessage(messageID int, senderID int64, text string) chat.Message {
	return chat.Message{
		ChatID:    testGroupChat,
		MessageID: messageID,
		SenderID:  senderID,
		Alias:     "alice",
		Text:      text,
		Group:     true,
	}
}

func adminCommand(name string, issuerID int64, args ...string) chat.Command {
	return chat.Command{
		Name:     name,
		Args:     args,
		ChatID:   testAdminChat,
		IssuerID: issuerID,
	}
}

func TestCoordinatorHandleMessage_Violation(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	f.coordinator.HandleMessage(ctx,
		groupMessage(42, 100, "СРОЧНО зарабатывай 120$ bez ссылок пишит в лс"))

	// Offending message deleted
	assert.Equal(t, []int{42}, f.messenger.deleted)

	// Sender notified with the rule's reason
	groupReplies := f.messenger.sentTo(testGroupChat)
	require.Len(t, groupReplies, 1)
	assert.Equal(t, "Сообщение удалено как спам.", groupReplies[0].text)

	// Warning recorded against the sender
	user, err := f.ledger.GetUser(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, user.WarningCount)
	require.Len(t, user.History, 1)
	assert.Equal(t, types.AutomatedIssuer, user.History[0].IssuerID)

	// One administrative log line
	adminLines := f.messenger.sentTo(testAdminChat)
	require.Len(t, adminLines, 1)
	assert.Contains(t, adminLines[0].text, "keyword_spam")
	assert.Contains(t, adminLines[0].text, "alice")
}

func TestCoordinatorHandleMessage_CleanMessage(t *testing.T) {
	f := newCoordinatorFixture(t)

	f.coordinator.HandleMessage(context.Background(),
		groupMessage(42, 100, "привет всем, как дела"))

	assert.Empty(t, f.messenger.deleted)
	assert.Empty(t, f.messenger.sent)
}

func TestCoordinatorHandleMessage_IgnoresOtherChats(t *testing.T) {
	f := newCoordinatorFixture(t)
	msg := groupMessage(42, 100, "СРОЧНО зарабатывай 120$ bez ссылок")

	msg.ChatID = 999
	f.coordinator.HandleMessage(context.Background(), msg)

	msg.ChatID = testGroupChat
	msg.Group = false
	f.coordinator.HandleMessage(context.Background(), msg)

	assert.Empty(t, f.messenger.deleted)
	assert.Empty(t, f.messenger.sent)
}

func TestCoordinatorEscalation_AutoMute(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	for i := range 3 {
		f.coordinator.HandleMessage(ctx,
			groupMessage(42+i, 100, "зарабатывай bez проблем"))
	}

	// Third warning triggers the automatic mute
	require.Len(t, f.messenger.restricted, 1)
	assert.Equal(t, int64(100), f.messenger.restricted[0].userID)
	assert.Equal(t, chat.NoPermissions(), f.messenger.restricted[0].perms)

	user, err := f.ledger.GetUser(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 3, user.WarningCount)
	assert.Len(t, user.History, 4)

	// Reversal is persisted and fires after the configured mute length
	assert.Equal(t, 1, f.sanctions.count())
	f.clock.Advance(30 * time.Minute)
	require.Len(t, f.messenger.restricted, 2)
	assert.Equal(t, chat.FullPermissions(), f.messenger.restricted[1].perms)
	assert.Zero(t, f.sanctions.count())
}

func TestCoordinatorBanCommand(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()
	f.messenger.admins[7] = true

	f.coordinator.HandleCommand(ctx, adminCommand("ban", 7, "555", "реклама", "2"))

	assert.Equal(t, []int64{555}, f.messenger.banned)

	user, err := f.ledger.GetUser(ctx, 555)
	require.NoError(t, err)
	assert.Equal(t, 1, user.BanCount)
	require.Len(t, user.History, 1)
	assert.Equal(t, types.PunishmentBan, user.History[0].Kind)
	assert.Equal(t, "реклама", user.History[0].Reason)
	assert.Equal(t, types.UnitHours, user.History[0].Duration.Unit)
	assert.Equal(t, int64(2), user.History[0].Duration.Amount)
	assert.Equal(t, int64(7), user.History[0].IssuerID)

	replies := f.messenger.sentTo(testAdminChat)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].text, "забанен")

	// The ban lifts itself after two hours, exactly once
	f.clock.Advance(2 * time.Hour)
	assert.Equal(t, []int64{555}, f.messenger.unbanned)
	f.clock.Advance(time.Hour)
	assert.Equal(t, []int64{555}, f.messenger.unbanned)
}

func TestCoordinatorMuteAndUnmuteCommands(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()
	f.messenger.admins[7] = true

	f.coordinator.HandleCommand(ctx, adminCommand("mute", 7, "555", "флуд", "45"))

	require.Len(t, f.messenger.restricted, 1)
	assert.Equal(t, chat.NoPermissions(), f.messenger.restricted[0].perms)
	assert.Equal(t, f.clock.Now().Add(45*time.Minute), f.messenger.restricted[0].until)
	assert.Equal(t, 1, f.sanctions.count())

	// Manual unmute lifts the restriction and cancels the pending reversal
	f.coordinator.HandleCommand(ctx, adminCommand("unmute", 7, "555"))

	require.Len(t, f.messenger.restricted, 2)
	assert.Equal(t, chat.FullPermissions(), f.messenger.restricted[1].perms)
	assert.Zero(t, f.sanctions.count())

	f.clock.Advance(time.Hour)
	assert.Len(t, f.messenger.restricted, 2)
}

func TestCoordinatorWarnAndUnwarnCommands(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()
	f.messenger.admins[7] = true

	f.coordinator.HandleCommand(ctx, adminCommand("warn", 7, "555", "оффтоп", "3"))

	user, err := f.ledger.GetUser(ctx, 555)
	require.NoError(t, err)
	assert.Equal(t, 1, user.WarningCount)

	f.coordinator.HandleCommand(ctx, adminCommand("unwarn", 7, "555"))

	user, err = f.ledger.GetUser(ctx, 555)
	require.NoError(t, err)
	assert.Zero(t, user.WarningCount)

	// A second removal has nothing left to remove
	f.coordinator.HandleCommand(ctx, adminCommand("unwarn", 7, "555"))

	replies := f.messenger.sentTo(testAdminChat)
	require.Len(t, replies, 3)
	assert.Equal(t, "У пользователя нет предупреждений.", replies[2].text)
}

func TestCoordinatorCommandPreconditions(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()
	f.messenger.admins[7] = true

	// Outside the admin chat: silently ignored
	cmd := adminCommand("ban", 7, "555", "реклама", "2")
	cmd.ChatID = testGroupChat
	f.coordinator.HandleCommand(ctx, cmd)
	assert.Empty(t, f.messenger.banned)
	assert.Empty(t, f.messenger.sent)

	// Non-administrator issuer: politely rejected
	f.coordinator.HandleCommand(ctx, adminCommand("ban", 8, "555", "реклама", "2"))
	assert.Empty(t, f.messenger.banned)

	replies := f.messenger.sentTo(testAdminChat)
	require.Len(t, replies, 1)
	assert.Equal(t, "Команда доступна только администраторам.", replies[0].text)
}

func TestCoordinatorCommandValidation(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()
	f.messenger.admins[7] = true

	tests := []struct {
		name string
		cmd  chat.Command
	}{
		{name: "missing arguments", cmd: adminCommand("ban", 7, "555")},
		{name: "non-numeric user id", cmd: adminCommand("ban", 7, "abc", "реклама", "2")},
		{name: "non-numeric amount", cmd: adminCommand("mute", 7, "555", "флуд", "долго")},
		{name: "negative amount", cmd: adminCommand("mute", 7, "555", "флуд", "-5")},
		{name: "unwarn with extras", cmd: adminCommand("unwarn", 7, "555", "лишнее")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(f.messenger.sentTo(testAdminChat))
			f.coordinator.HandleCommand(ctx, tt.cmd)

			replies := f.messenger.sentTo(testAdminChat)
			require.Len(t, replies, before+1)
			assert.Contains(t, replies[before].text, "Использование:")
		})
	}

	assert.Empty(t, f.messenger.banned)
	assert.Empty(t, f.messenger.restricted)
}

func TestCoordinatorInfoCommands(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	// Informational commands work for anyone in the monitored chats
	f.coordinator.HandleCommand(ctx, chat.Command{Name: "rules", ChatID: testGroupChat, IssuerID: 100})

	replies := f.messenger.sentTo(testGroupChat)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].text, "Правила чата")

	f.coordinator.HandleCommand(ctx, chat.Command{Name: "help", ChatID: testAdminChat, IssuerID: 100})
	replies = f.messenger.sentTo(testAdminChat)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].text, "Список доступных команд")

	// Outside the monitored group and admin chat they are silently ignored
	f.coordinator.HandleCommand(ctx, chat.Command{Name: "rules", ChatID: 999, IssuerID: 100})
	assert.Empty(t, f.messenger.sentTo(999))
}

func TestCoordinatorStoreFailureMarksUnhealthy(t *testing.T) {
	f := newCoordinatorFixture(t)
	ctx := context.Background()

	f.users.setFailure(errors.New("connection refused"))
	f.coordinator.HandleMessage(ctx,
		groupMessage(50, 100, "СРОЧНО зарабатывай 120$ bez ссылок пишит в лс"))

	// The message is still deleted and the sender still notified
	assert.Equal(t, []int{50}, f.messenger.deleted)
	require.Len(t, f.messenger.sentTo(testGroupChat), 1)

	// Operators are told the punishment was lost and the instance degrades
	adminLines := f.messenger.sentTo(testAdminChat)
	require.Len(t, adminLines, 1)
	assert.Contains(t, adminLines[0].text, "не записано")
	assert.False(t, f.stats.isHealthy())

	// A successful record restores the health flag
	f.users.setFailure(nil)
	f.coordinator.HandleMessage(ctx,
		groupMessage(51, 100, "СРОЧНО зарабатывай 120$ bez ссылок пишит в лс"))
	assert.True(t, f.stats.isHealthy())
}
