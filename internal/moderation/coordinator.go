package moderation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/daminow/chatwarden/internal/chat"
	"github.com/daminow/chatwarden/internal/database/types"
	"github.com/daminow/chatwarden/internal/moderation/audit"
	"go.uber.org/zap"
)

// Stats receives processing counters and the store health flag for
// monitoring. Implementations must be safe for concurrent use.
type Stats interface {
	MessageProcessed()
	ViolationFound()
	SetHealthy(healthy bool)
}

// CoordinatorConfig holds the chat routing and escalation settings.
type CoordinatorConfig struct {
	// Chat the coordinator moderates.
	GroupChatID int64
	// Chat where administrator commands are accepted and audit lines go.
	AdminChatID int64
	// Warning count that triggers an automatic mute (0 disables).
	MuteAfterWarnings int
	// Automatic mute length in minutes.
	AutoMuteMinutes int64
	// Warning count that triggers an automatic ban (0 disables).
	BanAfterWarnings int
	// Automatic ban length in hours.
	AutoBanHours int64
}

// Coordinator glues the engine, ledger, scheduler and transport together.
// Each side effect of a violation is attempted independently; a failure in
// one never prevents the others from running.
type Coordinator struct {
	engine    *Engine
	ledger    *Ledger
	scheduler *Scheduler
	messenger chat.Messenger
	audit     *audit.Log
	cfg       CoordinatorConfig
	clock     Clock
	stats     Stats
	logger    *zap.Logger
}

// NewCoordinator creates a Coordinator. stats may be nil.
func NewCoordinator(
	engine *Engine, ledger *Ledger, scheduler *Scheduler, messenger chat.Messenger,
	auditLog *audit.Log, cfg CoordinatorConfig, clock Clock, stats Stats, logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		engine:    engine,
		ledger:    ledger,
		scheduler: scheduler,
		messenger: messenger,
		audit:     auditLog,
		cfg:       cfg,
		clock:     clock,
		stats:     stats,
		logger:    logger.Named("coordinator"),
	}
}

// HandleMessage classifies one inbound message and, on a violation, runs
// the removal pipeline: delete, audit, notify, record, administrative log.
func (c *Coordinator) HandleMessage(ctx context.Context, msg chat.Message) {
	if !msg.Group || msg.ChatID != c.cfg.GroupChatID || strings.TrimSpace(msg.Text) == "" {
		return
	}

	if c.stats != nil {
		c.stats.MessageProcessed()
	}

	verdict := c.engine.Classify(msg)
	if !verdict.Violation() {
		return
	}

	if c.stats != nil {
		c.stats.ViolationFound()
	}

	// Delete the offending message
	if err := c.messenger.DeleteMessage(ctx, msg.ChatID, msg.MessageID); err != nil {
		if errors.Is(err, chat.ErrMessageNotFound) {
			c.logger.Debug("Message already removed", zap.Int("messageID", msg.MessageID))
		} else {
			c.logger.Error("Failed to delete message",
				zap.Int("messageID", msg.MessageID),
				zap.Error(err))
		}
	}

	// Record the removal in the audit log
	err := c.audit.Append(ctx, audit.Entry{
		UserID:    msg.SenderID,
		Alias:     msg.Alias,
		RuleID:    verdict.RuleID,
		Message:   msg.Text,
		CreatedAt: c.clock.Now(),
	})
	if err != nil {
		c.logger.Error("Failed to write audit entry",
			zap.Int64("userID", msg.SenderID),
			zap.Error(err))
	}

	// Notify the sender with the rule-specific reason
	if err := c.messenger.SendMessage(ctx, msg.ChatID, msg.ThreadID, verdict.Reply); err != nil {
		c.logger.Error("Failed to notify sender",
			zap.Int64("userID", msg.SenderID),
			zap.Error(err))
	}

	// Persist the warning; a store failure must not be silently dropped
	record, err := c.ledger.RecordPunishment(
		ctx, msg.SenderID, msg.Alias,
		types.PunishmentWarn, verdict.Reply, types.NewDuration(types.PunishmentWarn, 0),
		types.AutomatedIssuer,
	)
	if err != nil {
		c.logger.Error("Failed to record automatic warning",
			zap.Int64("userID", msg.SenderID),
			zap.Error(err))
		c.adminLog(ctx, fmt.Sprintf(
			"Не удалось сохранить предупреждение для %s (%d): сообщение удалено, но наказание не записано.",
			msg.Alias, msg.SenderID))

		if c.stats != nil {
			c.stats.SetHealthy(false)
		}

		return
	}

	if c.stats != nil {
		c.stats.SetHealthy(true)
	}

	c.adminLog(ctx, fmt.Sprintf(
		"Удалено сообщение от %s (%d), правило %s, предупреждений: %d.",
		msg.Alias, msg.SenderID, verdict.RuleID, record.WarningCount))

	c.escalate(ctx, record)
}

// HandleCommand dispatches administrator and informational commands.
// Informational commands only answer in the monitored group or the
// administrative chat; anywhere else they are silently ignored.
func (c *Coordinator) HandleCommand(ctx context.Context, cmd chat.Command) {
	switch cmd.Name {
	case "start", "help", "rules":
		if cmd.ChatID != c.cfg.GroupChatID && cmd.ChatID != c.cfg.AdminChatID {
			c.logger.Debug("Ignoring info command outside monitored chats",
				zap.String("command", cmd.Name),
				zap.Int64("chatID", cmd.ChatID))

			return
		}

		c.reply(ctx, cmd, infoTexts[cmd.Name])
	case "ban", "warn", "unwarn", "mute", "unmute":
		c.handleAdminCommand(ctx, cmd)
	}
}

// handleAdminCommand enforces the shared precondition and routes the command.
func (c *Coordinator) handleAdminCommand(ctx context.Context, cmd chat.Command) {
	// Commands outside the administrative chat are silently ignored
	if cmd.ChatID != c.cfg.AdminChatID {
		c.logger.Debug("Ignoring admin command outside admin chat",
			zap.String("command", cmd.Name),
			zap.Int64("chatID", cmd.ChatID))

		return
	}

	// Administrator capability is queried live, never cached
	isAdmin, err := c.messenger.IsAdministrator(ctx, c.cfg.GroupChatID, cmd.IssuerID)
	if err != nil {
		c.logger.Error("Failed to check administrator status",
			zap.Int64("issuerID", cmd.IssuerID),
			zap.Error(err))
		c.reply(ctx, cmd, "Не удалось проверить права администратора, попробуйте ещё раз.")

		return
	}

	if !isAdmin {
		c.reply(ctx, cmd, "Команда доступна только администраторам.")
		return
	}

	var cmdErr error

	switch cmd.Name {
	case "ban":
		cmdErr = c.banCommand(ctx, cmd)
	case "warn":
		cmdErr = c.warnCommand(ctx, cmd)
	case "unwarn":
		cmdErr = c.unwarnCommand(ctx, cmd)
	case "mute":
		cmdErr = c.muteCommand(ctx, cmd)
	case "unmute":
		cmdErr = c.unmuteCommand(ctx, cmd)
	}

	switch {
	case cmdErr == nil:
	case errors.Is(cmdErr, ErrValidation):
		c.reply(ctx, cmd, usage[cmd.Name])
	case errors.Is(cmdErr, ErrNoWarnings):
		c.reply(ctx, cmd, "У пользователя нет предупреждений.")
	default:
		c.logger.Error("Admin command failed",
			zap.String("command", cmd.Name),
			zap.Int64("issuerID", cmd.IssuerID),
			zap.Error(cmdErr))
		c.reply(ctx, cmd, "Команда не выполнена: "+cmdErr.Error())
	}
}

// banCommand handles /ban <user_id> <reason...> <hours>.
func (c *Coordinator) banCommand(ctx context.Context, cmd chat.Command) error {
	userID, reason, amount, err := parsePunishArgs(cmd.Args)
	if err != nil {
		return err
	}

	duration := types.NewDuration(types.PunishmentBan, amount)

	if err := c.messenger.BanMember(ctx, c.cfg.GroupChatID, userID); err != nil {
		c.logger.Error("Failed to ban member at transport",
			zap.Int64("userID", userID),
			zap.Error(err))
	}

	record, err := c.ledger.RecordPunishment(
		ctx, userID, "", types.PunishmentBan, reason, duration, cmd.IssuerID)
	if err != nil {
		return err
	}

	if err := c.scheduler.Arm(ctx, userID, types.PunishmentBan, duration.ToDuration()); err != nil {
		c.logger.Error("Failed to arm ban reversal",
			zap.Int64("userID", userID),
			zap.Error(err))
	}

	c.logger.Info("Administrator banned user",
		zap.Int64("userID", userID),
		zap.Int64("issuerID", cmd.IssuerID),
		zap.String("reason", reason),
		zap.Int64("hours", amount))
	c.reply(ctx, cmd, fmt.Sprintf(
		"Пользователь %d забанен на %d ч. Причина: %s. Всего банов: %d.",
		userID, amount, reason, record.BanCount))

	return nil
}

// warnCommand handles /warn <user_id> <reason...> <days>.
func (c *Coordinator) warnCommand(ctx context.Context, cmd chat.Command) error {
	userID, reason, amount, err := parsePunishArgs(cmd.Args)
	if err != nil {
		return err
	}

	record, err := c.ledger.RecordPunishment(
		ctx, userID, "", types.PunishmentWarn, reason,
		types.NewDuration(types.PunishmentWarn, amount), cmd.IssuerID)
	if err != nil {
		return err
	}

	c.logger.Info("Administrator warned user",
		zap.Int64("userID", userID),
		zap.Int64("issuerID", cmd.IssuerID),
		zap.String("reason", reason))
	c.reply(ctx, cmd, fmt.Sprintf(
		"Пользователю %d выдано предупреждение. Причина: %s. Всего предупреждений: %d.",
		userID, reason, record.WarningCount))

	c.escalate(ctx, record)

	return nil
}

// unwarnCommand handles /unwarn <user_id>.
func (c *Coordinator) unwarnCommand(ctx context.Context, cmd chat.Command) error {
	userID, err := parseTarget(cmd.Args)
	if err != nil {
		return err
	}

	record, err := c.ledger.RemoveLatestWarn(ctx, userID)
	if err != nil {
		return err
	}

	c.logger.Info("Administrator removed warning",
		zap.Int64("userID", userID),
		zap.Int64("issuerID", cmd.IssuerID))
	c.reply(ctx, cmd, fmt.Sprintf(
		"Последнее предупреждение пользователя %d снято. Осталось: %d.",
		userID, record.WarningCount))

	return nil
}

// muteCommand handles /mute <user_id> <reason...> <minutes>.
func (c *Coordinator) muteCommand(ctx context.Context, cmd chat.Command) error {
	userID, reason, amount, err := parsePunishArgs(cmd.Args)
	if err != nil {
		return err
	}

	duration := types.NewDuration(types.PunishmentMute, amount)
	until := c.clock.Now().Add(duration.ToDuration())

	if err := c.messenger.RestrictMember(
		ctx, c.cfg.GroupChatID, userID, chat.NoPermissions(), until); err != nil {
		c.logger.Error("Failed to restrict member at transport",
			zap.Int64("userID", userID),
			zap.Error(err))
	}

	if _, err := c.ledger.RecordPunishment(
		ctx, userID, "", types.PunishmentMute, reason, duration, cmd.IssuerID); err != nil {
		return err
	}

	if err := c.scheduler.Arm(ctx, userID, types.PunishmentMute, duration.ToDuration()); err != nil {
		c.logger.Error("Failed to arm mute reversal",
			zap.Int64("userID", userID),
			zap.Error(err))
	}

	c.logger.Info("Administrator muted user",
		zap.Int64("userID", userID),
		zap.Int64("issuerID", cmd.IssuerID),
		zap.String("reason", reason),
		zap.Int64("minutes", amount))
	c.reply(ctx, cmd, fmt.Sprintf(
		"Пользователь %d замьючен на %d мин. Причина: %s.", userID, amount, reason))

	return nil
}

// unmuteCommand handles /unmute <user_id>.
func (c *Coordinator) unmuteCommand(ctx context.Context, cmd chat.Command) error {
	userID, err := parseTarget(cmd.Args)
	if err != nil {
		return err
	}

	if err := c.messenger.RestrictMember(
		ctx, c.cfg.GroupChatID, userID, chat.FullPermissions(), time.Time{}); err != nil {
		c.logger.Error("Failed to lift restriction at transport",
			zap.Int64("userID", userID),
			zap.Error(err))
	}

	if err := c.scheduler.Disarm(ctx, userID, types.PunishmentMute); err != nil {
		c.logger.Error("Failed to disarm mute reversal",
			zap.Int64("userID", userID),
			zap.Error(err))
	}

	c.logger.Info("Administrator unmuted user",
		zap.Int64("userID", userID),
		zap.Int64("issuerID", cmd.IssuerID))
	c.reply(ctx, cmd, fmt.Sprintf("Пользователь %d размьючен.", userID))

	return nil
}

// Revert reverses an expired or reconciled sanction at the transport.
// Safe to call for sanctions that are no longer active.
func (c *Coordinator) Revert(ctx context.Context, userID int64, kind types.PunishmentKind) error {
	switch kind {
	case types.PunishmentBan:
		return c.messenger.UnbanMember(ctx, c.cfg.GroupChatID, userID)
	case types.PunishmentMute:
		return c.messenger.RestrictMember(
			ctx, c.cfg.GroupChatID, userID, chat.FullPermissions(), time.Time{})
	default:
		return nil
	}
}

// escalate applies the automatic sanctions configured for accumulated
// warnings. The ban threshold wins when both are crossed at once.
func (c *Coordinator) escalate(ctx context.Context, record *types.User) {
	switch {
	case c.cfg.BanAfterWarnings > 0 && record.WarningCount == c.cfg.BanAfterWarnings:
		duration := types.NewDuration(types.PunishmentBan, c.cfg.AutoBanHours)

		if err := c.messenger.BanMember(ctx, c.cfg.GroupChatID, record.ID); err != nil {
			c.logger.Error("Failed to apply automatic ban",
				zap.Int64("userID", record.ID),
				zap.Error(err))
		}

		if _, err := c.ledger.RecordPunishment(
			ctx, record.ID, record.Alias, types.PunishmentBan,
			"автоматический бан за накопленные предупреждения", duration,
			types.AutomatedIssuer); err != nil {
			c.logger.Error("Failed to record automatic ban",
				zap.Int64("userID", record.ID),
				zap.Error(err))
		}

		if err := c.scheduler.Arm(
			ctx, record.ID, types.PunishmentBan, duration.ToDuration()); err != nil {
			c.logger.Error("Failed to arm automatic ban reversal",
				zap.Int64("userID", record.ID),
				zap.Error(err))
		}

		c.adminLog(ctx, fmt.Sprintf(
			"Пользователь %s (%d) автоматически забанен на %d ч: %d предупреждений.",
			record.Alias, record.ID, c.cfg.AutoBanHours, record.WarningCount))

	case c.cfg.MuteAfterWarnings > 0 && record.WarningCount == c.cfg.MuteAfterWarnings:
		duration := types.NewDuration(types.PunishmentMute, c.cfg.AutoMuteMinutes)
		until := c.clock.Now().Add(duration.ToDuration())

		if err := c.messenger.RestrictMember(
			ctx, c.cfg.GroupChatID, record.ID, chat.NoPermissions(), until); err != nil {
			c.logger.Error("Failed to apply automatic mute",
				zap.Int64("userID", record.ID),
				zap.Error(err))
		}

		if _, err := c.ledger.RecordPunishment(
			ctx, record.ID, record.Alias, types.PunishmentMute,
			"автоматический мут за накопленные предупреждения", duration,
			types.AutomatedIssuer); err != nil {
			c.logger.Error("Failed to record automatic mute",
				zap.Int64("userID", record.ID),
				zap.Error(err))
		}

		if err := c.scheduler.Arm(
			ctx, record.ID, types.PunishmentMute, duration.ToDuration()); err != nil {
			c.logger.Error("Failed to arm automatic mute reversal",
				zap.Int64("userID", record.ID),
				zap.Error(err))
		}

		c.adminLog(ctx, fmt.Sprintf(
			"Пользователь %s (%d) автоматически замьючен на %d мин: %d предупреждений.",
			record.Alias, record.ID, c.cfg.AutoMuteMinutes, record.WarningCount))
	}
}

// adminLog emits a line to the administrative chat.
func (c *Coordinator) adminLog(ctx context.Context, text string) {
	if c.cfg.AdminChatID == 0 {
		return
	}

	if err := c.messenger.SendMessage(ctx, c.cfg.AdminChatID, 0, text); err != nil {
		c.logger.Error("Failed to write administrative log line", zap.Error(err))
	}
}

// reply answers the command issuer in the thread the command came from.
func (c *Coordinator) reply(ctx context.Context, cmd chat.Command, text string) {
	if err := c.messenger.SendMessage(ctx, cmd.ChatID, cmd.ThreadID, text); err != nil {
		c.logger.Error("Failed to reply to command",
			zap.String("command", cmd.Name),
			zap.Error(err))
	}
}

// parseTarget parses the single user ID argument of unwarn/unmute.
func parseTarget(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, ErrValidation
	}

	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || userID <= 0 {
		return 0, ErrValidation
	}

	return userID, nil
}

// parsePunishArgs parses <user_id> <reason...> <amount> for ban/warn/mute.
func parsePunishArgs(args []string) (int64, string, int64, error) {
	if len(args) < 3 {
		return 0, "", 0, ErrValidation
	}

	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || userID <= 0 {
		return 0, "", 0, ErrValidation
	}

	amount, err := strconv.ParseInt(args[len(args)-1], 10, 64)
	if err != nil || amount <= 0 {
		return 0, "", 0, ErrValidation
	}

	reason := strings.Join(args[1:len(args)-1], " ")

	return userID, reason, amount, nil
}

var usage = map[string]string{
	"ban":    "Использование: /ban <user_id> <причина> <часы>",
	"warn":   "Использование: /warn <user_id> <причина> <дни>",
	"unwarn": "Использование: /unwarn <user_id>",
	"mute":   "Использование: /mute <user_id> <причина> <минуты>",
	"unmute": "Использование: /unmute <user_id>",
}

var infoTexts = map[string]string{
	"start": startText,
	"help":  helpText,
	"rules": rulesText,
}

const startText = "Привет! Я бот-модератор чата. Соблюдайте правила:\n" +
	"- Ненормативная лексика, угрозы и оскорбления запрещены.\n" +
	"- Флуд, спам, ссылки и реклама не приветствуются.\n" +
	"- Обсуждение правил и действий модераторов запрещено.\n" +
	"Более подробные правила доступны по команде /rules."

const helpText = "Список доступных команд:\n" +
	"/start — запуск бота\n" +
	"/rules — правила чата\n" +
	"/help — помощь"

const rulesText = "📚 Правила чата:\n\n" +
	"⚠️ 1. Пользователи, заходя в чат, принимают на себя обязательства соблюдать правила. " +
	"Незнание правил не освобождает от ответственности.\n\n" +
	"✅ 2. Разрешается общение, шутки, помощь и обмен информацией.\n\n" +
	"⛔ 3. Категорически запрещено:\n" +
	"  3.1. Обсуждение правил чата.\n" +
	"  3.2. Мошенничество, пиратство и использование запрещённых программ.\n" +
	"  3.3. Выдача себя за представителя администрации.\n" +
	"  3.4. Использование мата и завуалированной лексики.\n" +
	"  3.5. Дискриминация, национализм и разжигание ненависти.\n" +
	"  3.6. Флуд, спам, реклама и публикация ссылок.\n" +
	"  3.7. Троллинг, провокации и обсуждение действий модераторов.\n" +
	"  3.8. Разглашение личной информации.\n" +
	"  3.9. Угрозы, попрошайничество, нытьё и гнусавость.\n\n" +
	"⚠️ 4. Рекомендуется не злоупотреблять Caps Lock, смайлами и разбиением сообщений.\n\n" +
	"✅ 5. Emoji допустимы для выражения эмоций, но их избыточное использование недопустимо."
