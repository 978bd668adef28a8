package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/daminow/chatwarden/internal/chat/telegram"
	"github.com/daminow/chatwarden/internal/database/types"
	"github.com/daminow/chatwarden/internal/moderation"
	"github.com/daminow/chatwarden/internal/moderation/audit"
	"github.com/daminow/chatwarden/internal/moderation/rules"
	"github.com/daminow/chatwarden/internal/setup"
	"github.com/daminow/chatwarden/internal/status"
	"github.com/daminow/chatwarden/internal/worker/reconcile"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// BotLogDir specifies where bot log files are stored.
	BotLogDir = "logs/bot_logs"
)

func main() {
	app := &cli.Command{
		Name:   "bot",
		Usage:  "Start the chatwarden moderation bot",
		Action: runBot,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func runBot(ctx context.Context, _ *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize application with required dependencies
	app, err := setup.InitializeApp(ctx, BotLogDir)
	if err != nil {
		return err
	}
	defer app.Cleanup(ctx)

	bot, err := telegram.New(&app.Config.Telegram, &app.Config.Retry, app.Logger)
	if err != nil {
		return err
	}

	clock := moderation.NewClock()
	modCfg := &app.Config.Moderation

	ruleSet := rules.NewSet(keywordLists(app), rules.Thresholds{
		RequiredScript:   rules.ScriptByName(modCfg.RequiredScript),
		ScriptRatio:      modCfg.ScriptRatioThreshold,
		CapsRatio:        modCfg.CapsRatioThreshold,
		CapsMinLetters:   modCfg.CapsMinLetters,
		EmojiStreakLimit: modCfg.EmojiStreakLimit,
		RateLimitCount:   modCfg.RateLimitCount,
		RateWindow:       time.Duration(modCfg.RateWindowMinutes) * time.Minute,
	})

	engine := moderation.NewEngine(
		ruleSet, time.Duration(modCfg.StateTTLMinutes)*time.Minute, clock, app.Logger)
	defer engine.Close()

	auditLog, err := audit.Open(app.Config.Audit.Dir, app.Logger)
	if err != nil {
		return err
	}
	defer auditLog.Close()

	ledger := moderation.NewLedger(app.DB.Users(), clock, app.Logger)
	reporter := status.NewReporter(app.StatusClient, app.Logger)

	// The scheduler reverts through the coordinator, which in turn arms the
	// scheduler; the closure breaks the construction cycle.
	var coordinator *moderation.Coordinator

	scheduler := moderation.NewScheduler(app.DB.Sanctions(), clock,
		func(ctx context.Context, userID int64, kind types.PunishmentKind) error {
			return coordinator.Revert(ctx, userID, kind)
		}, app.Logger)
	defer scheduler.Close()

	coordinator = moderation.NewCoordinator(
		engine, ledger, scheduler, bot, auditLog,
		moderation.CoordinatorConfig{
			GroupChatID:       app.Config.Telegram.GroupChatID,
			AdminChatID:       app.Config.Telegram.AdminChatID,
			MuteAfterWarnings: modCfg.MuteAfterWarnings,
			AutoMuteMinutes:   int64(modCfg.AutoMuteMinutes),
			BanAfterWarnings:  modCfg.BanAfterWarnings,
			AutoBanHours:      int64(modCfg.AutoBanHours),
		}, clock, reporter, app.Logger)

	// Re-arm sanction reversals that were pending before the restart
	if err := scheduler.Restore(ctx); err != nil {
		return err
	}

	reconciler := reconcile.New(
		app.DB.Sanctions(), app.LockClient, coordinator.Revert,
		time.Duration(app.Config.Reconcile.IntervalMinutes)*time.Minute,
		app.Config.Reconcile.Concurrency, app.Logger)

	bot.Register(ctx, coordinator)
	reporter.Start(ctx)

	defer reporter.Stop()

	app.Logger.Info("Bot started",
		zap.String("instanceID", reporter.InstanceID()),
		zap.Int64("groupChatID", app.Config.Telegram.GroupChatID))

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		bot.Start(ctx)
		return nil
	})

	group.Go(func() error {
		reconciler.Start(ctx)
		return nil
	})

	return group.Wait()
}

// keywordLists adapts the configured keyword file to the rule set's shape.
func keywordLists(app *setup.App) *rules.Lists {
	rl := app.RuleList

	return &rules.Lists{
		BannedTerms:     rl.BannedTerms,
		RulesDiscussion: rl.RulesDiscussion,
		FraudPiracy:     rl.FraudPiracy,
		Impersonation:   rl.Impersonation,
		Hate:            rl.Hate,
		Superiority:     rl.Superiority,
		DrugsViolence:   rl.DrugsViolence,
		Defamation:      rl.Defamation,
		Threats:         rl.Threats,
		Trolling:        rl.Trolling,
		ModeratorTerms:  rl.ModeratorTerms,
		ComplaintTerms:  rl.ComplaintTerms,
		Begging:         rl.Begging,
		Whining:         rl.Whining,
		Spam:            rl.Spam,
	}
}
