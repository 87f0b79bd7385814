package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/go-telegram/bot"

	"github.com/avasilyev/tg-habit-reminder/pkg/bot/handlers"
	"github.com/avasilyev/tg-habit-reminder/pkg/bot/reminders"
	"github.com/avasilyev/tg-habit-reminder/pkg/config"
	"github.com/avasilyev/tg-habit-reminder/pkg/db"
	"github.com/avasilyev/tg-habit-reminder/pkg/habit"
	"github.com/avasilyev/tg-habit-reminder/pkg/logger"
	"github.com/avasilyev/tg-habit-reminder/pkg/scheduler"
	"github.com/avasilyev/tg-habit-reminder/pkg/ui"
)

const (
	sweepTime     = "00:00"
	reconcileTime = "00:05"
)

func main() {
	if err := config.LoadConfig("config.json"); err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := logger.Configure(logger.Options{
		Level: config.AppConfig.Logging.Level,
		File:  config.AppConfig.Logging.File,
	}); err != nil {
		logger.Error("failed to configure logger", "error", err)
	}

	if err := db.InitDB(config.AppConfig.Database); err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	b, err := bot.New(config.AppConfig.Telegram.Token,
		bot.WithDefaultHandler(handlers.HandleMessage),
	)
	if err != nil {
		logger.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	sched, err := scheduler.New()
	if err != nil {
		logger.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}

	sender := reminders.NewSender(b)
	rec := habit.NewReconciler(sched, sender.Remind)
	handlers.Setup(handlers.Deps{Habits: habit.NewService(rec)})

	b.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, handlers.HandleStart)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypeExact, handlers.HandleHelp)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/about", bot.MatchTypeExact, handlers.HandleAbout)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, ui.CallbackPrefix, bot.MatchTypePrefix, handlers.HandleCallback)

	// Job ids do not survive a restart, so the reminder table is rebuilt from
	// the habit rows before the scheduler starts.
	if err := rec.Rebuild(ctx); err != nil {
		logger.Error("failed to rebuild reminder jobs", "error", err)
		os.Exit(1)
	}

	if _, err := sched.Schedule(sweepTime, "daily-sweep", func() {
		sweepCtx, sweepCancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer sweepCancel()
		if n, err := habit.RunDailySweep(sweepCtx); err != nil {
			logger.Error("daily sweep failed", "error", err)
		} else {
			logger.Info("daily sweep finished", "habits_processed", n)
		}
	}); err != nil {
		logger.Error("failed to schedule daily sweep", "error", err)
		os.Exit(1)
	}

	if _, err := sched.Schedule(reconcileTime, "nightly-reconcile", func() {
		recCtx, recCancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer recCancel()
		if err := rec.Reconcile(recCtx); err != nil {
			logger.Error("nightly reconcile failed", "error", err)
		}
	}); err != nil {
		logger.Error("failed to schedule nightly reconcile", "error", err)
		os.Exit(1)
	}

	sched.Start()
	defer func() {
		if err := sched.Shutdown(); err != nil {
			logger.Error("scheduler shutdown failed", "error", err)
		}
	}()

	go db.StartMessageCleanup(ctx, db.MessageCleanupInterval)

	logger.Info("Starting bot...")
	b.Start(ctx)
}
