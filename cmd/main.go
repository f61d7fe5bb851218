package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"insales-monitor/internal/app"
	"insales-monitor/internal/bot"
	"insales-monitor/internal/config"
	"insales-monitor/internal/models"
	"insales-monitor/internal/scheduler"
	"insales-monitor/internal/server"
)

func main() {
	appConfig, err := config.ParseConfiguration()
	if err != nil {
		fallback := app.NewLogger(os.Stderr, "info", "json")
		fallback.Fatal().Err(err).Msg("Failed to parse configuration")
	}

	logger := app.NewLogger(os.Stdout, appConfig.LogLevel, appConfig.LogFormat)
	if !appConfig.EnvFileLoaded {
		logger.Warn().Msg("⚠️  .env file not found, using process environment")
	}
	logger.Info().
		Str("notification_time", appConfig.NotificationTime()).
		Str("timezone", appConfig.Timezone.String()).
		Msg("🚀 Starting InSales payment monitor...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitor, err := app.New(ctx, appConfig, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer monitor.Close()

	daily, err := scheduler.NewDaily(appConfig.NotificationHour, appConfig.NotificationMinute, appConfig.NotificationSecond,
		appConfig.Timezone, func(ctx context.Context, now time.Time) error {
			report, err := monitor.Notifier.Run(ctx, now)
			if errors.Is(err, bot.ErrSweepInProgress) {
				logger.Warn().Msg("Previous sweep still running, skipping this round")
				return nil
			}
			if err != nil {
				return err
			}
			logger.Info().Str("run_id", report.RunID).Int("notified", report.Notified).Msg("Daily sweep complete")
			return nil
		}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create scheduler")
	}

	monitor.Broadcaster.NotifyStartup(ctx, appConfig.SuperAdminChatID, appConfig.AppName, daily.Next(monitor.Today()))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := monitor.API.GetUpdatesChan(u)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		monitor.InteractiveBot().Start(ctx, updates)
	}()
	go func() {
		defer wg.Done()
		daily.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := server.New(appConfig.HTTPAddr, monitor.Metrics.Registry, logger).Run(ctx); err != nil {
			logger.Error().Err(err).Msg("HTTP server failed")
			stop()
		}
	}()

	logger.Info().
		Str("today", models.DateOf(monitor.Today()).Format(models.DateLayout)).
		Msg("📱 Interactive bot is ready! Admins can now manage accounts from Telegram.")

	<-ctx.Done()
	logger.Info().Msg("Shutting down...")
	wg.Wait()
}
