package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"insales-monitor/internal/app"
	"insales-monitor/internal/config"
	"insales-monitor/internal/models"
)

// Runs a single notification sweep for today and exits.
func main() {
	appConfig, err := config.ParseConfiguration()
	if err != nil {
		fallback := app.NewLogger(os.Stderr, "info", "json")
		fallback.Fatal().Err(err).Msg("Failed to parse configuration")
	}
	logger := app.NewLogger(os.Stderr, appConfig.LogLevel, appConfig.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitor, err := app.New(ctx, appConfig, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize")
	}

	today := monitor.Today()
	logger.Info().Str("today", models.DateOf(today).Format(models.DateLayout)).Msg("Running one-off payment check...")

	report, err := monitor.Notifier.Run(ctx, today)
	monitor.Close()
	if err != nil {
		logger.Error().Err(err).Msg("Sweep failed")
		os.Exit(1)
	}

	fmt.Printf("run %s: %d account(s), %d checked, %d refreshed, %d notified, %d suppressed, %d fetch failure(s), %d delivered, %d delivery failure(s)\n",
		report.RunID, report.Accounts, report.Checked, report.Refreshed, report.Notified, report.Suppressed,
		report.FetchFailures, report.Delivered, report.DeliveryFailures)
}
