package app

import (
	"context"
	"fmt"
	"io"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"insales-monitor/internal/bot"
	"insales-monitor/internal/config"
	"insales-monitor/internal/insales"
	"insales-monitor/internal/metrics"
	"insales-monitor/internal/store"
)

// NewLogger builds the process logger. Unknown levels fall back to info.
func NewLogger(w io.Writer, level, format string) zerolog.Logger {
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// App holds the wired components shared by the long-running service and the
// one-shot sweep.
type App struct {
	Config      *config.AppConfig
	Logger      zerolog.Logger
	Pool        *pgxpool.Pool
	Metrics     *metrics.Metrics
	API         *tgbotapi.BotAPI
	Broadcaster *bot.Broadcaster
	Notifier    *bot.Notifier
	Accounts    *store.AccountRepo
	Chats       *store.ChatRepo
	Fetcher     *insales.Client
}

func New(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) (*App, error) {
	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info().Msg("💾 Database ready")

	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create telegram bot (token %s): %w", cfg.TokenHint(), err)
	}
	api.Debug = cfg.TelegramDebug
	logger.Info().Str("bot", api.Self.UserName).Msg("🤖 Authorized on Telegram")

	m := metrics.New()
	accounts := store.NewAccountRepo(pool)
	chats := store.NewChatRepo(pool)
	fetcher := insales.NewClient(cfg.InsalesTimeout)
	broadcaster := bot.NewBroadcaster(api, cfg.DeliveryAttempts, cfg.DeliveryRetryDelay, m, logger)

	return &App{
		Config:      cfg,
		Logger:      logger,
		Pool:        pool,
		Metrics:     m,
		API:         api,
		Broadcaster: broadcaster,
		Notifier:    bot.NewNotifier(accounts, chats, fetcher, broadcaster, cfg.AccountDeadline, m, logger),
		Accounts:    accounts,
		Chats:       chats,
		Fetcher:     fetcher,
	}, nil
}

func (a *App) InteractiveBot() *bot.InteractiveBot {
	return bot.NewInteractiveBot(a.API, a.Accounts, a.Chats, a.Fetcher, bot.InteractiveBotOptions{
		SuperAdminChatID: a.Config.SuperAdminChatID,
		AppName:          a.Config.AppName,
		FetchDeadline:    a.Config.AccountDeadline,
	}, a.Logger)
}

// Today is the current calendar date in the configured timezone.
func (a *App) Today() time.Time {
	return time.Now().In(a.Config.Timezone)
}

func (a *App) Close() {
	a.API.StopReceivingUpdates()
	a.Pool.Close()
}
