package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName            = "InSales Payment Monitor"
	defaultNotificationTime   = "09:00"
	defaultTimezone           = "UTC"
	defaultInsalesTimeout     = 15 * time.Second
	defaultAccountDeadline    = 30 * time.Second
	defaultDeliveryAttempts   = 2
	defaultDeliveryRetryDelay = 2 * time.Second
	defaultHTTPAddr           = ":8080"
	defaultLogLevel           = "info"
)

type AppConfig struct {
	AppName string

	TelegramBotToken string
	TelegramDebug    bool
	SuperAdminChatID string

	DatabaseURL string

	// Daily sweep time, wall clock in Timezone.
	NotificationHour   int
	NotificationMinute int
	NotificationSecond int
	Timezone           *time.Location

	InsalesTimeout  time.Duration
	AccountDeadline time.Duration

	DeliveryAttempts   int
	DeliveryRetryDelay time.Duration

	HTTPAddr  string
	LogLevel  string
	LogFormat string

	// EnvFileLoaded is false when no .env file was found; env vars still apply.
	EnvFileLoaded bool
}

// ParseConfiguration reads .env (if present), the process environment and the
// command-line flags. Flags take precedence over environment values.
func ParseConfiguration() (*AppConfig, error) {
	envLoaded := godotenv.Load() == nil

	cfg, err := parse(flag.CommandLine, os.Args[1:], os.Getenv)
	if err != nil {
		return nil, err
	}
	cfg.EnvFileLoaded = envLoaded
	return cfg, nil
}

func parse(fs *flag.FlagSet, args []string, getenv func(string) string) (*AppConfig, error) {
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	insalesTimeout, err := durationValue(env("INSALES_TIMEOUT", ""), defaultInsalesTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid INSALES_TIMEOUT: %w", err)
	}
	accountDeadline, err := durationValue(env("ACCOUNT_DEADLINE", ""), defaultAccountDeadline)
	if err != nil {
		return nil, fmt.Errorf("invalid ACCOUNT_DEADLINE: %w", err)
	}
	retryDelay, err := durationValue(env("DELIVERY_RETRY_DELAY", ""), defaultDeliveryRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("invalid DELIVERY_RETRY_DELAY: %w", err)
	}
	attempts := defaultDeliveryAttempts
	if raw := env("DELIVERY_ATTEMPTS", ""); raw != "" {
		attempts, err = strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid DELIVERY_ATTEMPTS: %w", err)
		}
	}
	telegramDebug := false
	if raw := env("TELEGRAM_DEBUG", ""); raw != "" {
		telegramDebug, err = strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_DEBUG: %w", err)
		}
	}

	notificationTimePtr := fs.String("notification-time", env("NOTIFICATION_TIME", defaultNotificationTime), "daily sweep time, HH:MM in the configured timezone")
	timezonePtr := fs.String("timezone", env("TIMEZONE", defaultTimezone), "IANA timezone for the daily sweep")
	insalesTimeoutPtr := fs.Duration("insales-timeout", insalesTimeout, "request timeout for InSales API calls")
	accountDeadlinePtr := fs.Duration("account-deadline", accountDeadline, "upper bound for refreshing one account during a sweep")
	attemptsPtr := fs.Int("delivery-attempts", attempts, "send attempts per recipient")
	retryDelayPtr := fs.Duration("delivery-retry-delay", retryDelay, "pause between send attempts")
	httpAddrPtr := fs.String("http-addr", env("HTTP_ADDR", defaultHTTPAddr), "listen address for /health and /metrics")
	logLevelPtr := fs.String("log-level", env("LOG_LEVEL", defaultLogLevel), "log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	telegramBotToken := env("TELEGRAM_BOT_TOKEN", "")
	if telegramBotToken == "" {
		return nil, errors.New("TELEGRAM_BOT_TOKEN is empty. Please set it in your environment or .env file")
	}
	databaseURL := env("DATABASE_URL", "")
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is empty. Please set it in your environment or .env file")
	}

	hour, minute, second, err := parseClock(*notificationTimePtr)
	if err != nil {
		return nil, fmt.Errorf("invalid NOTIFICATION_TIME %q: %w", *notificationTimePtr, err)
	}

	location, err := time.LoadLocation(*timezonePtr)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", *timezonePtr, err)
	}

	if *insalesTimeoutPtr <= 0 {
		return nil, errors.New("INSALES_TIMEOUT must be positive")
	}
	if *accountDeadlinePtr <= 0 {
		return nil, errors.New("ACCOUNT_DEADLINE must be positive")
	}
	if *attemptsPtr < 1 {
		return nil, errors.New("DELIVERY_ATTEMPTS must be >= 1")
	}
	if *retryDelayPtr < 0 {
		return nil, errors.New("DELIVERY_RETRY_DELAY must not be negative")
	}

	return &AppConfig{
		AppName:            env("APP_NAME", defaultAppName),
		TelegramBotToken:   telegramBotToken,
		TelegramDebug:      telegramDebug,
		SuperAdminChatID:   env("SUPER_ADMIN_CHAT_ID", ""),
		DatabaseURL:        databaseURL,
		NotificationHour:   hour,
		NotificationMinute: minute,
		NotificationSecond: second,
		Timezone:           location,
		InsalesTimeout:     *insalesTimeoutPtr,
		AccountDeadline:    *accountDeadlinePtr,
		DeliveryAttempts:   *attemptsPtr,
		DeliveryRetryDelay: *retryDelayPtr,
		HTTPAddr:           *httpAddrPtr,
		LogLevel:           strings.ToLower(*logLevelPtr),
		LogFormat:          strings.ToLower(env("LOG_FORMAT", "json")),
	}, nil
}

// TokenHint shows only the edges of the bot token.
func (c *AppConfig) TokenHint() string {
	token := c.TelegramBotToken
	if len(token) <= 10 {
		return fmt.Sprintf("len=%d", len(token))
	}
	return fmt.Sprintf("len=%d %s...%s", len(token), token[:5], token[len(token)-5:])
}

// NotificationTime formats the sweep time as HH:MM.
func (c *AppConfig) NotificationTime() string {
	return fmt.Sprintf("%02d:%02d", c.NotificationHour, c.NotificationMinute)
}

func durationValue(raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	// plain integers are seconds
	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("expected a duration like 15s or a number of seconds, got %q", raw)
	}
	return time.Duration(seconds) * time.Second, nil
}

func parseClock(v string) (int, int, int, error) {
	v = strings.TrimSpace(v)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if tm, err := time.Parse(layout, v); err == nil {
			return tm.Hour(), tm.Minute(), tm.Second(), nil
		}
	}
	return 0, 0, 0, errors.New("expected HH:MM or HH:MM:SS")
}
