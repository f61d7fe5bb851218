package bot

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"insales-monitor/internal/metrics"
	"insales-monitor/internal/models"
)

// Sender is the part of *tgbotapi.BotAPI the bot needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Broadcaster delivers text to chats, one recipient at a time. A failing
// recipient never stops delivery to the others.
type Broadcaster struct {
	sender     Sender
	attempts   int
	retryDelay time.Duration
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

type DeliveryReport struct {
	Delivered int
	Failed    int
}

func NewBroadcaster(sender Sender, attempts int, retryDelay time.Duration, m *metrics.Metrics, logger zerolog.Logger) *Broadcaster {
	if attempts < 1 {
		attempts = 1
	}
	return &Broadcaster{
		sender:     sender,
		attempts:   attempts,
		retryDelay: retryDelay,
		metrics:    m,
		logger:     logger.With().Str("component", "broadcaster").Logger(),
	}
}

func (b *Broadcaster) Broadcast(ctx context.Context, text string, chats []*models.Chat) DeliveryReport {
	var report DeliveryReport
	for _, chat := range chats {
		if err := b.SendText(ctx, chat.ChatID, text); err != nil {
			report.Failed++
			b.metrics.Delivered(false)
			b.logger.Warn().Err(err).Str("chat_id", chat.ChatID).Msg("❌ Failed to deliver message, skipping recipient")
			continue
		}
		report.Delivered++
		b.metrics.Delivered(true)
	}
	return report
}

// SendText sends an HTML message, retrying up to the configured attempts.
func (b *Broadcaster) SendText(ctx context.Context, chatID, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}

	msg := tgbotapi.NewMessage(id, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	var sendErr error
	for attempt := 0; attempt < b.attempts; attempt++ {
		if _, sendErr = b.sender.Send(msg); sendErr == nil {
			return nil
		}
		b.logger.Debug().Err(sendErr).Str("chat_id", chatID).Int("attempt", attempt+1).Msg("Send attempt failed")

		if attempt == b.attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.retryDelay):
		}
	}
	return fmt.Errorf("send failed after %d attempt(s): %w", b.attempts, sendErr)
}

// NotifyStartup tells the super-admin the monitor is running. Failures are
// only logged.
func (b *Broadcaster) NotifyStartup(ctx context.Context, superAdminChatID, appName string, nextSweep time.Time) {
	if superAdminChatID == "" {
		b.logger.Info().Msg("No super-admin chat configured, skipping startup notification")
		return
	}
	text := fmt.Sprintf("🚀 <b>%s</b> started.\nNext payment check: %s.",
		escape(appName), nextSweep.Format("02.01.2006 15:04 MST"))
	if err := b.SendText(ctx, superAdminChatID, text); err != nil {
		b.logger.Warn().Err(err).Msg("Failed to send startup notification")
		return
	}
	b.logger.Info().Msg("Startup notification sent")
}
