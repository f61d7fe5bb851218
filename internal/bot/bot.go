package bot

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"insales-monitor/internal/insales"
	"insales-monitor/internal/metrics"
	"insales-monitor/internal/models"
)

// Accounts within this many days of their paid-till date get a notice.
const dueSoonWindow = 7

var ErrSweepInProgress = errors.New("notification sweep already in progress")

type AccountStore interface {
	List(ctx context.Context) ([]*models.Account, error)
	Get(ctx context.Context, id int64) (*models.Account, error)
	Create(ctx context.Context, n models.NewAccount) (*models.Account, error)
	UpdatePaidTill(ctx context.Context, id int64, paidTill *time.Time) error
	SetNotificationsEnabled(ctx context.Context, id int64, enabled bool) error
	UpdateLastNotified(ctx context.Context, id int64, day time.Time) error
}

type ChatStore interface {
	Upsert(ctx context.Context, p models.ChatProfile, superAdmin bool) (*models.Chat, error)
	Get(ctx context.Context, chatID string) (*models.Chat, error)
	List(ctx context.Context) ([]*models.Chat, error)
	ListAdmins(ctx context.Context) ([]*models.Chat, error)
	SetAdmin(ctx context.Context, chatID string, isAdmin bool) (*models.Chat, error)
}

type AccountFetcher interface {
	FetchAccount(ctx context.Context, domain, apiKey, password string) (*insales.AccountInfo, error)
}

type Urgency int

const (
	NotDue Urgency = iota
	DueSoon
	Overdue
)

func (u Urgency) String() string {
	switch u {
	case DueSoon:
		return "due_soon"
	case Overdue:
		return "overdue"
	default:
		return "not_due"
	}
}

func Classify(daysLeft int) Urgency {
	switch {
	case daysLeft < 0:
		return Overdue
	case daysLeft <= dueSoonWindow:
		return DueSoon
	default:
		return NotDue
	}
}

// SweepReport summarises one pass over the accounts.
type SweepReport struct {
	RunID            string
	Accounts         int
	Recipients       int
	Checked          int
	Refreshed        int
	Notified         int
	Suppressed       int
	FetchFailures    int
	Delivered        int
	DeliveryFailures int
}

// Notifier runs the daily refresh-and-notify sweep.
type Notifier struct {
	accounts        AccountStore
	chats           ChatStore
	fetcher         AccountFetcher
	broadcaster     *Broadcaster
	accountDeadline time.Duration
	metrics         *metrics.Metrics
	logger          zerolog.Logger

	running atomic.Bool
}

func NewNotifier(accounts AccountStore, chats ChatStore, fetcher AccountFetcher, broadcaster *Broadcaster,
	accountDeadline time.Duration, m *metrics.Metrics, logger zerolog.Logger) *Notifier {
	return &Notifier{
		accounts:        accounts,
		chats:           chats,
		fetcher:         fetcher,
		broadcaster:     broadcaster,
		accountDeadline: accountDeadline,
		metrics:         m,
		logger:          logger.With().Str("component", "notifier").Logger(),
	}
}

// Run refreshes every enabled account and notifies admin chats about
// overdue or soon-due payments. today is a calendar date in the configured
// timezone. Only one Run executes at a time; a concurrent call returns
// ErrSweepInProgress.
func (n *Notifier) Run(ctx context.Context, today time.Time) (*SweepReport, error) {
	if !n.running.CompareAndSwap(false, true) {
		return nil, ErrSweepInProgress
	}
	defer n.running.Store(false)

	start := time.Now()
	report, err := n.sweep(ctx, models.DateOf(today))
	result := "ok"
	if err != nil {
		result = "error"
	}
	n.metrics.SweepFinished(result, time.Since(start).Seconds())
	return report, err
}

func (n *Notifier) sweep(ctx context.Context, today time.Time) (*SweepReport, error) {
	report := &SweepReport{RunID: uuid.NewString()}
	logger := n.logger.With().Str("run_id", report.RunID).Str("today", today.Format(time.DateOnly)).Logger()

	accounts, err := n.accounts.List(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to load accounts: %w", err)
	}
	report.Accounts = len(accounts)
	if len(accounts) == 0 {
		logger.Info().Msg("No accounts registered, nothing to check")
		return report, nil
	}

	recipients, err := n.chats.ListAdmins(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to load admin chats: %w", err)
	}
	report.Recipients = len(recipients)
	if len(recipients) == 0 {
		logger.Warn().Msg("No admin chats to notify, skipping sweep")
		return report, nil
	}

	logger.Info().Int("accounts", len(accounts)).Int("recipients", len(recipients)).Msg("🔍 Checking account payment dates...")

	for _, account := range accounts {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		n.processAccount(ctx, logger, account, today, recipients, report)
	}

	logger.Info().
		Int("checked", report.Checked).
		Int("refreshed", report.Refreshed).
		Int("notified", report.Notified).
		Int("suppressed", report.Suppressed).
		Int("fetch_failures", report.FetchFailures).
		Int("delivery_failures", report.DeliveryFailures).
		Msg("✅ Payment check finished")
	return report, nil
}

func (n *Notifier) processAccount(ctx context.Context, logger zerolog.Logger, account *models.Account, today time.Time,
	recipients []*models.Chat, report *SweepReport) {
	if !account.NotificationsEnabled {
		return
	}
	logger = logger.With().Int64("account_id", account.ID).Str("shop_domain", account.ShopDomain).Logger()
	report.Checked++

	fetchCtx, cancel := context.WithTimeout(ctx, n.accountDeadline)
	info, err := n.fetcher.FetchAccount(fetchCtx, account.ShopDomain, account.APIKey, account.APIPassword)
	cancel()
	if err != nil {
		report.FetchFailures++
		kind := insales.Kind(err)
		n.metrics.FetchFailed(kind)
		logger.Warn().Err(err).Str("kind", kind).Msg("Failed to refresh account data, skipping this round")
		return
	}

	if !models.SameOptionalDate(info.PaidTill, account.PaidTill) {
		if err := n.accounts.UpdatePaidTill(ctx, account.ID, info.PaidTill); err != nil {
			logger.Error().Err(err).Msg("Failed to store refreshed paid-till date")
			return
		}
		account.PaidTill = info.PaidTill
		report.Refreshed++
	}

	if account.PaidTill == nil {
		logger.Debug().Msg("Paid-till date unknown")
		return
	}

	daysLeft := models.DaysBetween(today, *account.PaidTill)
	urgency := Classify(daysLeft)
	if urgency == NotDue {
		return
	}
	if account.NotifiedOn(today) {
		report.Suppressed++
		logger.Debug().Msg("Already notified today")
		return
	}

	delivery := n.broadcaster.Broadcast(ctx, ComposeMessage(account, daysLeft), recipients)
	report.Delivered += delivery.Delivered
	report.DeliveryFailures += delivery.Failed

	if err := n.accounts.UpdateLastNotified(ctx, account.ID, today); err != nil {
		logger.Error().Err(err).Msg("Failed to record notification date")
	}
	report.Notified++
	n.metrics.Notified(urgency.String())
	logger.Info().Int("days_left", daysLeft).Str("urgency", urgency.String()).
		Int("delivered", delivery.Delivered).Int("failed", delivery.Failed).Msg("📣 Renewal notice sent")
}

// ComposeMessage renders the renewal notice for an account with a known
// paid-till date.
func ComposeMessage(account *models.Account, daysLeft int) string {
	title := escape(account.Title)
	paidTill := account.PaidTill.Format(models.DateLayout)
	switch {
	case daysLeft < 0:
		return fmt.Sprintf("⚠️ The plan for <b>%s</b> expired on %s. Renewal required.", title, paidTill)
	case daysLeft == 0:
		return fmt.Sprintf("⏰ <b>%s</b> is paid till %s. Payment is due today!", title, paidTill)
	default:
		return fmt.Sprintf("⏰ <b>%s</b> is paid till %s. %d day(s) left.", title, paidTill, daysLeft)
	}
}
