package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"insales-monitor/internal/models"
	"insales-monitor/internal/store"
)

const (
	textNoAccess      = "⛔ You don't have access to the bot. Ask the super-admin to grant it."
	textSuperAdmin    = "⛔ Only the super-admin can do this."
	textServiceDown   = "⚠️ Something went wrong. Please try again later."
	textAccountSaved  = "✅ Account saved and ready for tracking!"
	textFetchFailed   = "❌ Could not fetch account data. Check the credentials and try again."
	textDuplicate     = "⚠️ An account with this shop domain has already been added."
	textEmptyInput    = "The answer can't be empty."
	textCancelled     = "Action cancelled."
	textNothingCancel = "Nothing to cancel."
)

type InteractiveBot struct {
	api              Sender
	accounts         AccountStore
	chats            ChatStore
	fetcher          AccountFetcher
	superAdminChatID string
	appName          string
	fetchDeadline    time.Duration
	conversations    *conversations
	logger           zerolog.Logger
}

type InteractiveBotOptions struct {
	SuperAdminChatID string
	AppName          string
	FetchDeadline    time.Duration
}

func NewInteractiveBot(api Sender, accounts AccountStore, chats ChatStore, fetcher AccountFetcher,
	opts InteractiveBotOptions, logger zerolog.Logger) *InteractiveBot {
	if opts.FetchDeadline <= 0 {
		opts.FetchDeadline = 30 * time.Second
	}
	return &InteractiveBot{
		api:              api,
		accounts:         accounts,
		chats:            chats,
		fetcher:          fetcher,
		superAdminChatID: opts.SuperAdminChatID,
		appName:          opts.AppName,
		fetchDeadline:    opts.FetchDeadline,
		conversations:    newConversations(),
		logger:           logger.With().Str("component", "interactive_bot").Logger(),
	}
}

// Start handles updates one at a time until ctx is done or the channel is
// closed.
func (ib *InteractiveBot) Start(ctx context.Context, updates <-chan tgbotapi.Update) {
	ib.logger.Info().Msg("🚀 Interactive Telegram bot started! Ready to receive messages...")
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			ib.HandleUpdate(ctx, update)
		}
	}
}

func (ib *InteractiveBot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			ib.logger.Error().Interface("panic", r).Int("update_id", update.UpdateID).Msg("Recovered from panic while handling update")
		}
	}()

	switch {
	case update.Message != nil:
		ib.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		ib.handleCallbackQuery(ctx, update.CallbackQuery)
	}
}

func (ib *InteractiveBot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.Chat == nil {
		return
	}
	chatID := message.Chat.ID
	text := strings.TrimSpace(message.Text)

	ib.logger.Debug().Int64("chat_id", chatID).Str("text", text).Msg("📝 Received message")

	chat, err := ib.registerChat(ctx, message.Chat)
	if err != nil {
		ib.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to register chat")
		ib.sendMessage(chatID, textServiceDown, nil)
		return
	}

	if message.IsCommand() {
		switch message.Command() {
		case "start":
			ib.sendWelcomeMessage(chat)
		case "help":
			ib.sendHelpMessage(chat)
		case "add":
			ib.startRegistration(chat)
		case "cancel":
			ib.cancelRegistration(chat)
		default:
			ib.sendHelpMessage(chat)
		}
		return
	}

	if step, ok := ib.conversations.get(chatID); ok {
		ib.continueRegistration(ctx, chat, step, text)
		return
	}

	switch text {
	case menuListAccounts:
		ib.sendAccounts(ctx, chat)
	case menuPaymentDates:
		ib.sendPaymentDates(ctx, chat)
	case menuAddAccount:
		ib.startRegistration(chat)
	case menuToggleNotifications:
		ib.sendToggleMenu(ctx, chat)
	case menuManageAdmins:
		ib.sendAdminPanel(ctx, chat)
	default:
		ib.sendHelpMessage(chat)
	}
}

// registerChat upserts the chat record; the configured super-admin gets both
// flags on every contact.
func (ib *InteractiveBot) registerChat(ctx context.Context, c *tgbotapi.Chat) (*models.Chat, error) {
	profile := models.ChatProfile{
		ChatID:    strconv.FormatInt(c.ID, 10),
		Username:  optional(c.UserName),
		FirstName: optional(c.FirstName),
		LastName:  optional(c.LastName),
	}
	if profile.FirstName == nil && c.Title != "" {
		profile.FirstName = optional(c.Title)
	}
	isSuperAdmin := ib.superAdminChatID != "" && profile.ChatID == ib.superAdminChatID
	return ib.chats.Upsert(ctx, profile, isSuperAdmin)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func chatIDOf(chat *models.Chat) int64 {
	id, _ := strconv.ParseInt(chat.ChatID, 10, 64)
	return id
}

// ensureAccess replies with a denial and returns false when chat may not run
// the action.
func (ib *InteractiveBot) ensureAccess(chat *models.Chat, superAdminOnly bool) bool {
	err := authorize(chat, superAdminOnly)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrNotSuperAdmin):
		ib.sendMessage(chatIDOf(chat), textSuperAdmin, mainMenuKeyboard(chat))
	default:
		ib.sendMessage(chatIDOf(chat), textNoAccess, mainMenuKeyboard(nil))
	}
	ib.logger.Info().Str("chat_id", chat.ChatID).Bool("super_admin_only", superAdminOnly).Msg("Access denied")
	return false
}

func (ib *InteractiveBot) sendWelcomeMessage(chat *models.Chat) {
	if !chat.IsAdmin {
		ib.sendMessage(chatIDOf(chat),
			"👋 Hi! Your chat is registered, but access hasn't been granted yet. Ask an administrator for rights.",
			mainMenuKeyboard(nil))
		return
	}
	text := fmt.Sprintf("👋 Hi! I'll keep an eye on InSales account payments.\n\n<b>%s</b>", escape(ib.appName))
	ib.sendMessage(chatIDOf(chat), text, mainMenuKeyboard(chat))
}

func (ib *InteractiveBot) sendHelpMessage(chat *models.Chat) {
	if !chat.IsAdmin {
		ib.sendMessage(chatIDOf(chat), textNoAccess, mainMenuKeyboard(nil))
		return
	}
	helpText := `<b>📚 How to use this bot:</b>

Use the menu below to manage accounts and notifications.

<b>💡 Commands:</b>
• /start - Welcome message
• /add - Add an InSales account
• /cancel - Cancel adding an account
• /help - This help message`
	ib.sendMessage(chatIDOf(chat), helpText, mainMenuKeyboard(chat))
}

func (ib *InteractiveBot) sendAccounts(ctx context.Context, chat *models.Chat) {
	if !ib.ensureAccess(chat, false) {
		return
	}
	accounts, err := ib.accounts.List(ctx)
	if err != nil {
		ib.logger.Error().Err(err).Msg("Failed to list accounts")
		ib.sendMessage(chatIDOf(chat), textServiceDown, nil)
		return
	}
	ib.sendMessage(chatIDOf(chat), accountsText(accounts), nil)
}

func (ib *InteractiveBot) sendPaymentDates(ctx context.Context, chat *models.Chat) {
	if !ib.ensureAccess(chat, false) {
		return
	}
	accounts, err := ib.accounts.List(ctx)
	if err != nil {
		ib.logger.Error().Err(err).Msg("Failed to list accounts")
		ib.sendMessage(chatIDOf(chat), textServiceDown, nil)
		return
	}
	ib.sendMessage(chatIDOf(chat), paymentDatesText(accounts), nil)
}

func (ib *InteractiveBot) sendToggleMenu(ctx context.Context, chat *models.Chat) {
	if !ib.ensureAccess(chat, false) {
		return
	}
	accounts, err := ib.accounts.List(ctx)
	if err != nil {
		ib.logger.Error().Err(err).Msg("Failed to list accounts")
		ib.sendMessage(chatIDOf(chat), textServiceDown, nil)
		return
	}
	if len(accounts) == 0 {
		ib.sendMessage(chatIDOf(chat), "No accounts found.", nil)
		return
	}
	ib.sendMessage(chatIDOf(chat), "Choose an account to switch its notifications:", toggleKeyboard(accounts))
}

func (ib *InteractiveBot) sendAdminPanel(ctx context.Context, chat *models.Chat) {
	if !ib.ensureAccess(chat, true) {
		return
	}
	chats, err := ib.chats.List(ctx)
	if err != nil {
		ib.logger.Error().Err(err).Msg("Failed to list chats")
		ib.sendMessage(chatIDOf(chat), textServiceDown, nil)
		return
	}
	text, keyboard := adminOverview(chats)
	if keyboard == nil {
		ib.sendMessage(chatIDOf(chat), text, nil)
		return
	}
	ib.sendMessage(chatIDOf(chat), text, *keyboard)
}

func (ib *InteractiveBot) startRegistration(chat *models.Chat) {
	if !ib.ensureAccess(chat, false) {
		return
	}
	step := awaitingTitle{}
	ib.conversations.set(chatIDOf(chat), step)
	ib.sendMessage(chatIDOf(chat), step.prompt(), mainMenuKeyboard(nil))
}

func (ib *InteractiveBot) cancelRegistration(chat *models.Chat) {
	if ib.conversations.clear(chatIDOf(chat)) {
		ib.sendMessage(chatIDOf(chat), textCancelled, mainMenuKeyboard(chat))
		return
	}
	ib.sendMessage(chatIDOf(chat), textNothingCancel, mainMenuKeyboard(chat))
}

func (ib *InteractiveBot) continueRegistration(ctx context.Context, chat *models.Chat, step registrationStep, input string) {
	id := chatIDOf(chat)
	if authorize(chat, false) != nil {
		ib.conversations.clear(id)
		ib.ensureAccess(chat, false)
		return
	}
	if input == "" {
		ib.sendMessage(id, textEmptyInput+" "+step.prompt(), nil)
		return
	}

	next, completed := advance(step, input)
	if completed == nil {
		ib.conversations.set(id, next)
		ib.sendMessage(id, next.prompt(), nil)
		return
	}

	ib.conversations.clear(id)
	ib.finishRegistration(ctx, chat, *completed)
}

// finishRegistration validates the credentials with a live fetch and stores
// the account. Nothing is written when the fetch or the insert fails.
func (ib *InteractiveBot) finishRegistration(ctx context.Context, chat *models.Chat, account models.NewAccount) {
	id := chatIDOf(chat)
	logger := ib.logger.With().Str("chat_id", chat.ChatID).Str("shop_domain", account.ShopDomain).Logger()

	fetchCtx, cancel := context.WithTimeout(ctx, ib.fetchDeadline)
	info, err := ib.fetcher.FetchAccount(fetchCtx, account.ShopDomain, account.APIKey, account.APIPassword)
	cancel()
	if err != nil {
		logger.Warn().Err(err).Msg("Credential check failed, account not saved")
		ib.sendMessage(id, textFetchFailed, mainMenuKeyboard(chat))
		return
	}
	account.PaidTill = info.PaidTill

	created, err := ib.accounts.Create(ctx, account)
	if errors.Is(err, store.ErrDuplicateDomain) {
		logger.Info().Msg("Account with this domain already exists")
		ib.sendMessage(id, textDuplicate, mainMenuKeyboard(chat))
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("Failed to save account")
		ib.sendMessage(id, textServiceDown, mainMenuKeyboard(chat))
		return
	}

	logger.Info().Int64("account_id", created.ID).Msg("💾 Account registered")
	text := textAccountSaved
	if created.PaidTill != nil {
		text += fmt.Sprintf("\nPaid till: %s", created.PaidTill.Format(models.DateLayout))
	}
	ib.sendMessage(id, text, mainMenuKeyboard(chat))
}

func (ib *InteractiveBot) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if callback.Message == nil || callback.Message.Chat == nil {
		ib.answerCallback(callback.ID, "Action unavailable.", true)
		return
	}

	ib.logger.Debug().Int64("chat_id", callback.Message.Chat.ID).Str("data", callback.Data).Msg("🖱️ Callback")

	chat, err := ib.registerChat(ctx, callback.Message.Chat)
	if err != nil {
		ib.logger.Error().Err(err).Msg("Failed to register chat")
		ib.answerCallback(callback.ID, textServiceDown, true)
		return
	}

	switch {
	case strings.HasPrefix(callback.Data, callbackToggle):
		ib.toggleNotifications(ctx, chat, callback)
	case strings.HasPrefix(callback.Data, callbackAdmin):
		ib.toggleAdmin(ctx, chat, callback)
	default:
		ib.answerCallback(callback.ID, "", false)
	}
}

func (ib *InteractiveBot) ensureCallbackAccess(chat *models.Chat, callbackID string, superAdminOnly bool) bool {
	err := authorize(chat, superAdminOnly)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrNotSuperAdmin):
		ib.answerCallback(callbackID, "⛔ Super-admin rights required.", true)
	default:
		ib.answerCallback(callbackID, "⛔ You don't have access.", true)
	}
	return false
}

func (ib *InteractiveBot) toggleNotifications(ctx context.Context, chat *models.Chat, callback *tgbotapi.CallbackQuery) {
	if !ib.ensureCallbackAccess(chat, callback.ID, false) {
		return
	}
	accountID, err := strconv.ParseInt(strings.TrimPrefix(callback.Data, callbackToggle), 10, 64)
	if err != nil {
		ib.answerCallback(callback.ID, "Invalid action.", true)
		return
	}

	account, err := ib.accounts.Get(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		ib.answerCallback(callback.ID, "", false)
		ib.editMessage(callback.Message, "Account not found.", nil)
		return
	}
	if err != nil {
		ib.logger.Error().Err(err).Int64("account_id", accountID).Msg("Failed to load account")
		ib.answerCallback(callback.ID, textServiceDown, true)
		return
	}

	enabled := !account.NotificationsEnabled
	if err := ib.accounts.SetNotificationsEnabled(ctx, account.ID, enabled); err != nil {
		ib.logger.Error().Err(err).Int64("account_id", accountID).Msg("Failed to switch notifications")
		ib.answerCallback(callback.ID, textServiceDown, true)
		return
	}

	status := "off 🔕"
	if enabled {
		status = "on 🔔"
	}
	ib.logger.Info().Int64("account_id", account.ID).Bool("enabled", enabled).Str("by", chat.ChatID).Msg("Notifications switched")
	ib.answerCallback(callback.ID, "", false)
	ib.editMessage(callback.Message, fmt.Sprintf("Notifications for <b>%s</b> are now %s.", escape(account.Title), status), nil)
}

func (ib *InteractiveBot) toggleAdmin(ctx context.Context, chat *models.Chat, callback *tgbotapi.CallbackQuery) {
	if !ib.ensureCallbackAccess(chat, callback.ID, true) {
		return
	}
	targetID := strings.TrimPrefix(callback.Data, callbackAdmin)

	target, err := ib.chats.Get(ctx, targetID)
	if errors.Is(err, store.ErrNotFound) {
		ib.answerCallback(callback.ID, "Chat not found.", true)
		return
	}
	if err != nil {
		ib.logger.Error().Err(err).Str("target", targetID).Msg("Failed to load chat")
		ib.answerCallback(callback.ID, textServiceDown, true)
		return
	}

	updated, err := ib.chats.SetAdmin(ctx, targetID, !target.IsAdmin)
	switch {
	case errors.Is(err, store.ErrSuperAdminImmutable):
		ib.answerCallback(callback.ID, "Super-admin status can't be changed.", true)
		return
	case errors.Is(err, store.ErrNotFound):
		ib.answerCallback(callback.ID, "Chat not found.", true)
		return
	case err != nil:
		ib.logger.Error().Err(err).Str("target", targetID).Msg("Failed to change admin status")
		ib.answerCallback(callback.ID, textServiceDown, true)
		return
	}
	ib.logger.Info().Str("target", targetID).Bool("is_admin", updated.IsAdmin).Str("by", chat.ChatID).Msg("🛡 Admin rights changed")

	chats, err := ib.chats.List(ctx)
	if err != nil {
		ib.logger.Error().Err(err).Msg("Failed to list chats")
		ib.answerCallback(callback.ID, "Rights updated.", false)
		return
	}
	text, keyboard := adminOverview(chats)
	ib.editMessage(callback.Message, text, keyboard)
	ib.answerCallback(callback.ID, "Rights updated.", false)
}

func (ib *InteractiveBot) sendMessage(chatID int64, text string, keyboard any) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if keyboard != nil {
		msg.ReplyMarkup = keyboard
	}

	if _, err := ib.api.Send(msg); err != nil {
		ib.logger.Error().Err(err).Int64("chat_id", chatID).Msg("❌ Error sending message")
	}
}

func (ib *InteractiveBot) editMessage(message *tgbotapi.Message, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageText(message.Chat.ID, message.MessageID, text)
	if keyboard != nil {
		edit = tgbotapi.NewEditMessageTextAndMarkup(message.Chat.ID, message.MessageID, text, *keyboard)
	}
	edit.ParseMode = tgbotapi.ModeHTML

	if _, err := ib.api.Send(edit); err != nil {
		ib.logger.Error().Err(err).Int64("chat_id", message.Chat.ID).Msg("❌ Error editing message")
	}
}

func (ib *InteractiveBot) answerCallback(callbackID, text string, alert bool) {
	callback := tgbotapi.NewCallback(callbackID, text)
	if alert {
		callback = tgbotapi.NewCallbackWithAlert(callbackID, text)
	}
	if _, err := ib.api.Request(callback); err != nil {
		ib.logger.Error().Err(err).Msg("❌ Error answering callback")
	}
}
