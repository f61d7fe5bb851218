package bot

import (
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"insales-monitor/internal/models"
)

const (
	menuListAccounts        = "👁 Accounts"
	menuAddAccount          = "➕ Add account"
	menuPaymentDates        = "📅 Payment dates"
	menuToggleNotifications = "🔔 Notifications"
	menuManageAdmins        = "🛡 Administrators"

	callbackToggle = "toggle:"
	callbackAdmin  = "admin:"
)

func escape(s string) string {
	return html.EscapeString(s)
}

// mainMenuKeyboard returns the reply keyboard for a chat's access level, or
// removes the keyboard for chats without access.
func mainMenuKeyboard(chat *models.Chat) any {
	if chat == nil || !chat.IsAdmin {
		return tgbotapi.NewRemoveKeyboard(true)
	}
	rows := [][]tgbotapi.KeyboardButton{
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuListAccounts),
			tgbotapi.NewKeyboardButton(menuPaymentDates),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuAddAccount),
			tgbotapi.NewKeyboardButton(menuToggleNotifications),
		),
	}
	if chat.IsSuperAdmin {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(menuManageAdmins)))
	}
	keyboard := tgbotapi.NewReplyKeyboard(rows...)
	keyboard.ResizeKeyboard = true
	return keyboard
}

func accountsText(accounts []*models.Account) string {
	if len(accounts) == 0 {
		return "No accounts have been added yet."
	}
	lines := []string{"<b>Connected accounts:</b>"}
	for _, a := range accounts {
		status := "🔔"
		if !a.NotificationsEnabled {
			status = "🔕"
		}
		lines = append(lines, fmt.Sprintf("%s %s — %s", status, escape(a.Title), escape(a.ShopDomain)))
	}
	return strings.Join(lines, "\n")
}

func paymentDatesText(accounts []*models.Account) string {
	if len(accounts) == 0 {
		return "No account data yet."
	}
	lines := []string{"<b>Payment dates:</b>"}
	for _, a := range accounts {
		if a.PaidTill != nil {
			lines = append(lines, fmt.Sprintf("%s: paid till %s", escape(a.Title), a.PaidTill.Format(models.DateLayout)))
		} else {
			lines = append(lines, fmt.Sprintf("%s: payment date unknown", escape(a.Title)))
		}
	}
	return strings.Join(lines, "\n")
}

func toggleKeyboard(accounts []*models.Account) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(accounts))
	for _, a := range accounts {
		status := "🔔"
		if !a.NotificationsEnabled {
			status = "🔕"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s %s", status, a.Title), fmt.Sprintf("%s%d", callbackToggle, a.ID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// adminOverview renders the admin panel. The keyboard is nil when there is
// no chat whose rights can be changed.
func adminOverview(chats []*models.Chat) (string, *tgbotapi.InlineKeyboardMarkup) {
	if len(chats) == 0 {
		return "No chats have talked to the bot yet.", nil
	}
	lines := []string{
		"<b>Administrators</b>",
		"Tap a button to grant or revoke access.",
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, c := range chats {
		name := c.DisplayName()
		switch {
		case c.IsSuperAdmin:
			lines = append(lines, fmt.Sprintf("👑 %s — super-admin", escape(name)))
			continue
		case c.IsAdmin:
			lines = append(lines, fmt.Sprintf("✅ %s — admin", escape(name)))
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("❌ "+name, callbackAdmin+c.ChatID)))
		default:
			lines = append(lines, fmt.Sprintf("➖ %s — no access", escape(name)))
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ "+name, callbackAdmin+c.ChatID)))
		}
	}
	if len(rows) == 0 {
		return strings.Join(lines, "\n"), nil
	}
	keyboard := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return strings.Join(lines, "\n"), &keyboard
}
