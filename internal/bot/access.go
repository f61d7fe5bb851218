package bot

import (
	"errors"

	"insales-monitor/internal/models"
)

var (
	ErrNotAdmin      = errors.New("chat is not an admin")
	ErrNotSuperAdmin = errors.New("chat is not the super-admin")
)

// authorize checks a chat record against an action's required level. A nil
// chat (unknown to the store) is never authorized.
func authorize(chat *models.Chat, superAdminOnly bool) error {
	if chat == nil || !chat.IsAdmin {
		return ErrNotAdmin
	}
	if superAdminOnly && !chat.IsSuperAdmin {
		return ErrNotSuperAdmin
	}
	return nil
}
