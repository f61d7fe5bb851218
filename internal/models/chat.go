package models

import (
	"strings"
	"time"
)

type Chat struct {
	ID           int64
	ChatID       string
	Username     *string
	FirstName    *string
	LastName     *string
	IsAdmin      bool
	IsSuperAdmin bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ChatProfile is what the bot learns about a chat from an inbound update.
type ChatProfile struct {
	ChatID    string
	Username  *string
	FirstName *string
	LastName  *string
}

// DisplayName prefers @username, then the full name, then the raw chat id.
func (c *Chat) DisplayName() string {
	if c.Username != nil && *c.Username != "" {
		return "@" + *c.Username
	}
	var parts []string
	for _, p := range []*string{c.FirstName, c.LastName} {
		if p != nil && *p != "" {
			parts = append(parts, *p)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	return c.ChatID
}
