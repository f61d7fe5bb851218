package models

import "time"

// Account is a tracked InSales shop.
type Account struct {
	ID                   int64
	Title                string
	ShopDomain           string
	APIKey               string
	APIPassword          string
	PaidTill             *time.Time // calendar date, nil while unknown
	NotificationsEnabled bool
	LastNotifiedAt       *time.Time // calendar date of the last renewal notice
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NewAccount holds the fields collected by the registration flow.
type NewAccount struct {
	Title       string
	ShopDomain  string
	APIKey      string
	APIPassword string
	PaidTill    *time.Time
}

// NotifiedOn reports whether a renewal notice already went out on day.
func (a *Account) NotifiedOn(day time.Time) bool {
	return a.LastNotifiedAt != nil && SameDate(*a.LastNotifiedAt, day)
}
