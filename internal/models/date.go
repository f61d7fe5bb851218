package models

import "time"

const DateLayout = "02.01.2006"

// DateOf returns the calendar date of t, as seen in t's own location, at
// 00:00 UTC. PostgreSQL DATE columns scan into the same form.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole number of days from "from" to "to".
// Negative when "to" is earlier.
func DaysBetween(from, to time.Time) int {
	return int(DateOf(to).Sub(DateOf(from)).Hours() / 24)
}

func SameDate(a, b time.Time) bool {
	return DateOf(a).Equal(DateOf(b))
}

// SameOptionalDate treats two nil dates as equal.
func SameOptionalDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return SameDate(*a, *b)
}
