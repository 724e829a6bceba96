// Package market_hours provides the simulated trading calendar.
package market_hours

import "time"

// IsTradingDay reports whether a date is a simulated trading day.
// Only the weekday filter applies; there is no holiday calendar.
func IsTradingDay(date time.Time) bool {
	wd := date.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// NextTradingDay returns the first trading day strictly after date
func NextTradingDay(date time.Time) time.Time {
	d := date.AddDate(0, 0, 1)
	for !IsTradingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// TradingDays returns every trading day in [start, end], in order
func TradingDays(start, end time.Time) []time.Time {
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if IsTradingDay(d) {
			days = append(days, d)
		}
	}
	return days
}

// DaysToExpiration returns whole calendar days between a date and an expiration
func DaysToExpiration(date, expiration time.Time) int {
	return int(expiration.Sub(truncate(date)).Hours() / 24)
}

// TargetExpiration returns the standard Friday expiration closest to, but not
// beyond, targetDTE calendar days after date. When no Friday fits (targetDTE
// under 5 days may skip one) the last trading day within the window is used.
func TargetExpiration(date time.Time, targetDTE int) time.Time {
	limit := truncate(date).AddDate(0, 0, targetDTE)

	for d := limit; d.After(date); d = d.AddDate(0, 0, -1) {
		if d.Weekday() == time.Friday {
			return d
		}
	}
	for d := limit; d.After(date); d = d.AddDate(0, 0, -1) {
		if IsTradingDay(d) {
			return d
		}
	}
	return limit
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
