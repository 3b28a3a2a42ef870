package recurrence

import (
	"time"

	"github.com/mmynk/sharedledger/internal/models"
)

// Advance returns the date of the occurrence that follows from under rule.
//
// Arithmetic is done on UTC date components and keeps the time of day, so
// repeated advancement never drifts. MONTHLY keeps the day of month and
// clamps it to the last day of shorter months (Jan 31 -> Feb 28).
// RuleNone and unknown rules return from unchanged.
func Advance(rule models.RecurrenceRule, from time.Time) time.Time {
	from = from.UTC()
	year, month, day := from.Date()
	hour, min, sec := from.Clock()
	nsec := from.Nanosecond()

	switch rule {
	case models.RuleDaily:
		return time.Date(year, month, day+1, hour, min, sec, nsec, time.UTC)
	case models.RuleWeekly:
		return time.Date(year, month, day+7, hour, min, sec, nsec, time.UTC)
	case models.RuleMonthly:
		target := month + 1
		next := time.Date(year, target, day, hour, min, sec, nsec, time.UTC)
		// time.Date normalizes overflowing days into the following month;
		// step back until the day survives the round trip.
		for next.Day() != day {
			day--
			next = time.Date(year, target, day, hour, min, sec, nsec, time.UTC)
		}
		return next
	default:
		return from
	}
}
