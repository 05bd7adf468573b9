package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	LoanPeriodDays = 15
	FineBlockDays  = 15
)

// FinePerBlock is charged for every started block of FineBlockDays overdue.
var FinePerBlock = decimal.NewFromInt(10)

// DueDateFor is the issue time plus the loan period, in library-local calendar days.
func DueDateFor(issued time.Time, loc *time.Location) time.Time {
	return issued.In(locOrUTC(loc)).AddDate(0, 0, LoanPeriodDays)
}

// OverdueDays is max(0, days(ref) - days(due)) where days() is the calendar date in loc.
func OverdueDays(due, ref time.Time, loc *time.Location) int {
	d := calendarDay(ref, loc).Sub(calendarDay(due, loc))
	days := int(d / (24 * time.Hour))
	if days < 0 {
		return 0
	}
	return days
}

// ComputeFine is ceil(overdue_days / FineBlockDays) * FinePerBlock.
func ComputeFine(due, ref time.Time, loc *time.Location) decimal.Decimal {
	days := OverdueDays(due, ref, loc)
	if days == 0 {
		return decimal.Zero
	}
	blocks := (days + FineBlockDays - 1) / FineBlockDays
	return FinePerBlock.Mul(decimal.NewFromInt(int64(blocks)))
}

// StartOfDay is local midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	loc = locOrUTC(loc)
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// calendarDay maps t to UTC midnight of its local date so that subtraction counts whole days
// regardless of DST shifts in loc.
func calendarDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(locOrUTC(loc)).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func locOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
