package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func day(y int, m time.Month, d, hour int) time.Time {
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}

func TestDueDateFor_IsFifteenDaysAfterIssue(t *testing.T) {
	issued := day(2025, time.January, 1, 9)
	due := DueDateFor(issued, time.UTC)
	if !due.Equal(day(2025, time.January, 16, 9)) {
		t.Fatalf("expected due 2025-01-16 09:00, got %s", due)
	}
	if got := OverdueDays(issued, due, time.UTC); got != LoanPeriodDays {
		t.Fatalf("expected %d days between issue and due, got %d", LoanPeriodDays, got)
	}
}

func TestDueDateFor_KeepsWallClockAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	issued := time.Date(2025, time.March, 1, 10, 0, 0, 0, loc)
	due := DueDateFor(issued, loc)
	if !due.Equal(time.Date(2025, time.March, 16, 10, 0, 0, 0, loc)) {
		t.Fatalf("expected due 2025-03-16 10:00 local, got %s", due)
	}
	// the spring-forward hour is skipped, so the elapsed time is one hour short of 15x24h
	if got := due.Sub(issued); got != 15*24*time.Hour-time.Hour {
		t.Fatalf("expected 359h elapsed, got %s", got)
	}
	if got := OverdueDays(issued, due, loc); got != LoanPeriodDays {
		t.Fatalf("expected %d calendar days, got %d", LoanPeriodDays, got)
	}
}

func TestComputeFine_StepFunction(t *testing.T) {
	due := day(2025, time.January, 1, 12)
	cases := []struct {
		name string
		ref  time.Time
		days int
		fine int64
	}{
		{"before due", day(2024, time.December, 20, 12), 0, 0},
		{"due day itself", day(2025, time.January, 1, 23), 0, 0},
		{"Jan 10 is nine days late", day(2025, time.January, 10, 8), 9, 10},
		{"one day late", day(2025, time.January, 2, 0), 1, 10},
		{"exactly one block", day(2025, time.January, 16, 1), 15, 10},
		{"first day of second block", day(2025, time.January, 17, 1), 16, 20},
		{"returned Jan 20", day(2025, time.January, 20, 18), 19, 20},
		{"three blocks", day(2025, time.February, 15, 10), 45, 30},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := OverdueDays(due, tc.ref, time.UTC); got != tc.days {
				t.Fatalf("overdue days: expected %d, got %d", tc.days, got)
			}
			if got := ComputeFine(due, tc.ref, time.UTC); !got.Equal(decimal.NewFromInt(tc.fine)) {
				t.Fatalf("fine: expected %d, got %s", tc.fine, got)
			}
		})
	}
}

func TestComputeFine_ZeroOnOrBeforeDueDay(t *testing.T) {
	due := day(2025, time.January, 1, 0)
	for _, ref := range []time.Time{due, day(2025, time.January, 1, 23), day(2024, time.December, 31, 0)} {
		if got := ComputeFine(due, ref, time.UTC); !got.IsZero() {
			t.Fatalf("expected zero fine at %s, got %s", ref, got)
		}
	}
}

func TestComputeFine_CountsCalendarDaysInLibraryZone(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 2025-01-01 23:00 IST
	due := time.Date(2025, time.January, 1, 23, 0, 0, 0, loc)
	// 2025-01-02 00:30 IST is the next local day although only 90 minutes later
	ref := time.Date(2025, time.January, 2, 0, 30, 0, 0, loc)
	if got := OverdueDays(due, ref, loc); got != 1 {
		t.Fatalf("expected 1 local day, got %d", got)
	}
	if got := OverdueDays(due, ref, time.UTC); got != 0 {
		t.Fatalf("expected 0 UTC days, got %d", got)
	}
}

func TestComputeFine_AcrossDSTChange(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// DST starts 2025-03-09; the day is 23 hours long
	due := time.Date(2025, time.March, 8, 12, 0, 0, 0, loc)
	ref := time.Date(2025, time.March, 9, 0, 30, 0, 0, loc)
	if got := OverdueDays(due, ref, loc); got != 1 {
		t.Fatalf("expected 1 day across DST, got %d", got)
	}
}

func TestAshaScenario_FineTimeline(t *testing.T) {
	issued := day(2025, time.March, 1, 10)
	due := DueDateFor(issued, time.UTC)

	atSweep := issued.AddDate(0, 0, 20)
	if got := OverdueDays(due, atSweep, time.UTC); got != 5 {
		t.Fatalf("day 20: expected 5 overdue days, got %d", got)
	}
	if got := ComputeFine(due, atSweep, time.UTC); !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("day 20: expected fine 10, got %s", got)
	}

	atReturn := issued.AddDate(0, 0, 32)
	if got := OverdueDays(due, atReturn, time.UTC); got != 17 {
		t.Fatalf("day 32: expected 17 overdue days, got %d", got)
	}
	if got := ComputeFine(due, atReturn, time.UTC); !got.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("day 32: expected fine 20, got %s", got)
	}
}

func TestStartOfDay(t *testing.T) {
	loc := time.FixedZone("UTC+5:30", 5*3600+1800)
	got := StartOfDay(time.Date(2025, time.May, 3, 20, 0, 0, 0, time.UTC), loc)
	want := time.Date(2025, time.May, 4, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
