package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func view(id int, status LoanStatus) LoanView {
	return LoanView{LoanTransaction: LoanTransaction{ID: id, Status: status}}
}

func TestPartitionLoans(t *testing.T) {
	out := PartitionLoans([]LoanView{
		view(1, LoanStatusIssued),
		view(2, LoanStatusOverdue),
		view(3, LoanStatusReturned),
		view(4, LoanStatusOverdue),
	})
	if len(out.Borrowed) != 3 {
		t.Fatalf("expected 3 borrowed, got %d", len(out.Borrowed))
	}
	if len(out.Returned) != 1 || out.Returned[0].ID != 3 {
		t.Fatalf("unexpected returned: %+v", out.Returned)
	}
	if len(out.Pending) != 2 || out.Pending[0].ID != 2 || out.Pending[1].ID != 4 {
		t.Fatalf("unexpected pending: %+v", out.Pending)
	}
}

func TestPartitionLoans_EmptyIsNotNil(t *testing.T) {
	out := PartitionLoans(nil)
	if out.Borrowed == nil || out.Returned == nil || out.Pending == nil {
		t.Fatalf("expected empty slices so JSON renders [], got %+v", out)
	}
}

func TestProjectFine(t *testing.T) {
	due := day(2025, time.January, 1, 12)
	now := day(2025, time.January, 20, 9)

	open := LoanView{LoanTransaction: LoanTransaction{Status: LoanStatusOverdue, DueDate: due, FineAmount: decimal.NewFromInt(10)}}
	open.projectFine(now, time.UTC)
	if open.OverdueDays != 19 || !open.ProjectedFine.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("open loan: got %d days, fine %s", open.OverdueDays, open.ProjectedFine)
	}

	// accrued fine above the formula is never projected lower
	high := LoanView{LoanTransaction: LoanTransaction{Status: LoanStatusOverdue, DueDate: due, FineAmount: decimal.NewFromInt(50)}}
	high.projectFine(now, time.UTC)
	if !high.ProjectedFine.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected 50, got %s", high.ProjectedFine)
	}

	returnedAt := day(2025, time.January, 10, 9)
	closed := LoanView{LoanTransaction: LoanTransaction{Status: LoanStatusReturned, DueDate: due, ReturnDate: &returnedAt, FineAmount: decimal.NewFromInt(10)}}
	closed.projectFine(now, time.UTC)
	if closed.OverdueDays != 9 || !closed.ProjectedFine.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("closed loan: got %d days, fine %s", closed.OverdueDays, closed.ProjectedFine)
	}
}

func TestSweepResult_Add(t *testing.T) {
	var total SweepResult
	total.add(SweepResult{Scanned: 3, Transitioned: 2, Unchanged: 1})
	total.add(SweepResult{Scanned: 2, Recomputed: 1, Skipped: 1})
	want := SweepResult{Scanned: 5, Transitioned: 2, Recomputed: 1, Unchanged: 1, Skipped: 1}
	if total != want {
		t.Fatalf("expected %+v, got %+v", want, total)
	}
}
