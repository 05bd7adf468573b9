package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanTransaction is one borrow-to-return record. Book and borrower fields are a snapshot
// taken at issue time.
type LoanTransaction struct {
	ID             int             `gorm:"primary_key" json:"id"`
	StudentId      string          `gorm:"size:50;not null;index" json:"student_id"`
	StudentName    string          `gorm:"size:255;not null" json:"student_name"`
	BookId         string          `gorm:"size:100;not null;index:idx_loan_book,priority:2" json:"book_id"`
	BookDepartment Department      `gorm:"size:20;not null;index:idx_loan_book,priority:1" json:"book_department"`
	BookTitle      string          `gorm:"size:255;not null" json:"book_title"`
	BookAuthor     string          `gorm:"size:255;not null" json:"book_author"`
	IssueDate      time.Time       `gorm:"not null;index" json:"issue_date"`
	DueDate        time.Time       `gorm:"not null;index:idx_loan_open_due,priority:2" json:"due_date"`
	ReturnDate     *time.Time      `json:"return_date"`
	Status         LoanStatus      `gorm:"size:20;not null;default:issued;index:idx_loan_open_due,priority:1" json:"status"`
	FineAmount     decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"fine_amount"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// NewLoan is the issue request. Every field is required.
type NewLoan struct {
	StudentId      string `json:"student_id" binding:"required" validate:"required,max=50"`
	StudentName    string `json:"student_name" binding:"required" validate:"required,max=255"`
	StudentDept    string `json:"student_dept" binding:"required" validate:"required,max=100"`
	StudentYear    string `json:"student_year" binding:"required" validate:"required,max=20"`
	BookId         string `json:"book_id" binding:"required" validate:"required,max=100"`
	BookDepartment string `json:"book_department" binding:"required" validate:"required"`
	BookTitle      string `json:"book_title" binding:"required" validate:"required,max=255"`
	BookAuthor     string `json:"book_author" binding:"required" validate:"required,max=255"`
}

// LoanView is a ledger row joined with its borrower, plus the fine as of the read.
type LoanView struct {
	LoanTransaction
	StudentDept   string          `json:"student_dept"`
	StudentYear   string          `json:"student_year"`
	OverdueDays   int             `gorm:"-" json:"overdue_days"`
	ProjectedFine decimal.Decimal `gorm:"-" json:"projected_fine"`
}

type IssueResult struct {
	Loan     LoanTransaction `json:"transaction"`
	Replayed bool            `json:"replayed"`
}

type ReturnResult struct {
	Loan        LoanTransaction `json:"transaction"`
	OverdueDays int             `json:"overdue_days"`
	Fine        decimal.Decimal `json:"fine"`
}

// StudentLoans splits a borrower's history the way the student portal shows it.
type StudentLoans struct {
	Borrowed []LoanView `json:"borrowed"`
	Returned []LoanView `json:"returned"`
	Pending  []LoanView `json:"pending"`
}

type SweepResult struct {
	Scanned      int `json:"scanned"`
	Transitioned int `json:"transitioned"`
	Recomputed   int `json:"recomputed"`
	Unchanged    int `json:"unchanged"`
	Skipped      int `json:"skipped"`
}

func (r *SweepResult) add(o SweepResult) {
	r.Scanned += o.Scanned
	r.Transitioned += o.Transitioned
	r.Recomputed += o.Recomputed
	r.Unchanged += o.Unchanged
	r.Skipped += o.Skipped
}

// projectFine fills the read-time fine. Open loans accrue up to now; closed loans are frozen.
func (v *LoanView) projectFine(now time.Time, loc *time.Location) {
	if v.Status.IsOpen() {
		v.OverdueDays = OverdueDays(v.DueDate, now, loc)
		v.ProjectedFine = decimal.Max(ComputeFine(v.DueDate, now, loc), v.FineAmount)
		return
	}
	if v.ReturnDate != nil {
		v.OverdueDays = OverdueDays(v.DueDate, *v.ReturnDate, loc)
	}
	v.ProjectedFine = v.FineAmount
}

// PartitionLoans groups rows into borrowed (open), returned, and pending (overdue).
func PartitionLoans(rows []LoanView) StudentLoans {
	out := StudentLoans{Borrowed: []LoanView{}, Returned: []LoanView{}, Pending: []LoanView{}}
	for _, r := range rows {
		switch r.Status {
		case LoanStatusIssued:
			out.Borrowed = append(out.Borrowed, r)
		case LoanStatusOverdue:
			out.Borrowed = append(out.Borrowed, r)
			out.Pending = append(out.Pending, r)
		case LoanStatusReturned:
			out.Returned = append(out.Returned, r)
		}
	}
	return out
}
