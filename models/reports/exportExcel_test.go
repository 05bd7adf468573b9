package reports

import (
	"bytes"
	"testing"
	"time"

	"github.com/mmdatafocus/lms_backend/models"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func TestWriteTransactionsXLSX(t *testing.T) {
	issued := time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)
	returned := issued.AddDate(0, 0, 32)
	rows := []models.LoanView{
		{
			LoanTransaction: models.LoanTransaction{
				ID: 7, StudentId: "S100", StudentName: "Asha", BookId: "CSE-042",
				BookDepartment: models.DepartmentCSE, BookTitle: "Go", BookAuthor: "Donovan",
				IssueDate: issued, DueDate: issued.AddDate(0, 0, 15), ReturnDate: &returned,
				Status: models.LoanStatusReturned, FineAmount: decimal.NewFromInt(20),
			},
			StudentDept: "CSE", StudentYear: "2", OverdueDays: 17, ProjectedFine: decimal.NewFromInt(20),
		},
		{
			LoanTransaction: models.LoanTransaction{
				ID: 8, StudentId: "S101", StudentName: "Ravi", BookId: "M-1",
				BookDepartment: models.DepartmentMaths, BookTitle: "Calculus", BookAuthor: "Spivak",
				IssueDate: issued, DueDate: issued.AddDate(0, 0, 15), Status: models.LoanStatusIssued,
			},
		},
	}

	var buf bytes.Buffer
	if err := WriteTransactionsXLSX(&buf, rows, time.UTC); err != nil {
		t.Fatalf("WriteTransactionsXLSX: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	got, err := f.GetRows(transactionsSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(got))
	}
	if len(got[0]) != len(transactionHeadings) || got[0][0] != transactionHeadings[0] {
		t.Fatalf("unexpected header row: %v", got[0])
	}
	if got[1][0] != "7" || got[1][1] != "S100" {
		t.Fatalf("unexpected first data row: %v", got[1])
	}
}
