package reports

import (
	"io"
	"time"

	"github.com/mmdatafocus/lms_backend/models"
	"github.com/xuri/excelize/v2"
)

const transactionsSheet = "Transactions"

var transactionHeadings = []string{
	"ID", "Student ID", "Student Name", "Student Dept", "Student Year",
	"Book ID", "Book Title", "Book Author", "Book Department",
	"Issue Date", "Due Date", "Return Date", "Status", "Fine", "Projected Fine",
}

// WriteTransactionsXLSX streams the ledger rows as a single-sheet workbook. Dates are
// rendered in loc.
func WriteTransactionsXLSX(w io.Writer, rows []models.LoanView, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", transactionsSheet); err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(transactionsSheet)
	if err != nil {
		return err
	}

	header := make([]interface{}, len(transactionHeadings))
	for i, h := range transactionHeadings {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		returnDate := ""
		if r.ReturnDate != nil {
			returnDate = r.ReturnDate.In(loc).Format("2006-01-02 15:04")
		}
		fine, _ := r.FineAmount.Float64()
		projected, _ := r.ProjectedFine.Float64()
		row := []interface{}{
			r.ID, r.StudentId, r.StudentName, r.StudentDept, r.StudentYear,
			r.BookId, r.BookTitle, r.BookAuthor, string(r.BookDepartment),
			r.IssueDate.In(loc).Format("2006-01-02 15:04"),
			r.DueDate.In(loc).Format("2006-01-02"),
			returnDate,
			string(r.Status),
			fine,
			projected,
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	return f.Write(w)
}
