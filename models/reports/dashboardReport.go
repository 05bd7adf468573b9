package reports

import (
	"context"

	"github.com/mmdatafocus/lms_backend/models"
	"github.com/shopspring/decimal"
)

type AdminDashboard struct {
	BorrowedCount int64 `json:"borrowedCount"`
	OverdueCount  int64 `json:"overdueCount"`
}

type StudentDashboard struct {
	BorrowedCount int64           `json:"borrowedCount"`
	ReturnedCount int64           `json:"returnedCount"`
	PendingFine   decimal.Decimal `json:"pendingFine"`
}

// AdminDashboard counts loans currently out in issued state, and overdue loans including
// issued ones already past their due day that the sweep has not reached yet.
func (a *Aggregator) AdminDashboard(ctx context.Context) (*AdminDashboard, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	today := models.StartOfDay(a.Now(), a.Loc)
	var out AdminDashboard
	err := a.DB.WithContext(ctx).Model(&models.LoanTransaction{}).
		Select(`COALESCE(SUM(status = ?), 0) AS borrowed_count,
			COALESCE(SUM(status = ? OR (status = ? AND due_date < ?)), 0) AS overdue_count`,
			models.LoanStatusIssued, models.LoanStatusOverdue, models.LoanStatusIssued, today).
		Scan(&out).Error
	if err != nil {
		return nil, &models.PersistenceError{Op: "admin dashboard", Err: err}
	}
	return &out, nil
}

// StudentDashboard: borrowed is every open loan, pendingFine sums fines on overdue loans.
func (a *Aggregator) StudentDashboard(ctx context.Context, regNo string) (*StudentDashboard, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	var out StudentDashboard
	err := a.DB.WithContext(ctx).Model(&models.LoanTransaction{}).
		Select(`COALESCE(SUM(status IN ?), 0) AS borrowed_count,
			COALESCE(SUM(status = ?), 0) AS returned_count,
			COALESCE(SUM(CASE WHEN status = ? THEN fine_amount ELSE 0 END), 0) AS pending_fine`,
			models.OpenLoanStatuses, models.LoanStatusReturned, models.LoanStatusOverdue).
		Where("student_id = ?", regNo).
		Scan(&out).Error
	if err != nil {
		return nil, &models.PersistenceError{Op: "student dashboard", Err: err}
	}
	return &out, nil
}
