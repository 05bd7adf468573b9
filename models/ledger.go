package models

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/lms_backend/config"
	"github.com/mmdatafocus/lms_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var tracer = otel.Tracer("github.com/mmdatafocus/lms_backend/models")

const defaultSweepBatchSize = 200

// Ledger owns the loan state machine. Every mutation runs in one DB transaction and
// uses a conditional UPDATE on status, so a concurrent return and sweep cannot overwrite
// each other.
type Ledger struct {
	store
	Loc            *time.Location
	Now            func() time.Time
	EmitEvents     bool
	EnforceCatalog bool
	SweepBatchSize int
}

type LedgerOptions struct {
	Location       *time.Location
	Timeout        time.Duration
	EmitEvents     bool
	EnforceCatalog bool
	SweepBatchSize int
	Now            func() time.Time
}

func NewLedger(db *gorm.DB, logg *logrus.Logger, opts LedgerOptions) *Ledger {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		store:          store{DB: db, Logger: logg, Timeout: opts.Timeout},
		Loc:            locOrUTC(opts.Location),
		Now:            now,
		EmitEvents:     opts.EmitEvents,
		EnforceCatalog: opts.EnforceCatalog,
		SweepBatchSize: opts.SweepBatchSize,
	}
}

// now is millisecond-truncated to match DATETIME(3); MySQL rounds rather than truncates.
func (l *Ledger) now() time.Time {
	return l.Now().Truncate(time.Millisecond)
}

// Issue upserts the borrower and opens a loan due LoanPeriodDays later, atomically.
// A non-empty idempotencyKey already seen returns the original loan with Replayed set.
func (l *Ledger) Issue(ctx context.Context, input *NewLoan, idempotencyKey string) (*IssueResult, error) {
	ctx, span := tracer.Start(ctx, "ledger.Issue")
	defer span.End()

	utils.TrimStrings(input)
	if err := validationFromStruct(input); err != nil {
		return nil, l.fail(span, "issue", err)
	}
	dept, err := ParseDepartment(input.BookDepartment)
	if err != nil {
		return nil, l.fail(span, "issue", err)
	}
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if len(idempotencyKey) > 255 {
		return nil, l.fail(span, "issue", NewValidationError("idempotency_key", "max"))
	}
	span.SetAttributes(attribute.String("loan.student_id", input.StudentId), attribute.String("loan.book_department", string(dept)))

	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	now := l.now()
	var result IssueResult
	err = l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if idempotencyKey != "" {
			loan, found, err := findIssueReplay(tx, idempotencyKey)
			if err != nil {
				return err
			}
			if found {
				result = IssueResult{Loan: *loan, Replayed: true}
				return nil
			}
		}

		borrower := Borrower{
			RegNo:      input.StudentId,
			Name:       input.StudentName,
			Department: input.StudentDept,
			Year:       input.StudentYear,
		}
		if err := UpsertBorrowerTx(tx, &borrower); err != nil {
			return err
		}

		if l.EnforceCatalog {
			if err := checkAvailability(tx, dept, input.BookId); err != nil {
				return err
			}
		}

		loan := LoanTransaction{
			StudentId:      input.StudentId,
			StudentName:    input.StudentName,
			BookId:         input.BookId,
			BookDepartment: dept,
			BookTitle:      input.BookTitle,
			BookAuthor:     input.BookAuthor,
			IssueDate:      now,
			DueDate:        DueDateFor(now, l.Loc),
			Status:         LoanStatusIssued,
			FineAmount:     decimal.Zero,
		}
		if err := tx.Create(&loan).Error; err != nil {
			return storeError("insert loan", err)
		}
		if l.EmitEvents {
			if err := enqueueLoanEvent(ctx, tx, LoanEventIssued, &loan, now); err != nil {
				return err
			}
		}
		if idempotencyKey != "" {
			if err := recordIssueKey(tx, idempotencyKey, loan.ID); err != nil {
				return err
			}
		}
		result = IssueResult{Loan: loan}
		return nil
	})
	if err != nil {
		if errors.Is(err, errIdempotencyRace) {
			// the concurrent request with the same key committed first
			loan, found, ferr := findIssueReplay(l.DB.WithContext(ctx), idempotencyKey)
			if ferr == nil && found {
				config.LoanOperationsTotal.WithLabelValues("issue", "replayed").Inc()
				return &IssueResult{Loan: *loan, Replayed: true}, nil
			}
		}
		return nil, l.fail(span, "issue", storeError("issue loan", err))
	}

	if result.Replayed {
		config.LoanOperationsTotal.WithLabelValues("issue", "replayed").Inc()
	} else {
		config.LoanOperationsTotal.WithLabelValues("issue", "ok").Inc()
	}
	span.SetAttributes(attribute.Int("loan.id", result.Loan.ID))
	return &result, nil
}

// Return closes an open loan and freezes its fine. The fine is the formula at the return
// instant, never less than what the sweep already accrued. A closed loan is left untouched
// and ErrLoanAlreadyReturned is returned.
func (l *Ledger) Return(ctx context.Context, id int) (*ReturnResult, error) {
	ctx, span := tracer.Start(ctx, "ledger.Return", trace.WithAttributes(attribute.Int("loan.id", id)))
	defer span.End()

	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	now := l.now()
	var result ReturnResult
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var loan LoanTransaction
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&loan).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "transaction", Key: strconv.Itoa(id)}
			}
			return storeError("lock loan", err)
		}
		if !loan.Status.CanTransitionTo(LoanStatusReturned) {
			return ErrLoanAlreadyReturned
		}

		fine := decimal.Max(ComputeFine(loan.DueDate, now, l.Loc), loan.FineAmount)
		res := tx.Model(&LoanTransaction{}).
			Where("id = ? AND status IN ?", id, OpenLoanStatuses).
			Updates(map[string]interface{}{
				"status":      LoanStatusReturned,
				"return_date": now,
				"fine_amount": fine,
			})
		if res.Error != nil {
			return storeError("return loan", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrLoanAlreadyReturned
		}

		loan.Status = LoanStatusReturned
		loan.ReturnDate = &now
		loan.FineAmount = fine
		if l.EmitEvents {
			if err := enqueueLoanEvent(ctx, tx, LoanEventReturned, &loan, now); err != nil {
				return err
			}
		}
		result = ReturnResult{Loan: loan, OverdueDays: OverdueDays(loan.DueDate, now, l.Loc), Fine: fine}
		return nil
	})
	if err != nil {
		return nil, l.fail(span, "return", storeError("return loan", err))
	}
	config.LoanOperationsTotal.WithLabelValues("return", "ok").Inc()
	span.SetAttributes(attribute.String("loan.fine", result.Fine.String()))
	return &result, nil
}

// SweepOverdue moves open loans past their due day to overdue and refreshes the fine to the
// formula at now. It recomputes, never adds, so repeated runs converge on the same state.
// Batches are keyset-paginated and each commits on its own.
func (l *Ledger) SweepOverdue(ctx context.Context) (SweepResult, error) {
	ctx, span := tracer.Start(ctx, "ledger.SweepOverdue")
	defer span.End()

	now := l.now()
	cutoff := StartOfDay(now, l.Loc)
	size := l.SweepBatchSize
	if size <= 0 {
		size = defaultSweepBatchSize
	}

	var total SweepResult
	lastID := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, l.fail(span, "sweep", err)
		}
		batch, tally, err := l.sweepBatch(ctx, lastID, size, cutoff, now)
		if err != nil {
			return total, l.fail(span, "sweep", err)
		}
		total.add(tally)
		if len(batch) < size {
			break
		}
		lastID = batch[len(batch)-1].ID
	}

	span.SetAttributes(
		attribute.Int("sweep.scanned", total.Scanned),
		attribute.Int("sweep.transitioned", total.Transitioned),
		attribute.Int("sweep.recomputed", total.Recomputed),
	)
	return total, nil
}

func (l *Ledger) sweepBatch(ctx context.Context, lastID, size int, cutoff, now time.Time) ([]LoanTransaction, SweepResult, error) {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	var (
		batch []LoanTransaction
		tally SweepResult
	)
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id > ? AND status IN ? AND return_date IS NULL AND due_date < ?", lastID, OpenLoanStatuses, cutoff).
			Order("id ASC").
			Limit(size).
			Find(&batch).Error
		if err != nil {
			return storeError("scan overdue candidates", err)
		}
		for i := range batch {
			tally.Scanned++
			if err := l.sweepRow(ctx, tx, &batch[i], now, &tally); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, SweepResult{}, err
	}
	return batch, tally, nil
}

func (l *Ledger) sweepRow(ctx context.Context, tx *gorm.DB, loan *LoanTransaction, now time.Time, tally *SweepResult) error {
	fine := decimal.Max(ComputeFine(loan.DueDate, now, l.Loc), loan.FineAmount)
	if loan.Status == LoanStatusOverdue && fine.Equal(loan.FineAmount) {
		tally.Unchanged++
		return nil
	}

	res := tx.Model(&LoanTransaction{}).
		Where("id = ? AND status IN ? AND return_date IS NULL AND fine_amount <= ?", loan.ID, OpenLoanStatuses, fine).
		Updates(map[string]interface{}{
			"status":      LoanStatusOverdue,
			"fine_amount": fine,
		})
	if res.Error != nil {
		return storeError("sweep loan", res.Error)
	}
	if res.RowsAffected == 0 {
		// returned, or refreshed by another runner, since the scan
		tally.Skipped++
		return nil
	}

	wasIssued := loan.Status == LoanStatusIssued
	loan.Status = LoanStatusOverdue
	loan.FineAmount = fine
	if !wasIssued {
		tally.Recomputed++
		return nil
	}
	tally.Transitioned++
	if l.EmitEvents {
		return enqueueLoanEvent(ctx, tx, LoanEventOverdue, loan, now)
	}
	return nil
}

func (l *Ledger) Get(ctx context.Context, id int) (*LoanView, error) {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	var rows []LoanView
	if err := l.viewQuery(l.DB.WithContext(ctx)).Where("t.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, storeError("get loan", err)
	}
	if len(rows) == 0 {
		return nil, &NotFoundError{Resource: "transaction", Key: strconv.Itoa(id)}
	}
	l.project(rows)
	return &rows[0], nil
}

// ListAll is the whole ledger with borrower details, newest issue first.
func (l *Ledger) ListAll(ctx context.Context) ([]LoanView, error) {
	return l.list(ctx, "list loans", func(db *gorm.DB) *gorm.DB {
		return db.Order("t.issue_date DESC").Order("t.id DESC")
	})
}

// ListOverdue is every loan in overdue state, earliest due first.
func (l *Ledger) ListOverdue(ctx context.Context) ([]LoanView, error) {
	return l.list(ctx, "list overdue", func(db *gorm.DB) *gorm.DB {
		return db.Where("t.status = ?", LoanStatusOverdue).Order("t.due_date ASC").Order("t.id ASC")
	})
}

func (l *Ledger) ListForBorrower(ctx context.Context, regNo string) ([]LoanView, error) {
	return l.list(ctx, "list borrower loans", func(db *gorm.DB) *gorm.DB {
		return db.Where("t.student_id = ?", regNo).Order("t.issue_date DESC").Order("t.id DESC")
	})
}

func (l *Ledger) PartitionForStudent(ctx context.Context, regNo string) (*StudentLoans, error) {
	rows, err := l.ListForBorrower(ctx, regNo)
	if err != nil {
		return nil, err
	}
	out := PartitionLoans(rows)
	return &out, nil
}

func (l *Ledger) list(ctx context.Context, op string, scope func(*gorm.DB) *gorm.DB) ([]LoanView, error) {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	rows := []LoanView{}
	if err := scope(l.viewQuery(l.DB.WithContext(ctx))).Scan(&rows).Error; err != nil {
		return nil, storeError(op, err)
	}
	l.project(rows)
	return rows, nil
}

func (l *Ledger) viewQuery(db *gorm.DB) *gorm.DB {
	return db.Table("loan_transactions AS t").
		Select(`t.id, t.student_id, COALESCE(b.name, t.student_name) AS student_name,
			t.book_id, t.book_department, t.book_title, t.book_author,
			t.issue_date, t.due_date, t.return_date, t.status, t.fine_amount,
			t.created_at, t.updated_at,
			COALESCE(b.department, '') AS student_dept, COALESCE(b.year, '') AS student_year`).
		Joins("LEFT JOIN borrowers b ON b.reg_no = t.student_id")
}

func (l *Ledger) project(rows []LoanView) {
	now := l.Now()
	for i := range rows {
		rows[i].projectFine(now, l.Loc)
	}
}

// fail records err on the span and logs anything that is not a caller mistake.
func (l *Ledger) fail(span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	var pe *PersistenceError
	if errors.As(err, &pe) || errors.Is(err, context.DeadlineExceeded) {
		config.LoanOperationsTotal.WithLabelValues(op, "error").Inc()
		config.LogError(l.logger(), "ledger.go", op, "ledger operation failed", nil, err)
	} else {
		config.LoanOperationsTotal.WithLabelValues(op, "rejected").Inc()
	}
	return err
}
