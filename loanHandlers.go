package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/lms_backend/models"
	"github.com/mmdatafocus/lms_backend/models/reports"
	"github.com/mmdatafocus/lms_backend/middlewares"
	"github.com/sirupsen/logrus"
)

const idempotencyKeyHeader = "Idempotency-Key"

type loanService interface {
	Issue(ctx context.Context, input *models.NewLoan, idempotencyKey string) (*models.IssueResult, error)
	Return(ctx context.Context, id int) (*models.ReturnResult, error)
	ListAll(ctx context.Context) ([]models.LoanView, error)
	ListOverdue(ctx context.Context) ([]models.LoanView, error)
	PartitionForStudent(ctx context.Context, regNo string) (*models.StudentLoans, error)
}

type catalogService interface {
	ListByDepartment(ctx context.Context, key string) ([]models.Book, error)
	AddBook(ctx context.Context, input *models.NewBook) (*models.Book, error)
	TotalVolumes(ctx context.Context) (int64, error)
}

type identityService interface {
	Signup(ctx context.Context, input *models.NewBorrower) (*models.Borrower, error)
	Get(ctx context.Context, regNo string) (*models.Borrower, error)
	Authenticate(ctx context.Context, regNo, name string) (*models.Borrower, error)
	UpdateProfile(ctx context.Context, regNo string, input *models.ProfileUpdate) (*models.Borrower, error)
}

type reportService interface {
	Analytics(ctx context.Context) (*reports.Analytics, error)
	AdminDashboard(ctx context.Context) (*reports.AdminDashboard, error)
	StudentDashboard(ctx context.Context, regNo string) (*reports.StudentDashboard, error)
	InvalidateCache(ctx context.Context)
}

type sweepRunner interface {
	RunOnce(ctx context.Context, trigger string) (models.SweepResult, error)
}

type adminCredentials struct {
	Username     string
	PasswordHash string
}

// api holds the HTTP boundary's collaborators; each handler is a thin adapter onto one of them.
type api struct {
	logger   *logrus.Logger
	loans    loanService
	catalog  catalogService
	identity identityService
	reports  reportService
	sweep    sweepRunner
	sessions *middlewares.SessionManager
	admin    adminCredentials
	loc      *time.Location
}

func (a *api) issueLoan(c *gin.Context) {
	var input models.NewLoan
	if err := bindJSON(c, &input); err != nil {
		writeError(c, a.logger, "issueLoan", err)
		return
	}
	key := strings.TrimSpace(c.GetHeader(idempotencyKeyHeader))
	res, err := a.loans.Issue(c.Request.Context(), &input, key)
	if err != nil {
		writeError(c, a.logger, "issueLoan", err)
		return
	}
	if !res.Replayed {
		a.reports.InvalidateCache(c.Request.Context())
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "Book issued and student stored successfully!",
		"transaction": res.Loan,
		"replayed":    res.Replayed,
	})
}

func (a *api) returnLoan(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		writeError(c, a.logger, "returnLoan", &models.NotFoundError{Resource: "transaction", Key: c.Param("id")})
		return
	}
	res, err := a.loans.Return(c.Request.Context(), id)
	if err != nil {
		writeError(c, a.logger, "returnLoan", err)
		return
	}
	a.reports.InvalidateCache(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      fmt.Sprintf("Book returned! Fine: Rs.%s", res.Fine.String()),
		"fine":         res.Fine,
		"overdue_days": res.OverdueDays,
		"transaction":  res.Loan,
	})
}
