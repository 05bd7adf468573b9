package reports

import (
	"context"
	"time"

	"github.com/mmdatafocus/lms_backend/config"
	"github.com/mmdatafocus/lms_backend/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type StatusCounts struct {
	Issued   int64 `json:"issued"`
	Overdue  int64 `json:"overdue"`
	Returned int64 `json:"returned"`
	Total    int64 `json:"total"`
}

type DepartmentCount struct {
	Department string `json:"department"`
	Total      int64  `json:"total"`
}

type MonthlyCount struct {
	Month string `json:"month"`
	Total int64  `json:"total"`
}

type Analytics struct {
	Status       StatusCounts      `json:"status"`
	ByDepartment []DepartmentCount `json:"byDepartment"`
	MonthlyTrend []MonthlyCount    `json:"monthlyTrend"`
}

// Aggregator is read-only over the loan ledger.
type Aggregator struct {
	DB      *gorm.DB
	Logger  *logrus.Logger
	Timeout time.Duration
	Loc     *time.Location
	Now     func() time.Time

	cache *reportCache
}

func NewAggregator(db *gorm.DB, logg *logrus.Logger, settings *config.Settings, redis *config.RedisStore) *Aggregator {
	return &Aggregator{
		DB:      db,
		Logger:  logg,
		Timeout: settings.StoreTimeout,
		Loc:     settings.Location(),
		Now:     time.Now,
		cache: &reportCache{
			store:   redis,
			enabled: settings.EnableReportCache,
			ttl:     settings.ReportCacheTTL,
			logger:  logg,
		},
	}
}

func (a *Aggregator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.Timeout)
}

// Analytics runs the three reports concurrently. The first failing sub-query fails the whole
// request and cancels the others.
func (a *Aggregator) Analytics(ctx context.Context) (*Analytics, error) {
	var cached Analytics
	if a.cache.get(ctx, analyticsCacheKey, &cached) {
		return &cached, nil
	}

	started := time.Now()
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	var out Analytics
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		status, err := a.StatusCounts(gctx)
		if err != nil {
			return err
		}
		out.Status = *status
		return nil
	})
	g.Go(func() error {
		rows, err := a.ByDepartment(gctx)
		if err != nil {
			return err
		}
		out.ByDepartment = rows
		return nil
	})
	g.Go(func() error {
		rows, err := a.MonthlyTrend(gctx)
		if err != nil {
			return err
		}
		out.MonthlyTrend = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		config.LogError(a.Logger, "analytics.go", "Analytics", "running analytics sub-queries", nil, err)
		return nil, err
	}

	logSlowReport(ctx, a.Logger, "analytics", started)
	a.cache.set(ctx, analyticsCacheKey, out)
	return &out, nil
}

// StatusCounts always reports all three states; Total is their sum, i.e. COUNT(*).
func (a *Aggregator) StatusCounts(ctx context.Context) (*StatusCounts, error) {
	type row struct {
		Status models.LoanStatus
		Total  int64
	}
	var rows []row
	err := a.DB.WithContext(ctx).Model(&models.LoanTransaction{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, &models.PersistenceError{Op: "status counts", Err: err}
	}

	var out StatusCounts
	for _, r := range rows {
		switch r.Status {
		case models.LoanStatusIssued:
			out.Issued = r.Total
		case models.LoanStatusOverdue:
			out.Overdue = r.Total
		case models.LoanStatusReturned:
			out.Returned = r.Total
		}
		out.Total += r.Total
	}
	return &out, nil
}

func (a *Aggregator) ByDepartment(ctx context.Context) ([]DepartmentCount, error) {
	rows := []DepartmentCount{}
	err := a.DB.WithContext(ctx).Model(&models.LoanTransaction{}).
		Select("book_department AS department, COUNT(*) AS total").
		Group("book_department").
		Order("book_department").
		Scan(&rows).Error
	if err != nil {
		return nil, &models.PersistenceError{Op: "department counts", Err: err}
	}
	return rows, nil
}

// MonthlyTrend groups by calendar month of issue_date. DATETIMEs are stored in library
// local time, so the month is the library's month.
func (a *Aggregator) MonthlyTrend(ctx context.Context) ([]MonthlyCount, error) {
	rows := []MonthlyCount{}
	err := a.DB.WithContext(ctx).Model(&models.LoanTransaction{}).
		Select("DATE_FORMAT(issue_date, '%Y-%m') AS month, COUNT(*) AS total").
		Group("month").
		Order("month ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, &models.PersistenceError{Op: "monthly trend", Err: err}
	}
	return rows, nil
}

// InvalidateCache drops cached reports, e.g. after a sweep changed many rows.
func (a *Aggregator) InvalidateCache(ctx context.Context) {
	a.cache.invalidate(ctx)
}
