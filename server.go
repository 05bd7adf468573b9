package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/lms_backend/config"
	"github.com/mmdatafocus/lms_backend/middlewares"
	"github.com/mmdatafocus/lms_backend/models"
	"github.com/mmdatafocus/lms_backend/models/reports"
	"github.com/mmdatafocus/lms_backend/utils"
	"github.com/mmdatafocus/lms_backend/workflow"
	"github.com/sirupsen/logrus"
)

// readinessGate answers /healthz immediately and 503 for everything else until the
// application router is installed.
type readinessGate struct {
	app atomic.Pointer[gin.Engine]
}

func (g *readinessGate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/healthz" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	app := g.app.Load()
	if app == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	app.ServeHTTP(w, r)
}

func main() {
	settings, err := config.LoadSettings()
	if err != nil {
		log.Fatalf("loading settings: %v", err)
	}
	logger := config.NewLogger(settings.LogLevel)
	if settings.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Listen before dependencies are up so the platform sees a healthy port.
	gate := &readinessGate{}
	srv := &http.Server{
		Addr:              ":" + settings.Port,
		Handler:           gate,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	db, err := config.ConnectDatabaseWithRetry(sigCtx, settings, logger)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "database"}).Error("giving up on database: " + err.Error())
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	redisStore, err := config.ConnectRedisWithRetry(sigCtx, settings, logger)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "redis"}).Error("giving up on redis: " + err.Error())
		return
	}
	defer redisStore.Close()

	// AutoMigrate can block tables; production may run it as a separate job instead.
	if !settings.SkipMigrations {
		if err := models.MigrateTable(db); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Error("migration failed: " + err.Error())
			return
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	loc := settings.Location()
	ledger := models.NewLedger(db, logger, models.LedgerOptions{
		Location:       loc,
		Timeout:        settings.StoreTimeout,
		EmitEvents:     settings.LoanEventsEnabled,
		EnforceCatalog: settings.EnforceCatalogOnIssue,
		SweepBatchSize: settings.SweepBatchSize,
	})
	aggregator := reports.NewAggregator(db, logger, settings, redisStore)
	sweep := workflow.NewReconciliationSweep(ledger, redisStore, settings, logger)
	sweep.AfterRun = func(ctx context.Context, _ models.SweepResult) { aggregator.InvalidateCache(ctx) }

	var limiter *middlewares.RateLimiter
	if settings.RateLimitEnabled {
		limiter = middlewares.NewRateLimiter(redisStore.Client, settings.RateLimitMaxRequests, settings.RateLimitWindow, logger)
	}
	var deskTokens *utils.DeskTokens
	if settings.DeskTokenSecret != "" {
		deskTokens = utils.NewDeskTokens(settings.DeskTokenSecret, settings.DeskTokenLifespan)
	}
	if settings.AllowAnonymousLoanDesk {
		logger.WithFields(logrus.Fields{"field": "auth"}).Warn("ALLOW_ANONYMOUS_LOAN_DESK=true; issue and return are open to anyone")
	}

	a := &api{
		logger:   logger,
		loans:    ledger,
		catalog:  models.NewCatalog(db, logger, settings.StoreTimeout),
		identity: models.NewIdentity(db, logger, settings.StoreTimeout),
		reports:  aggregator,
		sweep:    sweep,
		sessions: &middlewares.SessionManager{
			Store:      &middlewares.RedisSessionStore{Redis: redisStore, Idle: settings.SessionIdle},
			CookieName: settings.SessionCookieName,
			Idle:       settings.SessionIdle,
			Secure:     settings.IsProduction(),
			Logger:     logger,
		},
		admin: adminCredentials{Username: settings.AdminUsername, PasswordHash: settings.AdminPasswordHash},
		loc:   loc,
	}

	// Background workers stop before the HTTP drain so they start no new work.
	workersCtx, stopWorkers := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		sweep.Run(workersCtx)
	}()
	var publisher *config.PubSubPublisher
	if settings.LoanEventsEnabled {
		publisher = config.NewPubSubPublisher(settings, logger)
		workers.Add(1)
		go func() {
			defer workers.Done()
			workflow.NewOutboxDispatcher(db, publisher, logger).Run(workersCtx)
		}()
	}

	gate.app.Store(newRouter(a, routerOptions{
		Production:     settings.IsProduction(),
		AllowedOrigins: settings.CorsAllowedOrigins,
		DeskTokens:     deskTokens,
		AllowAnonDesk:  settings.AllowAnonymousLoanDesk,
		LoginLimiter:   limiter,
	}))
	logger.WithFields(logrus.Fields{"port": settings.Port}).Info("server ready")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	stopWorkers()
	workers.Wait()
	if publisher != nil {
		_ = publisher.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
}
