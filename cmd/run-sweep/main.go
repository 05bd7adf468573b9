// run-sweep runs one overdue reconciliation pass against the configured database and exits.
// It takes the same distributed lock as the server, so it is safe to run beside it.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/run-sweep
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mmdatafocus/lms_backend/config"
	"github.com/mmdatafocus/lms_backend/models"
	"github.com/mmdatafocus/lms_backend/workflow"
)

func main() {
	migrate := flag.Bool("migrate", false, "Run AutoMigrate before sweeping")
	flag.Parse()

	settings, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading settings: %v\n", err)
		os.Exit(1)
	}
	logger := config.NewLogger(settings.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.ConnectDatabaseWithRetry(ctx, settings, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database: %v\n", err)
		os.Exit(1)
	}
	redisStore, err := config.ConnectRedisWithRetry(ctx, settings, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		os.Exit(1)
	}
	defer redisStore.Close()

	if *migrate {
		if err := models.MigrateTable(db); err != nil {
			fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
			os.Exit(1)
		}
	}

	ledger := models.NewLedger(db, logger, models.LedgerOptions{
		Location:       settings.Location(),
		Timeout:        settings.StoreTimeout,
		EmitEvents:     settings.LoanEventsEnabled,
		EnforceCatalog: settings.EnforceCatalogOnIssue,
		SweepBatchSize: settings.SweepBatchSize,
	})
	sweep := workflow.NewReconciliationSweep(ledger, redisStore, settings, logger)
	res, err := sweep.RunOnce(ctx, "cli")
	if errors.Is(err, workflow.ErrSweepInProgress) {
		fmt.Fprintln(os.Stderr, "another sweep holds the lock; nothing done")
		os.Exit(3)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "sweep failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("scanned=%d transitioned=%d recomputed=%d unchanged=%d skipped=%d\n",
		res.Scanned, res.Transitioned, res.Recomputed, res.Unchanged, res.Skipped)
}
