package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/lms_backend/config"
	"github.com/mmdatafocus/lms_backend/models"
	"github.com/mmdatafocus/lms_backend/utils"
	"github.com/sirupsen/logrus"
)

const sweepLockKey = "lock:loan-sweep"

// ErrSweepInProgress means another runner holds the sweep lock.
var ErrSweepInProgress = errors.New("reconciliation sweep already running")

type Sweeper interface {
	SweepOverdue(ctx context.Context) (models.SweepResult, error)
}

type RunLock interface {
	Release(ctx context.Context) error
}

// Locker hands out a non-blocking cross-instance lock. ok=false means it is held elsewhere.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (lock RunLock, ok bool, err error)
}

type redisLocker struct {
	store *config.RedisStore
}

func (r redisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (RunLock, bool, error) {
	lock, ok, err := r.store.Obtain(ctx, key, ttl)
	if err != nil || !ok {
		return nil, ok, err
	}
	return lock, true, nil
}

// ReconciliationSweep runs the ledger's overdue sweep on a wall-clock schedule: local midnight
// plus multiples of Interval. A failed run is logged and retried at the next slot.
type ReconciliationSweep struct {
	Ledger       Sweeper
	Locker       Locker
	Logger       *logrus.Logger
	Interval     time.Duration
	Loc          *time.Location
	RunTimeout   time.Duration
	LockTTL      time.Duration
	RunOnStartup bool
	// AfterRun is called after every successful run, e.g. to drop cached reports.
	AfterRun func(ctx context.Context, res models.SweepResult)
	Now      func() time.Time
}

func NewReconciliationSweep(ledger Sweeper, redis *config.RedisStore, settings *config.Settings, logger *logrus.Logger) *ReconciliationSweep {
	s := &ReconciliationSweep{
		Ledger:       ledger,
		Logger:       logger,
		Interval:     settings.SweepInterval,
		Loc:          settings.Location(),
		RunTimeout:   settings.StoreTimeout * 30,
		LockTTL:      settings.StoreTimeout * 31,
		RunOnStartup: settings.SweepOnStartup,
		Now:          time.Now,
	}
	if redis != nil {
		s.Locker = redisLocker{store: redis}
	}
	return s
}

// NextRunAt is the first slot strictly after now. Slots start at local midnight and repeat
// every interval; whole-day intervals follow the calendar across DST changes.
func NextRunAt(now time.Time, interval time.Duration, loc *time.Location) time.Time {
	midnight := models.StartOfDay(now, loc)
	const day = 24 * time.Hour
	if interval >= day && interval%day == 0 {
		return midnight.AddDate(0, 0, int(interval/day))
	}
	k := now.Sub(midnight)/interval + 1
	return midnight.Add(k * interval)
}

func (s *ReconciliationSweep) Run(ctx context.Context) {
	if s.RunOnStartup {
		s.runLogged(ctx, "startup")
	}
	for {
		next := NextRunAt(s.Now(), s.Interval, s.Loc)
		timer := time.NewTimer(next.Sub(s.Now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.runLogged(ctx, "scheduled")
	}
}

func (s *ReconciliationSweep) runLogged(ctx context.Context, trigger string) {
	_, err := s.RunOnce(ctx, trigger)
	if err != nil && !errors.Is(err, ErrSweepInProgress) && ctx.Err() == nil {
		config.LogError(s.Logger, "reconciliationSweep.go", "Run", "sweep run failed; next slot retries", trigger, err)
	}
}

// RunOnce performs one guarded sweep. If Redis cannot be reached the run proceeds without the
// lock; the ledger's conditional updates keep concurrent runs safe.
func (s *ReconciliationSweep) RunOnce(ctx context.Context, trigger string) (res models.SweepResult, err error) {
	runID := uuid.NewString()
	ctx = utils.SetCorrelationIdInContext(ctx, "sweep-"+runID)
	logg := s.Logger.WithFields(logrus.Fields{
		"field":   "ReconciliationSweep",
		"run_id":  runID,
		"trigger": trigger,
	})

	runTimeout := s.RunTimeout
	if s.Locker != nil {
		lock, ok, lerr := s.Locker.TryLock(ctx, sweepLockKey, s.lockTTL())
		switch {
		case lerr != nil:
			logg.Warn("sweep lock unavailable; running unlocked: " + lerr.Error())
		case !ok:
			config.SweepRunsTotal.WithLabelValues("skipped_locked").Inc()
			logg.Info("sweep skipped; another instance holds the lock")
			return res, ErrSweepInProgress
		default:
			// the run must end before the lock can expire under it
			if ttl := s.lockTTL(); runTimeout <= 0 || runTimeout > ttl {
				runTimeout = ttl
			}
			defer func() {
				if rerr := lock.Release(context.WithoutCancel(ctx)); rerr != nil {
					logg.Warn("failed to release sweep lock: " + rerr.Error())
				}
			}()
		}
	}

	runCtx := ctx
	if runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}

	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sweep panicked: %v", r)
		}
		config.SweepDuration.Observe(time.Since(started).Seconds())
		config.SweepRowsTotal.WithLabelValues("transitioned").Add(float64(res.Transitioned))
		config.SweepRowsTotal.WithLabelValues("recomputed").Add(float64(res.Recomputed))
		config.SweepRowsTotal.WithLabelValues("unchanged").Add(float64(res.Unchanged))
		config.SweepRowsTotal.WithLabelValues("skipped").Add(float64(res.Skipped))
		if err != nil {
			config.SweepRunsTotal.WithLabelValues("failed").Inc()
			return
		}
		config.SweepRunsTotal.WithLabelValues("success").Inc()
		config.SweepLastSuccess.SetToCurrentTime()
	}()

	res, err = s.Ledger.SweepOverdue(runCtx)
	if err != nil {
		return res, err
	}
	logg.WithFields(logrus.Fields{
		"scanned":      res.Scanned,
		"transitioned": res.Transitioned,
		"recomputed":   res.Recomputed,
		"unchanged":    res.Unchanged,
		"skipped":      res.Skipped,
		"ms":           time.Since(started).Milliseconds(),
	}).Info("sweep finished")
	if s.AfterRun != nil {
		s.AfterRun(ctx, res)
	}
	return res, nil
}

func (s *ReconciliationSweep) lockTTL() time.Duration {
	if s.LockTTL > 0 {
		return s.LockTTL
	}
	return time.Minute
}
