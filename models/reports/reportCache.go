package reports

import (
	"context"
	"time"

	"github.com/mmdatafocus/lms_backend/config"
	"github.com/mmdatafocus/lms_backend/utils"
	"github.com/sirupsen/logrus"
)

const (
	analyticsCacheKey = "report:analytics:v1"
	reportSlowMs      = 500
)

// reportCache is a best-effort Redis read-through. Cache errors are logged and ignored.
type reportCache struct {
	store   *config.RedisStore
	enabled bool
	ttl     time.Duration
	logger  *logrus.Logger
}

func (c *reportCache) get(ctx context.Context, key string, dest any) bool {
	if c == nil || !c.enabled || c.store == nil {
		return false
	}
	found, err := c.store.GetObject(ctx, key, dest)
	if err != nil {
		config.LogError(c.logger, "reportCache.go", "get", "reading report cache", key, err)
		return false
	}
	return found
}

func (c *reportCache) set(ctx context.Context, key string, obj any) {
	if c == nil || !c.enabled || c.store == nil {
		return
	}
	if err := c.store.SetObject(ctx, key, obj, c.ttl); err != nil {
		config.LogError(c.logger, "reportCache.go", "set", "writing report cache", key, err)
	}
}

func (c *reportCache) invalidate(ctx context.Context) {
	if c == nil || c.store == nil {
		return
	}
	if err := c.store.RemoveByPrefix(ctx, "report:"); err != nil {
		config.LogError(c.logger, "reportCache.go", "invalidate", "clearing report cache", nil, err)
	}
}

func logSlowReport(ctx context.Context, logger *logrus.Logger, name string, started time.Time) {
	d := time.Since(started)
	if d.Milliseconds() < reportSlowMs || logger == nil {
		return
	}
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	logger.WithFields(logrus.Fields{
		"report":         name,
		"ms":             d.Milliseconds(),
		"correlation_id": cid,
	}).Warn("slow_report")
}
