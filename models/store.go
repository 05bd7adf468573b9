package models

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultStoreTimeout = 10 * time.Second

// store is the shared handle embedded by Catalog, Identity and Ledger.
type store struct {
	DB      *gorm.DB
	Logger  *logrus.Logger
	Timeout time.Duration
}

// withTimeout bounds a store call by the request-scoped deadline.
func (s *store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func (s *store) logger() *logrus.Logger {
	if s.Logger == nil {
		return logrus.StandardLogger()
	}
	return s.Logger
}
