package config

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// ConnectDatabaseWithRetry opens the MySQL pool, retrying with capped backoff until ctx is done.
// Call this from main() AFTER the HTTP server is listening.
func ConnectDatabaseWithRetry(ctx context.Context, settings *Settings, logg *logrus.Logger) (*gorm.DB, error) {
	var attempt int
	for {
		attempt++
		db, err := gorm.Open(mysql.Open(settings.MySQLDSN()), initConfig())
		if err == nil {
			if sqlDB, derr := db.DB(); derr == nil && sqlDB != nil {
				if settings.DBMaxOpenConns > 0 {
					sqlDB.SetMaxOpenConns(settings.DBMaxOpenConns)
				}
				if settings.DBMaxIdleConns >= 0 {
					sqlDB.SetMaxIdleConns(settings.DBMaxIdleConns)
				}
				if settings.DBConnMaxLifetime > 0 {
					sqlDB.SetConnMaxLifetime(settings.DBConnMaxLifetime)
				}
				if settings.DBConnMaxIdleTime > 0 {
					sqlDB.SetConnMaxIdleTime(settings.DBConnMaxIdleTime)
				}
			}

			if pluginErr := db.Use(otelgorm.NewPlugin()); pluginErr != nil {
				logg.WithFields(logrus.Fields{"field": "database"}).Warn("failed to install otelgorm plugin: " + pluginErr.Error())
			}
			if pluginErr := db.Use(NewLoanTerminalGuardPlugin()); pluginErr != nil {
				return nil, pluginErr
			}
			logg.WithFields(logrus.Fields{"field": "database", "attempt": attempt}).Info("connected to database")
			return db, nil
		}

		sleep := retryBackoff(attempt)
		logg.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to connect database; retrying in " + sleep.String() + ": " + err.Error())

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// retryBackoff is 1s * 2^attempt capped at 30s.
func retryBackoff(attempt int) time.Duration {
	sleep := time.Second * time.Duration(1<<min(attempt, 5))
	if sleep > 30*time.Second {
		sleep = 30 * time.Second
	}
	return sleep
}

func initConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         initLog(),
		NamingStrategy: initNamingStrategy(),
	}
}

// initLog Connection Log Configuration
func initLog() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			Colorful:      false,
			LogLevel:      logger.Error,
			SlowThreshold: time.Second,
		},
	)
}

func initNamingStrategy() *schema.NamingStrategy {
	return &schema.NamingStrategy{
		SingularTable: false,
		TablePrefix:   "",
	}
}
