package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Settings is the process configuration, read once at startup and passed down explicitly.
type Settings struct {
	Port        string
	Environment string
	LogLevel    string

	DBUser            string
	DBPassword        string
	DBHost            string
	DBPort            string
	DBName            string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration
	StoreTimeout      time.Duration
	SkipMigrations    bool
	LibraryTimezone   string
	libraryLocation   *time.Location

	RedisAddress  string
	RedisPassword string
	RedisDB       int

	SessionCookieName string
	SessionIdle       time.Duration

	AdminUsername     string
	AdminPasswordHash string

	DeskTokenSecret        string
	DeskTokenLifespan      time.Duration
	AllowAnonymousLoanDesk bool

	SweepInterval  time.Duration
	SweepOnStartup bool
	SweepBatchSize int

	CorsAllowedOrigins []string

	RateLimitEnabled     bool
	RateLimitMaxRequests int64
	RateLimitWindow      time.Duration

	EnableReportCache bool
	ReportCacheTTL    time.Duration

	LoanEventsEnabled     bool
	PubSubProjectID       string
	PubSubCredentialsJSON string
	LoanEventsTopic       string

	EnforceCatalogOnIssue bool
}

// LoadSettings reads .env (when present) and the process environment.
func LoadSettings() (*Settings, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	s := &Settings{
		Port:        stringFromEnv("PORT", "7000"),
		Environment: stringFromEnv("GO_ENV", "development"),
		LogLevel:    stringFromEnv("LOG_LEVEL", "info"),

		DBUser:            stringFromEnv("DB_USER", ""),
		DBPassword:        stringFromEnv("DB_PASSWORD", ""),
		DBHost:            stringFromEnv("DB_HOST", "127.0.0.1"),
		DBPort:            stringFromEnv("DB_PORT", "3306"),
		DBName:            stringFromEnv("DB_NAME", "lms"),
		DBMaxOpenConns:    intFromEnv("DB_MAX_OPEN_CONNS", 50),
		DBMaxIdleConns:    intFromEnv("DB_MAX_IDLE_CONNS", 25),
		DBConnMaxLifetime: time.Duration(intFromEnv("DB_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second,
		DBConnMaxIdleTime: time.Duration(intFromEnv("DB_CONN_MAX_IDLE_TIME_SECONDS", 60)) * time.Second,
		StoreTimeout:      time.Duration(intFromEnv("STORE_TIMEOUT_SECONDS", 10)) * time.Second,
		SkipMigrations:    boolFromEnv("SKIP_MIGRATIONS", false),
		LibraryTimezone:   stringFromEnv("LIBRARY_TIMEZONE", "UTC"),

		RedisAddress:  stringFromEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: stringFromEnv("REDIS_PASSWORD", ""),
		RedisDB:       intFromEnv("REDIS_DB", 0),

		SessionCookieName: stringFromEnv("SESSION_COOKIE_NAME", "lms.sid"),
		SessionIdle:       time.Duration(intFromEnv("SESSION_IDLE_MINUTES", 120)) * time.Minute,

		AdminUsername:     stringFromEnv("ADMIN_USERNAME", ""),
		AdminPasswordHash: stringFromEnv("ADMIN_PASSWORD_HASH", ""),

		DeskTokenSecret:        stringFromEnv("DESK_TOKEN_SECRET", ""),
		DeskTokenLifespan:      time.Duration(intFromEnv("DESK_TOKEN_HOURS", 24*30)) * time.Hour,
		AllowAnonymousLoanDesk: boolFromEnv("ALLOW_ANONYMOUS_LOAN_DESK", false),

		SweepInterval:  time.Duration(intFromEnv("SWEEP_INTERVAL_MINUTES", 24*60)) * time.Minute,
		SweepOnStartup: boolFromEnv("SWEEP_ON_STARTUP", true),
		SweepBatchSize: intFromEnv("SWEEP_BATCH_SIZE", 200),

		CorsAllowedOrigins: SplitAndTrim(stringFromEnv("CORS_ALLOWED_ORIGINS", "")),

		RateLimitEnabled:     boolFromEnv("RATE_LIMIT_ENABLED", false),
		RateLimitMaxRequests: int64(intFromEnv("RATE_LIMIT_MAX_REQUESTS", 20)),
		RateLimitWindow:      time.Duration(intFromEnv("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,

		EnableReportCache: boolFromEnv("ENABLE_REPORT_CACHE", false),
		ReportCacheTTL:    time.Duration(intFromEnv("REPORT_CACHE_TTL_SECONDS", 60)) * time.Second,

		LoanEventsEnabled:     boolFromEnv("LOAN_EVENTS_ENABLED", false),
		PubSubProjectID:       firstNonEmpty(stringFromEnv("PUBSUB_PROJECT_ID", ""), stringFromEnv("GOOGLE_CLOUD_PROJECT", "")),
		PubSubCredentialsJSON: stringFromEnv("PUBSUB_CREDENTIALS_JSON", ""),
		LoanEventsTopic:       stringFromEnv("LOAN_EVENTS_TOPIC", "lms-loan-events"),

		EnforceCatalogOnIssue: boolFromEnv("ENFORCE_CATALOG_ON_ISSUE", false),
	}

	loc, err := time.LoadLocation(s.LibraryTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid LIBRARY_TIMEZONE %q: %w", s.LibraryTimezone, err)
	}
	s.libraryLocation = loc

	if s.SweepInterval <= 0 {
		return nil, fmt.Errorf("SWEEP_INTERVAL_MINUTES must be positive")
	}
	if s.SweepBatchSize <= 0 {
		s.SweepBatchSize = 200
	}
	if s.StoreTimeout <= 0 {
		s.StoreTimeout = 10 * time.Second
	}
	return s, nil
}

// Location is the library time zone; calendar days for due dates and fines are counted in it.
func (s *Settings) Location() *time.Location {
	if s.libraryLocation == nil {
		return time.UTC
	}
	return s.libraryLocation
}

func (s *Settings) IsProduction() bool {
	return strings.EqualFold(s.Environment, "production")
}

// MySQLDSN builds the go-sql-driver DSN. DATETIME values are read and written in the library
// time zone so that SQL date functions agree with the fine calculator.
func (s *Settings) MySQLDSN() string {
	network := "tcp"
	address := fmt.Sprintf("%s:%s", s.DBHost, s.DBPort)
	// Cloud SQL unix socket, e.g. DB_HOST=/cloudsql/project:region:instance
	if strings.HasPrefix(s.DBHost, "/cloudsql/") {
		network = "unix"
		address = s.DBHost
	}
	// every pooled connection runs READ COMMITTED; the ledger relies on row locks, not gap locks
	return fmt.Sprintf("%s:%s@%s(%s)/%s?parseTime=true&charset=utf8mb4&loc=%s&transaction_isolation=%%27READ-COMMITTED%%27",
		s.DBUser,
		s.DBPassword,
		network,
		address,
		s.DBName,
		url.QueryEscape(s.Location().String()),
	)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
