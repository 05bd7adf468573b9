package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mmdatafocus/lms_backend/config"
	"github.com/mmdatafocus/lms_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// integrationEnv is one MySQL + Redis pair shared by every integration test in the package.
type integrationEnv struct {
	DB       *gorm.DB
	Redis    *config.RedisStore
	Settings *config.Settings
	Logger   *logrus.Logger
}

var (
	envOnce    sync.Once
	sharedEnv  *integrationEnv
	envErr     error
	containers []string
)

func TestMain(m *testing.M) {
	code := m.Run()
	for _, name := range containers {
		_ = dockerRmForce(name)
	}
	os.Exit(code)
}

func requireIntegration(t *testing.T) *integrationEnv {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}
	envOnce.Do(func() { sharedEnv, envErr = startIntegrationEnv() })
	if envErr != nil {
		t.Fatalf("integration env: %v", envErr)
	}
	resetTables(t, sharedEnv.DB)
	return sharedEnv
}

func startIntegrationEnv() (*integrationEnv, error) {
	_, redisPort, err := startRedisContainer()
	if err != nil {
		return nil, err
	}
	_, mysqlPort, err := startMySQLContainer()
	if err != nil {
		return nil, err
	}

	// LoadSettings reads the process environment; the test binary exits right after.
	os.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	os.Setenv("DB_USER", "root")
	os.Setenv("DB_PASSWORD", "testpw")
	os.Setenv("DB_HOST", "127.0.0.1")
	os.Setenv("DB_PORT", mysqlPort)
	os.Setenv("DB_NAME", "lms_test")
	os.Setenv("ENABLE_REPORT_CACHE", "true")

	settings, err := config.LoadSettings()
	if err != nil {
		return nil, err
	}
	logger := config.NewLogger("warn")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	db, err := config.ConnectDatabaseWithRetry(ctx, settings, logger)
	if err != nil {
		return nil, err
	}
	redisStore, err := config.ConnectRedisWithRetry(ctx, settings, logger)
	if err != nil {
		return nil, err
	}
	if err := models.MigrateTable(db); err != nil {
		return nil, err
	}
	return &integrationEnv{DB: db, Redis: redisStore, Settings: settings, Logger: logger}, nil
}

func resetTables(t *testing.T, db *gorm.DB) {
	t.Helper()
	for _, table := range []string{"idempotency_keys", "loan_events", "loan_transactions", "borrowers", "books"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			t.Fatalf("reset %s: %v", table, err)
		}
	}
	if err := sharedEnv.Redis.RemoveByPrefix(context.Background(), "report:"); err != nil {
		t.Fatalf("reset report cache: %v", err)
	}
}

// clock is a settable time source for the ledger and the aggregator.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *clock { return &clock{now: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func startRedisContainer() (containerName, hostPort string, err error) {
	name := fmt.Sprintf("lms-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		return "", "", fmt.Errorf("start redis container: %w\n%s", err, out)
	}
	containers = append(containers, name)
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		return "", "", fmt.Errorf("redis docker port: %w", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := dockerRun("exec", name, "redis-cli", "ping"); err == nil {
			return name, port, nil
		}
		time.Sleep(250 * time.Millisecond)
	}
	return "", "", fmt.Errorf("redis did not become ready")
}

func startMySQLContainer() (containerName, hostPort string, err error) {
	name := fmt.Sprintf("lms-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=lms_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		return "", "", fmt.Errorf("start mysql container: %w\n%s", err, out)
	}
	containers = append(containers, name)
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		return "", "", fmt.Errorf("mysql docker port: %w", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent"); err == nil {
			return name, port, nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return "", "", fmt.Errorf("mysql did not become ready")
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
