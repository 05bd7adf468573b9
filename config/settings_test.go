package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettings_Defaults(t *testing.T) {
	t.Setenv("LIBRARY_TIMEZONE", "")
	t.Setenv("SWEEP_INTERVAL_MINUTES", "")
	t.Setenv("SWEEP_BATCH_SIZE", "-1")

	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, s.Location())
	assert.Equal(t, 24*time.Hour, s.SweepInterval)
	assert.Equal(t, 200, s.SweepBatchSize)
	assert.Equal(t, "lms.sid", s.SessionCookieName)
	assert.Equal(t, 2*time.Hour, s.SessionIdle)
}

func TestLoadSettings_Overrides(t *testing.T) {
	t.Setenv("LIBRARY_TIMEZONE", "Asia/Kolkata")
	t.Setenv("GO_ENV", "Production")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("RATE_LIMIT_ENABLED", "YES")
	t.Setenv("SWEEP_INTERVAL_MINUTES", "360")

	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", s.Location().String())
	assert.True(t, s.IsProduction())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, s.CorsAllowedOrigins)
	assert.True(t, s.RateLimitEnabled)
	assert.Equal(t, 6*time.Hour, s.SweepInterval)
}

func TestLoadSettings_Rejects(t *testing.T) {
	t.Setenv("LIBRARY_TIMEZONE", "Mars/Olympus")
	_, err := LoadSettings()
	assert.Error(t, err)

	t.Setenv("LIBRARY_TIMEZONE", "UTC")
	t.Setenv("SWEEP_INTERVAL_MINUTES", "0")
	_, err = LoadSettings()
	assert.Error(t, err)
}

func TestMySQLDSN(t *testing.T) {
	t.Setenv("LIBRARY_TIMEZONE", "Asia/Kolkata")
	t.Setenv("DB_USER", "lms")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_HOST", "10.0.0.5")
	t.Setenv("DB_PORT", "3307")
	t.Setenv("DB_NAME", "library")
	s, err := LoadSettings()
	require.NoError(t, err)

	dsn := s.MySQLDSN()
	assert.True(t, strings.HasPrefix(dsn, "lms:pw@tcp(10.0.0.5:3307)/library?"), dsn)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "loc=Asia%2FKolkata")
	assert.Contains(t, dsn, "transaction_isolation=%27READ-COMMITTED%27")

	s.DBHost = "/cloudsql/proj:region:inst"
	assert.Contains(t, s.MySQLDSN(), "@unix(/cloudsql/proj:region:inst)/")
}

func TestBoolFromEnv(t *testing.T) {
	for _, tc := range []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"", false, false},
		{"on", false, true},
		{"Y", false, true},
		{"0", true, false},
		{"nope", true, false},
	} {
		t.Setenv("LMS_TEST_FLAG", tc.value)
		assert.Equal(t, tc.want, boolFromEnv("LMS_TEST_FLAG", tc.def), "value %q", tc.value)
	}
}
