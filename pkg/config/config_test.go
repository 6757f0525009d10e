package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, StorePostgres, cfg.Appeals.Store)
	assert.False(t, cfg.Appeals.AllowUnassignedReviewerAccess)
	assert.Equal(t, 5, cfg.Appeals.CaseIDMaxAttempts)
	assert.Equal(t, 30, cfg.Appeals.DeadlineHorizonDays)
	assert.Equal(t, 15*time.Minute, cfg.Sweep.Interval)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, 5*time.Second, cfg.Database.ConnectTimeout)
	assert.False(t, cfg.Database.AutoMigrate)
	assert.Equal(t, 5*time.Second, cfg.Redis.DialTimeout)
	assert.False(t, cfg.Tracing.Active())
	assert.Equal(t, "appeals-api", cfg.Tracing.ServiceName)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRatio)
}

func TestLoadTracingOverrides(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")
	t.Setenv("OTEL_SAMPLE_RATIO", "2.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Tracing.Active())
	assert.Equal(t, "http://collector:4318", cfg.Tracing.Endpoint)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRatio)
}

func TestLoadAppealOverrides(t *testing.T) {
	t.Setenv("APPEALS_STORE", "MEMORY")
	t.Setenv("APPEALS_ALLOW_UNASSIGNED_REVIEWER", "true")
	t.Setenv("APPEALS_CASE_ID_MAX_ATTEMPTS", "0")
	t.Setenv("APPEALS_DEADLINE_HORIZON_DAYS", "14")
	t.Setenv("APPEALS_SWEEP_INTERVAL", "not-a-duration")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Appeals.Store)
	assert.True(t, cfg.Appeals.AllowUnassignedReviewerAccess)
	assert.Equal(t, 5, cfg.Appeals.CaseIDMaxAttempts)
	assert.Equal(t, 14, cfg.Appeals.DeadlineHorizonDays)
	assert.Equal(t, 15*time.Minute, cfg.Sweep.Interval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoadSQLiteStore(t *testing.T) {
	t.Setenv("APPEALS_STORE", "SQLite")
	t.Setenv("SQLITE_PATH", "/var/lib/appeals/appeals.db")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreSQLite, cfg.Appeals.Store)
	assert.Equal(t, "/var/lib/appeals/appeals.db", cfg.SQLite.Path)
}

func TestLoadUnknownStoreFallsBackToPostgres(t *testing.T) {
	t.Setenv("APPEALS_STORE", "mongodb")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorePostgres, cfg.Appeals.Store)
}
