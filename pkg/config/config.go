package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Appeal store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Appeals  AppealsConfig
	Sweep    SweepConfig
	Metrics  MetricsConfig
	Tracing  TracingConfig
}

// DatabaseConfig points at the PostgreSQL appeal store.
type DatabaseConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxOpenConns   int
	MaxIdleConns   int
	ConnectTimeout time.Duration
	// AutoMigrate applies the bundled appeals schema at startup.
	AutoMigrate bool
}

// SQLiteConfig points at the single-file appeal store.
type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host        string
	Port        int
	Password    string
	DB          int
	DialTimeout time.Duration
}

// JWTConfig verifies access tokens minted by the identity service.
type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AppealsConfig tunes the appeal engine.
type AppealsConfig struct {
	Store                         string
	AllowUnassignedReviewerAccess bool
	CaseIDMaxAttempts             int
	DeadlineHorizonDays           int
	CacheEnabled                  bool
	CacheTTL                      time.Duration
	ResolveUsers                  bool
}

// SweepConfig schedules the background deadline sweep.
type SweepConfig struct {
	Enabled  bool
	Interval time.Duration
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// TracingConfig exports spans over OTLP/HTTP.
type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	Headers     string
	ServiceName string
	SampleRatio float64
}

// Active reports whether spans should be exported.
func (c TracingConfig) Active() bool {
	return c.Enabled && c.Endpoint != ""
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:           v.GetString("DB_HOST"),
		Port:           v.GetInt("DB_PORT"),
		User:           v.GetString("DB_USER"),
		Password:       v.GetString("DB_PASSWORD"),
		Name:           v.GetString("DB_NAME"),
		SSLMode:        v.GetString("DB_SSL_MODE"),
		MaxOpenConns:   v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:   v.GetInt("DB_MAX_IDLE_CONNS"),
		ConnectTimeout: parseDuration(v.GetString("DB_CONNECT_TIMEOUT"), 5*time.Second),
		AutoMigrate:    v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.SQLite = SQLiteConfig{Path: v.GetString("SQLITE_PATH")}

	cfg.Redis = RedisConfig{
		Host:        v.GetString("REDIS_HOST"),
		Port:        v.GetInt("REDIS_PORT"),
		Password:    v.GetString("REDIS_PASSWORD"),
		DB:          v.GetInt("REDIS_DB"),
		DialTimeout: parseDuration(v.GetString("REDIS_DIAL_TIMEOUT"), 5*time.Second),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Appeals = AppealsConfig{
		Store:                         strings.ToLower(v.GetString("APPEALS_STORE")),
		AllowUnassignedReviewerAccess: v.GetBool("APPEALS_ALLOW_UNASSIGNED_REVIEWER"),
		CaseIDMaxAttempts:             positiveOr(v.GetInt("APPEALS_CASE_ID_MAX_ATTEMPTS"), 5),
		DeadlineHorizonDays:           positiveOr(v.GetInt("APPEALS_DEADLINE_HORIZON_DAYS"), 30),
		CacheEnabled:                  v.GetBool("APPEALS_CACHE_ENABLED"),
		CacheTTL:                      parseDuration(v.GetString("APPEALS_CACHE_TTL"), 2*time.Minute),
		ResolveUsers:                  v.GetBool("APPEALS_RESOLVE_USERS"),
	}
	switch cfg.Appeals.Store {
	case StoreMemory, StoreSQLite:
	default:
		cfg.Appeals.Store = StorePostgres
	}

	cfg.Sweep = SweepConfig{
		Enabled:  v.GetBool("APPEALS_SWEEP_ENABLED"),
		Interval: parseDuration(v.GetString("APPEALS_SWEEP_INTERVAL"), 15*time.Minute),
	}

	cfg.Metrics = MetricsConfig{
		Enabled: v.GetBool("ENABLE_METRICS"),
		Path:    v.GetString("METRICS_PATH"),
	}

	cfg.Tracing = TracingConfig{
		Enabled:     v.GetBool("OTEL_ENABLED"),
		Endpoint:    v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Headers:     v.GetString("OTEL_EXPORTER_OTLP_HEADERS"),
		ServiceName: v.GetString("OTEL_SERVICE_NAME"),
		SampleRatio: v.GetFloat64("OTEL_SAMPLE_RATIO"),
	}
	if cfg.Tracing.SampleRatio <= 0 || cfg.Tracing.SampleRatio > 1 {
		cfg.Tracing.SampleRatio = 1
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "student_appeals")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", false)

	v.SetDefault("SQLITE_PATH", "data/appeals.db")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("APPEALS_STORE", StorePostgres)
	v.SetDefault("APPEALS_ALLOW_UNASSIGNED_REVIEWER", false)
	v.SetDefault("APPEALS_CASE_ID_MAX_ATTEMPTS", 5)
	v.SetDefault("APPEALS_DEADLINE_HORIZON_DAYS", 30)
	v.SetDefault("APPEALS_CACHE_ENABLED", false)
	v.SetDefault("APPEALS_CACHE_TTL", "2m")
	v.SetDefault("APPEALS_RESOLVE_USERS", true)

	v.SetDefault("APPEALS_SWEEP_ENABLED", true)
	v.SetDefault("APPEALS_SWEEP_INTERVAL", "15m")

	v.SetDefault("ENABLE_METRICS", true)
	v.SetDefault("METRICS_PATH", "/metrics")

	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_HEADERS", "")
	v.SetDefault("OTEL_SERVICE_NAME", "appeals-api")
	v.SetDefault("OTEL_SAMPLE_RATIO", 1.0)
}

// isMissingFile tolerates an absent .env; viper reports a plain fs error when the config
// file is set explicitly.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
