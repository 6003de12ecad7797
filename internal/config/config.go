package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	App        AppConfig
	JWT        JWTConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	ClickHouse ClickHouseConfig
	Audit      AuditConfig
	RateLimit  RateLimitConfig
	CORS       CORSConfig
}

type AppConfig struct {
	Env            string
	Port           string
	StorageDriver  string
	MaxBodyBytes   int64
	ShutdownPeriod time.Duration
	ServiceURL     string
	// TrustProxy enables X-Forwarded-For and X-Real-IP for client addresses.
	TrustProxy bool
}

func (c AppConfig) IsProduction() bool {
	return c.Env == EnvProduction
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type DatabaseConfig struct {
	PrimaryDSN      string
	ReplicaDSNs     []string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	MaxConns int
}

type AuditConfig struct {
	StreamName    string
	ConsumerGroup string
	ConsumerName  string
	BatchSize     int
	PollInterval  time.Duration
	BlockTime     time.Duration
	ClaimIdle     time.Duration
	WorkerPort    string
}

type RateLimitConfig struct {
	Requests     int
	Window       time.Duration
	AuthRequests int
	AuthWindow   time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

const (
	defaultAccessSecret  = "talentlens-access-secret-change-me"
	defaultRefreshSecret = "talentlens-refresh-secret-change-me"
)

// UsesDefaultSecrets reports whether either signing secret fell back to its development default.
func (c *Config) UsesDefaultSecrets() bool {
	return c.JWT.AccessSecret == defaultAccessSecret || c.JWT.RefreshSecret == defaultRefreshSecret
}

func Load() (*Config, error) {
	// Load .env if it exists (local dev), ignore if not
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Env:            getEnv("APP_ENV", EnvDevelopment),
			Port:           getEnv("AUTH_SERVICE_PORT", "8080"),
			StorageDriver:  getEnv("STORAGE_DRIVER", StorageDriverPostgres),
			MaxBodyBytes:   getEnvAsBytes("MAX_FILE_SIZE", 10<<20),
			ShutdownPeriod: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			ServiceURL:     getEnv("AUTH_SERVICE_URL", "http://localhost:8080"),
			TrustProxy:     getEnvAsBool("TRUST_PROXY", false),
		},
		JWT: JWTConfig{
			AccessSecret:  getEnv("JWT_SECRET", defaultAccessSecret),
			RefreshSecret: getEnv("JWT_REFRESH_SECRET", defaultRefreshSecret),
			AccessTTL:     getEnvAsDuration("JWT_ACCESS_TTL", 15*time.Minute),
			RefreshTTL:    getEnvAsDuration("JWT_REFRESH_TTL", 7*24*time.Hour),
		},
		Database: DatabaseConfig{
			PrimaryDSN: getEnv("DB_PRIMARY_DSN", ""),
			ReplicaDSNs: nonEmpty(
				getEnv("DB_REPLICA1_DSN", ""),
				getEnv("DB_REPLICA2_DSN", ""),
				getEnv("DB_REPLICA3_DSN", ""),
			),
			MaxConns:        int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:        int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", time.Hour),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		ClickHouse: ClickHouseConfig{
			Addr:     getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
			Database: getEnv("CLICKHOUSE_DATABASE", "auth_audit"),
			Username: getEnv("CLICKHOUSE_USERNAME", "clickhouse"),
			Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			MaxConns: getEnvAsInt("CLICKHOUSE_MAX_CONNS", 10),
		},
		Audit: AuditConfig{
			StreamName:    getEnv("AUDIT_STREAM_NAME", "auth:events"),
			ConsumerGroup: getEnv("AUDIT_CONSUMER_GROUP", "audit-group"),
			ConsumerName:  getEnv("AUDIT_CONSUMER_NAME", "worker-1"),
			BatchSize:     getEnvAsInt("AUDIT_BATCH_SIZE", 100),
			PollInterval:  getEnvAsDuration("AUDIT_POLL_INTERVAL", time.Second),
			BlockTime:     getEnvAsDuration("AUDIT_BLOCK_TIME", 5*time.Second),
			ClaimIdle:     getEnvAsDuration("AUDIT_CLAIM_IDLE", time.Minute),
			WorkerPort:    getEnv("AUDIT_WORKER_PORT", "9091"),
		},
		RateLimit: RateLimitConfig{
			Requests:     getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
			Window:       getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
			AuthRequests: getEnvAsInt("AUTH_RATE_LIMIT_REQUESTS", 5),
			AuthWindow:   getEnvAsDuration("AUTH_RATE_LIMIT_WINDOW", 15*time.Minute),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	items := nonEmpty(strings.Split(value, ",")...)
	if len(items) == 0 {
		return defaultValue
	}
	return items
}

// getEnvAsBytes accepts a plain byte count or a size with a kb/mb/gb suffix.
func getEnvAsBytes(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if n, ok := parseByteSize(value); ok {
		return n
	}
	return defaultValue
}

func parseByteSize(s string) (int64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	multiplier := int64(1)
	for _, unit := range []struct {
		suffix string
		mult   int64
	}{
		{"gb", 1 << 30},
		{"mb", 1 << 20},
		{"kb", 1 << 10},
		{"b", 1},
	} {
		if strings.HasSuffix(s, unit.suffix) {
			multiplier = unit.mult
			s = strings.TrimSpace(strings.TrimSuffix(s, unit.suffix))
			break
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n * multiplier, true
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
