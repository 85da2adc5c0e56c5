package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig     `json:"server"`
	Redis     RedisConfig      `json:"redis"`
	Postgres  PostgresConfig   `json:"postgres"`
	Admission AdmissionConfig  `json:"admission"`
	Queue     QueueConfig      `json:"queue"`
	RateLimit []RateLimitClass `json:"rate_limit"`
	Admin     AdminConfig      `json:"admin"`
	Logging   LoggingConfig    `json:"logging"`
}

type ServerConfig struct {
	Port        string `json:"port"`
	Environment string `json:"environment"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

func (r RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type AdmissionConfig struct {
	StalenessToleranceSeconds int    `json:"staleness_tolerance_seconds"`
	ClockSkewToleranceSeconds int    `json:"clock_skew_tolerance_seconds"`
	SecretCacheTTLSeconds     int    `json:"secret_cache_ttl_seconds"`
	DefaultTenantID           string `json:"default_tenant_id"`
	MaxBodyBytes              int64  `json:"max_body_bytes"`
}

func (a AdmissionConfig) StalenessTolerance() time.Duration {
	return time.Duration(a.StalenessToleranceSeconds) * time.Second
}

func (a AdmissionConfig) ClockSkewTolerance() time.Duration {
	return time.Duration(a.ClockSkewToleranceSeconds) * time.Second
}

func (a AdmissionConfig) SecretCacheTTL() time.Duration {
	return time.Duration(a.SecretCacheTTLSeconds) * time.Second
}

type QueueConfig struct {
	Name string `json:"name"`
}

// RateLimitClass configures the ceiling for one endpoint class.
type RateLimitClass struct {
	Endpoint      string `json:"endpoint"`
	Limit         int    `json:"limit"`
	WindowSeconds int    `json:"window_seconds"`
	Algorithm     string `json:"algorithm"`
	FailOpen      bool   `json:"fail_open"`
}

func (r RateLimitClass) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

type AdminConfig struct {
	// TokenHash is the bcrypt hash of the admin token; the plain token
	// never appears in config.
	TokenHash string `json:"token_hash"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Load reads the JSON config file when it exists and then applies
// environment overrides, so deployments can run file-less.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if file, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyEnv(cfg)

	if len(cfg.RateLimit) == 0 {
		cfg.RateLimit = []RateLimitClass{
			{Endpoint: "ticket", Limit: 100, WindowSeconds: 60, Algorithm: "sliding_window", FailOpen: true},
		}
	}

	return cfg, nil
}

// FindClass returns the rate-limit class for an endpoint, falling back to
// the first configured class.
func (c *Config) FindClass(endpoint string) RateLimitClass {
	for _, class := range c.RateLimit {
		if class.Endpoint == endpoint {
			return class
		}
	}
	return c.RateLimit[0]
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			Environment: "development",
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: "6379",
		},
		Postgres: PostgresConfig{
			DSN: "host=localhost user=ingress password=ingress dbname=ingress port=5432 sslmode=disable",
		},
		Admission: AdmissionConfig{
			StalenessToleranceSeconds: 300,
			ClockSkewToleranceSeconds: 30,
			SecretCacheTTLSeconds:     60,
			MaxBodyBytes:              64 * 1024,
		},
		Queue: QueueConfig{
			Name: "enhancement_jobs",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "SERVER_PORT")
	setString(&cfg.Server.Environment, "ENVIRONMENT")
	setString(&cfg.Redis.Host, "REDIS_HOST")
	setString(&cfg.Redis.Port, "REDIS_PORT")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")
	setString(&cfg.Postgres.DSN, "POSTGRES_DSN")
	setInt(&cfg.Admission.StalenessToleranceSeconds, "STALENESS_TOLERANCE_SECONDS")
	setInt(&cfg.Admission.ClockSkewToleranceSeconds, "CLOCK_SKEW_TOLERANCE_SECONDS")
	setInt(&cfg.Admission.SecretCacheTTLSeconds, "SECRET_CACHE_TTL_SECONDS")
	setString(&cfg.Admission.DefaultTenantID, "DEFAULT_TENANT_ID")
	setInt64(&cfg.Admission.MaxBodyBytes, "MAX_BODY_BYTES")
	setString(&cfg.Queue.Name, "QUEUE_NAME")
	setString(&cfg.Admin.TokenHash, "ADMIN_TOKEN_HASH")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}
