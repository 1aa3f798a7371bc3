// Package config loads the brewcore server configuration from the
// environment, optionally seeded from a dotenv file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config represents the full application configuration surface.
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Blob    BlobConfig
	Lock    LockConfig
	Archive ArchiveConfig
	Log     LogConfig
	Metrics MetricsConfig
	Trace   TraceConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver      string
	SQLitePath  string
	PostgresDSN string
}

// BlobConfig selects where completed batches are archived.
type BlobConfig struct {
	Driver string
	FSRoot string
	S3     S3Config
}

// S3Config holds the S3 or MinIO archive settings.
type S3Config struct {
	Region          string
	Bucket          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	PathStyle       bool
}

// LockConfig selects the resource locker.
type LockConfig struct {
	Driver        string
	RedisAddress  string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
	RetryInterval time.Duration
}

// ArchiveConfig schedules the sweep re-archiving completed batches.
type ArchiveConfig struct {
	CronSchedule string
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string
}

// MetricsConfig selects how operation metrics are exported.
type MetricsConfig struct {
	Driver string
}

// TraceConfig controls the JSON span log and the audit trail. An empty
// Output disables span logging; "stdout" and "stderr" name the standard
// streams and anything else is a file path.
type TraceConfig struct {
	Output string
	Audit  bool
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// A missing .env is fine when the environment is set directly.
		_ = godotenv.Load()
	}

	lockTTL, err := getenvDuration("BREWCORE_LOCK_TTL", 30*time.Second)
	if err != nil {
		return nil, err
	}
	retry, err := getenvDuration("BREWCORE_LOCK_RETRY", 50*time.Millisecond)
	if err != nil {
		return nil, err
	}
	redisDB, err := getenvInt("BREWCORE_REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	pathStyle, err := getenvBool("BREWCORE_BLOB_S3_PATH_STYLE", false)
	if err != nil {
		return nil, err
	}
	audit, err := getenvBool("BREWCORE_AUDIT_LOG", true)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("BREWCORE_HTTP_PORT", "8080"),
		},
		Storage: StorageConfig{
			Driver:      getenvWithDefault("BREWCORE_STORAGE_DRIVER", "sqlite"),
			SQLitePath:  getenvWithDefault("BREWCORE_SQLITE_PATH", "brewcore.db"),
			PostgresDSN: os.Getenv("BREWCORE_POSTGRES_DSN"),
		},
		Blob: BlobConfig{
			Driver: getenvWithDefault("BREWCORE_BLOB_DRIVER", "fs"),
			FSRoot: getenvWithDefault("BREWCORE_BLOB_FS_ROOT", "archive"),
			S3: S3Config{
				Region:          os.Getenv("BREWCORE_BLOB_S3_REGION"),
				Bucket:          os.Getenv("BREWCORE_BLOB_S3_BUCKET"),
				Endpoint:        os.Getenv("BREWCORE_BLOB_S3_ENDPOINT"),
				AccessKeyID:     os.Getenv("BREWCORE_BLOB_S3_ACCESS_KEY_ID"),
				SecretAccessKey: os.Getenv("BREWCORE_BLOB_S3_SECRET_ACCESS_KEY"),
				SessionToken:    os.Getenv("BREWCORE_BLOB_S3_SESSION_TOKEN"),
				PathStyle:       pathStyle,
			},
		},
		Lock: LockConfig{
			Driver:        getenvWithDefault("BREWCORE_LOCK_DRIVER", "local"),
			RedisAddress:  os.Getenv("BREWCORE_REDIS_ADDRESS"),
			RedisPassword: os.Getenv("BREWCORE_REDIS_PASSWORD"),
			RedisDB:       redisDB,
			TTL:           lockTTL,
			RetryInterval: retry,
		},
		Archive: ArchiveConfig{
			CronSchedule: getenvWithDefault("BREWCORE_ARCHIVE_CRON", "0 3 * * *"),
		},
		Log: LogConfig{
			Level: getenvWithDefault("BREWCORE_LOG_LEVEL", "info"),
		},
		Metrics: MetricsConfig{
			Driver: getenvWithDefault("BREWCORE_METRICS_DRIVER", "prometheus"),
		},
		Trace: TraceConfig{
			Output: os.Getenv("BREWCORE_TRACE_OUTPUT"),
			Audit:  audit,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated and
// consistent with the selected drivers.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("BREWCORE_HTTP_PORT must be provided")
	}

	switch c.Storage.Driver {
	case "memory", "sqlite":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return errors.New("BREWCORE_POSTGRES_DSN must be provided for the postgres driver")
		}
	default:
		return fmt.Errorf("BREWCORE_STORAGE_DRIVER %q is not one of memory, sqlite, postgres", c.Storage.Driver)
	}

	switch c.Blob.Driver {
	case "memory":
	case "fs":
		if c.Blob.FSRoot == "" {
			return errors.New("BREWCORE_BLOB_FS_ROOT must not be empty")
		}
	case "s3":
		if c.Blob.S3.Bucket == "" {
			return errors.New("BREWCORE_BLOB_S3_BUCKET must be provided for the s3 driver")
		}
	default:
		return fmt.Errorf("BREWCORE_BLOB_DRIVER %q is not one of fs, s3, memory", c.Blob.Driver)
	}

	switch c.Lock.Driver {
	case "local":
	case "redis":
		if c.Lock.RedisAddress == "" {
			return errors.New("BREWCORE_REDIS_ADDRESS must be provided for the redis lock driver")
		}
	default:
		return fmt.Errorf("BREWCORE_LOCK_DRIVER %q is not one of local, redis", c.Lock.Driver)
	}
	if c.Lock.TTL <= 0 {
		return errors.New("BREWCORE_LOCK_TTL must be positive")
	}

	switch c.Metrics.Driver {
	case "prometheus", "expvar":
	default:
		return fmt.Errorf("BREWCORE_METRICS_DRIVER %q is not one of prometheus, expvar", c.Metrics.Driver)
	}

	if c.Archive.CronSchedule != "" {
		if _, err := cron.ParseStandard(c.Archive.CronSchedule); err != nil {
			return fmt.Errorf("BREWCORE_ARCHIVE_CRON: %w", err)
		}
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getenvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getenvBool(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
