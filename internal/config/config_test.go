package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"BREWCORE_HTTP_PORT",
	"BREWCORE_STORAGE_DRIVER", "BREWCORE_SQLITE_PATH", "BREWCORE_POSTGRES_DSN",
	"BREWCORE_BLOB_DRIVER", "BREWCORE_BLOB_FS_ROOT", "BREWCORE_BLOB_S3_REGION", "BREWCORE_BLOB_S3_BUCKET",
	"BREWCORE_BLOB_S3_ENDPOINT", "BREWCORE_BLOB_S3_ACCESS_KEY_ID", "BREWCORE_BLOB_S3_SECRET_ACCESS_KEY",
	"BREWCORE_BLOB_S3_SESSION_TOKEN", "BREWCORE_BLOB_S3_PATH_STYLE",
	"BREWCORE_LOCK_DRIVER", "BREWCORE_REDIS_ADDRESS", "BREWCORE_REDIS_PASSWORD", "BREWCORE_REDIS_DB",
	"BREWCORE_LOCK_TTL", "BREWCORE_LOCK_RETRY", "BREWCORE_ARCHIVE_CRON", "BREWCORE_LOG_LEVEL",
	"BREWCORE_METRICS_DRIVER", "BREWCORE_TRACE_OUTPUT", "BREWCORE_AUDIT_LOG",
}

// clearEnv unsets every brewcore variable for the duration of the test so a
// dotenv file can populate them.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "8080" || cfg.Storage.Driver != "sqlite" || cfg.Storage.SQLitePath != "brewcore.db" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Blob.Driver != "fs" || cfg.Lock.Driver != "local" || cfg.Lock.TTL != 30*time.Second {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Archive.CronSchedule != "0 3 * * *" || cfg.Log.Level != "info" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Metrics.Driver != "prometheus" || cfg.Trace.Output != "" || !cfg.Trace.Audit {
		t.Fatalf("unexpected observability defaults %+v %+v", cfg.Metrics, cfg.Trace)
	}
}

func TestLoadFromEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	content := strings.Join([]string{
		"BREWCORE_HTTP_PORT=9090",
		"BREWCORE_STORAGE_DRIVER=postgres",
		"BREWCORE_POSTGRES_DSN=postgres://brew@db/brew",
		"BREWCORE_BLOB_DRIVER=s3",
		"BREWCORE_BLOB_S3_BUCKET=brew-archive",
		"BREWCORE_BLOB_S3_PATH_STYLE=true",
		"BREWCORE_LOCK_DRIVER=redis",
		"BREWCORE_REDIS_ADDRESS=redis:6379",
		"BREWCORE_REDIS_DB=2",
		"BREWCORE_LOCK_TTL=10s",
		"BREWCORE_ARCHIVE_CRON=*/15 * * * *",
		"BREWCORE_METRICS_DRIVER=expvar",
		"BREWCORE_TRACE_OUTPUT=stderr",
		"BREWCORE_AUDIT_LOG=false",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Storage.PostgresDSN != "postgres://brew@db/brew" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if !cfg.Blob.S3.PathStyle || cfg.Blob.S3.Bucket != "brew-archive" {
		t.Fatalf("unexpected blob config %+v", cfg.Blob)
	}
	if cfg.Lock.RedisAddress != "redis:6379" || cfg.Lock.RedisDB != 2 || cfg.Lock.TTL != 10*time.Second {
		t.Fatalf("unexpected lock config %+v", cfg.Lock)
	}
	if cfg.Metrics.Driver != "expvar" || cfg.Trace.Output != "stderr" || cfg.Trace.Audit {
		t.Fatalf("unexpected observability config %+v %+v", cfg.Metrics, cfg.Trace)
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	cases := map[string]string{
		"BREWCORE_LOCK_TTL":           "soon",
		"BREWCORE_LOCK_RETRY":         "fast",
		"BREWCORE_REDIS_DB":           "one",
		"BREWCORE_BLOB_S3_PATH_STYLE": "maybe",
		"BREWCORE_AUDIT_LOG":          "sometimes",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil || !strings.Contains(err.Error(), key) {
				t.Fatalf("expected error naming %s, got %v", key, err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:  ServerConfig{Port: "8080"},
			Storage: StorageConfig{Driver: "sqlite"},
			Blob:    BlobConfig{Driver: "fs", FSRoot: "archive"},
			Lock:    LockConfig{Driver: "local", TTL: time.Second},
			Archive: ArchiveConfig{CronSchedule: "0 3 * * *"},
			Metrics: MetricsConfig{Driver: "prometheus"},
		}
	}
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"ok", func(*Config) {}, ""},
		{"sweep disabled", func(c *Config) { c.Archive.CronSchedule = "" }, ""},
		{"no port", func(c *Config) { c.Server.Port = "" }, "BREWCORE_HTTP_PORT"},
		{"unknown storage", func(c *Config) { c.Storage.Driver = "etcd" }, "BREWCORE_STORAGE_DRIVER"},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = "postgres" }, "BREWCORE_POSTGRES_DSN"},
		{"s3 without bucket", func(c *Config) { c.Blob.Driver = "s3" }, "BREWCORE_BLOB_S3_BUCKET"},
		{"fs without root", func(c *Config) { c.Blob.FSRoot = "" }, "BREWCORE_BLOB_FS_ROOT"},
		{"unknown blob", func(c *Config) { c.Blob.Driver = "gcs" }, "BREWCORE_BLOB_DRIVER"},
		{"redis without address", func(c *Config) { c.Lock.Driver = "redis" }, "BREWCORE_REDIS_ADDRESS"},
		{"unknown lock", func(c *Config) { c.Lock.Driver = "zookeeper" }, "BREWCORE_LOCK_DRIVER"},
		{"zero ttl", func(c *Config) { c.Lock.TTL = 0 }, "BREWCORE_LOCK_TTL"},
		{"expvar metrics", func(c *Config) { c.Metrics.Driver = "expvar" }, ""},
		{"unknown metrics", func(c *Config) { c.Metrics.Driver = "statsd" }, "BREWCORE_METRICS_DRIVER"},
		{"bad cron", func(c *Config) { c.Archive.CronSchedule = "every night" }, "BREWCORE_ARCHIVE_CRON"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.want == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error naming %s, got %v", tc.want, err)
			}
		})
	}
	var nilCfg *Config
	if err := nilCfg.Validate(); err == nil {
		t.Fatalf("expected nil config rejected")
	}
}
