package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tendant/simple-mirror/pkg/simplemirror"
	"github.com/tendant/simple-mirror/pkg/simplemirror/fetch"
)

// Option applies configuration to a Config instance.
type Option func(*Config) error

// Load constructs a Config by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*Config, error) {
	cfg := Defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Defaults returns the library defaults. Environment values read by WithEnv
// are applied on top of these.
func Defaults() Config {
	return Config{
		Port:     "8080",
		LogLevel: "info",
		Storage: StorageConfig{
			Backend:      "memory",
			LocalBaseURL: "http://localhost:8080/objects",
			FSBaseDir:    "./data/objects",
		},
		Database: DatabaseConfig{
			URL: "memory",
		},
		Cache: CacheConfig{
			LRUSize: 10000,
			LRUTTL:  time.Hour,
			Timeout: simplemirror.DefaultCacheTimeout,
		},
		Mirror: MirrorConfig{
			RootFolder:   simplemirror.DefaultRootFolder,
			MaxAttempts:  simplemirror.DefaultMaxAttempts,
			Workers:      simplemirror.DefaultWorkers,
			TaskTimeout:  simplemirror.DefaultTaskTimeout,
			SpecialHosts: append([]string(nil), fetch.DefaultSpecialHosts...),
		},
		Fetch: FetchConfig{
			ConnectTimeout: fetch.DefaultConnectTimeout,
			ReadTimeout:    fetch.DefaultReadTimeout,
			VerifyTimeout:  fetch.DefaultVerifyTimeout,
			MaxBytes:       fetch.DefaultMaxBytes,
			BrowserTimeout: fetch.DefaultBrowserTimeout,
		},
	}
}

// Config represents configuration for the mirror service
type Config struct {
	Port     string `env:"PORT" env-description:"HTTP listen port"`
	LogLevel string `env:"LOG_LEVEL" env-description:"debug, info, warn or error"`

	Storage  StorageConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Mirror   MirrorConfig
	Fetch    FetchConfig
}

// StorageConfig selects and configures the object store
type StorageConfig struct {
	Backend string `env:"STORAGE_BACKEND" env-description:"s3, fs or memory"`

	KeyID         string `env:"AWS_S3_KEY_ID"`
	KeySecret     string `env:"AWS_S3_KEY_SECRET"`
	Region        string `env:"AWS_S3_REGION" env-description:"e.g. sgp1"`
	Bucket        string `env:"AWS_S3_BUCKET"`
	Endpoint      string `env:"AWS_S3_ENDPOINT" env-description:"defaults to https://{region}.digitaloceanspaces.com"`
	PublicDomain  string `env:"AWS_S3_PUBLIC_DOMAIN" env-description:"public URL host suffix"`
	PublicBaseURL string `env:"AWS_S3_PUBLIC_BASE_URL" env-description:"optional CDN base URL"`
	UsePathStyle  bool   `env:"AWS_S3_USE_PATH_STYLE"`
	SDKAttempts   int    `env:"AWS_S3_MAX_ATTEMPTS" env-description:"SDK attempts per request; 0 keeps the SDK default"`

	LocalBaseURL string `env:"LOCAL_PUBLIC_BASE_URL" env-description:"public URL prefix of the memory and fs stores"`
	FSBaseDir    string `env:"FS_BASE_DIR" env-description:"directory of the fs store"`
}

// DatabaseConfig configures the cache database
type DatabaseConfig struct {
	URL     string `env:"DATABASE_URL" env-description:"memory or postgres://..."`
	Schema  string `env:"DB_SCHEMA" env-description:"Postgres search_path"`
	Migrate bool   `env:"DB_MIGRATE" env-description:"apply embedded migrations on start"`
}

// IsPostgres reports whether the cache lives in Postgres
func (d DatabaseConfig) IsPostgres() bool {
	return strings.HasPrefix(d.URL, "postgres://") || strings.HasPrefix(d.URL, "postgresql://")
}

// CacheConfig configures the in-process LRU in front of the cache store
type CacheConfig struct {
	LRUSize int           `env:"CACHE_LRU_SIZE" env-description:"0 disables the LRU"`
	LRUTTL  time.Duration `env:"CACHE_LRU_TTL"`
	Timeout time.Duration `env:"CACHE_TIMEOUT" env-description:"bound for one cache round trip"`
}

// MirrorConfig configures the pipeline
type MirrorConfig struct {
	RootFolder     string        `env:"MIRROR_ROOT_FOLDER"`
	MaxAttempts    int           `env:"MIRROR_MAX_ATTEMPTS"`
	RetryInterval  time.Duration `env:"MIRROR_RETRY_INTERVAL"`
	CleanupOrphans bool          `env:"MIRROR_CLEANUP_ORPHANS" env-description:"delete objects of failed upload attempts"`
	Workers        int           `env:"MIRROR_WORKERS"`
	TaskTimeout    time.Duration `env:"MIRROR_TASK_TIMEOUT"`
	SpecialHosts   []string      `env:"MIRROR_SPECIAL_HOSTS" env-separator:"," env-description:"hosts fetched through the browser on failure"`
}

// FetchConfig configures source fetching and upload verification
type FetchConfig struct {
	ConnectTimeout time.Duration `env:"FETCH_CONNECT_TIMEOUT"`
	ReadTimeout    time.Duration `env:"FETCH_READ_TIMEOUT"`
	VerifyTimeout  time.Duration `env:"VERIFY_TIMEOUT"`
	MaxBytes       int64         `env:"FETCH_MAX_BYTES"`
	BrowserURL     string        `env:"BROWSER_FETCH_URL" env-description:"headless browser render endpoint"`
	BrowserTimeout time.Duration `env:"BROWSER_FETCH_TIMEOUT"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.Storage.Backend {
	case "memory":
	case "fs":
		if c.Storage.FSBaseDir == "" {
			return errors.New("FS_BASE_DIR is required for fs storage")
		}
	case "s3":
		if c.Storage.Bucket == "" {
			return errors.New("AWS_S3_BUCKET is required for s3 storage")
		}
		if c.Storage.Region == "" {
			return errors.New("AWS_S3_REGION is required for s3 storage")
		}
	default:
		return fmt.Errorf("storage backend must be 's3', 'fs' or 'memory', got: %s", c.Storage.Backend)
	}

	if c.Database.URL != "" && c.Database.URL != "memory" && !c.Database.IsPostgres() {
		return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory' or 'postgresql://...')", c.Database.URL)
	}

	if c.Mirror.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive, got: %d", c.Mirror.MaxAttempts)
	}
	if c.Mirror.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got: %d", c.Mirror.Workers)
	}
	if c.Cache.LRUSize < 0 {
		return fmt.Errorf("lru size cannot be negative, got: %d", c.Cache.LRUSize)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
