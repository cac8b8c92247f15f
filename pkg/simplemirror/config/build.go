package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/simple-mirror/pkg/simplemirror"
	"github.com/tendant/simple-mirror/pkg/simplemirror/cache/lru"
	memorycache "github.com/tendant/simple-mirror/pkg/simplemirror/cache/memory"
	pgcache "github.com/tendant/simple-mirror/pkg/simplemirror/cache/postgres"
	"github.com/tendant/simple-mirror/pkg/simplemirror/fetch"
	"github.com/tendant/simple-mirror/pkg/simplemirror/metrics"
	fsstorage "github.com/tendant/simple-mirror/pkg/simplemirror/storage/fs"
	memorystorage "github.com/tendant/simple-mirror/pkg/simplemirror/storage/memory"
	s3storage "github.com/tendant/simple-mirror/pkg/simplemirror/storage/s3"
)

// Runtime holds everything BuildMirrorer created. Close releases the
// database pool, if any.
type Runtime struct {
	Mirrorer *simplemirror.Mirrorer
	Store    simplemirror.BlobStore
	Cache    simplemirror.CacheStore
	Pool     *pgxpool.Pool

	closers []func()
}

// Close releases resources in reverse order of creation
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

// BuildMirrorer wires storage, cache, fetcher and telemetry from the
// configuration. A nil reg disables Prometheus metrics.
func (c *Config) BuildMirrorer(ctx context.Context, logger *slog.Logger, reg prometheus.Registerer) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{}

	store, verifier, err := c.buildStorage(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build storage backend: %w", err)
	}
	rt.Store = store

	cache, err := c.buildCache(ctx, rt, logger, reg)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to build cache store: %w", err)
	}
	rt.Cache = cache

	httpFetcher := fetch.NewHTTPFetcher(fetch.Config{
		ConnectTimeout: c.Fetch.ConnectTimeout,
		ReadTimeout:    c.Fetch.ReadTimeout,
		VerifyTimeout:  c.Fetch.VerifyTimeout,
		MaxBytes:       c.Fetch.MaxBytes,
	}, logger)
	if verifier == nil {
		verifier = httpFetcher
	}

	var browser fetch.Renderer
	if c.Fetch.BrowserURL != "" {
		browser = fetch.NewRemoteBrowser(c.Fetch.BrowserURL, c.Fetch.BrowserTimeout)
	}
	fetcher := fetch.NewFallbackFetcher(httpFetcher, browser, c.Mirror.SpecialHosts, logger)

	options := []simplemirror.Option{
		simplemirror.WithBlobStore(store),
		simplemirror.WithCacheStore(cache),
		simplemirror.WithFetcher(fetcher),
		simplemirror.WithVerifier(verifier),
		simplemirror.WithLogger(logger),
		simplemirror.WithRootFolder(c.Mirror.RootFolder),
		simplemirror.WithWorkers(c.Mirror.Workers),
		simplemirror.WithTaskTimeout(c.Mirror.TaskTimeout),
		simplemirror.WithCacheTimeout(c.Cache.Timeout),
		simplemirror.WithUploaderOptions(
			simplemirror.WithMaxAttempts(c.Mirror.MaxAttempts),
			simplemirror.WithRetryInterval(c.Mirror.RetryInterval),
			simplemirror.WithOrphanCleanup(c.Mirror.CleanupOrphans),
		),
	}

	if reg != nil {
		observer, err := metrics.NewPrometheusObserver("", reg)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		options = append(options, simplemirror.WithObserver(observer))
	}

	m, err := simplemirror.New(options...)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Mirrorer = m

	logger.Info("Mirror pipeline ready",
		"storage", c.Storage.Backend,
		"cache", c.cacheKind(),
		"workers", c.Mirror.Workers,
		"browser_fallback", browser != nil,
	)
	return rt, nil
}

// buildStorage returns the object store and, for the local stores, a verifier
// that does not need network access.
func (c *Config) buildStorage(logger *slog.Logger) (simplemirror.BlobStore, simplemirror.Verifier, error) {
	switch c.Storage.Backend {
	case "memory":
		backend := memorystorage.New(c.Storage.LocalBaseURL)
		return backend, backend, nil
	case "fs":
		backend, err := fsstorage.New(fsstorage.Config{
			BaseDir:       c.Storage.FSBaseDir,
			PublicBaseURL: c.Storage.LocalBaseURL,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("Using filesystem storage", "base_dir", c.Storage.FSBaseDir)
		return backend, backend, nil
	case "s3":
		backend, err := s3storage.New(s3storage.Config{
			Region:          c.Storage.Region,
			Bucket:          c.Storage.Bucket,
			AccessKeyID:     c.Storage.KeyID,
			SecretAccessKey: c.Storage.KeySecret,
			Endpoint:        c.Storage.Endpoint,
			UsePathStyle:    c.Storage.UsePathStyle,
			PublicDomain:    c.Storage.PublicDomain,
			PublicBaseURL:   c.Storage.PublicBaseURL,
			MaxSDKAttempts:  c.Storage.SDKAttempts,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("Using S3 storage", "bucket", c.Storage.Bucket, "region", c.Storage.Region)
		return backend, nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage backend: %s", c.Storage.Backend)
	}
}

func (c *Config) buildCache(ctx context.Context, rt *Runtime, logger *slog.Logger, reg prometheus.Registerer) (simplemirror.CacheStore, error) {
	var cache simplemirror.CacheStore

	if c.Database.IsPostgres() {
		if c.Database.Migrate {
			if err := pgcache.Migrate(c.Database.URL, c.Database.Schema, logger); err != nil {
				return nil, err
			}
		}
		pool, err := pgcache.Connect(ctx, c.Database.URL, c.Database.Schema)
		if err != nil {
			return nil, err
		}
		rt.Pool = pool
		rt.closers = append(rt.closers, pool.Close)
		cache = pgcache.New(pool)
	} else {
		cache = memorycache.New()
	}

	if c.Cache.LRUSize > 0 {
		opts := []lru.Option{lru.WithSize(c.Cache.LRUSize), lru.WithTTL(c.Cache.LRUTTL)}
		if reg != nil {
			opts = append(opts, lru.WithRegisterer(reg))
		}
		front, err := lru.New(cache, opts...)
		if err != nil {
			return nil, err
		}
		cache = front
	}
	return cache, nil
}

func (c *Config) cacheKind() string {
	kind := "memory"
	if c.Database.IsPostgres() {
		kind = "postgres"
	}
	if c.Cache.LRUSize > 0 {
		kind += "+lru"
	}
	return kind
}
