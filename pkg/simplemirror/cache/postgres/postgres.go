package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-mirror/pkg/simplemirror"
)

// Cache implements simplemirror.CacheStore on the file_storage_cache table.
// Every operation acquires its own pooled connection and releases it before
// returning, on success and on error alike.
type Cache struct {
	pool *pgxpool.Pool
}

var _ simplemirror.CacheStore = (*Cache)(nil)

// New creates a cache backed by pool
func New(pool *pgxpool.Pool) *Cache {
	return &Cache{pool: pool}
}

// Connect opens a pool for databaseURL. A non-empty schema is set as the
// search_path of every new connection.
func Connect(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("database_url is required")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", pgx.Identifier{schema}.Sanitize()))
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}

// Lookup returns the public URL stored for oldURL or simplemirror.ErrCacheMiss.
func (c *Cache) Lookup(ctx context.Context, oldURL string) (string, error) {
	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	var newURL string
	err = conn.QueryRow(ctx,
		`SELECT new_url FROM file_storage_cache WHERE old_url = $1`,
		oldURL,
	).Scan(&newURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", simplemirror.ErrCacheMiss
		}
		return "", handlePostgresError("lookup", err)
	}
	return newURL, nil
}

// Insert records oldURL -> newURL. An existing row for oldURL wins; the
// insert is then a no-op.
func (c *Cache) Insert(ctx context.Context, oldURL, newURL string) error {
	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx,
		`INSERT INTO file_storage_cache (old_url, new_url, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (old_url) DO NOTHING`,
		oldURL, newURL, time.Now().UTC(),
	)
	if err != nil {
		return handlePostgresError("insert", err)
	}
	return nil
}

func handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42P01": // undefined_table
			return fmt.Errorf("table file_storage_cache does not exist - database migration required: %w", err)
		default:
			return fmt.Errorf("database error in %s: %s (code: %s): %w", operation, pgErr.Message, pgErr.Code, err)
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}
