package simplemirror

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/tendant/simple-mirror/pkg/simplemirror/objectkey"
)

// DefaultMaxAttempts bounds the put-and-verify loop.
const DefaultMaxAttempts = 10

// Uploader writes bytes to the object store and reads them back through the
// public URL before declaring success. Each attempt uses a fresh key; a key
// that failed once is never reused.
type Uploader struct {
	store       BlobStore
	verifier    Verifier
	keys        objectkey.Generator
	maxAttempts int
	interval    time.Duration
	// Delete the object written by a failed attempt. Off by default: failed
	// attempts may leave orphaned objects behind.
	cleanupOrphans bool
	observer       Observer
	logger         *slog.Logger
}

// UploaderOption configures an Uploader
type UploaderOption func(*Uploader)

// WithMaxAttempts sets the total number of attempts (not retries).
func WithMaxAttempts(n int) UploaderOption {
	return func(u *Uploader) {
		if n > 0 {
			u.maxAttempts = n
		}
	}
}

// WithRetryInterval sets the pause between attempts
func WithRetryInterval(d time.Duration) UploaderOption {
	return func(u *Uploader) {
		u.interval = d
	}
}

// WithKeyGenerator replaces the random key generator
func WithKeyGenerator(g objectkey.Generator) UploaderOption {
	return func(u *Uploader) {
		if g != nil {
			u.keys = g
		}
	}
}

// WithOrphanCleanup deletes the object of each failed attempt on a best-effort basis
func WithOrphanCleanup(enabled bool) UploaderOption {
	return func(u *Uploader) {
		u.cleanupOrphans = enabled
	}
}

// WithUploadObserver sets the telemetry observer
func WithUploadObserver(o Observer) UploaderOption {
	return func(u *Uploader) {
		if o != nil {
			u.observer = o
		}
	}
}

// WithUploadLogger sets the logger
func WithUploadLogger(l *slog.Logger) UploaderOption {
	return func(u *Uploader) {
		if l != nil {
			u.logger = l
		}
	}
}

// NewUploader creates an uploader writing to store and verifying through verifier
func NewUploader(store BlobStore, verifier Verifier, opts ...UploaderOption) *Uploader {
	u := &Uploader{
		store:       store,
		verifier:    verifier,
		keys:        objectkey.NewRandomGenerator(),
		maxAttempts: DefaultMaxAttempts,
		observer:    NoopObserver{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload stores data under a generated key below meta's prefix and returns the
// verified public URL. It returns ErrRetriesExhausted when no attempt succeeded.
func (u *Uploader) Upload(ctx context.Context, data []byte, meta *objectkey.KeyMetadata, contentType string) (string, error) {
	var (
		publicURL string
		attempts  int
	)

	operation := func() error {
		attempts++
		result := u.attempt(ctx, UploadAttempt{
			ObjectKey: u.keys.GenerateKey(meta),
			Attempt:   attempts,
		}, data, contentType)
		if !result.Succeeded {
			u.logger.Warn("Upload attempt failed", "key", result.ObjectKey, "attempt", result.Attempt, "err", result.Err)
			if u.cleanupOrphans {
				u.deleteOrphan(ctx, result.ObjectKey)
			}
			return result.Err
		}
		publicURL = u.store.PublicURL(result.ObjectKey)
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(u.interval), uint64(u.maxAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return "", fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, err)
	}
	return publicURL, nil
}

// attempt is a single put followed by a verification read.
func (u *Uploader) attempt(ctx context.Context, a UploadAttempt, data []byte, contentType string) UploadAttempt {
	start := time.Now()
	a.Err = u.putAndVerify(ctx, a.ObjectKey, data, contentType)
	a.Succeeded = a.Err == nil
	u.observer.RecordUploadAttempt(time.Since(start), len(data), a.Err)
	return a
}

func (u *Uploader) putAndVerify(ctx context.Context, key string, data []byte, contentType string) error {
	status, err := u.store.Put(ctx, key, data, contentType)
	if err != nil {
		return &StorageError{Key: key, Op: "put", Err: err}
	}
	if status < 200 || status > 299 {
		return &StorageError{Key: key, Op: "put", Err: fmt.Errorf("%w: status %d", ErrUploadFailed, status)}
	}

	if u.verifier == nil {
		return &StorageError{Key: key, Op: "verify", Err: ErrNoVerifier}
	}
	if err := u.verifier.Verify(ctx, u.store.PublicURL(key)); err != nil {
		return &StorageError{Key: key, Op: "verify", Err: err}
	}
	return nil
}

func (u *Uploader) deleteOrphan(ctx context.Context, key string) {
	if err := u.store.Delete(ctx, key); err != nil {
		u.logger.Debug("Failed to delete orphaned object", "key", key, "err", err)
	}
}
