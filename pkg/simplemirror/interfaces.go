package simplemirror

import (
	"context"
	"time"
)

// BlobStore defines the object store capability used for mirrored uploads
type BlobStore interface {
	// Put writes data under objectKey with public-read visibility and returns
	// the status code reported by the store.
	Put(ctx context.Context, objectKey string, data []byte, contentType string) (int, error)

	// PublicURL returns the public URL of objectKey. It never performs I/O.
	PublicURL(objectKey string) string

	// Delete removes an object
	Delete(ctx context.Context, objectKey string) error
}

// CacheStore maps source URLs to previously assigned public URLs
type CacheStore interface {
	// Lookup returns the stored public URL for oldURL, or ErrCacheMiss.
	Lookup(ctx context.Context, oldURL string) (string, error)

	// Insert records a mapping. Existing mappings are left untouched.
	Insert(ctx context.Context, oldURL, newURL string) error
}

// Fetcher retrieves the raw bytes behind a URL
type Fetcher interface {
	// Fetch returns the body, or ErrNoContent when there is nothing to mirror.
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// Verifier confirms that an uploaded object is readable at its public URL
type Verifier interface {
	Verify(ctx context.Context, publicURL string) error
}

// Observer receives telemetry from the mirror pipeline
type Observer interface {
	// RecordCacheLookup is called after every cache lookup.
	RecordCacheLookup(hit bool, err error)

	// RecordUploadAttempt is called once per put-and-verify round.
	RecordUploadAttempt(duration time.Duration, sizeBytes int, err error)

	// RecordMirror is called once per Mirror call with the stage it ended in.
	RecordMirror(stage Stage, duration time.Duration, err error)
}
