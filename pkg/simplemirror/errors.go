package simplemirror

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrNoFilename indicates the source URL path has no final segment
	ErrNoFilename = errors.New("no filename in url path")

	// ErrNoContent indicates a fetch returned nothing to mirror
	ErrNoContent = errors.New("no content")

	// ErrImageTooSmall indicates an image failed the minimum dimension check
	ErrImageTooSmall = errors.New("image below minimum dimensions")

	// ErrRetriesExhausted indicates every upload attempt failed
	ErrRetriesExhausted = errors.New("upload retries exhausted")

	// ErrCacheMiss indicates no mapping exists for a source URL
	ErrCacheMiss = errors.New("cache miss")

	// ErrObjectNotFound indicates an object was not found in the store
	ErrObjectNotFound = errors.New("object not found")

	// ErrUploadFailed indicates the store did not report a successful write
	ErrUploadFailed = errors.New("upload failed")

	// ErrNoVerifier is returned when an upload cannot be read back because
	// no verifier is configured.
	ErrNoVerifier = errors.New("no verifier configured")
)

// MirrorError records the pipeline stage a mirror stopped at
type MirrorError struct {
	SourceURL string
	Stage     Stage
	Err       error
}

func (e *MirrorError) Error() string {
	return fmt.Sprintf("mirror of %s stopped at %s: %v", e.SourceURL, e.Stage, e.Err)
}

func (e *MirrorError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to storage operations
type StorageError struct {
	Key string
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// FetchError represents a failed fetch of a URL
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s failed with status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s failed: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsNoResult reports whether err is one of the "nothing to mirror" outcomes
// rather than an I/O failure.
func IsNoResult(err error) bool {
	return errors.Is(err, ErrNoFilename) ||
		errors.Is(err, ErrNoContent) ||
		errors.Is(err, ErrImageTooSmall)
}
