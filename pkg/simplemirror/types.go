package simplemirror

import "time"

// MirrorRequest asks for one source URL to be mirrored.
type MirrorRequest struct {
	SourceURL string `json:"source_url"`
	// Stable stores the object under the fixed "stable" sub folder instead of
	// the current date bucket.
	Stable bool `json:"stable"`
}

// ClassifiedName is the storage classification derived from a filename.
type ClassifiedName struct {
	Folder      string
	ContentType string
	SubFolder   string
}

// CacheEntry maps a source URL to the public URL it was mirrored to.
type CacheEntry struct {
	OldURL    string
	NewURL    string
	CreatedAt time.Time
}

// UploadAttempt describes one put-and-verify round inside the upload retry loop.
type UploadAttempt struct {
	ObjectKey string
	Attempt   int
	Succeeded bool
	Err       error
}

// Stage names a step of the mirror pipeline.
type Stage string

const (
	StageCacheLookup Stage = "cache_lookup"
	StageFetch       Stage = "fetch"
	StageAdmit       Stage = "admit"
	StageUpload      Stage = "upload"
	StageCacheWrite  Stage = "cache_write"
	StageDone        Stage = "done"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}
