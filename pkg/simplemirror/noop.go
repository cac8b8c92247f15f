package simplemirror

import "time"

// NoopObserver is a no-operation implementation of Observer
// Useful for production when you don't need telemetry or for testing
type NoopObserver struct{}

// RecordCacheLookup does nothing
func (NoopObserver) RecordCacheLookup(hit bool, err error) {}

// RecordUploadAttempt does nothing
func (NoopObserver) RecordUploadAttempt(duration time.Duration, sizeBytes int, err error) {}

// RecordMirror does nothing
func (NoopObserver) RecordMirror(stage Stage, duration time.Duration, err error) {}
