package simplemirror_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-mirror/pkg/simplemirror"
)

var errBoom = errors.New("boom")

// pngBytes encodes a solid w x h PNG.
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fakeStore struct {
	mu        sync.Mutex
	puts      []string
	deleted   []string
	objects   map[string][]byte
	types     map[string]string
	failFirst int
	failAll   bool
	status    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (s *fakeStore) Put(ctx context.Context, key string, data []byte, contentType string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts = append(s.puts, key)
	if s.failAll {
		return 0, errBoom
	}
	if s.failFirst > 0 {
		s.failFirst--
		return 0, errBoom
	}
	s.objects[key] = data
	s.types[key] = contentType
	if s.status != 0 {
		return s.status, nil
	}
	return 200, nil
}

func (s *fakeStore) PublicURL(key string) string {
	return "https://cdn.test/" + key
}

func (s *fakeStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, key)
	delete(s.objects, key)
	return nil
}

func (s *fakeStore) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.puts)
}

type fakeVerifier struct {
	mu        sync.Mutex
	calls     []string
	failFirst int
}

func (v *fakeVerifier) Verify(ctx context.Context, publicURL string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, publicURL)
	if v.failFirst > 0 {
		v.failFirst--
		return errBoom
	}
	return nil
}

type fakeFetcher struct {
	fn       func(url string) ([]byte, error)
	delay    time.Duration
	calls    atomic.Int32
	inflight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	f.calls.Add(1)
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.fn(rawURL)
}

func staticFetcher(data []byte) *fakeFetcher {
	return &fakeFetcher{fn: func(string) ([]byte, error) { return data, nil }}
}

type fakeCache struct {
	mu        sync.Mutex
	entries   map[string]string
	lookupErr error
	insertErr error
	lookups   int
	inserts   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]string)}
}

func (c *fakeCache) Lookup(ctx context.Context, oldURL string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups++
	if c.lookupErr != nil {
		return "", c.lookupErr
	}
	if v, ok := c.entries[oldURL]; ok {
		return v, nil
	}
	return "", simplemirror.ErrCacheMiss
}

func (c *fakeCache) Insert(ctx context.Context, oldURL, newURL string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inserts++
	if c.insertErr != nil {
		return c.insertErr
	}
	if _, ok := c.entries[oldURL]; !ok {
		c.entries[oldURL] = newURL
	}
	return nil
}

type recordingObserver struct {
	mu       sync.Mutex
	hits     int
	misses   int
	attempts int
	stages   []simplemirror.Stage
}

func (o *recordingObserver) RecordCacheLookup(hit bool, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if hit {
		o.hits++
	} else {
		o.misses++
	}
}

func (o *recordingObserver) RecordUploadAttempt(d time.Duration, size int, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempts++
}

func (o *recordingObserver) RecordMirror(stage simplemirror.Stage, d time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stages = append(o.stages, stage)
}

// fixedClock is 2024-01-31 20:00 UTC, already 2024-02-01 in UTC+7.
func fixedClock() time.Time {
	return time.Date(2024, 1, 31, 20, 0, 0, 0, time.UTC)
}
