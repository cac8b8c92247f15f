package memory

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/tendant/simple-mirror/pkg/simplemirror"
	"github.com/tendant/simple-mirror/pkg/simplemirror/urlstrategy"
)

// DefaultBaseURL is used for public URLs when none is configured
const DefaultBaseURL = "http://localhost:8080/objects"

// Backend is an in-memory implementation of simplemirror.BlobStore. It can
// serve its own objects over HTTP and verify its public URLs without I/O.
type Backend struct {
	mu           sync.RWMutex
	objects      map[string][]byte
	contentTypes map[string]string
	urls         *urlstrategy.CDNStrategy
}

var (
	_ simplemirror.BlobStore = (*Backend)(nil)
	_ simplemirror.Verifier  = (*Backend)(nil)
)

// New creates a new in-memory storage backend whose public URLs start with
// baseURL.
func New(baseURL string) *Backend {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	urls := urlstrategy.NewCDNStrategy(baseURL)
	return &Backend{
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
		urls:         urls,
	}
}

// Put stores a copy of data
func (b *Backend) Put(ctx context.Context, objectKey string, data []byte, contentType string) (int, error) {
	stored := make([]byte, len(data))
	copy(stored, data)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[objectKey] = stored
	if contentType == "" {
		contentType = simplemirror.DefaultContentType
	}
	b.contentTypes[objectKey] = contentType
	return http.StatusOK, nil
}

func (b *Backend) PublicURL(objectKey string) string {
	return b.urls.PublicURL(objectKey)
}

// Delete deletes content
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[objectKey]; !exists {
		return simplemirror.ErrObjectNotFound
	}
	delete(b.objects, objectKey)
	delete(b.contentTypes, objectKey)
	return nil
}

// Verify checks that publicURL names a stored object
func (b *Backend) Verify(ctx context.Context, publicURL string) error {
	for key := range b.keys() {
		if b.PublicURL(key) == publicURL {
			return nil
		}
	}
	return simplemirror.ErrObjectNotFound
}

// Len returns the number of stored objects
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}

func (b *Backend) keys() map[string]struct{} {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make(map[string]struct{}, len(b.objects))
	for k := range b.objects {
		keys[k] = struct{}{}
	}
	return keys
}

// ServeHTTP serves stored objects by key. Mount it with the base URL path
// stripped, e.g. http.StripPrefix("/objects", backend).
func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	key := strings.TrimPrefix(r.URL.Path, "/")

	b.mu.RLock()
	data, exists := b.objects[key]
	contentType := b.contentTypes[key]
	b.mu.RUnlock()

	if !exists {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = w.Write(data)
	}
}
