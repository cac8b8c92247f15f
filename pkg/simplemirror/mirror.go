package simplemirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tendant/simple-mirror/pkg/simplemirror/objectkey"
)

const (
	DefaultCacheTimeout = 5 * time.Second
	DefaultWorkers      = 5
	DefaultTaskTimeout  = 2 * time.Minute
)

// Mirrorer runs the mirror pipeline
type Mirrorer struct {
	store      BlobStore
	cache      CacheStore
	fetcher    Fetcher
	verifier   Verifier
	uploader   *Uploader
	admission  AdmissionFilter
	observer   Observer
	logger     *slog.Logger
	now        func() time.Time
	rootFolder string

	cacheTimeout time.Duration
	workers      int
	taskTimeout  time.Duration

	uploaderOpts []UploaderOption
}

// Option represents a functional option for configuring the Mirrorer
type Option func(*Mirrorer)

// WithBlobStore sets the object store
func WithBlobStore(store BlobStore) Option {
	return func(m *Mirrorer) {
		m.store = store
	}
}

// WithCacheStore sets the cache store. Without one every request is a miss.
func WithCacheStore(cache CacheStore) Option {
	return func(m *Mirrorer) {
		m.cache = cache
	}
}

// WithFetcher sets the fetcher for source URLs
func WithFetcher(f Fetcher) Option {
	return func(m *Mirrorer) {
		m.fetcher = f
	}
}

// WithVerifier sets the verifier for uploaded objects
func WithVerifier(v Verifier) Option {
	return func(m *Mirrorer) {
		m.verifier = v
	}
}

// WithAdmissionFilter overrides the image dimension threshold
func WithAdmissionFilter(f AdmissionFilter) Option {
	return func(m *Mirrorer) {
		m.admission = f
	}
}

// WithObserver sets the telemetry observer
func WithObserver(o Observer) Option {
	return func(m *Mirrorer) {
		if o != nil {
			m.observer = o
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(m *Mirrorer) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides time.Now, used for date buckets
func WithClock(now func() time.Time) Option {
	return func(m *Mirrorer) {
		if now != nil {
			m.now = now
		}
	}
}

// WithRootFolder sets the first object key segment
func WithRootFolder(root string) Option {
	return func(m *Mirrorer) {
		if root != "" {
			m.rootFolder = root
		}
	}
}

// WithCacheTimeout bounds each cache round trip
func WithCacheTimeout(d time.Duration) Option {
	return func(m *Mirrorer) {
		if d > 0 {
			m.cacheTimeout = d
		}
	}
}

// WithWorkers sets the fan-out pool size
func WithWorkers(n int) Option {
	return func(m *Mirrorer) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithTaskTimeout bounds a single URL inside MirrorAll
func WithTaskTimeout(d time.Duration) Option {
	return func(m *Mirrorer) {
		if d > 0 {
			m.taskTimeout = d
		}
	}
}

// WithUploaderOptions passes options through to the internal Uploader
func WithUploaderOptions(opts ...UploaderOption) Option {
	return func(m *Mirrorer) {
		m.uploaderOpts = append(m.uploaderOpts, opts...)
	}
}

// New creates a Mirrorer with the given options
func New(options ...Option) (*Mirrorer, error) {
	m := &Mirrorer{
		admission:    DefaultAdmissionFilter(),
		observer:     NoopObserver{},
		logger:       slog.Default(),
		now:          time.Now,
		rootFolder:   DefaultRootFolder,
		cacheTimeout: DefaultCacheTimeout,
		workers:      DefaultWorkers,
		taskTimeout:  DefaultTaskTimeout,
	}

	for _, option := range options {
		option(m)
	}

	if m.store == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if m.fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if m.verifier == nil {
		return nil, fmt.Errorf("verifier is required: %w", ErrNoVerifier)
	}

	opts := []UploaderOption{
		WithUploadObserver(m.observer),
		WithUploadLogger(m.logger),
	}
	m.uploader = NewUploader(m.store, m.verifier, append(opts, m.uploaderOpts...)...)

	return m, nil
}

// Mirror mirrors one source URL and returns its public URL. The second return
// value is false when there is no result; Mirror never returns an error and
// never panics.
func (m *Mirrorer) Mirror(ctx context.Context, req MirrorRequest) (publicURL string, ok bool) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Mirror panicked", "source_url", req.SourceURL, "panic", r)
			m.observer.RecordMirror(StageFetch, time.Since(start), fmt.Errorf("panic: %v", r))
			publicURL, ok = "", false
		}
	}()

	publicURL, err := m.mirror(ctx, req)
	if err != nil {
		stage := StageFetch
		var mirrorErr *MirrorError
		if errors.As(err, &mirrorErr) {
			stage = mirrorErr.Stage
		}
		m.observer.RecordMirror(stage, time.Since(start), err)
		if IsNoResult(err) {
			m.logger.Debug("Nothing to mirror", "source_url", req.SourceURL, "stage", stage, "err", err)
		} else {
			m.logger.Warn("Mirror failed", "source_url", req.SourceURL, "stage", stage, "err", err)
		}
		return "", false
	}

	m.observer.RecordMirror(StageDone, time.Since(start), nil)
	return publicURL, true
}

func (m *Mirrorer) mirror(ctx context.Context, req MirrorRequest) (string, error) {
	// A URL without a filename is never mirrored, so it can never be cached
	// either; reject it before touching any store.
	filename, err := FilenameFromURL(req.SourceURL)
	if err != nil {
		return "", &MirrorError{SourceURL: req.SourceURL, Stage: StageFetch, Err: err}
	}

	if cached, ok := m.lookup(ctx, req.SourceURL); ok {
		return cached, nil
	}
	class := ClassifyForRequest(filename, req.Stable, m.now())

	data, err := m.fetcher.Fetch(ctx, req.SourceURL)
	if err != nil {
		return "", &MirrorError{SourceURL: req.SourceURL, Stage: StageFetch, Err: err}
	}
	if len(data) == 0 {
		return "", &MirrorError{SourceURL: req.SourceURL, Stage: StageFetch, Err: ErrNoContent}
	}

	if class.Folder == ImageFolder {
		admitted, err := m.admission.Admit(data)
		if err != nil {
			return "", &MirrorError{SourceURL: req.SourceURL, Stage: StageAdmit, Err: err}
		}
		if !admitted {
			return "", &MirrorError{SourceURL: req.SourceURL, Stage: StageAdmit, Err: ErrImageTooSmall}
		}
	}

	meta := &objectkey.KeyMetadata{
		Root:      m.rootFolder,
		Folder:    class.Folder,
		SubFolder: class.SubFolder,
		FileName:  filename,
	}
	publicURL, err := m.uploader.Upload(ctx, data, meta, class.ContentType)
	if err != nil {
		return "", &MirrorError{SourceURL: req.SourceURL, Stage: StageUpload, Err: err}
	}

	m.insert(ctx, req.SourceURL, publicURL)
	return publicURL, nil
}

// lookup treats every cache failure as a miss.
func (m *Mirrorer) lookup(ctx context.Context, sourceURL string) (string, bool) {
	if m.cache == nil {
		return "", false
	}
	ctx, cancel := context.WithTimeout(ctx, m.cacheTimeout)
	defer cancel()

	cached, err := m.cache.Lookup(ctx, sourceURL)
	switch {
	case err == nil && cached != "":
		m.observer.RecordCacheLookup(true, nil)
		m.logger.Debug("Cache hit", "source_url", sourceURL, "url", cached)
		return cached, true
	case err == nil, errors.Is(err, ErrCacheMiss):
		m.observer.RecordCacheLookup(false, nil)
	default:
		m.observer.RecordCacheLookup(false, err)
		m.logger.Warn("Cache lookup failed, treating as miss", "source_url", sourceURL, "err", err)
	}
	return "", false
}

// insert is best-effort; a failure only costs a future re-mirror.
func (m *Mirrorer) insert(ctx context.Context, sourceURL, publicURL string) {
	if m.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, m.cacheTimeout)
	defer cancel()

	if err := m.cache.Insert(ctx, sourceURL, publicURL); err != nil {
		m.logger.Warn("Failed to cache mirrored url", "source_url", sourceURL, "url", publicURL, "err", err)
	}
}
