package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/tendant/simple-mirror/pkg/simplemirror"
)

const (
	DefaultConnectTimeout = 3 * time.Second
	DefaultReadTimeout    = 6 * time.Second
	DefaultVerifyTimeout  = 30 * time.Second
	DefaultMaxBytes       = 50 << 20
	DefaultUserAgent      = "simple-mirror/1.0"
)

// Config holds HTTP fetcher settings
type Config struct {
	ConnectTimeout time.Duration // dial timeout
	ReadTimeout    time.Duration // max wait for headers and between body reads
	VerifyTimeout  time.Duration // whole-request bound for verification reads
	MaxBytes       int64         // body size limit, <= 0 for none
	UserAgent      string
}

// DefaultConfig returns the default timeouts: 3s connect, 6s read, 30s verify.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: DefaultConnectTimeout,
		ReadTimeout:    DefaultReadTimeout,
		VerifyTimeout:  DefaultVerifyTimeout,
		MaxBytes:       DefaultMaxBytes,
		UserAgent:      DefaultUserAgent,
	}
}

// HTTPFetcher is a plain HTTP GET fetcher. It also verifies uploads by
// reading them back through their public URL.
type HTTPFetcher struct {
	client *http.Client
	config Config
	logger *slog.Logger
}

var (
	_ simplemirror.Fetcher  = (*HTTPFetcher)(nil)
	_ simplemirror.Verifier = (*HTTPFetcher)(nil)
)

// NewHTTPFetcher creates a fetcher. Zero durations fall back to defaults.
func NewHTTPFetcher(config Config, logger *slog.Logger) *HTTPFetcher {
	defaults := DefaultConfig()
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = defaults.ConnectTimeout
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if config.VerifyTimeout <= 0 {
		config.VerifyTimeout = defaults.VerifyTimeout
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}
	if logger == nil {
		logger = slog.Default()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   config.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = config.ConnectTimeout
	transport.ResponseHeaderTimeout = config.ReadTimeout

	return &HTTPFetcher{
		client: &http.Client{Transport: transport},
		config: config,
		logger: logger,
	}
}

// Fetch GETs rawURL and returns the body. A 404 or 410 and an empty body are
// reported as simplemirror.ErrNoContent.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	resp, err := f.get(ctx, rawURL)
	if err != nil {
		return nil, &simplemirror.FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return nil, &simplemirror.FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: simplemirror.ErrNoContent}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &simplemirror.FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status")}
	}

	timer := time.AfterFunc(f.config.ReadTimeout, cancel)
	defer timer.Stop()

	body := &idleReader{r: resp.Body, timer: timer, idle: f.config.ReadTimeout}
	data, err := ReadAllWithLimit(body, f.config.MaxBytes)
	if err != nil {
		return nil, &simplemirror.FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: err}
	}
	if len(data) == 0 {
		return nil, &simplemirror.FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: simplemirror.ErrNoContent}
	}

	f.logger.Debug("Fetched source", "url", rawURL, "size", len(data))
	return data, nil
}

// Verify reads publicURL back within VerifyTimeout. Any transport error or
// non-2xx status fails verification.
func (f *HTTPFetcher) Verify(ctx context.Context, publicURL string) error {
	ctx, cancel := context.WithTimeout(ctx, f.config.VerifyTimeout)
	defer cancel()

	resp, err := f.get(ctx, publicURL)
	if err != nil {
		return fmt.Errorf("verify %s: %w", publicURL, err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("verify %s: read body: %w", publicURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("verify %s: unexpected status %d", publicURL, resp.StatusCode)
	}
	return nil
}

func (f *HTTPFetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	return f.client.Do(req)
}
