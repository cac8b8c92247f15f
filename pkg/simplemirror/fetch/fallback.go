package fetch

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/tendant/simple-mirror/pkg/simplemirror"
)

// DefaultSpecialHosts are hosts that block plain HTTP clients
var DefaultSpecialHosts = []string{"batdongsan.com.vn"}

// FallbackFetcher tries a primary fetcher and, for allow-listed hosts only,
// retries through a browser renderer when the primary fails.
type FallbackFetcher struct {
	primary simplemirror.Fetcher
	browser Renderer
	hosts   []string
	logger  *slog.Logger
}

var _ simplemirror.Fetcher = (*FallbackFetcher)(nil)

// NewFallbackFetcher creates a fetcher. A nil browser disables the fallback.
func NewFallbackFetcher(primary simplemirror.Fetcher, browser Renderer, hosts []string, logger *slog.Logger) *FallbackFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	normalized := make([]string, 0, len(hosts))
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			normalized = append(normalized, h)
		}
	}
	return &FallbackFetcher{primary: primary, browser: browser, hosts: normalized, logger: logger}
}

func (f *FallbackFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	data, err := f.primary.Fetch(ctx, rawURL)
	if err == nil && len(data) > 0 {
		return data, nil
	}
	if err == nil {
		err = simplemirror.ErrNoContent
	}

	if f.browser == nil || !f.IsSpecial(rawURL) {
		return nil, err
	}

	f.logger.Info("Primary fetch failed, using browser", "url", rawURL, "err", err)
	encoded, browserErr := f.browser.Render(ctx, rawURL)
	if browserErr != nil {
		return nil, &simplemirror.FetchError{URL: rawURL, Err: errors.Join(err, browserErr)}
	}

	decoded, decodeErr := DecodeBase64Payload(encoded)
	if decodeErr != nil {
		return nil, &simplemirror.FetchError{URL: rawURL, Err: decodeErr}
	}
	if len(decoded) == 0 {
		return nil, &simplemirror.FetchError{URL: rawURL, Err: simplemirror.ErrNoContent}
	}
	return decoded, nil
}

// IsSpecial reports whether rawURL's host or one of its parents is allow-listed.
func (f *FallbackFetcher) IsSpecial(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range f.hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// DecodeBase64Payload decodes standard base64, optionally wrapped as a data
// URL ("data:image/png;base64,...").
func DecodeBase64Payload(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if _, after, ok := strings.Cut(s, ";base64,"); ok {
			s = after
		}
	}
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' {
			return -1
		}
		return r
	}, s)

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(s)
	}
	if err != nil {
		return nil, fmt.Errorf("decode base64 payload: %w", err)
	}
	return data, nil
}
