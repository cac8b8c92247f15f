package fs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/tendant/simple-mirror/pkg/simplemirror"
	"github.com/tendant/simple-mirror/pkg/simplemirror/urlstrategy"
)

// Config options for the filesystem backend
type Config struct {
	BaseDir       string // directory objects are written below
	PublicBaseURL string // URL prefix the directory is served under
}

// Backend is a filesystem implementation of simplemirror.BlobStore. Object
// keys map to paths below BaseDir.
type Backend struct {
	baseDir string
	urls    *urlstrategy.CDNStrategy
	files   http.Handler
}

var (
	_ simplemirror.BlobStore = (*Backend)(nil)
	_ simplemirror.Verifier  = (*Backend)(nil)
)

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}
	if config.PublicBaseURL == "" {
		return nil, errors.New("public base url is required")
	}
	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{
		baseDir: config.BaseDir,
		urls:    urlstrategy.NewCDNStrategy(config.PublicBaseURL),
		files:   http.FileServer(http.Dir(config.BaseDir)),
	}, nil
}

func (b *Backend) path(objectKey string) (string, error) {
	rel := filepath.FromSlash(objectKey)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("invalid object key %q", objectKey)
	}
	return filepath.Join(b.baseDir, rel), nil
}

// Put writes data through a temporary file so readers never see a partial
// object.
func (b *Backend) Put(ctx context.Context, objectKey string, data []byte, contentType string) (int, error) {
	filePath, err := b.path(objectKey)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(filePath), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return 0, fmt.Errorf("failed to move file into place: %w", err)
	}
	return http.StatusOK, nil
}

func (b *Backend) PublicURL(objectKey string) string {
	return b.urls.PublicURL(objectKey)
}

// Verify checks that the object behind publicURL exists on disk
func (b *Backend) Verify(ctx context.Context, publicURL string) error {
	escaped, ok := strings.CutPrefix(publicURL, b.urls.CDNBaseURL+"/")
	if !ok || escaped == "" {
		return fmt.Errorf("url %s is not served by this store", publicURL)
	}
	objectKey, err := url.PathUnescape(escaped)
	if err != nil {
		return fmt.Errorf("invalid public url %s: %w", publicURL, err)
	}
	filePath, err := b.path(objectKey)
	if err != nil {
		return err
	}
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return simplemirror.ErrObjectNotFound
	} else if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	return nil
}

// Delete deletes an object and prunes directories left empty
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	filePath, err := b.path(objectKey)
	if err != nil {
		return err
	}
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return simplemirror.ErrObjectNotFound
	}
	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	b.cleanupEmptyDirectories(filepath.Dir(filePath))
	return nil
}

// cleanupEmptyDirectories recursively removes empty directories up to baseDir
func (b *Backend) cleanupEmptyDirectories(dir string) {
	if dir == filepath.Clean(b.baseDir) {
		return
	}
	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}

// ServeHTTP serves stored files. Mount it with the base URL path stripped.
func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.files.ServeHTTP(w, r)
}
