package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-mirror/pkg/simplemirror"
)

func TestHTTPFetcher_Fetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok.png", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("png-bytes"))
	})
	mux.HandleFunc("/empty.png", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/gone.png", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	})
	mux.HandleFunc("/error.png", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/big.bin", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 100))
	})
	mux.HandleFunc("/slow-headers.png", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_, _ = w.Write([]byte("late"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	fetcher := NewHTTPFetcher(Config{MaxBytes: 50, ReadTimeout: 100 * time.Millisecond}, nil)
	ctx := context.Background()

	t.Run("OK", func(t *testing.T) {
		data, err := fetcher.Fetch(ctx, server.URL+"/ok.png")
		require.NoError(t, err)
		assert.Equal(t, "png-bytes", string(data))
	})

	t.Run("EmptyBody", func(t *testing.T) {
		_, err := fetcher.Fetch(ctx, server.URL+"/empty.png")
		assert.ErrorIs(t, err, simplemirror.ErrNoContent)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := fetcher.Fetch(ctx, server.URL+"/missing.png")
		assert.ErrorIs(t, err, simplemirror.ErrNoContent)

		var fetchErr *simplemirror.FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	})

	t.Run("Gone", func(t *testing.T) {
		_, err := fetcher.Fetch(ctx, server.URL+"/gone.png")
		assert.ErrorIs(t, err, simplemirror.ErrNoContent)
	})

	t.Run("ServerError", func(t *testing.T) {
		_, err := fetcher.Fetch(ctx, server.URL+"/error.png")
		require.Error(t, err)
		assert.NotErrorIs(t, err, simplemirror.ErrNoContent)
	})

	t.Run("TooLarge", func(t *testing.T) {
		_, err := fetcher.Fetch(ctx, server.URL+"/big.bin")
		assert.True(t, IsResponseTooLarge(err))
	})

	t.Run("ReadTimeout", func(t *testing.T) {
		_, err := fetcher.Fetch(ctx, server.URL+"/slow-headers.png")
		assert.Error(t, err)
	})

	t.Run("ConnectionRefused", func(t *testing.T) {
		closed := httptest.NewServer(http.NotFoundHandler())
		closed.Close()
		_, err := fetcher.Fetch(ctx, closed.URL+"/a.png")
		assert.Error(t, err)
	})
}

func TestHTTPFetcher_Verify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/missing.jpg") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("stored"))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(DefaultConfig(), nil)

	assert.NoError(t, fetcher.Verify(context.Background(), server.URL+"/new/image/stable/a.jpg"))
	assert.Error(t, fetcher.Verify(context.Background(), server.URL+"/new/image/stable/missing.jpg"))
}
