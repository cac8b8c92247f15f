package memory_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-mirror/pkg/simplemirror"
	memorystorage "github.com/tendant/simple-mirror/pkg/simplemirror/storage/memory"
)

func TestMemoryBackend(t *testing.T) {
	backend := memorystorage.New("https://cdn.test/objects/")
	ctx := context.Background()
	testKey := "new/image/stable/photo one.jpg"
	testData := []byte("Hello, World! This is test data.")

	t.Run("Put", func(t *testing.T) {
		status, err := backend.Put(ctx, testKey, testData, "image/jpeg")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, 1, backend.Len())
	})

	t.Run("PublicURL", func(t *testing.T) {
		assert.Equal(t, "https://cdn.test/objects/new/image/stable/photo%20one.jpg", backend.PublicURL(testKey))
	})

	t.Run("Verify", func(t *testing.T) {
		assert.NoError(t, backend.Verify(ctx, backend.PublicURL(testKey)))
		assert.ErrorIs(t, backend.Verify(ctx, backend.PublicURL("missing.jpg")), simplemirror.ErrObjectNotFound)
	})

	t.Run("ServeHTTP", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/new/image/stable/photo%20one.jpg", nil)
		rec := httptest.NewRecorder()
		backend.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
		assert.Equal(t, testData, rec.Body.Bytes())

		rec = httptest.NewRecorder()
		backend.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, backend.Delete(ctx, testKey))
		assert.ErrorIs(t, backend.Delete(ctx, testKey), simplemirror.ErrObjectNotFound)
		assert.Equal(t, 0, backend.Len())
		assert.ErrorIs(t, backend.Verify(ctx, backend.PublicURL(testKey)), simplemirror.ErrObjectNotFound)
	})
}

func TestMemoryBackend_CopiesInput(t *testing.T) {
	backend := memorystorage.New("")
	data := []byte("abc")
	_, err := backend.Put(context.Background(), "k", data, "")
	require.NoError(t, err)
	data[0] = 'z'

	rec := httptest.NewRecorder()
	backend.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/k", nil))
	assert.Equal(t, "abc", rec.Body.String())
	assert.Equal(t, "http://localhost:8080/objects/k", backend.PublicURL("k"))
}
