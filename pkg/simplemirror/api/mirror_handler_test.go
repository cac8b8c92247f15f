package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-mirror/pkg/simplemirror"
)

// fakeMirrorer mirrors every URL containing "ok" to a fixed CDN URL.
type fakeMirrorer struct {
	requests []simplemirror.MirrorRequest
	stored   map[string][]byte
	storeErr error
}

func (f *fakeMirrorer) Mirror(ctx context.Context, req simplemirror.MirrorRequest) (string, bool) {
	f.requests = append(f.requests, req)
	if strings.Contains(req.SourceURL, "ok") {
		return "https://cdn.test/" + req.SourceURL[strings.LastIndex(req.SourceURL, "/")+1:], true
	}
	return "", false
}

func (f *fakeMirrorer) MirrorRequests(ctx context.Context, reqs []simplemirror.MirrorRequest) []string {
	out := make([]string, len(reqs))
	for i, req := range reqs {
		out[i], _ = f.Mirror(ctx, req)
	}
	return out
}

func (f *fakeMirrorer) Store(ctx context.Context, filename string, data []byte, stable bool) (string, error) {
	if f.storeErr != nil {
		return "", f.storeErr
	}
	if len(data) == 0 {
		return "", simplemirror.ErrNoContent
	}
	if f.stored == nil {
		f.stored = make(map[string][]byte)
	}
	f.stored[filename] = data
	return "https://cdn.test/new/stable/" + filename, nil
}

func setupMirrorHandlerTest(t *testing.T) (*fakeMirrorer, http.Handler) {
	t.Helper()
	fake := &fakeMirrorer{}
	return fake, NewMirrorHandler(fake, nil).Routes()
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMirrorHandler_Mirror(t *testing.T) {
	t.Run("Mirrored", func(t *testing.T) {
		fake, router := setupMirrorHandlerTest(t)

		rec := postJSON(t, router, "/mirror", MirrorRequest{URL: "https://example.com/ok.png", Stable: true})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp MirrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Mirrored)
		assert.Equal(t, "https://cdn.test/ok.png", resp.URL)
		assert.Equal(t, "https://example.com/ok.png", resp.SourceURL)
		assert.True(t, fake.requests[0].Stable)
	})

	t.Run("NoResult", func(t *testing.T) {
		_, router := setupMirrorHandlerTest(t)

		rec := postJSON(t, router, "/mirror", MirrorRequest{URL: "https://example.com/tiny.png"})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp MirrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Mirrored)
		assert.Empty(t, resp.URL)
	})

	t.Run("MissingURL", func(t *testing.T) {
		_, router := setupMirrorHandlerTest(t)
		rec := postJSON(t, router, "/mirror", MirrorRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		_, router := setupMirrorHandlerTest(t)
		req := httptest.NewRequest(http.MethodPost, "/mirror", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestMirrorHandler_MirrorBatch(t *testing.T) {
	t.Run("IndexAligned", func(t *testing.T) {
		_, router := setupMirrorHandlerTest(t)

		rec := postJSON(t, router, "/mirror/batch", BatchRequest{URLs: []string{
			"https://example.com/ok1.png",
			"https://example.com/bad.png",
			"https://example.com/ok2.png",
		}})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t,
			`{"results":["https://cdn.test/ok1.png",null,"https://cdn.test/ok2.png"]}`,
			rec.Body.String())
	})

	t.Run("Empty", func(t *testing.T) {
		_, router := setupMirrorHandlerTest(t)
		rec := postJSON(t, router, "/mirror/batch", BatchRequest{URLs: []string{}})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"results":[]}`, rec.Body.String())
	})

	t.Run("TooMany", func(t *testing.T) {
		_, router := setupMirrorHandlerTest(t)
		rec := postJSON(t, router, "/mirror/batch", BatchRequest{URLs: make([]string, MaxBatchSize+1)})
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func multipartRequest(t *testing.T, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/files", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestMirrorHandler_StoreFile(t *testing.T) {
	t.Run("Created", func(t *testing.T) {
		fake, router := setupMirrorHandlerTest(t)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, multipartRequest(t, "logo.png", []byte("png"), map[string]string{"stable": "true"}))
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp StoreResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "logo.png", resp.FileName)
		assert.Equal(t, "https://cdn.test/new/stable/logo.png", resp.URL)
		assert.Equal(t, []byte("png"), fake.stored["logo.png"])
	})

	t.Run("FileNameOverride", func(t *testing.T) {
		fake, router := setupMirrorHandlerTest(t)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, multipartRequest(t, "upload.bin", []byte("x"), map[string]string{"file_name": "banner.jpg"}))
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, fake.stored, "banner.jpg")
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, router := setupMirrorHandlerTest(t)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, multipartRequest(t, "", nil, map[string]string{"stable": "true"}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("EmptyFile", func(t *testing.T) {
		_, router := setupMirrorHandlerTest(t)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, multipartRequest(t, "a.png", nil, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("InvalidStable", func(t *testing.T) {
		_, router := setupMirrorHandlerTest(t)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, multipartRequest(t, "a.png", []byte("x"), map[string]string{"stable": "maybe"}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("StoreFailure", func(t *testing.T) {
		fake, router := setupMirrorHandlerTest(t)
		fake.storeErr = &simplemirror.StorageError{Key: "k", Op: "put", Err: simplemirror.ErrUploadFailed}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, multipartRequest(t, "a.png", []byte("x"), nil))
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}
