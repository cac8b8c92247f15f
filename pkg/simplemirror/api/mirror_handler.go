package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-mirror/pkg/simplemirror"
)

const (
	// MaxBatchSize bounds the number of URLs in one batch request
	MaxBatchSize = 100

	// MaxUploadSize bounds a direct file upload
	MaxUploadSize = 32 << 20
)

// Mirrorer is the part of *simplemirror.Mirrorer the handler needs
type Mirrorer interface {
	Mirror(ctx context.Context, req simplemirror.MirrorRequest) (string, bool)
	MirrorRequests(ctx context.Context, reqs []simplemirror.MirrorRequest) []string
	Store(ctx context.Context, filename string, data []byte, stable bool) (string, error)
}

// MirrorHandler exposes the mirror pipeline over HTTP
type MirrorHandler struct {
	mirrorer Mirrorer
	logger   *slog.Logger
}

func NewMirrorHandler(mirrorer Mirrorer, logger *slog.Logger) *MirrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MirrorHandler{mirrorer: mirrorer, logger: logger}
}

// Routes returns the router for mirror endpoints
func (h *MirrorHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/mirror", h.Mirror)
	r.Post("/mirror/batch", h.MirrorBatch)
	r.Post("/files", h.StoreFile)
	return r
}

// MirrorRequest is the body of POST /mirror
type MirrorRequest struct {
	URL    string `json:"url"`
	Stable bool   `json:"stable"`
}

// MirrorResponse reports the outcome for one source URL. URL is empty and
// Mirrored false when there was nothing to mirror.
type MirrorResponse struct {
	SourceURL string `json:"source_url"`
	URL       string `json:"url,omitempty"`
	Mirrored  bool   `json:"mirrored"`
}

// BatchRequest is the body of POST /mirror/batch
type BatchRequest struct {
	URLs   []string `json:"urls"`
	Stable bool     `json:"stable"`
}

// BatchResponse holds one entry per requested URL in request order; null
// marks a URL with no result.
type BatchResponse struct {
	Results []*string `json:"results"`
}

// StoreResponse is returned by POST /files
type StoreResponse struct {
	FileName string `json:"file_name"`
	URL      string `json:"url"`
}

// Mirror mirrors a single URL
func (h *MirrorHandler) Mirror(w http.ResponseWriter, r *http.Request) {
	var req MirrorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode request", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	url, ok := h.mirrorer.Mirror(r.Context(), simplemirror.MirrorRequest{
		SourceURL: req.URL,
		Stable:    req.Stable,
	})
	render.JSON(w, r, MirrorResponse{SourceURL: req.URL, URL: url, Mirrored: ok})
}

// MirrorBatch mirrors up to MaxBatchSize URLs concurrently
func (h *MirrorHandler) MirrorBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode request", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.URLs) > MaxBatchSize {
		http.Error(w, "too many urls, max "+strconv.Itoa(MaxBatchSize), http.StatusRequestEntityTooLarge)
		return
	}

	reqs := make([]simplemirror.MirrorRequest, len(req.URLs))
	for i, u := range req.URLs {
		reqs[i] = simplemirror.MirrorRequest{SourceURL: u, Stable: req.Stable}
	}

	urls := h.mirrorer.MirrorRequests(r.Context(), reqs)
	results := make([]*string, len(urls))
	for i := range urls {
		if urls[i] != "" {
			results[i] = &urls[i]
		}
	}
	render.JSON(w, r, BatchResponse{Results: results})
}

// StoreFile uploads a multipart "file" under its own name
func (h *MirrorHandler) StoreFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		h.logger.Error("Failed to parse multipart form", "error", err)
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("Failed to read upload", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	stable := false
	if v := r.FormValue("stable"); v != "" {
		if stable, err = strconv.ParseBool(v); err != nil {
			http.Error(w, "invalid stable flag", http.StatusBadRequest)
			return
		}
	}

	filename := header.Filename
	if v := r.FormValue("file_name"); v != "" {
		filename = v
	}

	url, err := h.mirrorer.Store(r.Context(), filename, data, stable)
	if err != nil {
		if errors.Is(err, simplemirror.ErrNoContent) || errors.Is(err, simplemirror.ErrNoFilename) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("Failed to store file", "file_name", filename, "error", err)
		http.Error(w, "failed to store file", http.StatusBadGateway)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, StoreResponse{FileName: filename, URL: url})
}
