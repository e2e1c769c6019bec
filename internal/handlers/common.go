package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/lehigh-university-libraries/productphoto/internal/models"
	"github.com/lehigh-university-libraries/productphoto/internal/storage"
)

// maxUploadSize mirrors the 10 MiB limit of the upload endpoint.
const maxUploadSize = 10 * 1024 * 1024

// BarcodeReader decodes a product code from a photo.
type BarcodeReader interface {
	Read(ctx context.Context, image []byte) (string, error)
}

type Handler struct {
	sessions   *storage.SessionManager
	products   *storage.ProductStore
	scanner    BarcodeReader
	captureDir string
	publicURL  string
}

type Options struct {
	Sessions   *storage.SessionManager
	Products   *storage.ProductStore
	Scanner    BarcodeReader
	CaptureDir string
	// PublicURL overrides the scheme and host used when building file URLs.
	PublicURL string
}

func New(opts Options) *Handler {
	return &Handler{
		sessions:   opts.Sessions,
		products:   opts.Products,
		scanner:    opts.Scanner,
		captureDir: opts.CaptureDir,
		publicURL:  strings.TrimRight(opts.PublicURL, "/"),
	}
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message)
	} else {
		slog.Warn(message, "status", code)
	}
	h.writeJSON(w, code, models.ErrorResponse{Error: message})
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter) (*storage.ActiveSession, bool) {
	active, exists := h.sessions.Current()
	if !exists {
		h.writeError(w, "No active session", http.StatusNotFound)
		return nil, false
	}
	return active, true
}

// File operation helpers
func (h *Handler) ensureCaptureDir() error {
	return os.MkdirAll(h.captureDir, 0755)
}

// fileURL turns a stored path into an absolute URL for the caller.
func (h *Handler) fileURL(r *http.Request, path string) string {
	if h.publicURL != "" {
		return h.publicURL + path
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + path
}

func (h *Handler) withURL(r *http.Request, info models.FileInfo) models.FileInfo {
	info.URL = h.fileURL(r, info.Path)
	return info
}
