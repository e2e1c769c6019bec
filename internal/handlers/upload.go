package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lehigh-university-libraries/productphoto/internal/models"
	"github.com/lehigh-university-libraries/productphoto/internal/storage"
)

// HandleUpload stores one product image posted as multipart "file".
// An optional "filename" field names the stored file.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	fileData, header, mimeType, err := readImageFile(w, r)
	if err != nil {
		h.writeError(w, err.Error(), uploadStatus(err))
		return
	}

	filename := r.FormValue("filename")
	if filename == "" {
		filename = fmt.Sprintf("%d_%s", time.Now().UnixMilli(), header.Filename)
	}

	info, err := h.products.Save(filename, fileData)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidFilename) {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.writeError(w, "Failed to upload file: "+err.Error(), http.StatusInternalServerError)
		return
	}

	slog.Info("Product image uploaded", "filename", info.Filename, "size", info.Size, "mimetype", mimeType)

	h.writeJSON(w, http.StatusOK, models.UploadResult{
		Success:  true,
		Filename: info.Filename,
		Path:     info.Path,
		URL:      h.fileURL(r, info.Path),
		Size:     info.Size,
		MimeType: mimeType,
	})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	files, err := h.products.List()
	if err != nil {
		h.writeError(w, "Failed to list files: "+err.Error(), http.StatusInternalServerError)
		return
	}

	for i := range files {
		files[i] = h.withURL(r, files[i])
	}

	h.writeJSON(w, http.StatusOK, models.FileList{
		Success: true,
		Files:   files,
		Count:   len(files),
	})
}

func (h *Handler) HandleFileInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.products.Stat(chi.URLParam(r, "filename"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, models.FileDetail{
		Success:  true,
		FileInfo: h.withURL(r, *info),
	})
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if err := h.products.Delete(filename); err != nil {
		h.writeStoreError(w, err)
		return
	}

	slog.Info("Product image deleted", "filename", filename)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "File deleted successfully",
	})
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrInvalidFilename):
		h.writeError(w, "File not found", http.StatusNotFound)
	default:
		h.writeError(w, err.Error(), http.StatusInternalServerError)
	}
}
