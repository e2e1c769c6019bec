package handlers

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/lehigh-university-libraries/productphoto/internal/pipeline"
)

var (
	errNotImage = errors.New("only image files are allowed")
	errTooLarge = errors.New("file too large (max 10MB)")
)

// readImageFile pulls the "file" (or "files") part out of a multipart request,
// enforcing the size limit and an image content type.
func readImageFile(w http.ResponseWriter, r *http.Request) ([]byte, *multipart.FileHeader, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+1024*1024)

	file, header, err := r.FormFile("file")
	if err != nil {
		file, header, err = r.FormFile("files")
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return nil, nil, "", errTooLarge
			}
			return nil, nil, "", fmt.Errorf("no file uploaded: %w", err)
		}
	}
	defer file.Close()

	fileData, err := io.ReadAll(io.LimitReader(file, maxUploadSize+1))
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to read file contents: %w", err)
	}
	if len(fileData) > maxUploadSize {
		return nil, nil, "", errTooLarge
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(fileData)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, nil, "", errNotImage
	}

	return fileData, header, mimeType, nil
}

// saveCapture stores a captured frame under its content hash and returns the path.
func (h *Handler) saveCapture(fileData []byte, filename string) (string, error) {
	if _, _, err := image.DecodeConfig(bytes.NewReader(fileData)); err != nil {
		return "", fmt.Errorf("%w: %w", pipeline.ErrCaptureFailure, err)
	}

	if err := h.ensureCaptureDir(); err != nil {
		return "", fmt.Errorf("failed to create capture directory: %w", err)
	}

	sum := md5.Sum(fileData)
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".jpg"
	}
	capturePath := filepath.Join(h.captureDir, hex.EncodeToString(sum[:])+ext)

	if err := os.WriteFile(capturePath, fileData, 0644); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}

	slog.Info("Capture saved", "path", capturePath, "size", len(fileData))
	return capturePath, nil
}

func uploadStatus(err error) int {
	if errors.Is(err, errTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}
