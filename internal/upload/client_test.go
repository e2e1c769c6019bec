package upload

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/productphoto/internal/models"
)

func TestUpload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/upload", r.URL.Path)

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)

		assert.Equal(t, "7791234(1).png", header.Filename)
		assert.Equal(t, "7791234(1).png", r.FormValue("filename"))
		assert.Equal(t, "png-bytes", string(data))

		json.NewEncoder(w).Encode(models.UploadResult{
			Success:  true,
			Filename: "7791234(1).png",
			Path:     "/uploads/products/7791234(1).png",
			URL:      "http://example.test/uploads/products/7791234(1).png",
		})
	}))
	defer server.Close()

	location, err := NewClient(server.URL+"/", time.Second).Upload(context.Background(), []byte("png-bytes"), "7791234(1).png")
	require.NoError(t, err)
	assert.Equal(t, "http://example.test/uploads/products/7791234(1).png", location)
}

func TestUploadFallsBackToPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.UploadResult{Success: true, Path: "/uploads/products/a.png"})
	}))
	defer server.Close()

	location, err := NewClient(server.URL, time.Second).Put(context.Background(), "a.png", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/products/a.png", location)
}

func TestUploadServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(models.ErrorResponse{Error: "Only image files are allowed"})
	}))
	defer server.Close()

	_, err := NewClient(server.URL, time.Second).Upload(context.Background(), []byte("x"), "a.png")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpload))

	var uploadErr *Error
	require.True(t, errors.As(err, &uploadErr))
	assert.Equal(t, http.StatusBadRequest, uploadErr.StatusCode)
	assert.Equal(t, "Only image files are allowed", uploadErr.Message)
}

func TestUploadNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(url, time.Second).Upload(context.Background(), []byte("x"), "a.png")
	assert.True(t, errors.Is(err, ErrUpload))
}

func TestInfoNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/upload/missing.png", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(models.ErrorResponse{Error: "File not found"})
	}))
	defer server.Close()

	_, err := NewClient(server.URL, time.Second).Info(context.Background(), "missing.png")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListAndDelete(t *testing.T) {
	var deleted string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/upload/list":
			json.NewEncoder(w).Encode(models.FileList{
				Success: true,
				Files:   []models.FileInfo{{Filename: "a.png"}, {Filename: "a(1).png"}},
				Count:   2,
			})
		case r.Method == http.MethodDelete:
			deleted = r.URL.Path
			json.NewEncoder(w).Encode(map[string]any{"success": true})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)
	list, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, "a(1).png", list.Files[1].Filename)

	require.NoError(t, c.Delete(context.Background(), "a(1).png"))
	assert.Equal(t, "/api/upload/a(1).png", deleted)
}

func TestDirSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	path, err := DirSink{Dir: dir}.Put(context.Background(), "7791234.png", []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "7791234.png"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}
