package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lehigh-university-libraries/productphoto/internal/models"
)

var (
	ErrNotFound        = errors.New("file not found")
	ErrInvalidFilename = errors.New("invalid filename")
)

// PublicPrefix is the URL path product images are served under.
const PublicPrefix = "/uploads/products/"

// ProductStore keeps finished product images on disk.
type ProductStore struct {
	Dir string
}

func NewProductStore(dir string) (*ProductStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	return &ProductStore{Dir: dir}, nil
}

// Path resolves a stored filename, refusing anything that escapes Dir.
func (s *ProductStore) Path(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.Contains(filename, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	return filepath.Join(s.Dir, filename), nil
}

// Save writes data under filename, replacing an existing file of the same name.
func (s *ProductStore) Save(filename string, data []byte) (*models.FileInfo, error) {
	path, err := s.Path(filename)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to save image: %w", err)
	}
	return s.Stat(filename)
}

// Put lets the store act as a pipeline sink when the server processes a session itself.
func (s *ProductStore) Put(_ context.Context, filename string, data []byte) (string, error) {
	info, err := s.Save(filename, data)
	if err != nil {
		return "", err
	}
	return info.Path, nil
}

func (s *ProductStore) Stat(filename string) (*models.FileInfo, error) {
	path, err := s.Path(filename)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && stat.IsDir()) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", filename, err)
	}

	return &models.FileInfo{
		Filename: filename,
		Path:     PublicPrefix + filename,
		Size:     stat.Size(),
		Created:  stat.ModTime(),
	}, nil
}

// List returns every stored file ordered by name.
func (s *ProductStore) List() ([]models.FileInfo, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	files := make([]models.FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := s.Stat(entry.Name())
		if err != nil {
			continue
		}
		files = append(files, *info)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Filename < files[j].Filename
	})
	return files, nil
}

func (s *ProductStore) Delete(filename string) error {
	if _, err := s.Stat(filename); err != nil {
		return err
	}
	path, _ := s.Path(filename)
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete %s: %w", filename, err)
	}
	return nil
}
