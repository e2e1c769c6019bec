package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DirSink writes results into a local directory instead of uploading them,
// the way the browser build downloads each photo.
type DirSink struct {
	Dir string
}

func (d DirSink) Put(_ context.Context, filename string, data []byte) (string, error) {
	if err := os.MkdirAll(d.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(d.Dir, filepath.Base(filename))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
