package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/productphoto/internal/pipeline"
	"gopkg.in/yaml.v3"
)

// RunSummary is the top section of a YAML run report
type RunSummary struct {
	SessionID   string `yaml:"sessionid"`
	ProductCode string `yaml:"productcode"`
	StartedAt   string `yaml:"startedat"`
	FinishedAt  string `yaml:"finishedat"`
	Total       int    `yaml:"total"`
	Completed   int    `yaml:"completed"`
	Failed      int    `yaml:"failed"`
	Degraded    int    `yaml:"degraded"`
}

// PhotoResult is a single photo in the YAML run report
type PhotoResult struct {
	Sequence       int    `yaml:"sequence"`
	Filename       string `yaml:"filename"`
	State          string `yaml:"state"`
	Location       string `yaml:"location,omitempty"`
	Original       string `yaml:"original,omitempty"`
	Error          string `yaml:"error,omitempty"`
	Degraded       bool   `yaml:"degraded"`
	DegradedReason string `yaml:"degradedreason,omitempty"`
}

// RunDocument is the complete YAML document
type RunDocument struct {
	Summary RunSummary    `yaml:"summary"`
	Photos  []PhotoResult `yaml:"photos"`
}

// ManifestRow is one row of the Parquet manifest
type ManifestRow struct {
	SessionID   string `parquet:"session_id"`
	ProductCode string `parquet:"product_code"`
	Sequence    int64  `parquet:"sequence"`
	Filename    string `parquet:"filename"`
	State       string `parquet:"state"`
	Location    string `parquet:"location"`
	Error       string `parquet:"error"`
	Degraded    bool   `parquet:"degraded"`
	FinishedAt  int64  `parquet:"finished_at_unix"`
}

// Write saves the report, choosing the format from the file extension.
func Write(path string, r pipeline.Report) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return WriteYAML(path, r)
	case ".parquet":
		return WriteParquet(path, r)
	default:
		return fmt.Errorf("unsupported report format: %s (supported: .yaml, .parquet)", ext)
	}
}

// BuildDocument converts a pipeline report into its YAML shape.
func BuildDocument(r pipeline.Report) RunDocument {
	doc := RunDocument{
		Summary: RunSummary{
			SessionID:   r.Session.ID,
			ProductCode: r.Session.ProductCode,
			StartedAt:   r.StartedAt.Format(time.RFC3339),
			FinishedAt:  r.FinishedAt.Format(time.RFC3339),
			Total:       r.Progress.Total,
			Completed:   r.Progress.Completed,
			Failed:      r.Progress.Failed,
			Degraded:    r.Degraded(),
		},
		Photos: make([]PhotoResult, 0, len(r.Outcomes)),
	}

	for _, o := range r.Outcomes {
		result := PhotoResult{
			Sequence:       o.SequenceNumber,
			Filename:       o.Filename,
			State:          o.State.String(),
			Error:          o.Error,
			Degraded:       o.Degraded,
			DegradedReason: o.DegradedReason,
		}
		if o.Image != nil {
			result.Location = o.Image.ProcessedURI
			result.Original = o.Image.OriginalURI
		}
		doc.Photos = append(doc.Photos, result)
	}
	return doc
}

func WriteYAML(path string, r pipeline.Report) error {
	data, err := yaml.Marshal(BuildDocument(r))
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write YAML file: %w", err)
	}
	return nil
}
