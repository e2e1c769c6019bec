package report

import (
	"fmt"
	"os"

	"github.com/lehigh-university-libraries/productphoto/internal/pipeline"
	"github.com/parquet-go/parquet-go"
)

// Rows flattens a report into manifest rows, one per photo.
func Rows(r pipeline.Report) []ManifestRow {
	rows := make([]ManifestRow, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		row := ManifestRow{
			SessionID:   r.Session.ID,
			ProductCode: r.Session.ProductCode,
			Sequence:    int64(o.SequenceNumber),
			Filename:    o.Filename,
			State:       o.State.String(),
			Error:       o.Error,
			Degraded:    o.Degraded,
			FinishedAt:  r.FinishedAt.Unix(),
		}
		if o.Image != nil {
			row.Location = o.Image.ProcessedURI
		}
		rows = append(rows, row)
	}
	return rows
}

func WriteParquet(path string, r pipeline.Report) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[ManifestRow](file)
	if _, err := writer.Write(Rows(r)); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}
