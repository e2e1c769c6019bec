package pipeline

import (
	"fmt"
	"time"

	"github.com/lehigh-university-libraries/productphoto/internal/models"
)

// Progress is emitted after every item, whatever its outcome.
type Progress struct {
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Processed int `json:"processed"`
	Total     int `json:"total"`
}

func (p Progress) String() string {
	if p.Failed > 0 {
		return fmt.Sprintf("%d/%d completed, %d failed", p.Completed, p.Total, p.Failed)
	}
	return fmt.Sprintf("%d/%d completed", p.Completed, p.Total)
}

// Outcome is the final result for one item of a run.
type Outcome struct {
	SequenceNumber int                    `json:"sequence_number"`
	Filename       string                 `json:"filename"`
	State          State                  `json:"state"`
	Err            error                  `json:"-"`
	Error          string                 `json:"error,omitempty"`
	Degraded       bool                   `json:"degraded"`
	RemovalErr     error                  `json:"-"`
	DegradedReason string                 `json:"degraded_reason,omitempty"`
	Image          *models.ProcessedImage `json:"image,omitempty"`
}

// Summary is a read-only snapshot of the queue.
type Summary struct {
	Session   models.ProductSession `json:"session"`
	Completed int                   `json:"completed"`
	Failed    int                   `json:"failed"`
	Total     int                   `json:"total"`
	Running   bool                  `json:"running"`
	Items     []CapturedPhoto       `json:"items"`
}

// Report is handed to the completion callback once a run ends.
type Report struct {
	Session    models.ProductSession `json:"session"`
	Outcomes   []Outcome             `json:"outcomes"`
	Progress   Progress              `json:"progress"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
}

// Degraded counts the outcomes that used the original image.
func (r Report) Degraded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Degraded {
			n++
		}
	}
	return n
}
