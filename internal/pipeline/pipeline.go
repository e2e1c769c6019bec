package pipeline

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/productphoto/internal/images"
	"github.com/lehigh-university-libraries/productphoto/internal/models"
	"github.com/lehigh-university-libraries/productphoto/internal/naming"
)

// Source loads the bytes behind a captured photo's URI.
type Source interface {
	Read(ctx context.Context, uri string) ([]byte, error)
}

// Remover strips the background from an encoded image.
type Remover interface {
	Remove(ctx context.Context, image []byte) ([]byte, error)
}

// Compositor flattens an encoded image onto white and re-encodes it.
type Compositor interface {
	Flatten(data []byte) ([]byte, image.Rectangle, error)
}

// Sink stores a finished image and returns where it ended up.
type Sink interface {
	Put(ctx context.Context, filename string, data []byte) (string, error)
}

const defaultFetchTimeout = 60 * time.Second

type Deps struct {
	Source     Source
	Remover    Remover
	Compositor Compositor
	Sink       Sink
}

type Option func(*Pipeline)

// WithProgress registers a callback invoked after every processed item.
func WithProgress(fn func(Progress)) Option {
	return func(p *Pipeline) {
		p.onProgress = fn
	}
}

// WithCompletion registers a callback invoked once when a run ends.
func WithCompletion(fn func(Report)) Option {
	return func(p *Pipeline) {
		p.onComplete = fn
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

type item struct {
	photo   CapturedPhoto
	outcome *Outcome
}

// Pipeline owns the photo queue of one product session and walks it through
// removal, compositing and storage one item at a time.
type Pipeline struct {
	mu      sync.RWMutex
	session models.ProductSession
	items   []item
	running bool

	deps       Deps
	onProgress func(Progress)
	onComplete func(Report)
	logger     *slog.Logger
}

func New(session models.ProductSession, deps Deps, opts ...Option) *Pipeline {
	if deps.Source == nil {
		deps.Source = images.NewFetcher(defaultFetchTimeout)
	}
	p := &Pipeline{
		session: session,
		deps:    deps,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) Session() models.ProductSession {
	return p.session
}

func (p *Pipeline) Running() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Enqueue appends a pending photo with the next sequence number.
func (p *Pipeline) Enqueue(uri string) (CapturedPhoto, error) {
	if strings.TrimSpace(uri) == "" {
		return CapturedPhoto{}, fmt.Errorf("%w: empty uri", ErrInvalidPhoto)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return CapturedPhoto{}, ErrRunning
	}

	photo := CapturedPhoto{
		URI:            uri,
		SequenceNumber: len(p.items) + 1,
		Status:         PhotoStatus{State: Pending},
	}
	p.items = append(p.items, item{photo: photo})

	p.logger.Debug("Photo enqueued", "product_code", p.session.ProductCode, "sequence", photo.SequenceNumber)
	return photo, nil
}

// Remove deletes the pending photo at the 0-based index and renumbers the
// photos after it. Processed photos keep their position and filename.
func (p *Pipeline) Remove(index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrRunning
	}
	if index < 0 || index >= len(p.items) {
		return fmt.Errorf("%w: %d (have %d)", ErrOutOfRange, index, len(p.items))
	}

	if state := p.items[index].photo.Status.State; state != Pending {
		return fmt.Errorf("%w: photo %d is %s", ErrProcessed, index+1, state)
	}

	// Photos are only appended and runs walk them in order, so everything
	// after a pending photo is pending too.
	p.items = append(p.items[:index], p.items[index+1:]...)
	for i := index; i < len(p.items); i++ {
		p.items[i].photo.SequenceNumber = i + 1
	}

	p.logger.Debug("Photo removed", "product_code", p.session.ProductCode, "index", index, "remaining", len(p.items))
	return nil
}

// Status returns a copy of the queue that is safe to read while a run is in flight.
func (p *Pipeline) Status() Summary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	summary := Summary{
		Session: p.session,
		Total:   len(p.items),
		Running: p.running,
		Items:   make([]CapturedPhoto, len(p.items)),
	}
	for i, it := range p.items {
		summary.Items[i] = it.photo
		switch it.photo.Status.State {
		case Completed:
			summary.Completed++
		case Failed:
			summary.Failed++
		}
	}
	return summary
}

// RunAll processes every pending photo in sequence order. A failing item is
// marked Failed and the run moves on; only session-level problems (nothing
// captured, a run already in flight) are returned as errors.
func (p *Pipeline) RunAll(ctx context.Context) ([]Outcome, error) {
	total, err := p.claim()
	if err != nil {
		return nil, err
	}
	return p.run(ctx, total), nil
}

// Start claims the pipeline like RunAll and processes the queue in the
// background. Results arrive through the progress and completion callbacks
// and Status.
func (p *Pipeline) Start(ctx context.Context) error {
	total, err := p.claim()
	if err != nil {
		return err
	}
	go p.run(ctx, total)
	return nil
}

func (p *Pipeline) claim() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return 0, ErrRunning
	}
	if len(p.items) == 0 {
		return 0, ErrNoPhotos
	}
	p.running = true
	return len(p.items), nil
}

func (p *Pipeline) run(ctx context.Context, total int) []Outcome {
	startedAt := time.Now()
	p.logger.Info("Processing photos", "product_code", p.session.ProductCode, "session_id", p.session.ID, "photos", total)

	for i := 0; i < total; i++ {
		p.mu.Lock()
		if p.items[i].photo.Status.State != Pending {
			p.mu.Unlock()
			continue
		}
		if err := p.setStateLocked(i, Processing, ""); err != nil {
			p.mu.Unlock()
			p.logger.Error("Skipping photo", "sequence", i+1, "err", err)
			continue
		}
		photo := p.items[i].photo
		p.mu.Unlock()

		outcome := p.process(ctx, photo)

		p.mu.Lock()
		if err := p.setStateLocked(i, outcome.State, outcome.Error); err != nil {
			p.logger.Error("Unable to record outcome", "sequence", photo.SequenceNumber, "err", err)
		}
		p.items[i].outcome = &outcome
		progress := p.progressLocked()
		p.mu.Unlock()

		if outcome.State == Failed {
			p.logger.Error("Photo failed", "filename", outcome.Filename, "err", outcome.Err)
		} else {
			p.logger.Info("Photo processed", "filename", outcome.Filename, "location", outcome.Image.ProcessedURI, "degraded", outcome.Degraded)
		}

		if p.onProgress != nil {
			p.onProgress(progress)
		}
	}

	p.mu.Lock()
	outcomes := p.outcomesLocked()
	progress := p.progressLocked()
	p.running = false
	p.mu.Unlock()

	report := Report{
		Session:    p.session,
		Outcomes:   outcomes,
		Progress:   progress,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
	}
	p.logger.Info("All photos processed", "product_code", p.session.ProductCode, "progress", progress.String(), "degraded", report.Degraded())

	if p.onComplete != nil {
		p.onComplete(report)
	}

	return outcomes
}

func (p *Pipeline) process(ctx context.Context, photo CapturedPhoto) (outcome Outcome) {
	filename := naming.File(p.session.ProductCode, photo.SequenceNumber-1)
	outcome = Outcome{
		SequenceNumber: photo.SequenceNumber,
		Filename:       filename,
	}

	fail := func(err error) Outcome {
		outcome.State = Failed
		outcome.Err = err
		outcome.Error = err.Error()
		outcome.Image = nil
		return outcome
	}

	defer func() {
		if r := recover(); r != nil {
			outcome = fail(fmt.Errorf("panic while processing photo: %v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return fail(fmt.Errorf("processing cancelled: %w", err))
	}

	original, err := p.deps.Source.Read(ctx, photo.URI)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrCaptureFailure, err))
	}

	foreground := original
	if p.deps.Remover != nil {
		cutout, err := p.deps.Remover.Remove(ctx, original)
		if err != nil {
			degraded := fmt.Errorf("%w: %w", ErrRemovalDegraded, err)
			p.logger.Warn("Background removal failed, using original image", "filename", filename, "err", err)
			outcome.Degraded = true
			outcome.RemovalErr = degraded
			outcome.DegradedReason = degraded.Error()
		} else {
			foreground = cutout
		}
	}

	flattened, _, err := p.deps.Compositor.Flatten(foreground)
	if err != nil {
		if outcome.Degraded {
			return fail(fmt.Errorf("%w: %w", ErrCaptureFailure, err))
		}
		return fail(fmt.Errorf("failed to composite image: %w", err))
	}

	location, err := p.deps.Sink.Put(ctx, filename, flattened)
	if err != nil {
		return fail(err)
	}

	outcome.State = Completed
	outcome.Image = &models.ProcessedImage{
		OriginalURI:  photo.URI,
		ProcessedURI: location,
		Filename:     filename,
	}
	return outcome
}

func (p *Pipeline) setStateLocked(i int, next State, reason string) error {
	current := p.items[i].photo.Status.State
	if !current.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, next)
	}
	p.items[i].photo.Status = PhotoStatus{State: next, Reason: reason}
	return nil
}

func (p *Pipeline) progressLocked() Progress {
	progress := Progress{Total: len(p.items)}
	for _, it := range p.items {
		switch it.photo.Status.State {
		case Completed:
			progress.Completed++
			progress.Processed++
		case Failed:
			progress.Failed++
			progress.Processed++
		}
	}
	return progress
}

func (p *Pipeline) outcomesLocked() []Outcome {
	outcomes := make([]Outcome, len(p.items))
	for i, it := range p.items {
		if it.outcome != nil {
			outcomes[i] = *it.outcome
			continue
		}
		outcomes[i] = Outcome{
			SequenceNumber: it.photo.SequenceNumber,
			Filename:       naming.File(p.session.ProductCode, i),
			State:          it.photo.Status.State,
			Error:          it.photo.Status.Reason,
		}
	}
	return outcomes
}
