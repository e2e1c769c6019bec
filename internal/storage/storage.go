package storage

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/productphoto/internal/models"
	"github.com/lehigh-university-libraries/productphoto/internal/naming"
	"github.com/lehigh-university-libraries/productphoto/internal/pipeline"
)

// PipelineFactory builds the pipeline that will own a new session's photos.
type PipelineFactory func(session models.ProductSession) *pipeline.Pipeline

// ActiveSession is the handle callers pass around while a product is being shot.
type ActiveSession struct {
	Session  models.ProductSession
	Pipeline *pipeline.Pipeline
}

// SessionManager holds the single active product session.
type SessionManager struct {
	current *ActiveSession
	factory PipelineFactory
	mu      sync.RWMutex
}

func New(factory PipelineFactory) *SessionManager {
	return &SessionManager{
		factory: factory,
	}
}

// Start opens a session for productCode, discarding whatever session was active.
func (s *SessionManager) Start(productCode string) (*ActiveSession, error) {
	if err := naming.Validate(productCode); err != nil {
		return nil, err
	}

	session := models.ProductSession{
		ID:          uuid.New().String(),
		ProductCode: productCode,
		CreatedAt:   time.Now(),
	}
	active := &ActiveSession{
		Session:  session,
		Pipeline: s.factory(session),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = active
	return active, nil
}

func (s *SessionManager) Current() (*ActiveSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.current != nil
}

// Finish tears down the active session and returns it.
func (s *SessionManager) Finish() (*ActiveSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous := s.current
	s.current = nil
	return previous, previous != nil
}
