package core

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"intake.app/console/internal/flow"
	"intake.app/console/internal/metrics"
	"intake.app/console/internal/store"
)

// TranscriptSource reads finalized transcripts.
type TranscriptSource interface {
	GetTranscript(ctx context.Context, sessionID string) ([]store.TranscriptEntry, error)
}

// BucketReader is the object storage view the review side uses.
type BucketReader interface {
	TranscriptSource
	SummarySource
}

// ReviewService keeps the summary review and department tagging state of
// each session being reviewed.
type ReviewService struct {
	backend IntakeBackend
	bucket  BucketReader
	dbStore LocalStore
	flow    flow.Document
	metrics *metrics.Metrics
	now     func() time.Time

	mu       sync.Mutex
	reviews  map[string]*Review
	routings map[string]*Routing
}

func NewReviewService(backend IntakeBackend, bucket BucketReader, db LocalStore, doc flow.Document, m *metrics.Metrics) *ReviewService {
	return &ReviewService{
		backend:  backend,
		bucket:   bucket,
		dbStore:  db,
		flow:     doc,
		metrics:  m,
		now:      time.Now,
		reviews:  map[string]*Review{},
		routings: map[string]*Routing{},
	}
}

// Transcript returns the finalized transcript of a session from the bucket.
func (s *ReviewService) Transcript(ctx context.Context, sessionID string) ([]store.TranscriptEntry, error) {
	if s.bucket == nil {
		return nil, errors.New("transcript storage is not configured")
	}
	entries, err := s.bucket.GetTranscript(ctx, sessionID)
	if err != nil {
		log.Printf("Error fetching transcript for session %s: %v", sessionID, err)
		return nil, err
	}
	return entries, nil
}

// Review returns the open review of a session, restoring it from the local
// store or the bucket the first time.
func (s *ReviewService) Review(ctx context.Context, sessionID string) *Review {
	s.mu.Lock()
	if r, ok := s.reviews[sessionID]; ok {
		s.mu.Unlock()
		return r
	}
	s.mu.Unlock()

	cfg := ReviewConfig{Metrics: s.metrics}
	if s.bucket != nil {
		cfg.Source = s.bucket
	}
	if s.dbStore != nil {
		cfg.Store = s.dbStore
	}
	r := NewReview(s.backend, sessionID, cfg)
	if err := r.Restore(); err != nil {
		log.Printf("Failed to restore review of session %s: %v", sessionID, err)
	}
	if loaded, err := r.LoadCached(ctx); err != nil {
		log.Printf("Failed to load cached summary of session %s: %v", sessionID, err)
	} else if loaded {
		log.Printf("Loaded cached summary of session %s", sessionID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.reviews[sessionID]; ok {
		r.Close()
		return existing
	}
	s.reviews[sessionID] = r
	return r
}

// Routing returns the tagging state of a session.
func (s *ReviewService) Routing(sessionID string) (*Routing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.routings[sessionID]; ok {
		return r, nil
	}
	var st RoutingStore
	if s.dbStore != nil {
		st = s.dbStore
	}
	r, err := NewRouting(sessionID, s.flow, st, s.now)
	if err != nil {
		return nil, err
	}
	s.routings[sessionID] = r
	return r, nil
}

func (s *ReviewService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.reviews {
		r.Close()
		delete(s.reviews, id)
	}
}
