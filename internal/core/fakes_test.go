package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"intake.app/console/internal/intakeapi"
	"intake.app/console/internal/objectstore"
	"intake.app/console/internal/store"
)

// fakeBackend is an in-memory IntakeBackend.
type fakeBackend struct {
	mu sync.Mutex

	next     func(req intakeapi.ChatRequest) (*intakeapi.ChatResponse, error)
	chatReqs []intakeapi.ChatRequest

	saved   []intakeapi.MessageRecord
	saveErr func(rec intakeapi.MessageRecord) error

	records []intakeapi.MessageRecord
	listErr error

	uploads   []string
	uploadErr error

	summary      string
	summarizeErr error
	regenReqs    []intakeapi.RegenerateRequest
	regenSummary string
	regenErr     error

	sessions    []store.Session
	sessionsErr error
	saves       []string
}

func (f *fakeBackend) NextQuestion(ctx context.Context, req intakeapi.ChatRequest) (*intakeapi.ChatResponse, error) {
	f.mu.Lock()
	f.chatReqs = append(f.chatReqs, req)
	next := f.next
	f.mu.Unlock()
	if next == nil {
		return &intakeapi.ChatResponse{Response: "Tell me more."}, nil
	}
	return next(req)
}

func (f *fakeBackend) SaveMessage(ctx context.Context, rec intakeapi.MessageRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		if err := f.saveErr(rec); err != nil {
			return err
		}
	}
	f.saved = append(f.saved, rec)
	return nil
}

func (f *fakeBackend) ListMessages(ctx context.Context, sessionID string) ([]intakeapi.MessageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records, f.listErr
}

func (f *fakeBackend) UploadTranscript(ctx context.Context, sessionID string, userID *string) (*intakeapi.UploadResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, sessionID)
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &intakeapi.UploadResponse{SessionID: sessionID}, nil
}

func (f *fakeBackend) Summarize(ctx context.Context, sessionID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.summary, f.summarizeErr
}

func (f *fakeBackend) Regenerate(ctx context.Context, sessionID string, req intakeapi.RegenerateRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regenReqs = append(f.regenReqs, req)
	return f.regenSummary, f.regenErr
}

func (f *fakeBackend) ListSessions(ctx context.Context) ([]store.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.Session(nil), f.sessions...), f.sessionsErr
}

func (f *fakeBackend) GetSession(ctx context.Context, sessionID string) (*store.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.SessionID == sessionID {
			out := s
			return &out, nil
		}
	}
	return nil, &intakeapi.APIError{StatusCode: 404, Detail: "Session not found"}
}

func (f *fakeBackend) SaveTranscript(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, sessionID)
	return nil
}

func (f *fakeBackend) savedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func (f *fakeBackend) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

// fakeBucket serves transcripts and summaries from maps.
type fakeBucket struct {
	transcripts map[string][]store.TranscriptEntry
	summaries   map[string]string
}

func (b *fakeBucket) GetTranscript(ctx context.Context, sessionID string) ([]store.TranscriptEntry, error) {
	t, ok := b.transcripts[sessionID]
	if !ok {
		return nil, objectstore.ErrNotFound
	}
	return t, nil
}

func (b *fakeBucket) GetSummary(ctx context.Context, sessionID string) (string, error) {
	s, ok := b.summaries[sessionID]
	if !ok {
		return "", objectstore.ErrNotFound
	}
	return s, nil
}

// fakeTitles returns a fixed title.
type fakeTitles struct {
	title string
	err   error
}

func (t fakeTitles) GenerateProjectTitle(ctx context.Context, basis string) (string, error) {
	return t.title, t.err
}

var errBackendDown = errors.New("connection refused")

// fixedClock advances by one second per call.
func fixedClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2025, 3, 4, 15, 4, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
