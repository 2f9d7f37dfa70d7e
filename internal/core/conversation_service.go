package core

import (
	"context"
	"log"
	"sync"
	"time"

	"intake.app/console/internal/flow"
	"intake.app/console/internal/intakeapi"
	"intake.app/console/internal/metrics"
	"intake.app/console/internal/store"
)

// IntakeBackend is everything the console asks of the intake API.
type IntakeBackend interface {
	ConversationBackend
	ReviewBackend
	ListSessions(ctx context.Context) ([]store.Session, error)
	GetSession(ctx context.Context, sessionID string) (*store.Session, error)
	SaveTranscript(ctx context.Context, sessionID string) error
}

// LocalStore is the console's own persistence.
type LocalStore interface {
	ThreadMirror
	ReviewStore
	RoutingStore
	ListRoutings() ([]store.Routing, error)
	SummarizedSessionIDs() ([]string, error)
	SaveTitle(sessionID, title string) error
	GetTitle(sessionID string) (*string, error)
}

type ServiceConfig struct {
	Flow          flow.Document
	AutoSaveDelay time.Duration
	Metrics       *metrics.Metrics
	Now           func() time.Time
}

// ConversationService keeps one conversation engine per open session.
type ConversationService struct {
	backend IntakeBackend
	dbStore LocalStore
	titles  TitleGenerator // For title generation, optional
	cfg     ServiceConfig

	mu       sync.Mutex
	sessions map[string]*Conversation
	titled   map[string]bool
}

func NewConversationService(backend IntakeBackend, db LocalStore, titles TitleGenerator, cfg ServiceConfig) *ConversationService {
	return &ConversationService{
		backend:  backend,
		dbStore:  db,
		titles:   titles,
		cfg:      cfg,
		sessions: map[string]*Conversation{},
		titled:   map[string]bool{},
	}
}

// Start returns the open engine for sessionID, or opens one. An empty id or
// "new" starts a fresh session; any other id resumes the persisted thread.
func (s *ConversationService) Start(ctx context.Context, sessionID string) *Conversation {
	if sessionID != "" && sessionID != NewSessionID {
		if c, ok := s.Get(sessionID); ok {
			return c
		}
	}

	conv := NewConversation(s.backend, ConversationConfig{
		SessionID:     sessionID,
		Seed:          s.cfg.Flow.Seed,
		AutoSaveDelay: s.cfg.AutoSaveDelay,
		TitleLimit:    s.cfg.Flow.TitleLimit,
		Mirror:        s.mirror(),
		Metrics:       s.cfg.Metrics,
		Now:           s.cfg.Now,
	})
	if err := conv.Resume(ctx); err != nil {
		log.Printf("Resume of session %s fell back to local state: %v", conv.SessionID(), err)
	}
	if s.dbStore != nil {
		if title, err := s.dbStore.GetTitle(conv.SessionID()); err != nil {
			log.Printf("Failed to read title of session %s: %v", conv.SessionID(), err)
		} else if title != nil {
			conv.SetTitle(*title)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[conv.SessionID()]; ok {
		conv.Close()
		return existing
	}
	s.sessions[conv.SessionID()] = conv
	return conv
}

func (s *ConversationService) mirror() ThreadMirror {
	if s.dbStore == nil {
		return nil
	}
	return s.dbStore
}

func (s *ConversationService) Get(sessionID string) (*Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.sessions[sessionID]
	return c, ok
}

func (s *ConversationService) SelectOption(ctx context.Context, conv *Conversation, msgID, option string) error {
	err := conv.SelectOption(ctx, msgID, option)
	s.afterAnswer(conv)
	return err
}

func (s *ConversationService) SubmitOther(ctx context.Context, conv *Conversation, msgID, text string) error {
	err := conv.SubmitOther(ctx, msgID, text)
	s.afterAnswer(conv)
	return err
}

func (s *ConversationService) SubmitText(ctx context.Context, conv *Conversation, msgID, text string) error {
	err := conv.SubmitText(ctx, msgID, text)
	s.afterAnswer(conv)
	return err
}

func (s *ConversationService) SubmitSections(ctx context.Context, conv *Conversation, msgID string, answers []string) error {
	err := conv.SubmitSections(ctx, msgID, answers)
	s.afterAnswer(conv)
	return err
}

// Complete finalizes the session and drops its engine.
func (s *ConversationService) Complete(ctx context.Context, conv *Conversation) error {
	err := conv.Complete(ctx)
	s.mu.Lock()
	if s.sessions[conv.SessionID()] == conv {
		delete(s.sessions, conv.SessionID())
	}
	s.mu.Unlock()
	return err
}

// afterAnswer starts title generation once the first answer exists.
func (s *ConversationService) afterAnswer(conv *Conversation) {
	if s.titles == nil {
		return
	}
	basis := conv.FirstAnswer()
	if basis == "" {
		return
	}
	s.mu.Lock()
	if s.titled[conv.SessionID()] {
		s.mu.Unlock()
		return
	}
	s.titled[conv.SessionID()] = true
	s.mu.Unlock()

	go s.generateAndSaveProjectTitle(conv, basis)
}

func (s *ConversationService) generateAndSaveProjectTitle(conv *Conversation, basis string) {
	sessionID := conv.SessionID()
	log.Printf("Attempting to generate title for session %s", sessionID)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	title, err := s.titles.GenerateProjectTitle(ctx, basis)
	if err != nil {
		log.Printf("Failed to generate title for session %s: %v", sessionID, err)
		return
	}
	title = CleanTitle(title)
	if title == "" {
		return
	}
	conv.SetTitle(title)

	if s.dbStore == nil {
		return
	}
	if err := s.dbStore.SaveTitle(sessionID, title); err != nil {
		log.Printf("Failed to save generated title '%s' for session %s: %v", title, sessionID, err)
	} else {
		log.Printf("Successfully generated and saved title '%s' for session %s", title, sessionID)
	}
}

// SessionList is a sessions page: the rows, plus a banner when the backend failed.
type SessionList struct {
	Sessions []store.Session
	Error    string
}

// ListSessions never fails: a backend error yields an empty list and a banner.
func (s *ConversationService) ListSessions(ctx context.Context) SessionList {
	sessions, err := s.backend.ListSessions(ctx)
	if err != nil {
		log.Printf("Error listing sessions: %v", err)
		return SessionList{Sessions: []store.Session{}, Error: "Failed to load sessions: " + userMessage(err)}
	}
	for i := range sessions {
		s.fillTitle(&sessions[i])
	}
	return SessionList{Sessions: sessions}
}

func (s *ConversationService) GetSession(ctx context.Context, sessionID string) (*store.Session, error) {
	sess, err := s.backend.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.fillTitle(sess)
	return sess, nil
}

// fillTitle prefers a live engine's title, then a stored one, then the backend's.
func (s *ConversationService) fillTitle(sess *store.Session) {
	if c, ok := s.Get(sess.SessionID); ok {
		t := c.Title()
		if t != DefaultTitle {
			sess.Title = &t
			return
		}
	}
	if sess.Title != nil || s.dbStore == nil {
		return
	}
	if title, err := s.dbStore.GetTitle(sess.SessionID); err == nil && title != nil {
		sess.Title = title
	}
}

func (s *ConversationService) SaveTranscript(ctx context.Context, sessionID string) error {
	return s.backend.SaveTranscript(ctx, sessionID)
}

// Dashboard is the landing page summary.
type Dashboard struct {
	TotalSessions      int
	ProjectsRouted     int
	TopDepartment      string
	TopDepartmentCount int
	AwaitingSummary    int
	RecentSessions     []store.Session
	Error              string
}

func (s *ConversationService) Dashboard(ctx context.Context) Dashboard {
	list := s.ListSessions(ctx)
	d := Dashboard{TotalSessions: len(list.Sessions), Error: list.Error}
	recent := list.Sessions
	if len(recent) > 5 {
		recent = recent[:5]
	}
	d.RecentSessions = recent

	if s.dbStore == nil {
		return d
	}
	routings, err := s.dbStore.ListRoutings()
	if err != nil {
		log.Printf("Error listing routings: %v", err)
	}
	d.ProjectsRouted = len(routings)
	d.TopDepartment, d.TopDepartmentCount = topDepartment(s.cfg.Flow.Departments, routings)

	summarized, err := s.dbStore.SummarizedSessionIDs()
	if err != nil {
		log.Printf("Error listing summaries: %v", err)
	}
	have := map[string]bool{}
	for _, id := range summarized {
		have[id] = true
	}
	for _, sess := range list.Sessions {
		if !have[sess.SessionID] {
			d.AwaitingSummary++
		}
	}
	return d
}

// topDepartment counts routings per department; ties go to catalogue order.
func topDepartment(catalogue []string, routings []store.Routing) (string, int) {
	counts := map[string]int{}
	for _, r := range routings {
		for _, d := range r.Departments {
			counts[d]++
		}
	}
	best, bestCount := "", 0
	for _, d := range catalogue {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best, bestCount
}

// Close shuts every open engine.
func (s *ConversationService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.sessions {
		c.Close()
		delete(s.sessions, id)
	}
}

var _ IntakeBackend = (*intakeapi.Client)(nil)
