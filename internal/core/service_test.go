package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"intake.app/console/internal/flow"
	"intake.app/console/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	db, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestService(b *fakeBackend, db LocalStore, titles TitleGenerator) *ConversationService {
	return NewConversationService(b, db, titles, ServiceConfig{
		Flow:          flow.Default(),
		AutoSaveDelay: time.Hour,
		Now:           fixedClock(),
	})
}

func TestServiceStartReusesEngine(t *testing.T) {
	s := newTestService(&fakeBackend{}, nil, nil)
	defer s.Close()
	ctx := context.Background()

	fresh := s.Start(ctx, NewSessionID)
	if again := s.Start(ctx, fresh.SessionID()); again != fresh {
		t.Fatalf("expected the open engine to be reused")
	}
	if other := s.Start(ctx, ""); other == fresh {
		t.Fatalf("empty id must start a new session")
	}
}

func TestServiceCompleteDropsEngine(t *testing.T) {
	b := &fakeBackend{}
	s := newTestService(b, nil, nil)
	ctx := context.Background()

	c := s.Start(ctx, "")
	s.SubmitText(ctx, c, SeedMessageID, "An app")
	if err := s.Complete(ctx, c); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, ok := s.Get(c.SessionID()); ok {
		t.Fatalf("completed engine still registered")
	}
	if b.uploadCount() != 1 {
		t.Fatalf("expected upload")
	}
}

func TestServiceGeneratesTitleOnce(t *testing.T) {
	db := newTestStore(t)
	b := &fakeBackend{}
	s := newTestService(b, db, fakeTitles{title: "\"Campus Parking App\"\n"})
	defer s.Close()
	ctx := context.Background()

	c := s.Start(ctx, "")
	if err := s.SubmitText(ctx, c, SeedMessageID, "Build a mobile app for campus parking permits"); err != nil {
		t.Fatalf("SubmitText: %v", err)
	}
	if !waitFor(func() bool { return c.Title() == "Campus Parking App" }) {
		t.Fatalf("title not generated, got %q", c.Title())
	}
	if !waitFor(func() bool {
		title, _ := db.GetTitle(c.SessionID())
		return title != nil && *title == "Campus Parking App"
	}) {
		t.Fatalf("title not stored")
	}

	// a resumed engine picks the stored title up
	s2 := newTestService(&fakeBackend{}, db, nil)
	defer s2.Close()
	if got := s2.Start(ctx, c.SessionID()).Title(); got != "Campus Parking App" {
		t.Fatalf("resumed title = %q", got)
	}
}

func TestServiceTitleFailureKeepsFallback(t *testing.T) {
	s := newTestService(&fakeBackend{}, nil, fakeTitles{err: errors.New("quota exceeded")})
	defer s.Close()
	ctx := context.Background()

	c := s.Start(ctx, "")
	s.SubmitText(ctx, c, SeedMessageID, "A booking site")
	time.Sleep(20 * time.Millisecond)
	if got := c.Title(); got != "A booking site" {
		t.Fatalf("title = %q", got)
	}
}

func TestServiceListSessionsFailure(t *testing.T) {
	s := newTestService(&fakeBackend{sessionsErr: errBackendDown}, nil, nil)

	list := s.ListSessions(context.Background())
	if list.Sessions == nil || len(list.Sessions) != 0 {
		t.Fatalf("expected empty list, got %#v", list.Sessions)
	}
	if list.Error != "Failed to load sessions: connection refused" {
		t.Fatalf("banner = %q", list.Error)
	}
}

func TestServiceListSessionsFillsTitles(t *testing.T) {
	db := newTestStore(t)
	db.SaveTitle("2", "Stored Title")
	backendTitle := "Backend Title"
	b := &fakeBackend{sessions: []store.Session{
		{SessionID: "1", Title: &backendTitle},
		{SessionID: "2"},
		{SessionID: "3"},
	}}
	s := newTestService(b, db, nil)

	list := s.ListSessions(context.Background())
	if list.Error != "" || len(list.Sessions) != 3 {
		t.Fatalf("unexpected list %+v", list)
	}
	if *list.Sessions[0].Title != "Backend Title" || *list.Sessions[1].Title != "Stored Title" || list.Sessions[2].Title != nil {
		t.Fatalf("unexpected titles %+v", list.Sessions)
	}

	if _, err := s.GetSession(context.Background(), "missing"); err == nil {
		t.Fatalf("expected error for unknown session")
	}
	sess, err := s.GetSession(context.Background(), "2")
	if err != nil || *sess.Title != "Stored Title" {
		t.Fatalf("GetSession = %+v, %v", sess, err)
	}
}

func TestServiceDashboard(t *testing.T) {
	db := newTestStore(t)
	var sessions []store.Session
	for _, id := range []string{"1", "2", "3", "4", "5", "6"} {
		sessions = append(sessions, store.Session{SessionID: id})
	}
	s := newTestService(&fakeBackend{sessions: sessions}, db, nil)

	db.SaveSummary("1", "a")
	db.SaveSummary("2", "b")
	db.SaveRouting(store.Routing{ID: "r1", SessionID: "1", Departments: []string{"Backend", "Design"}, RoutedAt: time.Now()})
	db.SaveRouting(store.Routing{ID: "r2", SessionID: "2", Departments: []string{"Design"}, RoutedAt: time.Now()})

	d := s.Dashboard(context.Background())
	if d.TotalSessions != 6 || len(d.RecentSessions) != 5 {
		t.Fatalf("unexpected counts %+v", d)
	}
	if d.ProjectsRouted != 2 || d.TopDepartment != "Design" || d.TopDepartmentCount != 2 {
		t.Fatalf("unexpected routing stats %+v", d)
	}
	if d.AwaitingSummary != 4 {
		t.Fatalf("awaiting = %d", d.AwaitingSummary)
	}
}

func TestReviewServiceTranscriptAndRouting(t *testing.T) {
	db := newTestStore(t)
	bucket := &fakeBucket{
		transcripts: map[string][]store.TranscriptEntry{"42": {{Role: "ai", Message: "Hi"}, {Role: "client", Message: "An app"}}},
		summaries:   map[string]string{"42": "Cached."},
	}
	s := NewReviewService(&fakeBackend{}, bucket, db, flow.Default(), nil)
	defer s.Close()
	ctx := context.Background()

	entries, err := s.Transcript(ctx, "42")
	if err != nil || len(entries) != 2 {
		t.Fatalf("Transcript = %v, %v", entries, err)
	}
	if _, err := s.Transcript(ctx, "7"); err == nil {
		t.Fatalf("expected not found")
	}

	r := s.Review(ctx, "42")
	if r.View().Summary != "Cached." {
		t.Fatalf("cached summary not loaded")
	}
	if s.Review(ctx, "42") != r {
		t.Fatalf("review should be reused")
	}

	rt, err := s.Routing("42")
	if err != nil {
		t.Fatalf("Routing: %v", err)
	}
	if again, _ := s.Routing("42"); again != rt {
		t.Fatalf("routing should be reused")
	}

	empty := NewReviewService(&fakeBackend{}, nil, nil, flow.Default(), nil)
	if _, err := empty.Transcript(ctx, "42"); err == nil {
		t.Fatalf("expected error without storage")
	}
}
