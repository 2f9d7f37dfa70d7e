package core

import (
	"bytes"
	"context"
	"errors"
	"html"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"

	"intake.app/console/internal/intakeapi"
	"intake.app/console/internal/metrics"
	"intake.app/console/internal/objectstore"
	"intake.app/console/internal/store"
	"intake.app/console/internal/utils"
)

// ReviewBackend generates and regenerates summaries.
type ReviewBackend interface {
	Summarize(ctx context.Context, sessionID string) (string, error)
	Regenerate(ctx context.Context, sessionID string, req intakeapi.RegenerateRequest) (string, error)
}

// SummarySource returns a summary the backend already uploaded.
type SummarySource interface {
	GetSummary(ctx context.Context, sessionID string) (string, error)
}

// ReviewStore keeps summaries and comments across console restarts.
type ReviewStore interface {
	SaveSummary(sessionID, summary string) error
	GetSummary(sessionID string) (*store.StoredSummary, error)
	ReplaceComments(sessionID string, comments []store.Comment) error
	GetComments(sessionID string) ([]store.Comment, error)
}

type ReviewConfig struct {
	Source  SummarySource // optional
	Store   ReviewStore   // optional
	Metrics *metrics.Metrics
	NewID   func() string
}

// Rect is the on-screen box of a selection, passed back to place the comment input.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Selection is what the reviewer highlighted.
type Selection struct {
	Text        string
	InContainer bool // anchor lies inside the summary
	Box         Rect
}

// PendingSelection is a located selection waiting for its comment.
type PendingSelection struct {
	Text        string `json:"text"`
	StartOffset int    `json:"startOffset"`
	EndOffset   int    `json:"endOffset"`
	Box         Rect   `json:"box"`
}

// Segment is a run of summary text, highlighted when CommentID is set.
type Segment struct {
	Text      string `json:"text"`
	CommentID string `json:"comment_id,omitempty"`
}

type ReviewView struct {
	SessionID  string
	Summary    string
	HasSummary bool
	Comments   []store.Comment
	Pending    *PendingSelection
	Loading    bool
	LastError  string
}

// Review holds one session summary and the reviewer's comments on it.
type Review struct {
	backend   ReviewBackend
	cfg       ReviewConfig
	sessionID string

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	summary    string
	hasSummary bool
	comments   []store.Comment
	pending    *PendingSelection
	loading    int
	lastErr    string
	closed     bool
}

func NewReview(backend ReviewBackend, sessionID string, cfg ReviewConfig) *Review {
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	ctx, cancel := context.WithCancel(context.Background())
	cfg.Metrics.EngineOpened("review")
	return &Review{backend: backend, cfg: cfg, sessionID: sessionID, ctx: ctx, cancel: cancel}
}

func (r *Review) SessionID() string { return r.sessionID }

// Restore loads the last summary and comments kept locally.
func (r *Review) Restore() error {
	if r.cfg.Store == nil {
		return nil
	}
	sum, err := r.cfg.Store.GetSummary(r.sessionID)
	if err != nil {
		return err
	}
	if sum == nil {
		return nil
	}
	comments, err := r.cfg.Store.GetComments(r.sessionID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary = sum.Summary
	r.hasSummary = true
	r.comments = comments
	return nil
}

// LoadCached picks up a summary uploaded by an earlier generation. It does
// nothing when a summary is already held. Reports whether one was loaded.
func (r *Review) LoadCached(ctx context.Context) (bool, error) {
	if r.cfg.Source == nil {
		return false, nil
	}
	r.mu.Lock()
	if r.hasSummary || r.closed {
		r.mu.Unlock()
		return false, nil
	}
	r.mu.Unlock()

	rctx, done := r.requestCtx(ctx)
	defer done()
	text, err := r.cfg.Source.GetSummary(rctx, r.sessionID)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if strings.TrimSpace(text) == "" {
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hasSummary {
		return false, nil
	}
	r.replaceLocked(text)
	return true, nil
}

// Generate asks the backend for a fresh summary. Success replaces the
// summary and drops all comments; failure leaves both as they were.
func (r *Review) Generate(ctx context.Context) error {
	if err := r.begin(); err != nil {
		return err
	}
	rctx, done := r.requestCtx(ctx)
	defer done()
	text, err := r.backend.Summarize(rctx, r.sessionID)
	return r.finish(text, err, "generate")
}

// Regenerate sends the summary with every comment and takes the returned
// text as the new summary.
func (r *Review) Regenerate(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if !r.hasSummary {
		r.mu.Unlock()
		return ErrNoSummary
	}
	req := intakeapi.RegenerateRequest{
		Summary:  r.summary,
		Comments: append([]store.Comment{}, r.comments...),
	}
	r.loading++
	r.lastErr = ""
	r.mu.Unlock()

	rctx, done := r.requestCtx(ctx)
	defer done()
	text, err := r.backend.Regenerate(rctx, r.sessionID, req)
	return r.finish(text, err, "regenerate")
}

func (r *Review) begin() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.loading++
	r.lastErr = ""
	return nil
}

func (r *Review) finish(text string, err error, op string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loading--
	if err != nil {
		log.Printf("Failed to %s summary for session %s: %v", op, r.sessionID, err)
		r.lastErr = userMessage(err)
		return err
	}
	if r.closed {
		return ErrClosed
	}
	r.replaceLocked(text)
	r.persistSummaryLocked()
	r.persistCommentsLocked()
	return nil
}

func (r *Review) replaceLocked(text string) {
	r.summary = text
	r.hasSummary = true
	r.comments = nil
	r.pending = nil
}

// Select locates a highlighted span in the summary. Blank selections,
// selections outside the summary and text that cannot be found are
// dropped: the result is nil with no error.
func (r *Review) Select(sel Selection) (*PendingSelection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if !r.hasSummary {
		return nil, ErrNoSummary
	}
	text := strings.TrimSpace(sel.Text)
	if text == "" || !sel.InContainer {
		return nil, nil
	}
	start, end, ok := utils.FindRuneSpan(r.summary, text)
	if !ok {
		log.Printf("Selection not found in summary for session %s", r.sessionID)
		return nil, nil
	}
	r.pending = &PendingSelection{Text: text, StartOffset: start, EndOffset: end, Box: sel.Box}
	p := *r.pending
	return &p, nil
}

func (r *Review) ClearSelection() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = nil
}

// AddComment attaches text to the pending selection.
func (r *Review) AddComment(text string) (store.Comment, error) {
	text = strings.TrimSpace(text)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return store.Comment{}, ErrClosed
	}
	if r.pending == nil {
		return store.Comment{}, ErrNoSelection
	}
	if text == "" {
		return store.Comment{}, ErrEmptyComment
	}
	c := store.Comment{
		ID:              r.cfg.NewID(),
		HighlightedText: r.pending.Text,
		Comment:         text,
		StartOffset:     r.pending.StartOffset,
		EndOffset:       r.pending.EndOffset,
	}
	r.comments = append(r.comments, c)
	r.pending = nil
	r.persistCommentsLocked()
	return c, nil
}

// DeleteComment removes one comment. Other offsets are untouched.
func (r *Review) DeleteComment(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	for i, c := range r.comments {
		if c.ID == id {
			r.comments = append(r.comments[:i:i], r.comments[i+1:]...)
			r.persistCommentsLocked()
			return nil
		}
	}
	return ErrUnknownComment
}

func (r *Review) View() ReviewView {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := ReviewView{
		SessionID:  r.sessionID,
		Summary:    r.summary,
		HasSummary: r.hasSummary,
		Comments:   append([]store.Comment{}, r.comments...),
		Loading:    r.loading > 0,
		LastError:  r.lastErr,
	}
	if r.pending != nil {
		p := *r.pending
		v.Pending = &p
	}
	return v
}

// Segments splits the summary into plain and highlighted runs.
func (r *Review) Segments() []Segment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return segment(r.summary, r.comments)
}

// RenderHTML renders the summary as markdown when it has no comments, and
// as escaped text with <mark> spans when it does.
func (r *Review) RenderHTML() (string, error) {
	r.mu.Lock()
	summary := r.summary
	comments := append([]store.Comment{}, r.comments...)
	r.mu.Unlock()

	if len(comments) == 0 {
		var buf bytes.Buffer
		if err := goldmark.Convert([]byte(summary), &buf); err != nil {
			return "", err
		}
		return buf.String(), nil
	}
	return highlightHTML(summary, comments), nil
}

// HighlightMode reports how RenderHTML renders the current state.
func (r *Review) HighlightMode() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.comments) > 0
}

func highlightHTML(summary string, comments []store.Comment) string {
	var b strings.Builder
	for _, s := range segment(summary, comments) {
		if s.CommentID == "" {
			b.WriteString(html.EscapeString(s.Text))
			continue
		}
		b.WriteString(`<mark data-comment-id="`)
		b.WriteString(html.EscapeString(s.CommentID))
		b.WriteString(`">`)
		b.WriteString(html.EscapeString(s.Text))
		b.WriteString("</mark>")
	}
	return b.String()
}

// segment splices comment spans into summary in ascending start order. A
// span overlapping an earlier one starts where the earlier one ended.
func segment(summary string, comments []store.Comment) []Segment {
	runes := []rune(summary)
	sorted := append([]store.Comment{}, comments...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartOffset < sorted[j].StartOffset })

	var segs []Segment
	cursor := 0
	for _, c := range sorted {
		start := max(c.StartOffset, cursor)
		end := min(c.EndOffset, len(runes))
		if start >= end {
			continue
		}
		if start > cursor {
			segs = append(segs, Segment{Text: string(runes[cursor:start])})
		}
		segs = append(segs, Segment{Text: string(runes[start:end]), CommentID: c.ID})
		cursor = end
	}
	if cursor < len(runes) {
		segs = append(segs, Segment{Text: string(runes[cursor:])})
	}
	return segs
}

func (r *Review) persistSummaryLocked() {
	if r.cfg.Store == nil {
		return
	}
	if err := r.cfg.Store.SaveSummary(r.sessionID, r.summary); err != nil {
		log.Printf("Failed to store summary for session %s: %v", r.sessionID, err)
	}
}

func (r *Review) persistCommentsLocked() {
	if r.cfg.Store == nil {
		return
	}
	if err := r.cfg.Store.ReplaceComments(r.sessionID, r.comments); err != nil {
		log.Printf("Failed to store comments for session %s: %v", r.sessionID, err)
	}
}

func (r *Review) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.cancel()
	r.cfg.Metrics.EngineClosed("review")
}

func (r *Review) requestCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	rctx, cancel := context.WithCancel(r.ctx)
	stop := context.AfterFunc(ctx, cancel)
	return rctx, func() {
		stop()
		cancel()
	}
}

// userMessage prefers the backend's detail text.
func userMessage(err error) string {
	var apiErr *intakeapi.APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return err.Error()
}
