package core

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"intake.app/console/internal/flow"
	"intake.app/console/internal/intakeapi"
	"intake.app/console/internal/metrics"
	"intake.app/console/internal/store"
	"intake.app/console/internal/utils"
)

const (
	// NewSessionID is the navigation value that asks for a fresh session.
	NewSessionID  = "new"
	SeedMessageID = "1"
	DefaultTitle  = "New Project"

	defaultAutoSaveDelay = time.Second
	defaultTitleLimit    = 40
)

// ConversationBackend is the slice of the intake API a conversation needs.
type ConversationBackend interface {
	NextQuestion(ctx context.Context, req intakeapi.ChatRequest) (*intakeapi.ChatResponse, error)
	SaveMessage(ctx context.Context, rec intakeapi.MessageRecord) error
	ListMessages(ctx context.Context, sessionID string) ([]intakeapi.MessageRecord, error)
	UploadTranscript(ctx context.Context, sessionID string, userID *string) (*intakeapi.UploadResponse, error)
}

// ThreadMirror keeps a local copy of a thread.
type ThreadMirror interface {
	SaveThread(sessionID string, msgs []store.Message) error
	GetThread(sessionID string) ([]store.Message, error)
}

type ConversationConfig struct {
	SessionID     string // empty or NewSessionID starts a fresh session
	UserID        *string
	Seed          flow.Seed
	AutoSaveDelay time.Duration
	TitleLimit    int
	Mirror        ThreadMirror // optional
	Metrics       *metrics.Metrics
	Now           func() time.Time
}

// ConversationView is a consistent copy of the engine state.
type ConversationView struct {
	SessionID string
	Title     string
	Messages  []store.Message
	CurrentID string // empty when the thread is complete
	Awaiting  bool
	OtherOpen bool
	Pending   bool
	LastError string
	Closed    bool
}

// Conversation drives one intake session: it owns the message log, decides
// which question is current and keeps the backend copy of the log in sync.
type Conversation struct {
	backend ConversationBackend
	cfg     ConversationConfig
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	sessionID string
	existing  bool
	messages  []store.Message
	currentID string
	otherOpen bool
	pending   int
	lastErr   string
	title     string
	seq       uint64
	timer     *time.Timer
	closed    bool

	saveMu sync.Mutex
}

func NewConversation(backend ConversationBackend, cfg ConversationConfig) *Conversation {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.AutoSaveDelay <= 0 {
		cfg.AutoSaveDelay = defaultAutoSaveDelay
	}
	if cfg.TitleLimit <= 0 {
		cfg.TitleLimit = defaultTitleLimit
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conversation{
		backend: backend,
		cfg:     cfg,
		now:     cfg.Now,
		ctx:     ctx,
		cancel:  cancel,
	}

	now := c.now()
	if cfg.SessionID == "" || cfg.SessionID == NewSessionID {
		c.sessionID = utils.SessionID(now)
	} else {
		c.sessionID = cfg.SessionID
		c.existing = true
	}
	c.messages = []store.Message{seedMessage(cfg.Seed, now)}
	c.currentID = SeedMessageID
	cfg.Metrics.EngineOpened("conversation")
	return c
}

func seedMessage(seed flow.Seed, now time.Time) store.Message {
	text := seed.Text
	if text == "" {
		text = flow.Default().Seed.Text
	}
	var in store.Input = store.TextInput{}
	if seed.InputType == string(store.KindOptions) {
		if opts := NormalizeOptions(seed.Options); len(opts) > 0 {
			in = store.OptionsInput{Options: opts, AllowOther: true}
		}
	}
	return store.Message{
		ID:        SeedMessageID,
		Sender:    store.SenderAssistant,
		Text:      text,
		Input:     in,
		Timestamp: utils.DisplayTime(now),
		CreatedAt: now,
	}
}

func (c *Conversation) SessionID() string {
	return c.sessionID
}

// Resume loads the persisted log of an existing session. A session with no
// stored messages keeps the seed question. When the backend cannot be
// reached the local mirror is used if it has a copy; the fetch error is
// returned either way.
func (c *Conversation) Resume(ctx context.Context) error {
	if !c.existing {
		return nil
	}
	rctx, done := c.requestCtx(ctx)
	defer done()

	records, err := c.backend.ListMessages(rctx, c.sessionID)
	if err != nil {
		log.Printf("Failed to load messages for session %s: %v", c.sessionID, err)
		c.resumeFromMirror()
		return err
	}
	if len(records) == 0 {
		return nil
	}

	msgs := make([]store.Message, 0, len(records))
	for _, rec := range records {
		msgs = append(msgs, messageFromRecord(rec))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.replaceLocked(msgs)
	log.Printf("Resumed session %s with %d messages", c.sessionID, len(msgs))
	return nil
}

func (c *Conversation) resumeFromMirror() {
	if c.cfg.Mirror == nil {
		return
	}
	msgs, err := c.cfg.Mirror.GetThread(c.sessionID)
	if err != nil {
		log.Printf("Failed to read local copy of session %s: %v", c.sessionID, err)
		return
	}
	if len(msgs) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replaceLocked(msgs)
	log.Printf("Resumed session %s from local copy with %d messages", c.sessionID, len(msgs))
}

func (c *Conversation) replaceLocked(msgs []store.Message) {
	c.messages = msgs
	c.currentID = ""
	c.recomputeCurrentLocked()
}

// recomputeCurrentLocked points at the most recent unanswered assistant
// message. With none the tracked id is kept.
func (c *Conversation) recomputeCurrentLocked() {
	for i := len(c.messages) - 1; i >= 0; i-- {
		m := c.messages[i]
		if m.Sender == store.SenderAssistant && !m.Answered() {
			c.currentID = m.ID
			return
		}
	}
}

// View returns a copy of the current state.
func (c *Conversation) View() ConversationView {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := make([]store.Message, len(c.messages))
	copy(msgs, c.messages)
	v := ConversationView{
		SessionID: c.sessionID,
		Title:     c.titleLocked(),
		Messages:  msgs,
		CurrentID: c.currentID,
		OtherOpen: c.otherOpen,
		Pending:   c.pending > 0,
		LastError: c.lastErr,
		Closed:    c.closed,
	}
	if m := c.findLocked(c.currentID); m != nil && !m.Answered() {
		v.Awaiting = true
	}
	return v
}

// Title is the generated title when one was set, otherwise the first
// answer cut to the title limit.
func (c *Conversation) Title() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.titleLocked()
}

func (c *Conversation) titleLocked() string {
	if c.title != "" {
		return c.title
	}
	if first := strings.TrimSpace(c.firstAnswerLocked()); first != "" {
		return utils.Truncate(first, c.cfg.TitleLimit)
	}
	return DefaultTitle
}

func (c *Conversation) SetTitle(title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.title = title
}

// FirstAnswer is the respondent's opening answer, shown inline in the seed
// question or echoed as a respondent message.
func (c *Conversation) FirstAnswer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.firstAnswerLocked()
}

func (c *Conversation) firstAnswerLocked() string {
	for _, m := range c.messages {
		if m.ID == SeedMessageID && m.Sender == store.SenderAssistant && m.CustomResponse != "" {
			return m.CustomResponse
		}
		if m.Sender == store.SenderRespondent {
			return m.Text
		}
	}
	return ""
}

// SelectOption answers an options question. Selecting "Other" only opens the
// free-text field.
func (c *Conversation) SelectOption(ctx context.Context, msgID, option string) error {
	c.mu.Lock()
	m, err := c.currentLocked(msgID)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	in, ok := m.Input.(store.OptionsInput)
	if !ok {
		c.mu.Unlock()
		return ErrWrongInput
	}
	if !in.Has(option) {
		c.mu.Unlock()
		return ErrUnknownOption
	}
	if option == store.OtherOption {
		c.otherOpen = true
		c.mu.Unlock()
		return nil
	}
	m.SelectedOption = option
	c.otherOpen = false
	c.appendLocked(c.newMessageLocked(store.SenderRespondent, option))
	c.mu.Unlock()

	return c.advance(ctx, option, store.KindOptions)
}

// SubmitOther answers an options question with the typed free text.
func (c *Conversation) SubmitOther(ctx context.Context, msgID, text string) error {
	text = strings.TrimSpace(text)

	c.mu.Lock()
	m, err := c.currentLocked(msgID)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if !c.otherOpen {
		c.mu.Unlock()
		return ErrOtherNotOpen
	}
	if text == "" {
		c.mu.Unlock()
		return ErrEmptyAnswer
	}
	m.SelectedOption = store.OtherOption
	m.CustomResponse = text
	c.otherOpen = false
	c.appendLocked(c.newMessageLocked(store.SenderRespondent, text))
	c.mu.Unlock()

	return c.advance(ctx, text, store.KindOptions)
}

// SubmitText answers a text question. The seed question shows its answer
// inline, so it gets no respondent echo.
func (c *Conversation) SubmitText(ctx context.Context, msgID, text string) error {
	text = strings.TrimSpace(text)

	c.mu.Lock()
	m, err := c.currentLocked(msgID)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if m.Input == nil || m.Input.Kind() != store.KindText {
		c.mu.Unlock()
		return ErrWrongInput
	}
	if text == "" {
		c.mu.Unlock()
		return ErrEmptyAnswer
	}
	m.SelectedOption = store.SelectedText
	m.CustomResponse = text
	if msgID != SeedMessageID {
		c.appendLocked(c.newMessageLocked(store.SenderRespondent, text))
	}
	c.mu.Unlock()

	return c.advance(ctx, text, store.KindText)
}

// SubmitSections answers every section of a mixed question at once. The
// answers are sent newline-joined in section order.
func (c *Conversation) SubmitSections(ctx context.Context, msgID string, answers []string) error {
	c.mu.Lock()
	m, err := c.currentLocked(msgID)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	in, ok := m.Input.(store.MixedInput)
	if !ok {
		c.mu.Unlock()
		return ErrWrongInput
	}
	cleaned, err := validateSections(in.Sections, answers)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	composite := strings.Join(cleaned, "\n")
	m.SelectedOption = store.SelectedSections
	m.CustomResponse = composite
	c.appendLocked(c.newMessageLocked(store.SenderRespondent, composite))
	c.mu.Unlock()

	return c.advance(ctx, composite, store.KindMixed)
}

func validateSections(sections []store.Section, answers []string) ([]string, error) {
	if len(answers) != len(sections) {
		return nil, ErrIncompleteSections
	}
	cleaned := make([]string, len(answers))
	for i, s := range sections {
		a := strings.TrimSpace(answers[i])
		if a == "" || a == store.OtherOption {
			return nil, ErrIncompleteSections
		}
		if s.Kind == store.KindOptions && !s.AllowOther && !contains(s.Options, a) {
			return nil, fmt.Errorf("section %d: %w", i+1, ErrUnknownOption)
		}
		cleaned[i] = a
	}
	return cleaned, nil
}

// advance asks the backend for the next question after an answer was
// recorded. On failure the recorded answer stays and no question is added.
func (c *Conversation) advance(ctx context.Context, query string, kind store.InputKind) error {
	c.cfg.Metrics.Answer(string(kind))

	c.mu.Lock()
	c.pending++
	c.lastErr = ""
	c.scheduleSaveLocked()
	c.mu.Unlock()

	rctx, done := c.requestCtx(ctx)
	defer done()
	resp, err := c.backend.NextQuestion(rctx, intakeapi.ChatRequest{UserQuery: query, SessionID: c.sessionID})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending--
	if err != nil {
		log.Printf("Failed to fetch next question for session %s: %v", c.sessionID, err)
		c.lastErr = err.Error()
		return err
	}
	if c.closed {
		return ErrClosed
	}

	q := DecodeQuestion(resp)
	next := c.newMessageLocked(store.SenderAssistant, q.Text)
	next.Input = q.Input
	c.appendLocked(next)
	c.currentID = next.ID
	c.otherOpen = false
	c.scheduleSaveLocked()
	return nil
}

func (c *Conversation) currentLocked(msgID string) (*store.Message, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if msgID == "" || msgID != c.currentID {
		return nil, ErrNotCurrent
	}
	m := c.findLocked(msgID)
	if m == nil || m.Sender != store.SenderAssistant || m.Answered() {
		return nil, ErrNotCurrent
	}
	return m, nil
}

func (c *Conversation) findLocked(id string) *store.Message {
	if id == "" {
		return nil
	}
	for i := range c.messages {
		if c.messages[i].ID == id {
			return &c.messages[i]
		}
	}
	return nil
}

func (c *Conversation) newMessageLocked(sender store.Sender, text string) store.Message {
	now := c.now()
	c.seq++
	prefix := "ai"
	if sender == store.SenderRespondent {
		prefix = "client"
	}
	return store.Message{
		ID:        utils.ClockID(prefix, now, c.seq),
		Sender:    sender,
		Text:      text,
		Timestamp: utils.DisplayTime(now),
		CreatedAt: now,
	}
}

func (c *Conversation) appendLocked(m store.Message) {
	c.messages = append(c.messages, m)
}

// hasRespondentLocked reports whether the respondent has answered anything,
// counting an answer shown inline in the seed question.
func (c *Conversation) hasRespondentLocked() bool {
	return c.firstAnswerLocked() != ""
}

// scheduleSaveLocked restarts the auto-save debounce once the respondent has
// said anything.
func (c *Conversation) scheduleSaveLocked() {
	if c.closed || !c.hasRespondentLocked() {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.cfg.AutoSaveDelay, func() {
		if err := c.Flush(c.ctx); err != nil {
			log.Printf("Auto-save for session %s incomplete: %v", c.sessionID, err)
		}
	})
}

// Flush saves every message of the current log, one request per message.
// A failed save is logged and the remaining messages are still sent.
func (c *Conversation) Flush(ctx context.Context) error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	snapshot := make([]store.Message, len(c.messages))
	copy(snapshot, c.messages)
	c.mu.Unlock()

	var firstErr error
	failed := 0
	for _, m := range snapshot {
		if err := c.backend.SaveMessage(ctx, recordFromMessage(c.sessionID, m)); err != nil {
			log.Printf("Failed to save message %s of session %s: %v", m.ID, c.sessionID, err)
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if c.cfg.Mirror != nil {
		if err := c.cfg.Mirror.SaveThread(c.sessionID, snapshot); err != nil {
			log.Printf("Failed to write local copy of session %s: %v", c.sessionID, err)
		}
	}
	if firstErr != nil {
		return fmt.Errorf("%d of %d messages not saved: %w", failed, len(snapshot), firstErr)
	}
	return nil
}

// Complete saves the whole log and finalizes the transcript when the
// respondent has answered anything. The engine is closed afterwards whatever
// the outcome; the returned error is informational.
func (c *Conversation) Complete(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	hasAnswers := c.hasRespondentLocked()
	c.mu.Unlock()
	defer c.Close()

	if !hasAnswers {
		return nil
	}

	rctx, done := c.requestCtx(ctx)
	defer done()
	if err := c.Flush(rctx); err != nil {
		log.Printf("Final save for session %s incomplete: %v", c.sessionID, err)
	}
	if _, err := c.backend.UploadTranscript(rctx, c.sessionID, c.cfg.UserID); err != nil {
		log.Printf("Failed to upload transcript for session %s: %v", c.sessionID, err)
		return err
	}
	log.Printf("Uploaded transcript for session %s", c.sessionID)
	return nil
}

// Close stops the auto-save timer and cancels in-flight requests.
func (c *Conversation) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
	}
	c.cancel()
	c.cfg.Metrics.EngineClosed("conversation")
}

// requestCtx derives a request context that ends with either the caller's
// context or the engine.
func (c *Conversation) requestCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	rctx, cancel := context.WithCancel(c.ctx)
	stop := context.AfterFunc(ctx, cancel)
	return rctx, func() {
		stop()
		cancel()
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
