package store

import (
	"time"
)

// Sender identifies who produced a message in a thread.
type Sender string

const (
	SenderAssistant  Sender = "assistant"
	SenderRespondent Sender = "respondent"
)

// Wire returns the value the intake backend stores ("ai" / "client").
func (s Sender) Wire() string {
	if s == SenderRespondent {
		return "client"
	}
	return "ai"
}

// SenderFromWire maps a persisted sender back to the domain value.
func SenderFromWire(v string) Sender {
	if v == "client" || v == "user" || v == "respondent" {
		return SenderRespondent
	}
	return SenderAssistant
}

type InputKind string

const (
	KindOptions InputKind = "options"
	KindText    InputKind = "text"
	KindMixed   InputKind = "mixed"
)

// OtherOption is the synthetic trailing choice that opens free-text capture.
const OtherOption = "Other"

// Recorded SelectedOption values for non-option answers.
const (
	SelectedText     = "Text"
	SelectedSections = "Sections"
)

// Input is the affordance an assistant message asks the respondent to use.
// Implementations are OptionsInput, TextInput and MixedInput.
type Input interface {
	Kind() InputKind
}

type OptionsInput struct {
	Options    []string
	AllowOther bool
}

func (OptionsInput) Kind() InputKind { return KindOptions }

// Has reports whether option is one of the offered choices.
func (in OptionsInput) Has(option string) bool {
	for _, o := range in.Options {
		if o == option {
			return true
		}
	}
	return false
}

type TextInput struct{}

func (TextInput) Kind() InputKind { return KindText }

type MixedInput struct {
	Sections []Section
}

func (MixedInput) Kind() InputKind { return KindMixed }

// Section is one independent sub-question of a mixed input.
type Section struct {
	Question   string    `json:"question"`
	Kind       InputKind `json:"inputType"`
	Options    []string  `json:"options,omitempty"`
	AllowOther bool      `json:"allowOther"`
}

// Message is one entry of a conversation thread.
type Message struct {
	ID             string
	Sender         Sender
	Text           string
	Input          Input // nil for respondent messages
	SelectedOption string
	CustomResponse string
	Timestamp      string // display form, "3:04 PM"
	CreatedAt      time.Time
}

func (m Message) Answered() bool {
	return m.SelectedOption != ""
}

// Options returns the offered choices of an options input, nil otherwise.
func (m Message) Options() []string {
	if in, ok := m.Input.(OptionsInput); ok {
		return in.Options
	}
	return nil
}

// AllowOther reports the allow-other flag of an options input.
func (m Message) AllowOther() bool {
	if in, ok := m.Input.(OptionsInput); ok {
		return in.AllowOther
	}
	return false
}

// Session is the backend record of one intake conversation.
type Session struct {
	ID            int64   `json:"id,omitempty"`
	SessionID     string  `json:"session_id"`
	UserID        *string `json:"user_id,omitempty"`
	TranscriptURL string  `json:"transcript_url"`
	CreatedAt     string  `json:"created_at"`
	EndedAt       *string `json:"ended_at,omitempty"`
	Title         *string `json:"title,omitempty"`
}

// Comment is a reviewer note anchored to a character span of a summary.
type Comment struct {
	ID              string `json:"id"`
	HighlightedText string `json:"highlightedText"`
	Comment         string `json:"comment"`
	StartOffset     int    `json:"startOffset"`
	EndOffset       int    `json:"endOffset"`
}

type TranscriptEntry struct {
	Role    string `json:"role"` // "user" or "bot"
	Message string `json:"message"`
}

// Routing records which departments a reviewed project was sent to.
type Routing struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Departments []string  `json:"departments"`
	Notes       string    `json:"notes"`
	RoutedAt    time.Time `json:"routed_at"`
}

// StoredSummary is the last summary text the console saw for a session.
type StoredSummary struct {
	SessionID string
	Summary   string
	UpdatedAt time.Time
}
