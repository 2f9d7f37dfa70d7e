package core

import (
	"encoding/json"
	"strings"
	"time"

	"intake.app/console/internal/intakeapi"
	"intake.app/console/internal/store"
	"intake.app/console/internal/utils"
)

// envelope is the JSON the question model is asked to produce. Some backend
// versions pass it through verbatim inside the response string.
type envelope struct {
	Text            string                 `json:"text"`
	InputType       string                 `json:"inputType"`
	InputTypeSnake  string                 `json:"input_type"`
	Options         []string               `json:"options"`
	AllowOther      *bool                  `json:"allowOther"`
	AllowOtherSnake *bool                  `json:"allow_other"`
	Sections        []intakeapi.RawSection `json:"sections"`
}

// Question is a decoded next-question payload.
type Question struct {
	Text  string
	Input store.Input
}

// DecodeQuestion turns a raw backend answer into the text and input of the
// next assistant message. It is the single place backend field presence is
// interpreted.
func DecodeQuestion(resp *intakeapi.ChatResponse) Question {
	if resp == nil {
		return Question{Input: store.TextInput{}}
	}
	text := resp.Response
	inputType := resp.InputType
	options := resp.Options
	allowOther := resp.AllowOther
	sections := resp.Sections

	if env, ok := unwrapEnvelope(resp.Response); ok {
		text = env.Text
		if inputType == "" {
			inputType = firstNonEmpty(env.InputType, env.InputTypeSnake)
		}
		if len(options) == 0 {
			options = env.Options
		}
		if allowOther == nil {
			allowOther = env.AllowOther
			if allowOther == nil {
				allowOther = env.AllowOtherSnake
			}
		}
		if len(sections) == 0 {
			sections = env.Sections
		}
	}

	return Question{Text: strings.TrimSpace(text), Input: decodeInput(inputType, options, allowOther, sections)}
}

func decodeInput(inputType string, options []string, allowOther *bool, raw []intakeapi.RawSection) store.Input {
	opts := NormalizeOptions(options)
	sections := normalizeSections(raw)

	kind := store.InputKind(strings.ToLower(strings.TrimSpace(inputType)))
	switch {
	case kind == store.KindMixed && len(sections) > 0:
		return store.MixedInput{Sections: sections}
	case kind == store.KindText:
		return store.TextInput{}
	case kind == store.KindOptions && len(opts) > 0:
		return optionsInput(opts, allowOther)
	}
	// unknown or unsatisfiable input_type
	if len(opts) > 0 {
		return optionsInput(opts, allowOther)
	}
	return store.TextInput{}
}

func optionsInput(opts []string, allowOther *bool) store.OptionsInput {
	allow := true
	if allowOther != nil {
		allow = *allowOther
	}
	return store.OptionsInput{Options: opts, AllowOther: allow}
}

func normalizeSections(raw []intakeapi.RawSection) []store.Section {
	var sections []store.Section
	for _, r := range raw {
		q := strings.TrimSpace(r.Question)
		if q == "" {
			continue
		}
		opts := NormalizeOptions(r.Options)
		kind := store.KindText
		switch store.InputKind(strings.ToLower(r.Kind())) {
		case store.KindOptions:
			if len(opts) > 0 {
				kind = store.KindOptions
			}
		case store.KindText:
		default:
			if len(opts) > 0 {
				kind = store.KindOptions
			}
		}
		s := store.Section{Question: q, Kind: kind}
		if kind == store.KindOptions {
			s.Options = opts
			s.AllowOther = true
			if a := r.Allow(); a != nil {
				s.AllowOther = *a
			}
		}
		sections = append(sections, s)
	}
	return sections
}

// NormalizeOptions drops blank entries and any "Other", then terminates a
// non-empty list with exactly one "Other".
func NormalizeOptions(options []string) []string {
	var out []string
	for _, o := range options {
		o = strings.TrimSpace(o)
		if o == "" || strings.EqualFold(o, store.OtherOption) {
			continue
		}
		out = append(out, o)
	}
	if len(out) == 0 {
		return nil
	}
	return append(out, store.OtherOption)
}

func unwrapEnvelope(s string) (envelope, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if !strings.HasPrefix(s, "{") {
		return envelope{}, false
	}
	var env envelope
	if err := json.Unmarshal([]byte(s), &env); err != nil {
		return envelope{}, false
	}
	if env.Text == "" && env.InputType == "" && env.InputTypeSnake == "" && len(env.Options) == 0 && len(env.Sections) == 0 {
		return envelope{}, false
	}
	return env, true
}

func parseWireTime(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// messageFromRecord rebuilds a thread message from its persisted form.
func messageFromRecord(rec intakeapi.MessageRecord) store.Message {
	m := store.Message{
		ID:     rec.MessageID,
		Sender: store.SenderFromWire(rec.Sender),
	}
	if rec.Text != nil {
		m.Text = *rec.Text
	}
	if rec.SelectedOption != nil {
		m.SelectedOption = *rec.SelectedOption
	}
	if rec.CustomResponse != nil {
		m.CustomResponse = *rec.CustomResponse
	}
	if m.Sender == store.SenderAssistant {
		if opts := NormalizeOptions(rec.Options); len(opts) > 0 {
			m.Input = store.OptionsInput{Options: opts, AllowOther: rec.AllowOther}
		} else {
			m.Input = store.TextInput{}
		}
	}
	if t, ok := parseWireTime(rec.Timestamp); ok {
		m.CreatedAt = t
		m.Timestamp = utils.DisplayTime(t.Local())
	}
	return m
}

// recordFromMessage is the upsert body for one message.
func recordFromMessage(sessionID string, m store.Message) intakeapi.MessageRecord {
	rec := intakeapi.MessageRecord{
		SessionID:  sessionID,
		MessageID:  m.ID,
		Sender:     m.Sender.Wire(),
		Options:    m.Options(),
		AllowOther: m.AllowOther(),
	}
	if m.Text != "" {
		text := m.Text
		rec.Text = &text
	}
	if m.SelectedOption != "" {
		sel := m.SelectedOption
		rec.SelectedOption = &sel
	}
	if m.CustomResponse != "" {
		custom := m.CustomResponse
		rec.CustomResponse = &custom
	}
	return rec
}
