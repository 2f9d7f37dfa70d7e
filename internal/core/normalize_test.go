package core

import (
	"reflect"
	"testing"

	"intake.app/console/internal/intakeapi"
	"intake.app/console/internal/store"
)

func boolPtr(b bool) *bool { return &b }

func TestNormalizeOptions(t *testing.T) {
	cases := []struct {
		in   []string
		want []string
	}{
		{[]string{"iOS", "Android"}, []string{"iOS", "Android", "Other"}},
		{[]string{"iOS", "Other", "Android"}, []string{"iOS", "Android", "Other"}},
		{[]string{"Other", "iOS", "other", " "}, []string{"iOS", "Other"}},
		{[]string{"Other"}, nil},
		{nil, nil},
	}
	for _, tc := range cases {
		if got := NormalizeOptions(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("NormalizeOptions(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestDecodeQuestionKinds(t *testing.T) {
	cases := []struct {
		name string
		resp intakeapi.ChatResponse
		want store.Input
	}{
		{
			name: "options inferred",
			resp: intakeapi.ChatResponse{Response: "What platforms?", Options: []string{"iOS", "Android"}},
			want: store.OptionsInput{Options: []string{"iOS", "Android", "Other"}, AllowOther: true},
		},
		{
			name: "explicit allow_other false",
			resp: intakeapi.ChatResponse{Options: []string{"Yes", "No"}, AllowOther: boolPtr(false)},
			want: store.OptionsInput{Options: []string{"Yes", "No", "Other"}, AllowOther: false},
		},
		{
			name: "no options is text",
			resp: intakeapi.ChatResponse{Response: "Describe it"},
			want: store.TextInput{},
		},
		{
			name: "explicit text wins over options",
			resp: intakeapi.ChatResponse{InputType: "text", Options: []string{"a"}},
			want: store.TextInput{},
		},
		{
			name: "options without options falls back to text",
			resp: intakeapi.ChatResponse{InputType: "options"},
			want: store.TextInput{},
		},
		{
			name: "mixed without sections falls back",
			resp: intakeapi.ChatResponse{InputType: "mixed", Options: []string{"a"}},
			want: store.OptionsInput{Options: []string{"a", "Other"}, AllowOther: true},
		},
		{
			name: "unknown input type",
			resp: intakeapi.ChatResponse{InputType: "slider"},
			want: store.TextInput{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := tc.resp
			got := DecodeQuestion(&resp)
			if !reflect.DeepEqual(got.Input, tc.want) {
				t.Fatalf("got %#v, want %#v", got.Input, tc.want)
			}
		})
	}
}

func TestDecodeQuestionSections(t *testing.T) {
	resp := &intakeapi.ChatResponse{
		Response:  "Let's explore the problem.",
		InputType: "mixed",
		Sections: []intakeapi.RawSection{
			{Question: "What is the specific problem?", InputType: "text"},
			{Question: "Who are the stakeholders?", InputTypeSnake: "options", Options: []string{"Students", "Other", "Faculty"}},
			{Question: "  "},
			{Question: "Who cares most?", InputType: "options", AllowOtherSnake: boolPtr(false)},
		},
	}
	q := DecodeQuestion(resp)
	mixed, ok := q.Input.(store.MixedInput)
	if !ok {
		t.Fatalf("expected mixed input, got %#v", q.Input)
	}
	want := []store.Section{
		{Question: "What is the specific problem?", Kind: store.KindText},
		{Question: "Who are the stakeholders?", Kind: store.KindOptions, Options: []string{"Students", "Faculty", "Other"}, AllowOther: true},
		{Question: "Who cares most?", Kind: store.KindText},
	}
	if !reflect.DeepEqual(mixed.Sections, want) {
		t.Fatalf("sections = %#v", mixed.Sections)
	}
}

func TestDecodeQuestionUnwrapsEnvelope(t *testing.T) {
	raw := "```json\n" + `{"text":"Great idea! A few questions.","inputType":"mixed","sections":[{"question":"Scope?","inputType":"text","options":[],"allowOther":false}],"options":[],"allowOther":false}` + "\n```"
	q := DecodeQuestion(&intakeapi.ChatResponse{Response: raw})
	if q.Text != "Great idea! A few questions." {
		t.Fatalf("text = %q", q.Text)
	}
	mixed, ok := q.Input.(store.MixedInput)
	if !ok || len(mixed.Sections) != 1 || mixed.Sections[0].Question != "Scope?" {
		t.Fatalf("unexpected input %#v", q.Input)
	}

	plain := DecodeQuestion(&intakeapi.ChatResponse{Response: "{not json"})
	if plain.Text != "{not json" {
		t.Fatalf("non-envelope text should pass through, got %q", plain.Text)
	}
}

func TestMessageRecordConversion(t *testing.T) {
	text := "Which platforms?"
	sel := "iOS"
	rec := intakeapi.MessageRecord{MessageID: "ai-1", Sender: "ai", Text: &text, Options: []string{"iOS", "Android", "Other"}, AllowOther: true, SelectedOption: &sel, Timestamp: "2025-03-04T15:04:00+00:00"}
	m := messageFromRecord(rec)
	if m.Sender != store.SenderAssistant || m.SelectedOption != "iOS" || !m.Answered() {
		t.Fatalf("unexpected message %+v", m)
	}
	if _, ok := m.Input.(store.OptionsInput); !ok {
		t.Fatalf("expected options input")
	}
	if m.CreatedAt.IsZero() {
		t.Fatalf("expected timestamp parsed")
	}

	back := recordFromMessage("s1", m)
	if back.Sender != "ai" || back.SessionID != "s1" || *back.SelectedOption != "iOS" || len(back.Options) != 3 {
		t.Fatalf("unexpected record %+v", back)
	}

	client := messageFromRecord(intakeapi.MessageRecord{MessageID: "client-2", Sender: "client", Text: &sel})
	if client.Sender != store.SenderRespondent || client.Input != nil {
		t.Fatalf("unexpected respondent message %+v", client)
	}
}
