package intakeapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"intake.app/console/internal/store"
)

func TestNextQuestionSendsQueryAndSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body["user_query"] != "Build a mobile app" || body["session_id"] != "42" {
			t.Errorf("unexpected body %v", body)
		}
		w.Write([]byte(`{"response":"What platforms?","options":["iOS","Android"]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", nil, 0)
	resp, err := c.NextQuestion(context.Background(), ChatRequest{UserQuery: "Build a mobile app", SessionID: "42"})
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	if resp.Response != "What platforms?" || len(resp.Options) != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestAPIErrorCarriesDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"Transcript not found for session 7"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, 0)
	_, err := c.Summarize(context.Background(), "7")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Detail != "Transcript not found for session 7" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestListsAcceptArrayOrWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/sessions":
			w.Write([]byte(`[{"id":1,"session_id":"a","transcript_url":"u","created_at":"2025-01-01T00:00:00"}]`))
		case "/api/chat/messages/a":
			w.Write([]byte(`{"messages":[{"session_id":"a","message_id":"1","sender":"ai","text":"hi","allow_other":false}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, 0)
	sessions, err := c.ListSessions(context.Background())
	if err != nil || len(sessions) != 1 || sessions[0].SessionID != "a" {
		t.Fatalf("ListSessions: %v %v", sessions, err)
	}
	msgs, err := c.ListMessages(context.Background(), "a")
	if err != nil || len(msgs) != 1 || *msgs[0].Text != "hi" {
		t.Fatalf("ListMessages: %v %v", msgs, err)
	}
}

func TestRegenerateSendsCamelCaseComments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/summarize/9/regenerate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			Summary  string           `json:"summary"`
			Comments []map[string]any `json:"comments"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if len(body.Comments) != 1 || body.Comments[0]["highlightedText"] != "checkout flow" || body.Comments[0]["startOffset"] != float64(42) {
			t.Errorf("unexpected comments %v", body.Comments)
		}
		w.Write([]byte(`{"summary":"new text"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, 0)
	got, err := c.Regenerate(context.Background(), "9", RegenerateRequest{
		Summary:  "old",
		Comments: []store.Comment{{ID: "c", HighlightedText: "checkout flow", Comment: "clarify this", StartOffset: 42, EndOffset: 55}},
	})
	if err != nil || got != "new text" {
		t.Fatalf("Regenerate: %q %v", got, err)
	}
}

func TestEndpointLabel(t *testing.T) {
	cases := map[string]string{
		"/api/chat":                   EndpointChat,
		"/api/chat/message":           EndpointSaveMsg,
		"/api/chat/messages/1":        EndpointListMsgs,
		"/api/summarize/1":            EndpointSummarize,
		"/api/summarize/1/regenerate": EndpointRegenerate,
		"/api/transcript/save/1":      EndpointSave,
		"/api/session/1":              EndpointSession,
		"/elsewhere":                  "other",
	}
	for path, want := range cases {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if got := EndpointLabel(req); got != want {
			t.Errorf("EndpointLabel(%s) = %s, want %s", path, got, want)
		}
	}
}
