// Package intakeapi is the REST client for the intake backend.
package intakeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"intake.app/console/internal/store"
)

// APIError is returned for any non-2xx backend response.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("intake backend returned %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("intake backend returned %d", e.StatusCode)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client for baseURL (without the /api suffix).
// A zero timeout leaves requests bounded only by their context.
func NewClient(baseURL string, transport http.RoundTripper, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Transport: transport, Timeout: timeout},
	}
}

// ChatRequest advances the question flow.
type ChatRequest struct {
	UserQuery string `json:"user_query"`
	SessionID string `json:"session_id"`
}

// ChatResponse is the raw next-question payload. Field presence varies by
// backend version; core.DecodeQuestion is the only reader.
type ChatResponse struct {
	Response   string       `json:"response"`
	Options    []string     `json:"options,omitempty"`
	AllowOther *bool        `json:"allow_other,omitempty"`
	InputType  string       `json:"input_type,omitempty"`
	Sections   []RawSection `json:"sections,omitempty"`
}

// RawSection accepts both camelCase and snake_case keys.
type RawSection struct {
	Question        string   `json:"question"`
	InputType       string   `json:"inputType,omitempty"`
	InputTypeSnake  string   `json:"input_type,omitempty"`
	Options         []string `json:"options,omitempty"`
	AllowOther      *bool    `json:"allowOther,omitempty"`
	AllowOtherSnake *bool    `json:"allow_other,omitempty"`
}

// Kind returns whichever input type key was present.
func (s RawSection) Kind() string {
	if s.InputType != "" {
		return s.InputType
	}
	return s.InputTypeSnake
}

// Allow returns whichever allow-other key was present, or nil.
func (s RawSection) Allow() *bool {
	if s.AllowOther != nil {
		return s.AllowOther
	}
	return s.AllowOtherSnake
}

// MessageRecord is a persisted chat message as the backend stores it.
type MessageRecord struct {
	SessionID      string   `json:"session_id"`
	MessageID      string   `json:"message_id"`
	Sender         string   `json:"sender"`
	Text           *string  `json:"text,omitempty"`
	Options        []string `json:"options,omitempty"`
	AllowOther     bool     `json:"allow_other"`
	SelectedOption *string  `json:"selected_option,omitempty"`
	CustomResponse *string  `json:"custom_response,omitempty"`
	Timestamp      string   `json:"timestamp,omitempty"`
}

type UploadRequest struct {
	SessionID string  `json:"session_id"`
	UserID    *string `json:"user_id"`
}

type UploadResponse struct {
	SessionID     string         `json:"session_id"`
	TranscriptURL string         `json:"transcript_url"`
	SessionData   *store.Session `json:"session_data,omitempty"`
}

type SummaryResponse struct {
	SessionID string `json:"session_id,omitempty"`
	Summary   string `json:"summary"`
}

type RegenerateRequest struct {
	Summary  string          `json:"summary"`
	Comments []store.Comment `json:"comments"`
}

// Endpoint labels used for metrics.
const (
	EndpointChat       = "chat"
	EndpointSaveMsg    = "chat_message"
	EndpointListMsgs   = "chat_messages"
	EndpointUpload     = "transcript_upload"
	EndpointSave       = "transcript_save"
	EndpointSessions   = "sessions"
	EndpointSession    = "session"
	EndpointSummarize  = "summarize"
	EndpointRegenerate = "summarize_regenerate"
)

// EndpointLabel maps a backend request path to its metrics label.
func EndpointLabel(r *http.Request) string {
	p := strings.TrimPrefix(r.URL.Path, "/api/")
	switch {
	case p == "chat":
		return EndpointChat
	case p == "chat/message":
		return EndpointSaveMsg
	case strings.HasPrefix(p, "chat/messages/"):
		return EndpointListMsgs
	case p == "transcript/upload":
		return EndpointUpload
	case strings.HasPrefix(p, "transcript/save/"):
		return EndpointSave
	case p == "sessions":
		return EndpointSessions
	case strings.HasPrefix(p, "session/"):
		return EndpointSession
	case strings.HasPrefix(p, "summarize/") && strings.HasSuffix(p, "/regenerate"):
		return EndpointRegenerate
	case strings.HasPrefix(p, "summarize/"):
		return EndpointSummarize
	}
	return "other"
}

func (c *Client) NextQuestion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var resp ChatResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat", req, &resp); err != nil {
		return nil, fmt.Errorf("next question: %w", err)
	}
	return &resp, nil
}

// SaveMessage upserts one message keyed by session and message id.
func (c *Client) SaveMessage(ctx context.Context, rec MessageRecord) error {
	if err := c.do(ctx, http.MethodPost, "/api/chat/message", rec, nil); err != nil {
		return fmt.Errorf("save message %s: %w", rec.MessageID, err)
	}
	return nil
}

// ListMessages returns the persisted log of a session in timestamp order.
func (c *Client) ListMessages(ctx context.Context, sessionID string) ([]MessageRecord, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/chat/messages/"+url.PathEscape(sessionID), nil, &raw); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return decodeList[MessageRecord](raw, "messages")
}

func (c *Client) UploadTranscript(ctx context.Context, sessionID string, userID *string) (*UploadResponse, error) {
	var resp UploadResponse
	if err := c.do(ctx, http.MethodPost, "/api/transcript/upload", UploadRequest{SessionID: sessionID, UserID: userID}, &resp); err != nil {
		return nil, fmt.Errorf("upload transcript: %w", err)
	}
	return &resp, nil
}

// SaveTranscript triggers the backend's explicit save of a session transcript.
func (c *Client) SaveTranscript(ctx context.Context, sessionID string) error {
	if err := c.do(ctx, http.MethodPost, "/api/transcript/save/"+url.PathEscape(sessionID), nil, nil); err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	return nil
}

func (c *Client) ListSessions(ctx context.Context) ([]store.Session, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/sessions", nil, &raw); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return decodeList[store.Session](raw, "sessions")
}

func (c *Client) GetSession(ctx context.Context, sessionID string) (*store.Session, error) {
	var s store.Session
	if err := c.do(ctx, http.MethodGet, "/api/session/"+url.PathEscape(sessionID), nil, &s); err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &s, nil
}

func (c *Client) Summarize(ctx context.Context, sessionID string) (string, error) {
	var resp SummaryResponse
	if err := c.do(ctx, http.MethodPost, "/api/summarize/"+url.PathEscape(sessionID), nil, &resp); err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return resp.Summary, nil
}

func (c *Client) Regenerate(ctx context.Context, sessionID string, req RegenerateRequest) (string, error) {
	if req.Comments == nil {
		req.Comments = []store.Comment{}
	}
	var resp SummaryResponse
	if err := c.do(ctx, http.MethodPost, "/api/summarize/"+url.PathEscape(sessionID)+"/regenerate", req, &resp); err != nil {
		return "", fmt.Errorf("regenerate summary: %w", err)
	}
	return resp.Summary, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var payload struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		apiErr.Detail = payload.Detail
		if apiErr.Detail == "" {
			apiErr.Detail = payload.Error
		}
	}
	if apiErr.Detail == "" {
		apiErr.Detail = strings.TrimSpace(string(body))
	}
	return apiErr
}

// decodeList accepts either a bare JSON array or an object wrapping it under key.
func decodeList[T any](raw json.RawMessage, key string) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}
	var items []T
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", key, err)
		}
		return items, nil
	}
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	inner, ok := wrapped[key]
	if !ok {
		return nil, fmt.Errorf("unexpected %s payload", key)
	}
	if err := json.Unmarshal(inner, &items); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}
