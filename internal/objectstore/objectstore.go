// Package objectstore reads transcripts and cached summaries from the public
// storage bucket.
package objectstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"intake.app/console/internal/store"
)

// ErrNotFound is returned when the bucket has no object at the requested path.
var ErrNotFound = errors.New("object not found")

type Client struct {
	baseURL    string
	bucket     string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, bucket, apiKey string, transport http.RoundTripper, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		bucket:     bucket,
		apiKey:     apiKey,
		httpClient: &http.Client{Transport: transport, Timeout: timeout},
	}
}

// PublicURL is the public address of path inside the bucket.
func (c *Client) PublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.baseURL, c.bucket, strings.TrimLeft(path, "/"))
}

func TranscriptPath(sessionID string) string { return "transcripts/" + sessionID + ".json" }

func SummaryPath(sessionID string) string { return "summaries/" + sessionID + ".txt" }

// GetTranscript fetches and decodes the finalized transcript of a session.
func (c *Client) GetTranscript(ctx context.Context, sessionID string) ([]store.TranscriptEntry, error) {
	data, err := c.get(ctx, TranscriptPath(sessionID))
	if err != nil {
		return nil, err
	}
	var entries []store.TranscriptEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode transcript %s: %w", sessionID, err)
	}
	return entries, nil
}

// GetSummary fetches the last summary the backend uploaded for a session.
func (c *Client) GetSummary(ctx context.Context, sessionID string) (string, error) {
	data, err := c.get(ctx, SummaryPath(sessionID))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("object storage URL is not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.PublicURL(path), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	// storage answers 400 for missing public objects as well as 404
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch %s: status %d", path, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
