// Package syncer forwards stored events to the remote collector and
// keeps the local ledger in step with what has been delivered.
package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Zuo-Peng/ai-session-sync/internal/event"
)

const maxErrBody = 512

// Payload is the wire shape of one event sent to the collector.
type Payload struct {
	FileName      string          `json:"file_name"`
	LineNumber    int             `json:"line_number"`
	EventData     json.RawMessage `json:"event_data"`
	GitRemoteURL  string          `json:"git_remote_url,omitempty"`
	GitCommitHash string          `json:"git_commit_hash,omitempty"`
}

// Client talks to the collector API. All requests carry the API key and
// are bounded by the HTTP client's timeout.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// Health probes the collector's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httpError("health check", resp)
	}
	return nil
}

// SendEvent delivers one event. A non-2xx response is an error; the
// caller decides whether to retry.
func (c *Client) SendEvent(ctx context.Context, p Payload) error {
	// Encode without HTML escaping so redacted payload bytes (the
	// sentinel's angle brackets in particular) pass through literally.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/events", bytes.NewReader(bytes.TrimRight(buf.Bytes(), "\n")))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send event %s:%d: %w", p.FileName, p.LineNumber, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httpError(fmt.Sprintf("send event %s:%d", p.FileName, p.LineNumber), resp)
	}
	return nil
}

// Forward satisfies the degraded-mode path: redaction already happened
// upstream, so the event goes out as-is.
func (c *Client) Forward(ctx context.Context, ev event.Event) error {
	return c.SendEvent(ctx, Payload{
		FileName:      ev.FileName,
		LineNumber:    ev.LineNumber,
		EventData:     ev.Payload,
		GitRemoteURL:  ev.GitRemoteURL,
		GitCommitHash: ev.GitCommitHash,
	})
}

func httpError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
	return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, bytes.TrimSpace(body))
}
