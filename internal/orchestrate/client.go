// Package orchestrate is the HTTP client for the watchcrew backend: the
// streaming /orchestrate endpoint plus the small JSON endpoints around it.
package orchestrate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/infblueocean/watchcrew/internal/convo"
	"github.com/infblueocean/watchcrew/internal/logging"
)

// DefaultGameStatus is what the backend assumes when no status is sent.
const DefaultGameStatus = "경기 진행 중"

// Request is the /orchestrate payload.
type Request struct {
	UserMessages []convo.Entry     `json:"userMessages"`
	CurrGameStat string            `json:"currGameStat"`
	GameFlow     string            `json:"gameFlow"`
	NewsData     map[string]string `json:"newsData"`
	Agents       []json.RawMessage `json:"agents"`
}

// normalized fills nil collections so they encode as [] and {}.
func (r Request) normalized() Request {
	if r.UserMessages == nil {
		r.UserMessages = []convo.Entry{}
	}
	if r.NewsData == nil {
		r.NewsData = map[string]string{}
	}
	if r.Agents == nil {
		r.Agents = []json.RawMessage{}
	}
	if r.CurrGameStat == "" {
		r.CurrGameStat = DefaultGameStatus
	}
	return r
}

// ErrStatus matches any *StatusError via errors.Is.
var ErrStatus = errors.New("unexpected status")

// StatusError is a non-2xx response.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: API error (status %d): %s", e.Endpoint, e.StatusCode, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrStatus
}

// Client talks to one backend. Safe for concurrent use.
type Client struct {
	baseURL string
	// client has no timeout: streaming bodies stay open for the whole
	// batch. Callers bound requests with their context.
	client  *http.Client
	timeout time.Duration
}

// NewClient creates a client for baseURL. timeout bounds the plain JSON
// endpoints; Orchestrate is bounded by the caller.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return NewClientWithHTTP(baseURL, timeout, &http.Client{})
}

// NewClientWithHTTP allows injecting the transport (tests).
func NewClientWithHTTP(baseURL string, timeout time.Duration, hc *http.Client) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  hc,
		timeout: timeout,
	}
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Orchestrate posts one generation request and returns the streaming body
// once response headers arrive with a 2xx status. The caller must close it.
// Any error returned here happened before the first body byte.
func (c *Client) Orchestrate(ctx context.Context, req Request) (io.ReadCloser, error) {
	body, err := json.Marshal(req.normalized())
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	logging.Debug("orchestrate request", "user_messages", len(req.UserMessages), "agents", len(req.Agents), "news", len(req.NewsData))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orchestrate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		logging.Error("orchestrate API error", "status", resp.StatusCode, "body", string(b))
		return nil, &StatusError{Endpoint: "orchestrate", StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	return resp.Body, nil
}

// NewsSummary asks the backend for per-team news summaries of a game
// ("250523_HTSS"). Keys are team display names.
func (c *Client) NewsSummary(ctx context.Context, game string) (map[string]string, error) {
	var raw map[string]any
	if err := c.postJSON(ctx, "get_news_summary", map[string]string{"game": game}, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v := v.(type) {
		case string:
			out[k] = v
		case nil:
		default:
			b, _ := json.Marshal(v)
			out[k] = string(b)
		}
	}
	return out, nil
}

// ResetRowIndex rewinds the backend's game replay to its first row.
func (c *Client) ResetRowIndex(ctx context.Context) error {
	var resp struct {
		Status   string `json:"status"`
		RowIndex int    `json:"row_index"`
	}
	if err := c.postJSON(ctx, "reset-row-index", nil, &resp); err != nil {
		return err
	}
	logging.Info("backend row index reset", "row_index", resp.RowIndex)
	return nil
}

// GenerateCandidates asks the backend for persona candidates for a team.
// Records are returned as opaque JSON objects.
func (c *Client) GenerateCandidates(ctx context.Context, prompt, teamName string) ([]json.RawMessage, error) {
	var out []json.RawMessage
	payload := map[string]string{"prompt": prompt, "team": teamName}
	if err := c.postJSON(ctx, "generate_candidates", payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader = http.NoBody
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", endpoint, err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", endpoint, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logging.Error("API error", "endpoint", endpoint, "status", resp.StatusCode, "body", string(respBody))
		return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse %s response: %w", endpoint, err)
	}
	return nil
}
