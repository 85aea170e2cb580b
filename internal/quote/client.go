package quote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	opPending = "fetch pending responses"
	opSync    = "sync response"

	maxErrorBody = 512
)

// Client calls the pending-responses and sync endpoints.
type Client struct {
	http       *http.Client
	pendingURL string
	syncURL    string
	headers    map[string]string
	userAgent  string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds each request. Zero keeps the transport default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHeaders adds static headers (session cookies, tenant ids) to every request.
func WithHeaders(h map[string]string) Option {
	return func(c *Client) {
		for k, v := range h {
			c.headers[k] = v
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func NewClient(pendingURL, syncURL string, opts ...Option) *Client {
	c := &Client{
		http:       &http.Client{},
		pendingURL: pendingURL,
		syncURL:    syncURL,
		headers:    make(map[string]string),
		userAgent:  "quotesync/1.0",
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// FetchPending lists the responses waiting to be synchronized. Transport
// errors, non-2xx statuses, undecodable bodies and success=false all return
// an error.
func (c *Client) FetchPending(ctx context.Context) ([]PendingResponse, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.pendingURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opPending, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Op: opPending, Code: resp.StatusCode, Body: readSnippet(resp.Body)}
	}

	var batch BatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", opPending, ErrMalformed, err)
	}
	if !batch.Success {
		return nil, &APIError{Op: opPending, Code: resp.StatusCode, Message: batch.Error}
	}
	return batch.Responses, nil
}

// Sync posts one item's wire representation to the sync endpoint.
func (c *Client) Sync(ctx context.Context, item PendingResponse) error {
	body, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", opSync, err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, c.syncURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", opSync, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read body: %w", opSync, err)
	}
	var result SyncResult
	if err := json.Unmarshal(raw, &result); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &StatusError{Op: opSync, Code: resp.StatusCode, Body: truncate(string(raw))}
		}
		return fmt.Errorf("%s: %w: %v", opSync, ErrMalformed, err)
	}
	if !result.Success {
		return &APIError{Op: opSync, Code: resp.StatusCode, Message: result.Error}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return truncate(string(b))
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	return s
}
