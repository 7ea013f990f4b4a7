package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 32 << 20

// Client is the HTTP client shared by the remote adapters. It handles
// Bearer token authentication, JSON (de)serialization, and retry with
// exponential backoff on HTTP 429.
type Client struct {
	kind        SourceType
	baseURL     string
	token       string
	httpClient  *http.Client
	maxRetries  int
	decodeError func(body []byte) string
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithMaxRetries sets how often a rate-limited request is retried.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) { c.maxRetries = n }
}

// WithErrorDecoder sets how a non-2xx body is turned into a message.
// The decoder returns "" when the body is not in the remote's format.
func WithErrorDecoder(fn func(body []byte) string) ClientOption {
	return func(c *Client) { c.decodeError = fn }
}

// NewClient creates a client for the instance rooted at baseURL. The
// token is a Personal Access Token.
func NewClient(kind SourceType, baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		kind:       kind,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the instance root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Get performs a GET and unmarshals the JSON response into result.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	body, err := c.do(ctx, http.MethodGet, path, nil, "application/json")
	if err != nil {
		return err
	}
	return decode(http.MethodGet, path, body, result)
}

// Post sends body as JSON and unmarshals the JSON response into result.
func (c *Client) Post(ctx context.Context, path string, body, result any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request body: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, path, data, "application/json")
	if err != nil {
		return err
	}
	return decode(http.MethodPost, path, resp, result)
}

// GetText performs a GET on a plain text endpoint and returns the
// trimmed body.
func (c *Client) GetText(ctx context.Context, path string) (string, error) {
	body, err := c.do(ctx, http.MethodGet, path, nil, "text/plain")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

func decode(method, path string, body []byte, result any) error {
	if result == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshaling response from %s %s: %w", method, path, err)
	}
	return nil
}

// do sends the request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, method, path string, payload []byte, accept string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", accept)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("executing request %s %s: %w", method, path, err)
		}
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("reading response body: %w", readErr)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("rate limited (429) on %s %s", method, path)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryAfterDuration(resp, attempt)):
				continue
			}
		case resp.StatusCode == http.StatusUnauthorized:
			return nil, &AuthError{
				SourceType: c.kind,
				Message:    fmt.Sprintf("authentication failed (401): check the token for %s", c.baseURL),
			}
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			if c.decodeError != nil {
				if msg := c.decodeError(body); msg != "" {
					return nil, fmt.Errorf("%s API error (%d) on %s %s: %s",
						c.kind, resp.StatusCode, method, path, msg)
				}
			}
			return nil, fmt.Errorf("unexpected status %d on %s %s: %s",
				resp.StatusCode, method, path, string(body))
		}
		return body, nil
	}
	return nil, fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// retryAfterDuration reads the Retry-After header, falling back to
// exponential backoff capped at 30s.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
