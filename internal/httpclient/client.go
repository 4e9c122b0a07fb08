// Package httpclient wraps resty for fetching source payloads.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "fire-radar/1.0"
	maxBodyBytes     = 5 << 20 // 5 MiB
)

// ErrBodyTooLarge is returned when a response body exceeds the configured limit.
var ErrBodyTooLarge = errors.New("response body too large")

// Client fetches a URL and returns the response body.
type Client interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// StatusError reports a non-2xx response.
type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s returned status %d: %s", e.URL, e.Status, e.Body)
}

type restyClient struct {
	rc       *resty.Client
	maxBytes int64
}

// Option customizes a resty-backed Client.
type Option func(*restyClient)

// WithMaxBodyBytes caps how much of a response body is read. Non-positive values are ignored.
func WithMaxBodyBytes(n int64) Option {
	return func(c *restyClient) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// NewRestyClient builds a Client with the given timeout and user agent.
func NewRestyClient(timeout time.Duration, userAgent string, opts ...Option) Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = defaultUserAgent
	}

	rc := resty.New().
		SetTimeout(timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10)).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/html;q=0.8, */*;q=0.5")

	c := &restyClient{rc: rc, maxBytes: maxBodyBytes}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs a GET bound to ctx. The body is streamed through a limit so an oversized
// payload fails with ErrBodyTooLarge instead of being buffered whole.
func (c *restyClient) Get(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.rc.R().SetContext(ctx).SetDoNotParseResponse(true).Get(url)
	if err != nil {
		return nil, fmt.Errorf("http get %s: %w", url, err)
	}
	raw := resp.RawBody()
	defer raw.Close()

	body, err := io.ReadAll(io.LimitReader(raw, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body %s: %w", url, err)
	}
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return nil, &StatusError{URL: url, Status: resp.StatusCode(), Body: snippet(body)}
	}
	if int64(len(body)) > c.maxBytes {
		return nil, fmt.Errorf("GET %s: %w (limit %d bytes)", url, ErrBodyTooLarge, c.maxBytes)
	}
	return body, nil
}

func snippet(body []byte) string {
	const maxLen = 256
	s := strings.TrimSpace(string(body))
	if s == "" {
		return "<empty>"
	}
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
