// Package invoke calls deployed agent services over HTTP and turns their
// responses into JSON values or event streams.
package invoke

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/artpar/agentkit/internal/core/invocation"
)

// StreamMode selects how a response is read.
type StreamMode int

const (
	// StreamAuto reads a stream when the response looks like one.
	StreamAuto StreamMode = iota
	// StreamOn always treats the response as a stream.
	StreamOn
	// StreamOff never treats the response as a stream.
	StreamOff
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4096

// Request is one call to a deployed service.
type Request struct {
	Method  string // defaults to POST
	URL     string
	Headers map[string]string
	Body    any // encoded as JSON when non-nil
	Stream  StreamMode
	Timeout time.Duration // zero uses the client timeout
}

// Response is a successful (2xx) reply. Exactly one of Body and Stream is
// set.
type Response struct {
	StatusCode  int
	Body        any
	Stream      *Stream
	IsStreaming bool
}

// HTTPError is a non-2xx reply.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// Client performs invocation requests.
type Client struct {
	http    *retryablehttp.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient creates a Client. timeout bounds non-streaming requests; a
// streaming response is only bounded by its request context.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "invoke")
	if timeout == 0 {
		timeout = 5 * time.Minute
	}

	hc := retryablehttp.NewClient()
	hc.RetryMax = 0
	hc.Logger = logger
	hc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{http: hc, timeout: timeout, logger: logger}
}

// Do sends req. Non-2xx replies return an *HTTPError.
//
// With StreamAuto the request asks for an event stream and the reply is
// classified by its Content-Type. A reply with another content type whose
// body still starts with "data:" is parsed as a stream after buffering it.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	var body []byte
	if req.Body != nil {
		var err error
		if body, err = json.Marshal(req.Body); err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithCancel(ctx)
	timer := time.AfterFunc(timeout, cancel)

	hreq, err := retryablehttp.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		timer.Stop()
		cancel()
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		hreq.Header.Set("Content-Type", "application/json")
	}
	switch req.Stream {
	case StreamOff:
		hreq.Header.Set("Accept", "application/json")
	default:
		hreq.Header.Set("Accept", "text/event-stream, application/json")
	}
	for k, v := range req.Headers {
		hreq.Header.Set(k, v)
	}

	resp, err := c.http.Do(hreq)
	if err != nil {
		timer.Stop()
		cancel()
		return nil, fmt.Errorf("%s %s: %w", method, req.URL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer cancel()
		defer timer.Stop()
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(raw))}
	}

	streaming := req.Stream == StreamOn ||
		(req.Stream == StreamAuto && invocation.IsStreamContentType(resp.Header.Get("Content-Type")))
	if streaming {
		// The stream outlives this call; only the context bounds it.
		timer.Stop()
		return &Response{
			StatusCode:  resp.StatusCode,
			Stream:      NewStream(resp.Body, cancel, c.logger),
			IsStreaming: true,
		}, nil
	}

	defer cancel()
	defer timer.Stop()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if req.Stream == StreamAuto && invocation.LooksLikeStream(raw) {
		c.logger.Warn("response is a stream but content type is not text/event-stream; buffered whole body",
			"url", req.URL, "content_type", resp.Header.Get("Content-Type"), "bytes", len(raw))
		return &Response{
			StatusCode:  resp.StatusCode,
			Stream:      NewStream(io.NopCloser(bytes.NewReader(raw)), nil, c.logger),
			IsStreaming: true,
		}, nil
	}

	return &Response{StatusCode: resp.StatusCode, Body: decodeBody(raw)}, nil
}

// decodeBody returns the JSON value of raw, or raw as a string.
func decodeBody(raw []byte) any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err == nil {
		return v
	}
	return string(trimmed)
}

// Get fetches url and returns the status code and raw body. Non-2xx
// replies are not errors.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string, timeout time.Duration) (int, []byte, error) {
	if timeout == 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}
