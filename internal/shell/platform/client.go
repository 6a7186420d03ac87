// Package platform provides a client for the remote management API that
// hosts agent runtimes, registries, build pipelines and execution roles.
//
// Every call is a POST to {endpoint}/?Action=<Name>&Version=<version> with a
// JSON body. Responses use one envelope:
//
//	{"ResponseMetadata": {"RequestId": "...", "Error": {"Code": "...", "Message": "..."}},
//	 "Result": {...}}
//
// Request signing is left to a RequestEditor supplied by the caller.
package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// DefaultEndpoint is the public management API endpoint.
const DefaultEndpoint = "https://open.volcengineapi.com"

// Service codes. They name the remote services an operation depends on and
// select the API a call is routed to.
const (
	ServiceObjectStorage = "tos"
	ServiceRegistry      = "cr"
	ServicePipeline      = "cp"
	ServiceRuntime       = "agentkit"
	ServiceIAM           = "iam"
)

// API versions per service.
var apiVersions = map[string]string{
	ServiceRuntime:  "2025-10-30",
	ServiceIAM:      "2018-01-01",
	ServiceRegistry: "2022-05-12",
	ServicePipeline: "2023-05-01",
}

// RequestEditor mutates an outgoing request, typically to sign it. body is
// the exact request payload.
type RequestEditor func(ctx context.Context, req *http.Request, service string, body []byte) error

// Client provides methods for interacting with the management API.
type Client struct {
	endpoint   string
	region     string
	httpClient *retryablehttp.Client
	editors    []RequestEditor
	logger     *slog.Logger
}

// Config holds management API client configuration.
type Config struct {
	Endpoint string // defaults to DefaultEndpoint
	Region   string
	Timeout  time.Duration
	RetryMax int // retries for transport errors, 429 and 5xx
}

// NewClient creates a new management API client.
func NewClient(cfg Config, logger *slog.Logger, editors ...RequestEditor) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "platform")

	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	hc := retryablehttp.NewClient()
	hc.RetryMax = cfg.RetryMax
	hc.RetryWaitMin = 500 * time.Millisecond
	hc.RetryWaitMax = 5 * time.Second
	hc.HTTPClient.Timeout = timeout
	hc.Logger = logger
	hc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		endpoint:   endpoint,
		region:     cfg.Region,
		httpClient: hc,
		editors:    editors,
		logger:     logger,
	}
}

// Region returns the region the client targets.
func (c *Client) Region() string { return c.region }

// HeaderEditor returns a RequestEditor that sets fixed headers.
func HeaderEditor(headers map[string]string) RequestEditor {
	return func(_ context.Context, req *http.Request, _ string, _ []byte) error {
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return nil
	}
}

// =============================================================================
// Envelope
// =============================================================================

type responseMetadata struct {
	RequestID string `json:"RequestId"`
	Action    string `json:"Action,omitempty"`
	Error     *struct {
		Code    string `json:"Code"`
		Message string `json:"Message"`
	} `json:"Error,omitempty"`
}

type envelope struct {
	ResponseMetadata responseMetadata `json:"ResponseMetadata"`
	Result           json.RawMessage  `json:"Result"`
}

// call performs one action. A nil output discards the result.
func (c *Client) call(ctx context.Context, service, action string, input, output any) error {
	body, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("marshal %s input: %w", action, err)
	}

	q := url.Values{}
	q.Set("Action", action)
	q.Set("Version", apiVersions[service])
	u := c.endpoint + "/?" + q.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Service", service)
	if c.region != "" {
		req.Header.Set("X-Region", c.region)
	}
	for _, edit := range c.editors {
		if err := edit(ctx, req.Request, service, body); err != nil {
			return fmt.Errorf("prepare %s request: %w", action, err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send %s request: %w", action, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", action, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{Service: service, Action: action, StatusCode: resp.StatusCode,
				Code: http.StatusText(resp.StatusCode), Message: truncate(string(raw), 200)}
		}
		return fmt.Errorf("decode %s response: %w", action, err)
	}

	if e := env.ResponseMetadata.Error; e != nil && e.Code != "" {
		return &APIError{Service: service, Action: action, StatusCode: resp.StatusCode,
			Code: e.Code, Message: e.Message, RequestID: env.ResponseMetadata.RequestID}
	}
	if resp.StatusCode >= 300 {
		return &APIError{Service: service, Action: action, StatusCode: resp.StatusCode,
			Code: http.StatusText(resp.StatusCode), RequestID: env.ResponseMetadata.RequestID}
	}

	c.logger.Debug("api call", "service", service, "action", action, "request_id", env.ResponseMetadata.RequestID)

	if output == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, output); err != nil {
		return fmt.Errorf("decode %s result: %w", action, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
