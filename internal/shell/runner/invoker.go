// Package runner deploys, inspects, invokes and removes agent services on
// the local container engine and on the remote runtime platform.
package runner

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/artpar/agentkit/internal/core/domain"
	"github.com/artpar/agentkit/internal/core/invocation"
	"github.com/artpar/agentkit/internal/shell/invoke"
)

// DefaultProbeTimeout bounds the /list-apps introspection call.
const DefaultProbeTimeout = 3 * time.Second

// InvokeRequest is one invocation of a deployed agent.
type InvokeRequest struct {
	Payload   map[string]any
	Headers   map[string]string
	UserID    string // defaults to invocation.DefaultUserID
	SessionID string // defaults to a new UUID
	Stream    invoke.StreamMode
}

// target is where and how an invocation is sent.
type target struct {
	baseURL   string
	agentName string
	a2a       bool
	headers   map[string]string
}

// Invoker sends invocations to a deployed agent. It speaks the direct
// /invoke contract, the A2A root endpoint and the session-oriented
// /run_sse protocol, detecting which one the backend serves.
type Invoker struct {
	client       *invoke.Client
	probeTimeout time.Duration
	logger       *slog.Logger
}

// NewInvoker creates an Invoker.
func NewInvoker(client *invoke.Client, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{client: client, probeTimeout: DefaultProbeTimeout, logger: logger.With("component", "invoker")}
}

// invoke runs the detection and fallback sequence:
//
//  1. A2A agents are called at their root path.
//  2. A backend answering /list-apps with an app list is session-oriented.
//  3. Session backends get a session (GET, then POST on 404) and /run_sse.
//  4. Others get POST /invoke; a 404 or 405 there retries once as a
//     session backend.
func (i *Invoker) invoke(ctx context.Context, t target, req InvokeRequest) domain.InvokeResult {
	if t.baseURL == "" {
		return domain.InvokeFailure(domain.NewError(domain.ErrorCodeServiceNotRunning, "Invoke",
			"no endpoint recorded for this agent; deploy it first", nil))
	}
	t.baseURL = strings.TrimRight(t.baseURL, "/")
	headers := mergeHeaders(t.headers, req.Headers)

	if t.a2a {
		resp, err := i.client.Do(ctx, invoke.Request{
			URL: t.baseURL + invocation.A2APath, Headers: headers, Body: req.Payload, Stream: req.Stream,
		})
		return toInvokeResult(resp, err)
	}

	if apps, ok := i.probeApps(ctx, t.baseURL, headers); ok {
		i.logger.Debug("session-oriented backend detected", "apps", apps)
		return i.invokeSession(ctx, t, apps, headers, req)
	}

	resp, err := i.client.Do(ctx, invoke.Request{
		URL: t.baseURL + invocation.InvokePath, Headers: headers, Body: req.Payload, Stream: req.Stream,
	})
	if code := invoke.StatusCode(err); code == http.StatusNotFound || code == http.StatusMethodNotAllowed {
		i.logger.Info("direct invoke path not served, retrying with session protocol", "status", code)
		apps, _ := i.probeApps(ctx, t.baseURL, headers)
		return i.invokeSession(ctx, t, apps, headers, req)
	}
	return toInvokeResult(resp, err)
}

// probeApps asks the backend for its app list. ok is false for any
// non-structured answer, including transport errors.
func (i *Invoker) probeApps(ctx context.Context, baseURL string, headers map[string]string) ([]string, bool) {
	status, body, err := i.client.Get(ctx, baseURL+invocation.ListAppsPath, headers, i.probeTimeout)
	if err != nil {
		i.logger.Debug("app probe failed", "error", err)
		return nil, false
	}
	if status != http.StatusOK {
		return nil, false
	}
	return invocation.ParseApps(body)
}

func (i *Invoker) invokeSession(ctx context.Context, t target, apps []string, headers map[string]string, req InvokeRequest) domain.InvokeResult {
	app := invocation.ResolveAppName(apps, t.agentName)
	user := req.UserID
	if user == "" {
		user = invocation.DefaultUserID
	}
	session := req.SessionID
	if session == "" {
		session = uuid.NewString()
	}

	sessionURL := t.baseURL + invocation.SessionPath(app, user, session)
	status, _, err := i.client.Get(ctx, sessionURL, headers, 0)
	if err != nil {
		return domain.InvokeFailure(domain.NewError(domain.ErrorCodeInvokeFailed, "Invoke", "", err))
	}
	switch {
	case status == http.StatusNotFound:
		if _, err := i.client.Do(ctx, invoke.Request{
			URL: sessionURL, Headers: headers, Body: map[string]any{}, Stream: invoke.StreamOff,
		}); err != nil {
			return domain.InvokeFailure(domain.NewError(domain.ErrorCodeInvokeFailed, "CreateSession", "", err))
		}
		i.logger.Debug("session created", "app", app, "user", user, "session", session)
	case status >= 300:
		return domain.InvokeFailure(domain.NewError(domain.ErrorCodeInvokeFailed, "GetSession",
			http.StatusText(status), &invoke.HTTPError{StatusCode: status}))
	}

	resp, err := i.client.Do(ctx, invoke.Request{
		URL:     t.baseURL + invocation.RunSSEPath,
		Headers: headers,
		Body:    invocation.NewRunSSERequest(app, user, session, req.Payload),
		Stream:  req.Stream,
	})
	return toInvokeResult(resp, err)
}

func toInvokeResult(resp *invoke.Response, err error) domain.InvokeResult {
	if err != nil {
		return domain.InvokeFailure(domain.NewError(domain.ErrorCodeInvokeFailed, "Invoke", "", err))
	}
	if resp.IsStreaming {
		return domain.InvokeResult{Success: true, Stream: resp.Stream, IsStreaming: true}
	}
	return domain.InvokeResult{Success: true, Response: resp.Body}
}

func mergeHeaders(layers ...map[string]string) map[string]string {
	out := map[string]string{}
	for _, l := range layers {
		for k, v := range l {
			out[k] = v
		}
	}
	return out
}
