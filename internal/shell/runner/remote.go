package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/artpar/agentkit/internal/core/config"
	"github.com/artpar/agentkit/internal/core/deployment"
	"github.com/artpar/agentkit/internal/core/domain"
	"github.com/artpar/agentkit/internal/shell/invoke"
	"github.com/artpar/agentkit/internal/shell/platform"
	"github.com/artpar/agentkit/internal/shell/reporter"
	"github.com/artpar/agentkit/internal/shell/wait"
)

// FailureLogLines is how many lines of a failed runtime's log are shown.
const FailureLogLines = 50

// RuntimeTarget is a deployment on the remote runtime platform.
type RuntimeTarget struct {
	AgentName   string
	Description string
	Settings    config.RuntimeSettings
	ImageURL    string
	Envs        map[string]string
	Port        int
	A2A         bool
}

// RemoteRunner runs the agent on the remote runtime platform.
type RemoteRunner struct {
	api      platform.RuntimeAPI
	invoker  *Invoker
	http     *invoke.Client
	rep      reporter.Reporter
	logger   *slog.Logger
	interval time.Duration
}

// RemoteOption configures a RemoteRunner.
type RemoteOption func(*RemoteRunner)

// WithPollInterval sets how often runtime status is polled.
func WithPollInterval(d time.Duration) RemoteOption {
	return func(r *RemoteRunner) { r.interval = d }
}

// NewRemoteRunner creates a RemoteRunner. client is used for health probes.
func NewRemoteRunner(api platform.RuntimeAPI, invoker *Invoker, client *invoke.Client, rep reporter.Reporter, logger *slog.Logger, opts ...RemoteOption) *RemoteRunner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &RemoteRunner{
		api:      api,
		invoker:  invoker,
		http:     client,
		rep:      reporter.OrSilent(rep),
		logger:   logger.With("component", "remote_runner"),
		interval: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Deploy creates the runtime when none is recorded and updates it in place
// otherwise. A recorded runtime that no longer exists is created again.
func (r *RemoteRunner) Deploy(ctx context.Context, t RuntimeTarget) domain.DeployResult {
	updates := config.NewUpdates()
	if t.ImageURL == "" {
		return domain.DeployFailure(domain.NewError(domain.ErrorCodeConfigInvalid, "Deploy",
			"image_url is empty; build the image first", nil), updates)
	}

	suffix := deployment.NewSuffix()
	role, genRole := t.Settings.RuntimeRoleName.Resolve(func() string { return deployment.RoleName(suffix) })
	created, err := r.api.EnsureRole(ctx, role)
	if err != nil {
		return domain.DeployFailure(domain.NewError(domain.ErrorCodeDeployFailed, "EnsureRole", "", err), updates)
	}
	if created {
		r.rep.Info(fmt.Sprintf("Created runtime role %s", role))
	}
	if genRole {
		updates.Add("runtime_role_name", role)
	}

	if id, ok := t.Settings.RuntimeID.Get(); ok {
		rt, err := r.api.GetRuntime(ctx, id)
		switch {
		case err == nil:
			return r.update(ctx, t, rt, updates)
		case platform.IsNotFound(err):
			r.rep.Warning(fmt.Sprintf("Runtime %s no longer exists; creating a new one", id))
		default:
			return domain.DeployFailure(domain.NewError(domain.ErrorCodeDeployFailed, "GetRuntime", "", err), updates)
		}
	}
	return r.create(ctx, t, role, suffix, updates)
}

func (r *RemoteRunner) create(ctx context.Context, t RuntimeTarget, role, suffix string, updates *config.Updates) domain.DeployResult {
	keyName, genKey := t.Settings.RuntimeAPIKeyName.Resolve(func() string { return deployment.APIKeyName(suffix) })
	name, genName := t.Settings.RuntimeName.Resolve(func() string { return deployment.RuntimeName(t.AgentName, suffix) })

	r.rep.Info(fmt.Sprintf("Creating runtime %s", name))
	out, err := r.api.CreateRuntime(ctx, platform.CreateRuntimeInput{
		Name:        name,
		Description: t.Description,
		ImageURL:    t.ImageURL,
		RoleName:    role,
		APIKeyName:  keyName,
		Port:        t.Port,
		HealthPath:  t.Settings.HealthPath,
		Envs:        platform.EnvVars(t.Envs),
		ClientToken: uuid.NewString(),
	})
	if err != nil {
		code := domain.ErrorCodeDeployFailed
		if platform.IsConflict(err) {
			code = domain.ErrorCodeResourceConflict
		}
		return domain.DeployFailure(domain.NewError(code, "CreateRuntime", "", err), updates)
	}

	// Persist the id before waiting so a failed runtime can be found again.
	updates.Add("runtime_id", out.RuntimeID)
	if genName {
		updates.Add("runtime_name", name)
	}
	if genKey {
		updates.Add("runtime_apikey_name", keyName)
	}
	if out.APIKey != "" {
		updates.Add("runtime_apikey", out.APIKey)
	}
	if out.Endpoint != "" {
		updates.Add("runtime_endpoint", out.Endpoint)
	}

	rt, status, err := r.waitFor(ctx, out.RuntimeID, "Waiting for runtime", t.timeout(), domain.RuntimeStatusReady)
	if err != nil {
		r.reportFailure(ctx, rt, status, err)
		if (errors.Is(err, wait.ErrFailed) || errors.Is(err, wait.ErrTimeout)) &&
			r.rep.Confirm(fmt.Sprintf("Delete the failed runtime %s?", out.RuntimeID), false) {
			if err := r.api.DeleteRuntime(ctx, out.RuntimeID); err != nil && !platform.IsNotFound(err) {
				r.rep.Warning(fmt.Sprintf("Could not delete runtime %s: %v", out.RuntimeID, err))
			} else {
				r.rep.Info(fmt.Sprintf("Deleted runtime %s", out.RuntimeID))
				clearRuntime(updates)
			}
		}
		return domain.DeployFailure(notReady(out.RuntimeID, status, err), updates)
	}

	endpoint := r.recordRuntime(rt, out.Endpoint, updates)
	r.rep.Success(fmt.Sprintf("Runtime %s is ready at %s", out.RuntimeID, endpoint))
	return domain.DeployResult{Success: true, ServiceID: out.RuntimeID, EndpointURL: endpoint, Updates: updates}
}

// update replaces the runtime's image and environment. The platform either
// applies the change directly (Ready) or stages it (UnReleased), in which case
// the runtime is released and waited on again. A runtime already being
// released is only waited on; release is not issued twice.
func (r *RemoteRunner) update(ctx context.Context, t RuntimeTarget, rt *platform.Runtime, updates *config.Updates) domain.DeployResult {
	id := rt.RuntimeID
	if domain.RuntimeStatus(rt.Status).IsInProgress() {
		r.rep.Info(fmt.Sprintf("Runtime %s is %s; waiting for it to settle", id, rt.Status))
		settled, status, err := r.waitFor(ctx, id, "Waiting for runtime", t.timeout(),
			domain.RuntimeStatusReady, domain.RuntimeStatusUnReleased, domain.RuntimeStatusError)
		if err != nil {
			return domain.DeployFailure(notReady(id, status, err), updates)
		}
		rt = settled
	}

	r.rep.Info(fmt.Sprintf("Updating runtime %s", id))
	if err := r.api.UpdateRuntime(ctx, platform.UpdateRuntimeInput{
		RuntimeID:   id,
		ImageURL:    t.ImageURL,
		Description: t.Description,
		Envs:        platform.EnvVars(t.Envs),
	}); err != nil {
		return domain.DeployFailure(domain.NewError(domain.ErrorCodeDeployFailed, "UpdateRuntime", "", err), updates)
	}

	rt, status, err := r.waitFor(ctx, id, "Updating runtime", t.timeout(),
		domain.RuntimeStatusReady, domain.RuntimeStatusUnReleased)
	if err != nil {
		r.reportFailure(ctx, rt, status, err)
		return domain.DeployFailure(notReady(id, status, err), updates)
	}

	if status == domain.RuntimeStatusUnReleased {
		r.rep.Info(fmt.Sprintf("Releasing runtime %s", id))
		if err := r.api.ReleaseRuntime(ctx, id); err != nil {
			return domain.DeployFailure(domain.NewError(domain.ErrorCodeDeployFailed, "ReleaseRuntime", "", err), updates)
		}
		rt, status, err = r.waitFor(ctx, id, "Releasing runtime", t.timeout(), domain.RuntimeStatusReady)
		if err != nil {
			r.reportFailure(ctx, rt, status, err)
			return domain.DeployFailure(notReady(id, status, err), updates)
		}
	}

	endpoint := r.recordRuntime(rt, t.Settings.RuntimeEndpoint, updates)
	r.rep.Success(fmt.Sprintf("Runtime %s updated", id))
	return domain.DeployResult{Success: true, ServiceID: id, EndpointURL: endpoint, Updates: updates}
}

// waitFor polls the runtime until one of targets. It returns the last
// runtime observed and its status.
func (r *RemoteRunner) waitFor(ctx context.Context, id, desc string, timeout time.Duration, targets ...domain.RuntimeStatus) (*platform.Runtime, domain.RuntimeStatus, error) {
	var last *platform.Runtime
	fetch := func(ctx context.Context) (string, error) {
		rt, err := r.api.GetRuntime(ctx, id)
		if err != nil {
			return "", err
		}
		if last != nil {
			if err := domain.ValidateRuntimeTransition(domain.RuntimeStatus(last.Status), domain.RuntimeStatus(rt.Status)); err != nil {
				r.logger.Warn("unexpected runtime transition", "runtime_id", id, "from", last.Status, "to", rt.Status)
			}
		}
		last = rt
		return rt.Status, nil
	}

	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = string(t)
	}
	failures := []string{string(domain.RuntimeStatusError)}
	if slices.Contains(targets, domain.RuntimeStatusError) {
		failures = []string{string(domain.RuntimeStatusDeleting)}
	}

	status, err := wait.ForStatus(ctx, fetch, wait.Options{
		Description: desc,
		Targets:     names,
		Failures:    failures,
		Interval:    r.interval,
		Timeout:     timeout,
		Expected:    90 * time.Second,
		Logger:      r.logger,
	}, r.rep)
	return last, domain.RuntimeStatus(status), err
}

// reportFailure shows the tail of the runtime's failure log.
func (r *RemoteRunner) reportFailure(ctx context.Context, rt *platform.Runtime, status domain.RuntimeStatus, err error) {
	r.logger.Error("runtime did not become ready", "status", status, "error", err)
	if rt == nil {
		return
	}
	if rt.FailureMessage != "" {
		r.rep.Error(rt.FailureMessage)
	}
	if rt.FailureLogURL == "" {
		return
	}
	lines, logErr := r.api.DownloadLog(ctx, rt.FailureLogURL, FailureLogLines)
	if logErr != nil {
		r.rep.Warning(fmt.Sprintf("Could not download the runtime log: %v", logErr))
		return
	}
	r.rep.Error(fmt.Sprintf("Last %d lines of the runtime log:\n%s", len(lines), strings.Join(lines, "\n")))
}

// recordRuntime adds the endpoint and API key of a ready runtime to updates
// and returns the endpoint.
func (r *RemoteRunner) recordRuntime(rt *platform.Runtime, known string, updates *config.Updates) string {
	endpoint := known
	if rt != nil && rt.Endpoint != "" {
		endpoint = rt.Endpoint
	}
	if endpoint != "" && endpoint != known {
		updates.Add("runtime_endpoint", endpoint)
	}
	if rt != nil && rt.APIKey != "" {
		updates.Add("runtime_apikey", rt.APIKey)
	}
	return endpoint
}

func (t RuntimeTarget) timeout() time.Duration {
	return time.Duration(t.Settings.DeployTimeout) * time.Second
}

// notReady classifies a failed wait. Failure statuses and timeouts mean the
// runtime is not ready; anything else is a deploy failure.
func notReady(id string, status domain.RuntimeStatus, err error) error {
	code := domain.ErrorCodeDeployFailed
	if errors.Is(err, wait.ErrFailed) || errors.Is(err, wait.ErrTimeout) {
		code = domain.ErrorCodeDeployNotReady
	}
	msg := fmt.Sprintf("runtime %s is not ready", id)
	if status != "" {
		msg += fmt.Sprintf(" (status %s)", status)
	}
	return domain.NewError(code, "Deploy", msg, err)
}

func clearRuntime(updates *config.Updates) {
	updates.Add("runtime_id", config.Auto())
	updates.Add("runtime_endpoint", "")
	updates.Add("runtime_apikey", "")
}

// =============================================================================
// Status, Destroy, Invoke
// =============================================================================

// locate returns the recorded runtime, looking it up by name when no id is
// recorded. A nil runtime means none exists.
func (r *RemoteRunner) locate(ctx context.Context, s config.RuntimeSettings, updates *config.Updates) (*platform.Runtime, error) {
	if id, ok := s.RuntimeID.Get(); ok {
		rt, err := r.api.GetRuntime(ctx, id)
		if platform.IsNotFound(err) {
			return nil, nil
		}
		return rt, err
	}
	name, ok := s.RuntimeName.Get()
	if !ok {
		return nil, nil
	}
	rt, err := r.api.FindRuntimeByName(ctx, name)
	if platform.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	updates.Add("runtime_id", rt.RuntimeID)
	return rt, nil
}

// Status reports the runtime status. A Ready runtime is probed at its
// health path; a failed probe reports unhealthy rather than an error.
func (r *RemoteRunner) Status(ctx context.Context, s config.RuntimeSettings) domain.StatusResult {
	updates := config.NewUpdates()
	rt, err := r.locate(ctx, s, updates)
	if err != nil {
		return domain.StatusFailure(domain.NewError(domain.ErrorCodeUnknown, "GetRuntime", "", err))
	}
	if rt == nil {
		return domain.StatusResult{Success: true, Status: domain.ServiceStatusNotDeployed, Updates: updates}
	}

	endpoint := rt.Endpoint
	if endpoint == "" {
		endpoint = s.RuntimeEndpoint
	}
	details := map[string]any{
		"runtime_status": rt.Status,
		"runtime_name":   rt.Name,
		"image_url":      rt.ImageURL,
	}

	healthy := false
	if domain.RuntimeStatus(rt.Status) == domain.RuntimeStatusReady {
		if err := r.probe(ctx, endpoint, s.HealthPath, apiKey(rt, s)); err != nil {
			details["health_error"] = err.Error()
		} else {
			healthy = true
		}
	}

	return domain.StatusResult{
		Success:     true,
		Status:      domain.RuntimeServiceStatus(domain.RuntimeStatus(rt.Status), healthy),
		ServiceID:   rt.RuntimeID,
		EndpointURL: endpoint,
		Details:     details,
		Updates:     updates,
	}
}

func (r *RemoteRunner) probe(ctx context.Context, endpoint, path, key string) error {
	if endpoint == "" {
		return errors.New("runtime has no endpoint")
	}
	status, _, err := r.http.Get(ctx, strings.TrimRight(endpoint, "/")+path, authHeaders(key), 5*time.Second)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &invoke.HTTPError{StatusCode: status, Body: http.StatusText(status)}
	}
	return nil
}

// Stop is not supported by the platform; runtimes are only destroyed.
func (r *RemoteRunner) Stop(context.Context, config.RuntimeSettings) domain.LifecycleResult {
	r.rep.Info("Remote runtimes cannot be stopped; use destroy to remove the runtime")
	return domain.LifecycleResult{Success: true, Operation: "stop"}
}

// Destroy deletes the runtime. A runtime that does not exist counts as
// deleted.
func (r *RemoteRunner) Destroy(ctx context.Context, s config.RuntimeSettings) domain.LifecycleResult {
	updates := config.NewUpdates()
	id, ok := s.RuntimeID.Get()
	if !ok {
		r.rep.Info("No runtime recorded; nothing to destroy")
		return domain.LifecycleResult{Success: true, Operation: "destroy", Updates: updates}
	}

	err := r.api.DeleteRuntime(ctx, id)
	switch {
	case err == nil:
		r.rep.Success(fmt.Sprintf("Deleted runtime %s", id))
	case platform.IsNotFound(err):
		r.rep.Info(fmt.Sprintf("Runtime %s was already deleted", id))
	default:
		return domain.LifecycleFailure("destroy", domain.NewError(domain.ErrorCodeUnknown, "DeleteRuntime", "", err), updates)
	}
	clearRuntime(updates)
	return domain.LifecycleResult{Success: true, Operation: "destroy", Updates: updates}
}

// Invoke calls the runtime endpoint with its API key.
func (r *RemoteRunner) Invoke(ctx context.Context, t RuntimeTarget, req InvokeRequest) domain.InvokeResult {
	s := t.Settings
	endpoint, key := s.RuntimeEndpoint, s.RuntimeAPIKey
	if id, ok := s.RuntimeID.Get(); ok && (endpoint == "" || key == "") {
		rt, err := r.api.GetRuntime(ctx, id)
		if err != nil && !platform.IsNotFound(err) {
			return domain.InvokeFailure(domain.NewError(domain.ErrorCodeInvokeFailed, "GetRuntime", "", err))
		}
		if rt != nil {
			endpoint = firstNonEmpty(endpoint, rt.Endpoint)
			key = firstNonEmpty(key, rt.APIKey)
		}
	}
	return r.invoker.invoke(ctx, target{
		baseURL:   endpoint,
		agentName: t.AgentName,
		a2a:       t.A2A,
		headers:   authHeaders(key),
	}, req)
}

func apiKey(rt *platform.Runtime, s config.RuntimeSettings) string {
	if rt.APIKey != "" {
		return rt.APIKey
	}
	return s.RuntimeAPIKey
}

func authHeaders(key string) map[string]string {
	if key == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + key}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
