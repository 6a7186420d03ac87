// Package platformtest provides an in-memory management API for tests.
package platformtest

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/artpar/agentkit/internal/shell/platform"
)

// Fake is an in-memory platform. Runtime and pipeline statuses follow
// scripts: each Get call advances one step and the last status sticks.
type Fake struct {
	mu sync.Mutex

	RegionName string

	Runtimes map[string]*platform.Runtime
	Roles    map[string]bool

	// CreateStatuses are walked by a runtime after CreateRuntime.
	// Default: ["Creating", "Ready"].
	CreateStatuses []string
	// UpdateStatuses are walked after UpdateRuntime.
	// Default: ["Updating", "Ready"].
	UpdateStatuses []string
	// ReleaseStatuses are walked after ReleaseRuntime.
	// Default: ["Releasing", "Ready"].
	ReleaseStatuses []string

	// Endpoint is reported for every runtime when set.
	Endpoint string
	// FailureLog is served for runtimes and runs that end in a failure.
	FailureLog []string

	Instances      map[string]*platform.Instance
	Namespaces     map[string]bool
	Repositories   map[string]bool
	Pipelines      map[string]*platform.Pipeline
	pipelineInputs map[string]platform.CreatePipelineInput
	Runs           map[string]*platform.PipelineRun

	// InstanceStatuses are walked by a registry instance after creation.
	// Default: ["Running"].
	InstanceStatuses []string
	// RunStatuses are walked by a pipeline run. Default: ["Running", "Succeeded"].
	RunStatuses []string

	Services     map[string]bool
	ServiceCalls int

	// Errors makes the named method fail.
	Errors map[string]error

	// Calls lists every method called, in order.
	Calls []string

	scripts map[string][]string
	nextID  int
}

var (
	_ platform.RuntimeAPI  = (*Fake)(nil)
	_ platform.RegistryAPI = (*Fake)(nil)
	_ platform.PipelineAPI = (*Fake)(nil)
	_ platform.ServiceAPI  = (*Fake)(nil)
)

// New returns an empty Fake in cn-beijing.
func New() *Fake {
	return &Fake{
		RegionName:     "cn-beijing",
		Runtimes:       map[string]*platform.Runtime{},
		Roles:          map[string]bool{},
		Instances:      map[string]*platform.Instance{},
		Namespaces:     map[string]bool{},
		Repositories:   map[string]bool{},
		Pipelines:      map[string]*platform.Pipeline{},
		pipelineInputs: map[string]platform.CreatePipelineInput{},
		Runs:           map[string]*platform.PipelineRun{},
		Services:       map[string]bool{},
		Errors:         map[string]error{},
		scripts:        map[string][]string{},
	}
}

// NotFound returns the error the platform gives for a missing resource.
func NotFound(action string) error {
	return &platform.APIError{Action: action, StatusCode: http.StatusNotFound, Code: "ResourceNotFound"}
}

// Count returns how often method was called.
func (f *Fake) Count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c == method {
			n++
		}
	}
	return n
}

func (f *Fake) enter(method string) error {
	f.Calls = append(f.Calls, method)
	return f.Errors[method]
}

func (f *Fake) newID(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%04d", prefix, f.nextID)
}

func (f *Fake) script(key string, statuses, fallback []string) {
	if len(statuses) == 0 {
		statuses = fallback
	}
	f.scripts[key] = append([]string(nil), statuses...)
}

// step advances key's script and returns the current status.
func (f *Fake) step(key, current string) string {
	s := f.scripts[key]
	if len(s) == 0 {
		return current
	}
	status := s[0]
	if len(s) > 1 {
		f.scripts[key] = s[1:]
	}
	return status
}

func (f *Fake) logURL(id string) string { return "fake://logs/" + id }

// =============================================================================
// Runtimes
// =============================================================================

func (f *Fake) Region() string { return f.RegionName }

func (f *Fake) EnsureRole(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("EnsureRole"); err != nil {
		return false, err
	}
	if f.Roles[name] {
		return false, nil
	}
	f.Roles[name] = true
	return true, nil
}

func (f *Fake) CreateRuntime(_ context.Context, in platform.CreateRuntimeInput) (*platform.CreateRuntimeOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateRuntime"); err != nil {
		return nil, err
	}
	id := f.newID("r")
	endpoint := f.Endpoint
	if endpoint == "" {
		endpoint = "https://" + id + ".runtime.example.com"
	}
	rt := &platform.Runtime{
		RuntimeID:  id,
		Name:       in.Name,
		Status:     "Creating",
		ImageURL:   in.ImageURL,
		RoleName:   in.RoleName,
		APIKeyName: in.APIKeyName,
		APIKey:     "key-" + id,
		Endpoint:   endpoint,
		Envs:       in.Envs,
	}
	f.Runtimes[id] = rt
	f.script(id, f.CreateStatuses, []string{"Creating", "Ready"})
	return &platform.CreateRuntimeOutput{RuntimeID: id, APIKey: rt.APIKey, Endpoint: rt.Endpoint}, nil
}

func (f *Fake) GetRuntime(_ context.Context, runtimeID string) (*platform.Runtime, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetRuntime"); err != nil {
		return nil, err
	}
	rt, ok := f.Runtimes[runtimeID]
	if !ok {
		return nil, NotFound("GetRuntime")
	}
	rt.Status = f.step(runtimeID, rt.Status)
	if rt.Status == "Error" {
		rt.FailureLogURL = f.logURL(runtimeID)
		rt.FailureMessage = "health check failed"
	}
	out := *rt
	return &out, nil
}

func (f *Fake) UpdateRuntime(_ context.Context, in platform.UpdateRuntimeInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateRuntime"); err != nil {
		return err
	}
	rt, ok := f.Runtimes[in.RuntimeID]
	if !ok {
		return NotFound("UpdateRuntime")
	}
	rt.ImageURL = in.ImageURL
	rt.Envs = in.Envs
	rt.Status = "Updating"
	f.script(in.RuntimeID, f.UpdateStatuses, []string{"Updating", "Ready"})
	return nil
}

func (f *Fake) ReleaseRuntime(_ context.Context, runtimeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ReleaseRuntime"); err != nil {
		return err
	}
	rt, ok := f.Runtimes[runtimeID]
	if !ok {
		return NotFound("ReleaseRuntime")
	}
	rt.Status = "Releasing"
	f.script(runtimeID, f.ReleaseStatuses, []string{"Releasing", "Ready"})
	return nil
}

func (f *Fake) DeleteRuntime(_ context.Context, runtimeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteRuntime"); err != nil {
		return err
	}
	if _, ok := f.Runtimes[runtimeID]; !ok {
		return NotFound("DeleteRuntime")
	}
	delete(f.Runtimes, runtimeID)
	delete(f.scripts, runtimeID)
	return nil
}

func (f *Fake) FindRuntimeByName(_ context.Context, name string) (*platform.Runtime, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("FindRuntimeByName"); err != nil {
		return nil, err
	}
	for _, rt := range f.Runtimes {
		if rt.Name == name {
			out := *rt
			return &out, nil
		}
	}
	return nil, NotFound("ListRuntimes")
}

func (f *Fake) DownloadLog(_ context.Context, _ string, maxLines int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DownloadLog"); err != nil {
		return nil, err
	}
	lines := f.FailureLog
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return append([]string(nil), lines...), nil
}

// =============================================================================
// Registry
// =============================================================================

func (f *Fake) GetInstance(_ context.Context, name string) (*platform.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetInstance"); err != nil {
		return nil, err
	}
	inst, ok := f.Instances[name]
	if !ok {
		return nil, NotFound("GetInstance")
	}
	inst.Status = f.step("instance/"+name, inst.Status)
	out := *inst
	return &out, nil
}

func (f *Fake) CreateInstance(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateInstance"); err != nil {
		return err
	}
	if _, ok := f.Instances[name]; ok {
		return nil
	}
	f.Instances[name] = &platform.Instance{Name: name, Status: platform.InstanceStatusCreating}
	f.script("instance/"+name, f.InstanceStatuses, []string{platform.InstanceStatusRunning})
	return nil
}

func (f *Fake) EnsureNamespace(_ context.Context, instance, namespace string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("EnsureNamespace"); err != nil {
		return false, err
	}
	key := instance + "/" + namespace
	if f.Namespaces[key] {
		return false, nil
	}
	f.Namespaces[key] = true
	return true, nil
}

func (f *Fake) EnsureRepository(_ context.Context, instance, namespace, repo string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("EnsureRepository"); err != nil {
		return false, err
	}
	key := instance + "/" + namespace + "/" + repo
	if f.Repositories[key] {
		return false, nil
	}
	f.Repositories[key] = true
	return true, nil
}

func (f *Fake) GetAuthorizationToken(_ context.Context, instance string) (*platform.RegistryCredentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetAuthorizationToken"); err != nil {
		return nil, err
	}
	return &platform.RegistryCredentials{Username: "user", Token: "token-" + instance}, nil
}

// =============================================================================
// Pipelines
// =============================================================================

func (f *Fake) CreatePipeline(_ context.Context, in platform.CreatePipelineInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreatePipeline"); err != nil {
		return "", err
	}
	id := f.newID("p")
	f.Pipelines[id] = &platform.Pipeline{PipelineID: id, Name: in.Name}
	f.pipelineInputs[id] = in
	return id, nil
}

func (f *Fake) GetPipeline(_ context.Context, pipelineID string) (*platform.Pipeline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetPipeline"); err != nil {
		return nil, err
	}
	p, ok := f.Pipelines[pipelineID]
	if !ok {
		return nil, NotFound("GetPipeline")
	}
	out := *p
	return &out, nil
}

// RunPipeline starts a run. A successful run reports the image
// <registry host>/<namespace>/<repository>:<Parameters["IMAGE_TAG"]>.
func (f *Fake) RunPipeline(_ context.Context, in platform.RunPipelineInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("RunPipeline"); err != nil {
		return "", err
	}
	p, ok := f.pipelineInputs[in.PipelineID]
	if !ok {
		return "", NotFound("RunPipeline")
	}
	id := f.newID("run")
	f.Runs[id] = &platform.PipelineRun{
		RunID:      id,
		PipelineID: in.PipelineID,
		Status:     platform.RunStatusQueued,
		ImageURL: fmt.Sprintf("%s/%s/%s:%s", platform.RegistryHost(p.RegistryName, f.RegionName),
			p.Namespace, p.Repository, in.Parameters["IMAGE_TAG"]),
	}
	f.script("run/"+id, f.RunStatuses, []string{platform.RunStatusRunning, platform.RunStatusSucceeded})
	return id, nil
}

func (f *Fake) GetPipelineRun(_ context.Context, pipelineID, runID string) (*platform.PipelineRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetPipelineRun"); err != nil {
		return nil, err
	}
	run, ok := f.Runs[runID]
	if !ok || run.PipelineID != pipelineID {
		return nil, NotFound("GetPipelineRun")
	}
	run.Status = f.step("run/"+runID, run.Status)
	switch run.Status {
	case platform.RunStatusSucceeded:
		run.ImageDigest = "sha256:" + fmt.Sprintf("%064d", f.nextID)
	case platform.RunStatusFailed:
		run.LogURL = f.logURL(runID)
		run.Message = "build step failed"
	}
	out := *run
	return &out, nil
}

// =============================================================================
// Services
// =============================================================================

// ServiceStatuses reports Services[name] for each requested service.
func (f *Fake) ServiceStatuses(_ context.Context, services []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ServiceCalls++
	if err := f.enter("ServiceStatuses"); err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(services))
	for _, s := range services {
		out[s] = f.Services[s]
	}
	return out, nil
}

// EnableAll marks services as enabled.
func (f *Fake) EnableAll(services ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range services {
		f.Services[s] = true
	}
}
