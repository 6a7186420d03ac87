package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/artpar/agentkit/internal/core/config"
	"github.com/artpar/agentkit/internal/core/domain"
	"github.com/artpar/agentkit/internal/core/preflight"
	"github.com/artpar/agentkit/internal/shell/configfile"
	"github.com/artpar/agentkit/internal/shell/docker/dockertest"
	"github.com/artpar/agentkit/internal/shell/reporter"
	"github.com/artpar/agentkit/internal/shell/runner"
	"github.com/artpar/agentkit/internal/shell/strategy"
)

// =============================================================================
// Test Helpers
// =============================================================================

const (
	projectDir = "/proj"
	configPath = "/proj/agentkit.yaml"
)

const localDoc = `common:
  agent_name: weather
  entry_point: app.py
  launch_type: local
launch_types:
  local:
    image_tag: v1
`

func newProjectStore(t *testing.T, doc string) (*configfile.Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, projectDir+"/app.py", []byte("print('hi')"), 0o644))
	if doc != "" {
		require.NoError(t, afero.WriteFile(fs, configPath, []byte(doc), 0o644))
	}
	return configfile.NewStore(fs, configPath), fs
}

func reload(t *testing.T, store *configfile.Store) *config.ProjectConfig {
	t.Helper()
	cfg, err := store.Load()
	require.NoError(t, err)
	return cfg
}

// spy is a scripted strategy.
type spy struct {
	required map[strategy.Operation][]string

	build  domain.BuildResult
	deploy domain.DeployResult
	panics bool

	builds, deploys int
	deploySawImage  string
}

func (s *spy) LaunchType() config.LaunchType { return config.LaunchTypeLocal }

func (s *spy) RequiredServices(op strategy.Operation) []string { return s.required[op] }

func (s *spy) Build(context.Context, *config.ProjectConfig, strategy.BuildOptions) domain.BuildResult {
	s.builds++
	return s.build
}

func (s *spy) Deploy(_ context.Context, p *config.ProjectConfig) domain.DeployResult {
	s.deploys++
	if s.panics {
		panic("deploy exploded")
	}
	s.deploySawImage = p.LaunchTypes.Local.ImageID
	return s.deploy
}

func (s *spy) Invoke(context.Context, *config.ProjectConfig, runner.InvokeRequest) domain.InvokeResult {
	return domain.InvokeResult{Success: true, Response: "pong"}
}

func (s *spy) Status(context.Context, *config.ProjectConfig) domain.StatusResult {
	return domain.StatusResult{Success: true, Status: domain.ServiceStatusRunning}
}

func (s *spy) Stop(context.Context, *config.ProjectConfig) domain.LifecycleResult {
	return domain.LifecycleResult{Success: true}
}

func (s *spy) Destroy(context.Context, *config.ProjectConfig) domain.LifecycleResult {
	return domain.LifecycleResult{Success: true}
}

func spyFactory(s *spy) Factory {
	return func(config.LaunchType) (strategy.Strategy, error) { return s, nil }
}

// services is a recording preflight backend.
type services struct {
	enabled map[string]bool
	err     error
	queries [][]string
}

func (s *services) ServiceStatuses(_ context.Context, names []string) (map[string]bool, error) {
	s.queries = append(s.queries, names)
	if s.err != nil {
		return nil, s.err
	}
	out := map[string]bool{}
	for _, n := range names {
		out[n] = s.enabled[n]
	}
	return out, nil
}

func successfulBuild(updates map[string]string) domain.BuildResult {
	u := config.NewUpdates()
	for k, v := range updates {
		u.Add(k, v)
	}
	return domain.BuildResult{Success: true, Image: &domain.ImageInfo{Repository: "weather", Tag: "v1"}, Updates: u}
}

// =============================================================================
// End-to-End (local)
// =============================================================================

func TestLocalEndToEnd(t *testing.T) {
	store, fs := newProjectStore(t, localDoc)
	d := dockertest.New()
	opts := Options{
		Store: store,
		Strategies: func(lt config.LaunchType) (strategy.Strategy, error) {
			return strategy.New(lt, strategy.Deps{Fs: fs, WorkDir: projectDir, Docker: d})
		},
		Policy: preflight.PolicyFail,
	}
	ctx := context.Background()

	built := NewBuildExecutor(opts).Execute(ctx, strategy.BuildOptions{})
	require.True(t, built.Success, built.Error)
	assert.Equal(t, "weather:v1", built.Image.FullName())

	deployed := NewDeployExecutor(opts).Execute(ctx)
	require.True(t, deployed.Success, deployed.Error)
	assert.NotEmpty(t, deployed.ContainerID)
	assert.Equal(t, "http://localhost:8000", deployed.EndpointURL)

	status := NewStatusExecutor(opts).Execute(ctx)
	require.True(t, status.Success, status.Error)
	assert.Equal(t, domain.ServiceStatusRunning, status.Status)

	destroyed := NewLifecycleExecutor(opts).Destroy(ctx)
	require.True(t, destroyed.Success, destroyed.Error)
	assert.Equal(t, OpDestroy, destroyed.Operation)

	status = NewStatusExecutor(opts).Execute(ctx)
	require.True(t, status.Success, status.Error)
	assert.Equal(t, domain.ServiceStatusNotDeployed, status.Status)

	local := reload(t, store).LaunchTypes.Local
	assert.Empty(t, local.ContainerID)
	assert.Empty(t, local.ImageID)
}

func TestBuildUpdatesRoundTrip(t *testing.T) {
	store, fs := newProjectStore(t, localDoc)
	opts := Options{
		Store: store,
		Strategies: func(lt config.LaunchType) (strategy.Strategy, error) {
			return strategy.New(lt, strategy.Deps{Fs: fs, WorkDir: projectDir, Docker: dockertest.New()})
		},
	}

	built := NewBuildExecutor(opts).Execute(context.Background(), strategy.BuildOptions{})
	require.True(t, built.Success, built.Error)
	require.True(t, built.Updates.HasUpdates())

	local := reload(t, store).LaunchTypes.Local
	assert.Equal(t, built.Updates.GetString("image_id"), local.ImageID)
	name, ok := local.ImageName.Get()
	require.True(t, ok)
	assert.Equal(t, built.Updates.GetString("image_name"), name)
	assert.Equal(t, "v1", local.ImageTag)
}

// =============================================================================
// Persistence And Error Normalization
// =============================================================================

func TestUpdatesPersistedOnFailure(t *testing.T) {
	store, _ := newProjectStore(t, localDoc)
	u := config.NewUpdates()
	u.Add("image_id", "sha256:partial")
	s := &spy{build: domain.BuildFailure(domain.NewError(domain.ErrorCodePushFailed, "Push", "denied", nil), u)}

	res := NewBuildExecutor(Options{Store: store, Strategies: spyFactory(s)}).Execute(context.Background(), strategy.BuildOptions{})
	require.False(t, res.Success)
	assert.Equal(t, domain.ErrorCodePushFailed, res.ErrorCode)
	assert.Equal(t, "sha256:partial", reload(t, store).LaunchTypes.Local.ImageID)
}

func TestPanicBecomesUnknownError(t *testing.T) {
	store, _ := newProjectStore(t, localDoc)
	s := &spy{panics: true}

	res := NewDeployExecutor(Options{Store: store, Strategies: spyFactory(s)}).Execute(context.Background())
	assert.False(t, res.Success)
	assert.Equal(t, domain.ErrorCodeUnknown, res.ErrorCode)
	assert.Contains(t, res.Error, "deploy exploded")
}

func TestMissingConfig(t *testing.T) {
	store, _ := newProjectStore(t, "")
	res := NewStatusExecutor(Options{Store: store, Strategies: spyFactory(&spy{})}).Execute(context.Background())
	assert.False(t, res.Success)
	assert.Equal(t, domain.ErrorCodeConfigMissing, res.ErrorCode)
}

func TestInvalidConfig(t *testing.T) {
	store, _ := newProjectStore(t, "common:\n  agent_name: weather\n  launch_type: local\n")
	res := NewStatusExecutor(Options{Store: store, Strategies: spyFactory(&spy{})}).Execute(context.Background())
	assert.False(t, res.Success)
	assert.Equal(t, domain.ErrorCodeConfigInvalid, res.ErrorCode)
}

func TestStrategyFactoryError(t *testing.T) {
	store, _ := newProjectStore(t, localDoc)
	factory := func(config.LaunchType) (strategy.Strategy, error) {
		return nil, domain.NewError(domain.ErrorCodeDependencyMissing, "Connect", "docker is not installed", nil)
	}
	res := NewBuildExecutor(Options{Store: store, Strategies: factory}).Execute(context.Background(), strategy.BuildOptions{})
	assert.False(t, res.Success)
	assert.Equal(t, domain.ErrorCodeDependencyMissing, res.ErrorCode)
}

func TestInvoke(t *testing.T) {
	store, _ := newProjectStore(t, localDoc)
	res := NewInvokeExecutor(Options{Store: store, Strategies: spyFactory(&spy{})}).
		Execute(context.Background(), runner.InvokeRequest{Payload: map[string]any{"prompt": "ping"}})
	require.True(t, res.Success)
	assert.Equal(t, "pong", res.Response)
}

// =============================================================================
// Launch
// =============================================================================

func TestLaunch_AppliesBuildUpdatesBeforeDeploy(t *testing.T) {
	store, _ := newProjectStore(t, localDoc)
	s := &spy{
		build:  successfulBuild(map[string]string{"image_id": "sha256:new"}),
		deploy: domain.DeployResult{Success: true, ContainerID: "c1", Updates: updatesOf("container_id", "c1")},
	}

	res := NewLifecycleExecutor(Options{Store: store, Strategies: spyFactory(s)}).Launch(context.Background(), strategy.BuildOptions{})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, OpLaunch, res.Operation)
	assert.Equal(t, "sha256:new", s.deploySawImage)
	require.NotNil(t, res.Build)
	require.NotNil(t, res.Deploy)
	assert.Equal(t, []string{"container_id", "image_id"}, res.Updates.Keys())

	local := reload(t, store).LaunchTypes.Local
	assert.Equal(t, "sha256:new", local.ImageID)
	assert.Equal(t, "c1", local.ContainerID)
}

func TestLaunch_BuildFailureSkipsDeploy(t *testing.T) {
	store, _ := newProjectStore(t, localDoc)
	s := &spy{build: domain.BuildFailure(errors.New("compile error"), nil)}

	res := NewLifecycleExecutor(Options{Store: store, Strategies: spyFactory(s)}).Launch(context.Background(), strategy.BuildOptions{})
	assert.False(t, res.Success)
	assert.Equal(t, domain.ErrorCodeBuildFailed, res.ErrorCode)
	assert.Equal(t, 0, s.deploys)
	assert.Nil(t, res.Deploy)
}

func updatesOf(kv ...string) *config.Updates {
	u := config.NewUpdates()
	for i := 0; i+1 < len(kv); i += 2 {
		u.Add(kv[i], kv[i+1])
	}
	return u
}

// =============================================================================
// Preflight
// =============================================================================

func newPreflightSpy() *spy {
	return &spy{
		required: map[strategy.Operation][]string{
			strategy.OpBuild:  {"cr", "tos"},
			strategy.OpDeploy: {"cr", "agentkit"},
		},
		build:  successfulBuild(nil),
		deploy: domain.DeployResult{Success: true},
	}
}

func TestPreflight_SkipIssuesNoQuery(t *testing.T) {
	store, _ := newProjectStore(t, localDoc)
	svc := &services{}
	s := newPreflightSpy()

	res := NewBuildExecutor(Options{Store: store, Strategies: spyFactory(s), Services: svc, Policy: preflight.PolicySkip}).
		Execute(context.Background(), strategy.BuildOptions{})
	require.True(t, res.Success)
	assert.Empty(t, svc.queries)
	assert.Equal(t, 1, s.builds)
}

func TestPreflight_FailAbortsBeforeStrategy(t *testing.T) {
	store, _ := newProjectStore(t, localDoc)
	svc := &services{enabled: map[string]bool{"cr": true}}
	s := newPreflightSpy()

	res := NewBuildExecutor(Options{Store: store, Strategies: spyFactory(s), Services: svc, Policy: preflight.PolicyFail}).
		Execute(context.Background(), strategy.BuildOptions{})
	assert.False(t, res.Success)
	assert.Equal(t, domain.ErrorCodeDependencyMissing, res.ErrorCode)
	assert.Contains(t, res.Error, "tos")
	assert.Equal(t, 0, s.builds)
}

func TestPreflight_Prompt(t *testing.T) {
	store, _ := newProjectStore(t, localDoc)
	svc := &services{}

	declined := newPreflightSpy()
	rec := reporter.NewRecorder()
	res := NewDeployExecutor(Options{Store: store, Strategies: spyFactory(declined), Services: svc, Policy: preflight.PolicyPrompt, Reporter: rec}).
		Execute(context.Background())
	assert.False(t, res.Success)
	assert.Len(t, rec.Confirmations, 1)
	assert.Equal(t, 0, declined.deploys)

	accepted := newPreflightSpy()
	res = NewDeployExecutor(Options{Store: store, Strategies: spyFactory(accepted), Services: svc, Policy: preflight.PolicyPrompt, Reporter: reporter.NewRecorder(true)}).
		Execute(context.Background())
	assert.True(t, res.Success)
	assert.Equal(t, 1, accepted.deploys)
}

func TestPreflight_WarnContinues(t *testing.T) {
	store, _ := newProjectStore(t, localDoc)
	rec := reporter.NewRecorder()
	s := newPreflightSpy()

	res := NewBuildExecutor(Options{Store: store, Strategies: spyFactory(s), Services: &services{}, Policy: preflight.PolicyWarn, Reporter: rec}).
		Execute(context.Background(), strategy.BuildOptions{})
	assert.True(t, res.Success)
	assert.Len(t, rec.Texts(reporter.LevelWarning), 1)
}

func TestPreflight_QueryFailurePasses(t *testing.T) {
	store, _ := newProjectStore(t, localDoc)
	rec := reporter.NewRecorder()
	s := newPreflightSpy()
	svc := &services{err: errors.New("connection refused")}

	res := NewBuildExecutor(Options{Store: store, Strategies: spyFactory(s), Services: svc, Policy: preflight.PolicyFail, Reporter: rec}).
		Execute(context.Background(), strategy.BuildOptions{})
	assert.True(t, res.Success)
	assert.Equal(t, 1, s.builds)
	assert.NotEmpty(t, rec.Texts(reporter.LevelWarning))
}

func TestPreflight_LaunchQueriesUnionOnce(t *testing.T) {
	store, _ := newProjectStore(t, localDoc)
	svc := &services{enabled: map[string]bool{"cr": true, "tos": true, "agentkit": true}}
	s := newPreflightSpy()

	res := NewLifecycleExecutor(Options{Store: store, Strategies: spyFactory(s), Services: svc, Policy: preflight.PolicyFail}).
		Launch(context.Background(), strategy.BuildOptions{})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, [][]string{{"cr", "tos", "agentkit"}}, svc.queries)
}

func TestPreflight_StatusNeedsNoQuery(t *testing.T) {
	store, _ := newProjectStore(t, localDoc)
	svc := &services{}
	res := NewStatusExecutor(Options{Store: store, Strategies: spyFactory(newPreflightSpy()), Services: svc, Policy: preflight.PolicyFail}).
		Execute(context.Background())
	assert.True(t, res.Success)
	assert.Empty(t, svc.queries)
}

// =============================================================================
// Tracing
// =============================================================================

func TestSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	store, _ := newProjectStore(t, localDoc)
	s := &spy{build: domain.BuildFailure(domain.NewError(domain.ErrorCodeBuildFailed, "Build", "boom", nil), nil)}
	opts := Options{Store: store, Strategies: spyFactory(s), Tracer: tp.Tracer("test")}

	NewBuildExecutor(opts).Execute(context.Background(), strategy.BuildOptions{})
	NewStatusExecutor(opts).Execute(context.Background())

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	build := spans[0]
	assert.Equal(t, "agentkit.build", build.Name)
	assert.Equal(t, codes.Error, build.Status.Code)
	attrs := map[string]string{}
	for _, kv := range build.Attributes {
		attrs[string(kv.Key)] = kv.Value.AsString()
	}
	assert.Equal(t, "BUILD_FAILED", attrs["agentkit.error_code"])
	assert.Equal(t, "local", attrs["agentkit.launch_type"])
	assert.Equal(t, "weather", attrs["agentkit.agent"])

	assert.Equal(t, "agentkit.status", spans[1].Name)
	assert.Equal(t, codes.Ok, spans[1].Status.Code)
}
