package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/agentkit/internal/core/config"
	"github.com/artpar/agentkit/internal/core/deployment"
	"github.com/artpar/agentkit/internal/core/domain"
	"github.com/artpar/agentkit/internal/shell/docker/dockertest"
	"github.com/artpar/agentkit/internal/shell/platform"
	"github.com/artpar/agentkit/internal/shell/platform/platformtest"
)

// =============================================================================
// Test Helpers
// =============================================================================

const workDir = "/proj"

type memStorage struct{ objects map[string][]byte }

func (s *memStorage) EnsureBucket(context.Context, string) (bool, error) { return true, nil }

func (s *memStorage) Upload(_ context.Context, bucket, key string, body []byte) error {
	s.objects[bucket+"/"+key] = body
	return nil
}

func newDeps(t *testing.T) (Deps, *dockertest.Fake, *platformtest.Fake) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, workDir+"/app.py", []byte("print('hi')"), 0o644))
	d := dockertest.New()
	api := platformtest.New()
	return Deps{
		Fs:           fs,
		WorkDir:      workDir,
		Docker:       d,
		Platform:     api,
		Storage:      &memStorage{objects: map[string][]byte{}},
		Pack:         func(string, []string) ([]byte, error) { return []byte("tgz"), nil },
		PollInterval: time.Millisecond,
		LookupEnv: func(k string) (string, bool) {
			if k == "API_KEY" {
				return "secret", true
			}
			return "", false
		},
	}, d, api
}

func newProject(t *testing.T, lt config.LaunchType) *config.ProjectConfig {
	t.Helper()
	p := &config.ProjectConfig{Common: config.CommonConfig{
		AgentName:   "weather",
		EntryPoint:  "app.py",
		LaunchType:  lt,
		RuntimeEnvs: map[string]string{"MODEL": "small", "KEY": "${API_KEY}"},
	}}
	p.ApplyDefaults()
	require.NoError(t, p.Validate())
	return p
}

// =============================================================================
// Construction Tests
// =============================================================================

func TestNew(t *testing.T) {
	deps, _, _ := newDeps(t)

	for _, lt := range []config.LaunchType{config.LaunchTypeLocal, config.LaunchTypeCloud, config.LaunchTypeHybrid} {
		s, err := New(lt, deps)
		require.NoError(t, err)
		assert.Equal(t, lt, s.LaunchType())
	}

	_, err := New("moon", deps)
	assert.Equal(t, domain.ErrorCodeConfigInvalid, domain.CodeOf(err))
}

func TestNew_LocalNeedsDocker(t *testing.T) {
	deps, _, _ := newDeps(t)
	deps.Docker = nil

	_, err := New(config.LaunchTypeLocal, deps)
	assert.Equal(t, domain.ErrorCodeDependencyMissing, domain.CodeOf(err))

	// Hybrid still works for remote operations.
	s, err := New(config.LaunchTypeHybrid, deps)
	require.NoError(t, err)
	res := s.Build(context.Background(), newProject(t, config.LaunchTypeHybrid), BuildOptions{})
	assert.Equal(t, domain.ErrorCodeDependencyMissing, res.ErrorCode)
}

func TestNew_RemoteNeedsPlatform(t *testing.T) {
	deps, _, _ := newDeps(t)
	deps.Storage = nil
	_, err := New(config.LaunchTypeCloud, deps)
	assert.Equal(t, domain.ErrorCodeConfigMissing, domain.CodeOf(err))

	deps.Platform = nil
	_, err = New(config.LaunchTypeHybrid, deps)
	assert.Equal(t, domain.ErrorCodeConfigMissing, domain.CodeOf(err))
}

func TestRequiredServices(t *testing.T) {
	deps, _, _ := newDeps(t)

	assert.Empty(t, NewLocal(deps).RequiredServices(OpBuild))
	assert.Empty(t, NewLocal(deps).RequiredServices(OpDeploy))

	cloud := NewCloud(deps)
	assert.Equal(t, []string{platform.ServiceObjectStorage, platform.ServiceRegistry, platform.ServicePipeline}, cloud.RequiredServices(OpBuild))
	assert.Equal(t, []string{platform.ServiceRuntime, platform.ServiceIAM}, cloud.RequiredServices(OpDeploy))
	assert.Empty(t, cloud.RequiredServices(OpStatus))

	hybrid := NewHybrid(deps)
	assert.Equal(t, []string{platform.ServiceRegistry}, hybrid.RequiredServices(OpBuild))
	assert.Equal(t, []string{platform.ServiceRuntime, platform.ServiceIAM}, hybrid.RequiredServices(OpDeploy))
	assert.Empty(t, hybrid.RequiredServices(OpInvoke))
}

// =============================================================================
// Local Strategy Tests
// =============================================================================

func TestLocal_Lifecycle(t *testing.T) {
	deps, d, _ := newDeps(t)
	s := NewLocal(deps)
	p := newProject(t, config.LaunchTypeLocal)
	p.LaunchTypes.Local.ImageTag = "v1"
	ctx := context.Background()

	built := s.Build(ctx, p, BuildOptions{})
	require.True(t, built.Success, built.Error)
	assert.Equal(t, "weather:v1", built.Image.FullName())
	require.NoError(t, p.ApplyUpdates(built.Updates))

	deployed := s.Deploy(ctx, p)
	require.True(t, deployed.Success, deployed.Error)
	assert.Equal(t, "http://localhost:8000", deployed.EndpointURL)
	assert.NotEmpty(t, deployed.ContainerID)
	require.NoError(t, p.ApplyUpdates(deployed.Updates))

	require.Len(t, d.Created, 1)
	created := d.Created[0]
	assert.Equal(t, "weather", created.Name)
	assert.Equal(t, map[string]string{"MODEL": "small", "KEY": "secret"}, created.Env)

	status := s.Status(ctx, p)
	require.True(t, status.Success)
	assert.Equal(t, domain.ServiceStatusRunning, status.Status)

	destroyed := s.Destroy(ctx, p)
	require.True(t, destroyed.Success, destroyed.Error)
	require.NoError(t, p.ApplyUpdates(destroyed.Updates))

	status = s.Status(ctx, p)
	require.True(t, status.Success)
	assert.Equal(t, domain.ServiceStatusNotDeployed, status.Status)
}

func TestLocal_TargetResolvesVolumesAndEnvs(t *testing.T) {
	deps, _, _ := newDeps(t)
	s := NewLocal(deps)
	p := newProject(t, config.LaunchTypeLocal)
	p.LaunchTypes.Local.Volumes = []string{"./data:/app/data:ro", "cache:/cache"}
	p.LaunchTypes.Local.RuntimeEnvs = map[string]string{"MODEL": "large"}
	p.LaunchTypes.Local.MemoryLimit = "512m"
	p.LaunchTypes.Local.ContainerName = "custom"

	target, err := s.target(p)
	require.NoError(t, err)
	assert.Equal(t, []deployment.VolumeMount{
		{Source: workDir + "/data", Target: "/app/data", ReadOnly: true},
		{Source: "cache", Target: "/cache"},
	}, target.Volumes)
	assert.Equal(t, "large", target.Envs["MODEL"])
	assert.Equal(t, "secret", target.Envs["KEY"])
	assert.Equal(t, int64(512*1024*1024), target.MemoryLimit)
	assert.Equal(t, "custom", target.ContainerName)
	assert.Equal(t, "weather:latest", target.ImageRef)
}

func TestLocal_InvalidPorts(t *testing.T) {
	deps, _, _ := newDeps(t)
	p := newProject(t, config.LaunchTypeLocal)
	p.LaunchTypes.Local.Ports = []string{"not-a-port"}

	res := NewLocal(deps).Deploy(context.Background(), p)
	assert.False(t, res.Success)
	assert.Equal(t, domain.ErrorCodeConfigInvalid, res.ErrorCode)
}

func TestMissingSection(t *testing.T) {
	deps, _, _ := newDeps(t)
	p := &config.ProjectConfig{Common: config.CommonConfig{AgentName: "weather", EntryPoint: "app.py"}}
	ctx := context.Background()

	assert.Equal(t, domain.ErrorCodeConfigMissing, NewLocal(deps).Build(ctx, p, BuildOptions{}).ErrorCode)
	assert.Equal(t, domain.ErrorCodeConfigMissing, NewCloud(deps).Deploy(ctx, p).ErrorCode)
	assert.Equal(t, domain.ErrorCodeConfigMissing, NewHybrid(deps).Status(ctx, p).ErrorCode)
}

// =============================================================================
// Remote Strategy Tests
// =============================================================================

func TestCloud_BuildThenDeploy(t *testing.T) {
	deps, _, api := newDeps(t)
	s := NewCloud(deps)
	p := newProject(t, config.LaunchTypeCloud)
	ctx := context.Background()

	built := s.Build(ctx, p, BuildOptions{})
	require.True(t, built.Success, built.Error)
	require.NoError(t, p.ApplyUpdates(built.Updates))
	assert.Equal(t, built.Image.FullName(), p.LaunchTypes.Cloud.ImageURL)
	assert.False(t, p.LaunchTypes.Cloud.TOSBucket.IsAuto())

	deployed := s.Deploy(ctx, p)
	require.True(t, deployed.Success, deployed.Error)
	rt := api.Runtimes[deployed.ServiceID]
	require.NotNil(t, rt)
	assert.Equal(t, p.LaunchTypes.Cloud.ImageURL, rt.ImageURL)
	assert.Equal(t, []platform.EnvVar{{Key: "KEY", Value: "secret"}, {Key: "MODEL", Value: "small"}}, rt.Envs)

	require.NoError(t, p.ApplyUpdates(deployed.Updates))
	destroyed := s.Destroy(ctx, p)
	require.True(t, destroyed.Success)
	assert.Empty(t, api.Runtimes)
}

func TestHybrid_BuildPushes(t *testing.T) {
	deps, d, _ := newDeps(t)
	s := NewHybrid(deps)
	p := newProject(t, config.LaunchTypeHybrid)

	res := s.Build(context.Background(), p, BuildOptions{})
	require.True(t, res.Success, res.Error)

	instance := res.Updates.GetString("cr_instance_name")
	wantURL := instance + "-cn-beijing.cr.volces.com/agentkit/weather:latest"
	assert.Equal(t, wantURL, res.Updates.GetString("image_url"))
	assert.NotEmpty(t, res.Updates.GetString("image_digest"))
	assert.NotEmpty(t, res.Updates.GetString("image_id"))
	assert.Equal(t, wantURL, res.Image.FullName())
	assert.Equal(t, []string{wantURL}, d.Pushed)
	assert.Equal(t, "linux/amd64", d.Builds[0].Platform)
}

func TestHybrid_PushFailureKeepsBuildUpdates(t *testing.T) {
	deps, d, _ := newDeps(t)
	d.PushErr = assert.AnError
	p := newProject(t, config.LaunchTypeHybrid)

	res := NewHybrid(deps).Build(context.Background(), p, BuildOptions{})
	require.False(t, res.Success)
	assert.Equal(t, domain.ErrorCodePushFailed, res.ErrorCode)
	assert.NotEmpty(t, res.Updates.GetString("image_id"))
	assert.NotEmpty(t, res.Updates.GetString("cr_instance_name"))
	_, ok := res.Updates.Get("image_url")
	assert.False(t, ok)
}
