package runner

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/agentkit/internal/core/deployment"
	"github.com/artpar/agentkit/internal/core/domain"
	"github.com/artpar/agentkit/internal/shell/docker"
	"github.com/artpar/agentkit/internal/shell/docker/dockertest"
	"github.com/artpar/agentkit/internal/shell/invoke"
	"github.com/artpar/agentkit/internal/shell/reporter"
)

// =============================================================================
// Test Helpers
// =============================================================================

func newLocalTarget() LocalTarget {
	return LocalTarget{
		AgentName:     "weather",
		ImageRef:      "weather:v1",
		ContainerName: "weather",
		InvokePort:    8000,
		RestartPolicy: "unless-stopped",
		Envs:          map[string]string{"MODEL": "small"},
	}
}

func newTestLocalRunner(d docker.Client, rep reporter.Reporter) *LocalRunner {
	return NewLocalRunner(d, NewInvoker(invoke.NewClient(time.Second, nil), nil), rep, nil)
}

// =============================================================================
// Deploy Tests
// =============================================================================

func TestLocalDeploy(t *testing.T) {
	d := dockertest.New()
	d.AddImage("weather:v1")
	r := newTestLocalRunner(d, nil)

	res := r.Deploy(context.Background(), newLocalTarget())
	require.True(t, res.Success, res.Error)
	assert.NotEmpty(t, res.ContainerID)
	assert.Equal(t, "http://localhost:8000", res.EndpointURL)
	assert.Equal(t, res.ContainerID, res.Updates.GetString("container_id"))
	assert.Equal(t, "http://localhost:8000", res.Updates.GetString("endpoint"))

	require.Len(t, d.Created, 1)
	spec := d.Created[0]
	assert.Equal(t, "weather", spec.Name)
	assert.Equal(t, "weather:v1", spec.Image)
	assert.Equal(t, "weather", spec.Labels[docker.LabelAgent])
	assert.Equal(t, []docker.PortBinding{{ContainerPort: 8000, HostPort: 8000, Protocol: "tcp", HostIP: "127.0.0.1"}}, spec.Ports)
	assert.Equal(t, "small", spec.Env["MODEL"])
}

func TestLocalDeploy_CustomHostPort(t *testing.T) {
	d := dockertest.New()
	d.AddImage("weather:v1")
	target := newLocalTarget()
	target.Ports = []deployment.PortMapping{{HostPort: 9100, ContainerPort: 8000, Protocol: "tcp"}}

	res := newTestLocalRunner(d, nil).Deploy(context.Background(), target)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "http://localhost:9100", res.EndpointURL)
}

func TestLocalDeploy_ReplacesContainer(t *testing.T) {
	d := dockertest.New()
	d.AddImage("weather:v1")
	r := newTestLocalRunner(d, nil)

	first := r.Deploy(context.Background(), newLocalTarget())
	require.True(t, first.Success)

	target := newLocalTarget()
	target.ContainerID = first.ContainerID
	second := r.Deploy(context.Background(), target)
	require.True(t, second.Success, second.Error)

	assert.NotEqual(t, first.ContainerID, second.ContainerID)
	assert.Len(t, d.Containers, 1)
}

func TestLocalDeploy_ImageMissing(t *testing.T) {
	res := newTestLocalRunner(dockertest.New(), nil).Deploy(context.Background(), newLocalTarget())
	assert.False(t, res.Success)
	assert.Equal(t, domain.ErrorCodeResourceNotFound, res.ErrorCode)
}

func TestLocalDeploy_StaleImageIDFallsBackToTag(t *testing.T) {
	d := dockertest.New()
	d.AddImage("weather:v1")
	target := newLocalTarget()
	target.ImageID = "sha256:gone"

	res := newTestLocalRunner(d, nil).Deploy(context.Background(), target)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "weather:v1", d.Created[0].Image)
}

func TestLocalDeploy_ContainerExits(t *testing.T) {
	d := dockertest.New()
	d.AddImage("weather:v1")
	d.ExitOnStart = true
	for i := 1; i <= 30; i++ {
		d.ExitLogs = append(d.ExitLogs, fmt.Sprintf("line %d", i))
	}
	rec := reporter.NewRecorder()

	res := newTestLocalRunner(d, rec).Deploy(context.Background(), newLocalTarget())
	require.False(t, res.Success)
	assert.Equal(t, domain.ErrorCodeDeployFailed, res.ErrorCode)
	assert.Contains(t, res.Error, "exited with code 1")
	assert.Contains(t, res.Error, "line 30")
	assert.NotContains(t, res.Error, "line 10\n")
	assert.Len(t, rec.Texts(reporter.LevelError), ExitLogLines)
	// The container id is kept so it can be inspected.
	assert.NotEmpty(t, res.Updates.GetString("container_id"))
}

// =============================================================================
// Status, Stop, Destroy Tests
// =============================================================================

func TestLocalStatus(t *testing.T) {
	d := dockertest.New()
	d.AddImage("weather:v1")
	r := newTestLocalRunner(d, nil)
	deployed := r.Deploy(context.Background(), newLocalTarget())
	require.True(t, deployed.Success)

	target := newLocalTarget()
	target.ContainerID = deployed.ContainerID
	res := r.Status(context.Background(), target)
	require.True(t, res.Success)
	assert.Equal(t, domain.ServiceStatusRunning, res.Status)
	assert.Equal(t, "http://localhost:8000", res.EndpointURL)
	assert.False(t, res.Updates.HasUpdates())
}

func TestLocalStatus_ImageCheckFailureOmitsDetail(t *testing.T) {
	d := dockertest.New()
	d.AddImage("weather:v1")
	r := newTestLocalRunner(d, nil)
	deployed := r.Deploy(context.Background(), newLocalTarget())
	require.True(t, deployed.Success)

	d.ImageExistsErr = fmt.Errorf("daemon hiccup")
	target := newLocalTarget()
	target.ContainerID = deployed.ContainerID
	res := r.Status(context.Background(), target)
	require.True(t, res.Success)
	assert.Equal(t, domain.ServiceStatusRunning, res.Status)
	assert.NotContains(t, res.Details, "image_exists")

	d.ImageExistsErr = nil
	res = r.Status(context.Background(), target)
	assert.Equal(t, true, res.Details["image_exists"])
}

func TestLocalStatus_StaleIDFoundByName(t *testing.T) {
	d := dockertest.New()
	d.AddImage("weather:v1")
	r := newTestLocalRunner(d, nil)
	deployed := r.Deploy(context.Background(), newLocalTarget())
	require.True(t, deployed.Success)

	target := newLocalTarget()
	target.ContainerID = "c-stale"
	res := r.Status(context.Background(), target)
	require.True(t, res.Success)
	assert.Equal(t, domain.ServiceStatusRunning, res.Status)
	assert.Equal(t, deployed.ContainerID, res.Updates.GetString("container_id"))
}

func TestLocalStatus_NotDeployed(t *testing.T) {
	target := newLocalTarget()
	target.ContainerID = "c-gone"
	res := newTestLocalRunner(dockertest.New(), nil).Status(context.Background(), target)
	require.True(t, res.Success)
	assert.Equal(t, domain.ServiceStatusNotDeployed, res.Status)
	v, ok := res.Updates.Get("container_id")
	assert.True(t, ok)
	assert.Equal(t, "", v)
}

func TestLocalStop(t *testing.T) {
	d := dockertest.New()
	d.AddImage("weather:v1")
	r := newTestLocalRunner(d, nil)
	require.True(t, r.Deploy(context.Background(), newLocalTarget()).Success)

	res := r.Stop(context.Background(), newLocalTarget())
	require.True(t, res.Success, res.Error)
	assert.Equal(t, domain.ServiceStatusStopped, r.Status(context.Background(), newLocalTarget()).Status)

	// Stopping a stopped container is fine.
	assert.True(t, r.Stop(context.Background(), newLocalTarget()).Success)
}

func TestLocalDestroy_Idempotent(t *testing.T) {
	d := dockertest.New()
	d.AddImage("weather:v1")
	r := newTestLocalRunner(d, nil)
	deployed := r.Deploy(context.Background(), newLocalTarget())
	require.True(t, deployed.Success)

	target := newLocalTarget()
	target.ContainerID = deployed.ContainerID

	first := r.Destroy(context.Background(), target)
	require.True(t, first.Success, first.Error)
	assert.Empty(t, d.Containers)
	exists, _ := d.ImageExists(context.Background(), "weather:v1")
	assert.False(t, exists)

	second := r.Destroy(context.Background(), target)
	assert.True(t, second.Success, second.Error)
}
