package registry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/agentkit/internal/core/config"
	"github.com/artpar/agentkit/internal/shell/docker"
	"github.com/artpar/agentkit/internal/shell/docker/dockertest"
	"github.com/artpar/agentkit/internal/shell/platform"
	"github.com/artpar/agentkit/internal/shell/platform/platformtest"
	"github.com/artpar/agentkit/internal/shell/reporter"
)

func newTestRegistry(api platform.RegistryAPI, d docker.Client, opts ...Option) *Registry {
	opts = append([]Option{WithPollInterval(time.Millisecond)}, opts...)
	return New(api, d, reporter.Silent{}, nil, opts...)
}

// =============================================================================
// Ensure Tests
// =============================================================================

func TestEnsure_GeneratesAndCreates(t *testing.T) {
	api := platformtest.New()
	api.InstanceStatuses = []string{"Creating", "Running"}
	r := newTestRegistry(api, nil)
	updates := config.NewUpdates()

	target, err := r.Ensure(context.Background(), config.RegistrySettings{}, "WeatherAgent", updates)
	require.NoError(t, err)

	assert.Regexp(t, `^agentkit-[0-9a-f]{8}$`, target.Instance)
	assert.Equal(t, "agentkit", target.Namespace)
	assert.Equal(t, "weather-agent", target.Repository)
	assert.Equal(t, "cn-beijing", target.Region)
	assert.Equal(t, []string{"cr_instance_name", "cr_namespace_name", "cr_repo_name"}, updates.Keys())
	assert.Equal(t, target.Instance, updates.GetString("cr_instance_name"))
	assert.Equal(t, 1, api.Count("CreateInstance"))
}

func TestEnsure_SecondRunIsIdempotent(t *testing.T) {
	api := platformtest.New()
	r := newTestRegistry(api, nil)
	ctx := context.Background()

	updates := config.NewUpdates()
	first, err := r.Ensure(ctx, config.RegistrySettings{}, "weather", updates)
	require.NoError(t, err)

	settings := config.RegistrySettings{
		CRInstanceName:  config.Value(updates.GetString("cr_instance_name")),
		CRNamespaceName: config.Value(updates.GetString("cr_namespace_name")),
		CRRepoName:      config.Value(updates.GetString("cr_repo_name")),
	}
	again := config.NewUpdates()
	second, err := r.Ensure(ctx, settings, "weather", again)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.False(t, again.HasUpdates())
	assert.Equal(t, 1, api.Count("CreateInstance"))
	assert.Len(t, api.Namespaces, 1)
	assert.Len(t, api.Repositories, 1)
}

func TestEnsure_PartialUpdatesOnFailure(t *testing.T) {
	api := platformtest.New()
	api.Errors["EnsureRepository"] = errors.New("quota exceeded")
	r := newTestRegistry(api, nil)
	updates := config.NewUpdates()

	_, err := r.Ensure(context.Background(), config.RegistrySettings{}, "weather", updates)
	require.ErrorContains(t, err, "quota exceeded")
	assert.Equal(t, []string{"cr_instance_name", "cr_namespace_name"}, updates.Keys())
}

func TestEnsure_InstanceFailed(t *testing.T) {
	api := platformtest.New()
	api.InstanceStatuses = []string{"Creating", "Failed"}
	r := newTestRegistry(api, nil)
	updates := config.NewUpdates()

	_, err := r.Ensure(context.Background(), config.RegistrySettings{}, "weather", updates)
	require.Error(t, err)
	assert.False(t, updates.HasUpdates())
}

func TestEnsure_ExplicitRegion(t *testing.T) {
	api := platformtest.New()
	r := newTestRegistry(api, nil)
	settings := config.RegistrySettings{CRInstanceName: config.Value("shared"), CRRegion: "cn-shanghai"}

	target, err := r.Ensure(context.Background(), settings, "weather", config.NewUpdates())
	require.NoError(t, err)
	assert.Equal(t, "shared-cn-shanghai.cr.volces.com/agentkit/weather", target.Image())
}

// =============================================================================
// Push Tests
// =============================================================================

func TestPush(t *testing.T) {
	api := platformtest.New()
	d := dockertest.New()
	d.AddImage("weather:latest")
	r := newTestRegistry(api, d, WithDigestFunc(func(context.Context, string, docker.RegistryAuth) (string, error) {
		t.Fatal("digest lookup should not be needed")
		return "", nil
	}))
	target := Target{Instance: "inst", Namespace: "agentkit", Repository: "weather", Region: "cn-beijing"}

	res, err := r.Push(context.Background(), "weather:latest", target, "v2")
	require.NoError(t, err)
	assert.Equal(t, "inst-cn-beijing.cr.volces.com/agentkit/weather:v2", res.ImageURL)
	assert.Regexp(t, `^sha256:[0-9a-f]{64}$`, res.Digest)
	assert.Equal(t, []string{res.ImageURL}, d.Pushed)
}

func TestPush_Failure(t *testing.T) {
	d := dockertest.New()
	d.AddImage("weather:latest")
	d.PushErr = docker.ErrImagePushFailed
	r := newTestRegistry(platformtest.New(), d)

	_, err := r.Push(context.Background(), "weather:latest", Target{Instance: "i", Namespace: "n", Repository: "r"}, "v1")
	assert.ErrorIs(t, err, docker.ErrImagePushFailed)
}

func TestDigestFromPushOutput(t *testing.T) {
	digest := "sha256:" + strings.Repeat("ab", 32)
	lines := []string{"The push refers to repository [x]", "v1: digest: " + digest + " size: 1570"}
	assert.Equal(t, digest, DigestFromPushOutput(lines))
	assert.Empty(t, DigestFromPushOutput([]string{"pushed"}))
}
