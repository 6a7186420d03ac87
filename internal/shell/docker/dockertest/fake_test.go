package dockertest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/agentkit/internal/shell/docker"
)

func TestFake_ContainerLifecycle(t *testing.T) {
	ctx := context.Background()
	f := New()
	f.AddImage("weather:v1")

	id, err := f.CreateContainer(ctx, docker.ContainerSpec{Name: "weather", Image: "weather:v1"})
	require.NoError(t, err)

	_, err = f.CreateContainer(ctx, docker.ContainerSpec{Name: "weather", Image: "weather:v1"})
	assert.ErrorIs(t, err, docker.ErrContainerAlreadyExists)

	require.NoError(t, f.StartContainer(ctx, id))
	info, err := f.InspectContainer(ctx, "weather")
	require.NoError(t, err)
	assert.Equal(t, docker.ContainerStatusRunning, info.Status)

	require.NoError(t, f.RemoveContainer(ctx, id, docker.RemoveOptions{Force: true}))
	_, err = f.InspectContainer(ctx, id)
	assert.ErrorIs(t, err, docker.ErrContainerNotFound)
}

func TestFake_ImageLifecycle(t *testing.T) {
	ctx := context.Background()
	f := New()

	out, err := f.BuildImage(ctx, docker.BuildSpec{Tags: []string{"weather:v1"}})
	require.NoError(t, err)

	img, err := f.InspectImage(ctx, "weather:v1")
	require.NoError(t, err)
	assert.Equal(t, out.ImageID, img.ID)

	require.NoError(t, f.TagImage(ctx, "weather:v1", "cr.example.com/ns/weather:v1"))
	_, err = f.PushImage(ctx, "cr.example.com/ns/weather:v1", docker.RegistryAuth{})
	require.NoError(t, err)
	assert.Equal(t, []string{"cr.example.com/ns/weather:v1"}, f.Pushed)

	require.NoError(t, f.RemoveImage(ctx, "weather:v1", true))
	exists, err := f.ImageExists(ctx, out.ImageID)
	require.NoError(t, err)
	assert.False(t, exists)
}
