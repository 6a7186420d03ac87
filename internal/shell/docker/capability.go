package docker

import (
	"context"
	"errors"
	"fmt"

	"github.com/cli/safeexec"

	"github.com/artpar/agentkit/internal/core/domain"
)

// ErrDockerUnavailable is returned by Connect when the daemon cannot be used.
var ErrDockerUnavailable = errors.New("docker is not available")

// Connect creates a client and verifies the daemon answers. A failure is
// returned as a DEPENDENCY_MISSING domain error whose message says whether the
// docker CLI is installed, so the user knows to install or to start Docker.
func Connect(ctx context.Context, host string) (*DockerClient, error) {
	cli, err := NewDockerClient(ctx, host)
	if err != nil {
		return nil, dependencyError(err)
	}
	if err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, dependencyError(err)
	}
	return cli, nil
}

func dependencyError(cause error) error {
	msg := "docker daemon is not reachable; start Docker and retry"
	if _, err := safeexec.LookPath("docker"); err != nil {
		msg = "docker is not installed; install Docker to build and run agents locally"
	}
	return domain.NewError(domain.ErrorCodeDependencyMissing, "Connect", msg,
		fmt.Errorf("%w: %w", ErrDockerUnavailable, cause))
}
