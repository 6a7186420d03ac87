package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/artpar/agentkit/internal/core/config"
	"github.com/artpar/agentkit/internal/core/deployment"
	"github.com/artpar/agentkit/internal/core/domain"
	"github.com/artpar/agentkit/internal/shell/docker"
	"github.com/artpar/agentkit/internal/shell/reporter"
)

// ExitLogLines is how many log lines of a container that exited right after
// start are attached to the deploy failure.
const ExitLogLines = 20

// LocalTarget is a resolved local deployment.
type LocalTarget struct {
	AgentName     string
	ImageRef      string // name:tag
	ImageID       string
	ContainerName string
	ContainerID   string
	InvokePort    int
	Ports         []deployment.PortMapping
	Volumes       []deployment.VolumeMount
	RestartPolicy string
	CPULimit      float64
	MemoryLimit   int64
	Envs          map[string]string
	Endpoint      string
	A2A           bool
}

// image returns the reference the container runs: the id when known,
// otherwise name:tag.
func (t LocalTarget) image() string {
	if t.ImageID != "" {
		return t.ImageID
	}
	return t.ImageRef
}

// LocalRunner runs the agent as a container on the local engine.
type LocalRunner struct {
	docker      docker.Client
	invoker     *Invoker
	rep         reporter.Reporter
	logger      *slog.Logger
	stopTimeout time.Duration
}

// NewLocalRunner creates a LocalRunner.
func NewLocalRunner(d docker.Client, invoker *Invoker, rep reporter.Reporter, logger *slog.Logger) *LocalRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalRunner{
		docker:      d,
		invoker:     invoker,
		rep:         reporter.OrSilent(rep),
		logger:      logger.With("component", "local_runner"),
		stopTimeout: 10 * time.Second,
	}
}

// Deploy replaces any container named t.ContainerName with a new one running
// the target image and returns its id and loopback endpoint.
func (r *LocalRunner) Deploy(ctx context.Context, t LocalTarget) domain.DeployResult {
	updates := config.NewUpdates()

	image := t.image()
	exists, err := r.docker.ImageExists(ctx, image)
	if err == nil && !exists && t.ImageID != "" && t.ImageRef != "" {
		// A rebuilt image replaces the recorded id.
		image = t.ImageRef
		exists, err = r.docker.ImageExists(ctx, image)
	}
	if err != nil {
		return domain.DeployFailure(domain.NewError(domain.ErrorCodeDeployFailed, "Deploy", "check image", err), updates)
	}
	if !exists {
		return domain.DeployFailure(domain.NewError(domain.ErrorCodeResourceNotFound, "Deploy",
			fmt.Sprintf("image %s not found; build it first", image), docker.ErrImageNotFound), updates)
	}

	if err := r.removeExisting(ctx, t); err != nil {
		return domain.DeployFailure(domain.NewError(domain.ErrorCodeDeployFailed, "Deploy", "remove previous container", err), updates)
	}

	ports := deployment.WithInvokePort(t.Ports, t.InvokePort)
	spec := docker.ContainerSpec{
		Name:  t.ContainerName,
		Image: image,
		Env:   t.Envs,
		Labels: map[string]string{
			docker.LabelManaged: "true",
			docker.LabelAgent:   t.AgentName,
		},
		Ports:         portBindings(ports),
		Volumes:       volumeMounts(t.Volumes),
		RestartPolicy: docker.RestartPolicy{Name: t.RestartPolicy},
		Resources:     docker.ResourceLimits{CPULimit: t.CPULimit, MemoryLimit: t.MemoryLimit},
	}

	r.rep.Info(fmt.Sprintf("Starting container %s from %s", t.ContainerName, image))
	id, err := r.docker.CreateContainer(ctx, spec)
	if err != nil {
		return domain.DeployFailure(domain.NewError(domain.ErrorCodeDeployFailed, "CreateContainer", "", err), updates)
	}
	updates.Add("container_id", id)

	if err := r.docker.StartContainer(ctx, id); err != nil {
		return domain.DeployFailure(domain.NewError(domain.ErrorCodeDeployFailed, "StartContainer", "", err), updates)
	}

	info, err := r.docker.InspectContainer(ctx, id)
	if err != nil {
		return domain.DeployFailure(domain.NewError(domain.ErrorCodeDeployFailed, "InspectContainer", "", err), updates)
	}
	if info.Status == docker.ContainerStatusExited || info.Status == docker.ContainerStatusDead {
		logs, _ := r.docker.ContainerLogs(ctx, id, docker.LogOptions{Tail: fmt.Sprint(ExitLogLines)})
		for _, line := range logs {
			r.rep.Error(line)
		}
		msg := fmt.Sprintf("container exited with code %d", info.ExitCode)
		if len(logs) > 0 {
			msg += ":\n" + strings.Join(logs, "\n")
		}
		return domain.DeployFailure(domain.NewError(domain.ErrorCodeDeployFailed, "Deploy", msg, nil), updates)
	}

	endpoint := deployment.LocalEndpoint(deployment.InvokeHostPort(ports, t.InvokePort))
	updates.Add("endpoint", endpoint)
	r.rep.Success(fmt.Sprintf("Container %s running at %s", t.ContainerName, endpoint))
	r.logger.Info("container deployed", "container_id", id, "image", image, "endpoint", endpoint)

	return domain.DeployResult{Success: true, ContainerID: id, EndpointURL: endpoint, Updates: updates}
}

// removeExisting stops and removes the recorded container and any container
// with the target name.
func (r *LocalRunner) removeExisting(ctx context.Context, t LocalTarget) error {
	for _, ref := range []string{t.ContainerID, t.ContainerName} {
		if ref == "" {
			continue
		}
		info, err := r.docker.InspectContainer(ctx, ref)
		if docker.IsNotFound(err) {
			continue
		}
		if err != nil {
			return err
		}
		r.logger.Info("removing previous container", "container_id", info.ID, "name", info.Name)
		if err := r.docker.RemoveContainer(ctx, info.ID, docker.RemoveOptions{Force: true}); err != nil && !docker.IsNotFound(err) {
			return err
		}
	}
	return nil
}

// find locates the container by id, falling back to its name when the id is
// stale. byName reports whether the fallback was used.
func (r *LocalRunner) find(ctx context.Context, t LocalTarget) (info *docker.ContainerInfo, byName bool, err error) {
	if t.ContainerID != "" {
		info, err = r.docker.InspectContainer(ctx, t.ContainerID)
		if err == nil {
			return info, false, nil
		}
		if !docker.IsNotFound(err) {
			return nil, false, err
		}
	}
	if t.ContainerName == "" {
		return nil, false, nil
	}
	info, err = r.docker.InspectContainer(ctx, t.ContainerName)
	if docker.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return info, true, nil
}

// Status reports the container state. A stale recorded id is replaced by the
// id of the container found by name.
func (r *LocalRunner) Status(ctx context.Context, t LocalTarget) domain.StatusResult {
	updates := config.NewUpdates()

	info, byName, err := r.find(ctx, t)
	if err != nil {
		return domain.StatusFailure(domain.NewError(domain.ErrorCodeUnknown, "Status", "inspect container", err))
	}

	details := map[string]any{
		"container_name": t.ContainerName,
		"image":          t.image(),
	}
	if exists, err := r.docker.ImageExists(ctx, t.image()); err != nil {
		r.logger.Debug("image check failed", "image", t.image(), "error", err)
	} else {
		details["image_exists"] = exists
	}

	if info == nil {
		if t.ContainerID != "" {
			updates.Add("container_id", "")
		}
		return domain.StatusResult{Success: true, Status: domain.ServiceStatusNotDeployed, Details: details, Updates: updates}
	}
	if byName && info.ID != t.ContainerID {
		updates.Add("container_id", info.ID)
	}

	status := domain.ContainerServiceStatus(info.State)
	details["state"] = info.State
	if info.Health != "" {
		details["health"] = info.Health
		if info.Health == "unhealthy" && status == domain.ServiceStatusRunning {
			status = domain.ServiceStatusUnhealthy
		}
	}

	endpoint := ""
	if status == domain.ServiceStatusRunning || status == domain.ServiceStatusUnhealthy {
		endpoint = t.Endpoint
		if endpoint == "" {
			endpoint = deployment.LocalEndpoint(deployment.InvokeHostPort(deployment.WithInvokePort(t.Ports, t.InvokePort), t.InvokePort))
		}
	}

	return domain.StatusResult{
		Success:     true,
		Status:      status,
		ContainerID: info.ID,
		EndpointURL: endpoint,
		Details:     details,
		Updates:     updates,
	}
}

// Stop stops the container without removing it.
func (r *LocalRunner) Stop(ctx context.Context, t LocalTarget) domain.LifecycleResult {
	info, _, err := r.find(ctx, t)
	if err != nil {
		return domain.LifecycleFailure("stop", domain.NewError(domain.ErrorCodeUnknown, "StopContainer", "", err), nil)
	}
	if info == nil {
		r.rep.Info("No container to stop")
		return domain.LifecycleResult{Success: true, Operation: "stop"}
	}
	timeout := r.stopTimeout
	if err := r.docker.StopContainer(ctx, info.ID, &timeout); err != nil &&
		!errors.Is(err, docker.ErrContainerNotRunning) && !docker.IsNotFound(err) {
		return domain.LifecycleFailure("stop", domain.NewError(domain.ErrorCodeUnknown, "StopContainer", "", err), nil)
	}
	r.rep.Success(fmt.Sprintf("Stopped container %s", info.Name))
	return domain.LifecycleResult{Success: true, Operation: "stop"}
}

// Destroy removes the container and then the image. Anything already gone
// counts as removed.
func (r *LocalRunner) Destroy(ctx context.Context, t LocalTarget) domain.LifecycleResult {
	updates := config.NewUpdates()

	info, _, err := r.find(ctx, t)
	if err != nil {
		return domain.LifecycleFailure("destroy", domain.NewError(domain.ErrorCodeUnknown, "InspectContainer", "", err), updates)
	}
	if info != nil {
		if err := r.docker.RemoveContainer(ctx, info.ID, docker.RemoveOptions{Force: true}); err != nil && !docker.IsNotFound(err) {
			return domain.LifecycleFailure("destroy", domain.NewError(domain.ErrorCodeUnknown, "RemoveContainer", "", err), updates)
		}
		r.rep.Info(fmt.Sprintf("Removed container %s", info.Name))
	}
	updates.Add("container_id", "")
	updates.Add("endpoint", "")

	for _, ref := range []string{t.ImageID, t.ImageRef} {
		if ref == "" {
			continue
		}
		err := r.docker.RemoveImage(ctx, ref, true)
		if err == nil {
			r.rep.Info(fmt.Sprintf("Removed image %s", ref))
			continue
		}
		if docker.IsNotFound(err) {
			continue
		}
		if errors.Is(err, docker.ErrImageInUse) {
			r.rep.Warning(fmt.Sprintf("Image %s is used by another container and was kept", ref))
			continue
		}
		return domain.LifecycleFailure("destroy", domain.NewError(domain.ErrorCodeUnknown, "RemoveImage", "", err), updates)
	}
	updates.Add("image_id", "")

	r.rep.Success(fmt.Sprintf("Destroyed local deployment of %s", t.AgentName))
	return domain.LifecycleResult{Success: true, Operation: "destroy", Updates: updates}
}

// Invoke calls the container's endpoint.
func (r *LocalRunner) Invoke(ctx context.Context, t LocalTarget, req InvokeRequest) domain.InvokeResult {
	endpoint := t.Endpoint
	if endpoint == "" && t.ContainerID != "" {
		endpoint = deployment.LocalEndpoint(deployment.InvokeHostPort(deployment.WithInvokePort(t.Ports, t.InvokePort), t.InvokePort))
	}
	return r.invoker.invoke(ctx, target{baseURL: endpoint, agentName: t.AgentName, a2a: t.A2A}, req)
}

func portBindings(mappings []deployment.PortMapping) []docker.PortBinding {
	out := make([]docker.PortBinding, 0, len(mappings))
	for _, m := range mappings {
		out = append(out, docker.PortBinding{
			ContainerPort: m.ContainerPort,
			HostPort:      m.HostPort,
			Protocol:      m.Protocol,
			HostIP:        "127.0.0.1",
		})
	}
	return out
}

func volumeMounts(mounts []deployment.VolumeMount) []docker.VolumeMount {
	out := make([]docker.VolumeMount, 0, len(mounts))
	for _, m := range mounts {
		out = append(out, docker.VolumeMount{Source: m.Source, Target: m.Target, ReadOnly: m.ReadOnly})
	}
	return out
}
