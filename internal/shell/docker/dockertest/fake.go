// Package dockertest provides an in-memory docker.Client for tests.
package dockertest

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/artpar/agentkit/internal/shell/docker"
)

// Fake is an in-memory docker.Client. Containers start in the "created"
// state and move to "running" on start. Exported error fields inject
// failures into the matching call.
type Fake struct {
	mu sync.Mutex

	Images     map[string]*docker.ImageInfo // keyed by every tag and id
	Containers map[string]*docker.ContainerInfo
	Logs       map[string][]string // container id -> log lines
	Pushed     []string
	Builds     []docker.BuildSpec
	Created    []docker.ContainerSpec

	// ExitOnStart makes started containers exit immediately with code 1
	// after writing ExitLogs.
	ExitOnStart bool
	ExitLogs    []string

	PingErr        error
	BuildErr       error
	PushErr        error
	CreateErr      error
	StartErr       error
	ImageExistsErr error

	nextID int
}

var _ docker.Client = (*Fake)(nil)

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		Images:     map[string]*docker.ImageInfo{},
		Containers: map[string]*docker.ContainerInfo{},
		Logs:       map[string][]string{},
	}
}

func (f *Fake) newID(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s%012d", prefix, f.nextID)
}

// AddImage registers an image under ref.
func (f *Fake) AddImage(ref string) *docker.ImageInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	img := &docker.ImageInfo{ID: f.newID("sha256:"), RepoTags: []string{ref}, CreatedAt: time.Now()}
	f.Images[ref] = img
	f.Images[img.ID] = img
	return img
}

// ContainerByName returns the container named name.
func (f *Fake) ContainerByName(name string) *docker.ContainerInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.Containers {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// =============================================================================
// Container Operations
// =============================================================================

func (f *Fake) CreateContainer(ctx context.Context, spec docker.ContainerSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return "", f.CreateErr
	}
	if _, ok := f.Images[spec.Image]; !ok {
		return "", docker.NewDockerError("CreateContainer", "image", spec.Image, "image not found", docker.ErrImageNotFound)
	}
	for _, c := range f.Containers {
		if c.Name == spec.Name {
			return "", docker.NewDockerError("CreateContainer", "container", spec.Name, "container already exists", docker.ErrContainerAlreadyExists)
		}
	}
	id := f.newID("c")
	f.Containers[id] = &docker.ContainerInfo{
		ID:        id,
		Name:      spec.Name,
		Image:     spec.Image,
		Status:    docker.ContainerStatusCreated,
		State:     string(docker.ContainerStatusCreated),
		CreatedAt: time.Now(),
		Ports:     spec.Ports,
		Labels:    spec.Labels,
	}
	f.Created = append(f.Created, spec)
	return id, nil
}

func (f *Fake) lookup(op, id string) (*docker.ContainerInfo, error) {
	if c, ok := f.Containers[id]; ok {
		return c, nil
	}
	for _, c := range f.Containers {
		if c.Name == id {
			return c, nil
		}
	}
	return nil, docker.NewDockerError(op, "container", id, "container not found", docker.ErrContainerNotFound)
}

func (f *Fake) setStatus(c *docker.ContainerInfo, s docker.ContainerStatus) {
	c.Status = s
	c.State = string(s)
}

func (f *Fake) StartContainer(ctx context.Context, containerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StartErr != nil {
		return f.StartErr
	}
	c, err := f.lookup("StartContainer", containerID)
	if err != nil {
		return err
	}
	if f.ExitOnStart {
		f.setStatus(c, docker.ContainerStatusExited)
		c.ExitCode = 1
		f.Logs[c.ID] = f.ExitLogs
		return nil
	}
	f.setStatus(c, docker.ContainerStatusRunning)
	return nil
}

func (f *Fake) StopContainer(ctx context.Context, containerID string, timeout *time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.lookup("StopContainer", containerID)
	if err != nil {
		return err
	}
	if c.Status != docker.ContainerStatusRunning {
		return docker.NewDockerError("StopContainer", "container", containerID, "container is not running", docker.ErrContainerNotRunning)
	}
	f.setStatus(c, docker.ContainerStatusExited)
	return nil
}

func (f *Fake) RemoveContainer(ctx context.Context, containerID string, opts docker.RemoveOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.lookup("RemoveContainer", containerID)
	if err != nil {
		return err
	}
	delete(f.Containers, c.ID)
	return nil
}

func (f *Fake) InspectContainer(ctx context.Context, containerID string) (*docker.ContainerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.lookup("InspectContainer", containerID)
	if err != nil {
		return nil, err
	}
	cp := *c
	return &cp, nil
}

func (f *Fake) ContainerLogs(ctx context.Context, containerID string, opts docker.LogOptions) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.lookup("ContainerLogs", containerID)
	if err != nil {
		return nil, err
	}
	lines := f.Logs[c.ID]
	if n, err := strconv.Atoi(opts.Tail); err == nil && n >= 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

// =============================================================================
// Image Operations
// =============================================================================

func (f *Fake) BuildImage(ctx context.Context, spec docker.BuildSpec) (*docker.BuildOutput, error) {
	f.mu.Lock()
	f.Builds = append(f.Builds, spec)
	if f.BuildErr != nil {
		err := f.BuildErr
		f.mu.Unlock()
		return nil, err
	}
	img := &docker.ImageInfo{ID: f.newID("sha256:"), RepoTags: spec.Tags, CreatedAt: time.Now()}
	for _, tag := range spec.Tags {
		f.Images[tag] = img
	}
	f.Images[img.ID] = img
	f.mu.Unlock()

	logs := []string{"Step 1/1 : FROM scratch", "Successfully built " + img.ID}
	for _, line := range logs {
		if spec.OnLog != nil {
			spec.OnLog(line)
		}
	}
	return &docker.BuildOutput{ImageID: img.ID, Logs: logs}, nil
}

func (f *Fake) InspectImage(ctx context.Context, ref string) (*docker.ImageInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	img, ok := f.Images[ref]
	if !ok {
		return nil, docker.NewDockerError("InspectImage", "image", ref, "image not found", docker.ErrImageNotFound)
	}
	cp := *img
	return &cp, nil
}

func (f *Fake) ImageExists(ctx context.Context, ref string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ImageExistsErr != nil {
		return false, f.ImageExistsErr
	}
	_, ok := f.Images[ref]
	return ok, nil
}

func (f *Fake) RemoveImage(ctx context.Context, ref string, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	img, ok := f.Images[ref]
	if !ok {
		return docker.NewDockerError("RemoveImage", "image", ref, "image not found", docker.ErrImageNotFound)
	}
	for k, v := range f.Images {
		if v == img {
			delete(f.Images, k)
		}
	}
	return nil
}

func (f *Fake) TagImage(ctx context.Context, source, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	img, ok := f.Images[source]
	if !ok {
		return docker.NewDockerError("TagImage", "image", source, "image not found", docker.ErrImageNotFound)
	}
	img.RepoTags = append(img.RepoTags, target)
	f.Images[target] = img
	return nil
}

func (f *Fake) PushImage(ctx context.Context, ref string, auth docker.RegistryAuth) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PushErr != nil {
		return nil, f.PushErr
	}
	if _, ok := f.Images[ref]; !ok {
		return nil, docker.NewDockerError("PushImage", "image", ref, "image not found", docker.ErrImageNotFound)
	}
	f.Pushed = append(f.Pushed, ref)
	f.nextID++
	return []string{
		"The push refers to repository [" + ref + "]",
		fmt.Sprintf("latest: digest: sha256:%064x size: 1570", f.nextID),
	}, nil
}

func (f *Fake) Ping(ctx context.Context) error { return f.PingErr }
func (f *Fake) Close() error                   { return nil }
