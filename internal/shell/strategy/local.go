package strategy

import (
	"context"

	"github.com/artpar/agentkit/internal/core/config"
	"github.com/artpar/agentkit/internal/core/deployment"
	"github.com/artpar/agentkit/internal/core/domain"
	"github.com/artpar/agentkit/internal/shell/builder"
	"github.com/artpar/agentkit/internal/shell/runner"
)

// Local builds and runs the agent on the local container engine.
type Local struct {
	deps    Deps
	builder *builder.LocalBuilder
	runner  *runner.LocalRunner
}

// NewLocal creates the local strategy. d.Docker must be set.
func NewLocal(d Deps) *Local {
	d.applyDefaults()
	return &Local{
		deps:    d,
		builder: builder.NewLocalBuilder(d.Fs, d.WorkDir, d.Docker, d.Reporter, d.Logger),
		runner:  runner.NewLocalRunner(d.Docker, runner.NewInvoker(d.HTTP, d.Logger), d.Reporter, d.Logger),
	}
}

func (s *Local) LaunchType() config.LaunchType { return config.LaunchTypeLocal }

// RequiredServices is empty; nothing local depends on the platform.
func (s *Local) RequiredServices(Operation) []string { return nil }

func (s *Local) Build(ctx context.Context, p *config.ProjectConfig, opts BuildOptions) domain.BuildResult {
	cfg := p.LaunchTypes.Local
	if cfg == nil {
		return domain.BuildFailure(sectionMissing(config.LaunchTypeLocal), config.NewUpdates())
	}
	return s.builder.Build(ctx, builder.LocalRequest{
		Project:   builder.ProjectFromConfig(p.Common, cfg.BaseImage, cfg.InvokePort),
		ImageName: cfg.ImageName,
		ImageTag:  cfg.ImageTag,
		Platform:  cfg.Platform,
		Force:     opts.ForceRegenerate,
	})
}

func (s *Local) Deploy(ctx context.Context, p *config.ProjectConfig) domain.DeployResult {
	t, err := s.target(p)
	if err != nil {
		return domain.DeployFailure(err, config.NewUpdates())
	}
	return s.runner.Deploy(ctx, t)
}

func (s *Local) Invoke(ctx context.Context, p *config.ProjectConfig, req runner.InvokeRequest) domain.InvokeResult {
	t, err := s.target(p)
	if err != nil {
		return domain.InvokeFailure(err)
	}
	return s.runner.Invoke(ctx, t, req)
}

func (s *Local) Status(ctx context.Context, p *config.ProjectConfig) domain.StatusResult {
	t, err := s.target(p)
	if err != nil {
		return domain.StatusFailure(err)
	}
	return s.runner.Status(ctx, t)
}

func (s *Local) Stop(ctx context.Context, p *config.ProjectConfig) domain.LifecycleResult {
	t, err := s.target(p)
	if err != nil {
		return domain.LifecycleFailure("stop", err, config.NewUpdates())
	}
	return s.runner.Stop(ctx, t)
}

func (s *Local) Destroy(ctx context.Context, p *config.ProjectConfig) domain.LifecycleResult {
	t, err := s.target(p)
	if err != nil {
		return domain.LifecycleFailure("destroy", err, config.NewUpdates())
	}
	return s.runner.Destroy(ctx, t)
}

// target resolves the local section into a runner target.
func (s *Local) target(p *config.ProjectConfig) (runner.LocalTarget, error) {
	cfg := p.LaunchTypes.Local
	if cfg == nil {
		return runner.LocalTarget{}, sectionMissing(config.LaunchTypeLocal)
	}
	invalid := func(field string, err error) error {
		return domain.NewError(domain.ErrorCodeConfigInvalid, "Strategy", "local."+field, err)
	}

	ports, err := deployment.ParsePortMappings(cfg.Ports)
	if err != nil {
		return runner.LocalTarget{}, invalid("ports", err)
	}
	mounts, err := deployment.ParseVolumeMounts(cfg.Volumes)
	if err != nil {
		return runner.LocalTarget{}, invalid("volumes", err)
	}
	mounts, err = resolveVolumes(s.deps.WorkDir, mounts)
	if err != nil {
		return runner.LocalTarget{}, invalid("volumes", err)
	}
	memory, err := deployment.ParseMemory(cfg.MemoryLimit)
	if err != nil {
		return runner.LocalTarget{}, invalid("memory_limit", err)
	}

	agent := p.Common.AgentName
	containerName := cfg.ContainerName
	if containerName == "" {
		containerName = deployment.Slug(agent)
	}
	return runner.LocalTarget{
		AgentName:     agent,
		ImageRef:      domain.ImageInfo{Repository: imageName(cfg.ImageName, agent), Tag: cfg.ImageTag}.FullName(),
		ImageID:       cfg.ImageID,
		ContainerName: containerName,
		ContainerID:   cfg.ContainerID,
		InvokePort:    cfg.InvokePort,
		Ports:         ports,
		Volumes:       mounts,
		RestartPolicy: cfg.RestartPolicy,
		CPULimit:      cfg.CPULimit,
		MemoryLimit:   memory,
		Envs:          runtimeEnvs(s.deps, p.Common, cfg.RuntimeEnvs),
		Endpoint:      cfg.Endpoint,
		A2A:           p.Common.IsA2A(),
	}, nil
}
