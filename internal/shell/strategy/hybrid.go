package strategy

import (
	"context"
	"fmt"

	"github.com/artpar/agentkit/internal/core/config"
	"github.com/artpar/agentkit/internal/core/domain"
	"github.com/artpar/agentkit/internal/shell/builder"
	"github.com/artpar/agentkit/internal/shell/platform"
	"github.com/artpar/agentkit/internal/shell/registry"
	"github.com/artpar/agentkit/internal/shell/runner"
)

// Hybrid builds on the local engine, pushes to the registry and runs on a
// remote runtime.
type Hybrid struct {
	deps     Deps
	builder  *builder.LocalBuilder
	registry *registry.Registry
	remote   *remote
}

// NewHybrid creates the hybrid strategy. d.Platform must be set; without
// d.Docker only deploy, invoke, status and destroy work.
func NewHybrid(d Deps) *Hybrid {
	d.applyDefaults()
	var regOpts []registry.Option
	if d.PollInterval > 0 {
		regOpts = append(regOpts, registry.WithPollInterval(d.PollInterval))
	}
	return &Hybrid{
		deps:     d,
		builder:  builder.NewLocalBuilder(d.Fs, d.WorkDir, d.Docker, d.Reporter, d.Logger),
		registry: registry.New(d.Platform, d.Docker, d.Reporter, d.Logger, regOpts...),
		remote:   newRemote(d),
	}
}

func (s *Hybrid) LaunchType() config.LaunchType { return config.LaunchTypeHybrid }

func (s *Hybrid) RequiredServices(op Operation) []string {
	switch op {
	case OpBuild:
		return []string{platform.ServiceRegistry}
	case OpDeploy:
		return []string{platform.ServiceRuntime, platform.ServiceIAM}
	default:
		return nil
	}
}

// Build builds the image locally and pushes it. A failed push keeps the
// updates of the local build and of any registry resources created.
func (s *Hybrid) Build(ctx context.Context, p *config.ProjectConfig, opts BuildOptions) domain.BuildResult {
	cfg := p.LaunchTypes.Hybrid
	if cfg == nil {
		return domain.BuildFailure(sectionMissing(config.LaunchTypeHybrid), config.NewUpdates())
	}
	if s.deps.Docker == nil {
		return domain.BuildFailure(dockerMissing(s.deps.DockerErr), config.NewUpdates())
	}

	res := s.builder.Build(ctx, builder.LocalRequest{
		Project:   builder.ProjectFromConfig(p.Common, cfg.BaseImage, DefaultPort),
		ImageName: cfg.ImageName,
		ImageTag:  cfg.ImageTag,
		Platform:  cfg.Platform,
		Force:     opts.ForceRegenerate,
	})
	if !res.Success {
		return res
	}
	updates := res.Updates

	pushFailure := func(err error) domain.BuildResult {
		out := domain.BuildFailure(domain.NewError(domain.ErrorCodePushFailed, "Push", "", err), updates)
		out.BuildLogs = res.BuildLogs
		return out
	}

	target, err := s.registry.Ensure(ctx, cfg.RegistrySettings, p.Common.AgentName, updates)
	if err != nil {
		return pushFailure(err)
	}
	pushed, err := s.registry.Push(ctx, res.Image.FullName(), target, res.Image.Tag)
	if err != nil {
		return pushFailure(err)
	}
	updates.Add("image_url", pushed.ImageURL)
	updates.Add("image_digest", pushed.Digest)

	s.deps.Reporter.Success(fmt.Sprintf("Pushed %s", pushed.ImageURL))
	return domain.BuildResult{
		Success: true,
		Image: &domain.ImageInfo{
			Repository: target.Image(),
			Tag:        res.Image.Tag,
			Digest:     pushed.Digest,
			ID:         res.Image.ID,
		},
		BuildLogs: res.BuildLogs,
		Updates:   updates,
	}
}

func (s *Hybrid) Deploy(ctx context.Context, p *config.ProjectConfig) domain.DeployResult {
	cfg := p.LaunchTypes.Hybrid
	if cfg == nil {
		return domain.DeployFailure(sectionMissing(config.LaunchTypeHybrid), config.NewUpdates())
	}
	return s.remote.deploy(ctx, p.Common, cfg.RuntimeSettings, cfg.ImageURL, cfg.RuntimeEnvs)
}

func (s *Hybrid) Invoke(ctx context.Context, p *config.ProjectConfig, req runner.InvokeRequest) domain.InvokeResult {
	cfg := p.LaunchTypes.Hybrid
	if cfg == nil {
		return domain.InvokeFailure(sectionMissing(config.LaunchTypeHybrid))
	}
	return s.remote.invoke(ctx, p.Common, cfg.RuntimeSettings, req)
}

func (s *Hybrid) Status(ctx context.Context, p *config.ProjectConfig) domain.StatusResult {
	cfg := p.LaunchTypes.Hybrid
	if cfg == nil {
		return domain.StatusFailure(sectionMissing(config.LaunchTypeHybrid))
	}
	return s.remote.runner.Status(ctx, cfg.RuntimeSettings)
}

func (s *Hybrid) Stop(ctx context.Context, p *config.ProjectConfig) domain.LifecycleResult {
	cfg := p.LaunchTypes.Hybrid
	if cfg == nil {
		return domain.LifecycleFailure("stop", sectionMissing(config.LaunchTypeHybrid), config.NewUpdates())
	}
	return s.remote.runner.Stop(ctx, cfg.RuntimeSettings)
}

func (s *Hybrid) Destroy(ctx context.Context, p *config.ProjectConfig) domain.LifecycleResult {
	cfg := p.LaunchTypes.Hybrid
	if cfg == nil {
		return domain.LifecycleFailure("destroy", sectionMissing(config.LaunchTypeHybrid), config.NewUpdates())
	}
	return s.remote.runner.Destroy(ctx, cfg.RuntimeSettings)
}
