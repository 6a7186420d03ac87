package strategy

import (
	"context"
	"time"

	"github.com/artpar/agentkit/internal/core/config"
	"github.com/artpar/agentkit/internal/core/domain"
	"github.com/artpar/agentkit/internal/shell/builder"
	"github.com/artpar/agentkit/internal/shell/platform"
	"github.com/artpar/agentkit/internal/shell/registry"
	"github.com/artpar/agentkit/internal/shell/runner"
	"github.com/artpar/agentkit/internal/shell/storage"
)

// Cloud builds with the remote pipeline and runs on a remote runtime.
type Cloud struct {
	deps    Deps
	builder *builder.CloudBuilder
	remote  *remote
}

// NewCloud creates the cloud strategy. d.Platform and d.Storage must be set.
func NewCloud(d Deps) *Cloud {
	d.applyDefaults()
	pack := d.Pack
	if pack == nil {
		pack = storage.PackSource
	}
	var regOpts []registry.Option
	var buildOpts []builder.CloudOption
	if d.PollInterval > 0 {
		regOpts = append(regOpts, registry.WithPollInterval(d.PollInterval))
		buildOpts = append(buildOpts, builder.WithPollInterval(d.PollInterval))
	}
	reg := registry.New(d.Platform, d.Docker, d.Reporter, d.Logger, regOpts...)
	return &Cloud{
		deps:    d,
		builder: builder.NewCloudBuilder(d.Fs, d.WorkDir, d.Storage, reg, d.Platform, pack, d.Reporter, d.Logger, buildOpts...),
		remote:  newRemote(d),
	}
}

func (s *Cloud) LaunchType() config.LaunchType { return config.LaunchTypeCloud }

func (s *Cloud) RequiredServices(op Operation) []string {
	switch op {
	case OpBuild:
		return []string{platform.ServiceObjectStorage, platform.ServiceRegistry, platform.ServicePipeline}
	case OpDeploy:
		return []string{platform.ServiceRuntime, platform.ServiceIAM}
	default:
		return nil
	}
}

func (s *Cloud) Build(ctx context.Context, p *config.ProjectConfig, opts BuildOptions) domain.BuildResult {
	cfg := p.LaunchTypes.Cloud
	if cfg == nil {
		return domain.BuildFailure(sectionMissing(config.LaunchTypeCloud), config.NewUpdates())
	}
	return s.builder.Build(ctx, builder.CloudRequest{
		Project:      builder.ProjectFromConfig(p.Common, "", DefaultPort),
		Bucket:       cfg.TOSBucket,
		Prefix:       cfg.TOSPrefix,
		Registry:     cfg.RegistrySettings,
		ImageTag:     cfg.ImageTag,
		PipelineID:   cfg.PipelineID,
		PipelineName: cfg.PipelineName,
		Timeout:      time.Duration(cfg.BuildTimeout) * time.Second,
		Force:        opts.ForceRegenerate,
	})
}

func (s *Cloud) Deploy(ctx context.Context, p *config.ProjectConfig) domain.DeployResult {
	cfg := p.LaunchTypes.Cloud
	if cfg == nil {
		return domain.DeployFailure(sectionMissing(config.LaunchTypeCloud), config.NewUpdates())
	}
	return s.remote.deploy(ctx, p.Common, cfg.RuntimeSettings, cfg.ImageURL, cfg.RuntimeEnvs)
}

func (s *Cloud) Invoke(ctx context.Context, p *config.ProjectConfig, req runner.InvokeRequest) domain.InvokeResult {
	cfg := p.LaunchTypes.Cloud
	if cfg == nil {
		return domain.InvokeFailure(sectionMissing(config.LaunchTypeCloud))
	}
	return s.remote.invoke(ctx, p.Common, cfg.RuntimeSettings, req)
}

func (s *Cloud) Status(ctx context.Context, p *config.ProjectConfig) domain.StatusResult {
	cfg := p.LaunchTypes.Cloud
	if cfg == nil {
		return domain.StatusFailure(sectionMissing(config.LaunchTypeCloud))
	}
	return s.remote.runner.Status(ctx, cfg.RuntimeSettings)
}

func (s *Cloud) Stop(ctx context.Context, p *config.ProjectConfig) domain.LifecycleResult {
	cfg := p.LaunchTypes.Cloud
	if cfg == nil {
		return domain.LifecycleFailure("stop", sectionMissing(config.LaunchTypeCloud), config.NewUpdates())
	}
	return s.remote.runner.Stop(ctx, cfg.RuntimeSettings)
}

func (s *Cloud) Destroy(ctx context.Context, p *config.ProjectConfig) domain.LifecycleResult {
	cfg := p.LaunchTypes.Cloud
	if cfg == nil {
		return domain.LifecycleFailure("destroy", sectionMissing(config.LaunchTypeCloud), config.NewUpdates())
	}
	return s.remote.runner.Destroy(ctx, cfg.RuntimeSettings)
}

// =============================================================================
// Remote Runtime
// =============================================================================

// remote resolves runtime targets for the cloud and hybrid strategies.
type remote struct {
	deps   Deps
	runner *runner.RemoteRunner
}

func newRemote(d Deps) *remote {
	var opts []runner.RemoteOption
	if d.PollInterval > 0 {
		opts = append(opts, runner.WithPollInterval(d.PollInterval))
	}
	return &remote{
		deps:   d,
		runner: runner.NewRemoteRunner(d.Platform, runner.NewInvoker(d.HTTP, d.Logger), d.HTTP, d.Reporter, d.Logger, opts...),
	}
}

func (r *remote) target(common config.CommonConfig, settings config.RuntimeSettings, imageURL string, envs map[string]string) runner.RuntimeTarget {
	return runner.RuntimeTarget{
		AgentName:   common.AgentName,
		Description: common.Description,
		Settings:    settings,
		ImageURL:    imageURL,
		Envs:        runtimeEnvs(r.deps, common, envs),
		Port:        DefaultPort,
		A2A:         common.IsA2A(),
	}
}

func (r *remote) deploy(ctx context.Context, common config.CommonConfig, settings config.RuntimeSettings, imageURL string, envs map[string]string) domain.DeployResult {
	return r.runner.Deploy(ctx, r.target(common, settings, imageURL, envs))
}

func (r *remote) invoke(ctx context.Context, common config.CommonConfig, settings config.RuntimeSettings, req runner.InvokeRequest) domain.InvokeResult {
	return r.runner.Invoke(ctx, r.target(common, settings, "", nil), req)
}
