// Package strategy binds a builder and a runner for one launch type behind a
// uniform build/deploy/invoke/status/stop/destroy contract.
//
// Strategies read the active section of a loaded ProjectConfig, resolve it
// into builder and runner requests and return typed results. They never
// write configuration; updates travel back in the results.
package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"

	"github.com/artpar/agentkit/internal/core/config"
	"github.com/artpar/agentkit/internal/core/deployment"
	"github.com/artpar/agentkit/internal/core/domain"
	"github.com/artpar/agentkit/internal/shell/builder"
	"github.com/artpar/agentkit/internal/shell/docker"
	"github.com/artpar/agentkit/internal/shell/invoke"
	"github.com/artpar/agentkit/internal/shell/platform"
	"github.com/artpar/agentkit/internal/shell/reporter"
	"github.com/artpar/agentkit/internal/shell/runner"
)

// DefaultPort is the port remote runtimes serve the agent on.
const DefaultPort = 8000

// Operation names a strategy operation.
type Operation string

const (
	OpBuild   Operation = "build"
	OpDeploy  Operation = "deploy"
	OpInvoke  Operation = "invoke"
	OpStatus  Operation = "status"
	OpStop    Operation = "stop"
	OpDestroy Operation = "destroy"
)

// BuildOptions tune a build.
type BuildOptions struct {
	// ForceRegenerate rewrites the build descriptor even when it is current
	// or hand-written.
	ForceRegenerate bool
}

// Strategy runs every operation for one launch type.
type Strategy interface {
	LaunchType() config.LaunchType

	// RequiredServices lists the platform services op depends on.
	RequiredServices(op Operation) []string

	Build(ctx context.Context, p *config.ProjectConfig, opts BuildOptions) domain.BuildResult
	Deploy(ctx context.Context, p *config.ProjectConfig) domain.DeployResult
	Invoke(ctx context.Context, p *config.ProjectConfig, req runner.InvokeRequest) domain.InvokeResult
	Status(ctx context.Context, p *config.ProjectConfig) domain.StatusResult
	Stop(ctx context.Context, p *config.ProjectConfig) domain.LifecycleResult
	Destroy(ctx context.Context, p *config.ProjectConfig) domain.LifecycleResult
}

// Platform is the remote management API used by the cloud and hybrid
// strategies.
type Platform interface {
	platform.RuntimeAPI
	platform.RegistryAPI
	platform.PipelineAPI
}

// Deps are the collaborators shared by every strategy.
type Deps struct {
	Fs      afero.Fs
	WorkDir string

	// Docker is nil when the container engine is unavailable; DockerErr
	// then says why.
	Docker    docker.Client
	DockerErr error

	Platform Platform
	Storage  builder.Storage
	Pack     builder.PackFunc
	HTTP     *invoke.Client

	Reporter reporter.Reporter
	Logger   *slog.Logger

	// PollInterval overrides the remote wait interval. Zero keeps the
	// component defaults.
	PollInterval time.Duration

	// LookupEnv resolves ${VAR} references in runtime_envs.
	// Default: os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

func (d *Deps) applyDefaults() {
	if d.Fs == nil {
		d.Fs = afero.NewOsFs()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	d.Reporter = reporter.OrSilent(d.Reporter)
	if d.HTTP == nil {
		d.HTTP = invoke.NewClient(0, d.Logger)
	}
	if d.LookupEnv == nil {
		d.LookupEnv = os.LookupEnv
	}
}

// New returns the strategy for lt. Missing prerequisites are reported here
// as DEPENDENCY_MISSING or CONFIG_MISSING errors.
func New(lt config.LaunchType, d Deps) (Strategy, error) {
	d.applyDefaults()
	switch lt {
	case config.LaunchTypeLocal:
		if d.Docker == nil {
			return nil, dockerMissing(d.DockerErr)
		}
		return NewLocal(d), nil
	case config.LaunchTypeCloud:
		if d.Platform == nil || d.Storage == nil {
			return nil, domain.NewError(domain.ErrorCodeConfigMissing, "Strategy",
				"cloud launch needs platform and object storage credentials", nil)
		}
		return NewCloud(d), nil
	case config.LaunchTypeHybrid:
		if d.Platform == nil {
			return nil, domain.NewError(domain.ErrorCodeConfigMissing, "Strategy",
				"hybrid launch needs platform credentials", nil)
		}
		return NewHybrid(d), nil
	default:
		return nil, domain.NewError(domain.ErrorCodeConfigInvalid, "Strategy",
			fmt.Sprintf("unknown launch type %q", lt), nil)
	}
}

func dockerMissing(cause error) error {
	if domain.CodeOf(cause) == domain.ErrorCodeDependencyMissing {
		return cause
	}
	return domain.NewError(domain.ErrorCodeDependencyMissing, "Strategy", "the container engine is not available", cause)
}

// =============================================================================
// Shared Helpers
// =============================================================================

func sectionMissing(lt config.LaunchType) error {
	return domain.NewError(domain.ErrorCodeConfigMissing, "Strategy",
		fmt.Sprintf("launch_types.%s section is missing", lt), nil)
}

// runtimeEnvs layers the common and section envs and expands ${VAR}
// references.
func runtimeEnvs(d Deps, common config.CommonConfig, section map[string]string) map[string]string {
	return deployment.ExpandEnvs(deployment.MergeEnvs(common.RuntimeEnvs, section), d.LookupEnv)
}

// imageName resolves an image name, defaulting to the agent slug.
func imageName(name config.AutoString, agentName string) string {
	v, _ := name.Resolve(func() string { return deployment.Slug(agentName) })
	return v
}

// resolveVolumes turns relative and home-relative bind mount sources into
// absolute paths.
func resolveVolumes(workDir string, mounts []deployment.VolumeMount) ([]deployment.VolumeMount, error) {
	out := make([]deployment.VolumeMount, 0, len(mounts))
	for _, m := range mounts {
		if !m.IsBindMount() {
			out = append(out, m)
			continue
		}
		switch {
		case strings.HasPrefix(m.Source, "~"):
			expanded, err := homedir.Expand(m.Source)
			if err != nil {
				return nil, fmt.Errorf("expand volume source %s: %w", m.Source, err)
			}
			m.Source = expanded
		case strings.HasPrefix(m.Source, "."):
			m.Source = filepath.Join(workDir, m.Source)
		}
		out = append(out, m)
	}
	return out, nil
}
