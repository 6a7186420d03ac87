package config

import (
	"fmt"

	"github.com/artpar/agentkit/internal/core/deployment"
)

// StrategyConfig is implemented by the per-launch-type sections.
// Exactly one variant is active for a project, selected by
// common.launch_type.
type StrategyConfig interface {
	LaunchType() LaunchType
	Validate() error
}

// =============================================================================
// Local
// =============================================================================

// LocalConfig configures building and running the agent on the local
// container engine.
type LocalConfig struct {
	ImageName     AutoString        `yaml:"image_name"`
	ImageTag      string            `yaml:"image_tag" default:"latest"`
	ImageID       string            `yaml:"image_id,omitempty"`
	BaseImage     string            `yaml:"base_image,omitempty"`
	Platform      string            `yaml:"platform,omitempty"`
	ContainerName string            `yaml:"container_name,omitempty"`
	ContainerID   string            `yaml:"container_id,omitempty"`
	InvokePort    int               `yaml:"invoke_port" default:"8000"`
	Ports         []string          `yaml:"ports,omitempty"`
	Volumes       []string          `yaml:"volumes,omitempty"`
	RestartPolicy string            `yaml:"restart_policy" default:"unless-stopped"`
	CPULimit      float64           `yaml:"cpu_limit,omitempty"`
	MemoryLimit   string            `yaml:"memory_limit,omitempty"`
	RuntimeEnvs   map[string]string `yaml:"runtime_envs,omitempty"`
	Endpoint      string            `yaml:"endpoint,omitempty"`
}

func (c *LocalConfig) LaunchType() LaunchType { return LaunchTypeLocal }

// Validate checks the local section.
func (c *LocalConfig) Validate() error {
	var errs ValidationErrors
	if c.InvokePort <= 0 || c.InvokePort > 65535 {
		errs = append(errs, ValidationError{Field: "local.invoke_port", Message: fmt.Sprintf("invalid port %d", c.InvokePort)})
	}
	if _, err := deployment.ParsePortMappings(c.Ports); err != nil {
		errs = append(errs, ValidationError{Field: "local.ports", Message: err.Error()})
	}
	if _, err := deployment.ParseVolumeMounts(c.Volumes); err != nil {
		errs = append(errs, ValidationError{Field: "local.volumes", Message: err.Error()})
	}
	if _, err := deployment.ParseMemory(c.MemoryLimit); err != nil {
		errs = append(errs, ValidationError{Field: "local.memory_limit", Message: err.Error()})
	}
	if c.CPULimit < 0 {
		errs = append(errs, ValidationError{Field: "local.cpu_limit", Message: "cpu_limit must not be negative"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// Shared Remote Sections
// =============================================================================

// RegistrySettings locates the container registry repository that receives
// the built artifact.
type RegistrySettings struct {
	CRInstanceName  AutoString `yaml:"cr_instance_name"`
	CRNamespaceName AutoString `yaml:"cr_namespace_name"`
	CRRepoName      AutoString `yaml:"cr_repo_name"`
	CRRegion        string     `yaml:"cr_region,omitempty"`
}

// RuntimeSettings describes the remote runtime that serves the agent.
type RuntimeSettings struct {
	RuntimeID         AutoString        `yaml:"runtime_id"`
	RuntimeName       AutoString        `yaml:"runtime_name"`
	RuntimeRoleName   AutoString        `yaml:"runtime_role_name"`
	RuntimeAPIKeyName AutoString        `yaml:"runtime_apikey_name"`
	RuntimeAPIKey     string            `yaml:"runtime_apikey,omitempty"`
	RuntimeEndpoint   string            `yaml:"runtime_endpoint,omitempty"`
	RuntimeEnvs       map[string]string `yaml:"runtime_envs,omitempty"`
	DeployTimeout     int               `yaml:"deploy_timeout" default:"600"`
	HealthPath        string            `yaml:"health_path" default:"/ping"`
}

func (r RuntimeSettings) validate(section string) ValidationErrors {
	var errs ValidationErrors
	if r.DeployTimeout <= 0 {
		errs = append(errs, ValidationError{Field: section + ".deploy_timeout", Message: "deploy_timeout must be positive"})
	}
	return errs
}

// =============================================================================
// Cloud
// =============================================================================

// CloudConfig configures building on the remote pipeline and running on the
// remote runtime.
type CloudConfig struct {
	Region       string     `yaml:"region" default:"cn-beijing"`
	TOSBucket    AutoString `yaml:"tos_bucket"`
	TOSPrefix    string     `yaml:"tos_prefix" default:"agentkit-builds"`
	TOSObjectKey string     `yaml:"tos_object_key,omitempty"`

	RegistrySettings `yaml:",inline"`

	ImageTag    AutoString `yaml:"image_tag"`
	ImageURL    string     `yaml:"image_url,omitempty"`
	ImageDigest string     `yaml:"image_digest,omitempty"`

	PipelineID   AutoString `yaml:"cp_pipeline_id"`
	PipelineName AutoString `yaml:"cp_pipeline_name"`
	BuildTimeout int        `yaml:"build_timeout" default:"3600"`

	RuntimeSettings `yaml:",inline"`
}

func (c *CloudConfig) LaunchType() LaunchType { return LaunchTypeCloud }

// Validate checks the cloud section.
func (c *CloudConfig) Validate() error {
	var errs ValidationErrors
	if c.Region == "" {
		errs = append(errs, ValidationError{Field: "cloud.region", Message: "region is required"})
	}
	if c.BuildTimeout <= 0 {
		errs = append(errs, ValidationError{Field: "cloud.build_timeout", Message: "build_timeout must be positive"})
	}
	errs = append(errs, c.RuntimeSettings.validate("cloud")...)
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// Hybrid
// =============================================================================

// HybridConfig configures building on the local engine, pushing to the
// registry and running on the remote runtime.
type HybridConfig struct {
	Region    string     `yaml:"region" default:"cn-beijing"`
	ImageName AutoString `yaml:"image_name"`
	ImageTag  string     `yaml:"image_tag" default:"latest"`
	ImageID   string     `yaml:"image_id,omitempty"`
	BaseImage string     `yaml:"base_image,omitempty"`
	Platform  string     `yaml:"platform" default:"linux/amd64"`

	RegistrySettings `yaml:",inline"`

	ImageURL    string `yaml:"image_url,omitempty"`
	ImageDigest string `yaml:"image_digest,omitempty"`

	RuntimeSettings `yaml:",inline"`
}

func (c *HybridConfig) LaunchType() LaunchType { return LaunchTypeHybrid }

// Validate checks the hybrid section.
func (c *HybridConfig) Validate() error {
	var errs ValidationErrors
	if c.Region == "" {
		errs = append(errs, ValidationError{Field: "hybrid.region", Message: "region is required"})
	}
	if c.ImageTag == "" {
		errs = append(errs, ValidationError{Field: "hybrid.image_tag", Message: "image_tag is required"})
	}
	errs = append(errs, c.RuntimeSettings.validate("hybrid")...)
	if len(errs) > 0 {
		return errs
	}
	return nil
}
