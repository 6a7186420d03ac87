package platform

import "context"

// RuntimeAPI manages runtimes and the roles they run under.
type RuntimeAPI interface {
	EnsureRole(ctx context.Context, name string) (bool, error)
	CreateRuntime(ctx context.Context, in CreateRuntimeInput) (*CreateRuntimeOutput, error)
	GetRuntime(ctx context.Context, runtimeID string) (*Runtime, error)
	UpdateRuntime(ctx context.Context, in UpdateRuntimeInput) error
	ReleaseRuntime(ctx context.Context, runtimeID string) error
	DeleteRuntime(ctx context.Context, runtimeID string) error
	FindRuntimeByName(ctx context.Context, name string) (*Runtime, error)
	DownloadLog(ctx context.Context, url string, maxLines int) ([]string, error)
}

// RegistryAPI manages registry instances, namespaces and repositories.
type RegistryAPI interface {
	Region() string
	GetInstance(ctx context.Context, name string) (*Instance, error)
	CreateInstance(ctx context.Context, name string) error
	EnsureNamespace(ctx context.Context, instance, namespace string) (bool, error)
	EnsureRepository(ctx context.Context, instance, namespace, repo string) (bool, error)
	GetAuthorizationToken(ctx context.Context, instance string) (*RegistryCredentials, error)
}

// PipelineAPI manages build pipelines and their runs.
type PipelineAPI interface {
	CreatePipeline(ctx context.Context, in CreatePipelineInput) (string, error)
	GetPipeline(ctx context.Context, pipelineID string) (*Pipeline, error)
	RunPipeline(ctx context.Context, in RunPipelineInput) (string, error)
	GetPipelineRun(ctx context.Context, pipelineID, runID string) (*PipelineRun, error)
	DownloadLog(ctx context.Context, url string, maxLines int) ([]string, error)
}

// ServiceAPI reports which platform services are enabled.
type ServiceAPI interface {
	ServiceStatuses(ctx context.Context, services []string) (map[string]bool, error)
}

var (
	_ RuntimeAPI  = (*Client)(nil)
	_ RegistryAPI = (*Client)(nil)
	_ PipelineAPI = (*Client)(nil)
	_ ServiceAPI  = (*Client)(nil)
)
