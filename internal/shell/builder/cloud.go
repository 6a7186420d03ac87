package builder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/artpar/agentkit/internal/core/config"
	"github.com/artpar/agentkit/internal/core/deployment"
	"github.com/artpar/agentkit/internal/core/domain"
	"github.com/artpar/agentkit/internal/shell/platform"
	"github.com/artpar/agentkit/internal/shell/registry"
	"github.com/artpar/agentkit/internal/shell/reporter"
	"github.com/artpar/agentkit/internal/shell/wait"
)

// FailureLogLines is how many pipeline log lines a failed build returns.
const FailureLogLines = 100

// Pipeline run parameters.
const (
	ParamImageTag     = "IMAGE_TAG"
	ParamSourceObject = "SOURCE_OBJECT"
	ParamDockerfile   = "DOCKERFILE"
)

// Storage uploads build sources.
type Storage interface {
	EnsureBucket(ctx context.Context, bucket string) (bool, error)
	Upload(ctx context.Context, bucket, key string, body []byte) error
}

// Registry ensures the image repository.
type Registry interface {
	Ensure(ctx context.Context, settings config.RegistrySettings, agentName string, updates *config.Updates) (registry.Target, error)
}

// PackFunc archives a build context directory.
type PackFunc func(dir string, exclude []string) ([]byte, error)

// CloudRequest is a build on the remote pipeline.
type CloudRequest struct {
	Project
	Bucket       config.AutoString
	Prefix       string
	Registry     config.RegistrySettings
	ImageTag     config.AutoString
	PipelineID   config.AutoString
	PipelineName config.AutoString
	Timeout      time.Duration
	Force        bool
}

// CloudBuilder uploads the project and builds it with the remote pipeline.
type CloudBuilder struct {
	prep     preparer
	storage  Storage
	registry Registry
	api      platform.PipelineAPI
	pack     PackFunc
	rep      reporter.Reporter
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
}

// CloudOption configures a CloudBuilder.
type CloudOption func(*CloudBuilder)

// WithPollInterval sets the pipeline run poll interval.
func WithPollInterval(d time.Duration) CloudOption { return func(b *CloudBuilder) { b.interval = d } }

// WithClock sets the clock used for object keys and generated tags.
func WithClock(now func() time.Time) CloudOption { return func(b *CloudBuilder) { b.now = now } }

// NewCloudBuilder creates a cloud builder rooted at workDir. pack archives
// the context directory from the operating system filesystem.
func NewCloudBuilder(fsys afero.Fs, workDir string, st Storage, reg Registry, api platform.PipelineAPI, pack PackFunc,
	rep reporter.Reporter, logger *slog.Logger, opts ...CloudOption) *CloudBuilder {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if logger == nil {
		logger = slog.Default()
	}
	rep = reporter.OrSilent(rep)
	b := &CloudBuilder{
		prep:     preparer{fs: fsys, workDir: workDir, rep: rep},
		storage:  st,
		registry: reg,
		api:      api,
		pack:     pack,
		rep:      rep,
		logger:   logger.With("component", "cloud_builder"),
		interval: 5 * time.Second,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build runs the whole remote build. Each completed side-effecting step adds
// its updates before the next step starts, so a failed build still returns
// what was created.
func (b *CloudBuilder) Build(ctx context.Context, req CloudRequest) domain.BuildResult {
	updates := config.NewUpdates()
	now := b.now()
	suffix := deployment.NewSuffix()

	bc, err := b.prep.prepare(req.Project, req.Force)
	if err != nil {
		return domain.BuildFailure(err, updates)
	}

	archive, err := b.pack(bc.Dir, DefaultExclude)
	if err != nil {
		return domain.BuildFailure(domain.NewError(domain.ErrorCodeBuildFailed, "Build", "archive sources", err), updates)
	}

	bucket, genBucket := req.Bucket.Resolve(func() string { return deployment.BucketName(req.AgentName, suffix) })
	created, err := b.storage.EnsureBucket(ctx, bucket)
	if err != nil {
		return domain.BuildFailure(domain.NewError(domain.ErrorCodeBuildFailed, "EnsureBucket", bucket, err), updates)
	}
	if created {
		b.rep.Info(fmt.Sprintf("Created bucket %s", bucket))
	}
	if genBucket {
		updates.Add("tos_bucket", bucket)
	}

	key := deployment.ObjectKey(req.Prefix, req.AgentName, now)
	if err := b.storage.Upload(ctx, bucket, key, archive); err != nil {
		return domain.BuildFailure(domain.NewError(domain.ErrorCodeBuildFailed, "Upload", key, err), updates)
	}
	updates.Add("tos_object_key", key)
	b.rep.Info(fmt.Sprintf("Uploaded sources to %s/%s", bucket, key))

	target, err := b.registry.Ensure(ctx, req.Registry, req.AgentName, updates)
	if err != nil {
		return domain.BuildFailure(domain.NewError(domain.ErrorCodeBuildFailed, "EnsureRegistry", "", err), updates)
	}

	pipelineID, err := b.ensurePipeline(ctx, req, bucket, target, suffix, updates)
	if err != nil {
		return domain.BuildFailure(domain.NewError(domain.ErrorCodeBuildFailed, "EnsurePipeline", "", err), updates)
	}

	tag, genTag := req.ImageTag.Resolve(func() string { return deployment.TimestampTag(now) })
	runID, err := b.api.RunPipeline(ctx, platform.RunPipelineInput{
		PipelineID: pipelineID,
		Parameters: map[string]string{
			ParamImageTag:     tag,
			ParamSourceObject: key,
			ParamDockerfile:   bc.Dockerfile,
		},
	})
	if err != nil {
		return domain.BuildFailure(domain.NewError(domain.ErrorCodeBuildFailed, "RunPipeline", "", err), updates)
	}
	b.logger.Info("pipeline run started", "pipeline", pipelineID, "run", runID, "tag", tag)

	var run *platform.PipelineRun
	_, err = wait.ForStatus(ctx, func(ctx context.Context) (string, error) {
		r, err := b.api.GetPipelineRun(ctx, pipelineID, runID)
		if err != nil {
			return "", err
		}
		run = r
		return r.Status, nil
	}, wait.Options{
		Description: "Building image",
		Targets:     []string{platform.RunStatusSucceeded},
		Failures:    []string{platform.RunStatusFailed, platform.RunStatusCancelled},
		Interval:    b.interval,
		Timeout:     req.Timeout,
		Logger:      b.logger,
	}, b.rep)
	if err != nil {
		return b.runFailure(ctx, run, err, updates)
	}

	image := domain.ImageInfo{Repository: target.Image(), Tag: tag, Digest: run.ImageDigest}
	imageURL := run.ImageURL
	if imageURL == "" {
		imageURL = image.FullName()
	}
	if genTag {
		updates.Add("image_tag", tag)
	}
	updates.Add("image_url", imageURL)
	updates.Add("image_digest", run.ImageDigest)

	b.rep.Success(fmt.Sprintf("Built %s", imageURL))
	return domain.BuildResult{Success: true, Image: &image, Updates: updates}
}

// ensurePipeline returns the recorded pipeline, creating one when none is
// recorded or the recorded one is gone.
func (b *CloudBuilder) ensurePipeline(ctx context.Context, req CloudRequest, bucket string, t registry.Target, suffix string, updates *config.Updates) (string, error) {
	if id, ok := req.PipelineID.Get(); ok {
		_, err := b.api.GetPipeline(ctx, id)
		switch {
		case err == nil:
			return id, nil
		case platform.IsNotFound(err):
			b.rep.Warning(fmt.Sprintf("Pipeline %s no longer exists; creating a new one", id))
		default:
			return "", err
		}
	}

	name, genName := req.PipelineName.Resolve(func() string { return deployment.PipelineName(req.AgentName, suffix) })
	id, err := b.api.CreatePipeline(ctx, platform.CreatePipelineInput{
		Name:          name,
		Description:   req.Description,
		SourceBucket:  bucket,
		RegistryName:  t.Instance,
		Namespace:     t.Namespace,
		Repository:    t.Repository,
		DockerfileRef: descriptorRef,
	})
	if err != nil {
		return "", err
	}
	updates.Add("cp_pipeline_id", id)
	if genName {
		updates.Add("cp_pipeline_name", name)
	}
	b.rep.Info(fmt.Sprintf("Created build pipeline %s", name))
	return id, nil
}

const descriptorRef = "${" + ParamDockerfile + "}"

// runFailure returns the failed build with the tail of the run log.
func (b *CloudBuilder) runFailure(ctx context.Context, run *platform.PipelineRun, err error, updates *config.Updates) domain.BuildResult {
	res := domain.BuildFailure(domain.NewError(domain.ErrorCodeBuildFailed, "Build", "pipeline run did not succeed", err), updates)
	if run == nil {
		return res
	}
	if run.Message != "" {
		b.rep.Error(run.Message)
	}
	if run.LogURL == "" {
		return res
	}
	lines, logErr := b.api.DownloadLog(ctx, run.LogURL, FailureLogLines)
	if logErr != nil {
		b.logger.Warn("download build log failed", "run", run.RunID, "error", logErr)
		return res
	}
	res.BuildLogs = lines
	if len(lines) > 0 {
		b.rep.Error(fmt.Sprintf("Last %d lines of the build log:\n%s", len(lines), strings.Join(lines, "\n")))
	}
	return res
}
