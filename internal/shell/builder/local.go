package builder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/afero"

	"github.com/artpar/agentkit/internal/core/config"
	"github.com/artpar/agentkit/internal/core/deployment"
	"github.com/artpar/agentkit/internal/core/domain"
	"github.com/artpar/agentkit/internal/shell/docker"
	"github.com/artpar/agentkit/internal/shell/reporter"
)

// LocalRequest is a build on the local container engine.
type LocalRequest struct {
	Project
	ImageName config.AutoString
	ImageTag  string
	Platform  string
	Force     bool
}

// LocalBuilder builds images with the local container engine.
type LocalBuilder struct {
	prep   preparer
	docker docker.Client
	rep    reporter.Reporter
	logger *slog.Logger
}

// NewLocalBuilder creates a builder rooted at workDir. A nil docker client
// makes every build fail with a dependency error.
func NewLocalBuilder(fsys afero.Fs, workDir string, d docker.Client, rep reporter.Reporter, logger *slog.Logger) *LocalBuilder {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if logger == nil {
		logger = slog.Default()
	}
	rep = reporter.OrSilent(rep)
	return &LocalBuilder{
		prep:   preparer{fs: fsys, workDir: workDir, rep: rep},
		docker: d,
		rep:    rep,
		logger: logger.With("component", "local_builder"),
	}
}

// Build renders the descriptor, builds the image and inspects it. Updates
// carry image_id and, when it was Auto, image_name.
func (b *LocalBuilder) Build(ctx context.Context, req LocalRequest) domain.BuildResult {
	updates := config.NewUpdates()
	if b.docker == nil {
		return domain.BuildFailure(domain.NewError(domain.ErrorCodeDependencyMissing, "Build",
			"the container engine is not available", nil), updates)
	}

	name, generated := req.ImageName.Resolve(func() string { return deployment.Slug(req.AgentName) })
	if name == "" {
		return domain.BuildFailure(domain.NewError(domain.ErrorCodeConfigInvalid, "Build", "image name is empty", nil), updates)
	}
	tag := req.ImageTag
	if tag == "" {
		tag = "latest"
	}
	image := domain.ImageInfo{Repository: name, Tag: tag}

	bc, err := b.prep.prepare(req.Project, req.Force)
	if err != nil {
		return domain.BuildFailure(err, updates)
	}

	task := b.rep.Task(fmt.Sprintf("Building %s", image.FullName()), 0)
	defer task.Close()

	var logs []string
	out, err := b.docker.BuildImage(ctx, docker.BuildSpec{
		ContextDir: bc.Dir,
		Dockerfile: bc.Dockerfile,
		Tags:       []string{image.FullName()},
		Platform:   req.Platform,
		Labels:     map[string]string{labelAgent: req.AgentName},
		Exclude:    DefaultExclude,
		OnLog: func(line string) {
			logs = append(logs, line)
			task.Update(line, 0)
			b.logger.Debug("build output", "line", line)
		},
	})
	if out != nil && len(out.Logs) > len(logs) {
		logs = out.Logs
	}
	if err != nil {
		res := domain.BuildFailure(domain.NewError(domain.ErrorCodeBuildFailed, "Build",
			fmt.Sprintf("build %s", image.FullName()), err), updates)
		res.BuildLogs = logs
		return res
	}

	info, err := b.docker.InspectImage(ctx, image.FullName())
	if err != nil {
		res := domain.BuildFailure(domain.NewError(domain.ErrorCodeBuildFailed, "Build",
			fmt.Sprintf("inspect %s", image.FullName()), err), updates)
		res.BuildLogs = logs
		return res
	}
	image.ID = info.ID
	if len(info.RepoDigests) > 0 {
		image.Digest = digestOf(info.RepoDigests[0])
	}

	if generated {
		updates.Add("image_name", name)
	}
	updates.Add("image_id", info.ID)

	b.logger.Info("image built", "image", image.FullName(), "id", info.ID)
	b.rep.Success(fmt.Sprintf("Built %s", image.FullName()))
	return domain.BuildResult{Success: true, Image: &image, BuildLogs: logs, Updates: updates}
}

const labelAgent = "agentkit.agent"

// digestOf returns the digest part of "repo@sha256:...".
func digestOf(repoDigest string) string {
	if i := strings.LastIndex(repoDigest, "@"); i >= 0 {
		return repoDigest[i+1:]
	}
	return repoDigest
}
