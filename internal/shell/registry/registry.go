// Package registry prepares container registry repositories and pushes
// locally built images to them.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"

	"github.com/artpar/agentkit/internal/core/config"
	"github.com/artpar/agentkit/internal/core/deployment"
	"github.com/artpar/agentkit/internal/shell/docker"
	"github.com/artpar/agentkit/internal/shell/platform"
	"github.com/artpar/agentkit/internal/shell/reporter"
	"github.com/artpar/agentkit/internal/shell/wait"
)

// Target is a fully resolved registry repository.
type Target struct {
	Instance   string
	Namespace  string
	Repository string
	Region     string
}

// Host returns the push host of the target's instance.
func (t Target) Host() string {
	return platform.RegistryHost(t.Instance, t.Region)
}

// Image returns "{host}/{namespace}/{repository}".
func (t Target) Image() string {
	return deployment.ImageRepository(t.Host(), t.Namespace, t.Repository)
}

// Ref returns the image reference for tag.
func (t Target) Ref(tag string) string {
	return t.Image() + ":" + tag
}

// DigestFunc resolves the digest of a pushed reference.
type DigestFunc func(ctx context.Context, ref string, auth docker.RegistryAuth) (string, error)

// Registry ensures registry resources and pushes images.
type Registry struct {
	api      platform.RegistryAPI
	docker   docker.Client
	digest   DigestFunc
	rep      reporter.Reporter
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

// Option configures a Registry.
type Option func(*Registry)

// WithDigestFunc replaces the remote digest lookup.
func WithDigestFunc(fn DigestFunc) Option { return func(r *Registry) { r.digest = fn } }

// WithPollInterval sets how often a creating instance is polled.
func WithPollInterval(d time.Duration) Option { return func(r *Registry) { r.interval = d } }

// New creates a Registry. dockerClient may be nil when only Ensure is used.
func New(api platform.RegistryAPI, dockerClient docker.Client, rep reporter.Reporter, logger *slog.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		api:      api,
		docker:   dockerClient,
		digest:   RemoteDigest,
		rep:      reporter.OrSilent(rep),
		logger:   logger.With("component", "registry"),
		interval: 5 * time.Second,
		timeout:  10 * time.Minute,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ensure resolves settings and makes sure the instance, namespace and
// repository exist. Generated names are added to updates after the
// resource they name is known to exist, so a failure part way keeps the
// names of everything created before it.
func (r *Registry) Ensure(ctx context.Context, settings config.RegistrySettings, agentName string, updates *config.Updates) (Target, error) {
	region := settings.CRRegion
	if region == "" {
		region = r.api.Region()
	}
	instance, genInstance := settings.CRInstanceName.Resolve(func() string {
		return deployment.RegistryInstanceName(deployment.NewSuffix())
	})
	namespace, genNamespace := settings.CRNamespaceName.Resolve(deployment.RegistryNamespace)
	repo, genRepo := settings.CRRepoName.Resolve(func() string {
		return deployment.RepositoryName(agentName)
	})
	t := Target{Instance: instance, Namespace: namespace, Repository: repo, Region: region}

	if err := r.ensureInstance(ctx, instance); err != nil {
		return t, err
	}
	if genInstance {
		updates.Add("cr_instance_name", instance)
	}

	created, err := r.api.EnsureNamespace(ctx, instance, namespace)
	if err != nil {
		return t, fmt.Errorf("ensure namespace %s: %w", namespace, err)
	}
	if created {
		r.rep.Info(fmt.Sprintf("Created registry namespace %s", namespace))
	}
	if genNamespace {
		updates.Add("cr_namespace_name", namespace)
	}

	created, err = r.api.EnsureRepository(ctx, instance, namespace, repo)
	if err != nil {
		return t, fmt.Errorf("ensure repository %s/%s: %w", namespace, repo, err)
	}
	if created {
		r.rep.Info(fmt.Sprintf("Created registry repository %s/%s", namespace, repo))
	}
	if genRepo {
		updates.Add("cr_repo_name", repo)
	}
	return t, nil
}

func (r *Registry) ensureInstance(ctx context.Context, instance string) error {
	inst, err := r.api.GetInstance(ctx, instance)
	switch {
	case err == nil && inst.Status == platform.InstanceStatusRunning:
		return nil
	case err == nil:
	case platform.IsNotFound(err):
		r.rep.Info(fmt.Sprintf("Creating registry instance %s", instance))
		if err := r.api.CreateInstance(ctx, instance); err != nil {
			return fmt.Errorf("create registry instance %s: %w", instance, err)
		}
	default:
		return fmt.Errorf("get registry instance %s: %w", instance, err)
	}

	fetch := func(ctx context.Context) (string, error) {
		inst, err := r.api.GetInstance(ctx, instance)
		if err != nil {
			return "", err
		}
		return inst.Status, nil
	}
	_, err = wait.ForStatus(ctx, fetch, wait.Options{
		Description: "Waiting for registry instance",
		Targets:     []string{platform.InstanceStatusRunning},
		Failures:    []string{platform.InstanceStatusFailed},
		Interval:    r.interval,
		Timeout:     r.timeout,
		Expected:    2 * time.Minute,
		Logger:      r.logger,
	}, r.rep)
	if err != nil {
		return fmt.Errorf("registry instance %s: %w", instance, err)
	}
	return nil
}

// PushResult identifies a pushed image.
type PushResult struct {
	ImageURL string
	Digest   string
}

// Push tags localRef as t:tag and pushes it with temporary credentials.
func (r *Registry) Push(ctx context.Context, localRef string, t Target, tag string) (*PushResult, error) {
	if r.docker == nil {
		return nil, errors.New("registry push needs a docker client")
	}
	creds, err := r.api.GetAuthorizationToken(ctx, t.Instance)
	if err != nil {
		return nil, fmt.Errorf("get registry credentials: %w", err)
	}
	auth := docker.RegistryAuth{Username: creds.Username, Password: creds.Token, ServerAddress: t.Host()}

	ref := t.Ref(tag)
	if err := r.docker.TagImage(ctx, localRef, ref); err != nil {
		return nil, fmt.Errorf("tag %s as %s: %w", localRef, ref, err)
	}

	r.rep.Info(fmt.Sprintf("Pushing %s", ref))
	lines, err := r.docker.PushImage(ctx, ref, auth)
	if err != nil {
		return nil, err
	}

	digest := DigestFromPushOutput(lines)
	if digest == "" {
		digest, err = r.digest(ctx, ref, auth)
		if err != nil {
			r.logger.Warn("digest lookup failed", "ref", ref, "error", err)
			r.rep.Warning(fmt.Sprintf("Pushed %s but could not resolve its digest", ref))
		}
	}
	r.logger.Info("image pushed", "ref", ref, "digest", digest)
	return &PushResult{ImageURL: ref, Digest: digest}, nil
}

var pushDigest = regexp.MustCompile(`digest: (sha256:[0-9a-f]{64})`)

// DigestFromPushOutput returns the digest reported in push output, or "".
func DigestFromPushOutput(lines []string) string {
	for i := len(lines) - 1; i >= 0; i-- {
		if m := pushDigest.FindStringSubmatch(lines[i]); m != nil {
			return m[1]
		}
	}
	return ""
}

// RemoteDigest asks the registry for the manifest digest of ref.
func RemoteDigest(ctx context.Context, ref string, auth docker.RegistryAuth) (string, error) {
	parsed, err := name.ParseReference(ref)
	if err != nil {
		return "", fmt.Errorf("parse reference %s: %w", ref, err)
	}
	desc, err := remote.Head(parsed,
		remote.WithContext(ctx),
		remote.WithAuth(&authn.Basic{Username: auth.Username, Password: auth.Password}),
	)
	if err != nil {
		return "", fmt.Errorf("head %s: %w", ref, err)
	}
	return desc.Digest.String(), nil
}
