package executor

import (
	"context"

	"github.com/artpar/agentkit/internal/core/domain"
	"github.com/artpar/agentkit/internal/shell/runner"
	"github.com/artpar/agentkit/internal/shell/strategy"
)

// =============================================================================
// Build
// =============================================================================

// BuildExecutor builds the agent image.
type BuildExecutor struct{ base }

// NewBuildExecutor creates a BuildExecutor from opts.
func NewBuildExecutor(opts Options) *BuildExecutor {
	return &BuildExecutor{base: newBase(opts)}
}

// Execute builds and persists the returned updates, also on failure.
func (e *BuildExecutor) Execute(ctx context.Context, opts strategy.BuildOptions) (res domain.BuildResult) {
	ctx, span := e.start(ctx, "build")
	defer func() { finish(span, res.Success, res.ErrorCode, res.Error) }()
	defer func() {
		if v := recover(); v != nil {
			res = domain.BuildFailure(e.recovered("build", v), nil)
		}
	}()

	sess, err := e.open(ctx, span)
	if err != nil {
		return domain.BuildFailure(err, nil)
	}
	if err := e.checkServices(ctx, sess.strategy, strategy.OpBuild); err != nil {
		return domain.BuildFailure(err, nil)
	}

	res = sess.strategy.Build(ctx, sess.cfg, opts)
	e.persist(sess, res.Updates)
	return res
}

// =============================================================================
// Deploy
// =============================================================================

// DeployExecutor deploys the built image.
type DeployExecutor struct{ base }

// NewDeployExecutor creates a DeployExecutor from opts.
func NewDeployExecutor(opts Options) *DeployExecutor {
	return &DeployExecutor{base: newBase(opts)}
}

// Execute deploys and persists the returned updates, also on failure.
func (e *DeployExecutor) Execute(ctx context.Context) (res domain.DeployResult) {
	ctx, span := e.start(ctx, "deploy")
	defer func() { finish(span, res.Success, res.ErrorCode, res.Error) }()
	defer func() {
		if v := recover(); v != nil {
			res = domain.DeployFailure(e.recovered("deploy", v), nil)
		}
	}()

	sess, err := e.open(ctx, span)
	if err != nil {
		return domain.DeployFailure(err, nil)
	}
	if err := e.checkServices(ctx, sess.strategy, strategy.OpDeploy); err != nil {
		return domain.DeployFailure(err, nil)
	}

	res = sess.strategy.Deploy(ctx, sess.cfg)
	e.persist(sess, res.Updates)
	return res
}

// =============================================================================
// Invoke
// =============================================================================

// InvokeExecutor calls the deployed agent.
type InvokeExecutor struct{ base }

// NewInvokeExecutor creates an InvokeExecutor from opts.
func NewInvokeExecutor(opts Options) *InvokeExecutor {
	return &InvokeExecutor{base: newBase(opts)}
}

// Execute invokes the agent. A streaming result must be drained or closed by
// the caller.
func (e *InvokeExecutor) Execute(ctx context.Context, req runner.InvokeRequest) (res domain.InvokeResult) {
	ctx, span := e.start(ctx, "invoke")
	defer func() { finish(span, res.Success, res.ErrorCode, res.Error) }()
	defer func() {
		if v := recover(); v != nil {
			res = domain.InvokeFailure(e.recovered("invoke", v))
		}
	}()

	sess, err := e.open(ctx, span)
	if err != nil {
		return domain.InvokeFailure(err)
	}
	return sess.strategy.Invoke(ctx, sess.cfg, req)
}

// =============================================================================
// Status
// =============================================================================

// StatusExecutor reports the deployment status.
type StatusExecutor struct{ base }

// NewStatusExecutor creates a StatusExecutor from opts.
func NewStatusExecutor(opts Options) *StatusExecutor {
	return &StatusExecutor{base: newBase(opts)}
}

// Execute queries the status and persists corrections to recorded ids.
func (e *StatusExecutor) Execute(ctx context.Context) (res domain.StatusResult) {
	ctx, span := e.start(ctx, "status")
	defer func() { finish(span, res.Success, res.ErrorCode, res.Error) }()
	defer func() {
		if v := recover(); v != nil {
			res = domain.StatusFailure(e.recovered("status", v))
		}
	}()

	sess, err := e.open(ctx, span)
	if err != nil {
		return domain.StatusFailure(err)
	}
	res = sess.strategy.Status(ctx, sess.cfg)
	e.persist(sess, res.Updates)
	return res
}
