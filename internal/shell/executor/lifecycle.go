package executor

import (
	"context"

	"github.com/artpar/agentkit/internal/core/config"
	"github.com/artpar/agentkit/internal/core/domain"
	"github.com/artpar/agentkit/internal/shell/strategy"
)

// Lifecycle operation names.
const (
	OpLaunch  = "launch"
	OpStop    = "stop"
	OpDestroy = "destroy"
)

// LifecycleExecutor runs the composite operations: launch (build then
// deploy), stop and destroy.
type LifecycleExecutor struct{ base }

// NewLifecycleExecutor creates a LifecycleExecutor from opts.
func NewLifecycleExecutor(opts Options) *LifecycleExecutor {
	return &LifecycleExecutor{base: newBase(opts)}
}

// Launch builds and deploys. The build updates are applied before the deploy
// starts, so the deploy sees the artifact just built. A failed build skips
// the deploy.
func (e *LifecycleExecutor) Launch(ctx context.Context, opts strategy.BuildOptions) (res domain.LifecycleResult) {
	ctx, span := e.start(ctx, OpLaunch)
	defer func() { finish(span, res.Success, res.ErrorCode, res.Error) }()
	defer func() {
		if v := recover(); v != nil {
			res = domain.LifecycleFailure(OpLaunch, e.recovered(OpLaunch, v), nil)
		}
	}()

	sess, err := e.open(ctx, span)
	if err != nil {
		return domain.LifecycleFailure(OpLaunch, err, nil)
	}
	if err := e.checkServices(ctx, sess.strategy, strategy.OpBuild, strategy.OpDeploy); err != nil {
		return domain.LifecycleFailure(OpLaunch, err, nil)
	}

	updates := config.NewUpdates()
	built := sess.strategy.Build(ctx, sess.cfg, opts)
	updates.Merge(built.Updates)
	e.persist(sess, built.Updates)
	if !built.Success {
		return domain.LifecycleResult{
			Success:   false,
			Error:     built.Error,
			ErrorCode: built.ErrorCode,
			Operation: OpLaunch,
			Build:     &built,
			Updates:   updates,
		}
	}

	deployed := sess.strategy.Deploy(ctx, sess.cfg)
	updates.Merge(deployed.Updates)
	e.persist(sess, deployed.Updates)
	return domain.LifecycleResult{
		Success:   deployed.Success,
		Error:     deployed.Error,
		ErrorCode: deployed.ErrorCode,
		Operation: OpLaunch,
		Build:     &built,
		Deploy:    &deployed,
		Updates:   updates,
	}
}

// Stop stops the running agent.
func (e *LifecycleExecutor) Stop(ctx context.Context) domain.LifecycleResult {
	return e.simple(ctx, OpStop, strategy.Strategy.Stop)
}

// Destroy removes the deployment. Destroying something already gone
// succeeds.
func (e *LifecycleExecutor) Destroy(ctx context.Context) domain.LifecycleResult {
	return e.simple(ctx, OpDestroy, strategy.Strategy.Destroy)
}

func (e *LifecycleExecutor) simple(ctx context.Context, op string,
	call func(strategy.Strategy, context.Context, *config.ProjectConfig) domain.LifecycleResult) (res domain.LifecycleResult) {
	ctx, span := e.start(ctx, op)
	defer func() { finish(span, res.Success, res.ErrorCode, res.Error) }()
	defer func() {
		if v := recover(); v != nil {
			res = domain.LifecycleFailure(op, e.recovered(op, v), nil)
		}
	}()

	sess, err := e.open(ctx, span)
	if err != nil {
		return domain.LifecycleFailure(op, err, nil)
	}
	res = call(sess.strategy, ctx, sess.cfg)
	res.Operation = op
	e.persist(sess, res.Updates)
	return res
}
