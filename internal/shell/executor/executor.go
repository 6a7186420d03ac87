// Package executor is the boundary between callers (the CLI or a program)
// and the deployment engine. Each executor loads and validates the project
// configuration, runs the preflight check, selects the strategy for the
// configured launch type, runs one operation and persists the configuration
// updates it returns. Every failure, including a panic inside a strategy,
// comes back as a typed result.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/artpar/agentkit/internal/core/config"
	"github.com/artpar/agentkit/internal/core/domain"
	"github.com/artpar/agentkit/internal/core/preflight"
	"github.com/artpar/agentkit/internal/shell/configfile"
	"github.com/artpar/agentkit/internal/shell/platform"
	"github.com/artpar/agentkit/internal/shell/reporter"
	"github.com/artpar/agentkit/internal/shell/strategy"
)

// TracerName is the instrumentation name of executor spans.
const TracerName = "github.com/artpar/agentkit/executor"

// Factory returns the strategy for a launch type.
type Factory func(lt config.LaunchType) (strategy.Strategy, error)

// Options configure every executor.
type Options struct {
	Store      *configfile.Store
	Strategies Factory

	// Services answers preflight queries. Nil skips the check.
	Services platform.ServiceAPI
	Policy   preflight.Policy

	Reporter reporter.Reporter
	Logger   *slog.Logger

	// Tracer defaults to the global tracer provider.
	Tracer trace.Tracer
}

// base holds what every executor shares.
type base struct {
	store      *configfile.Store
	strategies Factory
	services   platform.ServiceAPI
	policy     preflight.Policy
	rep        reporter.Reporter
	logger     *slog.Logger
	tracer     trace.Tracer
}

func newBase(opts Options) base {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.GetTracerProvider().Tracer(TracerName)
	}
	policy := opts.Policy
	if policy == "" {
		policy = preflight.PolicyPrompt
	}
	return base{
		store:      opts.Store,
		strategies: opts.Strategies,
		services:   opts.Services,
		policy:     policy,
		rep:        reporter.OrSilent(opts.Reporter),
		logger:     logger.With("component", "executor"),
		tracer:     tracer,
	}
}

// session is one loaded configuration and the strategy for it.
type session struct {
	cfg      *config.ProjectConfig
	strategy strategy.Strategy
}

// open loads the configuration and selects the strategy.
func (b *base) open(ctx context.Context, span trace.Span) (*session, error) {
	if b.store == nil || b.strategies == nil {
		return nil, domain.NewError(domain.ErrorCodeConfigMissing, "Executor", "executor is not configured", nil)
	}
	cfg, err := b.store.Load()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("agentkit.launch_type", string(cfg.Common.LaunchType)),
		attribute.String("agentkit.agent", cfg.Common.AgentName),
	)
	s, err := b.strategies(cfg.Common.LaunchType)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, strategy: s}, nil
}

// persist applies updates to the session configuration and saves it. A
// failure to save is reported but does not change the operation result.
func (b *base) persist(sess *session, updates *config.Updates) {
	if sess == nil || !updates.HasUpdates() {
		return
	}
	if err := b.store.ApplyAndSave(sess.cfg, updates); err != nil {
		b.logger.Error("persist config updates failed", "keys", updates.Keys(), "error", err)
		b.rep.Error(fmt.Sprintf("Could not save %s: %v", b.store.Path(), err))
		return
	}
	b.logger.Debug("config updates persisted", "keys", updates.Keys())
}

// start opens the operation span.
func (b *base) start(ctx context.Context, op string) (context.Context, trace.Span) {
	return b.tracer.Start(ctx, "agentkit."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("agentkit.operation", op)),
	)
}

// finish records the outcome on span and ends it.
func finish(span trace.Span, success bool, code domain.ErrorCode, msg string) {
	if success {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetAttributes(attribute.String("agentkit.error_code", string(code)))
		span.SetStatus(codes.Error, msg)
	}
	span.End()
}

// recovered turns a panic value into an UNKNOWN_ERROR.
func (b *base) recovered(op string, v any) error {
	b.logger.Error("operation panicked", "operation", op, "panic", v, "stack", string(debug.Stack()))
	return domain.NewError(domain.ErrorCodeUnknown, op, fmt.Sprintf("internal error: %v", v), nil)
}
