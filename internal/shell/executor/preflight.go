package executor

import (
	"context"

	"github.com/artpar/agentkit/internal/core/domain"
	"github.com/artpar/agentkit/internal/core/preflight"
	"github.com/artpar/agentkit/internal/shell/strategy"
)

// checkServices runs the preflight check for ops. Only an abort (policy
// fail, or a declined prompt) returns an error; a failed status query is
// treated as passed.
func (b *base) checkServices(ctx context.Context, s strategy.Strategy, ops ...strategy.Operation) error {
	if b.policy == preflight.PolicySkip || b.services == nil {
		return nil
	}
	lists := make([][]string, 0, len(ops))
	for _, op := range ops {
		lists = append(lists, s.RequiredServices(op))
	}
	required := preflight.Union(lists...)
	if len(required) == 0 {
		return nil
	}

	enabled, err := b.services.ServiceStatuses(ctx, required)
	if err != nil {
		b.logger.Warn("service status query failed", "services", required, "error", err)
		b.rep.Warning("Could not check required services; continuing")
		return nil
	}

	missing := preflight.Missing(required, enabled)
	msg := preflight.Message(missing)
	switch preflight.Evaluate(b.policy, missing) {
	case preflight.OutcomeWarn:
		b.rep.Warning(msg)
	case preflight.OutcomeAsk:
		if !b.rep.Confirm(msg+". Continue anyway?", false) {
			return domain.NewError(domain.ErrorCodeDependencyMissing, "Preflight", msg+" (aborted)", nil)
		}
	case preflight.OutcomeAbort:
		return domain.NewError(domain.ErrorCodeDependencyMissing, "Preflight", msg, nil)
	}
	return nil
}
