package workers

import (
	"context"
	"log/slog"
	"time"

	application "pentarchy/contexts/governance/proposal-voting/application"
	"pentarchy/contexts/governance/proposal-voting/domain/entities"
	"pentarchy/contexts/governance/proposal-voting/ports"
)

// Expirer resolves a pending proposal on the votes it has collected.
type Expirer interface {
	Expire(ctx context.Context, proposalID string) (entities.Proposal, bool, error)
}

// PendingSweeper resolves proposals whose voting window elapsed without a
// timer firing, e.g. ballots opened by a process that has since restarted.
type PendingSweeper struct {
	Proposals     ports.ProposalRepository
	Expirer       Expirer
	Clock         ports.Clock
	VotingTimeout time.Duration
	Grace         time.Duration
	BatchSize     int
	Logger        *slog.Logger
}

// RunOnce expires one batch of stale pending proposals and returns how many
// it transitioned. Per-proposal failures are logged and skipped.
func (s PendingSweeper) RunOnce(ctx context.Context) (int, error) {
	logger := application.ResolveLogger(s.Logger)
	limit := s.BatchSize
	if limit <= 0 {
		limit = 100
	}
	now := time.Now().UTC()
	if s.Clock != nil {
		now = s.Clock.Now().UTC()
	}
	cutoff := now.Add(-(s.VotingTimeout + s.Grace))

	stale, err := s.Proposals.ListPendingProposals(ctx, cutoff, limit)
	if err != nil {
		logger.Error("pending sweep list failed",
			"event", "governance_pending_sweep_list_failed",
			"module", "governance/proposal-voting",
			"layer", "worker",
			"error", err.Error(),
		)
		return 0, err
	}

	expired := 0
	for _, proposal := range stale {
		resolved, transitioned, err := s.Expirer.Expire(ctx, proposal.ProposalID)
		if err != nil {
			logger.Warn("pending sweep expire failed",
				"event", "governance_pending_sweep_expire_failed",
				"module", "governance/proposal-voting",
				"layer", "worker",
				"proposal_id", proposal.ProposalID,
				"error", err.Error(),
			)
			continue
		}
		if transitioned {
			expired++
			logger.Info("stale proposal expired",
				"event", "governance_pending_sweep_expired",
				"module", "governance/proposal-voting",
				"layer", "worker",
				"proposal_id", resolved.ProposalID,
				"status", string(resolved.Status),
				"votes_collected", len(resolved.Votes),
			)
		}
	}
	return expired, nil
}
