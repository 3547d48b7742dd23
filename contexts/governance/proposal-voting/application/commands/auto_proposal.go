package commands

import (
	"context"
	"strings"

	"pentarchy/contexts/governance/proposal-voting/domain/entities"
	"pentarchy/contexts/governance/proposal-voting/domain/policy"
)

type AutoProposalCommand struct {
	Message        string
	ConversationID string
	InitiatedBy    string
}

// AutoProposalResult reports the analysis and, when the action needed a vote,
// the proposal that was opened for it.
type AutoProposalResult struct {
	Analysis policy.ActionAnalysis
	Created  bool
	Reason   string
	Proposal entities.Proposal
}

// AutoProposal analyses a free-text action and opens a proposal only when the
// estimated cost requires a committee vote.
func (o *Orchestrator) AutoProposal(ctx context.Context, cmd AutoProposalCommand) (AutoProposalResult, error) {
	analysis := policy.AnalyzeAction(cmd.Message)
	if !analysis.RequiresVoting {
		o.logger.Info("auto proposal not required",
			"event", "governance_auto_proposal_skipped",
			"module", "governance/proposal-voting",
			"layer", "application",
			"action_type", analysis.ActionType,
			"estimated_cost", analysis.EstimatedCost,
		)
		return AutoProposalResult{
			Analysis: analysis,
			Reason:   "action does not require voting (cost below threshold)",
		}, nil
	}

	proposalContext := map[string]any{
		"auto_generated": true,
		"action_type":    analysis.ActionType,
	}
	if conversationID := strings.TrimSpace(cmd.ConversationID); conversationID != "" {
		proposalContext["conversation_id"] = conversationID
	}
	proposal, err := o.CreateProposal(ctx, CreateProposalCommand{
		Title:       analysis.ProposalTitle(),
		Description: cmd.Message,
		Cost:        analysis.EstimatedCost,
		RiskLevel:   analysis.RiskLevel,
		Context:     proposalContext,
		InitiatedBy: cmd.InitiatedBy,
	})
	if err != nil {
		return AutoProposalResult{}, err
	}
	return AutoProposalResult{Analysis: analysis, Created: true, Proposal: proposal}, nil
}
