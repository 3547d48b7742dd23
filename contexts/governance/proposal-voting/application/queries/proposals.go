package queries

import (
	"context"
	"sort"
	"strings"
	"time"

	"pentarchy/contexts/governance/proposal-voting/domain/entities"
	domainerrors "pentarchy/contexts/governance/proposal-voting/domain/errors"
	"pentarchy/contexts/governance/proposal-voting/domain/policy"
	"pentarchy/contexts/governance/proposal-voting/ports"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

type ProposalQueries struct {
	Proposals    ports.ProposalRepository
	Thresholds   policy.ThresholdTable
	CostOverride policy.CostOverride
}

func (uc ProposalQueries) GetProposal(ctx context.Context, proposalID string) (entities.Proposal, error) {
	proposalID = strings.TrimSpace(proposalID)
	if proposalID == "" {
		return entities.Proposal{}, domainerrors.ErrNotFound
	}
	return uc.Proposals.GetProposal(ctx, proposalID)
}

// ListProposals returns summaries in creation order. A zero limit means the
// default page size.
func (uc ProposalQueries) ListProposals(ctx context.Context, filter entities.ProposalFilter) ([]entities.ProposalSummary, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domainerrors.ErrInvalidListFilter
	}
	if filter.Limit == 0 {
		filter.Limit = DefaultListLimit
	}
	if filter.Limit < 1 || filter.Limit > MaxListLimit || filter.Offset < 0 {
		return nil, domainerrors.ErrInvalidListFilter
	}
	return uc.Proposals.ListProposals(ctx, filter)
}

type PendingProposal struct {
	Proposal       entities.Proposal
	VotesCollected int
	VotesNeeded    int
}

// PendingProposals lists open ballots, newest first.
func (uc ProposalQueries) PendingProposals(ctx context.Context) ([]PendingProposal, error) {
	proposals, err := uc.Proposals.ListPendingProposals(ctx, time.Time{}, 0)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(proposals, func(i, j int) bool {
		return proposals[i].CreatedAt.After(proposals[j].CreatedAt)
	})
	items := make([]PendingProposal, 0, len(proposals))
	for _, proposal := range proposals {
		items = append(items, PendingProposal{
			Proposal:       proposal,
			VotesCollected: len(proposal.Votes),
			VotesNeeded:    max(entities.CommitteeSize-len(proposal.Votes), 0),
		})
	}
	return items, nil
}

func (uc ProposalQueries) Stats(ctx context.Context) (entities.VotingStats, error) {
	return uc.Proposals.Stats(ctx)
}

type LevelThreshold struct {
	RiskLevel entities.RiskLevel
	Threshold float64
	MaxScore  float64
}

type VoterProfile struct {
	ID     entities.VoterID
	Label  string
	Domain string
	Icon   string
	Color  string
}

// GovernanceRules is the static configuration exposed to clients: thresholds
// per risk level, the committee and the cost override bands.
type GovernanceRules struct {
	Levels       []LevelThreshold
	Voters       []VoterProfile
	CostOverride policy.CostOverride
}

func (uc ProposalQueries) Rules() GovernanceRules {
	thresholds := uc.Thresholds
	if len(thresholds.Entries()) == 0 {
		thresholds = policy.DefaultThresholdTable()
	}
	rules := GovernanceRules{CostOverride: uc.CostOverride}
	entries := thresholds.Entries()
	for _, level := range entities.RiskLevels() {
		entry := entries[level]
		rules.Levels = append(rules.Levels, LevelThreshold{
			RiskLevel: level,
			Threshold: entry.Threshold,
			MaxScore:  entry.MaxScore,
		})
	}
	for _, id := range entities.Committee() {
		rules.Voters = append(rules.Voters, VoterProfile{
			ID:     id,
			Label:  id.Label(),
			Domain: id.Domain(),
			Icon:   id.Icon(),
			Color:  id.Color(),
		})
	}
	return rules
}

func (uc ProposalQueries) AnalyzeAction(message string) policy.ActionAnalysis {
	return policy.AnalyzeAction(message)
}
