package policy

import (
	"math"
	"time"

	"pentarchy/contexts/governance/proposal-voting/domain/entities"
)

const (
	ReasonThresholdMet     = "threshold_met"
	ReasonRejectionBound   = "rejection_bound"
	ReasonRejectMajority   = "reject_majority"
	ReasonInconclusive     = "inconclusive"
	ReasonIncompleteVotes  = "incomplete_votes"
	ReasonUnknownRiskLevel = "unknown_risk_level"
)

// Outcome is the resolver verdict for one vote set.
type Outcome struct {
	Status      entities.ProposalStatus
	FinalScore  float64
	Threshold   float64
	Reason      string
	Approvals   int
	Rejections  int
	Abstentions int
}

func (o Outcome) Resolution(trigger entities.ResolutionTrigger, resolvedAt time.Time) entities.Resolution {
	return entities.Resolution{
		Status:     o.Status,
		FinalScore: o.FinalScore,
		Threshold:  o.Threshold,
		Reason:     o.Reason,
		Trigger:    trigger,
		ResolvedAt: resolvedAt.UTC(),
	}
}

// Resolver turns a vote set into a terminal outcome. It holds no state beyond
// the threshold table and never fails.
type Resolver struct {
	Thresholds ThresholdTable
}

func (r Resolver) Resolve(votes []entities.Vote, level entities.RiskLevel) Outcome {
	entry, err := r.Thresholds.Lookup(level)
	if err != nil {
		// Unreachable with a validated table and validated proposals.
		return Outcome{
			Status:     entities.ProposalStatusEscalated,
			FinalScore: 0,
			Reason:     ReasonUnknownRiskLevel,
		}
	}

	var approved, rejected float64
	outcome := Outcome{Threshold: entry.Threshold}
	for _, vote := range votes {
		switch vote.Decision {
		case entities.DecisionApprove:
			approved += vote.Score
			outcome.Approvals++
		case entities.DecisionReject:
			rejected += vote.Score
			outcome.Rejections++
		default:
			outcome.Abstentions++
		}
	}
	outcome.FinalScore = roundScore(approved - rejected)

	switch {
	case outcome.FinalScore >= entry.Threshold:
		outcome.Status = entities.ProposalStatusApproved
		outcome.Reason = ReasonThresholdMet
	case outcome.FinalScore <= -entry.Threshold:
		outcome.Status = entities.ProposalStatusRejected
		outcome.Reason = ReasonRejectionBound
	case outcome.Rejections > outcome.Approvals && outcome.FinalScore < 0:
		outcome.Status = entities.ProposalStatusRejected
		outcome.Reason = ReasonRejectMajority
	case len(votes) < entities.CommitteeSize:
		outcome.Status = entities.ProposalStatusEscalated
		outcome.Reason = ReasonIncompleteVotes
	default:
		outcome.Status = entities.ProposalStatusEscalated
		outcome.Reason = ReasonInconclusive
	}
	return outcome
}

// Override builds the outcome recorded when a cost band bypasses voting.
func (r Resolver) Override(decision OverrideDecision, level entities.RiskLevel) Outcome {
	outcome := Outcome{
		Status:     decision.Status,
		FinalScore: 0,
		Reason:     decision.Reason,
	}
	if entry, err := r.Thresholds.Lookup(level); err == nil {
		outcome.Threshold = entry.Threshold
	}
	return outcome
}

func roundScore(value float64) float64 {
	rounded := math.Round(value*100) / 100
	if rounded == 0 {
		return 0
	}
	return rounded
}
