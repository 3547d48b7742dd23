package entities

import "time"

type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// RiskLevels lists the canonical levels in ascending order.
func RiskLevels() []RiskLevel {
	return []RiskLevel{RiskLevelLow, RiskLevelMedium, RiskLevelHigh, RiskLevelCritical}
}

func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLevelLow, RiskLevelMedium, RiskLevelHigh, RiskLevelCritical:
		return true
	default:
		return false
	}
}

type ProposalStatus string

const (
	ProposalStatusPending   ProposalStatus = "pending"
	ProposalStatusApproved  ProposalStatus = "approved"
	ProposalStatusRejected  ProposalStatus = "rejected"
	ProposalStatusEscalated ProposalStatus = "escalated"
)

func (s ProposalStatus) Valid() bool {
	return s == ProposalStatusPending || s.Terminal()
}

func (s ProposalStatus) Terminal() bool {
	switch s {
	case ProposalStatusApproved, ProposalStatusRejected, ProposalStatusEscalated:
		return true
	default:
		return false
	}
}

type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
	DecisionAbstain Decision = "ABSTAIN"
)

func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject || d == DecisionAbstain
}

// ResolutionTrigger records what caused a proposal to leave pending.
type ResolutionTrigger string

const (
	TriggerAllVotes     ResolutionTrigger = "all_votes"
	TriggerTimeout      ResolutionTrigger = "timeout"
	TriggerManual       ResolutionTrigger = "manual"
	TriggerCostOverride ResolutionTrigger = "cost_override"
)

type Vote struct {
	Agent     VoterID
	Decision  Decision
	Score     float64
	Reasoning []string
	Timestamp time.Time
}

type Proposal struct {
	ProposalID        string
	Title             string
	Description       string
	Cost              float64
	RiskLevel         RiskLevel
	Status            ProposalStatus
	Votes             []Vote
	FinalScore        *float64
	Threshold         float64
	Resolution        string
	ResolutionTrigger ResolutionTrigger
	Context           map[string]any
	AutoExecute       bool
	InitiatedBy       string
	CreatedAt         time.Time
	ResolvedAt        *time.Time
}

func (p Proposal) Pending() bool {
	return p.Status == ProposalStatusPending
}

// HasVoteFrom reports whether agent already holds a vote on the proposal.
func (p Proposal) HasVoteFrom(agent VoterID) bool {
	for _, vote := range p.Votes {
		if vote.Agent == agent {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers never share slices or maps with a store.
func (p Proposal) Clone() Proposal {
	out := p
	if p.Votes != nil {
		out.Votes = make([]Vote, len(p.Votes))
		for i, vote := range p.Votes {
			vote.Reasoning = append([]string(nil), vote.Reasoning...)
			out.Votes[i] = vote
		}
	}
	if p.FinalScore != nil {
		score := *p.FinalScore
		out.FinalScore = &score
	}
	if p.ResolvedAt != nil {
		resolvedAt := *p.ResolvedAt
		out.ResolvedAt = &resolvedAt
	}
	if p.Context != nil {
		out.Context = make(map[string]any, len(p.Context))
		for key, value := range p.Context {
			out.Context[key] = value
		}
	}
	return out
}

func (p Proposal) Summary() ProposalSummary {
	summary := ProposalSummary{
		ProposalID: p.ProposalID,
		Title:      p.Title,
		Status:     p.Status,
		VoteCount:  len(p.Votes),
		CreatedAt:  p.CreatedAt,
	}
	if p.FinalScore != nil {
		score := *p.FinalScore
		summary.FinalScore = &score
	}
	return summary
}

// NewProposal is the creation input handed to a store. The store allocates
// the identifier. A non-nil Override stores the proposal already resolved.
type NewProposal struct {
	Title       string
	Description string
	Cost        float64
	RiskLevel   RiskLevel
	Context     map[string]any
	AutoExecute bool
	InitiatedBy string
	CreatedAt   time.Time
	Override    *Resolution
}

// Resolution is the terminal outcome written by Store.Resolve.
type Resolution struct {
	Status     ProposalStatus
	FinalScore float64
	Threshold  float64
	Reason     string
	Trigger    ResolutionTrigger
	ResolvedAt time.Time
}

// SameOutcome compares the fields that define a decision; timestamps and
// triggers are ignored so duplicate completion/timeout races stay no-ops.
func (r Resolution) SameOutcome(p Proposal) bool {
	if p.FinalScore == nil {
		return false
	}
	return p.Status == r.Status && *p.FinalScore == r.FinalScore && p.Threshold == r.Threshold
}

type ProposalSummary struct {
	ProposalID string
	Title      string
	Status     ProposalStatus
	FinalScore *float64
	VoteCount  int
	CreatedAt  time.Time
}

type ProposalFilter struct {
	Status ProposalStatus
	Limit  int
	Offset int
}

type VotingStats struct {
	TotalProposals int
	ByStatus       map[ProposalStatus]int
	AverageScore   float64
	TotalVotes     int
}

// NewVotingStats returns stats with every status bucket present.
func NewVotingStats() VotingStats {
	return VotingStats{
		ByStatus: map[ProposalStatus]int{
			ProposalStatusPending:   0,
			ProposalStatusApproved:  0,
			ProposalStatusRejected:  0,
			ProposalStatusEscalated: 0,
		},
	}
}
