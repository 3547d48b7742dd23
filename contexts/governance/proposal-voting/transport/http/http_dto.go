package http

import (
	"time"

	"github.com/guregu/null/v5"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateProposalRequest struct {
	Title       string         `json:"title" validate:"required,max=255"`
	Description string         `json:"description" validate:"max=10000"`
	Cost        float64        `json:"cost" validate:"gte=0"`
	RiskLevel   string         `json:"risk_level" validate:"required,oneof=low medium high critical"`
	Context     map[string]any `json:"context,omitempty"`
	AutoExecute bool           `json:"auto_execute,omitempty"`
}

type SubmitVoteRequest struct {
	Agent     string   `json:"agent" validate:"required"`
	Vote      string   `json:"vote" validate:"required"`
	Score     *float64 `json:"score" validate:"required"`
	Reasoning []string `json:"reasoning,omitempty" validate:"max=32,dive,max=2000"`
}

type AnalyzeActionRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

type AutoProposalRequest struct {
	Message        string `json:"message" validate:"required,max=4000"`
	ConversationID string `json:"conversation_id,omitempty" validate:"max=200"`
}

type ListProposalsRequest struct {
	Status string
	Limit  int
	Offset int
}

type VoteResponse struct {
	Agent     string    `json:"agent"`
	Vote      string    `json:"vote"`
	Score     float64   `json:"score"`
	Reasoning []string  `json:"reasoning"`
	Timestamp time.Time `json:"timestamp"`
}

type ProposalResponse struct {
	ProposalID        string         `json:"proposal_id"`
	Title             string         `json:"title"`
	Description       string         `json:"description"`
	Cost              float64        `json:"cost"`
	RiskLevel         string         `json:"risk_level"`
	Status            string         `json:"status"`
	Votes             []VoteResponse `json:"votes"`
	FinalScore        null.Float     `json:"final_score" swaggertype:"number"`
	Threshold         float64        `json:"threshold"`
	Resolution        string         `json:"resolution,omitempty"`
	ResolutionTrigger string         `json:"resolution_trigger,omitempty"`
	Context           map[string]any `json:"context,omitempty"`
	AutoExecute       bool           `json:"auto_execute"`
	InitiatedBy       string         `json:"initiated_by"`
	CreatedAt         time.Time      `json:"created_at"`
	ResolvedAt        null.Time      `json:"resolved_at" swaggertype:"string"`
}

type ProposalSummaryResponse struct {
	ProposalID string     `json:"proposal_id"`
	Title      string     `json:"title"`
	Status     string     `json:"status"`
	FinalScore null.Float `json:"final_score" swaggertype:"number"`
	VoteCount  int        `json:"vote_count"`
	CreatedAt  time.Time  `json:"created_at"`
}

type ListProposalsResponse struct {
	Items  []ProposalSummaryResponse `json:"items"`
	Limit  int                       `json:"limit"`
	Offset int                       `json:"offset"`
}

type PendingProposalResponse struct {
	ProposalID     string    `json:"proposal_id"`
	Title          string    `json:"title"`
	Cost           float64   `json:"cost"`
	RiskLevel      string    `json:"risk_level"`
	VotesCollected int       `json:"votes_collected"`
	VotesNeeded    int       `json:"votes_needed"`
	CreatedAt      time.Time `json:"created_at"`
}

type PendingProposalsResponse struct {
	Items []PendingProposalResponse `json:"items"`
}

type StatsResponse struct {
	TotalProposals int            `json:"total_proposals"`
	ByStatus       map[string]int `json:"by_status"`
	AverageScore   float64        `json:"average_score"`
	TotalVotes     int            `json:"total_votes"`
}

type ThresholdResponse struct {
	RiskLevel string  `json:"risk_level"`
	Threshold float64 `json:"threshold"`
	MaxScore  float64 `json:"max_score"`
}

type VoterProfileResponse struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Domain string `json:"domain"`
	Icon   string `json:"icon"`
	Color  string `json:"color"`
}

type CostOverrideResponse struct {
	AutoApproveBelow    null.Float `json:"auto_approve_below" swaggertype:"number"`
	AutoRejectAtOrAbove null.Float `json:"auto_reject_at_or_above" swaggertype:"number"`
}

type ThresholdsResponse struct {
	Thresholds   []ThresholdResponse    `json:"thresholds"`
	Voters       []VoterProfileResponse `json:"voters"`
	CostOverride CostOverrideResponse   `json:"cost_override"`
}

type ActionAnalysisResponse struct {
	RequiresVoting bool    `json:"requires_voting"`
	EstimatedCost  float64 `json:"estimated_cost"`
	RiskLevel      string  `json:"risk_level"`
	ActionType     string  `json:"action_type"`
	Description    string  `json:"description"`
}

type AutoProposalResponse struct {
	Created  bool                   `json:"created"`
	Reason   string                 `json:"reason,omitempty"`
	Analysis ActionAnalysisResponse `json:"analysis"`
	Proposal *ProposalResponse      `json:"proposal,omitempty"`
}
