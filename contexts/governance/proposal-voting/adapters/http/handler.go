package httpadapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	application "pentarchy/contexts/governance/proposal-voting/application"
	"pentarchy/contexts/governance/proposal-voting/application/commands"
	"pentarchy/contexts/governance/proposal-voting/application/queries"
	"pentarchy/contexts/governance/proposal-voting/domain/entities"
	domainerrors "pentarchy/contexts/governance/proposal-voting/domain/errors"
	"pentarchy/contexts/governance/proposal-voting/domain/policy"
	httptransport "pentarchy/contexts/governance/proposal-voting/transport/http"

	"github.com/go-playground/validator/v10"
	"github.com/guregu/null/v5"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type Handler struct {
	Orchestrator *commands.Orchestrator
	Queries      queries.ProposalQueries
	Logger       *slog.Logger
}

// CreateProposalHandler godoc
// @Summary Create a governance proposal
// @Description Stores the proposal and dispatches it to the committee. Proposals inside a cost override band are returned already resolved.
// @Tags governance
// @Accept json
// @Produce json
// @Param request body httptransport.CreateProposalRequest true "Proposal"
// @Success 201 {object} httptransport.ProposalResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 429 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /api/v1/votes/proposals [post]
func (h Handler) CreateProposalHandler(
	ctx context.Context,
	initiatedBy string,
	req httptransport.CreateProposalRequest,
) (httptransport.ProposalResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	req.RiskLevel = strings.ToLower(strings.TrimSpace(req.RiskLevel))
	if err := validateRequest(req); err != nil {
		logger.Warn("create proposal request rejected",
			"event", "http_create_proposal_invalid",
			"module", "governance/proposal-voting",
			"layer", "transport",
			"error", err.Error(),
		)
		return httptransport.ProposalResponse{}, err
	}

	proposal, err := h.Orchestrator.CreateProposal(ctx, commands.CreateProposalCommand{
		Title:       req.Title,
		Description: req.Description,
		Cost:        req.Cost,
		RiskLevel:   entities.RiskLevel(req.RiskLevel),
		Context:     req.Context,
		AutoExecute: req.AutoExecute,
		InitiatedBy: initiatedBy,
	})
	if err != nil {
		return httptransport.ProposalResponse{}, err
	}
	return mapProposal(proposal), nil
}

// GetProposalHandler godoc
// @Summary Get a proposal
// @Tags governance
// @Produce json
// @Param proposal_id path string true "Proposal id"
// @Success 200 {object} httptransport.ProposalResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /api/v1/votes/proposals/{proposal_id} [get]
func (h Handler) GetProposalHandler(ctx context.Context, proposalID string) (httptransport.ProposalResponse, error) {
	proposal, err := h.Queries.GetProposal(ctx, proposalID)
	if err != nil {
		return httptransport.ProposalResponse{}, err
	}
	return mapProposal(proposal), nil
}

// ListProposalsHandler godoc
// @Summary List proposals
// @Description Returns proposal summaries in creation order.
// @Tags governance
// @Produce json
// @Param status query string false "pending, approved, rejected or escalated"
// @Param limit query int false "Page size (1-100, default 20)"
// @Param offset query int false "Offset"
// @Success 200 {object} httptransport.ListProposalsResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Router /api/v1/votes/proposals [get]
func (h Handler) ListProposalsHandler(
	ctx context.Context,
	req httptransport.ListProposalsRequest,
) (httptransport.ListProposalsResponse, error) {
	limit := req.Limit
	if limit == 0 {
		limit = queries.DefaultListLimit
	}
	items, err := h.Queries.ListProposals(ctx, entities.ProposalFilter{
		Status: entities.ProposalStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		Limit:  limit,
		Offset: req.Offset,
	})
	if err != nil {
		return httptransport.ListProposalsResponse{}, err
	}
	resp := httptransport.ListProposalsResponse{
		Items:  make([]httptransport.ProposalSummaryResponse, 0, len(items)),
		Limit:  limit,
		Offset: req.Offset,
	}
	for _, item := range items {
		resp.Items = append(resp.Items, httptransport.ProposalSummaryResponse{
			ProposalID: item.ProposalID,
			Title:      item.Title,
			Status:     string(item.Status),
			FinalScore: null.FloatFromPtr(item.FinalScore),
			VoteCount:  item.VoteCount,
			CreatedAt:  item.CreatedAt,
		})
	}
	return resp, nil
}

// SubmitVoteHandler godoc
// @Summary Cast a committee vote
// @Description Appends a vote under the automatic dispatch rules. The fifth distinct vote resolves the proposal.
// @Tags governance
// @Accept json
// @Produce json
// @Param proposal_id path string true "Proposal id"
// @Param request body httptransport.SubmitVoteRequest true "Vote"
// @Success 200 {object} httptransport.ProposalResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /api/v1/votes/proposals/{proposal_id}/vote [post]
func (h Handler) SubmitVoteHandler(
	ctx context.Context,
	proposalID string,
	req httptransport.SubmitVoteRequest,
) (httptransport.ProposalResponse, error) {
	if err := validateRequest(req); err != nil {
		return httptransport.ProposalResponse{}, err
	}
	agent, ok := entities.ParseVoterID(req.Agent)
	if !ok {
		return httptransport.ProposalResponse{}, fmt.Errorf("%w: %q", domainerrors.ErrUnknownVoter, req.Agent)
	}
	proposal, err := h.Orchestrator.SubmitVote(ctx, commands.SubmitVoteCommand{
		ProposalID: strings.TrimSpace(proposalID),
		Agent:      agent,
		Decision:   entities.Decision(strings.ToUpper(strings.TrimSpace(req.Vote))),
		Score:      *req.Score,
		Reasoning:  req.Reasoning,
	})
	if err != nil {
		return httptransport.ProposalResponse{}, err
	}
	return mapProposal(proposal), nil
}

// ResolveProposalHandler godoc
// @Summary Force resolution
// @Description Resolves a pending proposal on the votes collected so far.
// @Tags governance
// @Produce json
// @Param proposal_id path string true "Proposal id"
// @Success 200 {object} httptransport.ProposalResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /api/v1/votes/proposals/{proposal_id}/resolve [post]
func (h Handler) ResolveProposalHandler(ctx context.Context, proposalID string) (httptransport.ProposalResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	proposal, err := h.Orchestrator.ResolveNow(ctx, strings.TrimSpace(proposalID))
	if err != nil {
		return httptransport.ProposalResponse{}, err
	}
	logger.Info("proposal resolved manually",
		"event", "http_proposal_resolved_manually",
		"module", "governance/proposal-voting",
		"layer", "transport",
		"proposal_id", proposal.ProposalID,
		"status", string(proposal.Status),
	)
	return mapProposal(proposal), nil
}

// PendingProposalsHandler godoc
// @Summary List open ballots
// @Tags governance
// @Produce json
// @Success 200 {object} httptransport.PendingProposalsResponse
// @Router /api/v1/votes/pending [get]
func (h Handler) PendingProposalsHandler(ctx context.Context) (httptransport.PendingProposalsResponse, error) {
	items, err := h.Queries.PendingProposals(ctx)
	if err != nil {
		return httptransport.PendingProposalsResponse{}, err
	}
	resp := httptransport.PendingProposalsResponse{
		Items: make([]httptransport.PendingProposalResponse, 0, len(items)),
	}
	for _, item := range items {
		resp.Items = append(resp.Items, httptransport.PendingProposalResponse{
			ProposalID:     item.Proposal.ProposalID,
			Title:          item.Proposal.Title,
			Cost:           item.Proposal.Cost,
			RiskLevel:      string(item.Proposal.RiskLevel),
			VotesCollected: item.VotesCollected,
			VotesNeeded:    item.VotesNeeded,
			CreatedAt:      item.Proposal.CreatedAt,
		})
	}
	return resp, nil
}

// StatsHandler godoc
// @Summary Voting statistics
// @Tags governance
// @Produce json
// @Success 200 {object} httptransport.StatsResponse
// @Router /api/v1/votes/stats [get]
func (h Handler) StatsHandler(ctx context.Context) (httptransport.StatsResponse, error) {
	stats, err := h.Queries.Stats(ctx)
	if err != nil {
		return httptransport.StatsResponse{}, err
	}
	byStatus := make(map[string]int, len(stats.ByStatus))
	for status, total := range stats.ByStatus {
		byStatus[string(status)] = total
	}
	return httptransport.StatsResponse{
		TotalProposals: stats.TotalProposals,
		ByStatus:       byStatus,
		AverageScore:   stats.AverageScore,
		TotalVotes:     stats.TotalVotes,
	}, nil
}

// ThresholdsHandler godoc
// @Summary Governance rules
// @Description Thresholds per risk level, committee identities and cost override bands.
// @Tags governance
// @Produce json
// @Success 200 {object} httptransport.ThresholdsResponse
// @Router /api/v1/votes/thresholds [get]
func (h Handler) ThresholdsHandler(_ context.Context) httptransport.ThresholdsResponse {
	rules := h.Queries.Rules()
	resp := httptransport.ThresholdsResponse{
		Thresholds: make([]httptransport.ThresholdResponse, 0, len(rules.Levels)),
		Voters:     make([]httptransport.VoterProfileResponse, 0, len(rules.Voters)),
		CostOverride: httptransport.CostOverrideResponse{
			AutoApproveBelow:    optionalBound(rules.CostOverride.AutoApproveBelow),
			AutoRejectAtOrAbove: optionalBound(rules.CostOverride.AutoRejectAtOrAbove),
		},
	}
	for _, level := range rules.Levels {
		resp.Thresholds = append(resp.Thresholds, httptransport.ThresholdResponse{
			RiskLevel: string(level.RiskLevel),
			Threshold: level.Threshold,
			MaxScore:  level.MaxScore,
		})
	}
	for _, voter := range rules.Voters {
		resp.Voters = append(resp.Voters, httptransport.VoterProfileResponse{
			ID:     string(voter.ID),
			Label:  voter.Label,
			Domain: voter.Domain,
			Icon:   voter.Icon,
			Color:  voter.Color,
		})
	}
	return resp
}

// AnalyzeActionHandler godoc
// @Summary Analyze a free-text action
// @Tags governance
// @Accept json
// @Produce json
// @Param request body httptransport.AnalyzeActionRequest true "Action"
// @Success 200 {object} httptransport.ActionAnalysisResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Router /api/v1/votes/analyze-action [post]
func (h Handler) AnalyzeActionHandler(_ context.Context, req httptransport.AnalyzeActionRequest) (httptransport.ActionAnalysisResponse, error) {
	if err := validateRequest(req); err != nil {
		return httptransport.ActionAnalysisResponse{}, err
	}
	return mapAnalysis(h.Queries.AnalyzeAction(req.Message)), nil
}

// AutoProposalHandler godoc
// @Summary Open a proposal for an action when it needs a vote
// @Tags governance
// @Accept json
// @Produce json
// @Param request body httptransport.AutoProposalRequest true "Action"
// @Success 200 {object} httptransport.AutoProposalResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Router /api/v1/votes/auto-proposal [post]
func (h Handler) AutoProposalHandler(
	ctx context.Context,
	initiatedBy string,
	req httptransport.AutoProposalRequest,
) (httptransport.AutoProposalResponse, error) {
	if err := validateRequest(req); err != nil {
		return httptransport.AutoProposalResponse{}, err
	}
	result, err := h.Orchestrator.AutoProposal(ctx, commands.AutoProposalCommand{
		Message:        req.Message,
		ConversationID: req.ConversationID,
		InitiatedBy:    initiatedBy,
	})
	if err != nil {
		return httptransport.AutoProposalResponse{}, err
	}
	resp := httptransport.AutoProposalResponse{
		Created:  result.Created,
		Reason:   result.Reason,
		Analysis: mapAnalysis(result.Analysis),
	}
	if result.Created {
		proposal := mapProposal(result.Proposal)
		resp.Proposal = &proposal
	}
	return resp, nil
}

func validateRequest(req any) error {
	if err := validate.Struct(req); err != nil {
		var fields []string
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) {
			for _, fieldErr := range invalid {
				fields = append(fields, fmt.Sprintf("%s failed %s", strings.ToLower(fieldErr.Field()), fieldErr.Tag()))
			}
			return fmt.Errorf("%w: %s", domainerrors.ErrValidation, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %s", domainerrors.ErrValidation, err.Error())
	}
	return nil
}

func mapProposal(proposal entities.Proposal) httptransport.ProposalResponse {
	resp := httptransport.ProposalResponse{
		ProposalID:        proposal.ProposalID,
		Title:             proposal.Title,
		Description:       proposal.Description,
		Cost:              proposal.Cost,
		RiskLevel:         string(proposal.RiskLevel),
		Status:            string(proposal.Status),
		Votes:             make([]httptransport.VoteResponse, 0, len(proposal.Votes)),
		FinalScore:        null.FloatFromPtr(proposal.FinalScore),
		Threshold:         proposal.Threshold,
		Resolution:        proposal.Resolution,
		ResolutionTrigger: string(proposal.ResolutionTrigger),
		Context:           proposal.Context,
		AutoExecute:       proposal.AutoExecute,
		InitiatedBy:       proposal.InitiatedBy,
		CreatedAt:         proposal.CreatedAt,
		ResolvedAt:        null.TimeFromPtr(proposal.ResolvedAt),
	}
	for _, vote := range proposal.Votes {
		reasoning := vote.Reasoning
		if reasoning == nil {
			reasoning = []string{}
		}
		resp.Votes = append(resp.Votes, httptransport.VoteResponse{
			Agent:     string(vote.Agent),
			Vote:      string(vote.Decision),
			Score:     vote.Score,
			Reasoning: reasoning,
			Timestamp: vote.Timestamp,
		})
	}
	return resp
}

func mapAnalysis(analysis policy.ActionAnalysis) httptransport.ActionAnalysisResponse {
	return httptransport.ActionAnalysisResponse{
		RequiresVoting: analysis.RequiresVoting,
		EstimatedCost:  analysis.EstimatedCost,
		RiskLevel:      string(analysis.RiskLevel),
		ActionType:     analysis.ActionType,
		Description:    analysis.Description,
	}
}

func optionalBound(value float64) null.Float {
	if value <= 0 {
		return null.Float{}
	}
	return null.FloatFrom(value)
}
