package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	application "pentarchy/contexts/governance/proposal-voting/application"
	"pentarchy/contexts/governance/proposal-voting/domain/entities"
	domainerrors "pentarchy/contexts/governance/proposal-voting/domain/errors"
	"pentarchy/contexts/governance/proposal-voting/domain/policy"
	"pentarchy/contexts/governance/proposal-voting/ports"

	"golang.org/x/sync/errgroup"
)

const DefaultVotingTimeout = 30 * time.Second

// CreateProposalCommand is the write-model input for proposal creation.
type CreateProposalCommand struct {
	Title       string
	Description string
	Cost        float64
	RiskLevel   entities.RiskLevel
	Context     map[string]any
	AutoExecute bool
	InitiatedBy string
}

// SubmitVoteCommand records a vote cast outside the automatic dispatch, e.g.
// by an operator through the API.
type SubmitVoteCommand struct {
	ProposalID string
	Agent      entities.VoterID
	Decision   entities.Decision
	Score      float64
	Reasoning  []string
}

type OrchestratorConfig struct {
	Proposals     ports.ProposalRepository
	Voters        []ports.Voter
	Thresholds    policy.ThresholdTable
	CostOverride  policy.CostOverride
	VotingTimeout time.Duration
	Clock         ports.Clock
	Telemetry     ports.Telemetry
	Logger        *slog.Logger
}

// ballot serializes vote appends, the completion check and the timeout of one
// proposal inside this process. The store check-and-set remains the final
// guard across processes.
type ballot struct {
	mu    sync.Mutex
	timer *time.Timer
}

// Orchestrator drives a proposal from creation to its terminal status: cost
// override, concurrent voter dispatch, vote collection, timeout and resolution.
type Orchestrator struct {
	proposals     ports.ProposalRepository
	voters        map[entities.VoterID]ports.Voter
	thresholds    policy.ThresholdTable
	resolver      policy.Resolver
	costOverride  policy.CostOverride
	votingTimeout time.Duration
	clock         ports.Clock
	telemetry     ports.Telemetry
	logger        *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	ballots map[string]*ballot
}

func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Proposals == nil {
		return nil, fmt.Errorf("%w: proposal repository is required", domainerrors.ErrConfiguration)
	}
	voters := make(map[entities.VoterID]ports.Voter, entities.CommitteeSize)
	for _, voter := range cfg.Voters {
		if voter == nil {
			return nil, fmt.Errorf("%w: nil voter", domainerrors.ErrConfiguration)
		}
		id := voter.ID()
		if !id.Valid() {
			return nil, fmt.Errorf("%w: %w %q", domainerrors.ErrConfiguration, domainerrors.ErrUnknownVoter, id)
		}
		if _, exists := voters[id]; exists {
			return nil, fmt.Errorf("%w: voter %q registered twice", domainerrors.ErrConfiguration, id)
		}
		voters[id] = voter
	}
	for _, id := range entities.Committee() {
		if _, ok := voters[id]; !ok {
			return nil, fmt.Errorf("%w: voter %q is not registered", domainerrors.ErrConfiguration, id)
		}
	}
	thresholds := cfg.Thresholds
	if len(thresholds.Entries()) == 0 {
		thresholds = policy.DefaultThresholdTable()
	}
	if err := cfg.CostOverride.Validate(); err != nil {
		return nil, err
	}
	timeout := cfg.VotingTimeout
	if timeout <= 0 {
		timeout = DefaultVotingTimeout
	}
	telemetry := cfg.Telemetry
	if telemetry == nil {
		telemetry = noopTelemetry{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		proposals:     cfg.Proposals,
		voters:        voters,
		thresholds:    thresholds,
		resolver:      policy.Resolver{Thresholds: thresholds},
		costOverride:  cfg.CostOverride,
		votingTimeout: timeout,
		clock:         cfg.Clock,
		telemetry:     telemetry,
		logger:        application.ResolveLogger(cfg.Logger),
		ctx:           ctx,
		cancel:        cancel,
		ballots:       make(map[string]*ballot),
	}, nil
}

func (o *Orchestrator) Thresholds() policy.ThresholdTable {
	return o.thresholds
}

func (o *Orchestrator) CostOverride() policy.CostOverride {
	return o.costOverride
}

func (o *Orchestrator) VotingTimeout() time.Duration {
	return o.votingTimeout
}

// CreateProposal validates and stores a proposal. When a cost band matches,
// the proposal is stored already resolved and no voter is contacted;
// otherwise the committee is dispatched in the background and the pending
// proposal is returned immediately.
func (o *Orchestrator) CreateProposal(ctx context.Context, cmd CreateProposalCommand) (entities.Proposal, error) {
	input := entities.NewProposal{
		Title:       policy.NormalizeText(cmd.Title),
		Description: policy.NormalizeText(cmd.Description),
		Cost:        cmd.Cost,
		RiskLevel:   cmd.RiskLevel,
		Context:     copyContext(cmd.Context),
		AutoExecute: cmd.AutoExecute,
		InitiatedBy: cmd.InitiatedBy,
		CreatedAt:   o.now(),
	}
	if err := policy.ValidateNewProposal(input); err != nil {
		o.logger.Warn("proposal create validation failed",
			"event", "governance_proposal_create_validation_failed",
			"module", "governance/proposal-voting",
			"layer", "application",
			"risk_level", string(cmd.RiskLevel),
			"error", err.Error(),
		)
		return entities.Proposal{}, err
	}

	if decision, ok := o.costOverride.Evaluate(input.Cost); ok {
		return o.createOverridden(ctx, input, decision)
	}

	created, err := o.proposals.CreateProposal(ctx, input)
	if err != nil {
		o.logger.Error("proposal create failed",
			"event", "governance_proposal_create_failed",
			"module", "governance/proposal-voting",
			"layer", "application",
			"error", err.Error(),
		)
		return entities.Proposal{}, err
	}
	o.telemetry.ProposalCreated(created.RiskLevel)
	o.logger.Info("proposal created",
		"event", "governance_proposal_created",
		"module", "governance/proposal-voting",
		"layer", "application",
		"proposal_id", created.ProposalID,
		"risk_level", string(created.RiskLevel),
		"cost", created.Cost,
	)
	o.dispatch(created)
	return created, nil
}

func (o *Orchestrator) createOverridden(
	ctx context.Context,
	input entities.NewProposal,
	decision policy.OverrideDecision,
) (entities.Proposal, error) {
	resolution := o.resolver.Override(decision, input.RiskLevel).
		Resolution(entities.TriggerCostOverride, input.CreatedAt)
	input.Override = &resolution
	if input.Context == nil {
		input.Context = map[string]any{}
	}
	input.Context["cost_override_note"] = decision.Note

	created, err := o.proposals.CreateProposal(ctx, input)
	if err != nil {
		o.logger.Error("proposal create failed",
			"event", "governance_proposal_create_failed",
			"module", "governance/proposal-voting",
			"layer", "application",
			"error", err.Error(),
		)
		return entities.Proposal{}, err
	}
	o.telemetry.ProposalCreated(created.RiskLevel)
	o.telemetry.ProposalResolved(created.Status, entities.TriggerCostOverride, 0)
	o.logger.Info("proposal resolved by cost override",
		"event", "governance_proposal_cost_override",
		"module", "governance/proposal-voting",
		"layer", "application",
		"proposal_id", created.ProposalID,
		"status", string(created.Status),
		"reason", decision.Reason,
		"cost", created.Cost,
	)
	return created, nil
}

// SubmitVote appends a manually cast vote under the same rules as dispatched
// votes. The fifth distinct vote resolves the proposal.
func (o *Orchestrator) SubmitVote(ctx context.Context, cmd SubmitVoteCommand) (entities.Proposal, error) {
	current, err := o.proposals.GetProposal(ctx, cmd.ProposalID)
	if err != nil {
		return entities.Proposal{}, err
	}
	entry, err := o.thresholds.Lookup(current.RiskLevel)
	if err != nil {
		return entities.Proposal{}, err
	}
	vote := entities.Vote{
		Agent:     cmd.Agent,
		Decision:  cmd.Decision,
		Score:     cmd.Score,
		Reasoning: normalizeReasoning(cmd.Reasoning),
		Timestamp: o.now(),
	}
	if err := policy.ValidateVote(vote, entry.MaxScore); err != nil {
		o.logger.Warn("manual vote validation failed",
			"event", "governance_manual_vote_validation_failed",
			"module", "governance/proposal-voting",
			"layer", "application",
			"proposal_id", current.ProposalID,
			"agent", string(cmd.Agent),
			"error", err.Error(),
		)
		return entities.Proposal{}, err
	}

	b := o.ballotFor(current.ProposalID)
	b.mu.Lock()
	defer b.mu.Unlock()

	updated, err := o.proposals.AppendVote(ctx, current.ProposalID, vote)
	if err != nil {
		o.release(current.ProposalID, b)
		o.logger.Warn("manual vote rejected",
			"event", "governance_manual_vote_rejected",
			"module", "governance/proposal-voting",
			"layer", "application",
			"proposal_id", current.ProposalID,
			"agent", string(vote.Agent),
			"error", err.Error(),
		)
		return entities.Proposal{}, err
	}
	o.voteRecorded(updated, vote, "manual")
	if len(updated.Votes) < entities.CommitteeSize {
		return updated, nil
	}
	resolved, _, err := o.resolveLocked(ctx, b, updated, entities.TriggerAllVotes)
	if err != nil {
		return entities.Proposal{}, err
	}
	return resolved, nil
}

// ResolveNow forces resolution on the votes collected so far. It fails with
// ErrConflict when the proposal is already terminal.
func (o *Orchestrator) ResolveNow(ctx context.Context, proposalID string) (entities.Proposal, error) {
	b := o.ballotFor(proposalID)
	b.mu.Lock()
	defer b.mu.Unlock()

	current, err := o.proposals.GetProposal(ctx, proposalID)
	if err != nil {
		o.forget(proposalID, b)
		return entities.Proposal{}, err
	}
	if !current.Pending() {
		o.forget(proposalID, b)
		return entities.Proposal{}, domainerrors.ErrConflict
	}
	resolved, transitioned, err := o.resolveLocked(ctx, b, current, entities.TriggerManual)
	if err != nil {
		return entities.Proposal{}, err
	}
	if !transitioned {
		return entities.Proposal{}, domainerrors.ErrConflict
	}
	return resolved, nil
}

// Expire applies the timeout path: a still-pending proposal is resolved on
// the votes collected so far. It is a no-op for terminal proposals.
func (o *Orchestrator) Expire(ctx context.Context, proposalID string) (entities.Proposal, bool, error) {
	b := o.ballotFor(proposalID)
	b.mu.Lock()
	defer b.mu.Unlock()

	current, err := o.proposals.GetProposal(ctx, proposalID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			o.forget(proposalID, b)
		}
		o.logger.Error("proposal expiry lookup failed",
			"event", "governance_proposal_expiry_lookup_failed",
			"module", "governance/proposal-voting",
			"layer", "application",
			"proposal_id", proposalID,
			"error", err.Error(),
		)
		return entities.Proposal{}, false, err
	}
	if !current.Pending() {
		o.forget(proposalID, b)
		return current, false, nil
	}
	o.logger.Info("voting window elapsed",
		"event", "governance_voting_timeout",
		"module", "governance/proposal-voting",
		"layer", "application",
		"proposal_id", proposalID,
		"votes_collected", len(current.Votes),
	)
	return o.resolveLocked(ctx, b, current, entities.TriggerTimeout)
}

// Close stops pending timers and waits for in-flight voter dispatches. Voting
// windows still open are left for the pending sweeper.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	timers := make([]*time.Timer, 0, len(o.ballots))
	for _, b := range o.ballots {
		if b.timer != nil {
			timers = append(timers, b.timer)
		}
	}
	o.mu.Unlock()

	for _, timer := range timers {
		timer.Stop()
	}
	o.cancel()
	o.inflight.Wait()
}

func (o *Orchestrator) dispatch(proposal entities.Proposal) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		o.logger.Warn("dispatch skipped after shutdown",
			"event", "governance_dispatch_skipped",
			"module", "governance/proposal-voting",
			"layer", "application",
			"proposal_id", proposal.ProposalID,
		)
		return
	}
	b := o.ballotLocked(proposal.ProposalID)
	o.inflight.Add(1)
	o.mu.Unlock()

	proposalID := proposal.ProposalID
	b.mu.Lock()
	if b.timer == nil {
		b.timer = time.AfterFunc(o.votingTimeout, func() {
			_, _, _ = o.Expire(o.ctx, proposalID)
		})
	}
	b.mu.Unlock()

	o.logger.Info("voters dispatched",
		"event", "governance_voters_dispatched",
		"module", "governance/proposal-voting",
		"layer", "application",
		"proposal_id", proposalID,
		"voter_count", len(o.voters),
		"timeout_ms", o.votingTimeout.Milliseconds(),
	)

	go func() {
		defer o.inflight.Done()
		windowCtx, cancel := context.WithTimeout(o.ctx, o.votingTimeout)
		defer cancel()

		group, groupCtx := errgroup.WithContext(windowCtx)
		for _, id := range entities.Committee() {
			voter := o.voters[id]
			group.Go(func() error {
				o.collect(groupCtx, id, voter, proposal)
				return nil
			})
		}
		_ = group.Wait()
	}()
}

// collect obtains one voter's decision and records it. Failures become an
// ABSTAIN with score 0; decisions that arrive after the window closed are
// discarded.
func (o *Orchestrator) collect(ctx context.Context, id entities.VoterID, voter ports.Voter, proposal entities.Proposal) {
	draft, err := o.evaluate(ctx, voter, proposal)
	if ctx.Err() != nil {
		o.logger.Info("late vote discarded",
			"event", "governance_vote_discarded_late",
			"module", "governance/proposal-voting",
			"layer", "application",
			"proposal_id", proposal.ProposalID,
			"agent", string(id),
		)
		return
	}

	vote := entities.Vote{
		Agent:     id,
		Decision:  draft.Decision,
		Score:     draft.Score,
		Reasoning: normalizeReasoning(draft.Reasoning),
		Timestamp: o.now(),
	}
	if err == nil {
		entry, lookupErr := o.thresholds.Lookup(proposal.RiskLevel)
		if lookupErr != nil {
			err = lookupErr
		} else if validateErr := policy.ValidateVote(vote, entry.MaxScore); validateErr != nil {
			err = fmt.Errorf("%w: %w", domainerrors.ErrVoterFailure, validateErr)
		}
	}
	if err != nil {
		o.telemetry.VoterFailed(id)
		o.logger.Warn("voter failed, recording abstain",
			"event", "governance_voter_failed",
			"module", "governance/proposal-voting",
			"layer", "application",
			"proposal_id", proposal.ProposalID,
			"agent", string(id),
			"error", err.Error(),
		)
		vote = entities.Vote{
			Agent:     id,
			Decision:  entities.DecisionAbstain,
			Score:     0,
			Reasoning: []string{},
			Timestamp: o.now(),
		}
	}
	o.record(proposal.ProposalID, vote)
}

type evaluation struct {
	draft ports.VoteDraft
	err   error
}

// evaluate runs the voter in its own goroutine so a voter that ignores its
// context cannot hold the ballot open past the voting window.
func (o *Orchestrator) evaluate(ctx context.Context, voter ports.Voter, proposal entities.Proposal) (ports.VoteDraft, error) {
	result := make(chan evaluation, 1)
	go func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				result <- evaluation{err: fmt.Errorf("%w: panic: %v", domainerrors.ErrVoterFailure, recovered)}
			}
		}()
		draft, err := voter.Evaluate(ctx, proposal.Clone())
		if err != nil {
			err = fmt.Errorf("%w: %w", domainerrors.ErrVoterFailure, err)
		}
		result <- evaluation{draft: draft, err: err}
	}()

	select {
	case outcome := <-result:
		return outcome.draft, outcome.err
	case <-ctx.Done():
		return ports.VoteDraft{}, fmt.Errorf("%w: %w", domainerrors.ErrVoterFailure, ctx.Err())
	}
}

func (o *Orchestrator) record(proposalID string, vote entities.Vote) {
	b := o.ballotFor(proposalID)
	b.mu.Lock()
	defer b.mu.Unlock()

	updated, err := o.proposals.AppendVote(o.ctx, proposalID, vote)
	if err != nil {
		o.release(proposalID, b)
	}
	switch {
	case errors.Is(err, domainerrors.ErrConflict), errors.Is(err, domainerrors.ErrDuplicateVoter):
		o.logger.Info("vote discarded",
			"event", "governance_vote_discarded",
			"module", "governance/proposal-voting",
			"layer", "application",
			"proposal_id", proposalID,
			"agent", string(vote.Agent),
			"reason", err.Error(),
		)
		return
	case err != nil:
		o.logger.Error("vote append failed",
			"event", "governance_vote_append_failed",
			"module", "governance/proposal-voting",
			"layer", "application",
			"proposal_id", proposalID,
			"agent", string(vote.Agent),
			"error", err.Error(),
		)
		return
	}
	o.voteRecorded(updated, vote, "dispatch")
	if len(updated.Votes) >= entities.CommitteeSize {
		_, _, _ = o.resolveLocked(o.ctx, b, updated, entities.TriggerAllVotes)
	}
}

// resolveLocked must be called with b.mu held.
func (o *Orchestrator) resolveLocked(
	ctx context.Context,
	b *ballot,
	proposal entities.Proposal,
	trigger entities.ResolutionTrigger,
) (entities.Proposal, bool, error) {
	outcome := o.resolver.Resolve(proposal.Votes, proposal.RiskLevel)
	resolution := outcome.Resolution(trigger, o.now())
	resolved, transitioned, err := o.proposals.ResolveProposal(ctx, proposal.ProposalID, resolution)
	if err != nil {
		if errors.Is(err, domainerrors.ErrConflict) {
			o.forget(proposal.ProposalID, b)
		}
		o.logger.Error("proposal resolve failed",
			"event", "governance_proposal_resolve_failed",
			"module", "governance/proposal-voting",
			"layer", "application",
			"proposal_id", proposal.ProposalID,
			"trigger", string(trigger),
			"error", err.Error(),
		)
		return entities.Proposal{}, false, err
	}
	o.forget(proposal.ProposalID, b)
	if !transitioned {
		return resolved, false, nil
	}

	duration := time.Duration(0)
	if resolved.ResolvedAt != nil {
		duration = resolved.ResolvedAt.Sub(resolved.CreatedAt)
	}
	o.telemetry.ProposalResolved(resolved.Status, trigger, duration)
	o.logger.Info("proposal resolved",
		"event", "governance_proposal_resolved",
		"module", "governance/proposal-voting",
		"layer", "application",
		"proposal_id", resolved.ProposalID,
		"status", string(resolved.Status),
		"final_score", outcome.FinalScore,
		"threshold", outcome.Threshold,
		"reason", outcome.Reason,
		"trigger", string(trigger),
		"approvals", outcome.Approvals,
		"rejections", outcome.Rejections,
		"abstentions", outcome.Abstentions,
	)
	return resolved, true, nil
}

func (o *Orchestrator) voteRecorded(proposal entities.Proposal, vote entities.Vote, source string) {
	o.telemetry.VoteRecorded(vote.Agent, vote.Decision)
	o.logger.Info("vote recorded",
		"event", "governance_vote_recorded",
		"module", "governance/proposal-voting",
		"layer", "application",
		"proposal_id", proposal.ProposalID,
		"agent", string(vote.Agent),
		"decision", string(vote.Decision),
		"score", vote.Score,
		"vote_count", len(proposal.Votes),
		"source", source,
	)
}

func (o *Orchestrator) ballotFor(proposalID string) *ballot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ballotLocked(proposalID)
}

func (o *Orchestrator) ballotLocked(proposalID string) *ballot {
	b, ok := o.ballots[proposalID]
	if !ok {
		b = &ballot{}
		o.ballots[proposalID] = b
	}
	return b
}

// forget stops the timer and drops the ballot of a terminal proposal. The
// caller holds b.mu.
func (o *Orchestrator) forget(proposalID string, b *ballot) {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	o.mu.Lock()
	if o.ballots[proposalID] == b {
		delete(o.ballots, proposalID)
	}
	o.mu.Unlock()
}

// release drops a ballot that owns no voting window, such as one created for
// a vote on an already resolved proposal. The caller holds b.mu.
func (o *Orchestrator) release(proposalID string, b *ballot) {
	if b.timer == nil {
		o.forget(proposalID, b)
	}
}

func (o *Orchestrator) now() time.Time {
	if o.clock != nil {
		return o.clock.Now().UTC()
	}
	return time.Now().UTC()
}

func normalizeReasoning(reasoning []string) []string {
	out := make([]string, 0, len(reasoning))
	for _, line := range reasoning {
		if trimmed := policy.NormalizeText(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func copyContext(values map[string]any) map[string]any {
	if values == nil {
		return nil
	}
	out := make(map[string]any, len(values))
	for key, value := range values {
		out[key] = value
	}
	return out
}

type noopTelemetry struct{}

func (noopTelemetry) ProposalCreated(entities.RiskLevel) {}

func (noopTelemetry) VoteRecorded(entities.VoterID, entities.Decision) {}

func (noopTelemetry) VoterFailed(entities.VoterID) {}

func (noopTelemetry) ProposalResolved(entities.ProposalStatus, entities.ResolutionTrigger, time.Duration) {}
