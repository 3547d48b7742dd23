package ports

import (
	"context"
	"time"

	"pentarchy/contexts/governance/proposal-voting/domain/entities"
	contractsv1 "pentarchy/contracts/gen/events/v1"
)

// ProposalRepository owns the canonical copy of every proposal. All mutations
// of one proposal are serialized by the implementation; returned proposals are
// copies.
type ProposalRepository interface {
	CreateProposal(ctx context.Context, input entities.NewProposal) (entities.Proposal, error)
	GetProposal(ctx context.Context, proposalID string) (entities.Proposal, error)
	// AppendVote fails with ErrNotFound, ErrConflict (terminal proposal) or
	// ErrDuplicateVoter, and returns the proposal as committed.
	AppendVote(ctx context.Context, proposalID string, vote entities.Vote) (entities.Proposal, error)
	// ResolveProposal performs the pending->terminal check-and-set. The bool is
	// true only for the call that performed the transition; replaying the same
	// outcome on a terminal proposal returns false and no error.
	ResolveProposal(ctx context.Context, proposalID string, resolution entities.Resolution) (entities.Proposal, bool, error)
	ListProposals(ctx context.Context, filter entities.ProposalFilter) ([]entities.ProposalSummary, error)
	ListPendingProposals(ctx context.Context, createdBefore time.Time, limit int) ([]entities.Proposal, error)
	Stats(ctx context.Context) (entities.VotingStats, error)
}

// VoteDraft is what a voter returns; agent identity and timestamp are stamped
// by the orchestrator.
type VoteDraft struct {
	Decision  entities.Decision
	Score     float64
	Reasoning []string
}

// Voter is one committee member's scoring strategy.
type Voter interface {
	ID() entities.VoterID
	Evaluate(ctx context.Context, proposal entities.Proposal) (VoteDraft, error)
}

type Clock interface {
	Now() time.Time
}

// Telemetry receives lifecycle observations. Implementations must be safe for
// concurrent use.
type Telemetry interface {
	ProposalCreated(risk entities.RiskLevel)
	VoteRecorded(agent entities.VoterID, decision entities.Decision)
	VoterFailed(agent entities.VoterID)
	ProposalResolved(status entities.ProposalStatus, trigger entities.ResolutionTrigger, votingDuration time.Duration)
}

// OutboxMessage is a row ready to relay from the module outbox.
type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

// OutboxRepository models worker-side outbox polling/acknowledgement.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

// EventEnvelope reuses the canonical event envelope contract.
type EventEnvelope = contractsv1.Envelope

// EventPublisher publishes canonical envelopes to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

// EventSubscriber registers a topic consumer callback.
type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}
