package ports

import (
	"encoding/json"
	"time"

	"pentarchy/contexts/governance/proposal-voting/domain/entities"
	contractsv1 "pentarchy/contracts/gen/events/v1"
)

const SourceService = "proposal-voting"

// NewVoteEnvelope builds the "vote" event for the vote that was just appended
// to proposal. Stores call it inside the same critical section as the append.
func NewVoteEnvelope(eventID string, proposal entities.Proposal, vote entities.Vote) (EventEnvelope, error) {
	reasoning := vote.Reasoning
	if reasoning == nil {
		reasoning = []string{}
	}
	return newEnvelope(eventID, contractsv1.EventTypeVote, proposal.ProposalID, vote.Timestamp, contractsv1.VoteData{
		ProposalID: proposal.ProposalID,
		Agent:      string(vote.Agent),
		Vote:       string(vote.Decision),
		Score:      vote.Score,
		Reasoning:  reasoning,
		VoteCount:  len(proposal.Votes),
		Timestamp:  vote.Timestamp.UTC(),
	})
}

// NewResolvedEnvelope builds the "resolved" event for a terminal proposal.
func NewResolvedEnvelope(eventID string, proposal entities.Proposal) (EventEnvelope, error) {
	data := contractsv1.ResolvedData{
		ProposalID: proposal.ProposalID,
		Status:     string(proposal.Status),
		Threshold:  proposal.Threshold,
		Resolution: proposal.Resolution,
		Trigger:    string(proposal.ResolutionTrigger),
		VoteCount:  len(proposal.Votes),
	}
	if proposal.FinalScore != nil {
		data.FinalScore = *proposal.FinalScore
	}
	occurredAt := time.Now().UTC()
	if proposal.ResolvedAt != nil {
		occurredAt = proposal.ResolvedAt.UTC()
		data.ResolvedAt = occurredAt
	}
	return newEnvelope(eventID, contractsv1.EventTypeResolved, proposal.ProposalID, occurredAt, data)
}

func newEnvelope(eventID string, eventType string, proposalID string, occurredAt time.Time, data any) (EventEnvelope, error) {
	// Events are partitioned by proposal so consumers see one proposal's
	// votes before its resolution.
	payload, err := json.Marshal(data)
	if err != nil {
		return EventEnvelope{}, err
	}
	return EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    SourceService,
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "proposal_id",
		PartitionKey:     proposalID,
		Data:             payload,
	}, nil
}
