package events

import (
	"encoding/json"
	"time"

	contractsv1 "pentarchy/contracts/gen/events/v1"
)

// StreamMessage is the frame pushed to live stream clients. Data carries the
// event payload unchanged.
type StreamMessage struct {
	Type       string          `json:"type"`
	EventID    string          `json:"event_id"`
	ProposalID string          `json:"proposal_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

func FromEnvelope(envelope contractsv1.Envelope) StreamMessage {
	return StreamMessage{
		Type:       envelope.EventType,
		EventID:    envelope.EventID,
		ProposalID: envelope.PartitionKey,
		OccurredAt: envelope.OccurredAt.UTC(),
		Data:       envelope.Data,
	}
}
