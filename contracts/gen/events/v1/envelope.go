package v1

import (
	"encoding/json"
	"time"
)

// Event types emitted by the governance service.
const (
	EventTypeVote     = "vote"
	EventTypeResolved = "resolved"
)

// Envelope is the versioned event envelope shared by the outbox, the event
// bus, NATS subjects and the live stream. Keep it backward compatible.
type Envelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

// VoteData is the payload of a "vote" event.
type VoteData struct {
	ProposalID string    `json:"proposal_id"`
	Agent      string    `json:"agent"`
	Vote       string    `json:"vote"`
	Score      float64   `json:"score"`
	Reasoning  []string  `json:"reasoning"`
	VoteCount  int       `json:"vote_count"`
	Timestamp  time.Time `json:"timestamp"`
}

// ResolvedData is the payload of a "resolved" event.
type ResolvedData struct {
	ProposalID string    `json:"proposal_id"`
	Status     string    `json:"status"`
	FinalScore float64   `json:"final_score"`
	Threshold  float64   `json:"threshold"`
	Resolution string    `json:"resolution"`
	Trigger    string    `json:"trigger"`
	VoteCount  int       `json:"vote_count"`
	ResolvedAt time.Time `json:"resolved_at"`
}
