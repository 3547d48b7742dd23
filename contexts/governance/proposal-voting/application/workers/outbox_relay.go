package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	application "pentarchy/contexts/governance/proposal-voting/application"
	"pentarchy/contexts/governance/proposal-voting/ports"
	contractsv1 "pentarchy/contracts/gen/events/v1"
)

// OutboxRelay moves queued vote and resolution events from the proposal
// store onto the event bus.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

// RelayCycle counts what one relay pass did.
type RelayCycle struct {
	Votes       int
	Resolutions int
	Skipped     int
}

func (c RelayCycle) total() int { return c.Votes + c.Resolutions + c.Skipped }

// RunOnce relays one batch; it is the loop body used by the API and worker.
func (r OutboxRelay) RunOnce(ctx context.Context) error {
	_, err := r.Relay(ctx)
	return err
}

// Relay publishes a bounded batch of governance events in outbox order. A row
// is marked published only after its publish succeeds, and the pass stops on
// the first failure so the next pass retries from that row. Rows carrying an
// event type the governance contract does not define are acknowledged without
// being published.
func (r OutboxRelay) Relay(ctx context.Context) (RelayCycle, error) {
	logger := application.ResolveLogger(r.Logger)
	var cycle RelayCycle
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("governance outbox list failed",
			"event", "governance_outbox_list_failed",
			"module", "governance/proposal-voting",
			"layer", "worker",
			"error", err.Error(),
		)
		return cycle, err
	}
	if len(pending) == 0 {
		return cycle, nil
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	for _, row := range pending {
		var event ports.EventEnvelope
		if err := json.Unmarshal(row.Payload, &event); err != nil {
			logger.Error("governance outbox decode failed",
				"event", "governance_outbox_decode_failed",
				"module", "governance/proposal-voting",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return cycle, err
		}
		if event.EventType == "" {
			event.EventType = row.EventType
		}

		attrs, known, err := describeEvent(event)
		if err != nil {
			logger.Error("governance outbox decode failed",
				"event", "governance_outbox_decode_failed",
				"module", "governance/proposal-voting",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"event_type", event.EventType,
				"error", err.Error(),
			)
			return cycle, err
		}

		if known {
			if err := r.Publisher.Publish(ctx, event.EventType, event); err != nil {
				logger.Error("governance outbox publish failed",
					"event", "governance_outbox_publish_failed",
					"module", "governance/proposal-voting",
					"layer", "worker",
					"outbox_id", row.OutboxID,
					"event_id", event.EventID,
					"event_type", event.EventType,
					"proposal_id", event.PartitionKey,
					"error", err.Error(),
				)
				return cycle, err
			}
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, row.OutboxID, now); err != nil {
			logger.Error("governance outbox mark published failed",
				"event", "governance_outbox_mark_published_failed",
				"module", "governance/proposal-voting",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"proposal_id", event.PartitionKey,
				"error", err.Error(),
			)
			return cycle, err
		}

		switch {
		case !known:
			cycle.Skipped++
			logger.Warn("governance outbox row skipped",
				"event", "governance_outbox_unknown_event",
				"module", "governance/proposal-voting",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"event_type", event.EventType,
				"proposal_id", event.PartitionKey,
			)
			continue
		case event.EventType == contractsv1.EventTypeVote:
			cycle.Votes++
		default:
			cycle.Resolutions++
		}
		logger.Info("governance event relayed",
			append([]any{
				"event", "governance_event_relayed",
				"module", "governance/proposal-voting",
				"layer", "worker",
				"event_id", event.EventID,
				"event_type", event.EventType,
			}, attrs...)...,
		)
	}

	logger.Debug("governance outbox relay cycle completed",
		"event", "governance_outbox_relay_completed",
		"module", "governance/proposal-voting",
		"layer", "worker",
		"published_count", cycle.total(),
		"vote_events", cycle.Votes,
		"resolved_events", cycle.Resolutions,
		"skipped_events", cycle.Skipped,
	)
	return cycle, nil
}

// describeEvent decodes the governance payload into log attributes. known is
// false for event types outside the contract.
func describeEvent(event ports.EventEnvelope) (attrs []any, known bool, err error) {
	switch event.EventType {
	case contractsv1.EventTypeVote:
		var data contractsv1.VoteData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return nil, true, fmt.Errorf("vote event %s: %w", event.EventID, err)
		}
		return []any{
			"proposal_id", data.ProposalID,
			"agent", data.Agent,
			"vote", data.Vote,
			"vote_count", data.VoteCount,
		}, true, nil
	case contractsv1.EventTypeResolved:
		var data contractsv1.ResolvedData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return nil, true, fmt.Errorf("resolved event %s: %w", event.EventID, err)
		}
		return []any{
			"proposal_id", data.ProposalID,
			"status", data.Status,
			"trigger", data.Trigger,
			"final_score", data.FinalScore,
		}, true, nil
	default:
		return nil, false, nil
	}
}
