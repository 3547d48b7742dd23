package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pentarchy/contexts/governance/proposal-voting/ports"

	"github.com/avast/retry-go/v4"
	"github.com/nats-io/nats.go"
)

// NATSPublisher forwards envelopes to "<prefix>.<topic>" subjects with the
// event id as the Nats-Msg-Id header.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

func ConnectNATS(ctx context.Context, url string, prefix string, logger *slog.Logger) (*NATSPublisher, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("nats url is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var conn *nats.Conn
	err := retry.Do(
		func() error {
			var err error
			conn, err = nats.Connect(url,
				nats.Name("pentarchy-governance"),
				nats.Timeout(5*time.Second),
				nats.MaxReconnects(-1),
			)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(5),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			logger.Warn("nats connect failed, retrying",
				"event", "nats_connect_retry",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"attempt", attempt+1,
				"error", err.Error(),
			)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSPublisher{
		conn:   conn,
		prefix: strings.Trim(prefix, "."),
		logger: logger,
	}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, event ports.EventEnvelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := nats.NewMsg(Subject(p.prefix, topic))
	msg.Header.Set(nats.MsgIdHdr, event.EventID)
	msg.Header.Set("Partition-Key", event.PartitionKey)
	msg.Data = payload
	if err := p.conn.PublishMsg(msg); err != nil {
		p.logger.Error("nats publish failed",
			"event", "nats_publish_failed",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"subject", msg.Subject,
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}

// Subject joins the configured prefix and the event topic.
func Subject(prefix string, topic string) string {
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		return topic
	}
	return prefix + "." + topic
}

var _ ports.EventPublisher = (*NATSPublisher)(nil)
