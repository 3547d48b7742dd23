package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"pentarchy/contexts/governance/proposal-voting/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToTopicSubscribers(t *testing.T) {
	bus := NewBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan ports.EventEnvelope, 2)
	require.NoError(t, bus.Subscribe(ctx, "vote", "test", func(_ context.Context, event ports.EventEnvelope) error {
		received <- event
		return nil
	}))

	require.NoError(t, bus.Publish(ctx, "resolved", ports.EventEnvelope{EventID: "ignored"}))
	require.NoError(t, bus.Publish(ctx, "vote", ports.EventEnvelope{EventID: "evt-1"}))

	select {
	case event := <-received:
		assert.Equal(t, "evt-1", event.EventID)
	case <-time.After(time.Second):
		t.Fatal("expected vote event")
	}
	select {
	case event := <-received:
		t.Fatalf("unexpected event %s", event.EventID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusDropsSubscriberOnCancel(t *testing.T) {
	bus := NewBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, bus.Subscribe(ctx, "vote", "test", func(context.Context, ports.EventEnvelope) error { return nil }))
	cancel()

	require.Eventually(t, func() bool {
		bus.mu.RLock()
		defer bus.mu.RUnlock()
		return len(bus.subscribers["vote"]) == 0
	}, time.Second, 10*time.Millisecond)
}

type recordingPublisher struct {
	topics []string
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ ports.EventEnvelope) error {
	p.topics = append(p.topics, topic)
	return p.err
}

func TestFanoutPublishesToEveryTarget(t *testing.T) {
	first := &recordingPublisher{}
	failing := &recordingPublisher{err: errors.New("broker down")}
	last := &recordingPublisher{}

	err := Fanout{first, nil, failing, last}.Publish(context.Background(), "resolved", ports.EventEnvelope{})
	require.ErrorIs(t, err, failing.err)
	assert.Equal(t, []string{"resolved"}, first.topics)
	assert.Equal(t, []string{"resolved"}, last.topics)

	require.NoError(t, Fanout{first}.Publish(context.Background(), "vote", ports.EventEnvelope{}))
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "governance.vote", Subject("governance", "vote"))
	assert.Equal(t, "acme.gov.resolved", Subject(".acme.gov.", "resolved"))
	assert.Equal(t, "vote", Subject("", "vote"))
}
