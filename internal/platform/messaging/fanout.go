package messaging

import (
	"context"
	"errors"

	"pentarchy/contexts/governance/proposal-voting/ports"
)

// Fanout publishes every event to each target in order. It reports the joined
// errors of failed targets, so the relay retries the row on the next cycle.
type Fanout []ports.EventPublisher

func (f Fanout) Publish(ctx context.Context, topic string, event ports.EventEnvelope) error {
	var errs []error
	for _, target := range f {
		if target == nil {
			continue
		}
		if err := target.Publish(ctx, topic, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
