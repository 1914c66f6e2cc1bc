package service

import (
	"context"
	"time"

	"github.com/iliyamo/aether/internal/queue"
)

const publishTimeout = 10 * time.Second

// publish sends ev in the background.  Failures are logged and never reach
// the caller, so a broker outage does not interrupt the request flow.
func (o *Orchestrator) publish(ev queue.ProjectEvent) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := o.events.Publish(ctx, ev); err != nil {
			o.log.Warn().
				Err(err).
				Str("event", string(ev.Type)).
				Str("project_id", ev.ProjectID).
				Msg("publish project event failed")
		}
	}()
}
