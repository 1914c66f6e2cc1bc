package queue

import "context"

// NoopPublisher drops every event.  Used when EVENTS_ENABLED is false.
type NoopPublisher struct{}

func NewNoopPublisher() *NoopPublisher {
    return &NoopPublisher{}
}

func (NoopPublisher) Publish(context.Context, ProjectEvent) error {
    return nil
}

var _ Publisher = (*NoopPublisher)(nil)
