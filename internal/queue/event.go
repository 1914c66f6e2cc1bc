// Package queue defines the project event payload, its publishers and the
// audit consumer that reads it back from the broker.
package queue

import (
    "context"
    "time"
)

// EventType names what happened to a project.
type EventType string

const (
    EventProjectCreated EventType = "project.created"
    EventVersionCreated EventType = "version.created"
    EventRolledBack     EventType = "version.rolled_back"
    EventRevisionFailed EventType = "revision.failed"
    EventProjectDeleted EventType = "project.deleted"
)

// ProjectEvent is published after a project's history changes.  It carries
// enough for downstream consumers to log or notify without querying the
// primary database.
type ProjectEvent struct {
    Type       EventType `json:"type"`
    ProjectID  string    `json:"project_id"`
    UserID     string    `json:"user_id"`
    VersionID  string    `json:"version_id,omitempty"`
    Model      string    `json:"model,omitempty"`
    Error      string    `json:"error,omitempty"`
    OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers project events.  Implementations must be safe for
// concurrent use.
type Publisher interface {
    Publish(ctx context.Context, ev ProjectEvent) error
}
