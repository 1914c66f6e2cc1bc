package model

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation turn.  Messages are appended, never edited.
type Message struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"timestamp"`
}

// Version is a full snapshot of generated code, not a diff.  Model records
// which roster entry produced it.
type Version struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Code      string    `json:"code"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"timestamp"`
}
