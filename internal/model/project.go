package model

import "time"

// Project is one website being built through prompts.  Name and
// InitialPrompt never change after creation.  CurrentVersionID, when set,
// always names one of the project's versions; CurrentCode is nil until the
// first successful generation.
//
// Fields:
//  ID               – projects.id (uuid).
//  UserID           – owner, as supplied by the identity resolver.
//  Name             – display name derived from the first prompt.
//  InitialPrompt    – the prompt the project was created with.
//  CurrentCode      – live document; may also be edited by a manual save.
//  CurrentVersionID – projects.current_version_index.
//  IsPublished      – public visibility toggle, independent of versions.
type Project struct {
	ID               string    `json:"id"`
	UserID           string    `json:"userId"`
	Name             string    `json:"name"`
	InitialPrompt    string    `json:"initial_prompt"`
	CurrentCode      *string   `json:"current_code"`
	CurrentVersionID *string   `json:"current_version_index"`
	IsPublished      bool      `json:"isPublished"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
	Conversation     []Message `json:"conversation"`
	Versions         []Version `json:"versions"`
}
