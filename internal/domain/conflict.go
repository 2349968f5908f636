package domain

import "time"

type ResolutionStrategy string

const (
	ResolutionClientWins ResolutionStrategy = "client-wins"
	ResolutionServerWins ResolutionStrategy = "server-wins"
	ResolutionMerge      ResolutionStrategy = "merge"
)

// Conflict is returned when a caller's expected version does not match the
// server's current version. It carries enough server state for the client to
// render a three-way diff without a follow-up read. Delete conflicts carry
// only the version pair.
type Conflict struct {
	NoteID             string     `json:"note_id"`
	ClientVersion      int64      `json:"client_version"`
	ServerVersion      int64      `json:"server_version"`
	ServerTitle        string     `json:"server_title,omitempty"`
	ServerContent      string     `json:"server_content,omitempty"`
	ServerUpdatedAt    *time.Time `json:"server_updated_at,omitempty"`
	LastModifiedBy     string     `json:"last_modified_by,omitempty"`
	ResolutionEndpoint string     `json:"resolution_endpoint,omitempty"`
}

// ResolutionConflict is the second-order conflict: the note moved again after
// the conflict the caller is trying to resolve was reported.
type ResolutionConflict struct {
	NoteID                     string `json:"note_id"`
	CurrentVersion             int64  `json:"current_version"`
	AttemptedResolutionVersion int64  `json:"attempted_resolution_version"`
}
