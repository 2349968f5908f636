package domain

import "time"

// NoteVersion is an immutable snapshot of a note at the moment Version was
// reached. For every note the stored versions are exactly 1..note.Version.
type NoteVersion struct {
	ID        string    `json:"id"`
	NoteID    string    `json:"note_id"`
	Version   int64     `json:"version"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`

	// RevertedFrom is set when this version was produced by a revert and
	// records which historical version was copied.
	RevertedFrom *int64 `json:"reverted_from,omitempty"`

	// ResolvedFrom and Resolution are set when this version was produced by a
	// conflict resolution; the strategy is caller-declared provenance only.
	ResolvedFrom *int64             `json:"resolved_from,omitempty"`
	Resolution   ResolutionStrategy `json:"resolution,omitempty"`
}
