package domain

import "time"

// Note is the current state of a note. Version starts at 1 and increases by
// exactly 1 on every accepted mutation; a rejected mutation never touches it.
type Note struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Version   int64     `json:"version"`
	IsDeleted bool      `json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateNoteRequest struct {
	Title   string `json:"title" validate:"required,max=255"`
	Content string `json:"content"`
}

type UpdateNoteRequest struct {
	Title           string `json:"title" validate:"required,max=255"`
	Content         string `json:"content"`
	ExpectedVersion int64  `json:"expected_version" validate:"required,min=1"`
}

type DeleteNoteRequest struct {
	ExpectedVersion int64 `json:"expected_version" validate:"required,min=1"`
}

type RevertNoteRequest struct {
	TargetVersion int64 `json:"target_version" validate:"required,min=1"`
}

type ResolveNoteRequest struct {
	ServerVersion int64              `json:"server_version" validate:"required,min=1"`
	Title         string             `json:"title" validate:"required,max=255"`
	Content       string             `json:"content"`
	Strategy      ResolutionStrategy `json:"strategy" validate:"required,oneof=client-wins server-wins merge"`
}
