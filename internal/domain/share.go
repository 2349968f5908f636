package domain

import "time"

type SharePermission string

const (
	PermissionRead  SharePermission = "read"
	PermissionWrite SharePermission = "write"
)

// Share grants another user read or write access to a note. Sharing does not
// change version semantics; a write grant follows the same expected-version
// contract as the owner.
type Share struct {
	ID         string          `json:"id"`
	NoteID     string          `json:"note_id"`
	OwnerID    string          `json:"owner_id"`
	UserID     string          `json:"user_id"`
	Permission SharePermission `json:"permission"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type CreateShareRequest struct {
	UserID     string          `json:"user_id" validate:"required"`
	Permission SharePermission `json:"permission" validate:"required,oneof=read write"`
}

type UpdateShareRequest struct {
	Permission SharePermission `json:"permission" validate:"required,oneof=read write"`
}
