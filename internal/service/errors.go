package service

import (
	"errors"

	"github.com/OriginalByteMe/note-taking-backend/internal/domain"
)

var (
	ErrNoteNotFound    = errors.New("note not found")
	ErrVersionNotFound = errors.New("version not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrShareNotFound   = errors.New("share not found")

	// ErrForbidden means the caller can see the note but lacks the required
	// permission for this operation.
	ErrForbidden = errors.New("forbidden")

	// ErrLockTimeout means the per-note lock could not be acquired within the
	// wait budget. Retryable; the caller's version may still be current.
	ErrLockTimeout = errors.New("note is busy, retry the request")

	// ErrStorageContention means the durable store rejected the conditional
	// write because another process committed first. Nothing was written;
	// retryable after a re-read.
	ErrStorageContention = errors.New("storage contention, retry the request")
)

// ConflictError is the optimistic-lock failure on update and soft delete. It
// is never swallowed; the payload carries the diagnostic server state.
type ConflictError struct {
	Conflict *domain.Conflict
}

func (e *ConflictError) Error() string {
	return "version conflict"
}

// ResolveConflictError is the second-order failure of resolve-conflict: the
// note moved again after the conflict being resolved was reported.
type ResolveConflictError struct {
	Conflict *domain.ResolutionConflict
}

func (e *ResolveConflictError) Error() string {
	return "resolution conflict"
}
