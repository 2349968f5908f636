package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/OriginalByteMe/note-taking-backend/internal/cache"
	"github.com/OriginalByteMe/note-taking-backend/internal/domain"
	"github.com/OriginalByteMe/note-taking-backend/internal/repository"

	"github.com/google/uuid"
)

var ErrCannotShareWithSelf = errors.New("cannot share a note with its owner")

// ShareService is the sharing ledger: plain CRUD over read/write grants.
// Grants gate note operations but never change version semantics.
type ShareService struct {
	shares repository.ShareRepository
	notes  repository.NoteRepository
	users  repository.UserRepository
	cache  cache.Cache
}

func NewShareService(
	shares repository.ShareRepository,
	notes repository.NoteRepository,
	users repository.UserRepository,
	c cache.Cache,
) *ShareService {
	return &ShareService{
		shares: shares,
		notes:  notes,
		users:  users,
		cache:  c,
	}
}

// Create grants a user access to a note. Owner only.
func (s *ShareService) Create(ctx context.Context, ownerID, noteID string, req *domain.CreateShareRequest) (*domain.Share, error) {
	note, err := s.ownedNote(ctx, ownerID, noteID)
	if err != nil {
		return nil, err
	}

	if req.UserID == note.OwnerID {
		return nil, ErrCannotShareWithSelf
	}

	if _, err := s.users.FindByID(ctx, req.UserID); err != nil {
		if err == repository.ErrNotFound {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	now := time.Now()
	share := &domain.Share{
		ID:         uuid.New().String(),
		NoteID:     noteID,
		OwnerID:    note.OwnerID,
		UserID:     req.UserID,
		Permission: req.Permission,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.shares.Create(ctx, share); err != nil {
		return nil, fmt.Errorf("failed to create share: %w", err)
	}

	s.invalidateShared(ctx, req.UserID)

	return share, nil
}

// List returns every grant on a note. Owner only.
func (s *ShareService) List(ctx context.Context, ownerID, noteID string) ([]*domain.Share, error) {
	if _, err := s.ownedNote(ctx, ownerID, noteID); err != nil {
		return nil, err
	}

	shares, err := s.shares.ListByNote(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shares: %w", err)
	}

	return shares, nil
}

// Update changes the permission on an existing grant. Owner only.
func (s *ShareService) Update(ctx context.Context, ownerID, noteID, userID string, req *domain.UpdateShareRequest) (*domain.Share, error) {
	if _, err := s.ownedNote(ctx, ownerID, noteID); err != nil {
		return nil, err
	}

	share, err := s.shares.Find(ctx, noteID, userID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, ErrShareNotFound
		}
		return nil, fmt.Errorf("failed to find share: %w", err)
	}

	share.Permission = req.Permission
	share.UpdatedAt = time.Now()

	if err := s.shares.Update(ctx, share); err != nil {
		return nil, fmt.Errorf("failed to update share: %w", err)
	}

	s.invalidateShared(ctx, userID)

	return share, nil
}

// Delete revokes a grant. Owner only.
func (s *ShareService) Delete(ctx context.Context, ownerID, noteID, userID string) error {
	if _, err := s.ownedNote(ctx, ownerID, noteID); err != nil {
		return err
	}

	if err := s.shares.Delete(ctx, noteID, userID); err != nil {
		if err == repository.ErrNotFound {
			return ErrShareNotFound
		}
		return fmt.Errorf("failed to delete share: %w", err)
	}

	s.invalidateShared(ctx, userID)

	return nil
}

func (s *ShareService) ownedNote(ctx context.Context, ownerID, noteID string) (*domain.Note, error) {
	note, err := s.notes.FindByID(ctx, noteID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to load note: %w", err)
	}

	if note.OwnerID != ownerID {
		return nil, ErrNoteNotFound
	}
	if note.IsDeleted {
		return nil, ErrNoteNotFound
	}

	return note, nil
}

func (s *ShareService) invalidateShared(ctx context.Context, userID string) {
	if err := s.cache.Delete(ctx, cache.SharedNotesKey(userID)); err != nil {
		log.Printf("cache delete %s: %v", cache.SharedNotesKey(userID), err)
	}
}
