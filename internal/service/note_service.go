package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/OriginalByteMe/note-taking-backend/internal/cache"
	"github.com/OriginalByteMe/note-taking-backend/internal/domain"
	"github.com/OriginalByteMe/note-taking-backend/internal/repository"

	"github.com/google/uuid"
)

// NoteEvents receives change notifications after successful mutations.
// Implemented by the websocket manager; nil disables notifications.
type NoteEvents interface {
	NoteChanged(note *domain.Note)
	NoteDeleted(ownerID, noteID string, version int64)
}

// CacheTTL bounds how long any stale cache entry can survive a missed
// invalidation.
type CacheTTL struct {
	Note   time.Duration
	List   time.Duration
	Search time.Duration
}

// NoteService owns the note mutation protocol: every write runs as lock →
// compare → commit current state + history snapshot → invalidate caches. The
// per-note lock keeps concurrent writers from interleaving between the
// version read and the version write.
type NoteService struct {
	notes    repository.NoteRepository
	versions repository.NoteVersionRepository
	searcher repository.NoteSearcher
	shares   repository.ShareRepository
	cache    cache.Cache
	locks    *noteLocks
	events   NoteEvents
	ttl      CacheTTL
}

func NewNoteService(
	notes repository.NoteRepository,
	versions repository.NoteVersionRepository,
	searcher repository.NoteSearcher,
	shares repository.ShareRepository,
	c cache.Cache,
	events NoteEvents,
	lockWait time.Duration,
	ttl CacheTTL,
) *NoteService {
	return &NoteService{
		notes:    notes,
		versions: versions,
		searcher: searcher,
		shares:   shares,
		cache:    c,
		locks:    newNoteLocks(lockWait),
		events:   events,
		ttl:      ttl,
	}
}

// Create always succeeds; there is no existing version to conflict with.
func (s *NoteService) Create(ctx context.Context, userID string, req *domain.CreateNoteRequest) (*domain.Note, error) {
	now := time.Now()

	note := &domain.Note{
		ID:        uuid.New().String(),
		OwnerID:   userID,
		Title:     req.Title,
		Content:   req.Content,
		Version:   1,
		IsDeleted: false,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.notes.Insert(ctx, note, newSnapshot(note, userID)); err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	s.cacheDelete(ctx, cache.OwnerNotesKey(userID))
	s.cacheDeletePrefix(ctx, cache.SearchPrefix(userID))

	if s.events != nil {
		s.events.NoteChanged(note)
	}

	return note, nil
}

// Get returns a live note the caller may read. Soft-deleted notes are hidden.
func (s *NoteService) Get(ctx context.Context, userID, noteID string) (*domain.Note, error) {
	var note domain.Note
	if s.cacheGet(ctx, cache.NoteKey(noteID), &note) {
		if err := s.authorizeRead(ctx, &note, userID); err != nil {
			return nil, err
		}
		if note.IsDeleted {
			return nil, ErrNoteNotFound
		}
		return &note, nil
	}

	loaded, err := s.load(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, loaded, userID); err != nil {
		return nil, err
	}
	if loaded.IsDeleted {
		return nil, ErrNoteNotFound
	}

	s.cacheSet(ctx, cache.NoteKey(noteID), loaded, s.ttl.Note)

	return loaded, nil
}

// List returns the caller's own live notes.
func (s *NoteService) List(ctx context.Context, userID string) ([]*domain.Note, error) {
	var notes []*domain.Note
	if s.cacheGet(ctx, cache.OwnerNotesKey(userID), &notes) {
		return notes, nil
	}

	all, err := s.notes.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}

	notes = make([]*domain.Note, 0, len(all))
	for _, n := range all {
		if !n.IsDeleted {
			notes = append(notes, n)
		}
	}

	s.cacheSet(ctx, cache.OwnerNotesKey(userID), notes, s.ttl.List)

	return notes, nil
}

// ListShared returns live notes other users have shared with the caller.
func (s *NoteService) ListShared(ctx context.Context, userID string) ([]*domain.Note, error) {
	var notes []*domain.Note
	if s.cacheGet(ctx, cache.SharedNotesKey(userID), &notes) {
		return notes, nil
	}

	grants, err := s.shares.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shares: %w", err)
	}

	ids := make([]string, 0, len(grants))
	for _, g := range grants {
		ids = append(ids, g.NoteID)
	}

	all, err := s.notes.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load shared notes: %w", err)
	}

	notes = make([]*domain.Note, 0, len(all))
	for _, n := range all {
		if !n.IsDeleted {
			notes = append(notes, n)
		}
	}

	s.cacheSet(ctx, cache.SharedNotesKey(userID), notes, s.ttl.List)

	return notes, nil
}

// Search matches the caller's own live notes against a text query.
func (s *NoteService) Search(ctx context.Context, userID, query string) ([]*domain.Note, error) {
	var notes []*domain.Note
	if s.cacheGet(ctx, cache.SearchKey(userID, query), &notes) {
		return notes, nil
	}

	notes, err := s.searcher.Search(ctx, userID, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search notes: %w", err)
	}
	if notes == nil {
		notes = []*domain.Note{}
	}

	s.cacheSet(ctx, cache.SearchKey(userID, query), notes, s.ttl.Search)

	return notes, nil
}

// ListVersions returns a note's history, newest first. It works on
// soft-deleted notes too: history stays readable until a hard delete.
func (s *NoteService) ListVersions(ctx context.Context, userID, noteID string) ([]*domain.NoteVersion, error) {
	note, err := s.load(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, note, userID); err != nil {
		return nil, err
	}

	var versions []*domain.NoteVersion
	if s.cacheGet(ctx, cache.NoteVersionsKey(noteID), &versions) {
		return versions, nil
	}

	versions, err = s.versions.Versions(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	s.cacheSet(ctx, cache.NoteVersionsKey(noteID), versions, s.ttl.Note)

	return versions, nil
}

// Update commits new content if the caller's expected version matches the
// current one, otherwise reports a conflict with full server state and no
// write.
func (s *NoteService) Update(ctx context.Context, userID, noteID string, req *domain.UpdateNoteRequest) (*domain.Note, error) {
	if err := s.locks.Acquire(ctx, noteID); err != nil {
		return nil, err
	}
	defer s.locks.Release(noteID)

	note, err := s.load(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeWrite(ctx, note, userID); err != nil {
		return nil, err
	}
	if note.IsDeleted {
		return nil, ErrNoteNotFound
	}

	if req.ExpectedVersion != note.Version {
		return nil, &ConflictError{Conflict: s.describeConflict(ctx, note, req.ExpectedVersion)}
	}

	note.Title = req.Title
	note.Content = req.Content
	note.Version++
	note.UpdatedAt = time.Now()

	if err := s.commit(ctx, note, newSnapshot(note, userID)); err != nil {
		return nil, err
	}

	s.invalidate(ctx, note)

	if s.events != nil {
		s.events.NoteChanged(note)
	}

	return note, nil
}

// SoftDelete hides the note from normal reads while keeping its row and
// history. Same optimistic-lock contract as Update; the conflict payload is
// version-only since there is no content for the client to merge.
func (s *NoteService) SoftDelete(ctx context.Context, userID, noteID string, expectedVersion int64) error {
	if err := s.locks.Acquire(ctx, noteID); err != nil {
		return err
	}
	defer s.locks.Release(noteID)

	note, err := s.load(ctx, noteID)
	if err != nil {
		return err
	}
	if err := s.authorizeWrite(ctx, note, userID); err != nil {
		return err
	}
	if note.IsDeleted {
		return ErrNoteNotFound
	}

	if expectedVersion != note.Version {
		return &ConflictError{Conflict: &domain.Conflict{
			NoteID:        note.ID,
			ClientVersion: expectedVersion,
			ServerVersion: note.Version,
		}}
	}

	note.IsDeleted = true
	note.Version++
	note.UpdatedAt = time.Now()

	if err := s.commit(ctx, note, newSnapshot(note, userID)); err != nil {
		return err
	}

	s.invalidate(ctx, note)

	if s.events != nil {
		s.events.NoteDeleted(note.OwnerID, note.ID, note.Version)
	}

	return nil
}

// HardDelete permanently destroys the note, its whole history and its share
// grants. No version check: callers accept the loss of concurrent edits.
// Owner only.
func (s *NoteService) HardDelete(ctx context.Context, userID, noteID string) error {
	if err := s.locks.Acquire(ctx, noteID); err != nil {
		return err
	}
	defer s.locks.Release(noteID)

	note, err := s.load(ctx, noteID)
	if err != nil {
		return err
	}
	if note.OwnerID != userID {
		if err := s.authorizeRead(ctx, note, userID); err != nil {
			return err
		}
		return ErrForbidden
	}

	if err := s.notes.Purge(ctx, noteID); err != nil {
		if err == repository.ErrNotFound {
			return ErrNoteNotFound
		}
		if err == repository.ErrStaleWrite {
			return ErrStorageContention
		}
		return fmt.Errorf("failed to purge note: %w", err)
	}

	if err := s.shares.DeleteByNote(ctx, noteID); err != nil {
		log.Printf("failed to remove shares for purged note %s: %v", noteID, err)
	}

	s.invalidate(ctx, note)

	if s.events != nil {
		s.events.NoteDeleted(note.OwnerID, note.ID, note.Version)
	}

	return nil
}

// Revert copies a historical snapshot into the current state as a new
// version. It takes no expected version: it reverts from whatever the current
// state is, under the note lock, and records provenance on the new row.
func (s *NoteService) Revert(ctx context.Context, userID, noteID string, targetVersion int64) (*domain.Note, error) {
	if err := s.locks.Acquire(ctx, noteID); err != nil {
		return nil, err
	}
	defer s.locks.Release(noteID)

	note, err := s.load(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeWrite(ctx, note, userID); err != nil {
		return nil, err
	}
	if note.IsDeleted {
		return nil, ErrNoteNotFound
	}

	target, err := s.versions.Version(ctx, noteID, targetVersion)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, ErrVersionNotFound
		}
		return nil, fmt.Errorf("failed to load target version: %w", err)
	}

	note.Title = target.Title
	note.Content = target.Content
	note.Version++
	note.UpdatedAt = time.Now()

	snapshot := newSnapshot(note, userID)
	snapshot.RevertedFrom = &target.Version

	if err := s.commit(ctx, note, snapshot); err != nil {
		return nil, err
	}

	s.invalidate(ctx, note)

	if s.events != nil {
		s.events.NoteChanged(note)
	}

	return note, nil
}

// Resolve commits client-resolved content against the version at which the
// conflict was reported. If the note has moved again since, it fails with a
// second-order conflict and no write. The strategy is recorded as provenance;
// the server never computes the merge.
func (s *NoteService) Resolve(ctx context.Context, userID, noteID string, req *domain.ResolveNoteRequest) (*domain.Note, error) {
	if err := s.locks.Acquire(ctx, noteID); err != nil {
		return nil, err
	}
	defer s.locks.Release(noteID)

	note, err := s.load(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeWrite(ctx, note, userID); err != nil {
		return nil, err
	}
	if note.IsDeleted {
		return nil, ErrNoteNotFound
	}

	if note.Version != req.ServerVersion {
		return nil, &ResolveConflictError{Conflict: &domain.ResolutionConflict{
			NoteID:                     note.ID,
			CurrentVersion:             note.Version,
			AttemptedResolutionVersion: req.ServerVersion + 1,
		}}
	}

	note.Title = req.Title
	note.Content = req.Content
	note.Version = req.ServerVersion + 1
	note.UpdatedAt = time.Now()

	snapshot := newSnapshot(note, userID)
	snapshot.ResolvedFrom = &req.ServerVersion
	snapshot.Resolution = req.Strategy

	if err := s.commit(ctx, note, snapshot); err != nil {
		return nil, err
	}

	s.invalidate(ctx, note)

	if s.events != nil {
		s.events.NoteChanged(note)
	}

	return note, nil
}

func newSnapshot(note *domain.Note, createdBy string) *domain.NoteVersion {
	return &domain.NoteVersion{
		ID:        uuid.New().String(),
		NoteID:    note.ID,
		Version:   note.Version,
		Title:     note.Title,
		Content:   note.Content,
		CreatedBy: createdBy,
		CreatedAt: note.UpdatedAt,
	}
}

func (s *NoteService) load(ctx context.Context, noteID string) (*domain.Note, error) {
	note, err := s.notes.FindByID(ctx, noteID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to load note: %w", err)
	}
	return note, nil
}

func (s *NoteService) commit(ctx context.Context, note *domain.Note, snapshot *domain.NoteVersion) error {
	if err := s.notes.Update(ctx, note, snapshot); err != nil {
		if err == repository.ErrStaleWrite {
			return ErrStorageContention
		}
		if err == repository.ErrNotFound {
			return ErrNoteNotFound
		}
		return fmt.Errorf("failed to commit note: %w", err)
	}
	return nil
}

// authorizeRead hides notes the caller has no visibility into behind
// ErrNoteNotFound rather than ErrForbidden.
func (s *NoteService) authorizeRead(ctx context.Context, note *domain.Note, userID string) error {
	if note.OwnerID == userID {
		return nil
	}

	_, err := s.shares.Find(ctx, note.ID, userID)
	if err == repository.ErrNotFound {
		return ErrNoteNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check share: %w", err)
	}

	return nil
}

func (s *NoteService) authorizeWrite(ctx context.Context, note *domain.Note, userID string) error {
	if note.OwnerID == userID {
		return nil
	}

	share, err := s.shares.Find(ctx, note.ID, userID)
	if err == repository.ErrNotFound {
		return ErrNoteNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check share: %w", err)
	}
	if share.Permission != domain.PermissionWrite {
		return ErrForbidden
	}

	return nil
}

// describeConflict assembles the diagnostic payload for a rejected write:
// both versions, the current server content, and whoever wrote the current
// version.
func (s *NoteService) describeConflict(ctx context.Context, note *domain.Note, clientVersion int64) *domain.Conflict {
	updatedAt := note.UpdatedAt

	conflict := &domain.Conflict{
		NoteID:             note.ID,
		ClientVersion:      clientVersion,
		ServerVersion:      note.Version,
		ServerTitle:        note.Title,
		ServerContent:      note.Content,
		ServerUpdatedAt:    &updatedAt,
		ResolutionEndpoint: fmt.Sprintf("/api/v1/notes/%s/resolve", note.ID),
	}

	current, err := s.versions.Version(ctx, note.ID, note.Version)
	if err != nil {
		log.Printf("failed to look up last writer of note %s: %v", note.ID, err)
	} else {
		conflict.LastModifiedBy = current.CreatedBy
	}

	return conflict
}

// invalidate clears every cache scope a committed mutation touched. Runs
// after commit and before returning so the writer's next read cannot observe
// stale data; failures are logged and swallowed, TTL is the backstop.
func (s *NoteService) invalidate(ctx context.Context, note *domain.Note) {
	keys := []string{
		cache.NoteKey(note.ID),
		cache.NoteVersionsKey(note.ID),
		cache.OwnerNotesKey(note.OwnerID),
	}

	shares, err := s.shares.ListByNote(ctx, note.ID)
	if err != nil {
		log.Printf("failed to list shares for invalidation of note %s: %v", note.ID, err)
	} else {
		for _, share := range shares {
			keys = append(keys, cache.SharedNotesKey(share.UserID))
		}
	}

	s.cacheDelete(ctx, keys...)
	s.cacheDeletePrefix(ctx, cache.SearchPrefix(note.OwnerID))
}

func (s *NoteService) cacheGet(ctx context.Context, key string, v interface{}) bool {
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if err != cache.ErrMiss {
			log.Printf("cache get %s: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Printf("cache decode %s: %v", key, err)
		return false
	}
	return true
}

func (s *NoteService) cacheSet(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("cache encode %s: %v", key, err)
		return
	}
	if err := s.cache.Set(ctx, key, data, ttl); err != nil {
		log.Printf("cache set %s: %v", key, err)
	}
}

func (s *NoteService) cacheDelete(ctx context.Context, keys ...string) {
	if err := s.cache.Delete(ctx, keys...); err != nil {
		log.Printf("cache delete %v: %v", keys, err)
	}
}

func (s *NoteService) cacheDeletePrefix(ctx context.Context, prefix string) {
	if err := s.cache.DeletePrefix(ctx, prefix); err != nil {
		log.Printf("cache delete prefix %s: %v", prefix, err)
	}
}
