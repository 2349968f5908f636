package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/OriginalByteMe/note-taking-backend/internal/cache"
	"github.com/OriginalByteMe/note-taking-backend/internal/domain"
	"github.com/OriginalByteMe/note-taking-backend/internal/repository"
)

type noteRecord struct {
	note    domain.Note
	history []domain.NoteVersion
}

// mockNoteStore implements NoteRepository, NoteVersionRepository and
// NoteSearcher over a map, with the same conditional-write contract as the
// real store: a commit whose snapshot does not continue the stored version
// fails with ErrStaleWrite and writes nothing.
type mockNoteStore struct {
	mu      sync.Mutex
	records map[string]*noteRecord
}

func newMockNoteStore() *mockNoteStore {
	return &mockNoteStore{
		records: make(map[string]*noteRecord),
	}
}

func (m *mockNoteStore) Insert(_ context.Context, note *domain.Note, initial *domain.NoteVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[note.ID] = &noteRecord{
		note:    *note,
		history: []domain.NoteVersion{*initial},
	}
	return nil
}

func (m *mockNoteStore) FindByID(_ context.Context, id string) (*domain.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	note := rec.note
	return &note, nil
}

func (m *mockNoteStore) FindByIDs(ctx context.Context, ids []string) ([]*domain.Note, error) {
	notes := make([]*domain.Note, 0, len(ids))
	for _, id := range ids {
		note, err := m.FindByID(ctx, id)
		if err == repository.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, nil
}

func (m *mockNoteStore) ListByOwner(_ context.Context, ownerID string) ([]*domain.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var notes []*domain.Note
	for _, rec := range m.records {
		if rec.note.OwnerID == ownerID {
			note := rec.note
			notes = append(notes, &note)
		}
	}
	return notes, nil
}

func (m *mockNoteStore) Update(_ context.Context, note *domain.Note, snapshot *domain.NoteVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[note.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if rec.note.Version != snapshot.Version-1 {
		return repository.ErrStaleWrite
	}

	rec.note = *note
	rec.history = append(rec.history, *snapshot)
	return nil
}

func (m *mockNoteStore) Purge(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.records, id)
	return nil
}

func (m *mockNoteStore) Versions(_ context.Context, noteID string) ([]*domain.NoteVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[noteID]
	if !ok {
		return nil, repository.ErrNotFound
	}

	versions := make([]*domain.NoteVersion, len(rec.history))
	for i := range rec.history {
		v := rec.history[len(rec.history)-1-i]
		versions[i] = &v
	}
	return versions, nil
}

func (m *mockNoteStore) Version(_ context.Context, noteID string, version int64) (*domain.NoteVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[noteID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	for i := range rec.history {
		if rec.history[i].Version == version {
			v := rec.history[i]
			return &v, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockNoteStore) Search(_ context.Context, ownerID, query string) ([]*domain.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := strings.ToLower(query)
	var notes []*domain.Note
	for _, rec := range m.records {
		if rec.note.OwnerID != ownerID || rec.note.IsDeleted {
			continue
		}
		if strings.Contains(strings.ToLower(rec.note.Title), q) ||
			strings.Contains(strings.ToLower(rec.note.Content), q) {
			note := rec.note
			notes = append(notes, &note)
		}
	}
	return notes, nil
}

type mockShareRepo struct {
	mu     sync.Mutex
	shares map[string]*domain.Share
}

func newMockShareRepo() *mockShareRepo {
	return &mockShareRepo{
		shares: make(map[string]*domain.Share),
	}
}

func shareKey(noteID, userID string) string {
	return noteID + ":" + userID
}

func (m *mockShareRepo) Create(_ context.Context, share *domain.Share) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shares[shareKey(share.NoteID, share.UserID)] = share
	return nil
}

func (m *mockShareRepo) Find(_ context.Context, noteID, userID string) (*domain.Share, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.shares[shareKey(noteID, userID)]; ok {
		return s, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockShareRepo) ListByNote(_ context.Context, noteID string) ([]*domain.Share, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var shares []*domain.Share
	for _, s := range m.shares {
		if s.NoteID == noteID {
			shares = append(shares, s)
		}
	}
	return shares, nil
}

func (m *mockShareRepo) ListByUser(_ context.Context, userID string) ([]*domain.Share, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var shares []*domain.Share
	for _, s := range m.shares {
		if s.UserID == userID {
			shares = append(shares, s)
		}
	}
	return shares, nil
}

func (m *mockShareRepo) Update(_ context.Context, share *domain.Share) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shares[shareKey(share.NoteID, share.UserID)]; !ok {
		return repository.ErrNotFound
	}
	m.shares[shareKey(share.NoteID, share.UserID)] = share
	return nil
}

func (m *mockShareRepo) Delete(_ context.Context, noteID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shares[shareKey(noteID, userID)]; !ok {
		return repository.ErrNotFound
	}
	delete(m.shares, shareKey(noteID, userID))
	return nil
}

func (m *mockShareRepo) DeleteByNote(_ context.Context, noteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, s := range m.shares {
		if s.NoteID == noteID {
			delete(m.shares, key)
		}
	}
	return nil
}

func (m *mockShareRepo) grant(noteID, ownerID, userID string, perm domain.SharePermission) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shares[shareKey(noteID, userID)] = &domain.Share{
		ID:         shareKey(noteID, userID),
		NoteID:     noteID,
		OwnerID:    ownerID,
		UserID:     userID,
		Permission: perm,
	}
}

func newTestNoteService() (*NoteService, *mockNoteStore, *mockShareRepo) {
	store := newMockNoteStore()
	shares := newMockShareRepo()
	svc := NewNoteService(store, store, store, shares, cache.NewMemory(), nil, time.Second, CacheTTL{
		Note:   time.Minute,
		List:   time.Minute,
		Search: time.Minute,
	})
	return svc, store, shares
}

func TestNoteService_Create(t *testing.T) {
	svc, store, _ := newTestNoteService()
	ctx := context.Background()

	note, err := svc.Create(ctx, "user1", &domain.CreateNoteRequest{Title: "A", Content: "x"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if note.ID == "" {
		t.Error("expected note ID to be generated")
	}
	if note.Version != 1 {
		t.Errorf("expected version 1, got %d", note.Version)
	}
	if note.IsDeleted {
		t.Error("expected new note to be live")
	}

	versions, err := store.Versions(ctx, note.ID)
	if err != nil {
		t.Fatalf("expected history, got %v", err)
	}
	if len(versions) != 1 || versions[0].Version != 1 {
		t.Errorf("expected exactly history row 1, got %+v", versions)
	}
	if versions[0].CreatedBy != "user1" {
		t.Errorf("expected created_by user1, got %s", versions[0].CreatedBy)
	}
}

func TestNoteService_UpdateSuccess(t *testing.T) {
	svc, store, _ := newTestNoteService()
	ctx := context.Background()

	note, _ := svc.Create(ctx, "user1", &domain.CreateNoteRequest{Title: "A", Content: "x"})

	updated, err := svc.Update(ctx, "user1", note.ID, &domain.UpdateNoteRequest{
		Title:           "B",
		Content:         "y",
		ExpectedVersion: 1,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if updated.Version != 2 {
		t.Errorf("expected version 2, got %d", updated.Version)
	}
	if updated.Title != "B" || updated.Content != "y" {
		t.Errorf("unexpected content: %+v", updated)
	}

	versions, _ := store.Versions(ctx, note.ID)
	if len(versions) != 2 {
		t.Fatalf("expected 2 history rows, got %d", len(versions))
	}
	if versions[0].Version != 2 || versions[0].Title != "B" {
		t.Errorf("expected newest row to snapshot version 2, got %+v", versions[0])
	}
}

func TestNoteService_UpdateConflictPayload(t *testing.T) {
	svc, store, shares := newTestNoteService()
	ctx := context.Background()

	note, _ := svc.Create(ctx, "user-a", &domain.CreateNoteRequest{Title: "A", Content: "x"})
	shares.grant(note.ID, "user-a", "user-b", domain.PermissionWrite)

	for i, title := range []string{"v2", "v3", "v4"} {
		if _, err := svc.Update(ctx, "user-a", note.ID, &domain.UpdateNoteRequest{
			Title:           title,
			Content:         "x",
			ExpectedVersion: int64(i + 1),
		}); err != nil {
			t.Fatalf("setup update failed: %v", err)
		}
	}
	if _, err := svc.Update(ctx, "user-b", note.ID, &domain.UpdateNoteRequest{
		Title:           "v5",
		Content:         "z",
		ExpectedVersion: 4,
	}); err != nil {
		t.Fatalf("setup update failed: %v", err)
	}

	_, err := svc.Update(ctx, "user-a", note.ID, &domain.UpdateNoteRequest{
		Title:           "stale",
		Content:         "stale",
		ExpectedVersion: 3,
	})

	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}

	c := conflictErr.Conflict
	if c.ClientVersion != 3 {
		t.Errorf("expected client version 3, got %d", c.ClientVersion)
	}
	if c.ServerVersion != 5 {
		t.Errorf("expected server version 5, got %d", c.ServerVersion)
	}
	if c.ServerTitle != "v5" || c.ServerContent != "z" {
		t.Errorf("expected current server content in payload, got %+v", c)
	}
	if c.LastModifiedBy != "user-b" {
		t.Errorf("expected last writer user-b, got %q", c.LastModifiedBy)
	}
	if c.ServerUpdatedAt == nil {
		t.Error("expected server updated_at in payload")
	}
	if c.ResolutionEndpoint == "" {
		t.Error("expected resolution endpoint hint")
	}

	// The rejected write must leave no trace.
	current, _ := store.FindByID(ctx, note.ID)
	if current.Version != 5 || current.Title != "v5" {
		t.Errorf("rejected write mutated the note: %+v", current)
	}
	versions, _ := store.Versions(ctx, note.ID)
	if len(versions) != 5 {
		t.Errorf("rejected write changed history length: %d", len(versions))
	}
}

func TestNoteService_VersionMonotonicity(t *testing.T) {
	svc, store, _ := newTestNoteService()
	ctx := context.Background()

	note, _ := svc.Create(ctx, "user1", &domain.CreateNoteRequest{Title: "t1", Content: "c1"})

	for v := int64(1); v < 4; v++ {
		if _, err := svc.Update(ctx, "user1", note.ID, &domain.UpdateNoteRequest{
			Title:           "t",
			Content:         "c",
			ExpectedVersion: v,
		}); err != nil {
			t.Fatalf("update at version %d failed: %v", v, err)
		}
	}
	if _, err := svc.Revert(ctx, "user1", note.ID, 1); err != nil {
		t.Fatalf("revert failed: %v", err)
	}

	current, _ := store.FindByID(ctx, note.ID)
	if current.Version != 5 {
		t.Fatalf("expected version 5, got %d", current.Version)
	}

	versions, _ := store.Versions(ctx, note.ID)
	if len(versions) != 5 {
		t.Fatalf("expected 5 history rows, got %d", len(versions))
	}
	// Newest first, strictly decreasing by 1, no gaps.
	for i, v := range versions {
		if want := int64(5 - i); v.Version != want {
			t.Errorf("expected version %d at index %d, got %d", want, i, v.Version)
		}
	}
}

func TestNoteService_ConcurrentUpdates(t *testing.T) {
	svc, store, _ := newTestNoteService()
	ctx := context.Background()

	note, _ := svc.Create(ctx, "user1", &domain.CreateNoteRequest{Title: "A", Content: "x"})

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for _, title := range []string{"B", "C"} {
		wg.Add(1)
		go func(title string) {
			defer wg.Done()
			_, err := svc.Update(ctx, "user1", note.ID, &domain.UpdateNoteRequest{
				Title:           title,
				Content:         "x",
				ExpectedVersion: 1,
			})
			results <- err
		}(title)
	}
	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		switch {
		case err == nil:
			successes++
		default:
			var conflictErr *ConflictError
			if !errors.As(err, &conflictErr) {
				t.Fatalf("unexpected error class: %v", err)
			}
			conflicts++
		}
	}

	if successes != 1 || conflicts != 1 {
		t.Errorf("expected exactly one success and one conflict, got %d/%d", successes, conflicts)
	}

	current, _ := store.FindByID(ctx, note.ID)
	if current.Version != 2 {
		t.Errorf("expected version 2 after the race, got %d", current.Version)
	}
}

func TestNoteService_SoftDelete(t *testing.T) {
	svc, _, _ := newTestNoteService()
	ctx := context.Background()

	note, _ := svc.Create(ctx, "user1", &domain.CreateNoteRequest{Title: "A", Content: "x"})

	// Stale expected version: version-only conflict, no content in payload.
	err := svc.SoftDelete(ctx, "user1", note.ID, 99)
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflictErr.Conflict.ClientVersion != 99 || conflictErr.Conflict.ServerVersion != 1 {
		t.Errorf("unexpected conflict payload: %+v", conflictErr.Conflict)
	}
	if conflictErr.Conflict.ServerTitle != "" || conflictErr.Conflict.ServerContent != "" {
		t.Errorf("delete conflict should be version-only, got %+v", conflictErr.Conflict)
	}

	if err := svc.SoftDelete(ctx, "user1", note.ID, 1); err != nil {
		t.Fatalf("expected soft delete to succeed, got %v", err)
	}

	if _, err := svc.Get(ctx, "user1", note.ID); err != ErrNoteNotFound {
		t.Errorf("expected deleted note to be hidden, got %v", err)
	}

	list, _ := svc.List(ctx, "user1")
	if len(list) != 0 {
		t.Errorf("expected deleted note excluded from list, got %d", len(list))
	}

	// History survives the soft delete, including the deletion snapshot.
	versions, err := svc.ListVersions(ctx, "user1", note.ID)
	if err != nil {
		t.Fatalf("expected history to stay readable, got %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("expected 2 history rows, got %d", len(versions))
	}
	if versions[0].Version != 2 || versions[0].Title != "A" {
		t.Errorf("expected deletion snapshot to preserve content, got %+v", versions[0])
	}
}

func TestNoteService_HardDelete(t *testing.T) {
	svc, store, shares := newTestNoteService()
	ctx := context.Background()

	note, _ := svc.Create(ctx, "user1", &domain.CreateNoteRequest{Title: "A", Content: "x"})
	shares.grant(note.ID, "user1", "user2", domain.PermissionWrite)

	if err := svc.HardDelete(ctx, "user2", note.ID); err != ErrForbidden {
		t.Errorf("expected ErrForbidden for non-owner, got %v", err)
	}
	if err := svc.HardDelete(ctx, "stranger", note.ID); err != ErrNoteNotFound {
		t.Errorf("expected ErrNoteNotFound for stranger, got %v", err)
	}

	if err := svc.HardDelete(ctx, "user1", note.ID); err != nil {
		t.Fatalf("expected hard delete to succeed, got %v", err)
	}

	if _, err := store.FindByID(ctx, note.ID); err != repository.ErrNotFound {
		t.Errorf("expected note row gone, got %v", err)
	}
	if _, err := store.Versions(ctx, note.ID); err != repository.ErrNotFound {
		t.Errorf("expected history gone, got %v", err)
	}
	if remaining, _ := shares.ListByNote(ctx, note.ID); len(remaining) != 0 {
		t.Errorf("expected shares removed, got %d", len(remaining))
	}

	if _, err := svc.ListVersions(ctx, "user1", note.ID); err != ErrNoteNotFound {
		t.Errorf("expected history unreachable after purge, got %v", err)
	}
}

func TestNoteService_RevertProvenance(t *testing.T) {
	svc, store, _ := newTestNoteService()
	ctx := context.Background()

	note, _ := svc.Create(ctx, "user1", &domain.CreateNoteRequest{Title: "A", Content: "x"})
	svc.Update(ctx, "user1", note.ID, &domain.UpdateNoteRequest{Title: "B", Content: "y", ExpectedVersion: 1})
	svc.Update(ctx, "user1", note.ID, &domain.UpdateNoteRequest{Title: "C", Content: "z", ExpectedVersion: 2})

	reverted, err := svc.Revert(ctx, "user1", note.ID, 1)
	if err != nil {
		t.Fatalf("expected revert to succeed, got %v", err)
	}

	if reverted.Version != 4 {
		t.Errorf("expected version 4, got %d", reverted.Version)
	}
	if reverted.Title != "A" || reverted.Content != "x" {
		t.Errorf("expected version 1 content, got %+v", reverted)
	}

	versions, _ := store.Versions(ctx, note.ID)
	if len(versions) != 4 {
		t.Fatalf("expected 4 history rows, got %d", len(versions))
	}
	newest := versions[0]
	if newest.RevertedFrom == nil || *newest.RevertedFrom != 1 {
		t.Errorf("expected reverted_from=1, got %+v", newest.RevertedFrom)
	}
	// Earlier rows stay untouched.
	for i, want := range []string{"C", "B", "A"} {
		if versions[i+1].Title != want {
			t.Errorf("history row %d changed: got %s, want %s", i+1, versions[i+1].Title, want)
		}
	}
}

func TestNoteService_RevertMissingVersion(t *testing.T) {
	svc, _, _ := newTestNoteService()
	ctx := context.Background()

	note, _ := svc.Create(ctx, "user1", &domain.CreateNoteRequest{Title: "A", Content: "x"})

	if _, err := svc.Revert(ctx, "user1", note.ID, 7); err != ErrVersionNotFound {
		t.Errorf("expected ErrVersionNotFound, got %v", err)
	}
}

func TestNoteService_Resolve(t *testing.T) {
	svc, store, _ := newTestNoteService()
	ctx := context.Background()

	note, _ := svc.Create(ctx, "user1", &domain.CreateNoteRequest{Title: "A", Content: "x"})
	svc.Update(ctx, "user1", note.ID, &domain.UpdateNoteRequest{Title: "B", Content: "y", ExpectedVersion: 1})

	// Resolving against a version the note has already moved past fails
	// with the second-order conflict and writes nothing.
	_, err := svc.Resolve(ctx, "user1", note.ID, &domain.ResolveNoteRequest{
		ServerVersion: 1,
		Title:         "merged",
		Content:       "m",
		Strategy:      domain.ResolutionMerge,
	})
	var resolveErr *ResolveConflictError
	if !errors.As(err, &resolveErr) {
		t.Fatalf("expected ResolveConflictError, got %v", err)
	}
	if resolveErr.Conflict.CurrentVersion != 2 || resolveErr.Conflict.AttemptedResolutionVersion != 2 {
		t.Errorf("unexpected resolution conflict payload: %+v", resolveErr.Conflict)
	}

	resolved, err := svc.Resolve(ctx, "user1", note.ID, &domain.ResolveNoteRequest{
		ServerVersion: 2,
		Title:         "merged",
		Content:       "m",
		Strategy:      domain.ResolutionMerge,
	})
	if err != nil {
		t.Fatalf("expected resolve to succeed, got %v", err)
	}
	if resolved.Version != 3 || resolved.Title != "merged" {
		t.Errorf("unexpected resolved note: %+v", resolved)
	}

	versions, _ := store.Versions(ctx, note.ID)
	newest := versions[0]
	if newest.ResolvedFrom == nil || *newest.ResolvedFrom != 2 {
		t.Errorf("expected resolved_from=2, got %+v", newest.ResolvedFrom)
	}
	if newest.Resolution != domain.ResolutionMerge {
		t.Errorf("expected merge strategy recorded, got %s", newest.Resolution)
	}
}

func TestNoteService_CacheInvalidation(t *testing.T) {
	svc, _, _ := newTestNoteService()
	ctx := context.Background()

	note, _ := svc.Create(ctx, "user1", &domain.CreateNoteRequest{Title: "A", Content: "x"})

	// Warm every cache scope the mutation will touch.
	svc.Get(ctx, "user1", note.ID)
	svc.List(ctx, "user1")
	svc.ListVersions(ctx, "user1", note.ID)

	if _, err := svc.Update(ctx, "user1", note.ID, &domain.UpdateNoteRequest{
		Title:           "B",
		Content:         "y",
		ExpectedVersion: 1,
	}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	got, err := svc.Get(ctx, "user1", note.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Title != "B" || got.Version != 2 {
		t.Errorf("read served stale note after mutation: %+v", got)
	}

	list, _ := svc.List(ctx, "user1")
	if len(list) != 1 || list[0].Title != "B" {
		t.Errorf("list served stale collection after mutation: %+v", list)
	}

	versions, _ := svc.ListVersions(ctx, "user1", note.ID)
	if len(versions) != 2 {
		t.Errorf("version list served stale history after mutation: %d rows", len(versions))
	}
}

func TestNoteService_SearchInvalidation(t *testing.T) {
	svc, _, _ := newTestNoteService()
	ctx := context.Background()

	note, _ := svc.Create(ctx, "user1", &domain.CreateNoteRequest{Title: "alpha", Content: "x"})

	results, _ := svc.Search(ctx, "user1", "alpha")
	if len(results) != 1 {
		t.Fatalf("expected search hit, got %d", len(results))
	}

	if err := svc.SoftDelete(ctx, "user1", note.ID, 1); err != nil {
		t.Fatalf("soft delete failed: %v", err)
	}

	results, _ = svc.Search(ctx, "user1", "alpha")
	if len(results) != 0 {
		t.Errorf("deleted note still in search results: %+v", results)
	}
}

func TestNoteService_SharePermissions(t *testing.T) {
	svc, _, shares := newTestNoteService()
	ctx := context.Background()

	note, _ := svc.Create(ctx, "owner", &domain.CreateNoteRequest{Title: "A", Content: "x"})
	shares.grant(note.ID, "owner", "reader", domain.PermissionRead)
	shares.grant(note.ID, "owner", "writer", domain.PermissionWrite)

	if _, err := svc.Get(ctx, "reader", note.ID); err != nil {
		t.Errorf("expected reader to read, got %v", err)
	}
	if _, err := svc.Get(ctx, "stranger", note.ID); err != ErrNoteNotFound {
		t.Errorf("expected stranger to see nothing, got %v", err)
	}

	_, err := svc.Update(ctx, "reader", note.ID, &domain.UpdateNoteRequest{
		Title:           "nope",
		Content:         "x",
		ExpectedVersion: 1,
	})
	if err != ErrForbidden {
		t.Errorf("expected ErrForbidden for read-only grant, got %v", err)
	}

	updated, err := svc.Update(ctx, "writer", note.ID, &domain.UpdateNoteRequest{
		Title:           "by writer",
		Content:         "x",
		ExpectedVersion: 1,
	})
	if err != nil {
		t.Fatalf("expected write grant to update, got %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("expected version 2, got %d", updated.Version)
	}
}

func TestNoteService_EndToEndConflictFlow(t *testing.T) {
	svc, _, _ := newTestNoteService()
	ctx := context.Background()

	note, err := svc.Create(ctx, "user1", &domain.CreateNoteRequest{Title: "A", Content: "x"})
	if err != nil || note.Version != 1 {
		t.Fatalf("create: %v (version %d)", err, note.Version)
	}

	first, err := svc.Update(ctx, "user1", note.ID, &domain.UpdateNoteRequest{
		Title:           "B",
		Content:         "x",
		ExpectedVersion: 1,
	})
	if err != nil || first.Version != 2 {
		t.Fatalf("first update: %v (version %d)", err, first.Version)
	}

	_, err = svc.Update(ctx, "user1", note.ID, &domain.UpdateNoteRequest{
		Title:           "C",
		Content:         "x",
		ExpectedVersion: 1,
	})
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected conflict for stale second update, got %v", err)
	}
	if conflictErr.Conflict.ClientVersion != 1 || conflictErr.Conflict.ServerVersion != 2 {
		t.Fatalf("unexpected conflict payload: %+v", conflictErr.Conflict)
	}

	resolved, err := svc.Resolve(ctx, "user1", note.ID, &domain.ResolveNoteRequest{
		ServerVersion: conflictErr.Conflict.ServerVersion,
		Title:         "merged",
		Content:       "x",
		Strategy:      domain.ResolutionMerge,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Version != 3 || resolved.Title != "merged" {
		t.Errorf("unexpected resolved state: %+v", resolved)
	}
}
