package repository

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"github.com/OriginalByteMe/note-taking-backend/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type NoteRepository interface {
	// Insert writes a new note together with its first history snapshot.
	Insert(ctx context.Context, note *domain.Note, initial *domain.NoteVersion) error
	FindByID(ctx context.Context, id string) (*domain.Note, error)
	FindByIDs(ctx context.Context, ids []string) ([]*domain.Note, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Note, error)
	// Update commits the new current state and its history snapshot as one
	// atomic write. The snapshot is part of the signature so no caller can
	// commit one half without the other. Returns ErrStaleWrite when the
	// stored state is not at snapshot.Version-1.
	Update(ctx context.Context, note *domain.Note, snapshot *domain.NoteVersion) error
	// Purge permanently removes the note and, with it, every history row.
	Purge(ctx context.Context, id string) error
}

type NoteVersionRepository interface {
	Versions(ctx context.Context, noteID string) ([]*domain.NoteVersion, error)
	Version(ctx context.Context, noteID string, version int64) (*domain.NoteVersion, error)
}

// NoteSearcher is the pluggable text-match collaborator. The CouchDB
// implementation uses a Mango regex selector; the dialect behind Search is
// not part of the contract.
type NoteSearcher interface {
	Search(ctx context.Context, ownerID, query string) ([]*domain.Note, error)
}

// noteDoc is the CouchDB envelope for a note. Current state and version
// history live in one document so a state change and its history append
// commit in a single Put; the document _rev is the compare-and-swap token
// against concurrent writers.
type noteDoc struct {
	ID      string                `json:"_id,omitempty"`
	Rev     string                `json:"_rev,omitempty"`
	DocType string                `json:"doc_type"`
	Note    *domain.Note          `json:"note"`
	History []*domain.NoteVersion `json:"history"`
}

type noteStore struct {
	client *kivik.Client
	dbName string
}

// NewNoteStore returns the CouchDB-backed note store. The one value
// implements NoteRepository, NoteVersionRepository and NoteSearcher.
func NewNoteStore(client *kivik.Client, dbName string) *noteStore {
	return &noteStore{
		client: client,
		dbName: dbName,
	}
}

func noteDocID(id string) string {
	return fmt.Sprintf("note:%s", id)
}

func (r *noteStore) Insert(ctx context.Context, note *domain.Note, initial *domain.NoteVersion) error {
	db := r.client.DB(r.dbName)

	doc := &noteDoc{
		DocType: "note",
		Note:    note,
		History: []*domain.NoteVersion{initial},
	}

	if _, err := db.Put(ctx, noteDocID(note.ID), doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusConflict {
			return ErrStaleWrite
		}
		return fmt.Errorf("failed to create note: %w", err)
	}

	return nil
}

func (r *noteStore) getDoc(ctx context.Context, id string) (*noteDoc, error) {
	db := r.client.DB(r.dbName)

	row := db.Get(ctx, noteDocID(id))

	var doc noteDoc
	if err := row.ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch note: %w", err)
	}

	return &doc, nil
}

func (r *noteStore) FindByID(ctx context.Context, id string) (*domain.Note, error) {
	doc, err := r.getDoc(ctx, id)
	if err != nil {
		return nil, err
	}
	return doc.Note, nil
}

func (r *noteStore) FindByIDs(ctx context.Context, ids []string) ([]*domain.Note, error) {
	notes := make([]*domain.Note, 0, len(ids))
	for _, id := range ids {
		note, err := r.FindByID(ctx, id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, nil
}

func (r *noteStore) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Note, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"doc_type":      "note",
			"note.owner_id": ownerID,
		},
	}

	rows := db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	var notes []*domain.Note
	for rows.Next() {
		var doc noteDoc
		if err := rows.ScanDoc(&doc); err != nil {
			continue
		}
		notes = append(notes, doc.Note)
	}

	return notes, nil
}

func (r *noteStore) Update(ctx context.Context, note *domain.Note, snapshot *domain.NoteVersion) error {
	db := r.client.DB(r.dbName)

	doc, err := r.getDoc(ctx, note.ID)
	if err != nil {
		return err
	}

	if doc.Note.Version != snapshot.Version-1 {
		return ErrStaleWrite
	}

	doc.Note = note
	doc.History = append(doc.History, snapshot)

	if _, err := db.Put(ctx, noteDocID(note.ID), doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusConflict {
			return ErrStaleWrite
		}
		return fmt.Errorf("failed to update note: %w", err)
	}

	return nil
}

func (r *noteStore) Purge(ctx context.Context, id string) error {
	db := r.client.DB(r.dbName)

	doc, err := r.getDoc(ctx, id)
	if err != nil {
		return err
	}

	if _, err := db.Delete(ctx, noteDocID(id), doc.Rev); err != nil {
		if kivik.HTTPStatus(err) == http.StatusConflict {
			return ErrStaleWrite
		}
		return fmt.Errorf("failed to purge note: %w", err)
	}

	return nil
}

func (r *noteStore) Versions(ctx context.Context, noteID string) ([]*domain.NoteVersion, error) {
	doc, err := r.getDoc(ctx, noteID)
	if err != nil {
		return nil, err
	}

	// History is appended in version order; return newest first.
	versions := make([]*domain.NoteVersion, len(doc.History))
	for i, v := range doc.History {
		versions[len(doc.History)-1-i] = v
	}

	return versions, nil
}

func (r *noteStore) Version(ctx context.Context, noteID string, version int64) (*domain.NoteVersion, error) {
	doc, err := r.getDoc(ctx, noteID)
	if err != nil {
		return nil, err
	}

	for _, v := range doc.History {
		if v.Version == version {
			return v, nil
		}
	}

	return nil, ErrNotFound
}

func (r *noteStore) Search(ctx context.Context, ownerID, query string) ([]*domain.Note, error) {
	db := r.client.DB(r.dbName)

	pattern := "(?i)" + regexp.QuoteMeta(query)
	find := map[string]interface{}{
		"selector": map[string]interface{}{
			"doc_type":        "note",
			"note.owner_id":   ownerID,
			"note.is_deleted": false,
			"$or": []map[string]interface{}{
				{"note.title": map[string]interface{}{"$regex": pattern}},
				{"note.content": map[string]interface{}{"$regex": pattern}},
			},
		},
	}

	rows := db.Find(ctx, find)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to search notes: %w", err)
	}
	defer rows.Close()

	var notes []*domain.Note
	for rows.Next() {
		var doc noteDoc
		if err := rows.ScanDoc(&doc); err != nil {
			continue
		}
		notes = append(notes, doc.Note)
	}

	return notes, nil
}
