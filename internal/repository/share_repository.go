package repository

import (
	"context"
	"fmt"
	"net/http"

	"github.com/OriginalByteMe/note-taking-backend/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type ShareRepository interface {
	Create(ctx context.Context, share *domain.Share) error
	Find(ctx context.Context, noteID, userID string) (*domain.Share, error)
	ListByNote(ctx context.Context, noteID string) ([]*domain.Share, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Share, error)
	Update(ctx context.Context, share *domain.Share) error
	Delete(ctx context.Context, noteID, userID string) error
	// DeleteByNote removes every grant on a note; called when the note is
	// permanently destroyed.
	DeleteByNote(ctx context.Context, noteID string) error
}

type shareDoc struct {
	ID      string        `json:"_id,omitempty"`
	Rev     string        `json:"_rev,omitempty"`
	DocType string        `json:"doc_type"`
	Share   *domain.Share `json:"share"`
}

type shareRepository struct {
	client *kivik.Client
	dbName string
}

func NewShareRepository(client *kivik.Client, dbName string) ShareRepository {
	return &shareRepository{
		client: client,
		dbName: dbName,
	}
}

// Grants get deterministic ids so a (note, user) pair can hold at most one.
func shareDocID(noteID, userID string) string {
	return fmt.Sprintf("share:%s:%s", noteID, userID)
}

func (r *shareRepository) Create(ctx context.Context, share *domain.Share) error {
	db := r.client.DB(r.dbName)

	doc := &shareDoc{
		DocType: "share",
		Share:   share,
	}

	if _, err := db.Put(ctx, shareDocID(share.NoteID, share.UserID), doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusConflict {
			return ErrStaleWrite
		}
		return fmt.Errorf("failed to create share: %w", err)
	}

	return nil
}

func (r *shareRepository) getDoc(ctx context.Context, noteID, userID string) (*shareDoc, error) {
	db := r.client.DB(r.dbName)

	row := db.Get(ctx, shareDocID(noteID, userID))

	var doc shareDoc
	if err := row.ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch share: %w", err)
	}

	return &doc, nil
}

func (r *shareRepository) Find(ctx context.Context, noteID, userID string) (*domain.Share, error) {
	doc, err := r.getDoc(ctx, noteID, userID)
	if err != nil {
		return nil, err
	}
	return doc.Share, nil
}

func (r *shareRepository) list(ctx context.Context, selector map[string]interface{}) ([]*domain.Share, error) {
	db := r.client.DB(r.dbName)

	rows := db.Find(ctx, map[string]interface{}{"selector": selector})
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list shares: %w", err)
	}
	defer rows.Close()

	var shares []*domain.Share
	for rows.Next() {
		var doc shareDoc
		if err := rows.ScanDoc(&doc); err != nil {
			continue
		}
		shares = append(shares, doc.Share)
	}

	return shares, nil
}

func (r *shareRepository) ListByNote(ctx context.Context, noteID string) ([]*domain.Share, error) {
	return r.list(ctx, map[string]interface{}{
		"doc_type":      "share",
		"share.note_id": noteID,
	})
}

func (r *shareRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Share, error) {
	return r.list(ctx, map[string]interface{}{
		"doc_type":      "share",
		"share.user_id": userID,
	})
}

func (r *shareRepository) Update(ctx context.Context, share *domain.Share) error {
	db := r.client.DB(r.dbName)

	doc, err := r.getDoc(ctx, share.NoteID, share.UserID)
	if err != nil {
		return err
	}

	doc.Share = share

	if _, err := db.Put(ctx, shareDocID(share.NoteID, share.UserID), doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusConflict {
			return ErrStaleWrite
		}
		return fmt.Errorf("failed to update share: %w", err)
	}

	return nil
}

func (r *shareRepository) Delete(ctx context.Context, noteID, userID string) error {
	db := r.client.DB(r.dbName)

	doc, err := r.getDoc(ctx, noteID, userID)
	if err != nil {
		return err
	}

	if _, err := db.Delete(ctx, shareDocID(noteID, userID), doc.Rev); err != nil {
		return fmt.Errorf("failed to delete share: %w", err)
	}

	return nil
}

func (r *shareRepository) DeleteByNote(ctx context.Context, noteID string) error {
	shares, err := r.ListByNote(ctx, noteID)
	if err != nil {
		return err
	}

	for _, share := range shares {
		if err := r.Delete(ctx, noteID, share.UserID); err != nil && err != ErrNotFound {
			return err
		}
	}

	return nil
}
