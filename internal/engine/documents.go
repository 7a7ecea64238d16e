package engine

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"eventline/internal/config"
	"eventline/internal/domain"
	"eventline/internal/events"
	"eventline/internal/repo"
	"eventline/internal/storage"
)

// Upload is a registered document and the URL its bytes go to.
type Upload struct {
	Document  domain.Document `json:"document"`
	UploadURL string          `json:"upload_url"`
}

// CreateDocument registers a document and presigns its upload.
func (e Engine) CreateDocument(ctx context.Context, eventID, name, contentType, actorID string) (Upload, error) {
	if e.Storage == nil {
		return Upload{}, storage.ErrDisabled
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Upload{}, invalid("name", "required")
	}
	doc := domain.Document{
		ID:          uuid.NewString(),
		EventID:     eventID,
		Name:        name,
		ContentType: contentType,
		StorageKey:  e.Storage.NewKey(eventID, name),
		UploadedBy:  actorID,
		CreatedAt:   e.ts(),
	}
	var url string
	err := e.mutate(ctx, eventID, actorID, config.PermDocumentsWrite, func(tx *sql.Tx) error {
		var err error
		if url, err = e.Storage.PresignPut(ctx, doc.StorageKey, contentType); err != nil {
			return err
		}
		if err := e.Repo.InsertDocument(ctx, tx, doc); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, events.DocumentCreated, eventID, "document", doc.ID, actorID, events.Payload{"name": doc.Name})
	})
	if err != nil {
		return Upload{}, err
	}
	return Upload{Document: doc, UploadURL: url}, nil
}

func (e Engine) ListDocuments(ctx context.Context, eventID, actorID string) ([]domain.Document, error) {
	if _, err := e.member(ctx, eventID, actorID); err != nil {
		return nil, err
	}
	return e.Repo.ListDocuments(ctx, eventID)
}

// DocumentURL presigns a download of the document.
func (e Engine) DocumentURL(ctx context.Context, eventID, id, actorID string) (string, error) {
	if e.Storage == nil {
		return "", storage.ErrDisabled
	}
	doc, err := e.documentIn(ctx, eventID, id)
	if err != nil {
		return "", err
	}
	if _, err := e.member(ctx, eventID, actorID); err != nil {
		return "", err
	}
	return e.Storage.PresignGet(ctx, doc.StorageKey, doc.Name)
}

// DeleteDocument drops the metadata row. The stored object is left to the
// bucket's lifecycle rules.
func (e Engine) DeleteDocument(ctx context.Context, eventID, id, actorID string) error {
	doc, err := e.documentIn(ctx, eventID, id)
	if err != nil {
		return err
	}
	return e.mutate(ctx, eventID, actorID, config.PermDocumentsWrite, func(tx *sql.Tx) error {
		if err := e.Repo.DeleteDocument(ctx, tx, doc.ID); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, events.DocumentDeleted, eventID, "document", doc.ID, actorID, events.Payload{"storage_key": doc.StorageKey})
	})
}

func (e Engine) documentIn(ctx context.Context, eventID, id string) (domain.Document, error) {
	doc, err := e.Repo.GetDocument(ctx, id)
	if err != nil {
		return doc, err
	}
	if doc.EventID != eventID {
		return domain.Document{}, repo.ErrNotFound
	}
	return doc, nil
}
