package repo

import (
	"context"
	"database/sql"

	"eventline/internal/domain"
)

const documentColumns = `id,event_id,name,COALESCE(content_type,''),storage_key,uploaded_by,created_at`

func scanDocument(row scanner) (domain.Document, error) {
	var d domain.Document
	err := row.Scan(&d.ID, &d.EventID, &d.Name, &d.ContentType, &d.StorageKey, &d.UploadedBy, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	return d, err
}

func (r Repo) InsertDocument(ctx context.Context, tx *sql.Tx, d domain.Document) error {
	_, err := r.exec(ctx, tx, `INSERT INTO documents(id,event_id,name,content_type,storage_key,uploaded_by,created_at) VALUES (?,?,?,?,?,?,?)`,
		d.ID, d.EventID, d.Name, nullable(d.ContentType), d.StorageKey, d.UploadedBy, d.CreatedAt)
	return err
}

func (r Repo) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	return scanDocument(r.queryRow(ctx, nil, `SELECT `+documentColumns+` FROM documents WHERE id=?`, id))
}

func (r Repo) ListDocuments(ctx context.Context, eventID string) ([]domain.Document, error) {
	rows, err := r.query(ctx, nil, `SELECT `+documentColumns+` FROM documents WHERE event_id=? ORDER BY created_at DESC, id DESC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (r Repo) DeleteDocument(ctx context.Context, tx *sql.Tx, id string) error {
	return mustAffect(r.exec(ctx, tx, `DELETE FROM documents WHERE id=?`, id))
}
