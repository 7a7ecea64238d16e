package repo

import (
	"context"
	"database/sql"

	"eventline/internal/domain"
)

const shareLinkColumns = `id,event_id,subject_kind,COALESCE(subject_id,''),created_by,created_at,expires_at,revoked_at`

func scanShareLink(row scanner) (domain.ShareLink, error) {
	var l domain.ShareLink
	var revoked sql.NullString
	err := row.Scan(&l.ID, &l.EventID, &l.SubjectKind, &l.SubjectID, &l.CreatedBy, &l.CreatedAt, &l.ExpiresAt, &revoked)
	if err == sql.ErrNoRows {
		return l, ErrNotFound
	}
	if revoked.Valid {
		l.RevokedAt = &revoked.String
	}
	return l, err
}

func (r Repo) InsertShareLink(ctx context.Context, tx *sql.Tx, l domain.ShareLink) error {
	_, err := r.exec(ctx, tx, `INSERT INTO share_links(id,event_id,subject_kind,subject_id,created_by,created_at,expires_at) VALUES (?,?,?,?,?,?,?)`,
		l.ID, l.EventID, l.SubjectKind, nullable(l.SubjectID), l.CreatedBy, l.CreatedAt, l.ExpiresAt)
	return err
}

func (r Repo) GetShareLink(ctx context.Context, id string) (domain.ShareLink, error) {
	return scanShareLink(r.queryRow(ctx, nil, `SELECT `+shareLinkColumns+` FROM share_links WHERE id=?`, id))
}

func (r Repo) ListShareLinks(ctx context.Context, eventID string) ([]domain.ShareLink, error) {
	rows, err := r.query(ctx, nil, `SELECT `+shareLinkColumns+` FROM share_links WHERE event_id=? ORDER BY created_at DESC, id DESC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ShareLink
	for rows.Next() {
		l, err := scanShareLink(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}

// RevokeShareLink marks a live link revoked. Revoking twice is a no-op.
func (r Repo) RevokeShareLink(ctx context.Context, tx *sql.Tx, id, now string) error {
	return mustAffect(r.exec(ctx, tx, `UPDATE share_links SET revoked_at=COALESCE(revoked_at, ?) WHERE id=?`, now, id))
}
