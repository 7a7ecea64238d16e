package repo

import (
	"context"
	"database/sql"

	"eventline/internal/domain"
)

func (r Repo) EnsureActor(ctx context.Context, tx *sql.Tx, actorID, now string) error {
	_, err := r.exec(ctx, tx, `INSERT INTO actors(id, created_at) VALUES (?,?) ON CONFLICT DO NOTHING`, actorID, now)
	return err
}

// AssignOrganizer grants role on an event, replacing any previous role.
func (r Repo) AssignOrganizer(ctx context.Context, tx *sql.Tx, o domain.Organizer) error {
	_, err := r.exec(ctx, tx, `INSERT INTO event_organizers(event_id, actor_id, role, created_at) VALUES (?,?,?,?)
ON CONFLICT(event_id, actor_id) DO UPDATE SET role=excluded.role`, o.EventID, o.ActorID, o.Role, o.CreatedAt)
	return err
}

func (r Repo) RemoveOrganizer(ctx context.Context, tx *sql.Tx, eventID, actorID string) error {
	return mustAffect(r.exec(ctx, tx, `DELETE FROM event_organizers WHERE event_id=? AND actor_id=?`, eventID, actorID))
}

// OrganizerRole returns the actor's role on the event or ErrNotFound.
func (r Repo) OrganizerRole(ctx context.Context, tx *sql.Tx, eventID, actorID string) (string, error) {
	var role string
	err := r.queryRow(ctx, tx, `SELECT role FROM event_organizers WHERE event_id=? AND actor_id=?`, eventID, actorID).Scan(&role)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return role, err
}

func (r Repo) ListOrganizers(ctx context.Context, eventID string) ([]domain.Organizer, error) {
	rows, err := r.query(ctx, nil, `SELECT event_id, actor_id, role, created_at FROM event_organizers WHERE event_id=? ORDER BY created_at, actor_id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Organizer
	for rows.Next() {
		var o domain.Organizer
		if err := rows.Scan(&o.EventID, &o.ActorID, &o.Role, &o.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

func (r Repo) CountOwners(ctx context.Context, tx *sql.Tx, eventID string) (int, error) {
	var n int
	err := r.queryRow(ctx, tx, `SELECT COUNT(*) FROM event_organizers WHERE event_id=? AND role='owner'`, eventID).Scan(&n)
	return n, err
}
