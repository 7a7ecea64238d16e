package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"eventline/internal/domain"
)

// ActivityFilter narrows LatestActivity.
type ActivityFilter struct {
	EventID    string
	Type       string
	EntityKind string
	EntityID   string
}

func scanActivity(rows *sql.Rows) ([]domain.Activity, error) {
	defer rows.Close()
	var res []domain.Activity
	for rows.Next() {
		var a domain.Activity
		var eventID, entityID, payload sql.NullString
		if err := rows.Scan(&a.ID, &a.TS, &a.Type, &eventID, &a.EntityKind, &entityID, &a.ActorID, &payload); err != nil {
			return nil, err
		}
		a.EventID = eventID.String
		a.EntityID = entityID.String
		a.Payload = payload.String
		res = append(res, a)
	}
	return res, rows.Err()
}

// LatestActivity returns newest rows first, older than cursor when set.
func (r Repo) LatestActivity(ctx context.Context, limit int, cursor int64, f ActivityFilter) ([]domain.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	clauses := []string{"1=1"}
	var args []any
	add := func(clause string, v any) {
		clauses = append(clauses, clause)
		args = append(args, v)
	}
	if f.EventID != "" {
		add("event_id=?", f.EventID)
	}
	if f.Type != "" {
		add("type=?", f.Type)
	}
	if f.EntityKind != "" {
		add("entity_kind=?", f.EntityKind)
	}
	if f.EntityID != "" {
		add("entity_id=?", f.EntityID)
	}
	if cursor > 0 {
		add("id<?", cursor)
	}
	query := fmt.Sprintf(`SELECT id,ts,type,event_id,entity_kind,entity_id,actor_id,payload_json FROM activity WHERE %s ORDER BY id DESC LIMIT ?`, strings.Join(clauses, " AND "))
	args = append(args, limit)
	rows, err := r.query(ctx, nil, query, args...)
	if err != nil {
		return nil, err
	}
	return scanActivity(rows)
}

// ActivityAfter returns rows with ids greater than cursor in ascending order.
func (r Repo) ActivityAfter(ctx context.Context, limit int, cursor int64, eventID string) ([]domain.Activity, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses := []string{"id>?"}
	args := []any{cursor}
	if eventID != "" {
		clauses = append(clauses, "event_id=?")
		args = append(args, eventID)
	}
	query := fmt.Sprintf(`SELECT id,ts,type,event_id,entity_kind,entity_id,actor_id,payload_json FROM activity WHERE %s ORDER BY id ASC LIMIT ?`, strings.Join(clauses, " AND "))
	args = append(args, limit)
	rows, err := r.query(ctx, nil, query, args...)
	if err != nil {
		return nil, err
	}
	return scanActivity(rows)
}

// LatestActivityID returns the newest activity id, optionally for one event.
func (r Repo) LatestActivityID(ctx context.Context, eventID string) (int64, error) {
	query := `SELECT COALESCE(MAX(id),0) FROM activity`
	var args []any
	if eventID != "" {
		query += ` WHERE event_id=?`
		args = append(args, eventID)
	}
	var id int64
	if err := r.queryRow(ctx, nil, query, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
