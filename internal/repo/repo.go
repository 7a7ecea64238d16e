package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"eventline/internal/config"
	"eventline/internal/db"
	"eventline/internal/domain"
)

type Repo struct {
	DB      *sql.DB
	Dialect string
}

var (
	ErrNotFound = errors.New("not found")
	// ErrVersionMismatch is returned when an event's timeline version moved.
	ErrVersionMismatch = errors.New("timeline version mismatch")
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r Repo) on(tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.DB
}

func (r Repo) exec(ctx context.Context, tx *sql.Tx, query string, args ...any) (sql.Result, error) {
	return r.on(tx).ExecContext(ctx, db.Rebind(r.Dialect, query), args...)
}

func (r Repo) query(ctx context.Context, tx *sql.Tx, query string, args ...any) (*sql.Rows, error) {
	return r.on(tx).QueryContext(ctx, db.Rebind(r.Dialect, query), args...)
}

func (r Repo) queryRow(ctx context.Context, tx *sql.Tx, query string, args ...any) *sql.Row {
	return r.on(tx).QueryRowContext(ctx, db.Rebind(r.Dialect, query), args...)
}

func mustAffect(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const eventColumns = `id,name,COALESCE(event_date,''),COALESCE(timezone,''),COALESCE(venue,''),status,timeline_version,created_by,created_at,updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (domain.Event, error) {
	var e domain.Event
	err := row.Scan(&e.ID, &e.Name, &e.EventDate, &e.Timezone, &e.Venue, &e.Status, &e.TimelineVersion, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	return e, err
}

func (r Repo) InsertEvent(ctx context.Context, tx *sql.Tx, e domain.Event) error {
	_, err := r.exec(ctx, tx, `INSERT INTO events(id,name,event_date,timezone,venue,status,timeline_version,created_by,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.Name, nullable(e.EventDate), nullable(e.Timezone), nullable(e.Venue), e.Status, e.TimelineVersion, e.CreatedBy, e.CreatedAt, e.UpdatedAt)
	return err
}

func (r Repo) GetEvent(ctx context.Context, id string) (domain.Event, error) {
	return scanEvent(r.queryRow(ctx, nil, `SELECT `+eventColumns+` FROM events WHERE id=?`, id))
}

func (r Repo) GetEventTx(ctx context.Context, tx *sql.Tx, id string) (domain.Event, error) {
	return scanEvent(r.queryRow(ctx, tx, `SELECT `+eventColumns+` FROM events WHERE id=?`, id))
}

// ListEvents returns events, newest first. A non-empty actorID restricts the
// list to events the actor organizes.
func (r Repo) ListEvents(ctx context.Context, actorID string) ([]domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events`
	var args []any
	if actorID != "" {
		query += ` WHERE id IN (SELECT event_id FROM event_organizers WHERE actor_id=?)`
		args = append(args, actorID)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	rows, err := r.query(ctx, nil, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// SingleEvent returns the only event in the database.
func (r Repo) SingleEvent(ctx context.Context) (domain.Event, error) {
	events, err := r.ListEvents(ctx, "")
	if err != nil {
		return domain.Event{}, err
	}
	if len(events) == 0 {
		return domain.Event{}, ErrNotFound
	}
	if len(events) > 1 {
		return domain.Event{}, fmt.Errorf("multiple events exist; specify --event")
	}
	return events[0], nil
}

func (r Repo) UpdateEvent(ctx context.Context, tx *sql.Tx, id string, p domain.EventPatch, updatedAt string) error {
	var (
		fields []string
		args   []any
	)
	set := func(col string, v *string) {
		if v != nil {
			fields = append(fields, col+"=?")
			args = append(args, nullable(*v))
		}
	}
	if p.Name != nil {
		fields = append(fields, "name=?")
		args = append(args, *p.Name)
	}
	set("event_date", p.EventDate)
	set("timezone", p.Timezone)
	set("venue", p.Venue)
	if p.Status != nil {
		fields = append(fields, "status=?")
		args = append(args, *p.Status)
	}
	fields = append(fields, "updated_at=?")
	args = append(args, updatedAt, id)
	return mustAffect(r.exec(ctx, tx, fmt.Sprintf(`UPDATE events SET %s WHERE id=?`, strings.Join(fields, ",")), args...))
}

func (r Repo) DeleteEvent(ctx context.Context, tx *sql.Tx, id string) error {
	return mustAffect(r.exec(ctx, tx, `DELETE FROM events WHERE id=?`, id))
}

// BumpTimelineVersion advances the event's timeline version if it still
// equals expected.
func (r Repo) BumpTimelineVersion(ctx context.Context, tx *sql.Tx, eventID string, expected int64, now string) (int64, error) {
	res, err := r.exec(ctx, tx, `UPDATE events SET timeline_version=timeline_version+1, updated_at=? WHERE id=? AND timeline_version=?`, now, eventID, expected)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return expected + 1, nil
	}
	if _, err := r.GetEventTx(ctx, tx, eventID); err != nil {
		return 0, err
	}
	return 0, ErrVersionMismatch
}

func (r Repo) TimelineVersion(ctx context.Context, tx *sql.Tx, eventID string) (int64, error) {
	var v int64
	err := r.queryRow(ctx, tx, `SELECT timeline_version FROM events WHERE id=?`, eventID).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return v, err
}

func (r Repo) UpsertEventConfig(ctx context.Context, tx *sql.Tx, eventID string, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config nil")
	}
	cfg.Event.ID = eventID
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := cfg.ToYAML()
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = r.exec(ctx, tx, `INSERT INTO event_configs(event_id,config_yaml,created_at,updated_at) VALUES (?,?,?,?)
ON CONFLICT(event_id) DO UPDATE SET config_yaml=excluded.config_yaml, updated_at=excluded.updated_at`, eventID, string(payload), now, now)
	return err
}

func (r Repo) GetEventConfig(ctx context.Context, eventID string) (*config.Config, error) {
	var payload string
	err := r.queryRow(ctx, nil, `SELECT config_yaml FROM event_configs WHERE event_id=?`, eventID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	cfg, err := config.FromYAML([]byte(payload))
	if err != nil {
		return nil, fmt.Errorf("stored config for %s: %w", eventID, err)
	}
	return cfg, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
