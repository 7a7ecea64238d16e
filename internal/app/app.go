package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"eventline/internal/access"
	"eventline/internal/config"
	"eventline/internal/db"
	"eventline/internal/engine"
	"eventline/internal/logging"
	"eventline/internal/migrate"
	"eventline/internal/storage"
)

// Runtime is an opened workspace: a migrated database and an engine wired to
// it with the process settings.
type Runtime struct {
	Conn   *sql.DB
	Engine engine.Engine
}

// Open connects to the configured database, applies migrations and builds the
// engine. Document storage is attached only when S3 settings are complete.
func Open(ctx context.Context, cfg config.Server, log logging.Logger) (*Runtime, error) {
	if log == nil {
		log = logging.Nop()
	}
	conn, err := db.Open(db.Config{Driver: cfg.DB.Driver, DSN: cfg.DB.DSN, Workspace: cfg.Workspace})
	if err != nil {
		return nil, err
	}
	dialect := db.Dialect(cfg.DB.Driver)
	if err := migrate.Migrate(ctx, conn, dialect); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	e := engine.New(conn, dialect)
	e.Log = log
	e.Issuer = access.Issuer{Secret: cfg.Auth.ShareKey(), Name: cfg.Auth.JWTIssuer}
	if cfg.S3.Enabled() {
		s3, err := storage.NewS3(ctx, storage.Options{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			PathStyle: cfg.S3.PathStyle,
			Expiry:    cfg.S3.URLExpiry,
		})
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("document storage: %w", err)
		}
		e.Storage = s3
	}
	return &Runtime{Conn: conn, Engine: e}, nil
}

func (r *Runtime) Close() error {
	return r.Conn.Close()
}

// ResolveEvent picks the event a command works on: the explicit override, or
// the only event the actor organizes.
func ResolveEvent(ctx context.Context, e engine.Engine, override, actorID string) (string, error) {
	if override = strings.TrimSpace(override); override != "" {
		return override, nil
	}
	evs, err := e.ListEvents(ctx, actorID)
	if err != nil {
		return "", err
	}
	switch len(evs) {
	case 0:
		return "", errors.New("no event yet; create one with 'el event create'")
	case 1:
		return evs[0].ID, nil
	default:
		ids := make([]string, len(evs))
		for i, ev := range evs {
			ids[i] = ev.ID
		}
		return "", fmt.Errorf("%d events (%s); pick one with --event", len(evs), strings.Join(ids, ", "))
	}
}
