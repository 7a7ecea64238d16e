package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"eventline/internal/access"
	"eventline/internal/config"
	"eventline/internal/engine/auth"
	"eventline/internal/events"
	"eventline/internal/logging"
	"eventline/internal/repo"
	"eventline/internal/schedule"
)

// Presigner issues direct upload and download URLs for document bytes.
type Presigner interface {
	NewKey(eventID, filename string) string
	PresignPut(ctx context.Context, key, contentType string) (string, error)
	PresignGet(ctx context.Context, key, filename string) (string, error)
}

type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Events  events.Writer
	Auth    auth.Service
	Issuer  access.Issuer
	Storage Presigner
	Log     logging.Logger
	Now     func() time.Time
	// StoreTimeout bounds each timeline persistence call.
	StoreTimeout time.Duration
}

func New(conn *sql.DB, dialect string) Engine {
	r := repo.Repo{DB: conn, Dialect: dialect}
	return Engine{
		DB:           conn,
		Repo:         r,
		Events:       events.Writer{Dialect: dialect},
		Auth:         auth.Service{Repo: r},
		Log:          logging.Nop(),
		Now:          time.Now,
		StoreTimeout: schedule.DefaultTimeout,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) ts() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) logger() logging.Logger {
	if e.Log == nil {
		return logging.Nop()
	}
	return e.Log
}

// ValidationError rejects malformed input before anything is written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return ValidationError{Field: field, Reason: reason}
}

func forbidden(eventID, perm string) error {
	return auth.ForbiddenError{EventID: eventID, Permission: perm}
}

// config returns the event's planning config, falling back to defaults when
// none is stored yet. It must not run while a transaction holds the
// connection.
func (e Engine) config(ctx context.Context, eventID string) (*config.Config, error) {
	cfg, err := e.Repo.GetEventConfig(ctx, eventID)
	if errors.Is(err, repo.ErrNotFound) {
		if _, err := e.Repo.GetEvent(ctx, eventID); err != nil {
			return nil, err
		}
		return config.Default(eventID), nil
	}
	return cfg, err
}

// mutate runs fn inside a transaction after checking perm on the event.
func (e Engine) mutate(ctx context.Context, eventID, actorID, perm string, fn func(tx *sql.Tx) error) error {
	cfg, err := e.config(ctx, eventID)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := e.Auth.Require(ctx, tx, cfg, eventID, actorID, perm); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// member checks read access to an event and returns the actor's role.
func (e Engine) member(ctx context.Context, eventID, actorID string) (string, error) {
	if _, err := e.Repo.GetEvent(ctx, eventID); err != nil {
		return "", err
	}
	return e.Auth.Role(ctx, nil, eventID, actorID)
}
