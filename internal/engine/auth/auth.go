package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"eventline/internal/config"
	"eventline/internal/repo"
)

// ForbiddenError indicates missing permission.
type ForbiddenError struct {
	EventID    string
	Permission string
}

func (e ForbiddenError) Error() string {
	if e.Permission == "" {
		return fmt.Sprintf("not an organizer of event %s", e.EventID)
	}
	return fmt.Sprintf("permission %s required on event %s", e.Permission, e.EventID)
}

// Service resolves organizer roles against the event's RBAC config.
type Service struct {
	Repo repo.Repo
}

func (s Service) EnsureActor(ctx context.Context, tx *sql.Tx, actorID, now string) error {
	if actorID == "" {
		return errors.New("actor_id required")
	}
	return s.Repo.EnsureActor(ctx, tx, actorID, now)
}

// Role returns the actor's organizer role, or ForbiddenError when the actor
// does not organize the event.
func (s Service) Role(ctx context.Context, tx *sql.Tx, eventID, actorID string) (string, error) {
	role, err := s.Repo.OrganizerRole(ctx, tx, eventID, actorID)
	if errors.Is(err, repo.ErrNotFound) {
		return "", ForbiddenError{EventID: eventID}
	}
	return role, err
}

// Require checks that the actor's role grants perm under cfg. An empty perm
// only requires membership.
func (s Service) Require(ctx context.Context, tx *sql.Tx, cfg *config.Config, eventID, actorID, perm string) (string, error) {
	role, err := s.Role(ctx, tx, eventID, actorID)
	if err != nil {
		return "", err
	}
	if perm != "" && !cfg.Allows(role, perm) {
		return role, ForbiddenError{EventID: eventID, Permission: perm}
	}
	return role, nil
}
