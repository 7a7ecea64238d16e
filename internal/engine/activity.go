package engine

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/google/uuid"

	"eventline/internal/domain"
	"eventline/internal/events"
	"eventline/internal/repo"
)

// APIKeyPrefix starts every API key handed out.
const APIKeyPrefix = "elk_"

var ErrInvalidAPIKey = errors.New("invalid api key")

// Activity returns an event's change log, newest first.
func (e Engine) Activity(ctx context.Context, eventID, actorID string, limit int, cursor int64, f repo.ActivityFilter) ([]domain.Activity, error) {
	if _, err := e.member(ctx, eventID, actorID); err != nil {
		return nil, err
	}
	f.EventID = eventID
	return e.Repo.LatestActivity(ctx, limit, cursor, f)
}

// CreateAPIKey issues a key for actorID. The returned secret is shown once;
// only its hash is stored.
func (e Engine) CreateAPIKey(ctx context.Context, actorID, name string) (domain.APIKey, string, error) {
	if actorID == "" {
		return domain.APIKey{}, "", invalid("actor_id", "required")
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return domain.APIKey{}, "", err
	}
	secret := base64.RawURLEncoding.EncodeToString(buf)
	now := e.ts()
	key := domain.APIKey{
		ID:        strings.ReplaceAll(uuid.NewString(), "-", ""),
		ActorID:   actorID,
		Name:      name,
		CreatedAt: now,
	}
	key.KeyHash = repo.HashAPIKey(key.ID, secret)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.APIKey{}, "", err
	}
	defer tx.Rollback()
	if err := e.Auth.EnsureActor(ctx, tx, actorID, now); err != nil {
		return domain.APIKey{}, "", err
	}
	if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
		return domain.APIKey{}, "", err
	}
	if err := e.Events.Append(ctx, tx, events.APIKeyCreated, "", "api_key", key.ID, actorID, events.Payload{"name": name}); err != nil {
		return domain.APIKey{}, "", err
	}
	if err := tx.Commit(); err != nil {
		return domain.APIKey{}, "", err
	}
	return key, APIKeyPrefix + key.ID + "." + secret, nil
}

// AuthenticateAPIKey returns the actor a raw key belongs to.
func (e Engine) AuthenticateAPIKey(ctx context.Context, raw string) (string, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(raw), APIKeyPrefix)
	if !ok {
		return "", ErrInvalidAPIKey
	}
	id, secret, ok := strings.Cut(rest, ".")
	if !ok || id == "" || secret == "" {
		return "", ErrInvalidAPIKey
	}
	key, err := e.Repo.GetAPIKey(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return "", ErrInvalidAPIKey
	}
	if err != nil {
		return "", err
	}
	if !repo.VerifyAPIKey(key, secret) {
		return "", ErrInvalidAPIKey
	}
	return key.ActorID, nil
}

func (e Engine) ListAPIKeys(ctx context.Context, actorID string) ([]domain.APIKey, error) {
	keys, err := e.Repo.ListAPIKeys(ctx, actorID)
	for i := range keys {
		keys[i].KeyHash = ""
	}
	return keys, err
}

// RevokeAPIKey deletes one of the actor's own keys.
func (e Engine) RevokeAPIKey(ctx context.Context, id, actorID string) error {
	key, err := e.Repo.GetAPIKey(ctx, id)
	if err != nil {
		return err
	}
	if key.ActorID != actorID {
		return repo.ErrNotFound
	}
	return e.Repo.DeleteAPIKey(ctx, id)
}
