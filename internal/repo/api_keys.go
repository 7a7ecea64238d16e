package repo

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"

	"eventline/internal/domain"
)

// HashAPIKey derives the stored digest of an API key secret. The key id is
// the salt, so lookups go by id and the digest is compared afterwards.
func HashAPIKey(id, secret string) string {
	sum := argon2.IDKey([]byte(strings.TrimSpace(secret)), []byte(id), 2, 19*1024, 1, 32)
	return base64.RawStdEncoding.EncodeToString(sum)
}

// VerifyAPIKey compares secret against a stored key in constant time.
func VerifyAPIKey(key domain.APIKey, secret string) bool {
	want := HashAPIKey(key.ID, secret)
	return subtle.ConstantTimeCompare([]byte(want), []byte(key.KeyHash)) == 1
}

// InsertAPIKey stores a hashed API key. KeyHash must already contain the hashed value.
func (r Repo) InsertAPIKey(ctx context.Context, tx *sql.Tx, key domain.APIKey) error {
	if key.ID == "" {
		return errors.New("id required")
	}
	if key.ActorID == "" {
		return errors.New("actor_id required")
	}
	if key.KeyHash == "" {
		return errors.New("key_hash required")
	}
	if key.CreatedAt == "" {
		key.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := r.exec(ctx, tx, `INSERT INTO api_keys(id, actor_id, name, key_hash, created_at) VALUES (?,?,?,?,?)`,
		key.ID, key.ActorID, nullable(key.Name), key.KeyHash, key.CreatedAt)
	return err
}

// GetAPIKey returns an API key by id.
func (r Repo) GetAPIKey(ctx context.Context, id string) (domain.APIKey, error) {
	row := r.queryRow(ctx, nil, `SELECT id, actor_id, COALESCE(name,''), key_hash, created_at FROM api_keys WHERE id=?`, id)
	var key domain.APIKey
	err := row.Scan(&key.ID, &key.ActorID, &key.Name, &key.KeyHash, &key.CreatedAt)
	if err == sql.ErrNoRows {
		return domain.APIKey{}, ErrNotFound
	}
	if err != nil {
		return domain.APIKey{}, err
	}
	return key, nil
}

// ListAPIKeys returns API keys, optionally filtered by actor ID.
func (r Repo) ListAPIKeys(ctx context.Context, actorID string) ([]domain.APIKey, error) {
	query := `SELECT id, actor_id, COALESCE(name,''), key_hash, created_at FROM api_keys`
	var args []any
	if actorID != "" {
		query += ` WHERE actor_id=?`
		args = append(args, actorID)
	}
	query += ` ORDER BY created_at DESC`
	rows, err := r.query(ctx, nil, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []domain.APIKey
	for rows.Next() {
		var key domain.APIKey
		if err := rows.Scan(&key.ID, &key.ActorID, &key.Name, &key.KeyHash, &key.CreatedAt); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// DeleteAPIKey deletes an API key by ID.
func (r Repo) DeleteAPIKey(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("id required")
	}
	return mustAffect(r.exec(ctx, nil, `DELETE FROM api_keys WHERE id=?`, id))
}
