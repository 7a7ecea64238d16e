// Package access mints and verifies share-link tokens and resolves the
// viewer a link stands for.
package access

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"eventline/internal/domain"
	"eventline/internal/schedule"
)

const audience = "eventline-share"

var (
	ErrInvalidLink = errors.New("share link is invalid")
	ErrLinkExpired = errors.New("share link has expired")
	ErrLinkRevoked = errors.New("share link was revoked")
)

// Claims is the payload of a share-link token.
type Claims struct {
	jwt.RegisteredClaims
	EventID     string `json:"eid"`
	SubjectKind string `json:"sk"`
	SubjectID   string `json:"sid,omitempty"`
}

// Issuer signs share links with HS256.
type Issuer struct {
	Secret []byte
	Name   string
	Now    func() time.Time
}

func (i Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

// Mint returns the token for a stored link.
func (i Issuer) Mint(link domain.ShareLink) (string, error) {
	if len(i.Secret) == 0 {
		return "", errors.New("share link secret not configured")
	}
	if err := ValidSubject(link.SubjectKind, link.SubjectID); err != nil {
		return "", err
	}
	exp, err := time.Parse(time.RFC3339, link.ExpiresAt)
	if err != nil {
		return "", fmt.Errorf("share link expiry: %w", err)
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        link.ID,
			Issuer:    i.Name,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(i.now()),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		EventID:     link.EventID,
		SubjectKind: link.SubjectKind,
		SubjectID:   link.SubjectID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.Secret)
}

// Parse verifies signature, audience and expiry.
func (i Issuer) Parse(token string) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	}
	if i.Name != "" {
		opts = append(opts, jwt.WithIssuer(i.Name))
	}
	var claims Claims
	_, err := jwt.NewParser(opts...).ParseWithClaims(strings.TrimSpace(token), &claims, func(*jwt.Token) (any, error) {
		return i.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrLinkExpired
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}
	if claims.ID == "" || claims.EventID == "" {
		return Claims{}, ErrInvalidLink
	}
	if err := ValidSubject(claims.SubjectKind, claims.SubjectID); err != nil {
		return Claims{}, ErrInvalidLink
	}
	return claims, nil
}

// ValidSubject checks a link subject: people and vendors need an id, guests
// must not have one.
func ValidSubject(kind, id string) error {
	switch kind {
	case schedule.ViewerPerson, schedule.ViewerVendor:
		if id == "" {
			return fmt.Errorf("%s share link needs a subject id", kind)
		}
	case schedule.ViewerGuest:
		if id != "" {
			return fmt.Errorf("guest share link cannot have a subject id")
		}
	default:
		return fmt.Errorf("unknown share subject kind %q", kind)
	}
	return nil
}

// Grant is a resolved share link.
type Grant struct {
	Link   domain.ShareLink
	Viewer schedule.Viewer
}

// Check validates a stored link against the token claims at now.
func Check(link domain.ShareLink, claims Claims, now time.Time) error {
	if link.ID != claims.ID || link.EventID != claims.EventID ||
		link.SubjectKind != claims.SubjectKind || link.SubjectID != claims.SubjectID {
		return ErrInvalidLink
	}
	return Live(link, now)
}

// Live reports whether a stored link is neither revoked nor expired at now.
func Live(link domain.ShareLink, now time.Time) error {
	if link.RevokedAt != nil {
		return ErrLinkRevoked
	}
	exp, err := time.Parse(time.RFC3339, link.ExpiresAt)
	if err != nil || !now.Before(exp) {
		return ErrLinkExpired
	}
	return nil
}

// ViewerFor maps a link to the identity projections filter on.
func ViewerFor(link domain.ShareLink, role string) schedule.Viewer {
	return schedule.Viewer{ID: link.SubjectID, Kind: link.SubjectKind, Role: role}
}
