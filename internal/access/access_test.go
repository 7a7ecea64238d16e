package access

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventline/internal/domain"
	"eventline/internal/schedule"
)

var fixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func testIssuer() Issuer {
	return Issuer{Secret: []byte("test-secret"), Name: "eventline", Now: func() time.Time { return fixedNow }}
}

func personLink() domain.ShareLink {
	return domain.ShareLink{
		ID:          "link-1",
		EventID:     "ev-1",
		SubjectKind: schedule.ViewerPerson,
		SubjectID:   "p-1",
		CreatedAt:   fixedNow.Format(time.RFC3339),
		ExpiresAt:   fixedNow.Add(48 * time.Hour).Format(time.RFC3339),
	}
}

func TestMintAndParse(t *testing.T) {
	iss := testIssuer()
	token, err := iss.Mint(personLink())
	require.NoError(t, err)

	claims, err := iss.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "link-1", claims.ID)
	assert.Equal(t, "ev-1", claims.EventID)
	assert.Equal(t, schedule.ViewerPerson, claims.SubjectKind)
	assert.Equal(t, "p-1", claims.SubjectID)
	require.NoError(t, Check(personLink(), claims, fixedNow))
}

func TestParseRejectsTamperingAndExpiry(t *testing.T) {
	iss := testIssuer()
	token, err := iss.Mint(personLink())
	require.NoError(t, err)

	other := iss
	other.Secret = []byte("another-secret")
	_, err = other.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidLink)

	_, err = iss.Parse(token + "x")
	assert.ErrorIs(t, err, ErrInvalidLink)

	later := iss
	later.Now = func() time.Time { return fixedNow.Add(72 * time.Hour) }
	_, err = later.Parse(token)
	assert.ErrorIs(t, err, ErrLinkExpired)
}

func TestCheckRevokedAndMismatch(t *testing.T) {
	iss := testIssuer()
	link := personLink()
	token, err := iss.Mint(link)
	require.NoError(t, err)
	claims, err := iss.Parse(token)
	require.NoError(t, err)

	revoked := link
	ts := fixedNow.Format(time.RFC3339)
	revoked.RevokedAt = &ts
	assert.ErrorIs(t, Check(revoked, claims, fixedNow), ErrLinkRevoked)

	moved := link
	moved.SubjectID = "p-2"
	assert.ErrorIs(t, Check(moved, claims, fixedNow), ErrInvalidLink)

	assert.ErrorIs(t, Check(link, claims, fixedNow.Add(49*time.Hour)), ErrLinkExpired)
}

func TestValidSubject(t *testing.T) {
	assert.NoError(t, ValidSubject(schedule.ViewerVendor, "v-1"))
	assert.NoError(t, ValidSubject(schedule.ViewerGuest, ""))
	assert.Error(t, ValidSubject(schedule.ViewerPerson, ""))
	assert.Error(t, ValidSubject(schedule.ViewerGuest, "p-1"))
	assert.Error(t, ValidSubject(schedule.ViewerAdmin, "a"))
}

func TestGuestViewer(t *testing.T) {
	link := personLink()
	link.SubjectKind = schedule.ViewerGuest
	link.SubjectID = ""
	v := ViewerFor(link, "")
	assert.Equal(t, schedule.Viewer{Kind: schedule.ViewerGuest}, v)
}
