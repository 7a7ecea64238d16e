package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestS3(t *testing.T) *S3 {
	t.Helper()
	s, err := NewS3(context.Background(), Options{
		Endpoint:  "http://127.0.0.1:9000",
		Region:    "eu-west-1",
		Bucket:    "docs",
		AccessKey: "minio",
		SecretKey: "minio-secret",
		PathStyle: true,
		Expiry:    10 * time.Minute,
	})
	require.NoError(t, err)
	s.Now = func() time.Time { return time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC) }
	return s
}

func TestNewS3RequiresCredentials(t *testing.T) {
	_, err := NewS3(context.Background(), Options{Bucket: "docs"})
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestPresignPut(t *testing.T) {
	s := newTestS3(t)
	key := s.NewKey("ev-1", "../contracts/venue.pdf")
	assert.True(t, strings.HasPrefix(key, "events/ev-1/2026/05/"), key)
	assert.True(t, strings.HasSuffix(key, "-venue.pdf"), key)

	raw, err := s.PresignPut(context.Background(), key, "application/pdf")
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", u.Host)
	assert.True(t, strings.HasPrefix(u.Path, "/docs/events/ev-1/"), u.Path)
	assert.Equal(t, "600", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}

func TestPresignGet(t *testing.T) {
	s := newTestS3(t)
	raw, err := s.PresignGet(context.Background(), "events/ev-1/2026/05/x-menu.pdf", "menu.pdf")
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/docs/events/ev-1/2026/05/x-menu.pdf", u.Path)
	assert.Contains(t, u.Query().Get("response-content-disposition"), "menu.pdf")
}
