package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventline/internal/config"
	"eventline/internal/engine"
)

func testServerConfig(t *testing.T) config.Server {
	return config.Server{
		Addr:      "127.0.0.1:0",
		Workspace: t.TempDir(),
		Auth:      config.Auth{JWTSecret: "secret", JWTIssuer: "eventline"},
	}
}

func TestOpenMigratesAndSkipsStorage(t *testing.T) {
	rt, err := Open(context.Background(), testServerConfig(t), nil)
	require.NoError(t, err)
	defer rt.Close()
	assert.Nil(t, rt.Engine.Storage)
	assert.Equal(t, []byte("secret"), rt.Engine.Issuer.Secret)
}

func TestResolveEvent(t *testing.T) {
	ctx := context.Background()
	rt, err := Open(ctx, testServerConfig(t), nil)
	require.NoError(t, err)
	defer rt.Close()
	e := rt.Engine

	_, err = ResolveEvent(ctx, e, "", "me")
	assert.Error(t, err)

	_, err = e.CreateEvent(ctx, engine.EventCreateOptions{ID: "a", Name: "A", ActorID: "me"})
	require.NoError(t, err)
	id, err := ResolveEvent(ctx, e, "", "me")
	require.NoError(t, err)
	assert.Equal(t, "a", id)

	_, err = e.CreateEvent(ctx, engine.EventCreateOptions{ID: "b", Name: "B", ActorID: "me"})
	require.NoError(t, err)
	_, err = ResolveEvent(ctx, e, "", "me")
	assert.ErrorContains(t, err, "--event")

	id, err = ResolveEvent(ctx, e, " b ", "me")
	require.NoError(t, err)
	assert.Equal(t, "b", id)
}
