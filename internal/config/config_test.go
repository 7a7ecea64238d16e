package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default("ev-1")
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "ev-1", cfg.Event.ID)
	assert.Equal(t, "08:00", cfg.Anchor())
	assert.Equal(t, 30, cfg.DefaultDuration())
	assert.Equal(t, 720*time.Hour, cfg.LinkTTL())
	assert.Equal(t, []string{"Preparation", "Logistics", "Ceremony", "Photos", "Reception"}, cfg.Timeline.Categories)
}

func TestValidateRejects(t *testing.T) {
	tests := map[string]string{
		"missing id":    "timeline:\n  anchor: \"08:00\"\n",
		"bad anchor":    "event:\n  id: e\ntimeline:\n  anchor: \"25:00\"\n",
		"dup category":  "event:\n  id: e\ntimeline:\n  categories: [Photos, Photos]\n",
		"bad ttl":       "event:\n  id: e\nsharing:\n  link_ttl: forever\n",
		"no owner role": "event:\n  id: e\nrbac:\n  roles:\n    planner:\n      permissions: [timeline.write]\n",
		"not yaml":      "event: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestAllows(t *testing.T) {
	cfg := Default("ev-1")
	assert.True(t, cfg.Allows("owner", PermOrganizers))
	assert.True(t, cfg.Allows("planner", PermTimelineWrite))
	assert.False(t, cfg.Allows("planner", PermOrganizers))
	assert.False(t, cfg.Allows("viewer", PermTimelineWrite))
	assert.False(t, cfg.Allows("stranger", PermTimelineWrite))
}

func TestKnownCategory(t *testing.T) {
	cfg := Default("ev-1")
	assert.True(t, cfg.KnownCategory("ceremony"))
	assert.True(t, cfg.KnownCategory(""))
	assert.False(t, cfg.KnownCategory("Fireworks"))

	var open *Config
	assert.True(t, open.KnownCategory("Fireworks"))
	assert.Equal(t, "08:00", open.Anchor())
}

func TestFromFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eventline.yml")
	require.NoError(t, os.WriteFile(path, []byte(GenerateDefault("ev-9")), 0o644))
	cfg, err := FromFile(path)
	require.NoError(t, err)

	data, err := cfg.ToYAML()
	require.NoError(t, err)
	again, err := FromYAML(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestServerValidate(t *testing.T) {
	s := Server{Addr: ":8080", Auth: Auth{JWTSecret: "s"}}
	require.NoError(t, s.Validate())

	s.DB.Driver = "postgres"
	assert.Error(t, s.Validate())
	s.DB.DSN = "postgres://localhost/eventline"
	assert.NoError(t, s.Validate())

	s.Auth.JWTSecret = ""
	assert.Error(t, s.Validate())
}
