package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventline/internal/domain"
)

func TestPreviewOrder(t *testing.T) {
	items := []domain.TimelineItem{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	ids := func(in []domain.TimelineItem) []string {
		out := make([]string, 0, len(in))
		for _, it := range in {
			out = append(out, it.ID)
		}
		return out
	}
	assert.Equal(t, []string{"b", "c", "a"}, ids(previewOrder(items, 0, 2)))
	assert.Equal(t, []string{"c", "a", "b"}, ids(previewOrder(items, 2, 0)))
	assert.Equal(t, []string{"a", "b", "c"}, ids(previewOrder(items, 0, 7)))
	assert.Equal(t, []string{"a", "b", "c"}, ids(items), "input untouched")
}

func TestItemFlagsPatchOnlyChanged(t *testing.T) {
	var f itemFlags
	cmd := &cobra.Command{Use: "update"}
	f.bind(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{"--duration", "30", "--person", "p1", "--person", "p2", "--notes", ""}))

	p := f.patch(cmd)
	require.NotNil(t, p.Duration)
	assert.Equal(t, 30, *p.Duration)
	require.NotNil(t, p.AssignedPersonIDs)
	assert.Equal(t, []string{"p1", "p2"}, *p.AssignedPersonIDs)
	require.NotNil(t, p.Notes)
	assert.Equal(t, "", *p.Notes)
	assert.Nil(t, p.Title)
	assert.Nil(t, p.Time)
	assert.Nil(t, p.AssignedVendorIDs)
}

func TestServerConfigDefaults(t *testing.T) {
	initConfig()
	s, err := serverConfig()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", s.DB.Driver)
	assert.Equal(t, "eventline", s.Auth.JWTIssuer)
	assert.Equal(t, "12h0m0s", s.Auth.TokenTTL.String())
}
