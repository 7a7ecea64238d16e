package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventline/internal/domain"
)

func projectionFixture(t *testing.T) []domain.TimelineItem {
	t.Helper()
	items := []domain.TimelineItem{
		{ID: "hair", Duration: 90, AssignedPersonIDs: []string{"bride", "maid"}},
		{ID: "setup", Duration: 60, AssignedVendorIDs: []string{"florist"}},
		{ID: "ceremony", Duration: 45, AssignedPersonIDs: []string{"bride"}, AssignedVendorIDs: []string{"photo"}},
		{ID: "toast", Duration: 15, AssignedRole: "best man"},
	}
	out, err := Resequence(items, "08:00")
	require.NoError(t, err)
	return out
}

func entryIDs(entries []Entry) []string {
	return ids(Items(entries))
}

func TestProjectPersonal(t *testing.T) {
	items := projectionFixture(t)

	got, err := Project(items, Viewer{ID: "bride", Kind: ViewerPerson}, ModePersonal)
	require.NoError(t, err)
	assert.Equal(t, []string{"hair", "ceremony"}, entryIDs(got))
	for _, e := range got {
		assert.True(t, e.Mine)
		assert.Contains(t, e.Item.AssignedPersonIDs, "bride")
	}
	assert.Equal(t, "09:30", got[0].End)

	got, err = Project(items, Viewer{ID: "florist", Kind: ViewerVendor}, ModePersonal)
	require.NoError(t, err)
	assert.Equal(t, []string{"setup"}, entryIDs(got))

	got, err = Project(items, Viewer{ID: "florist", Kind: ViewerPerson}, ModePersonal)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = Project(items, Viewer{Kind: ViewerPerson, Role: "best man"}, ModePersonal)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestProjectGlobalAnnotates(t *testing.T) {
	items := projectionFixture(t)

	got, err := Project(items, Viewer{ID: "photo", Kind: ViewerVendor}, ModeGlobal)
	require.NoError(t, err)
	require.Len(t, got, len(items))
	mine := map[string]bool{}
	for _, e := range got {
		mine[e.Item.ID] = e.Mine
	}
	assert.Equal(t, map[string]bool{"hair": false, "setup": false, "ceremony": true, "toast": false}, mine)

	guest, err := Project(items, Viewer{Kind: ViewerGuest}, ModeGlobal)
	require.NoError(t, err)
	assert.Len(t, guest, len(items))
	for _, e := range guest {
		assert.False(t, e.Mine)
	}
}

func TestProjectIdempotentAndPure(t *testing.T) {
	items := projectionFixture(t)
	v := Viewer{ID: "bride", Kind: ViewerPerson}

	once, err := Project(items, v, ModePersonal)
	require.NoError(t, err)
	twice, err := Project(Items(once), v, ModePersonal)
	require.NoError(t, err)
	assert.Equal(t, once, twice)

	once[0].Item.AssignedPersonIDs[0] = "someone else"
	assert.Equal(t, "bride", items[0].AssignedPersonIDs[0])
}

func TestProjectRejectsBadTime(t *testing.T) {
	items := projectionFixture(t)
	items[2].Time = "25:00"

	_, err := Project(items, Viewer{Kind: ViewerGuest}, ModeGlobal)
	require.ErrorIs(t, err, ErrInvalidTimeFormat)
	assert.Contains(t, err.Error(), "ceremony")

	got, err := Project(items, Viewer{ID: "florist", Kind: ViewerVendor}, ModePersonal)
	require.NoError(t, err, "filtered-out items are not parsed")
	assert.Equal(t, []string{"setup"}, entryIDs(got))
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModePersonal, ParseMode("personal"))
	assert.Equal(t, ModeGlobal, ParseMode("global"))
	assert.Equal(t, ModeGlobal, ParseMode(""))
}
