package calendar

import (
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventline/internal/domain"
	"eventline/internal/schedule"
)

var stamp = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func lateNight(t *testing.T) []domain.TimelineItem {
	t.Helper()
	items, err := schedule.Resequence([]domain.TimelineItem{
		{ID: "dinner", Title: "Dinner", Duration: 120, Category: "reception", AssignedPersonIDs: []string{"p-1"}},
		{ID: "party", Title: "Party", Duration: 90, Notes: "DJ until late"},
	}, "22:00")
	require.NoError(t, err)
	return items
}

func TestBuildHonoursDayOffset(t *testing.T) {
	items := lateNight(t)
	ev := domain.Event{ID: "ev-1", Name: "Wedding", EventDate: "2026-06-20", Venue: "Chateau"}
	entries, err := schedule.Project(items, schedule.Viewer{Kind: schedule.ViewerGuest}, schedule.ModeGlobal)
	require.NoError(t, err)

	out, err := Build(ev, items, entries, stamp)
	require.NoError(t, err)
	assert.Contains(t, out, "DTSTART:20260620T220000Z")
	assert.Contains(t, out, "DTSTART:20260621T000000Z")
	assert.Contains(t, out, "DTEND:20260621T013000Z")
	assert.Contains(t, out, "LOCATION:Chateau")

	cal, err := ics.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, cal.Events(), 2)
	assert.Equal(t, "Dinner", cal.Events()[0].GetProperty(ics.ComponentPropertySummary).Value)
	assert.Equal(t, "reception", cal.Events()[0].GetProperty(ics.ComponentPropertyCategories).Value)
}

func TestBuildPersonalKeepsFullDayOffsets(t *testing.T) {
	items := lateNight(t)
	items[1].AssignedVendorIDs = []string{"v-1"}
	ev := domain.Event{ID: "ev-1", Name: "Wedding", EventDate: "2026-06-20"}
	entries, err := schedule.Project(items, schedule.Viewer{ID: "v-1", Kind: schedule.ViewerVendor}, schedule.ModePersonal)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	out, err := Build(ev, items, entries, stamp)
	require.NoError(t, err)
	assert.Contains(t, out, "DTSTART:20260621T000000Z")
	assert.NotContains(t, out, "Dinner")
}

func TestBuildUsesEventTimezone(t *testing.T) {
	items, err := schedule.Resequence([]domain.TimelineItem{{ID: "a", Title: "Ceremony", Duration: 45}}, "14:00")
	require.NoError(t, err)
	ev := domain.Event{ID: "ev-1", Name: "Wedding", EventDate: "2026-06-20", Timezone: "Europe/Paris"}
	entries, err := schedule.Project(items, schedule.Viewer{Kind: schedule.ViewerGuest}, schedule.ModeGlobal)
	require.NoError(t, err)
	out, err := Build(ev, items, entries, stamp)
	require.NoError(t, err)
	assert.Contains(t, out, "DTSTART:20260620T120000Z")
}

func TestBuildRequiresDate(t *testing.T) {
	_, err := Build(domain.Event{ID: "ev-1"}, nil, nil, stamp)
	assert.ErrorIs(t, err, ErrNoEventDate)

	_, err = Build(domain.Event{ID: "ev-1", EventDate: "2026-06-20", Timezone: "Mars/Olympus"}, nil, nil, stamp)
	assert.Error(t, err)
}
