package schedule

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventline/internal/domain"
)

func item(id string, duration int) domain.TimelineItem {
	return domain.TimelineItem{ID: id, Title: id, Duration: duration, Status: domain.StatusScheduled}
}

func times(items []domain.TimelineItem) map[string]string {
	out := make(map[string]string, len(items))
	for _, it := range items {
		out[it.ID] = it.Time
	}
	return out
}

func randomItems(r *rand.Rand, n int) []domain.TimelineItem {
	items := make([]domain.TimelineItem, n)
	for i := range items {
		items[i] = item(fmt.Sprintf("it-%d", i), 5+r.Intn(180))
		items[i].OrderIndex = r.Intn(100)
		items[i].Time = ToTimeString(r.Intn(minutesPerDay))
	}
	return items
}

func TestResequenceExample(t *testing.T) {
	a := item("A", 60)
	a.Time = "08:00"
	items := []domain.TimelineItem{a, item("B", 30), item("C", 90)}

	got, err := Resequence(items, "08:00")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "08:00", "B": "09:00", "C": "09:30"}, times(got))
	for i, it := range got {
		assert.Equal(t, i, it.OrderIndex)
	}
	end, err := EndOfDay(got, "08:00")
	require.NoError(t, err)
	assert.Equal(t, "11:00", end)

	reordered, err := Move(got, 1, 0)
	require.NoError(t, err)
	again, err := Resequence(reordered, "08:00")
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A", "C"}, ids(again))
	assert.Equal(t, map[string]string{"B": "08:00", "A": "08:30", "C": "09:30"}, times(again))
}

func TestResequenceAnchorFallback(t *testing.T) {
	first := item("A", 30)
	first.Time = "10:15"
	got, err := Resequence([]domain.TimelineItem{first, item("B", 15)}, "")
	require.NoError(t, err)
	assert.Equal(t, "10:15", got[0].Time)
	assert.Equal(t, "10:45", got[1].Time)

	got, err = Resequence([]domain.TimelineItem{item("A", 30)}, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultAnchor, got[0].Time)

	got, err = Resequence(nil, "")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = Resequence([]domain.TimelineItem{item("A", 30)}, "25:00")
	assert.ErrorIs(t, err, ErrInvalidTimeFormat)
}

func TestResequenceDoesNotMutateInput(t *testing.T) {
	in := []domain.TimelineItem{item("A", 30), item("B", 45)}
	in[0].AssignedPersonIDs = []string{"p1"}
	in[1].OrderIndex = 7

	out, err := Resequence(in, "09:00")
	require.NoError(t, err)
	out[0].AssignedPersonIDs[0] = "changed"

	assert.Equal(t, "", in[0].Time)
	assert.Equal(t, 7, in[1].OrderIndex)
	assert.Equal(t, "p1", in[0].AssignedPersonIDs[0])
}

func TestResequenceProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		items := randomItems(r, 1+r.Intn(12))
		anchor := ToTimeString(r.Intn(minutesPerDay))

		once, err := Resequence(items, anchor)
		require.NoError(t, err)
		twice, err := Resequence(items, anchor)
		require.NoError(t, err)
		assert.Equal(t, once, twice)

		again, err := Resequence(once, anchor)
		require.NoError(t, err)
		assert.Equal(t, once, again)

		assert.Equal(t, anchor, once[0].Time)
		for i := range once {
			assert.Equal(t, i, once[i].OrderIndex)
			assert.Equal(t, items[i].Duration, once[i].Duration)
			assert.Equal(t, items[i].Title, once[i].Title)
			if i == 0 {
				continue
			}
			prev, _ := ToMinutes(once[i-1].Time)
			cur, _ := ToMinutes(once[i].Time)
			assert.Equal(t, (prev+once[i-1].Duration)%minutesPerDay, cur)
		}
	}
}

func TestPreviewMatchesCommit(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		items, err := Resequence(randomItems(r, 2+r.Intn(10)), "08:00")
		require.NoError(t, err)
		from, to := r.Intn(len(items)), r.Intn(len(items))

		preview, err := ComputePreview(items, from, to, "08:00")
		require.NoError(t, err)

		moved, err := Move(items, from, to)
		require.NoError(t, err)
		committed, err := Resequence(moved, "08:00")
		require.NoError(t, err)

		require.Len(t, preview, len(committed))
		for _, it := range committed {
			end, _ := EndTime(it.Time, it.Duration)
			assert.Equal(t, Slot{Start: it.Time, End: end}, preview[it.ID])
		}
		assert.Equal(t, TotalDuration(items), TotalDuration(committed))
	}
}

func TestMove(t *testing.T) {
	items := []domain.TimelineItem{item("A", 1), item("B", 1), item("C", 1), item("D", 1)}

	got, err := Move(items, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C", "D", "A"}, ids(got))

	got, err = Move(items, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "D", "B", "C"}, ids(got))
	assert.Equal(t, []string{"A", "B", "C", "D"}, ids(items))

	_, err = Move(items, -1, 0)
	assert.ErrorIs(t, err, ErrInvalidIndex)
	_, err = Move(items, 0, 4)
	assert.ErrorIs(t, err, ErrInvalidIndex)
}

func TestEndOfDayEmpty(t *testing.T) {
	end, err := EndOfDay(nil, "")
	require.NoError(t, err)
	assert.Equal(t, "08:00", end)

	end, err = EndOfDay(nil, "14:30")
	require.NoError(t, err)
	assert.Equal(t, "14:30", end)
}

func TestTimingsReportDayOffset(t *testing.T) {
	items, err := Resequence([]domain.TimelineItem{item("party", 90), item("cake", 30), item("exit", 60)}, "23:00")
	require.NoError(t, err)

	got, err := Timings(items)
	require.NoError(t, err)
	assert.Equal(t, []Timing{
		{ID: "party", Start: "23:00", End: "00:30", DayOffset: 0},
		{ID: "cake", Start: "00:30", End: "01:00", DayOffset: 1},
		{ID: "exit", Start: "01:00", End: "02:00", DayOffset: 1},
	}, got)

	cross, err := CrossesMidnight(items)
	require.NoError(t, err)
	assert.True(t, cross)
}

func ids(items []domain.TimelineItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
