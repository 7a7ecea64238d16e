package schedule

import (
	"eventline/internal/domain"
)

// Slot is the provisional start/end of an item.
type Slot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Timing is the derived position of an item in the day. DayOffset counts how
// many midnights the item's start lies past the first item's start.
type Timing struct {
	ID        string `json:"id"`
	Start     string `json:"start"`
	End       string `json:"end"`
	DayOffset int    `json:"day_offset"`
}

// Resequence returns a copy of items with order_index set to the position and
// every time derived from the previous item's end. The first item starts at
// anchor; an empty anchor falls back to the first item's own time, then to
// DefaultAnchor. The input slice is never modified.
func Resequence(items []domain.TimelineItem, anchor string) ([]domain.TimelineItem, error) {
	out := cloneItems(items)
	if len(out) == 0 {
		return out, nil
	}
	start := anchor
	if start == "" {
		start = out[0].Time
	}
	if start == "" {
		start = DefaultAnchor
	}
	cur, err := ToMinutes(start)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].OrderIndex = i
		out[i].Time = ToTimeString(cur)
		cur += out[i].Duration
	}
	return out, nil
}

// Move returns a copy of items with the element at from re-inserted at to.
func Move(items []domain.TimelineItem, from, to int) ([]domain.TimelineItem, error) {
	if from < 0 || from >= len(items) || to < 0 || to >= len(items) {
		return nil, ErrInvalidIndex
	}
	out := cloneItems(items)
	moved := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]domain.TimelineItem{moved}, out[to:]...)...)
	return out, nil
}

// ComputePreview shows where every item would land if the item at dragged
// were dropped at drop. It runs the same Move and Resequence the commit runs.
func ComputePreview(items []domain.TimelineItem, dragged, drop int, anchor string) (map[string]Slot, error) {
	moved, err := Move(items, dragged, drop)
	if err != nil {
		return nil, err
	}
	seq, err := Resequence(moved, anchor)
	if err != nil {
		return nil, err
	}
	res := make(map[string]Slot, len(seq))
	for _, it := range seq {
		end, err := EndTime(it.Time, it.Duration)
		if err != nil {
			return nil, err
		}
		res[it.ID] = Slot{Start: it.Time, End: end}
	}
	return res, nil
}

// TotalDuration sums durations; ordering does not matter.
func TotalDuration(items []domain.TimelineItem) int {
	total := 0
	for _, it := range items {
		total += it.Duration
	}
	return total
}

// EndOfDay is the end time of the last item, or the anchor for an empty list.
func EndOfDay(items []domain.TimelineItem, anchor string) (string, error) {
	if len(items) == 0 {
		if anchor == "" {
			return DefaultAnchor, nil
		}
		if _, err := ToMinutes(anchor); err != nil {
			return "", err
		}
		return anchor, nil
	}
	last := items[len(items)-1]
	return EndTime(last.Time, last.Duration)
}

// Timings reports start, end and day offset for a sequenced list.
func Timings(items []domain.TimelineItem) ([]Timing, error) {
	res := make([]Timing, 0, len(items))
	if len(items) == 0 {
		return res, nil
	}
	cur, err := ToMinutes(items[0].Time)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		res = append(res, Timing{
			ID:        it.ID,
			Start:     ToTimeString(cur),
			End:       ToTimeString(cur + it.Duration),
			DayOffset: cur / minutesPerDay,
		})
		cur += it.Duration
	}
	return res, nil
}

// CrossesMidnight reports whether a sequenced list ends on a later day than it starts.
func CrossesMidnight(items []domain.TimelineItem) (bool, error) {
	if len(items) == 0 {
		return false, nil
	}
	start, err := ToMinutes(items[0].Time)
	if err != nil {
		return false, err
	}
	return start+TotalDuration(items) > minutesPerDay, nil
}

func cloneItems(items []domain.TimelineItem) []domain.TimelineItem {
	out := make([]domain.TimelineItem, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}
