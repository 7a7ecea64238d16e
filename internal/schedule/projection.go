package schedule

import (
	"fmt"
	"slices"

	"eventline/internal/domain"
)

// Viewer kinds.
const (
	ViewerAdmin  = "admin"
	ViewerPerson = "person"
	ViewerVendor = "vendor"
	ViewerGuest  = "guest"
)

// Mode selects which items a projection keeps.
type Mode string

const (
	ModePersonal Mode = "personal"
	ModeGlobal   Mode = "global"
)

// ParseMode maps a query value to a Mode; anything unknown is global.
func ParseMode(s string) Mode {
	if Mode(s) == ModePersonal {
		return ModePersonal
	}
	return ModeGlobal
}

// Viewer is the identity a projection is computed for.
type Viewer struct {
	ID   string `json:"id,omitempty"`
	Kind string `json:"kind"`
	Role string `json:"role,omitempty"`
}

// Entry is a projected item with its slot and whether it belongs to the viewer.
type Entry struct {
	Item  domain.TimelineItem `json:"item"`
	Mine  bool                `json:"mine"`
	Start string              `json:"start"`
	End   string              `json:"end"`
}

// Owns reports whether item is assigned to v. Only ids count; role labels
// are informational.
func (v Viewer) Owns(item domain.TimelineItem) bool {
	if v.ID == "" {
		return false
	}
	switch v.Kind {
	case ViewerPerson:
		return slices.Contains(item.AssignedPersonIDs, v.ID)
	case ViewerVendor:
		return slices.Contains(item.AssignedVendorIDs, v.ID)
	}
	return false
}

// Project filters items for v. Personal mode keeps the viewer's own items;
// global mode keeps everything and flags ownership. The input is not modified.
// An item with an unparseable time fails the whole projection.
func Project(items []domain.TimelineItem, v Viewer, mode Mode) ([]Entry, error) {
	out := make([]Entry, 0, len(items))
	for _, it := range items {
		mine := v.Owns(it)
		if mode == ModePersonal && !mine {
			continue
		}
		end, err := EndTime(it.Time, it.Duration)
		if err != nil {
			return nil, fmt.Errorf("item %s: %w", it.ID, err)
		}
		out = append(out, Entry{Item: it.Clone(), Mine: mine, Start: it.Time, End: end})
	}
	return out, nil
}

// Items unwraps projected entries.
func Items(entries []Entry) []domain.TimelineItem {
	out := make([]domain.TimelineItem, len(entries))
	for i, e := range entries {
		out[i] = e.Item.Clone()
	}
	return out
}
