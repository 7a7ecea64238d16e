package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"eventline/internal/domain"
)

// DefaultTimeout bounds every persistence call made by a Store.
const DefaultTimeout = 10 * time.Second

// Persister is the storage collaborator of a Store.
type Persister interface {
	// FetchOrdered returns the event's items by ascending order_index together
	// with the event's current timeline version.
	FetchOrdered(ctx context.Context, eventID string) ([]domain.TimelineItem, int64, error)
	// Atomic runs fn in one transaction. It fails with ErrConflict when the
	// stored version differs from expectedVersion and returns the bumped
	// version on success.
	Atomic(ctx context.Context, eventID string, expectedVersion int64, fn func(tx Tx) error) (int64, error)
}

// Tx exposes the write primitives available inside Persister.Atomic.
type Tx interface {
	InsertItem(ctx context.Context, item domain.TimelineItem) (domain.TimelineItem, error)
	UpdateItem(ctx context.Context, id string, patch domain.ItemPatch) (domain.TimelineItem, error)
	DeleteItem(ctx context.Context, id string) error
}

// Summary aggregates a loaded timeline.
type Summary struct {
	TotalDuration   int    `json:"total_duration"`
	Formatted       string `json:"total_duration_formatted"`
	EndOfDay        string `json:"end_of_day"`
	Version         int64  `json:"version"`
	CrossesMidnight bool   `json:"crosses_midnight"`
}

// Store owns the ordered item list of one event. Every successful mutation
// leaves the list with dense order indexes and derived times, and is written
// in a single transaction; a failed mutation leaves the list untouched.
type Store struct {
	mu      sync.Mutex
	eventID string
	anchor  string
	p       Persister

	items   []domain.TimelineItem
	version int64
	loaded  bool

	Timeout time.Duration
}

// NewStore binds a store to eventID. anchor is the start of day used while
// the list is empty; an empty anchor means DefaultAnchor.
func NewStore(eventID, anchor string, p Persister) *Store {
	if anchor == "" {
		anchor = DefaultAnchor
	}
	return &Store{eventID: eventID, anchor: anchor, p: p, Timeout: DefaultTimeout}
}

// EventID is the event the store is bound to.
func (s *Store) EventID() string { return s.eventID }

// Load replaces the in-memory list with the stored one.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	items, version, err := s.p.FetchOrdered(ctx, s.eventID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	s.items = cloneItems(items)
	s.version = version
	s.loaded = true
	return nil
}

// Items returns a copy of the current list.
func (s *Store) Items() []domain.TimelineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.items)
}

// Version is the timeline version the list was loaded or last written at.
func (s *Store) Version() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// IndexOf returns the position of id or -1.
func (s *Store) IndexOf(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(id)
}

// DayStart is the time the first item starts at, or the configured anchor.
func (s *Store) DayStart() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dayStart()
}

// Summary computes the day totals of the current list.
func (s *Store) Summary() (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	end, err := EndOfDay(s.items, s.anchor)
	if err != nil {
		return Summary{}, err
	}
	cross, err := CrossesMidnight(s.items)
	if err != nil {
		return Summary{}, err
	}
	total := TotalDuration(s.items)
	return Summary{
		TotalDuration:   total,
		Formatted:       FormatDuration(total),
		EndOfDay:        end,
		Version:         s.version,
		CrossesMidnight: cross,
	}, nil
}

// Add appends item at the current end of day. On an empty list the item's
// own time, or the configured anchor, starts the day. Later items may only
// carry the current end of day as their time.
func (s *Store) Add(ctx context.Context, item domain.TimelineItem) (domain.TimelineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return domain.TimelineItem{}, ErrNotLoaded
	}
	if item.Duration <= 0 {
		return domain.TimelineItem{}, ErrInvalidDuration
	}
	if item.Time != "" {
		if _, err := ToMinutes(item.Time); err != nil {
			return domain.TimelineItem{}, err
		}
	}
	if item.Status != "" && !ValidStatus(item.Status) {
		return domain.TimelineItem{}, fmt.Errorf("%w: %q", ErrInvalidStatus, item.Status)
	}
	if item.Priority != "" && !ValidPriority(item.Priority) {
		return domain.TimelineItem{}, fmt.Errorf("%w: %q", ErrInvalidPriority, item.Priority)
	}
	anchor := s.dayStart()
	if len(s.items) == 0 && item.Time != "" {
		anchor = item.Time
	}
	if len(s.items) > 0 && item.Time != "" {
		end, err := EndOfDay(s.items, s.anchor)
		if err != nil {
			return domain.TimelineItem{}, err
		}
		if end != item.Time {
			return domain.TimelineItem{}, ErrDerivedTime
		}
	}
	item = item.Clone()
	item.ID = ""
	item.EventID = s.eventID
	if item.Status == "" {
		item.Status = domain.StatusScheduled
	}
	if item.Priority == "" {
		item.Priority = domain.PriorityMedium
	}
	next, err := Resequence(append(cloneItems(s.items), item), anchor)
	if err != nil {
		return domain.TimelineItem{}, err
	}
	last := len(next) - 1
	err = s.commit(ctx, "add", func(ctx context.Context, tx Tx) error {
		if err := writeChanges(ctx, tx, s.items, next[:last], ""); err != nil {
			return err
		}
		created, err := tx.InsertItem(ctx, next[last])
		if err != nil {
			return err
		}
		next[last] = created
		return nil
	})
	if err != nil {
		return domain.TimelineItem{}, err
	}
	s.items = next
	return next[last].Clone(), nil
}

// Update applies a partial change to one item. A new duration, or a new time
// on the first item, shifts every following item.
func (s *Store) Update(ctx context.Context, id string, patch domain.ItemPatch) (domain.TimelineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return domain.TimelineItem{}, ErrNotLoaded
	}
	idx := s.indexOf(id)
	if idx < 0 {
		return domain.TimelineItem{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cur := s.items[idx]
	if patch.OrderIndex != nil && *patch.OrderIndex != cur.OrderIndex {
		return domain.TimelineItem{}, fmt.Errorf("%w: positions change through reorder", ErrInvalidIndex)
	}
	patch.OrderIndex = nil
	if patch.Duration != nil && *patch.Duration <= 0 {
		return domain.TimelineItem{}, ErrInvalidDuration
	}
	if patch.Status != nil && !ValidStatus(*patch.Status) {
		return domain.TimelineItem{}, fmt.Errorf("%w: %q", ErrInvalidStatus, *patch.Status)
	}
	if patch.Priority != nil && !ValidPriority(*patch.Priority) {
		return domain.TimelineItem{}, fmt.Errorf("%w: %q", ErrInvalidPriority, *patch.Priority)
	}
	if patch.Time != nil {
		if _, err := ToMinutes(*patch.Time); err != nil {
			return domain.TimelineItem{}, err
		}
		if *patch.Time == cur.Time {
			patch.Time = nil
		} else if idx != 0 {
			return domain.TimelineItem{}, ErrDerivedTime
		}
	}
	if patch.Duration != nil && *patch.Duration == cur.Duration {
		patch.Duration = nil
	}
	if patch.Empty() {
		return cur.Clone(), nil
	}

	next := cloneItems(s.items)
	next[idx] = patch.Apply(cur)
	if patch.Duration != nil || patch.Time != nil {
		anchor := s.dayStart()
		if patch.Time != nil {
			anchor = *patch.Time
		}
		var err error
		if next, err = Resequence(next, anchor); err != nil {
			return domain.TimelineItem{}, err
		}
	}
	err := s.commit(ctx, "update", func(ctx context.Context, tx Tx) error {
		updated, err := tx.UpdateItem(ctx, id, patch)
		if err != nil {
			return &ItemError{ItemID: id, Err: err}
		}
		if err := writeChanges(ctx, tx, s.items, next, id); err != nil {
			return err
		}
		updated.OrderIndex = next[idx].OrderIndex
		updated.Time = next[idx].Time
		next[idx] = updated
		return nil
	})
	if err != nil {
		return domain.TimelineItem{}, err
	}
	s.items = next
	return next[idx].Clone(), nil
}

// SetStatus toggles an item's progress status.
func (s *Store) SetStatus(ctx context.Context, id, status string) (domain.TimelineItem, error) {
	if !ValidStatus(status) {
		return domain.TimelineItem{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.Update(ctx, id, domain.ItemPatch{Status: &status})
}

// Remove deletes an item and closes the gap it leaves. The day keeps its
// start time even when the first item goes.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNotLoaded
	}
	idx := s.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	rest := cloneItems(s.items)
	rest = append(rest[:idx], rest[idx+1:]...)
	next, err := Resequence(rest, s.dayStart())
	if err != nil {
		return err
	}
	err = s.commit(ctx, "remove", func(ctx context.Context, tx Tx) error {
		if err := tx.DeleteItem(ctx, id); err != nil {
			return &ItemError{ItemID: id, Err: err}
		}
		return writeChanges(ctx, tx, s.items, next, id)
	})
	if err != nil {
		return err
	}
	s.items = next
	return nil
}

// Reorder moves the item at from to position to and rewrites every shifted
// item in one transaction. On failure nothing is written and the list is kept.
func (s *Store) Reorder(ctx context.Context, from, to int) ([]domain.TimelineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil, ErrNotLoaded
	}
	moved, err := Move(s.items, from, to)
	if err != nil {
		return nil, err
	}
	if from == to {
		return cloneItems(s.items), nil
	}
	next, err := Resequence(moved, s.dayStart())
	if err != nil {
		return nil, err
	}
	err = s.commit(ctx, "reorder", func(ctx context.Context, tx Tx) error {
		return writeChanges(ctx, tx, s.items, next, "")
	})
	if err != nil {
		return nil, err
	}
	s.items = next
	return cloneItems(next), nil
}

// Preview returns the provisional slots of a drag from one index to another.
func (s *Store) Preview(from, to int) (map[string]Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ComputePreview(s.items, from, to, s.dayStart())
}

// Normalize rewrites stored rows whose position or time drifted from the
// derived sequence. It reports how many items it fixed.
func (s *Store) Normalize(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return 0, ErrNotLoaded
	}
	next, err := Resequence(s.items, s.dayStart())
	if err != nil {
		return 0, err
	}
	changed := 0
	for i := range next {
		if next[i].OrderIndex != s.items[i].OrderIndex || next[i].Time != s.items[i].Time {
			changed++
		}
	}
	if changed == 0 {
		return 0, nil
	}
	err = s.commit(ctx, "normalize", func(ctx context.Context, tx Tx) error {
		return writeChanges(ctx, tx, s.items, next, "")
	})
	if err != nil {
		return 0, err
	}
	s.items = next
	return changed, nil
}

func (s *Store) commit(ctx context.Context, op string, fn func(ctx context.Context, tx Tx) error) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	version, err := s.p.Atomic(ctx, s.eventID, s.version, func(tx Tx) error {
		return fn(ctx, tx)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return persistError(op, err)
	}
	s.version = version
	return nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.Timeout)
}

func (s *Store) indexOf(id string) int {
	for i, it := range s.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) dayStart() string {
	if len(s.items) > 0 && ValidTime(s.items[0].Time) {
		return s.items[0].Time
	}
	return s.anchor
}

// writeChanges persists the position and time of every item in next that
// differs from prev. skip names an item already written by the caller.
func writeChanges(ctx context.Context, tx Tx, prev, next []domain.TimelineItem, skip string) error {
	old := make(map[string]domain.TimelineItem, len(prev))
	for _, it := range prev {
		old[it.ID] = it
	}
	for _, it := range next {
		if it.ID == "" || it.ID == skip {
			continue
		}
		if o, ok := old[it.ID]; ok && o.OrderIndex == it.OrderIndex && o.Time == it.Time {
			continue
		}
		idx, tm := it.OrderIndex, it.Time
		if _, err := tx.UpdateItem(ctx, it.ID, domain.ItemPatch{OrderIndex: &idx, Time: &tm}); err != nil {
			return &ItemError{ItemID: it.ID, Err: err}
		}
	}
	return nil
}

// ValidStatus reports whether status is one of the item statuses.
func ValidStatus(status string) bool {
	switch status {
	case domain.StatusScheduled, domain.StatusInProgress, domain.StatusCompleted, domain.StatusDelayed:
		return true
	}
	return false
}

// ValidPriority reports whether priority is one of the item priorities.
func ValidPriority(priority string) bool {
	switch priority {
	case domain.PriorityHigh, domain.PriorityMedium, domain.PriorityLow:
		return true
	}
	return false
}
