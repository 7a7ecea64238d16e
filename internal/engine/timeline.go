package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"eventline/internal/calendar"
	"eventline/internal/config"
	"eventline/internal/domain"
	"eventline/internal/events"
	"eventline/internal/repo"
	"eventline/internal/schedule"
)

// Change identifies who mutates a timeline and, optionally, the version the
// caller last saw. A zero IfVersion skips the check.
type Change struct {
	ActorID   string
	IfVersion int64
}

// TimelineView is a loaded timeline with its derived figures.
type TimelineView struct {
	EventID string                `json:"event_id"`
	Items   []domain.TimelineItem `json:"items"`
	Summary schedule.Summary      `json:"summary"`
	Timings []schedule.Timing     `json:"timings"`
}

// persister backs a schedule.Store with the SQL repo. Every batch bumps the
// event's timeline version and appends one activity row.
type persister struct {
	e       Engine
	actorID string
}

func (p persister) FetchOrdered(ctx context.Context, eventID string) ([]domain.TimelineItem, int64, error) {
	tx, err := p.e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	defer tx.Rollback()
	items, err := p.e.Repo.ListTimelineItems(ctx, tx, eventID)
	if err != nil {
		return nil, 0, err
	}
	version, err := p.e.Repo.TimelineVersion(ctx, tx, eventID)
	if err != nil {
		return nil, 0, err
	}
	return items, version, nil
}

func (p persister) Atomic(ctx context.Context, eventID string, expected int64, fn func(tx schedule.Tx) error) (int64, error) {
	tx, err := p.e.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := p.e.ts()
	version, err := p.e.Repo.BumpTimelineVersion(ctx, tx, eventID, expected, now)
	if errors.Is(err, repo.ErrVersionMismatch) {
		return 0, schedule.ErrConflict
	}
	if err != nil {
		return 0, err
	}
	itx := &itemTx{repo: p.e.Repo, tx: tx, eventID: eventID, now: now}
	if err := fn(itx); err != nil {
		return 0, err
	}
	payload := events.Payload{"version": version}
	if len(itx.inserted) > 0 {
		payload["inserted"] = itx.inserted
	}
	if len(itx.updated) > 0 {
		payload["updated"] = itx.updated
	}
	if len(itx.deleted) > 0 {
		payload["deleted"] = itx.deleted
	}
	if err := p.e.Events.Append(ctx, tx, events.TimelineChanged, eventID, "timeline", eventID, p.actorID, payload); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return version, nil
}

type itemTx struct {
	repo    repo.Repo
	tx      *sql.Tx
	eventID string
	now     string

	inserted []string
	updated  []string
	deleted  []string
}

func (t *itemTx) InsertItem(ctx context.Context, it domain.TimelineItem) (domain.TimelineItem, error) {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	it.EventID = t.eventID
	it.CreatedAt, it.UpdatedAt = t.now, t.now
	if err := t.repo.InsertTimelineItem(ctx, t.tx, it); err != nil {
		return domain.TimelineItem{}, err
	}
	t.inserted = append(t.inserted, it.ID)
	return t.repo.GetTimelineItem(ctx, t.tx, it.ID)
}

func (t *itemTx) UpdateItem(ctx context.Context, id string, patch domain.ItemPatch) (domain.TimelineItem, error) {
	err := t.repo.UpdateTimelineItem(ctx, t.tx, id, patch, t.now)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.TimelineItem{}, schedule.ErrNotFound
	}
	if err != nil {
		return domain.TimelineItem{}, err
	}
	if !slices.Contains(t.updated, id) {
		t.updated = append(t.updated, id)
	}
	return t.repo.GetTimelineItem(ctx, t.tx, id)
}

func (t *itemTx) DeleteItem(ctx context.Context, id string) error {
	err := t.repo.DeleteTimelineItem(ctx, t.tx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return schedule.ErrNotFound
	}
	if err != nil {
		return err
	}
	t.deleted = append(t.deleted, id)
	return nil
}

// openTimeline checks access and loads the event's timeline. An empty perm
// only requires the actor to organize the event.
func (e Engine) openTimeline(ctx context.Context, eventID, actorID, perm string) (*schedule.Store, *config.Config, error) {
	cfg, err := e.config(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := e.Auth.Require(ctx, nil, cfg, eventID, actorID, perm); err != nil {
		return nil, nil, err
	}
	s, err := e.loadStore(ctx, cfg, eventID, actorID)
	return s, cfg, err
}

func (e Engine) loadStore(ctx context.Context, cfg *config.Config, eventID, actorID string) (*schedule.Store, error) {
	s := schedule.NewStore(eventID, cfg.Anchor(), persister{e: e, actorID: actorID})
	s.Timeout = e.StoreTimeout
	if err := s.Load(ctx); err != nil {
		e.logger().Error(ctx, "timeline load failed", "event", eventID, "err", err)
		return nil, err
	}
	return s, nil
}

func checkVersion(s *schedule.Store, want int64) error {
	if want > 0 && s.Version() != want {
		return fmt.Errorf("%w (at version %d, expected %d)", schedule.ErrConflict, s.Version(), want)
	}
	return nil
}

func viewOf(s *schedule.Store) (TimelineView, error) {
	items := s.Items()
	summary, err := s.Summary()
	if err != nil {
		return TimelineView{}, err
	}
	timings, err := schedule.Timings(items)
	if err != nil {
		return TimelineView{}, err
	}
	return TimelineView{EventID: s.EventID(), Items: items, Summary: summary, Timings: timings}, nil
}

// Timeline returns the full ordered timeline for an organizer.
func (e Engine) Timeline(ctx context.Context, eventID, actorID string) (TimelineView, error) {
	s, _, err := e.openTimeline(ctx, eventID, actorID, "")
	if err != nil {
		return TimelineView{}, err
	}
	return viewOf(s)
}

// AddItem appends an item at the end of the day. A zero duration takes the
// event's default duration.
func (e Engine) AddItem(ctx context.Context, eventID string, item domain.TimelineItem, ch Change) (domain.TimelineItem, error) {
	s, cfg, err := e.openTimeline(ctx, eventID, ch.ActorID, config.PermTimelineWrite)
	if err != nil {
		return domain.TimelineItem{}, err
	}
	if err := checkVersion(s, ch.IfVersion); err != nil {
		return domain.TimelineItem{}, err
	}
	item.Title = strings.TrimSpace(item.Title)
	if item.Title == "" {
		return domain.TimelineItem{}, invalid("title", "required")
	}
	if item.Duration == 0 {
		item.Duration = cfg.DefaultDuration()
	}
	if !cfg.KnownCategory(item.Category) {
		return domain.TimelineItem{}, invalid("category", "unknown category "+item.Category)
	}
	if err := e.checkAssignees(ctx, eventID, item.AssignedPersonIDs, item.AssignedVendorIDs); err != nil {
		return domain.TimelineItem{}, err
	}
	created, err := s.Add(ctx, item)
	if err != nil {
		e.logFailure(ctx, "add", eventID, err)
		return domain.TimelineItem{}, err
	}
	e.logger().Info(ctx, "timeline item added", "event", eventID, "item", created.ID, "time", created.Time)
	return created, nil
}

// UpdateItem applies a partial change. Only the first item's time can be set;
// every other time follows from the items before it.
func (e Engine) UpdateItem(ctx context.Context, eventID, id string, patch domain.ItemPatch, ch Change) (domain.TimelineItem, error) {
	s, cfg, err := e.openTimeline(ctx, eventID, ch.ActorID, config.PermTimelineWrite)
	if err != nil {
		return domain.TimelineItem{}, err
	}
	if err := checkVersion(s, ch.IfVersion); err != nil {
		return domain.TimelineItem{}, err
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return domain.TimelineItem{}, invalid("title", "cannot be empty")
		}
		patch.Title = &title
	}
	if patch.Category != nil && !cfg.KnownCategory(*patch.Category) {
		return domain.TimelineItem{}, invalid("category", "unknown category "+*patch.Category)
	}
	var people, vendors []string
	if patch.AssignedPersonIDs != nil {
		people = *patch.AssignedPersonIDs
	}
	if patch.AssignedVendorIDs != nil {
		vendors = *patch.AssignedVendorIDs
	}
	if err := e.checkAssignees(ctx, eventID, people, vendors); err != nil {
		return domain.TimelineItem{}, err
	}
	updated, err := s.Update(ctx, id, patch)
	if err != nil {
		e.logFailure(ctx, "update", eventID, err)
		return domain.TimelineItem{}, err
	}
	return updated, nil
}

// SetItemStatus records progress on the day itself.
func (e Engine) SetItemStatus(ctx context.Context, eventID, id, status string, ch Change) (domain.TimelineItem, error) {
	s, _, err := e.openTimeline(ctx, eventID, ch.ActorID, config.PermTimelineWrite)
	if err != nil {
		return domain.TimelineItem{}, err
	}
	if err := checkVersion(s, ch.IfVersion); err != nil {
		return domain.TimelineItem{}, err
	}
	it, err := s.SetStatus(ctx, id, status)
	if err != nil {
		e.logFailure(ctx, "status", eventID, err)
	}
	return it, err
}

func (e Engine) RemoveItem(ctx context.Context, eventID, id string, ch Change) error {
	s, _, err := e.openTimeline(ctx, eventID, ch.ActorID, config.PermTimelineWrite)
	if err != nil {
		return err
	}
	if err := checkVersion(s, ch.IfVersion); err != nil {
		return err
	}
	if err := s.Remove(ctx, id); err != nil {
		e.logFailure(ctx, "remove", eventID, err)
		return err
	}
	return nil
}

// ReorderItems moves the item at position from to position to.
func (e Engine) ReorderItems(ctx context.Context, eventID string, from, to int, ch Change) (TimelineView, error) {
	s, _, err := e.openTimeline(ctx, eventID, ch.ActorID, config.PermTimelineWrite)
	if err != nil {
		return TimelineView{}, err
	}
	if err := checkVersion(s, ch.IfVersion); err != nil {
		return TimelineView{}, err
	}
	if _, err := s.Reorder(ctx, from, to); err != nil {
		e.logFailure(ctx, "reorder", eventID, err)
		return TimelineView{}, err
	}
	e.logger().Info(ctx, "timeline reordered", "event", eventID, "from", from, "to", to)
	return viewOf(s)
}

// MoveItem moves the item with the given id to position to.
func (e Engine) MoveItem(ctx context.Context, eventID, id string, to int, ch Change) (TimelineView, error) {
	s, _, err := e.openTimeline(ctx, eventID, ch.ActorID, config.PermTimelineWrite)
	if err != nil {
		return TimelineView{}, err
	}
	if err := checkVersion(s, ch.IfVersion); err != nil {
		return TimelineView{}, err
	}
	from := s.IndexOf(id)
	if from < 0 {
		return TimelineView{}, fmt.Errorf("%w: %s", schedule.ErrNotFound, id)
	}
	if _, err := s.Reorder(ctx, from, to); err != nil {
		e.logFailure(ctx, "reorder", eventID, err)
		return TimelineView{}, err
	}
	return viewOf(s)
}

// PreviewMove returns the slots every item would get if the move were
// committed. Nothing is written.
func (e Engine) PreviewMove(ctx context.Context, eventID string, from, to int, actorID string) (map[string]schedule.Slot, error) {
	s, _, err := e.openTimeline(ctx, eventID, actorID, "")
	if err != nil {
		return nil, err
	}
	return s.Preview(from, to)
}

// NormalizeTimeline repairs stored positions and times that drifted from the
// derived sequence and reports how many items changed.
func (e Engine) NormalizeTimeline(ctx context.Context, eventID string, ch Change) (int, error) {
	s, _, err := e.openTimeline(ctx, eventID, ch.ActorID, config.PermTimelineWrite)
	if err != nil {
		return 0, err
	}
	n, err := s.Normalize(ctx)
	if err != nil {
		e.logFailure(ctx, "normalize", eventID, err)
		return 0, err
	}
	if n > 0 {
		e.logger().Warn(ctx, "timeline normalized", "event", eventID, "items", n)
	}
	return n, nil
}

// ProjectTimeline lets an organizer see the timeline as a given viewer would.
func (e Engine) ProjectTimeline(ctx context.Context, eventID string, v schedule.Viewer, mode schedule.Mode, actorID string) ([]schedule.Entry, error) {
	s, _, err := e.openTimeline(ctx, eventID, actorID, "")
	if err != nil {
		return nil, err
	}
	return schedule.Project(s.Items(), v, mode)
}

// ExportCalendar renders the timeline, or one viewer's part of it, as iCalendar.
func (e Engine) ExportCalendar(ctx context.Context, eventID string, v schedule.Viewer, mode schedule.Mode, actorID string) (string, error) {
	s, _, err := e.openTimeline(ctx, eventID, actorID, "")
	if err != nil {
		return "", err
	}
	ev, err := e.Repo.GetEvent(ctx, eventID)
	if err != nil {
		return "", err
	}
	items := s.Items()
	entries, err := schedule.Project(items, v, mode)
	if err != nil {
		return "", err
	}
	return e.buildCalendar(ev, items, entries)
}

func (e Engine) buildCalendar(ev domain.Event, items []domain.TimelineItem, entries []schedule.Entry) (string, error) {
	out, err := calendar.Build(ev, items, entries, e.now())
	if errors.Is(err, calendar.ErrNoEventDate) {
		return "", invalid("event_date", err.Error())
	}
	return out, err
}

// checkAssignees rejects ids that do not name a person or vendor of the event.
func (e Engine) checkAssignees(ctx context.Context, eventID string, people, vendors []string) error {
	if len(people) > 0 {
		list, err := e.Repo.ListPeople(ctx, eventID)
		if err != nil {
			return err
		}
		known := make(map[string]bool, len(list))
		for _, p := range list {
			known[p.ID] = true
		}
		for _, id := range people {
			if !known[id] {
				return invalid("assigned_person_ids", "unknown person "+id)
			}
		}
	}
	if len(vendors) > 0 {
		list, err := e.Repo.ListVendors(ctx, eventID)
		if err != nil {
			return err
		}
		known := make(map[string]bool, len(list))
		for _, v := range list {
			known[v.ID] = true
		}
		for _, id := range vendors {
			if !known[id] {
				return invalid("assigned_vendor_ids", "unknown vendor "+id)
			}
		}
	}
	return nil
}

func (e Engine) logFailure(ctx context.Context, op, eventID string, err error) {
	var pe *schedule.PersistError
	switch {
	case errors.Is(err, schedule.ErrConflict):
		e.logger().Info(ctx, "timeline conflict", "op", op, "event", eventID)
	case errors.As(err, &pe):
		e.logger().Error(ctx, "timeline persist failed", "op", op, "event", eventID, "failed_ids", pe.FailedIDs, "err", pe.Err)
	}
}
