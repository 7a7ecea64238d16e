package schedule

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventline/internal/domain"
)

// memPersister keeps rows in memory and applies a batch only when fn succeeds.
type memPersister struct {
	rows      []domain.TimelineItem
	version   int64
	seq       int
	fetchErr  error
	failIDs   map[string]error
	insertErr error
	block     bool
	atomics   int
}

type memTx struct {
	p    *memPersister
	rows []domain.TimelineItem
}

func (p *memPersister) FetchOrdered(ctx context.Context, eventID string) ([]domain.TimelineItem, int64, error) {
	if p.fetchErr != nil {
		return nil, 0, p.fetchErr
	}
	out := cloneItems(p.rows)
	slices.SortFunc(out, func(a, b domain.TimelineItem) int { return a.OrderIndex - b.OrderIndex })
	return out, p.version, nil
}

func (p *memPersister) Atomic(ctx context.Context, eventID string, expected int64, fn func(tx Tx) error) (int64, error) {
	p.atomics++
	if p.block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if expected != p.version {
		return 0, ErrConflict
	}
	tx := &memTx{p: p, rows: cloneItems(p.rows)}
	if err := fn(tx); err != nil {
		return 0, err
	}
	p.rows = tx.rows
	p.version++
	return p.version, nil
}

func (tx *memTx) InsertItem(ctx context.Context, it domain.TimelineItem) (domain.TimelineItem, error) {
	if tx.p.insertErr != nil {
		return domain.TimelineItem{}, tx.p.insertErr
	}
	tx.p.seq++
	it.ID = fmt.Sprintf("new-%d", tx.p.seq)
	tx.rows = append(tx.rows, it.Clone())
	return it, nil
}

func (tx *memTx) UpdateItem(ctx context.Context, id string, patch domain.ItemPatch) (domain.TimelineItem, error) {
	if err := tx.p.failIDs[id]; err != nil {
		return domain.TimelineItem{}, err
	}
	for i, r := range tx.rows {
		if r.ID == id {
			tx.rows[i] = patch.Apply(r)
			return tx.rows[i].Clone(), nil
		}
	}
	return domain.TimelineItem{}, ErrNotFound
}

func (tx *memTx) DeleteItem(ctx context.Context, id string) error {
	if err := tx.p.failIDs[id]; err != nil {
		return err
	}
	for i, r := range tx.rows {
		if r.ID == id {
			tx.rows = append(tx.rows[:i], tx.rows[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (p *memPersister) byID(id string) domain.TimelineItem {
	for _, r := range p.rows {
		if r.ID == id {
			return r
		}
	}
	return domain.TimelineItem{}
}

// seeded builds a loaded store over A(60) B(30) C(90) starting at 08:00.
func seeded(t *testing.T) (*Store, *memPersister) {
	t.Helper()
	rows, err := Resequence([]domain.TimelineItem{item("A", 60), item("B", 30), item("C", 90)}, "08:00")
	require.NoError(t, err)
	p := &memPersister{rows: rows, version: 3, failIDs: map[string]error{}}
	s := NewStore("ev-1", "", p)
	require.NoError(t, s.Load(context.Background()))
	return s, p
}

func TestStoreLoadFailureKeepsState(t *testing.T) {
	s, p := seeded(t)
	p.fetchErr = errors.New("connection refused")

	err := s.Load(context.Background())
	require.ErrorIs(t, err, ErrLoadFailed)
	assert.Equal(t, []string{"A", "B", "C"}, ids(s.Items()))
	assert.Equal(t, int64(3), s.Version())
}

func TestStoreRequiresLoad(t *testing.T) {
	s := NewStore("ev-1", "", &memPersister{})
	_, err := s.Add(context.Background(), item("", 30))
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = s.Reorder(context.Background(), 0, 0)
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestStoreAddOnEmptyUsesSuppliedTime(t *testing.T) {
	p := &memPersister{}
	s := NewStore("ev-1", "07:00", p)
	require.NoError(t, s.Load(context.Background()))

	first := item("", 45)
	first.Time = "10:00"
	got, err := s.Add(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, "10:00", got.Time)
	assert.Equal(t, 0, got.OrderIndex)
	assert.Equal(t, "ev-1", got.EventID)

	second := item("", 15)
	second.Time = "10:45"
	got, err = s.Add(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, "10:45", got.Time)
	assert.Equal(t, 1, got.OrderIndex)
	assert.Equal(t, domain.PriorityMedium, got.Priority)
	assert.Equal(t, int64(2), s.Version())
	assert.Len(t, p.rows, 2)
}

func TestStoreAddOnEmptyUsesConfiguredAnchor(t *testing.T) {
	s := NewStore("ev-1", "07:30", &memPersister{})
	require.NoError(t, s.Load(context.Background()))
	got, err := s.Add(context.Background(), item("", 45))
	require.NoError(t, err)
	assert.Equal(t, "07:30", got.Time)
}

func TestStoreAddAppendsAtEndOfDay(t *testing.T) {
	s, p := seeded(t)
	got, err := s.Add(context.Background(), item("", 20))
	require.NoError(t, err)
	assert.Equal(t, "11:00", got.Time)
	assert.Equal(t, 3, got.OrderIndex)
	assert.Equal(t, "11:00", p.byID(got.ID).Time)
}

func TestStoreAddRejectsExplicitLaterTime(t *testing.T) {
	s, p := seeded(t)
	late := item("", 20)
	late.Time = "15:45"
	_, err := s.Add(context.Background(), late)
	require.ErrorIs(t, err, ErrDerivedTime)
	assert.Len(t, s.Items(), 3)
	assert.Len(t, p.rows, 3)
	assert.Zero(t, p.atomics)
	assert.Equal(t, int64(3), s.Version())

	onTime := item("", 20)
	onTime.Time = "11:00"
	got, err := s.Add(context.Background(), onTime)
	require.NoError(t, err)
	assert.Equal(t, "11:00", got.Time)
}

func TestStoreAddFailureLeavesList(t *testing.T) {
	s, p := seeded(t)
	p.insertErr = errors.New("disk full")

	_, err := s.Add(context.Background(), item("", 20))
	require.ErrorIs(t, err, ErrPersistFailed)
	assert.Len(t, s.Items(), 3)
	assert.Len(t, p.rows, 3)

	_, err = s.Add(context.Background(), item("", 0))
	assert.ErrorIs(t, err, ErrInvalidDuration)
	bad := item("", 10)
	bad.Time = "7pm"
	_, err = s.Add(context.Background(), bad)
	assert.ErrorIs(t, err, ErrInvalidTimeFormat)
}

func TestStoreUpdateDurationShiftsFollowers(t *testing.T) {
	s, p := seeded(t)
	d := 90
	got, err := s.Update(context.Background(), "A", domain.ItemPatch{Duration: &d})
	require.NoError(t, err)
	assert.Equal(t, 90, got.Duration)
	assert.Equal(t, map[string]string{"A": "08:00", "B": "09:30", "C": "10:00"}, times(s.Items()))
	assert.Equal(t, "09:30", p.byID("B").Time)
	assert.Equal(t, "10:00", p.byID("C").Time)
}

func TestStoreUpdateFirstTimeMovesDay(t *testing.T) {
	s, p := seeded(t)
	start := "09:00"
	_, err := s.Update(context.Background(), "A", domain.ItemPatch{Time: &start})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "09:00", "B": "10:00", "C": "10:30"}, times(s.Items()))
	assert.Equal(t, "10:30", p.byID("C").Time)
}

func TestStoreUpdateRejectsDerivedTime(t *testing.T) {
	s, p := seeded(t)
	tm := "12:00"
	_, err := s.Update(context.Background(), "B", domain.ItemPatch{Time: &tm})
	assert.ErrorIs(t, err, ErrDerivedTime)

	same := "09:00"
	title := "Vows"
	got, err := s.Update(context.Background(), "B", domain.ItemPatch{Time: &same, Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Vows", got.Title)
	assert.Equal(t, "Vows", p.byID("B").Title)
}

func TestStoreUpdateUnknownID(t *testing.T) {
	s, p := seeded(t)
	before := p.atomics
	title := "x"
	_, err := s.Update(context.Background(), "missing", domain.ItemPatch{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)
	err = s.Remove(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, before, p.atomics)
}

func TestStoreSetStatus(t *testing.T) {
	s, p := seeded(t)
	got, err := s.SetStatus(context.Background(), "C", domain.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, got.Status)
	assert.Equal(t, domain.StatusInProgress, p.byID("C").Status)

	_, err = s.SetStatus(context.Background(), "C", "done-ish")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestStoreRemoveClosesGap(t *testing.T) {
	s, p := seeded(t)
	require.NoError(t, s.Remove(context.Background(), "B"))

	items := s.Items()
	assert.Equal(t, []string{"A", "C"}, ids(items))
	assert.Equal(t, 1, items[1].OrderIndex)
	assert.Equal(t, "09:00", items[1].Time)
	assert.Equal(t, 1, p.byID("C").OrderIndex)
	assert.Equal(t, "09:00", p.byID("C").Time)
	assert.Len(t, p.rows, 2)
}

func TestStoreRemoveFirstKeepsDayStart(t *testing.T) {
	s, _ := seeded(t)
	require.NoError(t, s.Remove(context.Background(), "A"))
	assert.Equal(t, map[string]string{"B": "08:00", "C": "08:30"}, times(s.Items()))
}

func TestStoreReorder(t *testing.T) {
	s, p := seeded(t)
	preview, err := s.Preview(1, 0)
	require.NoError(t, err)

	got, err := s.Reorder(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A", "C"}, ids(got))
	assert.Equal(t, map[string]string{"B": "08:00", "A": "08:30", "C": "09:30"}, times(got))
	for _, it := range got {
		assert.Equal(t, it.Time, preview[it.ID].Start)
		assert.Equal(t, it.OrderIndex, p.byID(it.ID).OrderIndex)
		assert.Equal(t, it.Time, p.byID(it.ID).Time)
	}
	assert.Equal(t, int64(4), s.Version())
}

func TestStoreReorderRollsBack(t *testing.T) {
	s, p := seeded(t)
	p.failIDs["C"] = errors.New("constraint violation")

	_, err := s.Reorder(context.Background(), 2, 0)
	require.ErrorIs(t, err, ErrPersistFailed)
	var pe *PersistError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []string{"C"}, pe.FailedIDs)
	assert.Equal(t, "reorder", pe.Op)

	assert.Equal(t, []string{"A", "B", "C"}, ids(s.Items()))
	assert.Equal(t, map[string]string{"A": "08:00", "B": "09:00", "C": "09:30"}, times(p.rows))
	assert.Equal(t, int64(3), s.Version())
}

func TestStoreReorderConflict(t *testing.T) {
	s, p := seeded(t)
	p.version++

	_, err := s.Reorder(context.Background(), 0, 2)
	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, ErrPersistFailed)
	assert.Equal(t, []string{"A", "B", "C"}, ids(s.Items()))
}

func TestStoreTimeoutIsPersistFailure(t *testing.T) {
	s, p := seeded(t)
	s.Timeout = 20 * time.Millisecond
	p.block = true

	_, err := s.Reorder(context.Background(), 0, 1)
	assert.ErrorIs(t, err, ErrPersistFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{"A", "B", "C"}, ids(s.Items()))
}

func TestStoreNormalizeRepairsDrift(t *testing.T) {
	p := &memPersister{rows: []domain.TimelineItem{
		{ID: "A", Duration: 30, Time: "08:00", OrderIndex: 0},
		{ID: "B", Duration: 30, Time: "11:00", OrderIndex: 4},
		{ID: "C", Duration: 30, Time: "08:30", OrderIndex: 5},
	}}
	s := NewStore("ev-1", "", p)
	require.NoError(t, s.Load(context.Background()))

	n, err := s.Normalize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, map[string]string{"A": "08:00", "B": "08:30", "C": "09:00"}, times(p.rows))

	n, err = s.Normalize(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStoreSummary(t *testing.T) {
	s, _ := seeded(t)
	sum, err := s.Summary()
	require.NoError(t, err)
	assert.Equal(t, Summary{TotalDuration: 180, Formatted: "3h", EndOfDay: "11:00", Version: 3}, sum)
}
