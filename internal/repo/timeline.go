package repo

import (
	"context"
	"database/sql"

	"eventline/internal/domain"
)

const itemColumns = `id,event_id,title,COALESCE(description,''),start_time,duration,COALESCE(category,''),status,priority,COALESCE(assigned_role,''),order_index,COALESCE(notes,''),created_at,updated_at`

func scanItem(row scanner) (domain.TimelineItem, error) {
	var it domain.TimelineItem
	err := row.Scan(&it.ID, &it.EventID, &it.Title, &it.Description, &it.Time, &it.Duration, &it.Category,
		&it.Status, &it.Priority, &it.AssignedRole, &it.OrderIndex, &it.Notes, &it.CreatedAt, &it.UpdatedAt)
	if err == sql.ErrNoRows {
		return it, ErrNotFound
	}
	return it, err
}

// ListTimelineItems returns an event's items by ascending order_index with
// their assignees.
func (r Repo) ListTimelineItems(ctx context.Context, tx *sql.Tx, eventID string) ([]domain.TimelineItem, error) {
	rows, err := r.query(ctx, tx, `SELECT `+itemColumns+` FROM timeline_items WHERE event_id=? ORDER BY order_index ASC, created_at ASC, id ASC`, eventID)
	if err != nil {
		return nil, err
	}
	var items []domain.TimelineItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}
	people, err := r.assignees(ctx, tx, `SELECT a.item_id, a.person_id FROM timeline_item_people a JOIN timeline_items t ON t.id=a.item_id WHERE t.event_id=? ORDER BY a.item_id, a.position`, eventID)
	if err != nil {
		return nil, err
	}
	vendors, err := r.assignees(ctx, tx, `SELECT a.item_id, a.vendor_id FROM timeline_item_vendors a JOIN timeline_items t ON t.id=a.item_id WHERE t.event_id=? ORDER BY a.item_id, a.position`, eventID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].AssignedPersonIDs = people[items[i].ID]
		items[i].AssignedVendorIDs = vendors[items[i].ID]
	}
	return items, nil
}

func (r Repo) GetTimelineItem(ctx context.Context, tx *sql.Tx, id string) (domain.TimelineItem, error) {
	it, err := scanItem(r.queryRow(ctx, tx, `SELECT `+itemColumns+` FROM timeline_items WHERE id=?`, id))
	if err != nil {
		return it, err
	}
	people, err := r.assignees(ctx, tx, `SELECT item_id, person_id FROM timeline_item_people WHERE item_id=? ORDER BY position`, id)
	if err != nil {
		return it, err
	}
	vendors, err := r.assignees(ctx, tx, `SELECT item_id, vendor_id FROM timeline_item_vendors WHERE item_id=? ORDER BY position`, id)
	if err != nil {
		return it, err
	}
	it.AssignedPersonIDs = people[id]
	it.AssignedVendorIDs = vendors[id]
	return it, nil
}

func (r Repo) assignees(ctx context.Context, tx *sql.Tx, query string, arg string) (map[string][]string, error) {
	rows, err := r.query(ctx, tx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string][]string{}
	for rows.Next() {
		var itemID, ref string
		if err := rows.Scan(&itemID, &ref); err != nil {
			return nil, err
		}
		res[itemID] = append(res[itemID], ref)
	}
	return res, rows.Err()
}

func (r Repo) InsertTimelineItem(ctx context.Context, tx *sql.Tx, it domain.TimelineItem) error {
	_, err := r.exec(ctx, tx, `INSERT INTO timeline_items(id,event_id,title,description,start_time,duration,category,status,priority,assigned_role,order_index,notes,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		it.ID, it.EventID, it.Title, nullable(it.Description), it.Time, it.Duration, nullable(it.Category), it.Status, it.Priority,
		nullable(it.AssignedRole), it.OrderIndex, nullable(it.Notes), it.CreatedAt, it.UpdatedAt)
	if err != nil {
		return err
	}
	if err := r.setAssignees(ctx, tx, "timeline_item_people", "person_id", it.ID, it.AssignedPersonIDs); err != nil {
		return err
	}
	return r.setAssignees(ctx, tx, "timeline_item_vendors", "vendor_id", it.ID, it.AssignedVendorIDs)
}

// UpdateTimelineItem writes the non-nil fields of p.
func (r Repo) UpdateTimelineItem(ctx context.Context, tx *sql.Tx, id string, p domain.ItemPatch, updatedAt string) error {
	b := patchBuilder{}
	b.required("title", p.Title)
	b.optional("description", p.Description)
	b.required("start_time", p.Time)
	if p.Duration != nil {
		b.value("duration", *p.Duration)
	}
	b.optional("category", p.Category)
	b.required("status", p.Status)
	b.required("priority", p.Priority)
	b.optional("assigned_role", p.AssignedRole)
	if p.OrderIndex != nil {
		b.value("order_index", *p.OrderIndex)
	}
	b.optional("notes", p.Notes)
	if err := r.applyPatch(ctx, tx, "timeline_items", id, b, updatedAt); err != nil {
		return err
	}
	if p.AssignedPersonIDs != nil {
		if err := r.setAssignees(ctx, tx, "timeline_item_people", "person_id", id, *p.AssignedPersonIDs); err != nil {
			return err
		}
	}
	if p.AssignedVendorIDs != nil {
		if err := r.setAssignees(ctx, tx, "timeline_item_vendors", "vendor_id", id, *p.AssignedVendorIDs); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) DeleteTimelineItem(ctx context.Context, tx *sql.Tx, id string) error {
	return mustAffect(r.exec(ctx, tx, `DELETE FROM timeline_items WHERE id=?`, id))
}

// setAssignees replaces an item's assignee list, keeping the given order and
// dropping duplicates.
func (r Repo) setAssignees(ctx context.Context, tx *sql.Tx, table, col, itemID string, refs []string) error {
	if _, err := r.exec(ctx, tx, `DELETE FROM `+table+` WHERE item_id=?`, itemID); err != nil {
		return err
	}
	seen := map[string]bool{}
	pos := 0
	for _, ref := range refs {
		if ref == "" || seen[ref] {
			continue
		}
		seen[ref] = true
		if _, err := r.exec(ctx, tx, `INSERT INTO `+table+`(item_id,`+col+`,position) VALUES (?,?,?)`, itemID, ref, pos); err != nil {
			return err
		}
		pos++
	}
	return nil
}

// CountAssignments reports how many items reference the person or vendor.
func (r Repo) CountAssignments(ctx context.Context, kind, id string) (int, error) {
	table, col := "timeline_item_people", "person_id"
	if kind == "vendor" {
		table, col = "timeline_item_vendors", "vendor_id"
	}
	var n int
	err := r.queryRow(ctx, nil, `SELECT COUNT(*) FROM `+table+` WHERE `+col+`=?`, id).Scan(&n)
	return n, err
}
