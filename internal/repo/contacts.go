package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"eventline/internal/domain"
)

const personColumns = `id,event_id,name,COALESCE(role,''),COALESCE(email,''),COALESCE(phone,''),COALESCE(notes,''),created_at,updated_at`

func scanPerson(row scanner) (domain.Person, error) {
	var p domain.Person
	err := row.Scan(&p.ID, &p.EventID, &p.Name, &p.Role, &p.Email, &p.Phone, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) InsertPerson(ctx context.Context, tx *sql.Tx, p domain.Person) error {
	_, err := r.exec(ctx, tx, `INSERT INTO people(id,event_id,name,role,email,phone,notes,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		p.ID, p.EventID, p.Name, nullable(p.Role), nullable(p.Email), nullable(p.Phone), nullable(p.Notes), p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) GetPerson(ctx context.Context, tx *sql.Tx, id string) (domain.Person, error) {
	return scanPerson(r.queryRow(ctx, tx, `SELECT `+personColumns+` FROM people WHERE id=?`, id))
}

func (r Repo) ListPeople(ctx context.Context, eventID string) ([]domain.Person, error) {
	rows, err := r.query(ctx, nil, `SELECT `+personColumns+` FROM people WHERE event_id=? ORDER BY name, id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) UpdatePerson(ctx context.Context, tx *sql.Tx, id string, p domain.PersonPatch, updatedAt string) error {
	b := patchBuilder{}
	b.required("name", p.Name)
	b.optional("role", p.Role)
	b.optional("email", p.Email)
	b.optional("phone", p.Phone)
	b.optional("notes", p.Notes)
	return r.applyPatch(ctx, tx, "people", id, b, updatedAt)
}

func (r Repo) DeletePerson(ctx context.Context, tx *sql.Tx, id string) error {
	return mustAffect(r.exec(ctx, tx, `DELETE FROM people WHERE id=?`, id))
}

const vendorColumns = `id,event_id,name,COALESCE(service_type,''),COALESCE(contact_name,''),COALESCE(email,''),COALESCE(phone,''),COALESCE(notes,''),created_at,updated_at`

func scanVendor(row scanner) (domain.Vendor, error) {
	var v domain.Vendor
	err := row.Scan(&v.ID, &v.EventID, &v.Name, &v.ServiceType, &v.ContactName, &v.Email, &v.Phone, &v.Notes, &v.CreatedAt, &v.UpdatedAt)
	if err == sql.ErrNoRows {
		return v, ErrNotFound
	}
	return v, err
}

func (r Repo) InsertVendor(ctx context.Context, tx *sql.Tx, v domain.Vendor) error {
	_, err := r.exec(ctx, tx, `INSERT INTO vendors(id,event_id,name,service_type,contact_name,email,phone,notes,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		v.ID, v.EventID, v.Name, nullable(v.ServiceType), nullable(v.ContactName), nullable(v.Email), nullable(v.Phone), nullable(v.Notes), v.CreatedAt, v.UpdatedAt)
	return err
}

func (r Repo) GetVendor(ctx context.Context, tx *sql.Tx, id string) (domain.Vendor, error) {
	return scanVendor(r.queryRow(ctx, tx, `SELECT `+vendorColumns+` FROM vendors WHERE id=?`, id))
}

func (r Repo) ListVendors(ctx context.Context, eventID string) ([]domain.Vendor, error) {
	rows, err := r.query(ctx, nil, `SELECT `+vendorColumns+` FROM vendors WHERE event_id=? ORDER BY name, id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

func (r Repo) UpdateVendor(ctx context.Context, tx *sql.Tx, id string, p domain.VendorPatch, updatedAt string) error {
	b := patchBuilder{}
	b.required("name", p.Name)
	b.optional("service_type", p.ServiceType)
	b.optional("contact_name", p.ContactName)
	b.optional("email", p.Email)
	b.optional("phone", p.Phone)
	b.optional("notes", p.Notes)
	return r.applyPatch(ctx, tx, "vendors", id, b, updatedAt)
}

func (r Repo) DeleteVendor(ctx context.Context, tx *sql.Tx, id string) error {
	return mustAffect(r.exec(ctx, tx, `DELETE FROM vendors WHERE id=?`, id))
}

// patchBuilder collects SET clauses for a partial update.
type patchBuilder struct {
	fields []string
	args   []any
}

func (b *patchBuilder) required(col string, v *string) {
	if v != nil {
		b.fields = append(b.fields, col+"=?")
		b.args = append(b.args, *v)
	}
}

// optional stores an empty string as NULL.
func (b *patchBuilder) optional(col string, v *string) {
	if v != nil {
		b.fields = append(b.fields, col+"=?")
		b.args = append(b.args, nullable(*v))
	}
}

func (b *patchBuilder) value(col string, v any) {
	b.fields = append(b.fields, col+"=?")
	b.args = append(b.args, v)
}

func (r Repo) applyPatch(ctx context.Context, tx *sql.Tx, table, id string, b patchBuilder, updatedAt string) error {
	b.value("updated_at", updatedAt)
	args := append(b.args, id)
	return mustAffect(r.exec(ctx, tx, fmt.Sprintf(`UPDATE %s SET %s WHERE id=?`, table, strings.Join(b.fields, ",")), args...))
}
