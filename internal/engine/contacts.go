package engine

import (
	"context"
	"database/sql"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"eventline/internal/config"
	"eventline/internal/domain"
	"eventline/internal/events"
	"eventline/internal/repo"
)

func (e Engine) CreatePerson(ctx context.Context, p domain.Person, actorID string) (domain.Person, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return domain.Person{}, invalid("name", "required")
	}
	if err := validEmail(p.Email); err != nil {
		return domain.Person{}, err
	}
	now := e.ts()
	p.ID = uuid.NewString()
	p.CreatedAt, p.UpdatedAt = now, now
	err := e.mutate(ctx, p.EventID, actorID, config.PermContactsWrite, func(tx *sql.Tx) error {
		if err := e.Repo.InsertPerson(ctx, tx, p); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, events.PersonCreated, p.EventID, "person", p.ID, actorID, events.Payload{"name": p.Name})
	})
	if err != nil {
		return domain.Person{}, err
	}
	return p, nil
}

func (e Engine) ListPeople(ctx context.Context, eventID, actorID string) ([]domain.Person, error) {
	if _, err := e.member(ctx, eventID, actorID); err != nil {
		return nil, err
	}
	return e.Repo.ListPeople(ctx, eventID)
}

func (e Engine) UpdatePerson(ctx context.Context, eventID, id string, p domain.PersonPatch, actorID string) (domain.Person, error) {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return domain.Person{}, invalid("name", "cannot be empty")
	}
	if p.Email != nil {
		if err := validEmail(*p.Email); err != nil {
			return domain.Person{}, err
		}
	}
	var out domain.Person
	err := e.mutate(ctx, eventID, actorID, config.PermContactsWrite, func(tx *sql.Tx) error {
		if _, err := e.personIn(ctx, tx, eventID, id); err != nil {
			return err
		}
		if err := e.Repo.UpdatePerson(ctx, tx, id, p, e.ts()); err != nil {
			return err
		}
		var err error
		if out, err = e.Repo.GetPerson(ctx, tx, id); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, events.PersonUpdated, eventID, "person", id, actorID, nil)
	})
	return out, err
}

// DeletePerson removes a contact. Timeline items keep the dangling reference.
func (e Engine) DeletePerson(ctx context.Context, eventID, id, actorID string) error {
	return e.mutate(ctx, eventID, actorID, config.PermContactsWrite, func(tx *sql.Tx) error {
		if _, err := e.personIn(ctx, tx, eventID, id); err != nil {
			return err
		}
		if err := e.Repo.DeletePerson(ctx, tx, id); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, events.PersonDeleted, eventID, "person", id, actorID, nil)
	})
}

func (e Engine) personIn(ctx context.Context, tx *sql.Tx, eventID, id string) (domain.Person, error) {
	p, err := e.Repo.GetPerson(ctx, tx, id)
	if err != nil {
		return p, err
	}
	if p.EventID != eventID {
		return domain.Person{}, repo.ErrNotFound
	}
	return p, nil
}

func (e Engine) CreateVendor(ctx context.Context, v domain.Vendor, actorID string) (domain.Vendor, error) {
	v.Name = strings.TrimSpace(v.Name)
	if v.Name == "" {
		return domain.Vendor{}, invalid("name", "required")
	}
	if err := validEmail(v.Email); err != nil {
		return domain.Vendor{}, err
	}
	now := e.ts()
	v.ID = uuid.NewString()
	v.CreatedAt, v.UpdatedAt = now, now
	err := e.mutate(ctx, v.EventID, actorID, config.PermContactsWrite, func(tx *sql.Tx) error {
		if err := e.Repo.InsertVendor(ctx, tx, v); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, events.VendorCreated, v.EventID, "vendor", v.ID, actorID, events.Payload{"name": v.Name, "service_type": v.ServiceType})
	})
	if err != nil {
		return domain.Vendor{}, err
	}
	return v, nil
}

func (e Engine) ListVendors(ctx context.Context, eventID, actorID string) ([]domain.Vendor, error) {
	if _, err := e.member(ctx, eventID, actorID); err != nil {
		return nil, err
	}
	return e.Repo.ListVendors(ctx, eventID)
}

func (e Engine) UpdateVendor(ctx context.Context, eventID, id string, p domain.VendorPatch, actorID string) (domain.Vendor, error) {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return domain.Vendor{}, invalid("name", "cannot be empty")
	}
	if p.Email != nil {
		if err := validEmail(*p.Email); err != nil {
			return domain.Vendor{}, err
		}
	}
	var out domain.Vendor
	err := e.mutate(ctx, eventID, actorID, config.PermContactsWrite, func(tx *sql.Tx) error {
		if _, err := e.vendorIn(ctx, tx, eventID, id); err != nil {
			return err
		}
		if err := e.Repo.UpdateVendor(ctx, tx, id, p, e.ts()); err != nil {
			return err
		}
		var err error
		if out, err = e.Repo.GetVendor(ctx, tx, id); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, events.VendorUpdated, eventID, "vendor", id, actorID, nil)
	})
	return out, err
}

// DeleteVendor removes a vendor. Timeline items keep the dangling reference.
func (e Engine) DeleteVendor(ctx context.Context, eventID, id, actorID string) error {
	return e.mutate(ctx, eventID, actorID, config.PermContactsWrite, func(tx *sql.Tx) error {
		if _, err := e.vendorIn(ctx, tx, eventID, id); err != nil {
			return err
		}
		if err := e.Repo.DeleteVendor(ctx, tx, id); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, events.VendorDeleted, eventID, "vendor", id, actorID, nil)
	})
}

func (e Engine) vendorIn(ctx context.Context, tx *sql.Tx, eventID, id string) (domain.Vendor, error) {
	v, err := e.Repo.GetVendor(ctx, tx, id)
	if err != nil {
		return v, err
	}
	if v.EventID != eventID {
		return domain.Vendor{}, repo.ErrNotFound
	}
	return v, nil
}

func validEmail(s string) error {
	if s == "" {
		return nil
	}
	if _, err := mail.ParseAddress(s); err != nil {
		return invalid("email", "not a valid address")
	}
	return nil
}
