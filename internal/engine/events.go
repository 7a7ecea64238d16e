package engine

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"eventline/internal/calendar"
	"eventline/internal/config"
	"eventline/internal/domain"
	"eventline/internal/events"
	"eventline/internal/repo"
)

// EventCreateOptions are parameters for creating an event.
type EventCreateOptions struct {
	ID        string
	Name      string
	EventDate string
	Timezone  string
	Venue     string
	ActorID   string
}

// CreateEvent stores a new event with the default planning config and makes
// the creating actor its owner.
func (e Engine) CreateEvent(ctx context.Context, opts EventCreateOptions) (domain.Event, error) {
	opts.Name = strings.TrimSpace(opts.Name)
	if opts.Name == "" {
		return domain.Event{}, invalid("name", "required")
	}
	if opts.ActorID == "" {
		return domain.Event{}, invalid("actor_id", "required")
	}
	if err := validateEventFields(&opts.EventDate, &opts.Timezone, nil); err != nil {
		return domain.Event{}, err
	}
	now := e.ts()
	ev := domain.Event{
		ID:        opts.ID,
		Name:      opts.Name,
		EventDate: opts.EventDate,
		Timezone:  opts.Timezone,
		Venue:     opts.Venue,
		Status:    domain.EventPlanning,
		CreatedBy: opts.ActorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Event{}, err
	}
	defer tx.Rollback()

	if err := e.Auth.EnsureActor(ctx, tx, opts.ActorID, now); err != nil {
		return domain.Event{}, err
	}
	if err := e.Repo.InsertEvent(ctx, tx, ev); err != nil {
		return domain.Event{}, err
	}
	if err := e.Repo.UpsertEventConfig(ctx, tx, ev.ID, config.Default(ev.ID)); err != nil {
		return domain.Event{}, err
	}
	if err := e.Repo.AssignOrganizer(ctx, tx, domain.Organizer{EventID: ev.ID, ActorID: opts.ActorID, Role: "owner", CreatedAt: now}); err != nil {
		return domain.Event{}, err
	}
	if err := e.Events.Append(ctx, tx, events.EventCreated, ev.ID, "event", ev.ID, opts.ActorID, events.Payload{"name": ev.Name, "event_date": ev.EventDate}); err != nil {
		return domain.Event{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Event{}, err
	}
	e.logger().Info(ctx, "event created", "event", ev.ID, "actor", opts.ActorID)
	return ev, nil
}

func (e Engine) GetEvent(ctx context.Context, id, actorID string) (domain.Event, error) {
	if _, err := e.member(ctx, id, actorID); err != nil {
		return domain.Event{}, err
	}
	return e.Repo.GetEvent(ctx, id)
}

// ListEvents returns the events the actor organizes.
func (e Engine) ListEvents(ctx context.Context, actorID string) ([]domain.Event, error) {
	return e.Repo.ListEvents(ctx, actorID)
}

func (e Engine) UpdateEvent(ctx context.Context, id string, p domain.EventPatch, actorID string) (domain.Event, error) {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return domain.Event{}, invalid("name", "cannot be empty")
		}
		p.Name = &name
	}
	if err := validateEventFields(p.EventDate, p.Timezone, p.Status); err != nil {
		return domain.Event{}, err
	}
	err := e.mutate(ctx, id, actorID, config.PermEventWrite, func(tx *sql.Tx) error {
		if err := e.Repo.UpdateEvent(ctx, tx, id, p, e.ts()); err != nil {
			return err
		}
		payload := events.Payload{}
		if p.Name != nil {
			payload["name"] = *p.Name
		}
		if p.EventDate != nil {
			payload["event_date"] = *p.EventDate
		}
		if p.Status != nil {
			payload["status"] = *p.Status
		}
		return e.Events.Append(ctx, tx, events.EventUpdated, id, "event", id, actorID, payload)
	})
	if err != nil {
		return domain.Event{}, err
	}
	return e.Repo.GetEvent(ctx, id)
}

// DeleteEvent removes the event and everything planned for it. Only owners
// may do this.
func (e Engine) DeleteEvent(ctx context.Context, id, actorID string) error {
	cfg, err := e.config(ctx, id)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	role, err := e.Auth.Require(ctx, tx, cfg, id, actorID, config.PermEventWrite)
	if err != nil {
		return err
	}
	if role != "owner" {
		return forbidden(id, "owner")
	}
	if err := e.Repo.DeleteEvent(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, events.EventDeleted, id, "event", id, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// EventConfig returns the planning config of an event.
func (e Engine) EventConfig(ctx context.Context, id, actorID string) (*config.Config, error) {
	if _, err := e.member(ctx, id, actorID); err != nil {
		return nil, err
	}
	return e.config(ctx, id)
}

// SetEventConfig replaces the planning config. The event id inside cfg is
// forced to id.
func (e Engine) SetEventConfig(ctx context.Context, id string, cfg *config.Config, actorID string) (*config.Config, error) {
	if cfg == nil {
		return nil, invalid("config", "required")
	}
	cfg.Event.ID = id
	if err := cfg.Validate(); err != nil {
		return nil, invalid("config", err.Error())
	}
	err := e.mutate(ctx, id, actorID, config.PermEventWrite, func(tx *sql.Tx) error {
		if err := e.Repo.UpsertEventConfig(ctx, tx, id, cfg); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, events.ConfigUpdated, id, "event", id, actorID, nil)
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// AssignOrganizer grants role on the event to another actor.
func (e Engine) AssignOrganizer(ctx context.Context, eventID, targetID, role, actorID string) (domain.Organizer, error) {
	if targetID == "" {
		return domain.Organizer{}, invalid("actor_id", "required")
	}
	cfg, err := e.config(ctx, eventID)
	if err != nil {
		return domain.Organizer{}, err
	}
	if _, ok := cfg.RBAC.Roles[role]; !ok && role != "owner" {
		return domain.Organizer{}, invalid("role", "unknown role "+role)
	}
	o := domain.Organizer{EventID: eventID, ActorID: targetID, Role: role, CreatedAt: e.ts()}
	err = e.mutate(ctx, eventID, actorID, config.PermOrganizers, func(tx *sql.Tx) error {
		if err := e.demotionKeepsOwner(ctx, tx, eventID, targetID, role); err != nil {
			return err
		}
		if err := e.Auth.EnsureActor(ctx, tx, targetID, o.CreatedAt); err != nil {
			return err
		}
		if err := e.Repo.AssignOrganizer(ctx, tx, o); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, events.OrganizerAssigned, eventID, "organizer", targetID, actorID, events.Payload{"role": role})
	})
	if err != nil {
		return domain.Organizer{}, err
	}
	return o, nil
}

// RemoveOrganizer revokes an actor's access. The last owner cannot be removed.
func (e Engine) RemoveOrganizer(ctx context.Context, eventID, targetID, actorID string) error {
	return e.mutate(ctx, eventID, actorID, config.PermOrganizers, func(tx *sql.Tx) error {
		if err := e.demotionKeepsOwner(ctx, tx, eventID, targetID, ""); err != nil {
			return err
		}
		if err := e.Repo.RemoveOrganizer(ctx, tx, eventID, targetID); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, events.OrganizerRemoved, eventID, "organizer", targetID, actorID, nil)
	})
}

func (e Engine) demotionKeepsOwner(ctx context.Context, tx *sql.Tx, eventID, targetID, newRole string) error {
	if newRole == "owner" {
		return nil
	}
	current, err := e.Repo.OrganizerRole(ctx, tx, eventID, targetID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil || current != "owner" {
		return err
	}
	n, err := e.Repo.CountOwners(ctx, tx, eventID)
	if err != nil {
		return err
	}
	if n <= 1 {
		return invalid("role", "an event needs at least one owner")
	}
	return nil
}

func (e Engine) ListOrganizers(ctx context.Context, eventID, actorID string) ([]domain.Organizer, error) {
	if _, err := e.member(ctx, eventID, actorID); err != nil {
		return nil, err
	}
	return e.Repo.ListOrganizers(ctx, eventID)
}

func validateEventFields(date, tz, status *string) error {
	if date != nil && *date != "" {
		if _, err := time.Parse("2006-01-02", *date); err != nil {
			return invalid("event_date", "must be YYYY-MM-DD")
		}
	}
	if tz != nil && *tz != "" {
		if _, err := calendar.Location(*tz); err != nil {
			return invalid("timezone", err.Error())
		}
	}
	if status != nil {
		switch *status {
		case domain.EventPlanning, domain.EventConfirmed, domain.EventDone, domain.EventArchived:
		default:
			return invalid("status", "unknown event status "+*status)
		}
	}
	return nil
}
