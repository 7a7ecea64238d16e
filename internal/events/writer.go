package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"eventline/internal/db"
)

// Activity types.
const (
	EventCreated      = "event.created"
	EventUpdated      = "event.updated"
	EventDeleted      = "event.deleted"
	ConfigUpdated     = "event.config_updated"
	OrganizerAssigned = "organizer.assigned"
	OrganizerRemoved  = "organizer.removed"
	PersonCreated     = "person.created"
	PersonUpdated     = "person.updated"
	PersonDeleted     = "person.deleted"
	VendorCreated     = "vendor.created"
	VendorUpdated     = "vendor.updated"
	VendorDeleted     = "vendor.deleted"
	TimelineChanged   = "timeline.changed"
	DocumentCreated   = "document.created"
	DocumentDeleted   = "document.deleted"
	ShareCreated      = "share.created"
	ShareRevoked      = "share.revoked"
	APIKeyCreated     = "apikey.created"
)

// Writer appends rows to the activity log inside the caller's transaction.
type Writer struct {
	Dialect string
	Now     func() time.Time
}

type Payload map[string]any

func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, eventID, entityKind, entityID, actorID string, payload Payload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal activity payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, db.Rebind(w.Dialect, `INSERT INTO activity(ts,type,event_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`),
		ts, evtType, nullable(eventID), entityKind, nullable(entityID), actorID, string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
