package domain

// Timeline item statuses.
const (
	StatusScheduled  = "scheduled"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusDelayed    = "delayed"
)

// Timeline item priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

type Event struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	EventDate       string `json:"event_date,omitempty" format:"date"`
	Timezone        string `json:"timezone,omitempty"`
	Venue           string `json:"venue,omitempty"`
	Status          string `json:"status" enum:"planning,confirmed,done,archived"`
	TimelineVersion int64  `json:"timeline_version"`
	CreatedBy       string `json:"created_by"`
	CreatedAt       string `json:"created_at" format:"date-time"`
	UpdatedAt       string `json:"updated_at" format:"date-time"`
}

type Person struct {
	ID        string `json:"id"`
	EventID   string `json:"event_id"`
	Name      string `json:"name"`
	Role      string `json:"role,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

type Vendor struct {
	ID          string `json:"id"`
	EventID     string `json:"event_id"`
	Name        string `json:"name"`
	ServiceType string `json:"service_type,omitempty"`
	ContactName string `json:"contact_name,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Notes       string `json:"notes,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

// TimelineItem is one entry of an event's day schedule. Time is derived from
// the preceding items except for the first one, which anchors the sequence.
type TimelineItem struct {
	ID                string   `json:"id"`
	EventID           string   `json:"event_id"`
	Title             string   `json:"title"`
	Description       string   `json:"description,omitempty"`
	Time              string   `json:"time" example:"08:00"`
	Duration          int      `json:"duration" minimum:"1"`
	Category          string   `json:"category,omitempty"`
	Status            string   `json:"status" enum:"scheduled,in_progress,completed,delayed"`
	Priority          string   `json:"priority" enum:"high,medium,low"`
	AssignedPersonIDs []string `json:"assigned_person_ids"`
	AssignedVendorIDs []string `json:"assigned_vendor_ids"`
	AssignedRole      string   `json:"assigned_role,omitempty"`
	OrderIndex        int      `json:"order_index"`
	Notes             string   `json:"notes,omitempty"`
	CreatedAt         string   `json:"created_at" format:"date-time"`
	UpdatedAt         string   `json:"updated_at" format:"date-time"`
}

// Clone returns a copy that shares no slices with t.
func (t TimelineItem) Clone() TimelineItem {
	c := t
	c.AssignedPersonIDs = append([]string(nil), t.AssignedPersonIDs...)
	c.AssignedVendorIDs = append([]string(nil), t.AssignedVendorIDs...)
	return c
}

// ItemPatch carries a partial update; nil fields are left untouched.
type ItemPatch struct {
	Title             *string
	Description       *string
	Time              *string
	Duration          *int
	Category          *string
	Status            *string
	Priority          *string
	AssignedPersonIDs *[]string
	AssignedVendorIDs *[]string
	AssignedRole      *string
	OrderIndex        *int
	Notes             *string
}

// Empty reports whether the patch changes nothing.
func (p ItemPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Time == nil && p.Duration == nil &&
		p.Category == nil && p.Status == nil && p.Priority == nil && p.AssignedPersonIDs == nil &&
		p.AssignedVendorIDs == nil && p.AssignedRole == nil && p.OrderIndex == nil && p.Notes == nil
}

// Apply merges the patch into t and returns the result.
func (p ItemPatch) Apply(t TimelineItem) TimelineItem {
	out := t.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Time != nil {
		out.Time = *p.Time
	}
	if p.Duration != nil {
		out.Duration = *p.Duration
	}
	if p.Category != nil {
		out.Category = *p.Category
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.Priority != nil {
		out.Priority = *p.Priority
	}
	if p.AssignedPersonIDs != nil {
		out.AssignedPersonIDs = append([]string(nil), (*p.AssignedPersonIDs)...)
	}
	if p.AssignedVendorIDs != nil {
		out.AssignedVendorIDs = append([]string(nil), (*p.AssignedVendorIDs)...)
	}
	if p.AssignedRole != nil {
		out.AssignedRole = *p.AssignedRole
	}
	if p.OrderIndex != nil {
		out.OrderIndex = *p.OrderIndex
	}
	if p.Notes != nil {
		out.Notes = *p.Notes
	}
	return out
}

type Document struct {
	ID          string `json:"id"`
	EventID     string `json:"event_id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	StorageKey  string `json:"storage_key"`
	UploadedBy  string `json:"uploaded_by"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type ShareLink struct {
	ID          string  `json:"id"`
	EventID     string  `json:"event_id"`
	SubjectKind string  `json:"subject_kind" enum:"person,vendor,guest"`
	SubjectID   string  `json:"subject_id,omitempty"`
	CreatedBy   string  `json:"created_by"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	ExpiresAt   string  `json:"expires_at" format:"date-time"`
	RevokedAt   *string `json:"revoked_at,omitempty" format:"date-time"`
}

// Activity is one row of the append-only change log.
type Activity struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EventID    string `json:"event_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// EventPatch carries a partial event update.
type EventPatch struct {
	Name      *string
	EventDate *string
	Timezone  *string
	Venue     *string
	Status    *string
}

// PersonPatch carries a partial person update.
type PersonPatch struct {
	Name  *string
	Role  *string
	Email *string
	Phone *string
	Notes *string
}

// VendorPatch carries a partial vendor update.
type VendorPatch struct {
	Name        *string
	ServiceType *string
	ContactName *string
	Email       *string
	Phone       *string
	Notes       *string
}

type Organizer struct {
	EventID   string `json:"event_id"`
	ActorID   string `json:"actor_id"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Event statuses.
const (
	EventPlanning  = "planning"
	EventConfirmed = "confirmed"
	EventDone      = "done"
	EventArchived  = "archived"
)
