package server

import (
	"slices"

	"eventline/internal/domain"
	"eventline/internal/engine"
	"eventline/internal/schedule"
)

// Request payloads

type CreateEventRequest struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	EventDate string `json:"event_date,omitempty" example:"2026-06-20"`
	Timezone  string `json:"timezone,omitempty" example:"Europe/Paris"`
	Venue     string `json:"venue,omitempty"`
}

type UpdateEventRequest struct {
	Name      *string `json:"name,omitempty"`
	EventDate *string `json:"event_date,omitempty"`
	Timezone  *string `json:"timezone,omitempty"`
	Venue     *string `json:"venue,omitempty"`
	Status    *string `json:"status,omitempty" enum:"planning,confirmed,done,archived"`
}

func (r UpdateEventRequest) patch() domain.EventPatch {
	return domain.EventPatch{Name: r.Name, EventDate: r.EventDate, Timezone: r.Timezone, Venue: r.Venue, Status: r.Status}
}

type AssignOrganizerRequest struct {
	Role string `json:"role" example:"coordinator"`
}

type PersonRequest struct {
	Name  string `json:"name"`
	Role  string `json:"role,omitempty" example:"bridesmaid"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Notes string `json:"notes,omitempty"`
}

type UpdatePersonRequest struct {
	Name  *string `json:"name,omitempty"`
	Role  *string `json:"role,omitempty"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
	Notes *string `json:"notes,omitempty"`
}

type VendorRequest struct {
	Name        string `json:"name"`
	ServiceType string `json:"service_type,omitempty" example:"photographer"`
	ContactName string `json:"contact_name,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

type UpdateVendorRequest struct {
	Name        *string `json:"name,omitempty"`
	ServiceType *string `json:"service_type,omitempty"`
	ContactName *string `json:"contact_name,omitempty"`
	Email       *string `json:"email,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

// CreateItemRequest accepts the single-assignee fields older clients send
// next to the list fields.
type CreateItemRequest struct {
	Title             string   `json:"title"`
	Description       string   `json:"description,omitempty"`
	Time              string   `json:"time,omitempty" example:"14:00"`
	Duration          int      `json:"duration,omitempty" minimum:"0"`
	Category          string   `json:"category,omitempty"`
	Status            string   `json:"status,omitempty" enum:"scheduled,in_progress,completed,delayed"`
	Priority          string   `json:"priority,omitempty" enum:"high,medium,low"`
	AssignedPersonIDs []string `json:"assigned_person_ids,omitempty"`
	AssignedVendorIDs []string `json:"assigned_vendor_ids,omitempty"`
	AssignedPersonID  string   `json:"assigned_person_id,omitempty" doc:"Deprecated: use assigned_person_ids"`
	AssignedVendorID  string   `json:"assigned_vendor_id,omitempty" doc:"Deprecated: use assigned_vendor_ids"`
	AssignedRole      string   `json:"assigned_role,omitempty"`
	Notes             string   `json:"notes,omitempty"`
	IfVersion         *int64   `json:"if_version,omitempty"`
}

func (r CreateItemRequest) item() domain.TimelineItem {
	return domain.TimelineItem{
		Title:             r.Title,
		Description:       r.Description,
		Time:              r.Time,
		Duration:          r.Duration,
		Category:          r.Category,
		Status:            r.Status,
		Priority:          r.Priority,
		AssignedPersonIDs: foldAssignees(r.AssignedPersonIDs, r.AssignedPersonID),
		AssignedVendorIDs: foldAssignees(r.AssignedVendorIDs, r.AssignedVendorID),
		AssignedRole:      r.AssignedRole,
		Notes:             r.Notes,
	}
}

type UpdateItemRequest struct {
	Title             *string   `json:"title,omitempty"`
	Description       *string   `json:"description,omitempty"`
	Time              *string   `json:"time,omitempty"`
	Duration          *int      `json:"duration,omitempty"`
	Category          *string   `json:"category,omitempty"`
	Status            *string   `json:"status,omitempty" enum:"scheduled,in_progress,completed,delayed"`
	Priority          *string   `json:"priority,omitempty" enum:"high,medium,low"`
	AssignedPersonIDs *[]string `json:"assigned_person_ids,omitempty"`
	AssignedVendorIDs *[]string `json:"assigned_vendor_ids,omitempty"`
	AssignedPersonID  *string   `json:"assigned_person_id,omitempty" doc:"Deprecated: use assigned_person_ids"`
	AssignedVendorID  *string   `json:"assigned_vendor_id,omitempty" doc:"Deprecated: use assigned_vendor_ids"`
	AssignedRole      *string   `json:"assigned_role,omitempty"`
	Notes             *string   `json:"notes,omitempty"`
	IfVersion         *int64    `json:"if_version,omitempty"`
}

func (r UpdateItemRequest) patch() domain.ItemPatch {
	return domain.ItemPatch{
		Title:             r.Title,
		Description:       r.Description,
		Time:              r.Time,
		Duration:          r.Duration,
		Category:          r.Category,
		Status:            r.Status,
		Priority:          r.Priority,
		AssignedPersonIDs: foldAssigneePatch(r.AssignedPersonIDs, r.AssignedPersonID),
		AssignedVendorIDs: foldAssigneePatch(r.AssignedVendorIDs, r.AssignedVendorID),
		AssignedRole:      r.AssignedRole,
		Notes:             r.Notes,
	}
}

// foldAssignees merges a legacy single id into the list, keeping first-seen
// order and dropping blanks and duplicates.
func foldAssignees(ids []string, legacy string) []string {
	out := make([]string, 0, len(ids)+1)
	for _, id := range append(slices.Clone(ids), legacy) {
		if id == "" || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}

// foldAssigneePatch treats a legacy field set to "" as clearing the list.
func foldAssigneePatch(ids *[]string, legacy *string) *[]string {
	if ids == nil && legacy == nil {
		return nil
	}
	var list []string
	if ids != nil {
		list = *ids
	}
	one := ""
	if legacy != nil {
		one = *legacy
	}
	out := foldAssignees(list, one)
	return &out
}

type StatusRequest struct {
	Status    string `json:"status" enum:"scheduled,in_progress,completed,delayed"`
	IfVersion *int64 `json:"if_version,omitempty"`
}

type ReorderRequest struct {
	From      int    `json:"from" minimum:"0"`
	To        int    `json:"to" minimum:"0"`
	IfVersion *int64 `json:"if_version,omitempty"`
}

type MoveRequest struct {
	To        int    `json:"to" minimum:"0"`
	IfVersion *int64 `json:"if_version,omitempty"`
}

type PreviewRequest struct {
	From int `json:"from" minimum:"0"`
	To   int `json:"to" minimum:"0"`
}

type CreateShareLinkRequest struct {
	SubjectKind string `json:"subject_kind" enum:"person,vendor,guest"`
	SubjectID   string `json:"subject_id,omitempty"`
	TTL         string `json:"ttl,omitempty" example:"720h" doc:"Go duration; defaults to the event's link_ttl"`
}

type CreateDocumentRequest struct {
	Name        string `json:"name" example:"floorplan.pdf"`
	ContentType string `json:"content_type,omitempty" example:"application/pdf"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name,omitempty"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
}

// Response payloads

type NormalizeResponse struct {
	Changed int `json:"changed"`
}

type PreviewResponse struct {
	Slots map[string]schedule.Slot `json:"slots"`
}

type ProjectionResponse struct {
	Viewer  schedule.Viewer  `json:"viewer"`
	Mode    schedule.Mode    `json:"mode"`
	Entries []schedule.Entry `json:"entries"`
}

type DocumentURLResponse struct {
	URL string `json:"url"`
}

type ActivityResponse struct {
	Items      []domain.Activity `json:"items"`
	NextCursor int64             `json:"next_cursor,omitempty"`
}

type APIKeyResponse struct {
	Key    domain.APIKey `json:"key"`
	Secret string        `json:"secret,omitempty" doc:"Shown once"`
}

type MeResponse struct {
	ActorID string         `json:"actor_id"`
	Source  string         `json:"source"`
	Events  []domain.Event `json:"events"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

func timelineView(v engine.TimelineView) engine.TimelineView {
	v.Items = nonNilSlice(v.Items)
	v.Timings = nonNilSlice(v.Timings)
	return v
}
