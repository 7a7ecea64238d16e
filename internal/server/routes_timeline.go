package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"eventline/internal/domain"
	"eventline/internal/engine"
	"eventline/internal/schedule"
)

var timelineErrors = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
}

type calendarOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

func icsResponse(name, body string) *calendarOutput {
	return &calendarOutput{
		ContentType:        "text/calendar; charset=utf-8",
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", name+".ics"),
		Body:               []byte(body),
	}
}

// ViewerQuery selects whose schedule a projection or export shows.
type ViewerQuery struct {
	ViewerKind string `query:"viewer_kind" enum:"admin,person,vendor,guest" default:"admin"`
	ViewerID   string `query:"viewer_id"`
	Role       string `query:"role" doc:"Role label matched against assigned_role"`
	Mode       string `query:"mode" enum:"personal,global" default:"global"`
}

func (q ViewerQuery) viewer() (schedule.Viewer, schedule.Mode, huma.StatusError) {
	v := schedule.Viewer{Kind: q.ViewerKind, ID: q.ViewerID, Role: q.Role}
	if v.Kind == "" {
		v.Kind = schedule.ViewerAdmin
	}
	if (v.Kind == schedule.ViewerPerson || v.Kind == schedule.ViewerVendor) && v.ID == "" {
		return v, "", newAPIError(http.StatusBadRequest, "bad_request", "viewer_id is required for "+v.Kind, nil)
	}
	return v, schedule.ParseMode(q.Mode), nil
}

func registerTimeline(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-timeline",
		Method:      http.MethodGet,
		Path:        "/events/{event_id}/timeline",
		Summary:     "Ordered timeline with summary",
		Errors:      timelineErrors,
	}, func(ctx context.Context, input *struct {
		EventID string `path:"event_id"`
	}) (*struct {
		ETag string `header:"ETag"`
		Body engine.TimelineView
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		view, err := e.Timeline(ctx, input.EventID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			ETag string `header:"ETag"`
			Body engine.TimelineView
		}{ETag: fmt.Sprintf("%q", fmt.Sprint(view.Summary.Version)), Body: timelineView(view)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-timeline-item",
		Method:        http.MethodPost,
		Path:          "/events/{event_id}/timeline/items",
		Summary:       "Append a timeline item",
		DefaultStatus: http.StatusCreated,
		Errors:        timelineErrors,
	}, func(ctx context.Context, input *struct {
		EventID string            `path:"event_id"`
		IfMatch string            `header:"If-Match"`
		Body    CreateItemRequest `json:"body"`
	}) (*output[domain.TimelineItem], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		version, verr := ifVersion(input.IfMatch, input.Body.IfVersion)
		if verr != nil {
			return nil, verr
		}
		it, err := e.AddItem(ctx, input.EventID, input.Body.item(), engine.Change{ActorID: actorID, IfVersion: version})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(it), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-timeline-item",
		Method:      http.MethodPatch,
		Path:        "/events/{event_id}/timeline/items/{item_id}",
		Summary:     "Update a timeline item",
		Description: "Only the first item's time can be set; later times are derived.",
		Errors:      timelineErrors,
	}, func(ctx context.Context, input *struct {
		EventID string            `path:"event_id"`
		ItemID  string            `path:"item_id"`
		IfMatch string            `header:"If-Match"`
		Body    UpdateItemRequest `json:"body"`
	}) (*output[domain.TimelineItem], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		version, verr := ifVersion(input.IfMatch, input.Body.IfVersion)
		if verr != nil {
			return nil, verr
		}
		it, err := e.UpdateItem(ctx, input.EventID, input.ItemID, input.Body.patch(), engine.Change{ActorID: actorID, IfVersion: version})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(it), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-timeline-item",
		Method:        http.MethodDelete,
		Path:          "/events/{event_id}/timeline/items/{item_id}",
		Summary:       "Remove a timeline item",
		DefaultStatus: http.StatusNoContent,
		Errors:        timelineErrors,
	}, func(ctx context.Context, input *struct {
		EventID string `path:"event_id"`
		ItemID  string `path:"item_id"`
		IfMatch string `header:"If-Match"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		version, verr := ifVersion(input.IfMatch, nil)
		if verr != nil {
			return nil, verr
		}
		if err := e.RemoveItem(ctx, input.EventID, input.ItemID, engine.Change{ActorID: actorID, IfVersion: version}); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-timeline-item-status",
		Method:      http.MethodPost,
		Path:        "/events/{event_id}/timeline/items/{item_id}/status",
		Summary:     "Set item status",
		Errors:      timelineErrors,
	}, func(ctx context.Context, input *struct {
		EventID string        `path:"event_id"`
		ItemID  string        `path:"item_id"`
		IfMatch string        `header:"If-Match"`
		Body    StatusRequest `json:"body"`
	}) (*output[domain.TimelineItem], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		version, verr := ifVersion(input.IfMatch, input.Body.IfVersion)
		if verr != nil {
			return nil, verr
		}
		it, err := e.SetItemStatus(ctx, input.EventID, input.ItemID, input.Body.Status, engine.Change{ActorID: actorID, IfVersion: version})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(it), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "move-timeline-item",
		Method:      http.MethodPost,
		Path:        "/events/{event_id}/timeline/items/{item_id}/move",
		Summary:     "Move an item to a new position",
		Errors:      timelineErrors,
	}, func(ctx context.Context, input *struct {
		EventID string      `path:"event_id"`
		ItemID  string      `path:"item_id"`
		IfMatch string      `header:"If-Match"`
		Body    MoveRequest `json:"body"`
	}) (*output[engine.TimelineView], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		version, verr := ifVersion(input.IfMatch, input.Body.IfVersion)
		if verr != nil {
			return nil, verr
		}
		view, err := e.MoveItem(ctx, input.EventID, input.ItemID, input.Body.To, engine.Change{ActorID: actorID, IfVersion: version})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(timelineView(view)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reorder-timeline",
		Method:      http.MethodPost,
		Path:        "/events/{event_id}/timeline/reorder",
		Summary:     "Move the item at one position to another",
		Errors:      timelineErrors,
	}, func(ctx context.Context, input *struct {
		EventID string         `path:"event_id"`
		IfMatch string         `header:"If-Match"`
		Body    ReorderRequest `json:"body"`
	}) (*output[engine.TimelineView], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		version, verr := ifVersion(input.IfMatch, input.Body.IfVersion)
		if verr != nil {
			return nil, verr
		}
		view, err := e.ReorderItems(ctx, input.EventID, input.Body.From, input.Body.To, engine.Change{ActorID: actorID, IfVersion: version})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(timelineView(view)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "preview-timeline-move",
		Method:      http.MethodPost,
		Path:        "/events/{event_id}/timeline/preview",
		Summary:     "Slots every item would get after a move",
		Description: "Nothing is written.",
		Errors:      timelineErrors,
	}, func(ctx context.Context, input *struct {
		EventID string         `path:"event_id"`
		Body    PreviewRequest `json:"body"`
	}) (*output[PreviewResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		slots, err := e.PreviewMove(ctx, input.EventID, input.Body.From, input.Body.To, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		if slots == nil {
			slots = map[string]schedule.Slot{}
		}
		return reply(PreviewResponse{Slots: slots}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "normalize-timeline",
		Method:      http.MethodPost,
		Path:        "/events/{event_id}/timeline/normalize",
		Summary:     "Repair stored order and times",
		Errors:      timelineErrors,
	}, func(ctx context.Context, input *struct {
		EventID string `path:"event_id"`
	}) (*output[NormalizeResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		n, err := e.NormalizeTimeline(ctx, input.EventID, engine.Change{ActorID: actorID})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(NormalizeResponse{Changed: n}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "project-timeline",
		Method:      http.MethodGet,
		Path:        "/events/{event_id}/timeline/projection",
		Summary:     "Timeline as a given viewer sees it",
		Errors:      timelineErrors,
	}, func(ctx context.Context, input *struct {
		EventID string `path:"event_id"`
		ViewerQuery
	}) (*output[ProjectionResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		v, mode, verr := input.viewer()
		if verr != nil {
			return nil, verr
		}
		entries, err := e.ProjectTimeline(ctx, input.EventID, v, mode, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(ProjectionResponse{Viewer: v, Mode: mode, Entries: nonNilSlice(entries)}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "export-timeline-ics",
		Method:      http.MethodGet,
		Path:        "/events/{event_id}/timeline.ics",
		Summary:     "Timeline as iCalendar",
		Errors:      timelineErrors,
	}, func(ctx context.Context, input *struct {
		EventID string `path:"event_id"`
		ViewerQuery
	}) (*calendarOutput, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		v, mode, verr := input.viewer()
		if verr != nil {
			return nil, verr
		}
		body, err := e.ExportCalendar(ctx, input.EventID, v, mode, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return icsResponse(input.EventID, body), nil
	})
}
