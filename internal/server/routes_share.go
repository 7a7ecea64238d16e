package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"eventline/internal/domain"
	"eventline/internal/engine"
	"eventline/internal/schedule"
)

var shareErrors = []int{
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusServiceUnavailable,
}

func registerShareLinks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-share-link",
		Method:        http.MethodPost,
		Path:          "/events/{event_id}/share-links",
		Summary:       "Create a share link",
		Description:   "The token is returned with the link; it can be fetched again while the link is live.",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		EventID string                 `path:"event_id"`
		Body    CreateShareLinkRequest `json:"body"`
	}) (*output[engine.IssuedLink], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var ttl time.Duration
		if input.Body.TTL != "" {
			d, err := time.ParseDuration(input.Body.TTL)
			if err != nil || d <= 0 {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "ttl must be a positive duration", nil)
			}
			ttl = d
		}
		issued, err := e.CreateShareLink(ctx, engine.ShareCreateOptions{
			EventID:     input.EventID,
			SubjectKind: input.Body.SubjectKind,
			SubjectID:   input.Body.SubjectID,
			TTL:         ttl,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(issued), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-share-links",
		Method:      http.MethodGet,
		Path:        "/events/{event_id}/share-links",
		Summary:     "List share links",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		EventID string `path:"event_id"`
	}) (*output[[]domain.ShareLink], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		links, err := e.ListShareLinks(ctx, input.EventID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(nonNilSlice(links)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-share-link-token",
		Method:      http.MethodGet,
		Path:        "/events/{event_id}/share-links/{link_id}/token",
		Summary:     "Token of a live share link",
		Errors:      shareErrors,
	}, func(ctx context.Context, input *struct {
		EventID string `path:"event_id"`
		LinkID  string `path:"link_id"`
	}) (*output[engine.IssuedLink], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		issued, err := e.ShareToken(ctx, input.EventID, input.LinkID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(issued), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "revoke-share-link",
		Method:      http.MethodDelete,
		Path:        "/events/{event_id}/share-links/{link_id}",
		Summary:     "Revoke a share link",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		EventID string `path:"event_id"`
		LinkID  string `path:"link_id"`
	}) (*output[domain.ShareLink], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		link, err := e.RevokeShareLink(ctx, input.EventID, input.LinkID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(link), nil
	})
}

// registerSharedViews mounts the read-only pages a link holder opens. The
// token in the path is the only credential.
func registerSharedViews(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "shared-timeline",
		Method:      http.MethodGet,
		Path:        "/share/{token}/timeline",
		Summary:     "Timeline for a share link holder",
		Errors:      shareErrors,
	}, func(ctx context.Context, input *struct {
		Token string `path:"token"`
		Mode  string `query:"mode" enum:"personal,global" default:"personal"`
	}) (*output[engine.SharedView], error) {
		view, err := e.SharedTimeline(ctx, input.Token, schedule.ParseMode(input.Mode))
		if err != nil {
			return nil, handleError(err)
		}
		view.Entries = nonNilSlice(view.Entries)
		return reply(view), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "shared-contacts",
		Method:      http.MethodGet,
		Path:        "/share/{token}/contacts",
		Summary:     "People and vendors the holder works with",
		Errors:      shareErrors,
	}, func(ctx context.Context, input *struct {
		Token string `path:"token"`
	}) (*output[engine.SharedContacts], error) {
		contacts, err := e.SharedContacts(ctx, input.Token)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(contacts), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "shared-calendar",
		Method:      http.MethodGet,
		Path:        "/share/{token}/calendar.ics",
		Summary:     "Holder's schedule as iCalendar",
		Errors:      shareErrors,
	}, func(ctx context.Context, input *struct {
		Token string `path:"token"`
		Mode  string `query:"mode" enum:"personal,global" default:"personal"`
	}) (*calendarOutput, error) {
		body, err := e.SharedCalendar(ctx, input.Token, schedule.ParseMode(input.Mode))
		if err != nil {
			return nil, handleError(err)
		}
		return icsResponse("schedule", body), nil
	})
}
