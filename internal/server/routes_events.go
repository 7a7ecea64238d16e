package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"eventline/internal/config"
	"eventline/internal/domain"
	"eventline/internal/engine"
)

type output[T any] struct {
	Body T `json:"body"`
}

func reply[T any](body T) *output[T] {
	return &output[T]{Body: body}
}

var writeErrors = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-event",
		Method:        http.MethodPost,
		Path:          "/events",
		Summary:       "Create event",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateEventRequest `json:"body"`
	}) (*output[domain.Event], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ev, err := e.CreateEvent(ctx, engine.EventCreateOptions{
			ID:        input.Body.ID,
			Name:      input.Body.Name,
			EventDate: input.Body.EventDate,
			Timezone:  input.Body.Timezone,
			Venue:     input.Body.Venue,
			ActorID:   actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(ev), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List the caller's events",
	}, func(ctx context.Context, _ *struct{}) (*output[[]domain.Event], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListEvents(ctx, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(nonNilSlice(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-event",
		Method:      http.MethodGet,
		Path:        "/events/{event_id}",
		Summary:     "Get event",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		EventID string `path:"event_id"`
	}) (*output[domain.Event], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ev, err := e.GetEvent(ctx, input.EventID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(ev), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-event",
		Method:      http.MethodPatch,
		Path:        "/events/{event_id}",
		Summary:     "Update event",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		EventID string             `path:"event_id"`
		Body    UpdateEventRequest `json:"body"`
	}) (*output[domain.Event], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ev, err := e.UpdateEvent(ctx, input.EventID, input.Body.patch(), actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(ev), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-event",
		Method:        http.MethodDelete,
		Path:          "/events/{event_id}",
		Summary:       "Delete event",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		EventID string `path:"event_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteEvent(ctx, input.EventID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-event-config",
		Method:      http.MethodGet,
		Path:        "/events/{event_id}/config",
		Summary:     "Get event planning config",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		EventID string `path:"event_id"`
	}) (*output[*config.Config], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		cfg, err := e.EventConfig(ctx, input.EventID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(cfg), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "put-event-config",
		Method:      http.MethodPut,
		Path:        "/events/{event_id}/config",
		Summary:     "Replace event planning config",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		EventID string        `path:"event_id"`
		Body    config.Config `json:"body"`
	}) (*output[*config.Config], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		cfg, err := e.SetEventConfig(ctx, input.EventID, &input.Body, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(cfg), nil
	})
}

func registerOrganizers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-organizers",
		Method:      http.MethodGet,
		Path:        "/events/{event_id}/organizers",
		Summary:     "List organizers",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		EventID string `path:"event_id"`
	}) (*output[[]domain.Organizer], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListOrganizers(ctx, input.EventID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(nonNilSlice(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-organizer",
		Method:      http.MethodPut,
		Path:        "/events/{event_id}/organizers/{actor_id}",
		Summary:     "Grant or change an organizer role",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		EventID string                 `path:"event_id"`
		ActorID string                 `path:"actor_id"`
		Body    AssignOrganizerRequest `json:"body"`
	}) (*output[domain.Organizer], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		org, err := e.AssignOrganizer(ctx, input.EventID, input.ActorID, input.Body.Role, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(org), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "remove-organizer",
		Method:        http.MethodDelete,
		Path:          "/events/{event_id}/organizers/{actor_id}",
		Summary:       "Remove an organizer",
		DefaultStatus: http.StatusNoContent,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		EventID string `path:"event_id"`
		ActorID string `path:"actor_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RemoveOrganizer(ctx, input.EventID, input.ActorID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerPeople(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-person",
		Method:        http.MethodPost,
		Path:          "/events/{event_id}/people",
		Summary:       "Add a person",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		EventID string        `path:"event_id"`
		Body    PersonRequest `json:"body"`
	}) (*output[domain.Person], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.CreatePerson(ctx, domain.Person{
			EventID: input.EventID,
			Name:    input.Body.Name,
			Role:    input.Body.Role,
			Email:   input.Body.Email,
			Phone:   input.Body.Phone,
			Notes:   input.Body.Notes,
		}, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-people",
		Method:      http.MethodGet,
		Path:        "/events/{event_id}/people",
		Summary:     "List people",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		EventID string `path:"event_id"`
	}) (*output[[]domain.Person], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListPeople(ctx, input.EventID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(nonNilSlice(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-person",
		Method:      http.MethodPatch,
		Path:        "/events/{event_id}/people/{person_id}",
		Summary:     "Update a person",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		EventID  string              `path:"event_id"`
		PersonID string              `path:"person_id"`
		Body     UpdatePersonRequest `json:"body"`
	}) (*output[domain.Person], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b := input.Body
		p, err := e.UpdatePerson(ctx, input.EventID, input.PersonID, domain.PersonPatch{
			Name: b.Name, Role: b.Role, Email: b.Email, Phone: b.Phone, Notes: b.Notes,
		}, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-person",
		Method:        http.MethodDelete,
		Path:          "/events/{event_id}/people/{person_id}",
		Summary:       "Delete a person",
		Description:   "Timeline items keep the id; the person simply no longer resolves.",
		DefaultStatus: http.StatusNoContent,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		EventID  string `path:"event_id"`
		PersonID string `path:"person_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeletePerson(ctx, input.EventID, input.PersonID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerVendors(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-vendor",
		Method:        http.MethodPost,
		Path:          "/events/{event_id}/vendors",
		Summary:       "Add a vendor",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		EventID string        `path:"event_id"`
		Body    VendorRequest `json:"body"`
	}) (*output[domain.Vendor], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b := input.Body
		v, err := e.CreateVendor(ctx, domain.Vendor{
			EventID:     input.EventID,
			Name:        b.Name,
			ServiceType: b.ServiceType,
			ContactName: b.ContactName,
			Email:       b.Email,
			Phone:       b.Phone,
			Notes:       b.Notes,
		}, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(v), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-vendors",
		Method:      http.MethodGet,
		Path:        "/events/{event_id}/vendors",
		Summary:     "List vendors",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		EventID string `path:"event_id"`
	}) (*output[[]domain.Vendor], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListVendors(ctx, input.EventID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(nonNilSlice(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-vendor",
		Method:      http.MethodPatch,
		Path:        "/events/{event_id}/vendors/{vendor_id}",
		Summary:     "Update a vendor",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		EventID  string              `path:"event_id"`
		VendorID string              `path:"vendor_id"`
		Body     UpdateVendorRequest `json:"body"`
	}) (*output[domain.Vendor], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b := input.Body
		v, err := e.UpdateVendor(ctx, input.EventID, input.VendorID, domain.VendorPatch{
			Name:        b.Name,
			ServiceType: b.ServiceType,
			ContactName: b.ContactName,
			Email:       b.Email,
			Phone:       b.Phone,
			Notes:       b.Notes,
		}, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(v), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-vendor",
		Method:        http.MethodDelete,
		Path:          "/events/{event_id}/vendors/{vendor_id}",
		Summary:       "Delete a vendor",
		DefaultStatus: http.StatusNoContent,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		EventID  string `path:"event_id"`
		VendorID string `path:"vendor_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteVendor(ctx, input.EventID, input.VendorID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
