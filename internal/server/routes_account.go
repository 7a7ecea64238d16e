package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"eventline/internal/domain"
	"eventline/internal/engine"
	"eventline/internal/repo"
)

func registerDocuments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-document",
		Method:        http.MethodPost,
		Path:          "/events/{event_id}/documents",
		Summary:       "Register a document and get its upload URL",
		Description:   "PUT the file bytes to upload_url before it expires.",
		DefaultStatus: http.StatusCreated,
		Errors:        append(writeErrors, http.StatusServiceUnavailable),
	}, func(ctx context.Context, input *struct {
		EventID string                `path:"event_id"`
		Body    CreateDocumentRequest `json:"body"`
	}) (*output[engine.Upload], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		up, err := e.CreateDocument(ctx, input.EventID, input.Body.Name, input.Body.ContentType, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(up), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-documents",
		Method:      http.MethodGet,
		Path:        "/events/{event_id}/documents",
		Summary:     "List documents",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		EventID string `path:"event_id"`
	}) (*output[[]domain.Document], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		docs, err := e.ListDocuments(ctx, input.EventID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(nonNilSlice(docs)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-document-url",
		Method:      http.MethodGet,
		Path:        "/events/{event_id}/documents/{document_id}/url",
		Summary:     "Presigned download URL",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusServiceUnavailable},
	}, func(ctx context.Context, input *struct {
		EventID    string `path:"event_id"`
		DocumentID string `path:"document_id"`
	}) (*output[DocumentURLResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		url, err := e.DocumentURL(ctx, input.EventID, input.DocumentID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(DocumentURLResponse{URL: url}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-document",
		Method:        http.MethodDelete,
		Path:          "/events/{event_id}/documents/{document_id}",
		Summary:       "Delete a document",
		DefaultStatus: http.StatusNoContent,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		EventID    string `path:"event_id"`
		DocumentID string `path:"document_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteDocument(ctx, input.EventID, input.DocumentID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerActivity(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-activity",
		Method:      http.MethodGet,
		Path:        "/events/{event_id}/activity",
		Summary:     "Change log, newest first",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		EventID    string `path:"event_id"`
		Limit      int    `query:"limit" minimum:"0" maximum:"500" default:"50"`
		Cursor     int64  `query:"cursor" doc:"Return rows older than this id"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
	}) (*output[ActivityResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rows, err := e.Activity(ctx, input.EventID, actorID, input.Limit, input.Cursor, repo.ActivityFilter{
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := ActivityResponse{Items: nonNilSlice(rows)}
		if n := len(rows); n > 0 && n == input.Limit {
			resp.NextCursor = rows[n-1].ID
		}
		return reply(resp), nil
	})
}

func registerMe(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current actor and the events they organize",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*output[MeResponse], error) {
		principal, found := principalFromContext(ctx)
		if !found || principal.ActorID == "" {
			return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		}
		evs, err := e.ListEvents(ctx, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(MeResponse{
			ActorID: principal.ActorID,
			Source:  principal.Source,
			Events:  nonNilSlice(evs),
		}), nil
	})
}

func registerAPIKeys(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/api-keys",
		Summary:       "Create an API key for the caller",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest `json:"body"`
	}) (*output[APIKeyResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		key, secret, err := e.CreateAPIKey(ctx, actorID, strings.TrimSpace(input.Body.Name))
		if err != nil {
			return nil, handleError(err)
		}
		key.KeyHash = ""
		return reply(APIKeyResponse{Key: key, Secret: secret}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/api-keys",
		Summary:     "List the caller's API keys",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*output[[]domain.APIKey], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		keys, err := e.ListAPIKeys(ctx, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(nonNilSlice(keys)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "revoke-api-key",
		Method:        http.MethodDelete,
		Path:          "/api-keys/{key_id}",
		Summary:       "Revoke one of the caller's API keys",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		KeyID string `path:"key_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RevokeAPIKey(ctx, input.KeyID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*output[DevLoginResponse], error) {
		if !authCfg.DevLogin {
			return nil, newAPIError(http.StatusNotFound, "not_found", "dev login is disabled", nil)
		}
		actor := strings.TrimSpace(input.Body.ActorID)
		if actor == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		token, err := signDevToken(authCfg, actor, time.Now())
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return reply(DevLoginResponse{Token: token}), nil
	})
}
