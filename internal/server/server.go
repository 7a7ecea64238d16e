package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"eventline/internal/access"
	"eventline/internal/engine"
	"eventline/internal/engine/auth"
	"eventline/internal/logging"
	"eventline/internal/repo"
	"eventline/internal/schedule"
	"eventline/internal/storage"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	Log      logging.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"conflict"`
	Message string         `json:"message" example:"timeline was changed by someone else; reload and retry"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"failed_ids\":[\"item-1\"]}"`
}

type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the eventline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	log := cfg.Log
	if log == nil {
		log = logging.Nop()
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			// Schema validation failures are plain bad requests here.
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(log))
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(data))
			ctx := context.WithValue(r.Context(), bodyBytesKey{}, data)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine))
	hcfg := huma.DefaultConfig("eventline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerEvents(group, cfg.Engine)
	registerOrganizers(group, cfg.Engine)
	registerPeople(group, cfg.Engine)
	registerVendors(group, cfg.Engine)
	registerTimeline(group, cfg.Engine)
	registerShareLinks(group, cfg.Engine)
	registerSharedViews(group, cfg.Engine)
	registerDocuments(group, cfg.Engine)
	registerActivity(group, cfg.Engine)
	registerMe(group, cfg.Engine)
	registerAPIKeys(group, cfg.Engine)
	registerDevAuth(group, cfg.Auth)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var fe auth.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"permission": fe.Permission, "event_id": fe.EventID})
	}
	var ve engine.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, "validation_failed", err.Error(), map[string]any{"field": ve.Field})
	}
	msg := err.Error()
	switch {
	case errors.Is(err, repo.ErrNotFound), errors.Is(err, schedule.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", msg, nil)
	case errors.Is(err, access.ErrLinkRevoked):
		return newAPIError(http.StatusForbidden, "link_revoked", msg, nil)
	case errors.Is(err, access.ErrLinkExpired):
		return newAPIError(http.StatusForbidden, "link_expired", msg, nil)
	case errors.Is(err, access.ErrInvalidLink):
		return newAPIError(http.StatusUnauthorized, "invalid_link", msg, nil)
	case errors.Is(err, engine.ErrInvalidAPIKey):
		return newAPIError(http.StatusUnauthorized, "invalid_credentials", msg, nil)
	// Conflict first: a rejected batch is also a persist failure.
	case errors.Is(err, schedule.ErrConflict):
		return newAPIError(http.StatusConflict, "conflict", schedule.ErrConflict.Error(), nil)
	case errors.Is(err, schedule.ErrInvalidTimeFormat),
		errors.Is(err, schedule.ErrInvalidDuration),
		errors.Is(err, schedule.ErrInvalidIndex),
		errors.Is(err, schedule.ErrInvalidStatus),
		errors.Is(err, schedule.ErrInvalidPriority),
		errors.Is(err, schedule.ErrDerivedTime):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	case errors.Is(err, schedule.ErrPersistFailed):
		var details map[string]any
		var pe *schedule.PersistError
		if errors.As(err, &pe) && len(pe.FailedIDs) > 0 {
			details = map[string]any{"failed_ids": pe.FailedIDs}
		}
		return newAPIError(http.StatusBadGateway, "persist_failed", msg, details)
	case errors.Is(err, schedule.ErrLoadFailed):
		return newAPIError(http.StatusServiceUnavailable, "load_failed", msg, nil)
	case errors.Is(err, storage.ErrDisabled):
		return newAPIError(http.StatusServiceUnavailable, "storage_disabled", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// requestLogger writes one line per request once the response is done.
func requestLogger(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			}
			switch {
			case status >= 500:
				log.Error(r.Context(), "request", args...)
			case status >= 400:
				log.Warn(r.Context(), "request", args...)
			default:
				log.Debug(r.Context(), "request", args...)
			}
		})
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func operations(item *huma.PathItem) []*huma.Operation {
	return []*huma.Operation{
		item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
	}
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range operations(item) {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	for route, item := range oas.Paths {
		for _, op := range operations(item) {
			if op == nil {
				continue
			}
			if isPublicPath(basePath, route) {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>eventline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
      Share views take the link token in the path.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	return nil
}

func requireBody(ctx context.Context) huma.StatusError {
	if len(bytes.TrimSpace(bodyBytes(ctx))) == 0 {
		return newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
	}
	return nil
}

// ifVersion reads the expected timeline version from If-Match, falling back
// to the body value. Zero means no check.
func ifVersion(header string, body *int64) (int64, huma.StatusError) {
	header = strings.Trim(strings.TrimPrefix(strings.TrimSpace(header), "W/"), `"`)
	if header != "" && header != "*" {
		v, err := strconv.ParseInt(header, 10, 64)
		if err != nil || v < 0 {
			return 0, newAPIError(http.StatusBadRequest, "bad_request", "If-Match must be a timeline version", nil)
		}
		return v, nil
	}
	if body != nil {
		return *body, nil
	}
	return 0, nil
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
