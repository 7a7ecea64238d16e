package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventline/internal/access"
	"eventline/internal/config"
	"eventline/internal/db"
	"eventline/internal/domain"
	"eventline/internal/engine"
	"eventline/internal/migrate"
	"eventline/internal/schedule"
)

const (
	testSecret = "test-secret"
	owner      = "planner@example.com"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	Token  string
	client *http.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, migrate.Migrate(ctx, conn, db.DriverSQLite))

	e := engine.New(conn, db.DriverSQLite)
	e.Issuer = access.Issuer{Secret: []byte("share-secret"), Name: "eventline"}
	_, err = e.CreateEvent(ctx, engine.EventCreateOptions{
		ID:        "ev-1",
		Name:      "Alice & Bob",
		EventDate: "2026-06-20",
		Timezone:  "UTC",
		Venue:     "Chateau",
		ActorID:   owner,
	})
	require.NoError(t, err)

	authCfg := AuthConfig{JWTSecret: testSecret, JWTIssuer: "eventline", DevLogin: true}
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: authCfg})
	require.NoError(t, err)
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		ln.Close()
		conn.Close()
	})

	token, err := signDevToken(authCfg, owner, time.Now())
	require.NoError(t, err)
	return &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		Token:  token,
		client: &http.Client{},
	}
}

// do sends body as JSON with the owner's token unless headers override
// Authorization; an empty Authorization header sends none.
func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader = bytes.NewReader(nil)
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.Token)
	for k, v := range headers {
		if v == "" {
			req.Header.Del(k)
			continue
		}
		req.Header.Set(k, v)
	}
	res, err := s.client.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

func (s *testServer) decode(t *testing.T, method, path string, body any, want int, out any) {
	t.Helper()
	res, data := s.do(t, method, path, body, nil)
	require.Equal(t, want, res.StatusCode, string(data))
	if out != nil {
		require.NoError(t, json.Unmarshal(data, out))
	}
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func envelope(t *testing.T, data []byte) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(data, &env), string(data))
	return env
}

func TestHealthIsPublicAndAPIRequiresAuth(t *testing.T) {
	srv := newTestServer(t)

	res, data := srv.do(t, http.MethodGet, "/v0/health", nil, map[string]string{"Authorization": ""})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	res, data = srv.do(t, http.MethodGet, "/v0/events", nil, map[string]string{"Authorization": ""})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "unauthorized", envelope(t, data).Error.Code)

	res, data = srv.do(t, http.MethodGet, "/v0/events", nil, map[string]string{"Authorization": "Bearer nope"})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "invalid_credentials", envelope(t, data).Error.Code)
}

func TestTimelineOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	var first domain.TimelineItem
	srv.decode(t, http.MethodPost, "/v0/events/ev-1/timeline/items", map[string]any{
		"title": "Ceremony", "time": "14:00", "duration": 45,
	}, http.StatusCreated, &first)
	assert.Equal(t, "14:00", first.Time)

	var second domain.TimelineItem
	srv.decode(t, http.MethodPost, "/v0/events/ev-1/timeline/items", map[string]any{
		"title": "Cocktail", "duration": 90,
	}, http.StatusCreated, &second)
	assert.Equal(t, "14:45", second.Time)

	res, data := srv.do(t, http.MethodGet, "/v0/events/ev-1/timeline", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Equal(t, `"2"`, res.Header.Get("ETag"))
	var view engine.TimelineView
	require.NoError(t, json.Unmarshal(data, &view))
	require.Len(t, view.Items, 2)
	assert.Equal(t, 135, view.Summary.TotalDuration)
	assert.Equal(t, "16:15", view.Summary.EndOfDay)

	srv.decode(t, http.MethodPost, "/v0/events/ev-1/timeline/reorder", map[string]any{"from": 1, "to": 0}, http.StatusOK, &view)
	assert.Equal(t, "Cocktail", view.Items[0].Title)
	assert.Equal(t, "14:00", view.Items[0].Time)
	assert.Equal(t, "15:30", view.Items[1].Time)

	// The first item's time moves the day; later ones are derived.
	res, data = srv.do(t, http.MethodPatch, "/v0/events/ev-1/timeline/items/"+first.ID, map[string]any{"time": "18:00"}, nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))

	res, data = srv.do(t, http.MethodPost, "/v0/events/ev-1/timeline/items", map[string]any{
		"title": "Dinner", "time": "19:00", "duration": 60,
	}, nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
	assert.Equal(t, "bad_request", envelope(t, data).Error.Code)

	var dinner domain.TimelineItem
	srv.decode(t, http.MethodPost, "/v0/events/ev-1/timeline/items", map[string]any{
		"title": "Dinner", "time": "16:15", "duration": 60,
	}, http.StatusCreated, &dinner)
	assert.Equal(t, "16:15", dinner.Time)

	res, data = srv.do(t, http.MethodPatch, "/v0/events/ev-1/timeline/items/missing", map[string]any{"duration": 10}, nil)
	require.Equal(t, http.StatusNotFound, res.StatusCode, string(data))
	assert.Equal(t, "not_found", envelope(t, data).Error.Code)

	res, data = srv.do(t, http.MethodPost, "/v0/events/ev-1/timeline/reorder", map[string]any{"from": 0, "to": 5}, nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
}

func TestStaleIfMatchConflicts(t *testing.T) {
	srv := newTestServer(t)
	var item domain.TimelineItem
	srv.decode(t, http.MethodPost, "/v0/events/ev-1/timeline/items", map[string]any{"title": "A", "duration": 30}, http.StatusCreated, &item)

	res, data := srv.do(t, http.MethodPatch, "/v0/events/ev-1/timeline/items/"+item.ID,
		map[string]any{"duration": 40}, map[string]string{"If-Match": `"1"`})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	res, data = srv.do(t, http.MethodPatch, "/v0/events/ev-1/timeline/items/"+item.ID,
		map[string]any{"duration": 50}, map[string]string{"If-Match": `"1"`})
	require.Equal(t, http.StatusConflict, res.StatusCode, string(data))
	assert.Equal(t, "conflict", envelope(t, data).Error.Code)

	res, data = srv.do(t, http.MethodPost, "/v0/events/ev-1/timeline/items/"+item.ID+"/status",
		map[string]any{"status": "completed", "if_version": 1}, nil)
	require.Equal(t, http.StatusConflict, res.StatusCode, string(data))
}

func TestLegacyAssigneeFieldsAreFolded(t *testing.T) {
	srv := newTestServer(t)
	var anna domain.Person
	srv.decode(t, http.MethodPost, "/v0/events/ev-1/people", map[string]any{"name": "Anna", "role": "bridesmaid"}, http.StatusCreated, &anna)

	var item domain.TimelineItem
	srv.decode(t, http.MethodPost, "/v0/events/ev-1/timeline/items", map[string]any{
		"title":               "Hair",
		"duration":            60,
		"assigned_person_id":  anna.ID,
		"assigned_person_ids": []string{anna.ID},
	}, http.StatusCreated, &item)
	assert.Equal(t, []string{anna.ID}, item.AssignedPersonIDs)

	srv.decode(t, http.MethodPatch, "/v0/events/ev-1/timeline/items/"+item.ID, map[string]any{"assigned_person_id": ""}, http.StatusOK, &item)
	assert.Empty(t, item.AssignedPersonIDs)

	res, data := srv.do(t, http.MethodPost, "/v0/events/ev-1/timeline/items", map[string]any{
		"title": "Makeup", "assigned_person_id": "ghost",
	}, nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
	assert.Equal(t, "validation_failed", envelope(t, data).Error.Code)
}

func TestShareLinkViews(t *testing.T) {
	srv := newTestServer(t)
	var anna domain.Person
	srv.decode(t, http.MethodPost, "/v0/events/ev-1/people", map[string]any{"name": "Anna", "role": "bridesmaid", "notes": "private"}, http.StatusCreated, &anna)
	var ben domain.Person
	srv.decode(t, http.MethodPost, "/v0/events/ev-1/people", map[string]any{"name": "Ben"}, http.StatusCreated, &ben)
	srv.decode(t, http.MethodPost, "/v0/events/ev-1/timeline/items", map[string]any{
		"title": "Hair", "time": "09:00", "duration": 60, "assigned_person_ids": []string{anna.ID, ben.ID},
	}, http.StatusCreated, nil)
	srv.decode(t, http.MethodPost, "/v0/events/ev-1/timeline/items", map[string]any{"title": "Ceremony", "duration": 45}, http.StatusCreated, nil)

	var issued engine.IssuedLink
	srv.decode(t, http.MethodPost, "/v0/events/ev-1/share-links", map[string]any{
		"subject_kind": "person", "subject_id": anna.ID,
	}, http.StatusCreated, &issued)
	require.NotEmpty(t, issued.Token)

	noAuth := map[string]string{"Authorization": ""}
	res, data := srv.do(t, http.MethodGet, "/v0/share/"+issued.Token+"/timeline", nil, noAuth)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var view engine.SharedView
	require.NoError(t, json.Unmarshal(data, &view))
	require.Len(t, view.Entries, 1)
	assert.Equal(t, "Hair", view.Entries[0].Item.Title)
	assert.True(t, view.Entries[0].Mine)

	res, data = srv.do(t, http.MethodGet, "/v0/share/"+issued.Token+"/timeline?mode=global", nil, noAuth)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	require.NoError(t, json.Unmarshal(data, &view))
	assert.Len(t, view.Entries, 2)

	res, data = srv.do(t, http.MethodGet, "/v0/share/"+issued.Token+"/contacts", nil, noAuth)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var contacts engine.SharedContacts
	require.NoError(t, json.Unmarshal(data, &contacts))
	require.Len(t, contacts.People, 2)
	for _, p := range contacts.People {
		assert.Empty(t, p.Notes)
	}

	res, data = srv.do(t, http.MethodGet, "/v0/share/"+issued.Token+"/calendar.ics", nil, noAuth)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.True(t, strings.HasPrefix(res.Header.Get("Content-Type"), "text/calendar"))
	assert.Contains(t, string(data), "BEGIN:VCALENDAR")
	assert.Contains(t, string(data), "SUMMARY:Hair")
	assert.NotContains(t, string(data), "SUMMARY:Ceremony")

	res, data = srv.do(t, http.MethodGet, "/v0/share/not-a-token/timeline", nil, noAuth)
	require.Equal(t, http.StatusUnauthorized, res.StatusCode, string(data))

	srv.decode(t, http.MethodDelete, "/v0/events/ev-1/share-links/"+issued.Link.ID, nil, http.StatusOK, nil)
	res, data = srv.do(t, http.MethodGet, "/v0/share/"+issued.Token+"/timeline", nil, noAuth)
	require.Equal(t, http.StatusForbidden, res.StatusCode, string(data))
	assert.Equal(t, "link_revoked", envelope(t, data).Error.Code)
}

func TestForbiddenForNonOrganizer(t *testing.T) {
	srv := newTestServer(t)
	other, err := signDevToken(AuthConfig{JWTSecret: testSecret, JWTIssuer: "eventline"}, "stranger@example.com", time.Now())
	require.NoError(t, err)

	res, data := srv.do(t, http.MethodPost, "/v0/events/ev-1/timeline/items", map[string]any{"title": "X"},
		map[string]string{"Authorization": "Bearer " + other})
	require.Equal(t, http.StatusForbidden, res.StatusCode, string(data))
	assert.Equal(t, "forbidden", envelope(t, data).Error.Code)
}

func TestAPIKeyAndDevLogin(t *testing.T) {
	srv := newTestServer(t)

	var created APIKeyResponse
	srv.decode(t, http.MethodPost, "/v0/api-keys", map[string]any{"name": "ci"}, http.StatusCreated, &created)
	require.True(t, strings.HasPrefix(created.Secret, engine.APIKeyPrefix))
	assert.Empty(t, created.Key.KeyHash)

	res, data := srv.do(t, http.MethodGet, "/v0/me", nil, map[string]string{"Authorization": "", "X-Api-Key": created.Secret})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var me MeResponse
	require.NoError(t, json.Unmarshal(data, &me))
	assert.Equal(t, owner, me.ActorID)
	assert.Equal(t, "api_key", me.Source)
	require.Len(t, me.Events, 1)

	res, _ = srv.do(t, http.MethodGet, "/v0/me", nil, map[string]string{"Authorization": "", "X-Api-Key": created.Secret + "x"})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, data = srv.do(t, http.MethodPost, "/v0/auth/dev/login", map[string]any{"actor_id": "dev@example.com"}, map[string]string{"Authorization": ""})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var login DevLoginResponse
	require.NoError(t, json.Unmarshal(data, &login))
	res, data = srv.do(t, http.MethodGet, "/v0/me", nil, map[string]string{"Authorization": "Bearer " + login.Token})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	require.NoError(t, json.Unmarshal(data, &me))
	assert.Equal(t, "dev@example.com", me.ActorID)
	assert.Empty(t, me.Events)
}

func TestDocumentsNeedStorage(t *testing.T) {
	srv := newTestServer(t)
	res, data := srv.do(t, http.MethodPost, "/v0/events/ev-1/documents", map[string]any{"name": "plan.pdf"}, nil)
	require.Equal(t, http.StatusServiceUnavailable, res.StatusCode, string(data))
	assert.Equal(t, "storage_disabled", envelope(t, data).Error.Code)
}

func TestHandleErrorTimelineFailures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		details map[string]any
	}{
		{
			name:    "persist failure lists items",
			err:     &schedule.PersistError{Op: "reorder", FailedIDs: []string{"item-2", "item-3"}, Err: errors.New("disk I/O error")},
			status:  http.StatusBadGateway,
			code:    "persist_failed",
			details: map[string]any{"failed_ids": []string{"item-2", "item-3"}},
		},
		{
			name:   "persist failure without ids",
			err:    &schedule.PersistError{Op: "add", Err: errors.New("timeout")},
			status: http.StatusBadGateway,
			code:   "persist_failed",
		},
		{
			name:   "stale version inside a persist error",
			err:    &schedule.PersistError{Op: "add", FailedIDs: []string{"item-1"}, Err: schedule.ErrConflict},
			status: http.StatusConflict,
			code:   "conflict",
		},
		{
			name:   "load failure",
			err:    fmt.Errorf("%w: connection refused", schedule.ErrLoadFailed),
			status: http.StatusServiceUnavailable,
			code:   "load_failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := handleError(tt.err)
			require.Equal(t, tt.status, got.GetStatus())
			var ae *apiError
			require.ErrorAs(t, got, &ae)
			assert.Equal(t, tt.code, ae.Body.Code)
			assert.Equal(t, tt.details, ae.Body.Details)
		})
	}
}

func TestFoldAssignees(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, foldAssignees([]string{"a", "b", "a"}, "b"))
	assert.Equal(t, []string{"a", "c"}, foldAssignees([]string{"a", ""}, "c"))
	assert.Equal(t, []string{}, foldAssignees(nil, ""))
	assert.Nil(t, foldAssigneePatch(nil, nil))
}

func TestIfVersion(t *testing.T) {
	body := int64(7)
	v, err := ifVersion(`W/"3"`, &body)
	require.Nil(t, err)
	assert.Equal(t, int64(3), v)
	v, err = ifVersion("", &body)
	require.Nil(t, err)
	assert.Equal(t, int64(7), v)
	_, err = ifVersion("abc", nil)
	assert.NotNil(t, err)
}

func TestWebhookDelivery(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	var mu sync.Mutex
	var got []webhookDelivery
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		if r.Header.Get("X-Eventline-Signature") != "sha256="+Sign("hook-secret", data) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var d webhookDelivery
		_ = json.Unmarshal(data, &d)
		mu.Lock()
		got = append(got, d)
		mu.Unlock()
	}))
	defer hook.Close()

	d := NewWebhookDispatcher(srv.Engine.Repo, []config.Webhook{{URL: hook.URL, Secret: "hook-secret", EventID: "ev-1"}}, nil)
	// The first pass only places the cursor after existing rows.
	d.dispatch(ctx, 0)
	_, err := srv.Engine.CreatePerson(ctx, domain.Person{EventID: "ev-1", Name: "Anna"}, owner)
	require.NoError(t, err)
	d.dispatch(ctx, 0)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "person.created", got[0].Type)
	assert.Equal(t, "ev-1", got[0].EventID)
}

func TestWebhookRejectsBadSchedule(t *testing.T) {
	d := NewWebhookDispatcher(newTestServer(t).Engine.Repo, []config.Webhook{{URL: "http://127.0.0.1:1", Schedule: "every tuesday"}}, nil)
	assert.Error(t, d.Start(context.Background()))
	d.Stop()
}
