package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rostercal/internal/calendar"
	"rostercal/internal/config"
	"rostercal/internal/model"
	"rostercal/internal/normalize"
	"rostercal/internal/roster"
)

type sheet struct {
	mu       sync.Mutex
	rows     []map[string]any
	deleted  []string
	saved    []model.Payload
	writeErr error
	fetchErr error
}

func (s *sheet) FetchRequests(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return json.Marshal(s.rows)
}

func (s *sheet) FetchTeamMembers(context.Context) ([]byte, error) {
	return []byte(`[]`), nil
}

func (s *sheet) Submit(_ context.Context, p model.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.saved = append(s.saved, p)
	s.rows = append(s.rows, map[string]any{
		"id": "new", "name": p.Name, "date": p.Date, "request": p.Request, "status": "Active",
	})
	return nil
}

func (s *sheet) Update(_ context.Context, _ string, p model.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, p)
	return s.writeErr
}

func (s *sheet) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.deleted = append(s.deleted, id)
	kept := s.rows[:0]
	for _, r := range s.rows {
		if r["id"] != id {
			kept = append(kept, r)
		}
	}
	s.rows = kept
	return nil
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *roster.Controller, *sheet) {
	t.Helper()

	remote := &sheet{rows: []map[string]any{
		{"id": "1", "name": "Alice", "date": "2024-03-15", "request": "AM", "status": "Active"},
		{"id": "2", "name": "Alice", "date": "2024-03-02", "request": "AL", "status": "Active"},
		{"id": "3", "name": "Bob", "date": "16/03/2024", "request": "PM", "status": "Active"},
		{"id": "4", "name": "Cara", "date": "2024-03-20", "request": "OFF", "status": "Inactive"},
	}}
	norm := normalize.New(normalize.DayFirst, time.UTC)
	ctrl := roster.New(remote, roster.Options{PollInterval: time.Hour, Normalizer: norm})
	_, err := ctrl.Refresh(context.Background())
	require.NoError(t, err)

	tracker := calendar.NewTracker(time.UTC, func() time.Time {
		return time.Date(2024, time.February, 10, 0, 0, 0, 0, time.UTC)
	})
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return NewServer(cfg, ctrl, tracker, norm), ctrl, remote
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestRequestsAndActive(t *testing.T) {
	s, _, _ := newTestServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/requests", "")
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[struct {
		Requests []model.RosterRequest `json:"requests"`
		Phase    string                `json:"phase"`
	}](t, rec)
	assert.Len(t, all.Requests, 4)
	assert.Equal(t, "ready", all.Phase)

	rec = do(t, h, http.MethodGet, "/api/requests/active", "")
	require.Equal(t, http.StatusOK, rec.Code)
	active := decode[requestsResponse](t, rec)
	assert.Len(t, active.Requests, 3)
}

func TestPeople(t *testing.T) {
	s, ctrl, _ := newTestServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/people", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/people?name=alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[requestsResponse](t, rec)
	require.Len(t, got.Requests, 2)
	assert.Equal(t, "2", got.Requests[0].ID)
	assert.Equal(t, "1", got.Requests[1].ID)

	require.True(t, ctrl.Select("Bob"))
	rec = do(t, h, http.MethodGet, "/api/people", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got = decode[requestsResponse](t, rec)
	assert.Equal(t, "Bob", got.Name)
	assert.Len(t, got.Requests, 1)
}

func TestNames_FallBackToRequestNames(t *testing.T) {
	s, _, _ := newTestServer(t, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/api/names", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[namesResponse](t, rec)
	assert.Equal(t, []string{"Alice", "Bob", "Cara"}, got.Names)
}

func TestCalendar(t *testing.T) {
	s, _, _ := newTestServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/calendar", "")
	require.Equal(t, http.StatusOK, rec.Code)
	def := decode[struct {
		Title  string `json:"title"`
		Pinned bool   `json:"pinned"`
	}](t, rec)
	assert.Equal(t, "March 2024", def.Title)
	assert.False(t, def.Pinned)

	rec = do(t, h, http.MethodGet, "/api/calendar?month=2024-03", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[struct {
		Title    string              `json:"title"`
		Pinned   bool                `json:"pinned"`
		Weeks    [][7]*calendar.Cell `json:"weeks"`
		Variants map[string]string   `json:"variants"`
	}](t, rec)
	assert.True(t, got.Pinned)
	require.NotEmpty(t, got.Weeks)
	assert.Nil(t, got.Weeks[0][0])

	byDate := map[string]*calendar.Cell{}
	for _, w := range got.Weeks {
		for _, c := range w {
			if c != nil {
				byDate[c.Date] = c
			}
		}
	}
	assert.Len(t, byDate, 31)
	assert.Len(t, byDate["2024-03-15"].Requests, 1)
	assert.Len(t, byDate["2024-03-16"].Requests, 1)
	assert.Empty(t, byDate["2024-03-20"].Requests)
	assert.Equal(t, calendar.VariantOff, got.Variants["AL"])

	rec = do(t, h, http.MethodGet, "/api/calendar?month=March", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestICS(t *testing.T) {
	s, _, _ := newTestServer(t, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/calendar.ics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/calendar")

	cal, err := ics.ParseCalendar(strings.NewReader(rec.Body.String()))
	require.NoError(t, err)
	assert.Len(t, cal.Events(), 3)
}

func TestSave(t *testing.T) {
	s, ctrl, remote := newTestServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/requests", `{"name":"Dan","request":"AM"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/requests", `{"name":" Dan ","date":"01/04/2024","request":"AM","comment":" hi "}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, remote.saved, 1)
	assert.Equal(t, model.Payload{Name: "Dan", Date: "2024-04-01", Day: "Monday", Request: "AM", Comment: "hi"}, remote.saved[0])
	assert.Len(t, ctrl.Requests(), 5)

	remote.writeErr = errors.New("Sheet is locked")
	rec = do(t, h, http.MethodPost, "/api/requests", `{"id":"1","name":"Alice","date":"2024-03-15","request":"PM"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Sheet is locked", decode[map[string]string](t, rec)["error"])
}

func TestDelete_ClearsSelectionForLastActive(t *testing.T) {
	s, ctrl, remote := newTestServer(t, nil)
	h := s.Handler()
	require.True(t, ctrl.Select("Bob"))

	rec := do(t, h, http.MethodDelete, "/api/requests/3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"3"}, remote.deleted)
	assert.Equal(t, "", ctrl.Selected())
}

func TestDelete_Failure(t *testing.T) {
	s, _, remote := newTestServer(t, nil)
	remote.writeErr = errors.New("")

	rec := do(t, s.Handler(), http.MethodDelete, "/api/requests/1?name=Alice", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Unable to delete request.", decode[map[string]string](t, rec)["error"])
}

func TestSelectionAndEditing(t *testing.T) {
	s, _, _ := newTestServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodPut, "/api/selection", `{"name":"Zed"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/selection", `{"name":"alice"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", decode[selectionResponse](t, rec).Name)

	rec = do(t, h, http.MethodPut, "/api/editing", `{"id":"99"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/editing", `{"id":"1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	sel := decode[selectionResponse](t, rec)
	require.NotNil(t, sel.Editing)
	assert.Equal(t, "2024-03-15", sel.Editing.Date)

	rec = do(t, h, http.MethodGet, "/api/selection", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, decode[selectionResponse](t, rec).Editing)

	rec = do(t, h, http.MethodPut, "/api/editing", `{"id":""}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[selectionResponse](t, rec).Editing)

	rec = do(t, h, http.MethodPut, "/api/selection", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	s, _, _ := newTestServer(t, cfg)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/requests", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/api/requests", nil)
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWrites_ReloadFailureIsNotReportedAsFailedWrite(t *testing.T) {
	s, _, remote := newTestServer(t, nil)
	h := s.Handler()
	remote.fetchErr = errors.New("Could not reach sheet")

	rec := do(t, h, http.MethodPost, "/api/requests", `{"name":"Dan","date":"2024-04-01","request":"AM"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Saved, but could not reload roster data.", decode[stateResponse](t, rec).MutationError)
	assert.Len(t, remote.saved, 1)

	rec = do(t, h, http.MethodDelete, "/api/requests/3?name=Bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Deleted, but could not reload roster data.", decode[stateResponse](t, rec).MutationError)
	assert.Equal(t, []string{"3"}, remote.deleted)
}
