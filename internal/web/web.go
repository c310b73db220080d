package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"rostercal/internal/calendar"
	"rostercal/internal/config"
	appLog "rostercal/internal/log"
	"rostercal/internal/model"
	"rostercal/internal/normalize"
	"rostercal/internal/roster"
)

// Server exposes the roster controller as a JSON API for presentation
// clients.
type Server struct {
	cfg     *config.Config
	ctrl    *roster.Controller
	tracker *calendar.Tracker
	norm    *normalize.Normalizer
	mux     *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, ctrl *roster.Controller, tracker *calendar.Tracker, norm *normalize.Normalizer) *Server {
	if norm == nil {
		norm = normalize.Default()
	}
	s := &Server{
		cfg:     cfg,
		ctrl:    ctrl,
		tracker: tracker,
		norm:    norm,
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials leave auth disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="rostercal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Run serves on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/requests", s.handleRequests)
	s.mux.HandleFunc("POST /api/requests", s.handleSave)
	s.mux.HandleFunc("DELETE /api/requests/{id}", s.handleDelete)
	s.mux.HandleFunc("GET /api/requests/active", s.handleActive)
	s.mux.HandleFunc("GET /api/people", s.handlePerson)
	s.mux.HandleFunc("GET /api/names", s.handleNames)

	s.mux.HandleFunc("GET /api/calendar", s.handleCalendar)
	s.mux.HandleFunc("GET /calendar.ics", s.handleICS)

	s.mux.HandleFunc("GET /api/selection", s.handleSelection)
	s.mux.HandleFunc("PUT /api/selection", s.handleSelect)
	s.mux.HandleFunc("PUT /api/editing", s.handleEditing)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// stateResponse is the JSON shape for /api/requests.
type stateResponse struct {
	roster.SyncState
	MutationError string `json:"mutation_error,omitempty"`
}

func (s *Server) handleRequests(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, stateResponse{
		SyncState:     s.ctrl.State(),
		MutationError: s.ctrl.MutationError(),
	})
}

type requestsResponse struct {
	Name     string                `json:"name,omitempty"`
	Requests []model.RosterRequest `json:"requests"`
}

func (s *Server) handleActive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, requestsResponse{Requests: s.ctrl.ActiveRequests()})
}

// handlePerson lists one person's active requests.
//
// GET /api/people?name=Alice
//   - name: defaults to the current selection
func (s *Server) handlePerson(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		name = s.ctrl.Selected()
	}
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	writeJSON(w, http.StatusOK, requestsResponse{Name: name, Requests: s.ctrl.ActiveFor(name)})
}

type namesResponse struct {
	Names []string         `json:"names"`
	Team  roster.TeamState `json:"team"`
}

func (s *Server) handleNames(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, namesResponse{
		Names: s.ctrl.SortedNames(),
		Team:  s.ctrl.Team(),
	})
}

// calendarResponse is the JSON shape for /api/calendar.
type calendarResponse struct {
	calendar.Month
	Pinned       bool                  `json:"pinned"`
	Legend       []calendar.LegendItem `json:"legend"`
	RequestTypes []string              `json:"request_types"`
	Variants     map[string]string     `json:"variants"`
}

// handleCalendar returns the month grid.
//
// GET /api/calendar?month=2024-03
//   - month: defaults to the tracked reference month
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	ref, pinned, err := s.referenceMonth(r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
		return
	}

	m := calendar.BuildWith(s.norm, ref, s.ctrl.Requests())
	variants := make(map[string]string)
	for _, c := range m.Days() {
		for _, req := range c.Requests {
			variants[req.Request] = calendar.Variant(req.Request)
		}
	}

	writeJSON(w, http.StatusOK, calendarResponse{
		Month:        m,
		Pinned:       pinned,
		Legend:       calendar.Legend,
		RequestTypes: calendar.RequestTypes,
		Variants:     variants,
	})
}

func (s *Server) referenceMonth(raw string) (time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.tracker.Reference(), s.tracker.Pinned(), nil
	}
	loc := s.norm.Location
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation("2006-01", raw, loc)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

func (s *Server) handleICS(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	err := calendar.WriteICS(&buf, s.ctrl.Requests(), calendar.ICSOptions{
		Name:       "Roster requests",
		Now:        time.Now(),
		Normalizer: s.norm,
	})
	if err != nil {
		appLog.Error("ics export failed", err)
		writeError(w, http.StatusInternalServerError, "failed to export calendar")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="roster.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// draftRequest is the body of POST /api/requests. A non-empty ID updates
// the existing request.
type draftRequest struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Date    string `json:"date"`
	Request string `json:"request"`
	Comment string `json:"comment"`
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var body draftRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.Name) == "" || strings.TrimSpace(body.Date) == "" {
		writeError(w, http.StatusBadRequest, "name and date are required")
		return
	}

	d := model.Draft{
		ID:      strings.TrimSpace(body.ID),
		Name:    strings.TrimSpace(body.Name),
		Date:    strings.TrimSpace(body.Date),
		Request: strings.TrimSpace(body.Request),
		Comment: body.Comment,
	}
	// A failed reload after a persisted write is still a success; the
	// message travels in mutation_error.
	if err := s.ctrl.Update(r.Context(), d); err != nil && !errors.Is(err, roster.ErrReloadAfterWrite) {
		writeMutationError(w, s.ctrl.MutationError(), err)
		return
	}

	status := http.StatusOK
	if d.ID == "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, stateResponse{
		SyncState:     s.ctrl.State(),
		MutationError: s.ctrl.MutationError(),
	})
}

// handleDelete removes a request.
//
// DELETE /api/requests/{id}?name=Alice
//   - name: owner of the request; looked up by id when omitted
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		if req, ok := s.findRequest(id); ok {
			name = req.Name
		}
	}

	if err := s.ctrl.Delete(r.Context(), model.RosterRequest{ID: id, Name: name}); err != nil {
		if errors.Is(err, roster.ErrMissingID) {
			writeError(w, http.StatusBadRequest, s.ctrl.MutationError())
			return
		}
		if !errors.Is(err, roster.ErrReloadAfterWrite) {
			writeMutationError(w, s.ctrl.MutationError(), err)
			return
		}
	}
	writeJSON(w, http.StatusOK, stateResponse{
		SyncState:     s.ctrl.State(),
		MutationError: s.ctrl.MutationError(),
	})
}

type selectionResponse struct {
	Name    string               `json:"name"`
	Editing *model.RosterRequest `json:"editing"`
}

func (s *Server) selection() selectionResponse {
	return selectionResponse{Name: s.ctrl.Selected(), Editing: s.ctrl.Editing()}
}

func (s *Server) handleSelection(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.selection())
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !s.ctrl.Select(body.Name) {
		writeError(w, http.StatusNotFound, "name is not on the roster")
		return
	}
	writeJSON(w, http.StatusOK, s.selection())
}

// handleEditing marks a request as being edited; an empty id clears it.
func (s *Server) handleEditing(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	id := strings.TrimSpace(body.ID)
	if id == "" {
		s.ctrl.SetEditing(nil)
		writeJSON(w, http.StatusOK, s.selection())
		return
	}
	req, ok := s.findRequest(id)
	if !ok {
		writeError(w, http.StatusNotFound, "request not found")
		return
	}
	s.ctrl.SetEditing(&req)
	writeJSON(w, http.StatusOK, s.selection())
}

func (s *Server) findRequest(id string) (model.RosterRequest, bool) {
	if id == "" {
		return model.RosterRequest{}, false
	}
	for _, req := range s.ctrl.Requests() {
		if req.ID == id {
			return req, true
		}
	}
	return model.RosterRequest{}, false
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

// writeMutationError reports a failed remote write. The controller's message
// is preferred since it is what users see elsewhere.
func writeMutationError(w http.ResponseWriter, msg string, err error) {
	if msg == "" {
		msg = err.Error()
	}
	writeError(w, http.StatusBadGateway, msg)
}
