// Package server exposes the assessment route and stored assessments over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/co-cddo/webcaf/internal/assessment"
	"github.com/co-cddo/webcaf/internal/export"
	"github.com/co-cddo/webcaf/internal/form"
	"github.com/co-cddo/webcaf/internal/route"
)

const (
	// UserHeader carries the name recorded as last_updated_by.
	UserHeader = "X-Webcaf-User"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	readyTimeout    = 2 * time.Second
	maxBodyBytes    = 1 << 20
)

// Checker is a dependency that can report whether it is usable.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// Server holds the HTTP handlers.
type Server struct {
	svc    *assessment.Service
	hub    *Hub
	checks map[string]Checker
}

// Option configures a Server.
type Option func(*Server)

// WithHealthCheck adds a dependency to the readiness check.
func WithHealthCheck(name string, c Checker) Option {
	return func(s *Server) { s.checks[name] = c }
}

// WithHub enables the progress websocket feed. The same hub should be passed
// to the service as its notifier.
func WithHub(h *Hub) Option {
	return func(s *Server) { s.hub = h }
}

// New creates a server for svc.
func New(svc *assessment.Service, opts ...Option) *Server {
	s := &Server{svc: svc, checks: make(map[string]Checker)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.HandleFunc("GET /pages", s.handleListPages)
	mux.HandleFunc("GET /pages/{pageID}", s.handleGetPage)
	mux.HandleFunc("GET /framework/template.xlsx", s.handleTemplate)

	mux.HandleFunc("POST /assessments", s.handleCreate)
	mux.HandleFunc("GET /assessments/{id}", s.handleGet)
	mux.HandleFunc("GET /assessments/{id}/progress", s.handleProgress)
	if s.hub != nil {
		mux.HandleFunc("GET /assessments/{id}/progress/ws", s.handleProgressWS)
	}
	mux.HandleFunc("GET /assessments/{id}/pages/{pageID}", s.handleView)
	mux.HandleFunc("POST /assessments/{id}/pages/{pageID}", s.handleSubmit)
	mux.HandleFunc("GET /assessments/{id}/export.xlsx", s.handleExport)
	return mux
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	failed := map[string]string{}
	for name, c := range s.checks {
		if err := c.HealthCheck(ctx); err != nil {
			slog.Warn("readiness check failed", "check", name, "error", err)
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// pageSummary is one entry of the navigation sequence.
type pageSummary struct {
	ID            string          `json:"id"`
	Stage         route.StageKind `json:"stage"`
	Title         string          `json:"title"`
	Template      string          `json:"template"`
	SuccessTarget string          `json:"success_target"`
}

func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	pages := s.svc.Route().Pages()
	out := make([]pageSummary, 0, len(pages))
	for _, p := range pages {
		out = append(out, pageSummary{
			ID:            p.ID,
			Stage:         p.Stage,
			Title:         p.Metadata.Title,
			Template:      p.Template,
			SuccessTarget: p.SuccessTarget,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	page, ok := s.svc.Route().Page(r.PathValue("pageID"))
	if !ok {
		writeErr(w, http.StatusNotFound, "page not found")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	buf, err := export.Template(s.svc.Route().Framework())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeFile(w, "caf-self-assessment-template.xlsx", buf.Bytes())
}

type createRequest struct {
	SystemName string `json:"system_name"`
	Profile    string `json:"caf_profile"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	a, err := s.svc.Create(r.Context(), assessment.Assessment{
		SystemName:    req.SystemName,
		Profile:       req.Profile,
		LastUpdatedBy: r.Header.Get(UserHeader),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/assessments/%d", a.ID))
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := assessmentID(w, r)
	if !ok {
		return
	}
	a, err := s.svc.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := assessmentID(w, r)
	if !ok {
		return
	}
	p, err := s.svc.Progress(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	id, ok := assessmentID(w, r)
	if !ok {
		return
	}
	v, err := s.svc.View(r.Context(), id, r.PathValue("pageID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	id, ok := assessmentID(w, r)
	if !ok {
		return
	}
	values, err := readValues(w, r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.svc.Submit(r.Context(), id, r.PathValue("pageID"), values, r.Header.Get(UserHeader))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id, ok := assessmentID(w, r)
	if !ok {
		return
	}
	a, err := s.svc.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	buf, err := export.Assessment(s.svc.Route().Framework(), a)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	name := fmt.Sprintf("assessment-%d.xlsx", a.ID)
	if a.Reference != "" {
		name = fmt.Sprintf("assessment-%s.xlsx", a.Reference)
	}
	writeFile(w, name, buf.Bytes())
}

// readValues accepts either a JSON object of strings or a urlencoded form.
// Only the first value of a repeated form field is used.
func readValues(w http.ResponseWriter, r *http.Request) (map[string]string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	values := map[string]string{}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		for k := range r.PostForm {
			values[k] = r.PostForm.Get(k)
		}
		return values, nil
	}

	if r.ContentLength == 0 {
		return values, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		return nil, err
	}
	return values, nil
}

func assessmentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		writeErr(w, http.StatusBadRequest, "invalid assessment id")
		return 0, false
	}
	return id, true
}

// fail maps service errors onto HTTP responses.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var fe form.FieldErrors
	switch {
	case errors.As(err, &fe):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": fe})
	case errors.Is(err, assessment.ErrNotFound):
		writeErr(w, http.StatusNotFound, "assessment not found")
	case errors.Is(err, route.ErrUnknownPage):
		writeErr(w, http.StatusNotFound, "page not found")
	case errors.Is(err, assessment.ErrWrongStage):
		writeErr(w, http.StatusConflict, err.Error())
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeErr(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errResp struct {
	Error string `json:"error"`
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errResp{Error: msg})
}

func writeFile(w http.ResponseWriter, name string, data []byte) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
