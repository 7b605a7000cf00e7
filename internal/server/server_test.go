package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/co-cddo/webcaf/internal/assessment"
	"github.com/co-cddo/webcaf/internal/framework"
	"github.com/co-cddo/webcaf/internal/route"
	"github.com/co-cddo/webcaf/internal/server"
)

const testFramework = `
objectives:
  A:
    code: A
    title: Managing security risk
    principles:
      A1:
        code: A1
        title: Governance
        outcomes:
          A1.a:
            code: A1.a
            title: Board direction
            indicators:
              not-achieved:
                A1.a.1:
                  description: No direction.
              achieved:
                A1.a.2:
                  description: The board has direction.
  B:
    code: B
    title: Protecting against cyber attack
    principles:
      B1:
        code: B1
        title: Policies
        outcomes:
          B1.a:
            code: B1.a
            title: Policy development
            indicators:
              achieved:
                B1.a.1:
                  description: Policy is complete.
`

const answersJSON = `{
	"not-achieved_A1.a.1": "not_true_no_justification",
	"achieved_A1.a.2": "agreed"
}`

type fixture struct {
	handler http.Handler
	svc     *assessment.Service
	hub     *server.Hub
}

func newFixture(t *testing.T, opts ...server.Option) *fixture {
	t.Helper()
	fw, err := framework.Parse([]byte(testFramework))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	r, err := route.Compile(fw, "index", route.CompileOptions{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	hub := server.NewHub()
	svc := assessment.NewService(r, assessment.NewMemoryStore(),
		assessment.WithNotifier(hub),
		assessment.WithFrameworkID("caf32"),
	)
	opts = append([]server.Option{server.WithHub(hub)}, opts...)
	return &fixture{handler: server.New(svc, opts...).Handler(), svc: svc, hub: hub}
}

func (f *fixture) do(t *testing.T, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set(server.UserHeader, "alice")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func (f *fixture) create(t *testing.T) *assessment.Assessment {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/assessments", "application/json", `{"system_name":"Payroll","caf_profile":"baseline"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want %d (body %q)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	a := decode[assessment.Assessment](t, rec)
	return &a
}

type failingCheck struct{}

func (failingCheck) HealthCheck(context.Context) error { return errors.New("connection refused") }

type okCheck struct{}

func (okCheck) HealthCheck(context.Context) error { return nil }

func TestHealthEndpoints(t *testing.T) {
	tests := []struct {
		name       string
		opts       []server.Option
		path       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "healthz returns 200",
			path:       "/healthz",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ok"}`,
		},
		{
			name:       "readyz returns 200",
			opts:       []server.Option{server.WithHealthCheck("database", okCheck{})},
			path:       "/readyz",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ready"}`,
		},
		{
			name:       "readyz reports failing dependency",
			opts:       []server.Option{server.WithHealthCheck("cache", failingCheck{})},
			path:       "/readyz",
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `{"checks":{"cache":"connection refused"},"status":"unavailable"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.opts...)
			rec := f.do(t, http.MethodGet, tt.path, "", "")

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != tt.wantBody {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
		})
	}
}

func TestPages(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/pages", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	pages := decode[[]struct {
		ID            string `json:"id"`
		SuccessTarget string `json:"success_target"`
	}](t, rec)

	want := []string{
		"objective_A", "principle_A1", "indicators_A1.a", "confirmation_A1.a",
		"objective_B", "principle_B1", "indicators_B1.a", "confirmation_B1.a",
	}
	if len(pages) != len(want) {
		t.Fatalf("len(pages) = %d, want %d", len(pages), len(want))
	}
	for i, id := range want {
		if pages[i].ID != id {
			t.Errorf("pages[%d].ID = %q, want %q", i, pages[i].ID, id)
		}
	}
	if last := pages[len(pages)-1]; last.SuccessTarget != "index" {
		t.Errorf("last SuccessTarget = %q, want index", last.SuccessTarget)
	}

	rec = f.do(t, http.MethodGet, "/pages/indicators_A1.a", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET page status = %d, want 200", rec.Code)
	}
	page := decode[route.PageDescriptor](t, rec)
	if page.Template != route.TemplateIndicators || page.OwnerKey != "A1.a" {
		t.Errorf("page = %+v, want indicators page owned by A1.a", page)
	}

	if rec := f.do(t, http.MethodGet, "/pages/nope", "", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown page status = %d, want 404", rec.Code)
	}
}

func TestAssessmentLifecycle(t *testing.T) {
	f := newFixture(t)
	a := f.create(t)

	if a.Reference != "8BNL1" || a.FrameworkID != "caf32" || a.LastUpdatedBy != "alice" {
		t.Errorf("created = %+v, want reference 8BNL1, framework caf32, user alice", a)
	}

	path := "/assessments/1/pages/indicators_A1.a"
	rec := f.do(t, http.MethodPost, path, "application/json", answersJSON)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit indicators status = %d, body %q", rec.Code, rec.Body.String())
	}
	res := decode[assessment.SubmitResult](t, rec)
	if res.Target != "confirmation_A1.a" {
		t.Errorf("Target = %q, want confirmation_A1.a", res.Target)
	}

	form := url.Values{
		"confirm_outcome":     {"confirm"},
		"supporting_comments": {"Board minutes"},
	}
	rec = f.do(t, http.MethodPost, "/assessments/1/pages/confirmation_A1.a", "application/x-www-form-urlencoded", form.Encode())
	if rec.Code != http.StatusOK {
		t.Fatalf("submit confirmation status = %d, body %q", rec.Code, rec.Body.String())
	}
	res = decode[assessment.SubmitResult](t, rec)
	if res.Status == nil || res.Status.OutcomeStatus != "Achieved" {
		t.Errorf("Status = %+v, want Achieved", res.Status)
	}

	rec = f.do(t, http.MethodGet, "/assessments/1/pages/confirmation_A1.a", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("view status = %d", rec.Code)
	}
	view := decode[assessment.PageView](t, rec)
	if view.Values["outcome_status"] != "Achieved" || view.Values["supporting_comments"] != "Board minutes" {
		t.Errorf("view values = %v", view.Values)
	}

	rec = f.do(t, http.MethodGet, "/assessments/1/progress", "", "")
	progress := decode[assessment.Progress](t, rec)
	if progress.Confirmed != 1 || progress.Total != 2 || progress.Complete {
		t.Errorf("progress = %d/%d complete=%v, want 1/2 incomplete", progress.Confirmed, progress.Total, progress.Complete)
	}

	rec = f.do(t, http.MethodGet, "/assessments/1", "", "")
	got := decode[assessment.Assessment](t, rec)
	if got.Data["A1.a"].Indicators["achieved_A1.a.2"] != "agreed" {
		t.Errorf("stored data = %+v", got.Data)
	}
}

func TestSubmit_Errors(t *testing.T) {
	f := newFixture(t)
	f.create(t)

	tests := []struct {
		name        string
		path        string
		contentType string
		body        string
		wantStatus  int
	}{
		{"missing answers", "/assessments/1/pages/indicators_A1.a", "application/json", `{}`, http.StatusUnprocessableEntity},
		{"malformed body", "/assessments/1/pages/indicators_A1.a", "application/json", `{`, http.StatusBadRequest},
		{"unknown page", "/assessments/1/pages/indicators_Z9.z", "application/json", `{}`, http.StatusNotFound},
		{"unknown assessment", "/assessments/99/pages/indicators_A1.a", "application/json", answersJSON, http.StatusNotFound},
		{"bad id", "/assessments/abc/pages/indicators_A1.a", "application/json", answersJSON, http.StatusBadRequest},
		{"title page", "/assessments/1/pages/objective_A", "", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, tt.path, tt.contentType, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %q)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestSubmit_FieldErrors(t *testing.T) {
	f := newFixture(t)
	f.create(t)

	rec := f.do(t, http.MethodPost, "/assessments/1/pages/indicators_A1.a", "application/json", `{"achieved_A1.a.2":"agreed"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	body := decode[struct {
		Errors map[string]string `json:"errors"`
	}](t, rec)
	if _, ok := body.Errors["not-achieved_A1.a.1"]; !ok || len(body.Errors) != 1 {
		t.Errorf("errors = %v, want one error for not-achieved_A1.a.1", body.Errors)
	}
}

func TestExports(t *testing.T) {
	f := newFixture(t)
	f.create(t)

	for _, path := range []string{"/framework/template.xlsx", "/assessments/1/export.xlsx"} {
		rec := f.do(t, http.MethodGet, path, "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s status = %d, want 200", path, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
			t.Errorf("GET %s Content-Type = %q", path, ct)
		}
		// xlsx files are zip archives.
		if !strings.HasPrefix(rec.Body.String(), "PK") {
			t.Errorf("GET %s body is not a zip archive", path)
		}
	}

	if rec := f.do(t, http.MethodGet, "/assessments/9/export.xlsx", "", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing assessment export status = %d, want 404", rec.Code)
	}
}

func TestProgressWebsocket(t *testing.T) {
	f := newFixture(t)
	a := f.create(t)

	srv := httptest.NewServer(f.handler)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/assessments/1/progress/ws", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.CloseNow()

	var p assessment.Progress
	if err := wsjson.Read(ctx, conn, &p); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if p.AssessmentID != a.ID || p.Confirmed != 0 {
		t.Errorf("initial progress = %+v, want assessment %d with nothing confirmed", p, a.ID)
	}

	// The handler subscribes before sending the initial state, so the update
	// below cannot be missed.
	if _, err := f.svc.Submit(ctx, a.ID, "indicators_B1.a", map[string]string{"achieved_B1.a.1": "agreed"}, "bob"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if _, err := f.svc.Submit(ctx, a.ID, "confirmation_B1.a", map[string]string{
		"confirm_outcome":     "confirm",
		"supporting_comments": "ok",
	}, "bob"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	for p.Confirmed != 1 {
		if err := wsjson.Read(ctx, conn, &p); err != nil {
			t.Fatalf("Read() error = %v", err)
		}
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func TestProgressWebsocket_UnknownAssessment(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(t, http.MethodGet, "/assessments/5/progress/ws", "", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
