package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/docsdesk/docsdesk/internal/config"
	"github.com/docsdesk/docsdesk/internal/model"
	"github.com/docsdesk/docsdesk/internal/server/middleware"
	"github.com/docsdesk/docsdesk/internal/service"
)

const (
	testJWTSecret = "test-secret-for-handler-tests"
	testPassword  = "supersecretpassword"
	testAdminID   = "admin-under-test"
)

type recordedMail struct {
	to, subject, body string
}

// recordingMailer captures notifications instead of sending them.
type recordingMailer struct {
	mu   sync.Mutex
	sent []recordedMail
}

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, recordedMail{to, subject, body})
	return nil
}

// testEnv holds shared state for handler integration tests.
type testEnv struct {
	store   *config.Store
	authSvc *service.AuthService
	regSvc  *service.RegistrationService
	mailer  *recordingMailer
	router  chi.Router
}

// newTestEnv creates a fresh test environment with an in-memory store and a
// Chi router with routes mounted. Instead of the auth middleware, admin
// routes get a fixed operator principal.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := config.NewStore("") // in-memory SQLite
	if err != nil {
		t.Fatalf("config.NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	mailer := &recordingMailer{}
	authSvc := service.NewAuthService(store, testJWTSecret)
	regSvc := service.NewRegistrationService(store, service.RegistrationOptions{
		Mailer: mailer,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	sysHandler := NewSystemHandler(store, authSvc, time.Hour)
	regHandler := NewRegistrationHandler(regSvc)
	userHandler := NewUserHandler(store)

	r := chi.NewRouter()
	r.Get("/openapi.json", NewOpenAPIHandler("test").ServeSpec)
	r.Route("/api", func(r chi.Router) {
		r.Post("/session", sysHandler.Login)
		r.Delete("/session", sysHandler.Logout)
		r.Put("/registration", regHandler.Register)

		r.Group(func(r chi.Router) {
			r.Use(func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
					ctx := middleware.WithPrincipal(req.Context(), &middleware.Principal{
						Type: "admin", AdminID: testAdminID, IsAdmin: true,
					})
					next.ServeHTTP(w, req.WithContext(ctx))
				})
			})

			r.Get("/registration", regHandler.ListPending)
			r.Post("/registration/{id}/approve", regHandler.Approve)
			r.Post("/registration/{id}/reject", regHandler.Reject)
			r.Delete("/registration/{id}", regHandler.Delete)
			r.Get("/user/list", userHandler.List)

			r.Get("/admin", sysHandler.ListAdmins)
			r.Post("/admin", sysHandler.CreateAdmin)
			r.Get("/api-key", sysHandler.ListAPIKeys)
			r.Post("/api-key", sysHandler.CreateAPIKey)
			r.Delete("/api-key/{keyId}", sysHandler.RevokeAPIKey)
		})
	})

	return &testEnv{
		store:   store,
		authSvc: authSvc,
		regSvc:  regSvc,
		mailer:  mailer,
		router:  r,
	}
}

// seedAdmin creates a default admin account and returns it.
func (e *testEnv) seedAdmin(t *testing.T) *model.Admin {
	t.Helper()
	hash, err := service.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	admin := &model.Admin{
		Email:        "admin@example.com",
		PasswordHash: hash,
		Name:         "Test Admin",
		IsActive:     true,
	}
	if err := e.store.CreateAdmin(context.Background(), admin); err != nil {
		t.Fatalf("seedAdmin: %v", err)
	}
	return admin
}

// seedRequest records a pending registration request through the service.
func (e *testEnv) seedRequest(t *testing.T, username string) *model.RegistrationRequest {
	t.Helper()
	req, err := e.regSvc.Create(context.Background(), username, username+"@example.com")
	if err != nil {
		t.Fatalf("seedRequest(%s): %v", username, err)
	}
	return req
}

// do executes an HTTP request against the test router and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// doForm executes a request with a URL-encoded form body.
func (e *testEnv) doForm(t *testing.T, method, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func toJSON(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("toJSON: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}

// assertErrorType checks the status code and the error type in the envelope.
func assertErrorType(t *testing.T, rr *httptest.ResponseRecorder, wantStatus int, wantType string) {
	t.Helper()
	assertStatus(t, rr, wantStatus)
	var resp model.ErrorResponse
	decodeJSON(t, rr, &resp)
	if resp.Error.Code != wantStatus {
		t.Errorf("error.code = %d, want %d", resp.Error.Code, wantStatus)
	}
	if resp.Error.Type != wantType {
		t.Errorf("error.type = %q, want %q", resp.Error.Type, wantType)
	}
}
