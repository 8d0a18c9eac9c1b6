package server

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

	"github.com/docsdesk/docsdesk/internal/config"
	"github.com/docsdesk/docsdesk/internal/model"
	"github.com/docsdesk/docsdesk/internal/service"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

const (
	testJWTSecret = "test-secret-for-jwt-integration-tests"
	testPassword  = "supersecretpassword"
	testAdminName = "Test Admin"
)

type nopMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *nopMailer) Send(_ context.Context, to, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to)
	return nil
}

// testEnv holds all the shared state for integration tests.
type testEnv struct {
	server  *Server
	store   *config.Store
	authSvc *service.AuthService
	mailer  *nopMailer
}

// newTestEnv creates a fresh test environment with an in-memory store and a
// fully wired Server. mutate adjusts the default config before wiring.
func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()

	store, err := config.NewStore("") // in-memory SQLite
	if err != nil {
		t.Fatalf("config.NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mailer := &nopMailer{}
	authSvc := service.NewAuthService(store, testJWTSecret)
	regSvc := service.NewRegistrationService(store, service.RegistrationOptions{
		Mailer: mailer,
		Logger: logger,
	})

	cfg := DefaultConfig()
	cfg.RegistrationRateLimit = 0
	for _, m := range mutate {
		m(&cfg)
	}
	srv := New(cfg, store, authSvc, regSvc, logger)

	return &testEnv{
		server:  srv,
		store:   store,
		authSvc: authSvc,
		mailer:  mailer,
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
		Name:         testAdminName,
		IsActive:     true,
	}
	if err := e.store.CreateAdmin(context.Background(), admin); err != nil {
		t.Fatalf("seedAdmin: %v", err)
	}
	return admin
}

// adminToken logs in as the default admin and returns the JWT token string.
func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	body := jsonBody(t, map[string]string{
		"email":    "admin@example.com",
		"password": testPassword,
	})
	rr := e.do(t, "POST", "/api/session", body, nil)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		Token string `json:"session_token"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Token == "" {
		t.Fatal("adminToken: got empty token from login")
	}
	return resp.Token
}

// do executes an HTTP request against the test server and returns the recorder.
// headers is an optional map of header key-value pairs.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

// doAuth executes an authenticated HTTP request using the admin JWT.
func (e *testEnv) doAuth(t *testing.T, method, path string, body io.Reader, token string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// doAPIKey executes an HTTP request authenticated with an API key.
func (e *testEnv) doAPIKey(t *testing.T, method, path string, body io.Reader, apiKey string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, method, path, body, map[string]string{
		"X-API-Key": apiKey,
	})
}

func (e *testEnv) register(t *testing.T, username string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"username": {username}, "email": {username + "@example.com"}}
	return e.do(t, "PUT", "/api/registration", strings.NewReader(form.Encode()), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	})
}

func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("jsonBody: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func assertContentType(t *testing.T, rr *httptest.ResponseRecorder, want string) {
	t.Helper()
	got := rr.Header().Get("Content-Type")
	if got != want {
		t.Errorf("Content-Type = %q, want %q", got, want)
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Health check tests
// ---------------------------------------------------------------------------

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/healthz", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	assertContentType(t, rr, "application/json")

	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %q, want %q", resp["status"], "ok")
	}
}

func TestReadyz(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/readyz", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	assertContentType(t, rr, "application/json")

	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Status != "ok" {
		t.Errorf("status = %q, want %q", resp.Status, "ok")
	}
	if resp.Checks["store"] != "ok" {
		t.Errorf("checks = %v", resp.Checks)
	}
}

func TestReadyz_StoreClosed(t *testing.T) {
	env := newTestEnv(t)
	env.store.Close()

	rr := env.do(t, "GET", "/readyz", nil, nil)
	assertStatus(t, rr, http.StatusServiceUnavailable)

	var resp map[string]interface{}
	decodeJSON(t, rr, &resp)
	if resp["status"] != "degraded" {
		t.Errorf("status = %v, want degraded", resp["status"])
	}
}

// ---------------------------------------------------------------------------
// Authentication / authorization tests
// ---------------------------------------------------------------------------

func TestAdminEndpoints_Unauthenticated(t *testing.T) {
	env := newTestEnv(t)

	endpoints := []struct {
		method string
		path   string
	}{
		{"GET", "/api/registration"},
		{"POST", "/api/registration/abc/approve"},
		{"POST", "/api/registration/abc/reject"},
		{"DELETE", "/api/registration/abc"},
		{"GET", "/api/user/list"},
		{"GET", "/api/admin"},
		{"POST", "/api/admin"},
		{"GET", "/api/api-key"},
		{"POST", "/api/api-key"},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			var body io.Reader
			if ep.method == "POST" {
				body = jsonBody(t, map[string]string{})
			}
			rr := env.do(t, ep.method, ep.path, body, nil)
			assertStatus(t, rr, http.StatusUnauthorized)
		})
	}
}

func TestAdminEndpoints_InvalidJWT(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doAuth(t, "GET", "/api/registration", nil, "invalid.jwt.token")
	assertStatus(t, rr, http.StatusUnauthorized)
}

func TestAdminEndpoints_ExpiredJWT(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAdmin(t)

	token, err := env.authSvc.IssueJWT(context.Background(), admin.ID, admin.Email, -1*time.Hour)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}

	rr := env.doAuth(t, "GET", "/api/user/list", nil, token)
	assertStatus(t, rr, http.StatusUnauthorized)
}

func TestAdminEndpoints_OrphanAPIKeyForbidden(t *testing.T) {
	env := newTestEnv(t)

	// A key without an owning operator authenticates but is not an admin.
	rawKey, key, err := service.GenerateAPIKey("orphan", "", nil)
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	if err := env.store.CreateAPIKey(context.Background(), key); err != nil {
		t.Fatalf("CreateAPIKey: %v", err)
	}

	rr := env.doAPIKey(t, "GET", "/api/registration", nil, rawKey)
	assertStatus(t, rr, http.StatusForbidden)
}

func TestAdminEndpoints_RevokedAPIKey(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedAdmin(t)

	rawKey, key, err := service.GenerateAPIKey("ci", admin.ID, nil)
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	ctx := context.Background()
	if err := env.store.CreateAPIKey(ctx, key); err != nil {
		t.Fatalf("CreateAPIKey: %v", err)
	}

	rr := env.doAPIKey(t, "GET", "/api/user/list", nil, rawKey)
	assertStatus(t, rr, http.StatusOK)

	if err := env.store.RevokeAPIKey(ctx, key.ID); err != nil {
		t.Fatalf("RevokeAPIKey: %v", err)
	}
	rr = env.doAPIKey(t, "GET", "/api/user/list", nil, rawKey)
	assertStatus(t, rr, http.StatusUnauthorized)
}

// ---------------------------------------------------------------------------
// Public registration
// ---------------------------------------------------------------------------

func TestRegistration_Public(t *testing.T) {
	env := newTestEnv(t)

	rr := env.register(t, "alice")
	assertStatus(t, rr, http.StatusOK)

	rr = env.register(t, "x")
	assertStatus(t, rr, http.StatusBadRequest)
}

func TestRegistration_RateLimited(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.RegistrationRateLimit = 2 })

	for i, name := range []string{"alice", "bobby"} {
		rr := env.register(t, name)
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, body = %s", i, rr.Code, rr.Body.String())
		}
	}

	rr := env.register(t, "carol")
	assertStatus(t, rr, http.StatusTooManyRequests)

	// The limit only covers the public endpoint.
	rr = env.do(t, "GET", "/healthz", nil, nil)
	assertStatus(t, rr, http.StatusOK)
}

// ---------------------------------------------------------------------------
// CORS, errors, methods
// ---------------------------------------------------------------------------

func TestCORSHeaders(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "OPTIONS", "/healthz", nil, map[string]string{
		"Origin":                         "http://localhost:3000",
		"Access-Control-Request-Method":  "GET",
		"Access-Control-Request-Headers": "Authorization,Content-Type,X-API-Key",
	})

	if rr.Code < 200 || rr.Code >= 300 {
		t.Errorf("CORS preflight status = %d, want 2xx", rr.Code)
	}

	if rr.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected Access-Control-Allow-Origin header")
	}
}

func TestErrorResponseFormat(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/api/registration", nil, nil)
	assertStatus(t, rr, http.StatusUnauthorized)

	var errResp model.ErrorResponse
	decodeJSON(t, rr, &errResp)

	if errResp.Error.Code != 401 {
		t.Errorf("error.code = %d, want 401", errResp.Error.Code)
	}
	if errResp.Error.Message == "" {
		t.Error("expected non-empty error.message")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "PATCH", "/healthz", nil, nil)
	if rr.Code != http.StatusMethodNotAllowed && rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 405 or 404", rr.Code)
	}
}

func TestOversizedBody(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.MaxBodySize = 64 })

	body := strings.NewReader(`{"email":"admin@example.com","password":"` + strings.Repeat("x", 200) + `"}`)
	rr := env.do(t, "POST", "/api/session", body, nil)
	assertStatus(t, rr, http.StatusBadRequest)
}

func TestOpenAPISpec(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Version = "1.2.3" })

	rr := env.do(t, "GET", "/openapi.json", nil, nil)
	assertStatus(t, rr, http.StatusOK)

	var doc struct {
		Info struct {
			Version string `json:"version"`
		} `json:"info"`
	}
	decodeJSON(t, rr, &doc)
	if doc.Info.Version != "1.2.3" {
		t.Errorf("info.version = %q, want 1.2.3", doc.Info.Version)
	}
}

// ---------------------------------------------------------------------------
// Full workflow: register -> login -> list -> approve -> reload
// ---------------------------------------------------------------------------

func TestFullWorkflow(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)

	// Step 1: two self-service requests
	assertStatus(t, env.register(t, "alice"), http.StatusOK)
	assertStatus(t, env.register(t, "bobby"), http.StatusOK)

	// Step 2: operator login
	token := env.adminToken(t)

	// Step 3: list pending
	rr := env.doAuth(t, "GET", "/api/registration", nil, token)
	assertStatus(t, rr, http.StatusOK)
	var list model.RegistrationListResponse
	decodeJSON(t, rr, &list)
	if len(list.Requests) != 2 {
		t.Fatalf("pending = %d, want 2", len(list.Requests))
	}

	var aliceID, bobbyID string
	for _, req := range list.Requests {
		switch req.Username {
		case "alice":
			aliceID = req.ID
		case "bobby":
			bobbyID = req.ID
		}
	}

	// Step 4: approve alice, reject bobby
	rr = env.doAuth(t, "POST", "/api/registration/"+aliceID+"/approve", nil, token)
	assertStatus(t, rr, http.StatusOK)
	rr = env.doAuth(t, "POST", "/api/registration/"+bobbyID+"/reject",
		jsonBody(t, map[string]string{"reason": "duplicate"}), token)
	assertStatus(t, rr, http.StatusOK)

	// Step 5: the pending list is now empty and alice is a user
	rr = env.doAuth(t, "GET", "/api/registration", nil, token)
	assertStatus(t, rr, http.StatusOK)
	list = model.RegistrationListResponse{}
	decodeJSON(t, rr, &list)
	if len(list.Requests) != 0 {
		t.Errorf("pending after review = %d, want 0", len(list.Requests))
	}

	rr = env.doAuth(t, "GET", "/api/user/list?sort_column=1&asc=true", nil, token)
	assertStatus(t, rr, http.StatusOK)
	var users model.UserListResponse
	decodeJSON(t, rr, &users)
	if users.Total != 1 || users.Users[0].Username != "alice" {
		t.Errorf("users = %+v", users)
	}

	// Step 6: a key created by the operator can act on their behalf
	rr = env.doAuth(t, "POST", "/api/api-key", jsonBody(t, map[string]string{"label": "cli"}), token)
	assertStatus(t, rr, http.StatusCreated)
	var keyResp struct {
		Key string `json:"api_key"`
	}
	decodeJSON(t, rr, &keyResp)

	rr = env.doAPIKey(t, "GET", "/api/user/list", nil, keyResp.Key)
	assertStatus(t, rr, http.StatusOK)

	env.mailer.mu.Lock()
	defer env.mailer.mu.Unlock()
	if len(env.mailer.sent) != 2 {
		t.Errorf("mails sent = %v, want approval and rejection", env.mailer.sent)
	}
}
