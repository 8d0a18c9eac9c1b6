package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/docsdesk/docsdesk/internal/config"
	"github.com/docsdesk/docsdesk/internal/model"
	"github.com/docsdesk/docsdesk/internal/service"
)

const testAdminID = "mcp-operator"

type countingMailer struct {
	mu sync.Mutex
	to []string
}

func (m *countingMailer) Send(_ context.Context, to, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.to = append(m.to, to)
	return nil
}

type testEnv struct {
	store  *config.Store
	regSvc *service.RegistrationService
	mailer *countingMailer
	srv    *MCPServer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := config.NewStore("")
	if err != nil {
		t.Fatalf("config.NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mailer := &countingMailer{}
	regSvc := service.NewRegistrationService(store, service.RegistrationOptions{Mailer: mailer, Logger: logger})

	return &testEnv{
		store:  store,
		regSvc: regSvc,
		mailer: mailer,
		srv:    NewMCPServer(store, regSvc, testAdminID, "test", logger),
	}
}

func (e *testEnv) seedRequest(t *testing.T, username string) *model.RegistrationRequest {
	t.Helper()
	req, err := e.regSvc.Create(context.Background(), username, username+"@example.com")
	if err != nil {
		t.Fatalf("Create(%s): %v", username, err)
	}
	return req
}

func newCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText returns the text of a single-content tool result.
func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content = %T, want TextContent", res.Content[0])
	}
	return text.Text
}

func TestListRegistrationRequestsTool(t *testing.T) {
	env := newTestEnv(t)
	env.seedRequest(t, "alice")

	res, err := env.srv.handleListRegistrationRequests(context.Background(), newCallToolRequest("docsdesk_list_registration_requests", nil))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}

	var body model.RegistrationListResponse
	if err := json.Unmarshal([]byte(resultText(t, res)), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Requests) != 1 || body.Requests[0].Username != "alice" {
		t.Errorf("requests = %+v", body.Requests)
	}
}

func TestApproveTool(t *testing.T) {
	env := newTestEnv(t)
	req := env.seedRequest(t, "alice")
	ctx := context.Background()

	res, err := env.srv.handleApprove(ctx, newCallToolRequest("docsdesk_approve_registration_request", map[string]any{"id": req.ID}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}

	if _, err := env.store.GetUserByUsername(ctx, "alice"); err != nil {
		t.Errorf("user not created: %v", err)
	}
	logs, _ := env.store.ListAuditLogs(ctx, req.ID)
	if len(logs) != 2 || logs[1].Type != model.AuditUpdate || logs[1].UserID != testAdminID {
		t.Errorf("audit = %+v", logs)
	}

	// Deciding twice is reported back to the agent, not as a protocol error.
	res, err = env.srv.handleApprove(ctx, newCallToolRequest("docsdesk_approve_registration_request", map[string]any{"id": req.ID}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !res.IsError || !strings.Contains(resultText(t, res), "not pending") {
		t.Errorf("second approve = %+v", res)
	}
}

func TestRejectTool(t *testing.T) {
	env := newTestEnv(t)
	req := env.seedRequest(t, "bobby")
	ctx := context.Background()

	res, err := env.srv.handleReject(ctx, newCallToolRequest("docsdesk_reject_registration_request",
		map[string]any{"id": req.ID, "reason": "spam"}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}

	var got model.RegistrationRequest
	if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Status != model.RegistrationRejected || got.Reason != "spam" {
		t.Errorf("request = %+v", got)
	}

	res, _ = env.srv.handleReject(ctx, newCallToolRequest("docsdesk_reject_registration_request",
		map[string]any{"id": env.seedRequest(t, "carol").ID, "reason": strings.Repeat("x", 501)}))
	if !res.IsError {
		t.Error("expected validation error for long reason")
	}
}

func TestDecisionTools_MissingID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"approve": env.srv.handleApprove,
		"reject":  env.srv.handleReject,
		"delete":  env.srv.handleDelete,
		"history": env.srv.handleRegistrationHistory,
	}
	for name, h := range handlers {
		t.Run(name, func(t *testing.T) {
			res, err := h(ctx, newCallToolRequest(name, map[string]any{}))
			if err != nil {
				t.Fatalf("handler: %v", err)
			}
			if !res.IsError || !strings.Contains(resultText(t, res), `"id"`) {
				t.Errorf("result = %+v", res)
			}
		})
	}
}

func TestDeleteAndHistoryTools(t *testing.T) {
	env := newTestEnv(t)
	req := env.seedRequest(t, "dave1")
	ctx := context.Background()

	res, _ := env.srv.handleDelete(ctx, newCallToolRequest("docsdesk_delete_registration_request", map[string]any{"id": req.ID}))
	if res.IsError {
		t.Fatalf("delete: %s", resultText(t, res))
	}

	res, _ = env.srv.handleRegistrationHistory(ctx, newCallToolRequest("docsdesk_registration_history", map[string]any{"id": req.ID}))
	if res.IsError {
		t.Fatalf("history: %s", resultText(t, res))
	}
	var body struct {
		Entries []model.AuditLog `json:"entries"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Entries) != 2 || body.Entries[0].Type != model.AuditCreate || body.Entries[1].Type != model.AuditDelete {
		t.Errorf("entries = %+v", body.Entries)
	}
	if len(env.mailer.to) != 0 {
		t.Errorf("delete must not mail the requester: %v", env.mailer.to)
	}
}

func TestListUsersTool(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, name := range []string{"bravo", "alpha"} {
		if err := env.store.CreateUser(ctx, &model.User{Username: name, Email: name + "@x.com", PasswordHash: "x"}); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
	}

	tests := []struct {
		args  map[string]any
		first string
	}{
		{nil, "alpha"},
		{map[string]any{"sort_column": 1, "asc": false}, "bravo"},
	}
	for _, tt := range tests {
		res, _ := env.srv.handleListUsers(ctx, newCallToolRequest("docsdesk_list_users", tt.args))
		var body model.UserListResponse
		if err := json.Unmarshal([]byte(resultText(t, res)), &body); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if body.Total != 2 || body.Users[0].Username != tt.first {
			t.Errorf("args %v: users = %+v", tt.args, body.Users)
		}
	}
}

func TestHistoryResource(t *testing.T) {
	env := newTestEnv(t)
	req := env.seedRequest(t, "erin1")
	ctx := context.Background()
	if _, err := env.regSvc.Reject(ctx, req.ID, testAdminID, ""); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	var rr mcp.ReadResourceRequest
	rr.Params.URI = historyPrefix + req.ID + "/history"
	contents, err := env.srv.handleHistoryResource(ctx, rr)
	if err != nil {
		t.Fatalf("handleHistoryResource: %v", err)
	}
	text := contents[0].(mcp.TextResourceContents)
	if text.URI != rr.Params.URI || !strings.Contains(text.Text, `"UPDATE"`) {
		t.Errorf("contents = %+v", text)
	}

	rr.Params.URI = "docsdesk://elsewhere"
	if _, err := env.srv.handleHistoryResource(ctx, rr); err == nil {
		t.Error("expected error for malformed URI")
	}
}

func TestRegistrationsResource(t *testing.T) {
	env := newTestEnv(t)
	env.seedRequest(t, "frank")

	contents, err := env.srv.handleRegistrationsResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatalf("handleRegistrationsResource: %v", err)
	}
	text := contents[0].(mcp.TextResourceContents)
	if text.URI != registrationsURI || !strings.Contains(text.Text, `"frank"`) {
		t.Errorf("contents = %+v", text)
	}
}

func TestAnnotations(t *testing.T) {
	ro := readOnlyAnnotation()
	if ro.ReadOnlyHint == nil || !*ro.ReadOnlyHint {
		t.Error("read-only annotation should set ReadOnlyHint")
	}
	mut := mutatingAnnotation()
	if mut.ReadOnlyHint == nil || *mut.ReadOnlyHint {
		t.Error("mutating annotation should clear ReadOnlyHint")
	}
	if mut.DestructiveHint == nil || !*mut.DestructiveHint {
		t.Error("mutating annotation should set DestructiveHint")
	}
}
