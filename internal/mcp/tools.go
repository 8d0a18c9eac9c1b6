package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/docsdesk/docsdesk/internal/model"
	"github.com/docsdesk/docsdesk/internal/service"
)

// registerTools registers all docsdesk MCP tools on the given server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {

	// ----- Read tools -----

	srv.AddTool(
		mcp.NewTool("docsdesk_list_users",
			mcp.WithDescription(
				"List all user accounts with their e-mail, role, storage quota and usage. "+
					"sort_column selects the order: 0 id, 1 username, 2 email, 3 create date, "+
					"4 storage used, 5 storage quota, 6 disable date.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithNumber("sort_column",
				mcp.Description("Column to sort by (default 1, username)"),
			),
			mcp.WithBoolean("asc",
				mcp.Description("Ascending order (default true)"),
			),
		),
		s.handleListUsers,
	)

	srv.AddTool(
		mcp.NewTool("docsdesk_list_registration_requests",
			mcp.WithDescription(
				"List pending self-service registration requests, newest first. Each "+
					"request has an id, the requested username and e-mail, and a create date "+
					"in epoch milliseconds. Use the id with the approve or reject tools.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleListRegistrationRequests,
	)

	srv.AddTool(
		mcp.NewTool("docsdesk_registration_history",
			mcp.WithDescription(
				"Return the audit trail of one registration request: who approved, "+
					"rejected or deleted it, and when.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Registration request id"),
			),
		),
		s.handleRegistrationHistory,
	)

	// ----- Decision tools -----

	srv.AddTool(
		mcp.NewTool("docsdesk_approve_registration_request",
			mcp.WithDescription(
				"Approve a pending registration request. This creates the user account "+
					"(initial password is the username) and e-mails the requester. A request "+
					"can only be decided once.",
			),
			mcp.WithToolAnnotation(mutatingAnnotation()),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Registration request id"),
			),
		),
		s.handleApprove,
	)

	srv.AddTool(
		mcp.NewTool("docsdesk_reject_registration_request",
			mcp.WithDescription(
				"Reject a pending registration request and e-mail the requester. The "+
					"optional reason (up to 500 characters) is included in the e-mail.",
			),
			mcp.WithToolAnnotation(mutatingAnnotation()),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Registration request id"),
			),
			mcp.WithString("reason",
				mcp.Description("Reason shown to the requester"),
			),
		),
		s.handleReject,
	)

	srv.AddTool(
		mcp.NewTool("docsdesk_delete_registration_request",
			mcp.WithDescription(
				"Delete a registration request without notifying the requester, e.g. for spam.",
			),
			mcp.WithToolAnnotation(mutatingAnnotation()),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Registration request id"),
			),
		),
		s.handleDelete,
	)
}

// =========================================================================
// Tool handlers
// =========================================================================

func (s *MCPServer) handleListUsers(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	column := model.UserSortColumn(optionalInt(request, "sort_column", int(model.SortByUsername)))
	asc := optionalBool(request, "asc", true)

	users, err := s.store.ListUsers(ctx, column, asc)
	if err != nil {
		return toolError("Failed to list users: %v", err)
	}
	if users == nil {
		users = []model.User{}
	}
	return successJSON(model.UserListResponse{Users: users, Total: len(users)})
}

func (s *MCPServer) handleListRegistrationRequests(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	reqs, err := s.regSvc.ListPending(ctx)
	if err != nil {
		return toolError("Failed to list registration requests: %v", err)
	}
	if reqs == nil {
		reqs = []model.RegistrationRequest{}
	}
	return successJSON(model.RegistrationListResponse{Requests: reqs})
}

func (s *MCPServer) handleRegistrationHistory(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	id, err := requireString(request, "id")
	if err != nil {
		return toolError("%v", err)
	}

	logs, err := s.store.ListAuditLogs(ctx, id)
	if err != nil {
		return toolError("Failed to load history for %q: %v", id, err)
	}
	if logs == nil {
		logs = []model.AuditLog{}
	}
	return successJSON(map[string]interface{}{"id": id, "entries": logs})
}

func (s *MCPServer) handleApprove(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	id, err := requireString(request, "id")
	if err != nil {
		return toolError("%v", err)
	}

	req, err := s.regSvc.Approve(ctx, id, s.adminID)
	if err != nil {
		return s.decisionError("approve", id, err)
	}
	s.logger.Info("registration request approved over MCP", "id", id, "username", req.Username)
	return successJSON(req)
}

func (s *MCPServer) handleReject(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	id, err := requireString(request, "id")
	if err != nil {
		return toolError("%v", err)
	}

	req, err := s.regSvc.Reject(ctx, id, s.adminID, optionalString(request, "reason"))
	if err != nil {
		return s.decisionError("reject", id, err)
	}
	s.logger.Info("registration request rejected over MCP", "id", id, "username", req.Username)
	return successJSON(req)
}

func (s *MCPServer) handleDelete(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	id, err := requireString(request, "id")
	if err != nil {
		return toolError("%v", err)
	}

	if err := s.regSvc.Delete(ctx, id, s.adminID); err != nil {
		return s.decisionError("delete", id, err)
	}
	return successJSON(model.StatusResponse{Status: "ok"})
}

// decisionError turns service errors into hints the agent can act on.
func (s *MCPServer) decisionError(action, id string, err error) (*mcp.CallToolResult, error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return toolError("Registration request %q is not pending. Call docsdesk_list_registration_requests for current ids.", id)
	case errors.Is(err, service.ErrValidation):
		return toolError("Cannot %s %q: %v", action, id, err)
	case errors.Is(err, service.ErrAlreadyExists):
		return toolError("Cannot %s %q: a user with this username or e-mail already exists", action, id)
	default:
		return toolError("Failed to %s %q: %v", action, id, err)
	}
}
