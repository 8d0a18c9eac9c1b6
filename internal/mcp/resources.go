package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/docsdesk/docsdesk/internal/model"
)

const (
	usersURI         = "docsdesk://users"
	registrationsURI = "docsdesk://registration-requests"
	historyPrefix    = "docsdesk://registration-requests/"
)

// registerResources adds MCP resource definitions to the server. Resources
// provide read-only data that LLM clients can load into their context.
func (s *MCPServer) registerResources(srv *server.MCPServer) {
	srv.AddResource(
		mcp.NewResource(
			usersURI,
			"Users",
			mcp.WithResourceDescription("All user accounts, ordered by username."),
			mcp.WithMIMEType("application/json"),
		),
		s.handleUsersResource,
	)

	srv.AddResource(
		mcp.NewResource(
			registrationsURI,
			"Pending Registration Requests",
			mcp.WithResourceDescription("Registration requests awaiting an operator decision, newest first."),
			mcp.WithMIMEType("application/json"),
		),
		s.handleRegistrationsResource,
	)

	srv.AddResourceTemplate(
		mcp.NewResourceTemplate(
			historyPrefix+"{id}/history",
			"Registration Request History",
			mcp.WithTemplateDescription("Audit trail of one registration request."),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleHistoryResource,
	)
}

func (s *MCPServer) handleUsersResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	users, err := s.store.ListUsers(ctx, model.SortByUsername, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	if users == nil {
		users = []model.User{}
	}
	return jsonResource(usersURI, model.UserListResponse{Users: users, Total: len(users)})
}

func (s *MCPServer) handleRegistrationsResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	reqs, err := s.regSvc.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list registration requests: %w", err)
	}
	if reqs == nil {
		reqs = []model.RegistrationRequest{}
	}
	return jsonResource(registrationsURI, model.RegistrationListResponse{Requests: reqs})
}

func (s *MCPServer) handleHistoryResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	// Extract the id from "docsdesk://registration-requests/{id}/history".
	uri := request.Params.URI
	id := strings.TrimSuffix(strings.TrimPrefix(uri, historyPrefix), "/history")
	if id == "" || id == uri || strings.Contains(id, "/") {
		return nil, fmt.Errorf("invalid history URI %q: expected %s{id}/history", uri, historyPrefix)
	}

	logs, err := s.store.ListAuditLogs(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %q: %w", id, err)
	}
	if logs == nil {
		logs = []model.AuditLog{}
	}
	return jsonResource(uri, logs)
}
