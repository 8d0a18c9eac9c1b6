package handler

import (
	"net/http"

	"github.com/docsdesk/docsdesk/internal/openapi"
)

// OpenAPIHandler serves the OpenAPI 3.1 document for the REST API.
type OpenAPIHandler struct {
	version string
}

// NewOpenAPIHandler creates a new OpenAPIHandler reporting the given build
// version in the document info.
func NewOpenAPIHandler(version string) *OpenAPIHandler {
	return &OpenAPIHandler{version: version}
}

// ServeSpec writes the OpenAPI document. The server URL is derived from the
// incoming request so "try it out" tooling targets the right host.
// GET /openapi.json
func (h *OpenAPIHandler) ServeSpec(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	writeJSON(w, http.StatusOK, openapi.Generate(scheme+"://"+r.Host, h.version))
}
