package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/docsdesk/docsdesk/internal/model"
	"github.com/docsdesk/docsdesk/internal/service"
)

// RegistrationHandler serves the self-service registration workflow.
type RegistrationHandler struct {
	svc *service.RegistrationService
}

// NewRegistrationHandler creates a new RegistrationHandler.
func NewRegistrationHandler(svc *service.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{svc: svc}
}

// Register records a new pending registration request. The body is either
// a form or a JSON object with username and email.
// PUT /api/registration
func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(r, "username", "email")
	if err != nil {
		writeTypedError(w, http.StatusBadRequest, errTypeValidation, "Invalid request body: "+err.Error())
		return
	}

	if _, err := h.svc.Create(r.Context(), fields["username"], fields["email"]); err != nil {
		writeServiceError(w, err, "Failed to create registration request")
		return
	}

	writeJSON(w, http.StatusOK, model.StatusResponse{Status: "ok"})
}

// ListPending returns every pending registration request, newest first.
// GET /api/registration
func (h *RegistrationHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	requests, err := h.svc.ListPending(r.Context())
	if err != nil {
		writeServiceError(w, err, "Failed to list registration requests")
		return
	}
	if requests == nil {
		requests = []model.RegistrationRequest{}
	}

	writeJSON(w, http.StatusOK, model.RegistrationListResponse{Requests: requests})
}

// Approve accepts a pending request and creates the user account.
// POST /api/registration/{id}/approve
func (h *RegistrationHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.svc.Approve(r.Context(), id, adminID(r)); err != nil {
		writeServiceError(w, err, "Failed to approve registration request")
		return
	}

	writeJSON(w, http.StatusOK, model.StatusResponse{Status: "ok"})
}

// Reject declines a pending request. The reason is optional.
// POST /api/registration/{id}/reject
func (h *RegistrationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(r, "reason")
	if err != nil {
		writeTypedError(w, http.StatusBadRequest, errTypeValidation, "Invalid request body: "+err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := h.svc.Reject(r.Context(), id, adminID(r), fields["reason"]); err != nil {
		writeServiceError(w, err, "Failed to reject registration request")
		return
	}

	writeJSON(w, http.StatusOK, model.StatusResponse{Status: "ok"})
}

// Delete soft-deletes a request so it disappears from every listing.
// DELETE /api/registration/{id}
func (h *RegistrationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), id, adminID(r)); err != nil {
		writeServiceError(w, err, "Failed to delete registration request")
		return
	}

	writeJSON(w, http.StatusOK, model.StatusResponse{Status: "ok"})
}
