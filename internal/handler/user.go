package handler

import (
	"net/http"

	"github.com/docsdesk/docsdesk/internal/config"
	"github.com/docsdesk/docsdesk/internal/model"
)

// UserHandler serves the user listing.
type UserHandler struct {
	store *config.Store
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(store *config.Store) *UserHandler {
	return &UserHandler{store: store}
}

// List returns all users ordered by the sort_column query parameter
// (0 id, 1 username, 2 email, 3 create_date, 4 storage_current,
// 5 storage_quota, 6 disable_date) and asc. Unknown columns sort by
// username; asc defaults to true.
// GET /api/user/list
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	column := model.UserSortColumn(queryInt(r, "sort_column", int(model.SortByUsername)))
	asc := queryBool(r, "asc", true)

	users, err := h.store.ListUsers(r.Context(), column, asc)
	if err != nil {
		code, msg := classifyDBError(err, "Failed to list users")
		writeError(w, code, msg)
		return
	}
	if users == nil {
		users = []model.User{}
	}

	writeJSON(w, http.StatusOK, model.UserListResponse{
		Users: users,
		Total: len(users),
	})
}
