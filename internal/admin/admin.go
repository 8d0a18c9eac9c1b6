// Package admin holds the user-administration screens as headless view
// models: the registration request modal and the user administration panel.
// Rendering, navigation, dialogs and translation are supplied by the host
// through the capability interfaces below.
package admin

import (
	"context"

	"github.com/docsdesk/docsdesk/internal/model"
)

// Backend is the part of the REST API the panel consumes.
// *client.Client satisfies it.
type Backend interface {
	ListUsers(ctx context.Context, sortColumn int, asc bool) ([]model.User, error)
	ListRegistrationRequests(ctx context.Context) ([]model.RegistrationRequest, error)
	ApproveRegistrationRequest(ctx context.Context, id string) error
	RejectRegistrationRequest(ctx context.Context, id, reason string) error
}

// Dialog button results.
const (
	ResultOK     = "ok"
	ResultCancel = "cancel"
)

// Button is one choice offered by a message box.
type Button struct {
	Result string
	Label  string
}

// ConfirmationDialog shows a message box and blocks until the operator
// picks a button. A dismissed dialog returns "" and a nil error.
type ConfirmationDialog interface {
	MessageBox(ctx context.Context, title, message string, buttons []Button) (string, error)
}

// Localizer translates a key, replacing {{ name }} placeholders from subs.
// *i18n.Catalog satisfies it.
type Localizer interface {
	Instant(key string, subs map[string]string) string
}

// Navigator moves the host to another view.
type Navigator interface {
	Go(state string, params map[string]string) error
}
