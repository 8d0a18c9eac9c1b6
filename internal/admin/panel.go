package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/docsdesk/docsdesk/internal/model"
)

// DateFormat is the display layout for user and request dates.
const DateFormat = "2006-01-02 15:04:05"

// StateUserEdit is the navigation target of EditUser.
const StateUserEdit = "settings.user.edit"

// UserListSortColumn is the column the user list is ordered by (username).
const UserListSortColumn = int(model.SortByUsername)

// ErrRequestBusy is returned when an approve or reject is attempted on a
// request whose confirmation or action is still in flight.
var ErrRequestBusy = errors.New("registration request is already being processed")

// UserAdminPanel is the view model of the user administration page.
type UserAdminPanel struct {
	backend Backend
	dialog  ConfirmationDialog
	loc     Localizer
	nav     Navigator
	logger  *slog.Logger

	mu       sync.Mutex
	users    []model.User
	requests []model.RegistrationRequest
	show     bool
	issued   uint64 // last registration list generation handed out
	applied  uint64 // generation currently displayed
	busy     map[string]struct{}
}

// NewUserAdminPanel wires a panel to its collaborators. A nil logger
// discards diagnostics.
func NewUserAdminPanel(backend Backend, dialog ConfirmationDialog, loc Localizer, nav Navigator, logger *slog.Logger) *UserAdminPanel {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &UserAdminPanel{
		backend: backend,
		dialog:  dialog,
		loc:     loc,
		nav:     nav,
		logger:  logger,
		busy:    make(map[string]struct{}),
	}
}

// Activate loads the users and the pending registration requests
// concurrently. Neither load waits on the other; both errors are returned.
func (p *UserAdminPanel) Activate(ctx context.Context) error {
	var usersErr, requestsErr error

	var g errgroup.Group
	g.Go(func() error {
		usersErr = p.LoadUsers(ctx)
		return nil
	})
	g.Go(func() error {
		requestsErr = p.LoadRegistrationRequests(ctx)
		return nil
	})
	g.Wait() //nolint:errcheck

	return errors.Join(usersErr, requestsErr)
}

// LoadUsers fetches every user ordered by username ascending. On failure
// the previous list is kept.
func (p *UserAdminPanel) LoadUsers(ctx context.Context) error {
	users, err := p.backend.ListUsers(ctx, UserListSortColumn, true)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}

	p.mu.Lock()
	p.users = users
	p.mu.Unlock()
	return nil
}

// LoadRegistrationRequests fetches the pending registration requests. When
// reloads overlap, a response older than the one already displayed is
// dropped.
func (p *UserAdminPanel) LoadRegistrationRequests(ctx context.Context) error {
	p.mu.Lock()
	p.issued++
	gen := p.issued
	p.mu.Unlock()

	requests, err := p.backend.ListRegistrationRequests(ctx)
	if err != nil {
		return fmt.Errorf("load registration requests: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen < p.applied {
		p.logger.Debug("discarding stale registration list", "generation", gen, "applied", p.applied)
		return nil
	}
	p.applied = gen
	p.requests = requests
	return nil
}

// Users returns a copy of the displayed user list.
func (p *UserAdminPanel) Users() []model.User {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.User(nil), p.users...)
}

// RegistrationRequests returns a copy of the displayed pending requests.
func (p *UserAdminPanel) RegistrationRequests() []model.RegistrationRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.RegistrationRequest(nil), p.requests...)
}

// ShowRegistrationRequests reports whether the request list is expanded.
func (p *UserAdminPanel) ShowRegistrationRequests() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.show
}

// ToggleRegistrationRequests expands or collapses the request list. It has
// no effect on backend calls.
func (p *UserAdminPanel) ToggleRegistrationRequests() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.show = !p.show
	return p.show
}

// FormatDate renders ts with DateFormat in local time; zero renders empty.
func FormatDate(ts model.Timestamp) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Local().Format(DateFormat)
}

// EditUser navigates to the edit view of user.
func (p *UserAdminPanel) EditUser(user model.User) error {
	return p.nav.Go(StateUserEdit, map[string]string{"username": user.Username})
}

// ApproveRequest asks the operator to confirm, then approves req and
// reloads the pending list. It reports whether the operator confirmed.
func (p *UserAdminPanel) ApproveRequest(ctx context.Context, req model.RegistrationRequest) (bool, error) {
	return p.resolve(ctx, req, "approve", func(ctx context.Context) error {
		return p.backend.ApproveRegistrationRequest(ctx, req.ID)
	})
}

// RejectRequest asks the operator to confirm, then rejects req without a
// reason and reloads the pending list.
func (p *UserAdminPanel) RejectRequest(ctx context.Context, req model.RegistrationRequest) (bool, error) {
	return p.RejectRequestWithReason(ctx, req, "")
}

// RejectRequestWithReason is RejectRequest with a reason passed on to the
// rejection e-mail.
func (p *UserAdminPanel) RejectRequestWithReason(ctx context.Context, req model.RegistrationRequest, reason string) (bool, error) {
	return p.resolve(ctx, req, "reject", func(ctx context.Context) error {
		return p.backend.RejectRegistrationRequest(ctx, req.ID, reason)
	})
}

func (p *UserAdminPanel) resolve(ctx context.Context, req model.RegistrationRequest, action string, send func(context.Context) error) (bool, error) {
	if !p.acquire(req.ID) {
		return false, ErrRequestBusy
	}
	defer p.release(req.ID)

	prefix := "settings.user.registration_request." + action
	title := p.loc.Instant(prefix+"_title", nil)
	message := p.loc.Instant(prefix+"_message", map[string]string{"username": req.Username})
	buttons := []Button{
		{Result: ResultCancel, Label: p.loc.Instant("cancel", nil)},
		{Result: ResultOK, Label: p.loc.Instant("ok", nil)},
	}

	result, err := p.dialog.MessageBox(ctx, title, message, buttons)
	if err != nil {
		return false, fmt.Errorf("%s confirmation: %w", action, err)
	}
	if result != ResultOK {
		return false, nil
	}

	if err := send(ctx); err != nil {
		return false, err
	}
	p.logger.Info("registration request resolved", "action", action, "id", req.ID, "username", req.Username)

	if err := p.LoadRegistrationRequests(ctx); err != nil {
		return true, err
	}
	return true, nil
}

func (p *UserAdminPanel) acquire(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.busy[id]; ok {
		return false
	}
	p.busy[id] = struct{}{}
	return true
}

func (p *UserAdminPanel) release(id string) {
	p.mu.Lock()
	delete(p.busy, id)
	p.mu.Unlock()
}
