package admin

import (
	"context"
	"fmt"
	"sync"

	"github.com/docsdesk/docsdesk/internal/model"
)

// fakeBackend records every call. Hooks, when set, replace the default
// responses.
type fakeBackend struct {
	mu    sync.Mutex
	calls []string

	users    []model.User
	requests []model.RegistrationRequest

	usersErr   error
	listErr    error
	resolveErr error

	// usersHook and listHook receive the zero-based call index.
	usersHook func(ctx context.Context, n int) ([]model.User, error)
	listHook  func(ctx context.Context, n int) ([]model.RegistrationRequest, error)
	// afterResolve runs after a successful approve or reject.
	afterResolve func(id string)

	usersN, listN int
}

func (b *fakeBackend) record(call string) {
	b.mu.Lock()
	b.calls = append(b.calls, call)
	b.mu.Unlock()
}

func (b *fakeBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *fakeBackend) ListUsers(ctx context.Context, sortColumn int, asc bool) ([]model.User, error) {
	b.record(fmt.Sprintf("users:%d:%t", sortColumn, asc))
	b.mu.Lock()
	n := b.usersN
	b.usersN++
	hook, users, err := b.usersHook, b.users, b.usersErr
	b.mu.Unlock()

	if hook != nil {
		return hook(ctx, n)
	}
	return users, err
}

func (b *fakeBackend) ListRegistrationRequests(ctx context.Context) ([]model.RegistrationRequest, error) {
	b.record("requests")
	b.mu.Lock()
	n := b.listN
	b.listN++
	hook, reqs, err := b.listHook, b.requests, b.listErr
	b.mu.Unlock()

	if hook != nil {
		return hook(ctx, n)
	}
	return reqs, err
}

func (b *fakeBackend) ApproveRegistrationRequest(_ context.Context, id string) error {
	return b.resolve("approve:"+id, id)
}

func (b *fakeBackend) RejectRegistrationRequest(_ context.Context, id, reason string) error {
	call := "reject:" + id
	if reason != "" {
		call += ":" + reason
	}
	return b.resolve(call, id)
}

func (b *fakeBackend) resolve(call, id string) error {
	b.record(call)
	b.mu.Lock()
	err, after := b.resolveErr, b.afterResolve
	b.mu.Unlock()
	if err != nil {
		return err
	}
	if after != nil {
		after(id)
	}
	return nil
}

func (b *fakeBackend) setRequests(reqs ...model.RegistrationRequest) {
	b.mu.Lock()
	b.requests = reqs
	b.mu.Unlock()
}

type shownBox struct {
	title, message string
	buttons        []Button
}

// scriptedDialog answers with result and records what it was shown. If
// gate is set, MessageBox blocks until it receives from gate.
type scriptedDialog struct {
	result string
	err    error
	gate   chan struct{}

	mu      sync.Mutex
	shown   []shownBox
	entered chan struct{}
}

func (d *scriptedDialog) MessageBox(ctx context.Context, title, message string, buttons []Button) (string, error) {
	d.mu.Lock()
	d.shown = append(d.shown, shownBox{title, message, buttons})
	entered := d.entered
	d.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if d.gate != nil {
		select {
		case <-d.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return d.result, d.err
}

func (d *scriptedDialog) Shown() []shownBox {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]shownBox(nil), d.shown...)
}

// keyLocalizer renders a key and its substitutions verbatim.
type keyLocalizer struct{}

func (keyLocalizer) Instant(key string, subs map[string]string) string {
	if u, ok := subs["username"]; ok {
		return key + "(" + u + ")"
	}
	return key
}

type recordingNavigator struct {
	state  string
	params map[string]string
	err    error
}

func (n *recordingNavigator) Go(state string, params map[string]string) error {
	n.state, n.params = state, params
	return n.err
}

type recordingRegistrar struct {
	calls []Draft
	err   error
}

func (r *recordingRegistrar) Register(_ context.Context, username, email string) error {
	r.calls = append(r.calls, Draft{Username: username, Email: email})
	return r.err
}
