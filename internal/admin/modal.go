package admin

import (
	"context"
	"sync"
)

// Draft is the username/email pair edited in the registration modal.
type Draft struct {
	Username string
	Email    string
}

// RegistrationModal collects a Draft and hands it to whoever opened it. It
// neither validates nor submits; that is the opener's job.
type RegistrationModal struct {
	draft Draft

	once   sync.Once
	done   chan struct{}
	result Draft
	ok     bool
}

// OpenRegistrationModal starts a modal session with an empty draft.
func OpenRegistrationModal() *RegistrationModal {
	return &RegistrationModal{done: make(chan struct{})}
}

// Draft returns the draft being edited. It must not be used after the
// session has ended.
func (m *RegistrationModal) Draft() *Draft {
	return &m.draft
}

// Close ends the session and delivers d to the opener. Only the first
// Close or Dismiss has an effect.
func (m *RegistrationModal) Close(d Draft) {
	m.once.Do(func() {
		m.result, m.ok = d, true
		close(m.done)
	})
}

// Dismiss ends the session without a value.
func (m *RegistrationModal) Dismiss() {
	m.once.Do(func() { close(m.done) })
}

// Done is closed once the session has ended.
func (m *RegistrationModal) Done() <-chan struct{} {
	return m.done
}

// Wait blocks until the session ends. ok is false when the modal was
// dismissed.
func (m *RegistrationModal) Wait(ctx context.Context) (d Draft, ok bool, err error) {
	select {
	case <-m.done:
		return m.result, m.ok, nil
	case <-ctx.Done():
		return Draft{}, false, ctx.Err()
	}
}

// Registrar files registration requests. *client.Client satisfies it.
type Registrar interface {
	Register(ctx context.Context, username, email string) error
}

// SubmitRegistration waits for m to end and, if it was closed with a
// draft, files it through reg. A dismissed modal makes no call and reports
// false.
func SubmitRegistration(ctx context.Context, m *RegistrationModal, reg Registrar) (bool, error) {
	d, ok, err := m.Wait(ctx)
	if err != nil || !ok {
		return false, err
	}
	if err := reg.Register(ctx, d.Username, d.Email); err != nil {
		return false, err
	}
	return true, nil
}
