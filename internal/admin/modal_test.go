package admin

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestOpenRegistrationModal_EmptyDraft(t *testing.T) {
	for i := 0; i < 3; i++ {
		m := OpenRegistrationModal()
		if got := *m.Draft(); got != (Draft{}) {
			t.Fatalf("open #%d: draft = %+v, want empty", i, got)
		}
		m.Draft().Username = "edited"
	}
}

func TestRegistrationModal_CloseDeliversDraft(t *testing.T) {
	m := OpenRegistrationModal()
	d := m.Draft()
	d.Username = "alice"
	d.Email = "a@x.com"
	m.Close(*d)

	got, ok, err := m.Wait(context.Background())
	if err != nil || !ok {
		t.Fatalf("Wait: ok=%v err=%v", ok, err)
	}
	if got != (Draft{Username: "alice", Email: "a@x.com"}) {
		t.Errorf("draft = %+v", got)
	}

	// Later completions are ignored.
	m.Close(Draft{Username: "mallory"})
	m.Dismiss()
	got, ok, _ = m.Wait(context.Background())
	if !ok || got.Username != "alice" {
		t.Errorf("second completion changed the result: %+v ok=%v", got, ok)
	}
}

func TestRegistrationModal_Dismiss(t *testing.T) {
	m := OpenRegistrationModal()
	m.Draft().Username = "typed but cancelled"
	m.Dismiss()

	select {
	case <-m.Done():
	default:
		t.Fatal("Done should be closed after Dismiss")
	}
	got, ok, err := m.Wait(context.Background())
	if err != nil || ok {
		t.Fatalf("Wait: ok=%v err=%v, want no value", ok, err)
	}
	if got != (Draft{}) {
		t.Errorf("draft = %+v, want zero", got)
	}
}

func TestRegistrationModal_WaitContext(t *testing.T) {
	m := OpenRegistrationModal()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, _, err := m.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestSubmitRegistration(t *testing.T) {
	t.Run("confirmed", func(t *testing.T) {
		m := OpenRegistrationModal()
		reg := &recordingRegistrar{}
		go m.Close(Draft{Username: "alice", Email: "a@x.com"})

		ok, err := SubmitRegistration(context.Background(), m, reg)
		if err != nil || !ok {
			t.Fatalf("SubmitRegistration: ok=%v err=%v", ok, err)
		}
		if len(reg.calls) != 1 || reg.calls[0] != (Draft{Username: "alice", Email: "a@x.com"}) {
			t.Errorf("calls = %+v", reg.calls)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		m := OpenRegistrationModal()
		reg := &recordingRegistrar{}
		m.Dismiss()

		ok, err := SubmitRegistration(context.Background(), m, reg)
		if err != nil || ok {
			t.Fatalf("SubmitRegistration: ok=%v err=%v", ok, err)
		}
		if len(reg.calls) != 0 {
			t.Errorf("cancel must not call the backend: %+v", reg.calls)
		}
	})

	t.Run("backend error", func(t *testing.T) {
		m := OpenRegistrationModal()
		boom := errors.New("boom")
		reg := &recordingRegistrar{err: boom}
		m.Close(Draft{Username: "alice"})

		if ok, err := SubmitRegistration(context.Background(), m, reg); ok || !errors.Is(err, boom) {
			t.Errorf("ok=%v err=%v", ok, err)
		}
	})
}
