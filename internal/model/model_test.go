package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTimestampJSON(t *testing.T) {
	ts := NewTimestamp(time.Date(2025, 1, 15, 12, 0, 0, 123456789, time.UTC))

	b, err := json.Marshal(ts)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if string(b) != "1736942400123" {
		t.Errorf("Marshal = %s, want 1736942400123", b)
	}

	var back Timestamp
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if !back.Equal(ts.Time) {
		t.Errorf("Unmarshal = %v, want %v", back.Time, ts.Time)
	}
}

func TestTimestampNull(t *testing.T) {
	b, err := json.Marshal(Timestamp{})
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if string(b) != "null" {
		t.Errorf("zero timestamp = %s, want null", b)
	}

	var ts Timestamp
	if err := json.Unmarshal([]byte("null"), &ts); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if !ts.IsZero() {
		t.Errorf("expected zero time, got %v", ts.Time)
	}

	if err := json.Unmarshal([]byte(`"2025-01-01"`), &ts); err == nil {
		t.Error("expected error for non-numeric timestamp")
	}
}

func TestTimestampPtr(t *testing.T) {
	if TimestampPtr(nil) != nil {
		t.Error("TimestampPtr(nil) should be nil")
	}
	now := time.Now()
	if got := TimestampPtr(&now); got == nil || got.UnixMilli() != now.UnixMilli() {
		t.Errorf("TimestampPtr = %v, want %v", got, now)
	}
}

func TestRegistrationRequestJSON(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC)
	req := RegistrationRequest{
		ID:         "4b6f9d0e-0c1d-4f39-9a8b-2f1a3c5d7e90",
		Username:   "bob",
		Email:      "bob@example.com",
		Status:     RegistrationPending,
		CreateDate: NewTimestamp(now),
		DeleteDate: TimestampPtr(&now),
	}

	b, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	if m["status"] != "PENDING" {
		t.Errorf("status = %v, want PENDING", m["status"])
	}
	if _, ok := m["update_date"]; ok {
		t.Error("update_date should be omitted when nil")
	}
	if _, ok := m["reason"]; ok {
		t.Error("reason should be omitted when empty")
	}
	if _, ok := m["delete_date"]; ok {
		t.Error("delete_date must never be serialized")
	}
	if m["create_date"] != float64(now.UnixMilli()) {
		t.Errorf("create_date = %v, want %d", m["create_date"], now.UnixMilli())
	}
}

func TestRegistrationStatus(t *testing.T) {
	tests := []struct {
		status   RegistrationStatus
		valid    bool
		terminal bool
	}{
		{RegistrationPending, true, false},
		{RegistrationApproved, true, true},
		{RegistrationRejected, true, true},
		{"DELETED", false, false},
		{"", false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.valid {
				t.Errorf("Valid() = %v, want %v", got, tt.valid)
			}
			if got := tt.status.Terminal(); got != tt.terminal {
				t.Errorf("Terminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestUserPasswordHashHidden(t *testing.T) {
	u := User{Username: "alice", Email: "a@x.com", PasswordHash: "$2a$10$secret"}
	b, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if _, ok := m["password_hash"]; ok {
		t.Error("password hash must not be serialized")
	}
	if _, ok := m["PasswordHash"]; ok {
		t.Error("password hash must not be serialized")
	}
	if u.Disabled() {
		t.Error("user without disable date should not be disabled")
	}
}

func TestUserSortColumn(t *testing.T) {
	tests := []struct {
		col  UserSortColumn
		want string
	}{
		{SortByID, "id"},
		{SortByUsername, "username"},
		{SortByEmail, "email"},
		{SortByCreateDate, "create_date"},
		{SortByStorageCurrent, "storage_current"},
		{SortByStorageQuota, "storage_quota"},
		{SortByDisableDate, "disable_date"},
		{UserSortColumn(42), "username"},
		{UserSortColumn(-1), "username"},
	}

	for _, tt := range tests {
		if got := tt.col.Column(); got != tt.want {
			t.Errorf("UserSortColumn(%d).Column() = %q, want %q", tt.col, got, tt.want)
		}
	}
}
