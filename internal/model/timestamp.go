package model

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// Timestamp is a point in time that travels over the wire as Unix epoch
// milliseconds, which is what the document-management web client expects.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t, truncated to millisecond precision.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.Truncate(time.Millisecond)}
}

// TimestampPtr is like NewTimestamp but maps nil to nil.
func TimestampPtr(t *time.Time) *Timestamp {
	if t == nil {
		return nil
	}
	ts := NewTimestamp(*t)
	return &ts
}

// MarshalJSON encodes the timestamp as epoch milliseconds.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return strconv.AppendInt(nil, t.UnixMilli(), 10), nil
}

// UnmarshalJSON accepts epoch milliseconds or null.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	ms, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("timestamp: expected epoch milliseconds, got %s", b)
	}
	t.Time = time.UnixMilli(ms).UTC()
	return nil
}
