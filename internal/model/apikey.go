package model

import "time"

// APIKey is an operator credential for non-interactive clients such as the
// CLI or automation. The raw key is never stored; only a SHA-256 hash and a
// short prefix for identification are persisted.
type APIKey struct {
	ID        string     `json:"id" db:"id"`
	KeyHash   string     `json:"-" db:"key_hash"`            // SHA-256 hash, never expose
	KeyPrefix string     `json:"key_prefix" db:"key_prefix"` // docsdesk_ + 6 hex chars
	Label     string     `json:"label" db:"label"`
	AdminID   string     `json:"admin_id" db:"admin_id"`
	IsActive  bool       `json:"is_active" db:"is_active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	LastUsed  *time.Time `json:"last_used,omitempty" db:"last_used"`
}
