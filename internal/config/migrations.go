package config

import (
	"fmt"
	"strings"
)

// migrations are written once and adjusted per dialect by dialectSQL. Keep
// them append-only: an existing deployment replays the whole list on start.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(36) PRIMARY KEY,
		username VARCHAR(50) NOT NULL UNIQUE,
		email VARCHAR(100) NOT NULL UNIQUE,
		password_hash VARCHAR(100) NOT NULL,
		role VARCHAR(36) NOT NULL DEFAULT 'user',
		storage_quota BIGINT NOT NULL DEFAULT 0,
		storage_current BIGINT NOT NULL DEFAULT 0,
		create_date {{ts}} NOT NULL,
		disable_date {{ts}} NULL
	)`,

	`CREATE TABLE IF NOT EXISTS registration_requests (
		id VARCHAR(36) PRIMARY KEY,
		username VARCHAR(50) NOT NULL,
		email VARCHAR(100) NOT NULL,
		status VARCHAR(20) NOT NULL,
		reason VARCHAR(4000) NOT NULL DEFAULT '',
		create_date {{ts}} NOT NULL,
		update_date {{ts}} NULL,
		delete_date {{ts}} NULL
	)`,

	`CREATE INDEX idx_registration_requests_status ON registration_requests(status)`,

	`CREATE TABLE IF NOT EXISTS audit_logs (
		id VARCHAR(36) PRIMARY KEY,
		entity_id VARCHAR(36) NOT NULL,
		entity_class VARCHAR(50) NOT NULL,
		type VARCHAR(20) NOT NULL,
		message VARCHAR(1000) NOT NULL DEFAULT '',
		user_id VARCHAR(36) NOT NULL DEFAULT '',
		create_date {{ts}} NOT NULL
	)`,

	`CREATE INDEX idx_audit_logs_entity_id ON audit_logs(entity_id)`,

	`CREATE TABLE IF NOT EXISTS admins (
		id VARCHAR(36) PRIMARY KEY,
		email VARCHAR(100) NOT NULL UNIQUE,
		password_hash VARCHAR(100) NOT NULL,
		name VARCHAR(100) NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		last_login_at {{ts}} NULL,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS api_keys (
		id VARCHAR(36) PRIMARY KEY,
		key_hash VARCHAR(64) NOT NULL UNIQUE,
		key_prefix VARCHAR(20) NOT NULL,
		label VARCHAR(100) NOT NULL DEFAULT '',
		admin_id VARCHAR(36) NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		expires_at {{ts}} NULL,
		created_at {{ts}} NOT NULL,
		last_used {{ts}} NULL
	)`,
}

// dialectSQL rewrites a portable migration for the store's driver.
func (s *Store) dialectSQL(m string) string {
	ts := "DATETIME"
	if s.driver == DriverPostgres {
		ts = "TIMESTAMP"
	}
	m = strings.ReplaceAll(m, "{{ts}}", ts)

	// MySQL has no CREATE INDEX IF NOT EXISTS; duplicates are tolerated in
	// migrate instead.
	if s.driver != DriverMySQL {
		m = strings.Replace(m, "CREATE INDEX ", "CREATE INDEX IF NOT EXISTS ", 1)
	}
	return m
}

func (s *Store) migrate() error {
	for _, raw := range migrations {
		m := s.dialectSQL(raw)
		if _, err := s.db.Exec(m); err != nil {
			// Re-running an index or column migration on MySQL or SQLite
			// reports a duplicate; treat it as already applied.
			msg := strings.ToLower(err.Error())
			if strings.Contains(msg, "duplicate") || strings.Contains(msg, "already exists") {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
