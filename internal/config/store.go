package config

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/docsdesk/docsdesk/internal/model"
)

// Supported store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Store persists users, registration requests, operators, API keys and the
// audit trail. SQLite is the default backend; PostgreSQL and MySQL are
// supported for shared deployments.
type Store struct {
	db     *sqlx.DB
	driver string
}

// NewStore creates a SQLite-backed store under dataDir. Pass empty string
// for in-memory.
func NewStore(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "docsdesk.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	return Open(DriverSQLite, dsn)
}

// Open connects to the database identified by driver and dsn and applies
// pending migrations.
func Open(driver, dsn string) (*Store, error) {
	var (
		sqlDriver string
		err       error
	)
	switch driver {
	case DriverSQLite, "":
		driver, sqlDriver = DriverSQLite, "sqlite"
	case DriverPostgres:
		sqlDriver = "pgx"
	case DriverMySQL:
		sqlDriver = "mysql"
		if dsn, err = mysqlDSN(dsn); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := sqlx.Connect(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s database: %w", driver, err)
	}
	return s, nil
}

// mysqlDSN forces parseTime so DATETIME columns scan into time.Time.
func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

// Driver returns the store driver name.
func (s *Store) Driver() string {
	return s.driver
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

// userRow maps 1:1 to the users table. model.User carries wire timestamps,
// so scanning goes through this flat struct.
type userRow struct {
	ID             string     `db:"id"`
	Username       string     `db:"username"`
	Email          string     `db:"email"`
	PasswordHash   string     `db:"password_hash"`
	Role           string     `db:"role"`
	StorageQuota   int64      `db:"storage_quota"`
	StorageCurrent int64      `db:"storage_current"`
	CreateDate     time.Time  `db:"create_date"`
	DisableDate    *time.Time `db:"disable_date"`
}

func userRowFromModel(u *model.User) userRow {
	row := userRow{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		PasswordHash:   u.PasswordHash,
		Role:           u.Role,
		StorageQuota:   u.StorageQuota,
		StorageCurrent: u.StorageCurrent,
		CreateDate:     u.CreateDate.Time,
	}
	if u.DisableDate != nil {
		t := u.DisableDate.Time
		row.DisableDate = &t
	}
	return row
}

func (r userRow) toModel() model.User {
	return model.User{
		ID:             r.ID,
		Username:       r.Username,
		Email:          r.Email,
		PasswordHash:   r.PasswordHash,
		Role:           r.Role,
		StorageQuota:   r.StorageQuota,
		StorageCurrent: r.StorageCurrent,
		CreateDate:     model.NewTimestamp(r.CreateDate),
		DisableDate:    model.TimestampPtr(r.DisableDate),
	}
}

const insertUserQ = `INSERT INTO users
	(id, username, email, password_hash, role, storage_quota, storage_current, create_date, disable_date)
	VALUES
	(:id, :username, :email, :password_hash, :role, :storage_quota, :storage_current, :create_date, :disable_date)`

func prepareUser(u *model.User) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = model.DefaultUserRole
	}
	if u.CreateDate.IsZero() {
		u.CreateDate = model.NewTimestamp(time.Now().UTC())
	}
}

// CreateUser inserts a new user. ID, Role and CreateDate are filled in when
// left empty.
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	prepareUser(u)
	if _, err := s.db.NamedExecContext(ctx, insertUserQ, userRowFromModel(u)); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByUsername returns a user by its unique username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.getUser(ctx, "username", username)
}

// GetUserByEmail returns a user by email address.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUser(ctx, "email", email)
}

func (s *Store) getUser(ctx context.Context, column, value string) (*model.User, error) {
	var row userRow
	q := s.db.Rebind("SELECT * FROM users WHERE " + column + " = ?")
	if err := s.db.GetContext(ctx, &row, q, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by %s: %w", column, err)
	}
	u := row.toModel()
	return &u, nil
}

// ListUsers returns every user ordered by the given column. Ties are broken
// by username so the order is stable.
func (s *Store) ListUsers(ctx context.Context, sortColumn model.UserSortColumn, asc bool) ([]model.User, error) {
	dir := "DESC"
	if asc {
		dir = "ASC"
	}
	q := fmt.Sprintf("SELECT * FROM users ORDER BY %s %s, username ASC", sortColumn.Column(), dir)

	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	users := make([]model.User, len(rows))
	for i, r := range rows {
		users[i] = r.toModel()
	}
	return users, nil
}

// ---------------------------------------------------------------------------
// Registration requests
// ---------------------------------------------------------------------------

type registrationRow struct {
	ID         string     `db:"id"`
	Username   string     `db:"username"`
	Email      string     `db:"email"`
	Status     string     `db:"status"`
	Reason     string     `db:"reason"`
	CreateDate time.Time  `db:"create_date"`
	UpdateDate *time.Time `db:"update_date"`
	DeleteDate *time.Time `db:"delete_date"`
}

func (r registrationRow) toModel() model.RegistrationRequest {
	return model.RegistrationRequest{
		ID:         r.ID,
		Username:   r.Username,
		Email:      r.Email,
		Status:     model.RegistrationStatus(r.Status),
		Reason:     r.Reason,
		CreateDate: model.NewTimestamp(r.CreateDate),
		UpdateDate: model.TimestampPtr(r.UpdateDate),
		DeleteDate: model.TimestampPtr(r.DeleteDate),
	}
}

// CreateRegistrationRequest inserts a new pending request. The ID and
// Status fields are always assigned by the store; CreateDate is set to now
// unless already populated. A CREATE audit entry is written in the same
// transaction.
func (s *Store) CreateRegistrationRequest(ctx context.Context, req *model.RegistrationRequest) error {
	req.ID = uuid.NewString()
	req.Status = model.RegistrationPending
	if req.CreateDate.IsZero() {
		req.CreateDate = model.NewTimestamp(time.Now().UTC())
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const q = `INSERT INTO registration_requests
		(id, username, email, status, reason, create_date)
		VALUES (:id, :username, :email, :status, :reason, :create_date)`

	row := registrationRow{
		ID:         req.ID,
		Username:   req.Username,
		Email:      req.Email,
		Status:     string(req.Status),
		Reason:     req.Reason,
		CreateDate: req.CreateDate.Time,
	}
	if _, err := tx.NamedExecContext(ctx, q, row); err != nil {
		return fmt.Errorf("insert registration request: %w", err)
	}
	if err := insertAuditLog(ctx, tx, req.ID, model.AuditCreate, req.Username, "", req.CreateDate.Time); err != nil {
		return err
	}
	return tx.Commit()
}

// GetActiveRegistrationRequest returns a request by ID unless it was deleted.
func (s *Store) GetActiveRegistrationRequest(ctx context.Context, id string) (*model.RegistrationRequest, error) {
	return getActiveRegistration(ctx, s.db, id)
}

func getActiveRegistration(ctx context.Context, q sqlx.QueryerContext, id string) (*model.RegistrationRequest, error) {
	var row registrationRow
	query := sqlx.Rebind(sqlx.BindType(driverNameOf(q)),
		"SELECT * FROM registration_requests WHERE id = ? AND delete_date IS NULL")
	if err := sqlx.GetContext(ctx, q, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get registration request: %w", err)
	}
	req := row.toModel()
	return &req, nil
}

// ListPendingRegistrationRequests returns every active pending request,
// newest first.
func (s *Store) ListPendingRegistrationRequests(ctx context.Context) ([]model.RegistrationRequest, error) {
	var rows []registrationRow
	q := s.db.Rebind(`SELECT * FROM registration_requests
		WHERE status = ? AND delete_date IS NULL
		ORDER BY create_date DESC, id`)
	if err := s.db.SelectContext(ctx, &rows, q, string(model.RegistrationPending)); err != nil {
		return nil, fmt.Errorf("list pending registration requests: %w", err)
	}

	requests := make([]model.RegistrationRequest, len(rows))
	for i, r := range rows {
		requests[i] = r.toModel()
	}
	return requests, nil
}

// Resolution describes the terminal decision taken on a registration request.
type Resolution struct {
	Status  model.RegistrationStatus
	Reason  string
	AdminID string
	// NewUser, when set, is created in the same transaction as the status
	// change.
	NewUser *model.User
}

// ResolveRegistrationRequest moves a pending request to a terminal status,
// writes an audit entry and optionally creates the resulting user account,
// all in one transaction. It returns ErrNotFound if the request does not
// exist, was deleted, or is no longer pending.
func (s *Store) ResolveRegistrationRequest(ctx context.Context, id string, res Resolution) (*model.RegistrationRequest, error) {
	if !res.Status.Terminal() {
		return nil, fmt.Errorf("resolve registration request: status %q is not terminal", res.Status)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	req, err := getActiveRegistration(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != model.RegistrationPending {
		return nil, ErrNotFound
	}

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE registration_requests
		SET status = ?, reason = ?, update_date = ?
		WHERE id = ? AND status = ?`),
		string(res.Status), res.Reason, now, id, string(model.RegistrationPending))
	if err != nil {
		return nil, fmt.Errorf("update registration request: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("update registration request rows affected: %w", err)
	} else if n == 0 {
		return nil, ErrNotFound
	}

	if err := insertAuditLog(ctx, tx, req.ID, model.AuditUpdate, req.Username, res.AdminID, now); err != nil {
		return nil, err
	}

	if res.NewUser != nil {
		prepareUser(res.NewUser)
		if _, err := tx.NamedExecContext(ctx, insertUserQ, userRowFromModel(res.NewUser)); err != nil {
			return nil, fmt.Errorf("insert user: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	req.Status = res.Status
	req.Reason = res.Reason
	req.UpdateDate = model.TimestampPtr(&now)
	return req, nil
}

// DeleteRegistrationRequest soft-deletes a request so it no longer shows up
// in any listing.
func (s *Store) DeleteRegistrationRequest(ctx context.Context, id, adminID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	req, err := getActiveRegistration(ctx, tx, id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		tx.Rebind("UPDATE registration_requests SET delete_date = ? WHERE id = ?"), now, id); err != nil {
		return fmt.Errorf("delete registration request: %w", err)
	}
	if err := insertAuditLog(ctx, tx, req.ID, model.AuditDelete, req.Username, adminID, now); err != nil {
		return err
	}
	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Audit log
// ---------------------------------------------------------------------------

const registrationEntityClass = "UserRegistrationRequest"

type auditRow struct {
	ID          string    `db:"id"`
	EntityID    string    `db:"entity_id"`
	EntityClass string    `db:"entity_class"`
	Type        string    `db:"type"`
	Message     string    `db:"message"`
	UserID      string    `db:"user_id"`
	CreateDate  time.Time `db:"create_date"`
}

func insertAuditLog(ctx context.Context, tx *sqlx.Tx, entityID string, typ model.AuditLogType, message, userID string, at time.Time) error {
	const q = `INSERT INTO audit_logs
		(id, entity_id, entity_class, type, message, user_id, create_date)
		VALUES (:id, :entity_id, :entity_class, :type, :message, :user_id, :create_date)`
	row := auditRow{
		ID:          uuid.NewString(),
		EntityID:    entityID,
		EntityClass: registrationEntityClass,
		Type:        string(typ),
		Message:     message,
		UserID:      userID,
		CreateDate:  at,
	}
	if _, err := tx.NamedExecContext(ctx, q, row); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// ListAuditLogs returns the audit trail of one entity, oldest first.
func (s *Store) ListAuditLogs(ctx context.Context, entityID string) ([]model.AuditLog, error) {
	var rows []auditRow
	q := s.db.Rebind("SELECT * FROM audit_logs WHERE entity_id = ? ORDER BY create_date, id")
	if err := s.db.SelectContext(ctx, &rows, q, entityID); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}

	logs := make([]model.AuditLog, len(rows))
	for i, r := range rows {
		logs[i] = model.AuditLog{
			ID:          r.ID,
			EntityID:    r.EntityID,
			EntityClass: r.EntityClass,
			Type:        model.AuditLogType(r.Type),
			Message:     r.Message,
			UserID:      r.UserID,
			CreateDate:  model.NewTimestamp(r.CreateDate),
		}
	}
	return logs, nil
}

// ---------------------------------------------------------------------------
// Admin CRUD
// ---------------------------------------------------------------------------

// CreateAdmin inserts a new operator account. The ID, CreatedAt, and
// UpdatedAt fields are populated before the insert.
func (s *Store) CreateAdmin(ctx context.Context, admin *model.Admin) error {
	now := time.Now().UTC()
	admin.ID = uuid.NewString()
	admin.CreatedAt = now
	admin.UpdatedAt = now

	const q = `INSERT INTO admins
		(id, email, password_hash, name, is_active, created_at, updated_at)
		VALUES
		(:id, :email, :password_hash, :name, :is_active, :created_at, :updated_at)`

	if _, err := s.db.NamedExecContext(ctx, q, admin); err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	return nil
}

// GetAdmin returns an operator by ID.
func (s *Store) GetAdmin(ctx context.Context, id string) (*model.Admin, error) {
	var admin model.Admin
	if err := s.db.GetContext(ctx, &admin, s.db.Rebind("SELECT * FROM admins WHERE id = ?"), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	return &admin, nil
}

// GetAdminByEmail returns an operator by email address.
func (s *Store) GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	var admin model.Admin
	if err := s.db.GetContext(ctx, &admin, s.db.Rebind("SELECT * FROM admins WHERE email = ?"), email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin by email: %w", err)
	}
	return &admin, nil
}

// ListAdmins returns all operator accounts.
func (s *Store) ListAdmins(ctx context.Context) ([]model.Admin, error) {
	var admins []model.Admin
	if err := s.db.SelectContext(ctx, &admins, "SELECT * FROM admins ORDER BY email"); err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return admins, nil
}

// HasAnyAdmin reports whether at least one operator account exists.
func (s *Store) HasAnyAdmin(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM admins"); err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	return count > 0, nil
}

// UpdateAdminLastLogin sets the last_login_at timestamp for an operator.
func (s *Store) UpdateAdminLastLogin(ctx context.Context, id string) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE admins SET last_login_at = ?, updated_at = ? WHERE id = ?"), now, now, id)
	if err != nil {
		return fmt.Errorf("update admin last login: %w", err)
	}
	return expectOneRow(result, "update admin last login")
}

// ---------------------------------------------------------------------------
// API Key management
// ---------------------------------------------------------------------------

// CreateAPIKey inserts a new API key record. The key_hash must already be set
// (use HashAPIKey). The ID and CreatedAt fields are populated before insert.
func (s *Store) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	key.ID = uuid.NewString()
	key.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO api_keys
		(id, key_hash, key_prefix, label, admin_id, is_active, expires_at, created_at)
		VALUES
		(:id, :key_hash, :key_prefix, :label, :admin_id, :is_active, :expires_at, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, q, key); err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

// GetAPIKeyByHash looks up an API key by its SHA-256 hash.
func (s *Store) GetAPIKeyByHash(ctx context.Context, hash string) (*model.APIKey, error) {
	var key model.APIKey
	if err := s.db.GetContext(ctx, &key, s.db.Rebind("SELECT * FROM api_keys WHERE key_hash = ?"), hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api key by hash: %w", err)
	}
	return &key, nil
}

// ListAPIKeys returns all API keys.
func (s *Store) ListAPIKeys(ctx context.Context) ([]model.APIKey, error) {
	var keys []model.APIKey
	if err := s.db.SelectContext(ctx, &keys, "SELECT * FROM api_keys ORDER BY created_at"); err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}

// RevokeAPIKey marks an API key as inactive by ID.
func (s *Store) RevokeAPIKey(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE api_keys SET is_active = ? WHERE id = ?"), false, id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	return expectOneRow(result, "revoke api key")
}

// UpdateAPIKeyLastUsed sets the last_used timestamp for an API key.
func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE api_keys SET last_used = ? WHERE id = ?"), now, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return expectOneRow(result, "update api key last used")
}

// ---------------------------------------------------------------------------
// Utility
// ---------------------------------------------------------------------------

// HashAPIKey returns the hex-encoded SHA-256 hash of a raw API key string.
func HashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

func expectOneRow(result sql.Result, op string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// driverNameOf returns the database/sql driver name behind q so queries can
// be rebound for both *sqlx.DB and *sqlx.Tx.
func driverNameOf(q sqlx.QueryerContext) string {
	switch v := q.(type) {
	case *sqlx.DB:
		return v.DriverName()
	case *sqlx.Tx:
		return v.DriverName()
	}
	return ""
}
