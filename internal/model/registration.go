package model

// RegistrationStatus is the lifecycle state of a registration request.
type RegistrationStatus string

const (
	// RegistrationPending requests await an operator decision.
	RegistrationPending RegistrationStatus = "PENDING"
	// RegistrationApproved requests have produced a user account.
	RegistrationApproved RegistrationStatus = "APPROVED"
	// RegistrationRejected requests were turned down by an operator.
	RegistrationRejected RegistrationStatus = "REJECTED"
)

// Valid reports whether s is one of the known statuses.
func (s RegistrationStatus) Valid() bool {
	switch s {
	case RegistrationPending, RegistrationApproved, RegistrationRejected:
		return true
	}
	return false
}

// Terminal reports whether no further decision can be taken on a request
// in this status.
func (s RegistrationStatus) Terminal() bool {
	return s == RegistrationApproved || s == RegistrationRejected
}

// RegistrationRequest is a self-service account request. It is created by
// the public registration endpoint and resolved exactly once by an operator.
type RegistrationRequest struct {
	ID         string             `json:"id"`
	Username   string             `json:"username"`
	Email      string             `json:"email"`
	Status     RegistrationStatus `json:"status"`
	Reason     string             `json:"reason,omitempty"`
	CreateDate Timestamp          `json:"create_date"`
	UpdateDate *Timestamp         `json:"update_date,omitempty"`
	DeleteDate *Timestamp         `json:"-"`
}

// AuditLogType classifies an audit log entry.
type AuditLogType string

const (
	AuditCreate AuditLogType = "CREATE"
	AuditUpdate AuditLogType = "UPDATE"
	AuditDelete AuditLogType = "DELETE"
)

// AuditLog records a change made to a tracked entity and who made it.
type AuditLog struct {
	ID          string       `json:"id" db:"id"`
	EntityID    string       `json:"entity_id" db:"entity_id"`
	EntityClass string       `json:"entity_class" db:"entity_class"`
	Type        AuditLogType `json:"type" db:"type"`
	Message     string       `json:"message" db:"message"`
	UserID      string       `json:"user_id" db:"user_id"`
	CreateDate  Timestamp    `json:"create_date" db:"-"`
}
