package model

// DefaultUserRole is the role assigned to accounts created from an approved
// registration request.
const DefaultUserRole = "user"

// User is a document-management account. Users are identified by their
// unique username; the email is unique among active users as well.
type User struct {
	ID             string     `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"` // bcrypt hash, never expose
	Role           string     `json:"role"`
	StorageQuota   int64      `json:"storage_quota"`
	StorageCurrent int64      `json:"storage_current"`
	CreateDate     Timestamp  `json:"create_date"`
	DisableDate    *Timestamp `json:"disable_date,omitempty"`
}

// Disabled reports whether the account has been disabled.
func (u User) Disabled() bool {
	return u.DisableDate != nil
}

// UserSortColumn selects the ordering of the user list. The numeric values
// are part of the REST contract (the sort_column query parameter).
type UserSortColumn int

const (
	SortByID UserSortColumn = iota
	SortByUsername
	SortByEmail
	SortByCreateDate
	SortByStorageCurrent
	SortByStorageQuota
	SortByDisableDate
)

// Column returns the database column for the sort key. Unknown values fall
// back to the username column.
func (c UserSortColumn) Column() string {
	switch c {
	case SortByID:
		return "id"
	case SortByEmail:
		return "email"
	case SortByCreateDate:
		return "create_date"
	case SortByStorageCurrent:
		return "storage_current"
	case SortByStorageQuota:
		return "storage_quota"
	case SortByDisableDate:
		return "disable_date"
	default:
		return "username"
	}
}
