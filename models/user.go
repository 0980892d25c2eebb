package models

import (
	"time"
)

// Role represents a user's role within a tenant
type Role string

const (
	RoleRoot     Role = "root"
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// Valid returns true if the role is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleRoot, RoleAdmin, RoleEmployee:
		return true
	}
	return false
}

// IsPrivileged returns true for roles with administrative capabilities
func (r Role) IsPrivileged() bool {
	return r == RoleRoot || r == RoleAdmin
}

// DefaultEmployeePosition is assigned when a privileged user first acts as
// an employee and has no position on record.
const DefaultEmployeePosition = "Staff"

// User represents a member of exactly one tenant
type User struct {
	ID        int64     `json:"id" db:"id"`
	TenantID  int64     `json:"tenant_id" db:"tenant_id"`
	Username  string    `json:"username" db:"username"`
	Email     string    `json:"email" db:"email"`
	Role      Role      `json:"role" db:"role"`
	Position  *string   `json:"position,omitempty" db:"position"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "users"
}

// CanSwitchRoles returns true if the user's original role permits acting
// under a different role. Employees never switch.
func (u *User) CanSwitchRoles() bool {
	return u.Role.IsPrivileged()
}

// HasPosition returns true if the user has a non-empty position on record
func (u *User) HasPosition() bool {
	return u.Position != nil && *u.Position != ""
}
