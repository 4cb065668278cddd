package models

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleTeacher    UserRole = "TEACHER"
	RoleStudent    UserRole = "STUDENT"
)

// EmploymentType classifies staff for leave entitlement purposes. Students
// and unclassified users carry EmploymentNone and accrue no day balance.
type EmploymentType string

const (
	EmploymentNone              EmploymentType = ""
	EmploymentFullTime          EmploymentType = "FULL_TIME"
	EmploymentPermanentPartTime EmploymentType = "PERMANENT_PART_TIME"
	EmploymentPartTime          EmploymentType = "PART_TIME"
)

// RoleFlag marks additional duties a user holds beyond their base role.
type RoleFlag string

const (
	FlagForm      RoleFlag = "FORM"
	FlagTahfiz    RoleFlag = "TAHFIZ"
	FlagPrincipal RoleFlag = "PRINCIPAL"
)

// User represents an application user stored in the users table. The
// submission engine treats users as a read-only collaborator: it reads the
// role, employment classification and flags, and never writes back.
type User struct {
	ID         string         `db:"id" json:"id"`
	Email      string         `db:"email" json:"email"`
	FullName   string         `db:"full_name" json:"full_name"`
	Role       UserRole       `db:"role" json:"role"`
	Employment EmploymentType `db:"employment_type" json:"employment_type,omitempty"`
	RoleFlags  pq.StringArray `db:"role_flags" json:"role_flags,omitempty"`
	Active     bool           `db:"active" json:"active"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// HasFlag reports whether the user carries the given role flag.
func (u *User) HasFlag(flag RoleFlag) bool {
	if u == nil {
		return false
	}
	for _, raw := range u.RoleFlags {
		if strings.EqualFold(raw, string(flag)) {
			return true
		}
	}
	return false
}

// IsStaff reports whether the user is employed staff rather than a student.
func (u *User) IsStaff() bool {
	if u == nil {
		return false
	}
	return u.Role == RoleTeacher || u.Role == RoleAdmin || u.Role == RoleSuperAdmin
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
