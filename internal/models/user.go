package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleStudent  UserRole = "STUDENT"
	RoleAdmin    UserRole = "ADMIN"
	RoleReviewer UserRole = "REVIEWER"
)

// Valid reports whether the role is one of the closed set.
func (r UserRole) Valid() bool {
	return r == RoleStudent || r == RoleAdmin || r == RoleReviewer
}

// User represents an application user stored in the users table.
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	FullName  string    `db:"full_name" json:"full_name"`
	Role      UserRole  `db:"role" json:"role"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Principal is the authenticated actor an engine operation runs on behalf of.
type Principal struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Role   UserRole `json:"role"`
	Active bool     `json:"active"`
}

// DisplayName falls back to the id when no name is known.
func (p *Principal) DisplayName() string {
	if p == nil {
		return ""
	}
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

// PrincipalFromUser converts a stored user into a principal.
func PrincipalFromUser(u *User) *Principal {
	if u == nil {
		return nil
	}
	return &Principal{ID: u.ID, Name: u.FullName, Role: u.Role, Active: u.Active}
}
