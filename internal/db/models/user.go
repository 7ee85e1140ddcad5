// Package models - user.go defines lab accounts and their roles.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Role is a user's authorization level.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// ParseRole validates a role string.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return r, nil
	}
	return "", fmt.Errorf("invalid role %q (must be user, admin, or super_admin)", s)
}

// IsAdmin is true for admin and super_admin.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// User is a lab account. Users created through Google sign-in have no
// password hash; email/password users have no OIDC subject.
type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash *string   `db:"password_hash" json:"-"`
	OIDCSub      *string   `db:"oidc_sub" json:"-"`
	Role         Role      `db:"role" json:"role"`
	Verified     bool      `db:"verified" json:"verified"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
