package user

import (
	"errors"
	"strings"
)

// Role is a closed enumeration of account roles as stored in the `users.role` column.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleDispatcher Role = "DISPATCHER"
	RoleDriver     Role = "DRIVER"
	RoleCustomer   Role = "CUSTOMER"
)

var ErrInvalidRole = errors.New("invalid role")

// ParseRole normalizes (uppercases+trims) and validates a role string.
func ParseRole(s string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(s)))
	if role.Valid() {
		return role, nil
	}
	return "", ErrInvalidRole
}

// Valid reports whether role is one of the allowed role constants.
func (role Role) Valid() bool {
	switch role {
	case RoleAdmin, RoleDispatcher, RoleDriver, RoleCustomer:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Role.
func (role Role) String() string {
	return string(role)
}

// Privileged reports whether the role watches the whole fleet (joins the admins room).
func (role Role) Privileged() bool { return role == RoleAdmin || role == RoleDispatcher }

// Convenience helpers.
func (role Role) IsDriver() bool   { return role == RoleDriver }
func (role Role) IsCustomer() bool { return role == RoleCustomer }
func (role Role) IsAdmin() bool    { return role == RoleAdmin }
