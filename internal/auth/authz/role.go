// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package authz

import (
	"fmt"
	"strings"
)

// # User Roles

// Role is the closed set of account roles.
type Role string

const (
	// Unrestricted platform access; bypasses every relationship check
	RoleAdmin Role = "admin"

	// Business accounts own programs and issue cards
	RoleBusiness Role = "business"
	RoleOwner    Role = "owner"

	// Customers enroll in programs and hold cards
	RoleCustomer Role = "customer"

	// Team roles acting inside a business dashboard
	RoleStaff  Role = "staff"
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
)

// Roles lists every valid role.
func Roles() []Role {
	return []Role{RoleAdmin, RoleBusiness, RoleOwner, RoleCustomer, RoleStaff, RoleViewer, RoleEditor}
}

// ParseRole rejects anything outside the closed set.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if role.side() == sideUnknown {
		return "", fmt.Errorf("authz: unknown role %q", value)
	}
	return role, nil
}

// Valid reports whether r is one of [Roles].
func (r Role) Valid() bool {
	return r.side() != sideUnknown
}

// # Role Sides

// roleSide groups roles by how relationship predicates treat them.
type roleSide int

const (
	sideUnknown roleSide = iota
	sideAdmin
	sideBusiness
	sideCustomer
	sideTeam
)

// side classifies the role. Adding a role means adding it here; every guard
// switches on the side.
func (r Role) side() roleSide {
	switch r {
	case RoleAdmin:
		return sideAdmin
	case RoleBusiness, RoleOwner:
		return sideBusiness
	case RoleCustomer:
		return sideCustomer
	case RoleStaff, RoleViewer, RoleEditor:
		return sideTeam
	default:
		return sideUnknown
	}
}

// IsBusinessAccount reports whether r owns a business.
func (r Role) IsBusinessAccount() bool {
	return r.side() == sideBusiness
}
