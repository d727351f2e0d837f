// Package rbac holds the static role-permission matrix consulted by the access
// control middleware of both services.
package rbac

import (
	"fmt"
	"sort"

	"learnhub/internal/domain"
)

type Capability string

const (
	SelfRead         Capability = "self:read"
	UsersRead        Capability = "users:read"
	UsersWrite       Capability = "users:write"
	UsersAnalytics   Capability = "users:analytics"
	CoursesWrite     Capability = "courses:write"
	CoursesEnroll    Capability = "courses:enroll"
	EnrollmentsRead  Capability = "enrollments:read"
	CoursesAnalytics Capability = "courses:analytics"
)

// Matrix maps a role to the capabilities it may exercise. It is built once at
// startup and never mutated afterwards.
type Matrix struct {
	grants map[domain.UserRole]map[Capability]struct{}
}

// Default returns the platform matrix.
func Default() *Matrix {
	m, err := New(map[domain.UserRole][]Capability{
		domain.RoleStudent: {SelfRead, CoursesEnroll, EnrollmentsRead},
		domain.RoleTeacher: {SelfRead, UsersRead, UsersWrite, CoursesWrite},
		domain.RoleAdmin: {
			SelfRead, UsersRead, UsersWrite, UsersAnalytics,
			CoursesWrite, EnrollmentsRead, CoursesAnalytics,
		},
	})
	if err != nil {
		panic(err)
	}
	return m
}

// New validates grants and returns an immutable matrix.
func New(grants map[domain.UserRole][]Capability) (*Matrix, error) {
	m := &Matrix{grants: make(map[domain.UserRole]map[Capability]struct{}, len(grants))}
	for role, caps := range grants {
		if !role.Valid() {
			return nil, fmt.Errorf("rbac: unknown role %q", role)
		}
		set := make(map[Capability]struct{}, len(caps))
		for _, c := range caps {
			if c == "" {
				return nil, fmt.Errorf("rbac: empty capability for role %q", role)
			}
			set[c] = struct{}{}
		}
		m.grants[role] = set
	}
	return m, nil
}

// Permits is the authorization decision: does role hold capability.
func (m *Matrix) Permits(role domain.UserRole, c Capability) bool {
	set, ok := m.grants[role]
	if !ok {
		return false
	}
	_, ok = set[c]
	return ok
}

// Known reports whether at least one role is granted c.
func (m *Matrix) Known(c Capability) bool {
	return len(m.RolesFor(c)) > 0
}

// RolesFor returns the roles holding c in a stable order.
func (m *Matrix) RolesFor(c Capability) []domain.UserRole {
	var roles []domain.UserRole
	for role, set := range m.grants {
		if _, ok := set[c]; ok {
			roles = append(roles, role)
		}
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}
