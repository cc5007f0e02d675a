package auth

import (
	"strings"

	"github.com/trezcool/microlms/core"
)

// Role is one of the three fixed roles of the system.
type Role int

const (
	RoleAdmin Role = iota + 1
	RoleTeacher
	RoleStudent
)

var (
	// AllRoles is the closed set of known roles, seeded at startup.
	AllRoles = []Role{RoleAdmin, RoleTeacher, RoleStudent}

	ErrUnknownRole = core.NewError(core.KindValidation, "unknown role")
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "ADMIN"
	case RoleTeacher:
		return "TEACHER"
	case RoleStudent:
		return "STUDENT"
	default:
		return ""
	}
}

// SelfAssignable reports whether a registering user may request this role.
func (r Role) SelfAssignable() bool {
	switch r {
	case RoleTeacher, RoleStudent:
		return true
	case RoleAdmin:
		return false
	default:
		return false
	}
}

func (r Role) MarshalText() ([]byte, error) {
	if r.String() == "" {
		return nil, ErrUnknownRole
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// ParseRole is case-insensitive and accepts an optional "ROLE_" prefix.
func ParseRole(s string) (Role, error) {
	s = strings.TrimPrefix(strings.ToUpper(core.CleanString(s)), "ROLE_")
	for _, r := range AllRoles {
		if r.String() == s {
			return r, nil
		}
	}
	return 0, ErrUnknownRole
}

// Roles is a set of roles; duplicates are ignored by Add.
type Roles []Role

func ParseRoles(names []string) (Roles, error) {
	var roles Roles
	for _, name := range names {
		r, err := ParseRole(name)
		if err != nil {
			return nil, err
		}
		roles = roles.Add(r)
	}
	return roles, nil
}

func (rs Roles) Has(role Role) bool {
	for _, r := range rs {
		if r == role {
			return true
		}
	}
	return false
}

func (rs Roles) Add(role Role) Roles {
	if rs.Has(role) {
		return rs
	}
	return append(rs, role)
}

func (rs Roles) Strings() []string {
	names := make([]string, 0, len(rs))
	for _, r := range rs {
		names = append(names, r.String())
	}
	return names
}
