// Package role resolves an email identity to the role it may hold, from a static
// set of email domain mappings and an admin allow-list.
package role

import (
	"strings"

	"github.com/pkg/errors"
)

// Role is the access level granted to an identity.
type Role string

const (
	Admin   Role = "admin"
	Teacher Role = "teacher"
	Student Role = "student"
)

var (
	AllRoles = []Role{Admin, Teacher, Student}

	rolePriorities = map[Role]int{
		Admin:   30,
		Teacher: 20,
		Student: 10,
	}

	ErrUnknownRole = errors.New("unknown role")
)

// ParseRole parses a case-insensitive role name.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", errors.Wrapf(ErrUnknownRole, "%q", s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	_, ok := rolePriorities[r]
	return ok
}

// Priority ranks roles: admin > teacher > student. Unknown roles are 0.
func (r Role) Priority() int {
	return rolePriorities[r]
}

func (r Role) String() string { return string(r) }
