package domain

import "fmt"

// Role is the kind of durable handler group a class declares itself as.
type Role string

const (
	// RoleService is a stateless group of handlers.
	RoleService Role = "service"
	// RoleObject is a keyed group of handlers with exclusive per-key access.
	RoleObject Role = "object"
	// RoleWorkflow is a keyed group whose "run" handler executes once per key.
	RoleWorkflow Role = "workflow"
)

// Roles lists every role in drain order.
var Roles = []Role{RoleService, RoleObject, RoleWorkflow}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleService, RoleObject, RoleWorkflow:
		return true
	}
	return false
}

// Keyed reports whether invocations of this role are addressed by key.
func (r Role) Keyed() bool {
	return r == RoleObject || r == RoleWorkflow
}

// ParseRole converts a string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role: %q", s)
	}
	return r, nil
}
