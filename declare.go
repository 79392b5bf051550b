package wharf

import (
	"github.com/aretw0/wharf/internal/metadata"
	"github.com/aretw0/wharf/pkg/domain"
)

// Context is passed to every handler.
type Context = domain.Context

// Class identifies an application type.
type Class = domain.Class

// Role is the kind of handler group a class declares itself as.
type Role = domain.Role

const (
	RoleService  = domain.RoleService
	RoleObject   = domain.RoleObject
	RoleWorkflow = domain.RoleWorkflow
)

// ClassOf returns the Class of T. Pointer and value forms are the same class.
func ClassOf[T any]() Class {
	return domain.ClassOf[T]()
}

// Registry accumulates role and handler declarations.
type Registry struct {
	inner *metadata.Registry
}

func declareRole[T any](r *Registry, role Role, name string) {
	r.inner.SetRole(domain.ClassOf[T](), role, name)
}

// DeclareService marks T as a service. An empty name uses T's type name.
func DeclareService[T any](r *Registry, name string) {
	declareRole[T](r, RoleService, name)
}

// DeclareObject marks T as a keyed object. An empty name uses T's type name.
func DeclareObject[T any](r *Registry, name string) {
	declareRole[T](r, RoleObject, name)
}

// DeclareWorkflow marks T as a workflow. It must also declare a "run" handler.
func DeclareWorkflow[T any](r *Registry, name string) {
	declareRole[T](r, RoleWorkflow, name)
}

// DeclareHandler exposes fn, a method expression such as (*Greeter).Raw, as
// handler name of T. Input and output are raw bytes.
func DeclareHandler[T any](r *Registry, name string, fn func(T, Context, []byte) ([]byte, error)) {
	r.inner.AddHandler(domain.ClassOf[T](), name, metadata.Raw(fn))
}

// DeclareJSONHandler exposes fn as handler name of T, decoding the input from
// JSON and encoding the output as JSON.
func DeclareJSONHandler[T, I, O any](r *Registry, name string, fn func(T, Context, I) (O, error)) {
	r.inner.AddHandler(domain.ClassOf[T](), name, metadata.JSON(fn))
}
