// Package metadata accumulates role and handler declarations per class.
package metadata

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/aretw0/wharf/internal/logging"
	"github.com/aretw0/wharf/pkg/domain"
)

// RoleDescriptor is the role a class declared, plus its explicit name if any.
type RoleDescriptor struct {
	Role domain.Role
	Name string
}

// HandlerRecord is a named unbound method declared on a class.
type HandlerRecord struct {
	Name string
	Method
}

// Entry is a snapshot of everything declared for one class.
type Entry struct {
	Class    domain.Class
	Role     *RoleDescriptor
	Handlers map[string]HandlerRecord
}

// DefinitionName is the explicit name, falling back to the class's own name.
func (e Entry) DefinitionName() string {
	if e.Role != nil && e.Role.Name != "" {
		return e.Role.Name
	}
	return e.Class.Name()
}

type classEntry struct {
	role     *RoleDescriptor
	handlers map[string]HandlerRecord
}

// Registry holds class metadata for the lifetime of its owner.
type Registry struct {
	mu      sync.RWMutex
	classes map[domain.Class]*classEntry
	logger  *slog.Logger
}

type Option func(*Registry)

// WithLogger sets the logger used to trace declarations.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates a new empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		classes: make(map[domain.Class]*classEntry),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) entry(class domain.Class) *classEntry {
	e, ok := r.classes[class]
	if !ok {
		e = &classEntry{handlers: make(map[string]HandlerRecord)}
		r.classes[class] = e
	}
	return e
}

// SetRole records the role descriptor of a class.
// A later call replaces the earlier descriptor.
func (r *Registry) SetRole(class domain.Class, role domain.Role, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entry(class)
	if e.role != nil && e.role.Role != role {
		r.logger.Debug("Replacing role", "class", class.String(), "from", e.role.Role, "to", role)
	}
	e.role = &RoleDescriptor{Role: role, Name: name}
	r.logger.Debug("Registering role", "class", class.String(), "role", role, "name", name)
}

// AddHandler records a handler on a class.
// If a handler with the same name exists, it is overwritten.
func (r *Registry) AddHandler(class domain.Class, name string, m Method) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entry(class).handlers[name] = HandlerRecord{Name: name, Method: m}
	r.logger.Debug("Registering handler", "class", class.String(), "handler", name)
}

// Get returns a copy of the metadata of a class.
// An unknown class yields an entry with no role and no handlers.
func (r *Registry) Get(class domain.Class) Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := Entry{Class: class, Handlers: make(map[string]HandlerRecord)}
	e, ok := r.classes[class]
	if !ok {
		return out
	}
	if e.role != nil {
		role := *e.role
		out.Role = &role
	}
	for name, h := range e.handlers {
		out.Handlers[name] = h
	}
	return out
}

// Classes lists every class with at least one declaration, sorted by type name.
func (r *Registry) Classes() []domain.Class {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Class, 0, len(r.classes))
	for c := range r.classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
