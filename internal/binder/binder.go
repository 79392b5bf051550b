// Package binder turns a class's accumulated metadata plus a live instance into
// a runnable definition.
package binder

import (
	"fmt"
	"reflect"

	"github.com/aretw0/wharf/internal/metadata"
	"github.com/aretw0/wharf/pkg/domain"
)

// EntryPoint is the handler every workflow must declare.
const EntryPoint = "run"

// Binder validates metadata and closes handlers over instances.
type Binder struct {
	registry *metadata.Registry
}

// New creates a Binder reading from registry.
func New(registry *metadata.Registry) *Binder {
	return &Binder{registry: registry}
}

// Bind validates the metadata of instance's class against the expected role and
// returns a definition whose handlers invoke instance. Binding has no side
// effects and may be repeated.
func (b *Binder) Bind(instance any, expected domain.Role) (*domain.Definition, error) {
	class := domain.ClassOfValue(instance)
	fail := func(err error) (*domain.Definition, error) {
		return nil, &domain.BindError{Class: class, Role: expected, Err: err}
	}

	if instance == nil {
		return fail(domain.ErrMissingMetadata)
	}

	entry := b.registry.Get(class)
	if entry.Role == nil || entry.Role.Role != expected {
		return fail(domain.ErrMissingMetadata)
	}
	if len(entry.Handlers) == 0 {
		return fail(domain.ErrMissingMetadata)
	}
	if expected == domain.RoleWorkflow {
		if _, ok := entry.Handlers[EntryPoint]; !ok {
			return fail(domain.ErrMissingEntryPoint)
		}
	}

	def := &domain.Definition{
		Role:     expected,
		Name:     entry.DefinitionName(),
		Handlers: make(map[string]domain.Invocable, len(entry.Handlers)),
	}
	for name, h := range entry.Handlers {
		recv, err := receiver(instance, h.Receiver)
		if err != nil {
			return fail(fmt.Errorf("handler %q: %w", name, err))
		}
		def.Handlers[name] = bindHandler(h.Call, recv)
	}
	return def, nil
}

func bindHandler(call metadata.UnboundHandler, recv func() any) domain.Invocable {
	return func(ctx domain.Context, input []byte) ([]byte, error) {
		return call(recv(), ctx, input)
	}
}

// receiver returns an accessor yielding a value of type want backed by instance.
// A pointer instance satisfies a value receiver by dereferencing at call time.
func receiver(instance any, want reflect.Type) (func() any, error) {
	have := reflect.TypeOf(instance)
	if want == nil || have.AssignableTo(want) {
		return func() any { return instance }, nil
	}
	if have.Kind() == reflect.Pointer && have.Elem().AssignableTo(want) {
		v := reflect.ValueOf(instance)
		if v.IsNil() {
			return nil, domain.ErrReceiverMismatch
		}
		return func() any { return v.Elem().Interface() }, nil
	}
	return nil, fmt.Errorf("%w: want %s, got %s", domain.ErrReceiverMismatch, want, have)
}
