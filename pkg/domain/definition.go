package domain

import "sort"

// Invocable is a handler closed over its instance.
type Invocable func(ctx Context, input []byte) ([]byte, error)

// Definition is a bound, runnable group of handlers.
type Definition struct {
	Role     Role
	Name     string
	Handlers map[string]Invocable
}

// HandlerNames returns the handler names in sorted order.
func (d *Definition) HandlerNames() []string {
	names := make([]string, 0, len(d.Handlers))
	for name := range d.Handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handler looks up a handler by name.
func (d *Definition) Handler(name string) (Invocable, bool) {
	h, ok := d.Handlers[name]
	return h, ok
}
