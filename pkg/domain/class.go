package domain

import "reflect"

// Class identifies an application type. Pointer and value forms of the same
// named type share one Class.
type Class struct {
	t reflect.Type
}

// ClassOf returns the Class of T.
func ClassOf[T any]() Class {
	return classFromType(reflect.TypeFor[T]())
}

// ClassOfValue returns the Class of the dynamic type of v.
// A nil v yields the zero Class.
func ClassOfValue(v any) Class {
	if v == nil {
		return Class{}
	}
	return classFromType(reflect.TypeOf(v))
}

func classFromType(t reflect.Type) Class {
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return Class{t: t}
}

// Type returns the underlying non-pointer type.
func (c Class) Type() reflect.Type {
	return c.t
}

// IsZero reports whether c identifies no type.
func (c Class) IsZero() bool {
	return c.t == nil
}

// Name is the type's own name, used as the default definition name.
func (c Class) Name() string {
	if c.t == nil {
		return "<nil>"
	}
	if n := c.t.Name(); n != "" {
		return n
	}
	return c.t.String()
}

// String returns the package-qualified type name.
func (c Class) String() string {
	if c.t == nil {
		return "<nil>"
	}
	return c.t.String()
}
