package ports

import (
	"context"

	"github.com/aretw0/wharf/pkg/domain"
)

// Resolver supplies the live instance for a class once dependency
// construction has finished.
type Resolver interface {
	// Resolve returns false when no instance of class is available.
	Resolve(ctx context.Context, class domain.Class) (any, bool)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, class domain.Class) (any, bool)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, class domain.Class) (any, bool) {
	return f(ctx, class)
}
