package metadata

import (
	"fmt"
	"reflect"

	"github.com/aretw0/wharf/internal/jsoncodec"
	"github.com/aretw0/wharf/pkg/domain"
)

// UnboundHandler is a handler that still needs its receiver.
type UnboundHandler func(recv any, ctx domain.Context, input []byte) ([]byte, error)

// Method is an unbound method reference together with the receiver type it expects.
type Method struct {
	Receiver reflect.Type
	Call     UnboundHandler
}

// Raw wraps a method expression operating on raw payload bytes.
func Raw[T any](fn func(T, domain.Context, []byte) ([]byte, error)) Method {
	return Method{
		Receiver: reflect.TypeFor[T](),
		Call: func(recv any, ctx domain.Context, input []byte) ([]byte, error) {
			r, ok := recv.(T)
			if !ok {
				return nil, fmt.Errorf("%w: want %s, got %T", domain.ErrReceiverMismatch, reflect.TypeFor[T](), recv)
			}
			return fn(r, ctx, input)
		},
	}
}

// JSON wraps a method expression whose input and output are JSON documents.
// An empty payload decodes to the zero value of I.
func JSON[T, I, O any](fn func(T, domain.Context, I) (O, error)) Method {
	return Raw(func(r T, ctx domain.Context, input []byte) ([]byte, error) {
		var in I
		if len(input) > 0 {
			if err := jsoncodec.Unmarshal(input, &in); err != nil {
				return nil, fmt.Errorf("failed to decode input: %w", err)
			}
		}
		out, err := fn(r, ctx, in)
		if err != nil {
			return nil, err
		}
		data, err := jsoncodec.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("failed to encode output: %w", err)
		}
		return data, nil
	})
}
