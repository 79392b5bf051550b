package binder

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/aretw0/wharf/internal/metadata"
	"github.com/aretw0/wharf/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type greeter struct{ greeting string }

func (g *greeter) Greet(_ domain.Context, name string) (string, error) {
	return g.greeting + ", " + name, nil
}

func (g *greeter) Whoami(ctx domain.Context, _ []byte) ([]byte, error) {
	return []byte(ctx.InvocationID()), nil
}

type signup struct{}

func (s signup) Run(_ domain.Context, email string) (string, error) {
	return "welcome " + email, nil
}

func (s signup) Status(_ domain.Context, _ []byte) ([]byte, error) {
	return []byte("pending"), nil
}

type stranger struct{}

func newContext(id string) domain.Context {
	return domain.NewContext(context.Background(), domain.Invocation{ID: id}, nil)
}

func greeterRegistry() *metadata.Registry {
	reg := metadata.NewRegistry()
	class := domain.ClassOf[greeter]()
	reg.SetRole(class, domain.RoleService, "Greeter")
	reg.AddHandler(class, "greet", metadata.JSON((*greeter).Greet))
	return reg
}

func TestBind_Service(t *testing.T) {
	b := New(greeterRegistry())

	def, err := b.Bind(&greeter{greeting: "Hello"}, domain.RoleService)
	require.NoError(t, err)
	assert.Equal(t, "Greeter", def.Name)
	assert.Equal(t, domain.RoleService, def.Role)
	assert.Equal(t, []string{"greet"}, def.HandlerNames())

	out, err := def.Handlers["greet"](newContext("1"), []byte(`"Ada"`))
	require.NoError(t, err)
	assert.Equal(t, `"Hello, Ada"`, string(out))
}

func TestBind_MissingMetadata(t *testing.T) {
	tests := []struct {
		name     string
		registry func() *metadata.Registry
		instance any
		role     domain.Role
	}{
		{
			name:     "no declarations",
			registry: func() *metadata.Registry { return metadata.NewRegistry() },
			instance: &stranger{},
			role:     domain.RoleService,
		},
		{
			name:     "nil instance",
			registry: greeterRegistry,
			instance: nil,
			role:     domain.RoleService,
		},
		{
			name:     "role mismatch",
			registry: greeterRegistry,
			instance: &greeter{},
			role:     domain.RoleObject,
		},
		{
			name: "handlers without role",
			registry: func() *metadata.Registry {
				reg := metadata.NewRegistry()
				reg.AddHandler(domain.ClassOf[greeter](), "greet", metadata.JSON((*greeter).Greet))
				return reg
			},
			instance: &greeter{},
			role:     domain.RoleService,
		},
		{
			name: "role without handlers",
			registry: func() *metadata.Registry {
				reg := metadata.NewRegistry()
				reg.SetRole(domain.ClassOf[greeter](), domain.RoleService, "Greeter")
				return reg
			},
			instance: &greeter{},
			role:     domain.RoleService,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := New(tt.registry()).Bind(tt.instance, tt.role)
			assert.Nil(t, def)
			assert.ErrorIs(t, err, domain.ErrMissingMetadata)

			var bindErr *domain.BindError
			require.True(t, errors.As(err, &bindErr))
			assert.Equal(t, tt.role, bindErr.Role)
		})
	}
}

func TestBind_WorkflowRequiresRun(t *testing.T) {
	reg := metadata.NewRegistry()
	class := domain.ClassOf[signup]()
	reg.SetRole(class, domain.RoleWorkflow, "Signup")
	reg.AddHandler(class, "status", metadata.Raw(signup.Status))
	b := New(reg)

	_, err := b.Bind(signup{}, domain.RoleWorkflow)
	assert.ErrorIs(t, err, domain.ErrMissingEntryPoint)

	reg.AddHandler(class, EntryPoint, metadata.JSON(signup.Run))
	def, err := b.Bind(signup{}, domain.RoleWorkflow)
	require.NoError(t, err)
	assert.Equal(t, []string{"run", "status"}, def.HandlerNames())

	out, err := def.Handlers["run"](newContext("1"), []byte(`"a@b.c"`))
	require.NoError(t, err)
	assert.Equal(t, `"welcome a@b.c"`, string(out))
}

func TestBind_DefaultsToClassName(t *testing.T) {
	reg := metadata.NewRegistry()
	class := domain.ClassOf[greeter]()
	reg.SetRole(class, domain.RoleObject, "")
	reg.AddHandler(class, "greet", metadata.JSON((*greeter).Greet))

	def, err := New(reg).Bind(&greeter{}, domain.RoleObject)
	require.NoError(t, err)
	assert.Equal(t, "greeter", def.Name)
}

func TestBind_PointerSatisfiesValueReceiver(t *testing.T) {
	reg := metadata.NewRegistry()
	class := domain.ClassOf[signup]()
	reg.SetRole(class, domain.RoleWorkflow, "Signup")
	reg.AddHandler(class, EntryPoint, metadata.JSON(signup.Run))

	_, err := New(reg).Bind(&signup{}, domain.RoleWorkflow)
	assert.NoError(t, err)
}

func TestBind_ValueDoesNotSatisfyPointerReceiver(t *testing.T) {
	_, err := New(greeterRegistry()).Bind(greeter{}, domain.RoleService)
	assert.ErrorIs(t, err, domain.ErrReceiverMismatch)
}

func TestBind_PassesContextThrough(t *testing.T) {
	reg := greeterRegistry()
	reg.AddHandler(domain.ClassOf[greeter](), "whoami", metadata.Raw((*greeter).Whoami))

	def, err := New(reg).Bind(&greeter{}, domain.RoleService)
	require.NoError(t, err)

	out, err := def.Handlers["whoami"](newContext("inv-42"), nil)
	require.NoError(t, err)
	assert.Equal(t, "inv-42", string(out))
}

func TestBind_RepeatableAndIndependent(t *testing.T) {
	b := New(greeterRegistry())
	instance := &greeter{greeting: "Hi"}

	first, err := b.Bind(instance, domain.RoleService)
	require.NoError(t, err)
	second, err := b.Bind(instance, domain.RoleService)
	require.NoError(t, err)

	assert.Equal(t, first.Name, second.Name)
	assert.Equal(t, first.HandlerNames(), second.HandlerNames())

	delete(first.Handlers, "greet")
	assert.Contains(t, second.Handlers, "greet")

	out, err := second.Handlers["greet"](newContext("1"), []byte(`"Bob"`))
	require.NoError(t, err)
	assert.Equal(t, `"Hi, Bob"`, string(out))
}

func TestBind_SucceedsIffMetadataComplete(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		role := rapid.SampledFrom(domain.Roles).Draw(rt, "role")
		names := rapid.SliceOfDistinct(rapid.SampledFrom([]string{"run", "get", "set", "cancel"}), rapid.ID[string]).Draw(rt, "handlers")

		reg := metadata.NewRegistry()
		class := domain.ClassOf[signup]()
		reg.SetRole(class, role, "")
		for _, name := range names {
			reg.AddHandler(class, name, metadata.Raw(signup.Status))
		}

		def, err := New(reg).Bind(signup{}, role)

		switch {
		case len(names) == 0:
			if !errors.Is(err, domain.ErrMissingMetadata) {
				rt.Fatalf("expected missing metadata, got %v", err)
			}
		case role == domain.RoleWorkflow && !slices.Contains(names, EntryPoint):
			if !errors.Is(err, domain.ErrMissingEntryPoint) {
				rt.Fatalf("expected missing entry point, got %v", err)
			}
		default:
			if err != nil {
				rt.Fatalf("unexpected error: %v", err)
			}
			if len(def.Handlers) != len(names) {
				rt.Fatalf("expected %d handlers, got %d", len(names), len(def.Handlers))
			}
		}
	})
}
