package bootstrap

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aretw0/wharf/internal/binder"
	"github.com/aretw0/wharf/internal/deployment"
	"github.com/aretw0/wharf/internal/metadata"
	"github.com/aretw0/wharf/pkg/domain"
	"github.com/aretw0/wharf/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type (
	alpha    struct{}
	beta     struct{}
	counter  struct{}
	signup   struct{}
	orphan   struct{}
	unmarked struct{}
)

func noop[T any](T, domain.Context, []byte) ([]byte, error) { return nil, nil }

type recordingAttacher struct {
	mu    sync.Mutex
	names []string
	fail  map[string]error
}

func (a *recordingAttacher) Attach(def *domain.Definition) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.fail[def.Name]; err != nil {
		return err
	}
	a.names = append(a.names, def.Name)
	return nil
}

type fakeAnnouncer struct {
	calls      int
	err        error
	registered bool
}

func (f *fakeAnnouncer) Announce(context.Context) (deployment.Outcome, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if f.registered {
		return deployment.OutcomeSkipped, nil
	}
	f.registered = true
	return deployment.OutcomeRegistered, nil
}

func (f *fakeAnnouncer) URI() string { return "http://localhost:9080" }

func declare[T any](reg *metadata.Registry, role domain.Role, name string, handlers ...string) {
	class := domain.ClassOf[T]()
	reg.SetRole(class, role, name)
	for _, h := range handlers {
		reg.AddHandler(class, h, metadata.Raw(noop[*T]))
	}
}

func fixture() *metadata.Registry {
	reg := metadata.NewRegistry()
	declare[alpha](reg, domain.RoleService, "Alpha", "call")
	declare[beta](reg, domain.RoleService, "Beta", "call")
	declare[counter](reg, domain.RoleObject, "Counter", "add")
	declare[signup](reg, domain.RoleWorkflow, "Signup", "run")
	return reg
}

func resolveAll(instances ...any) ports.Resolver {
	byClass := make(map[domain.Class]any, len(instances))
	for _, inst := range instances {
		byClass[domain.ClassOfValue(inst)] = inst
	}
	return ports.ResolverFunc(func(_ context.Context, c domain.Class) (any, bool) {
		inst, ok := byClass[c]
		return inst, ok
	})
}

func TestFinalize_DrainsInRoleOrder(t *testing.T) {
	attacher := &recordingAttacher{}
	b := New(binder.New(fixture()), attacher)

	require.NoError(t, b.Enqueue(domain.ClassOf[signup](), domain.RoleWorkflow))
	require.NoError(t, b.Enqueue(domain.ClassOf[counter](), domain.RoleObject))
	require.NoError(t, b.Enqueue(domain.ClassOf[beta](), domain.RoleService))
	require.NoError(t, b.Enqueue(domain.ClassOf[alpha](), domain.RoleService))
	assert.Equal(t, QueueAccumulating, b.QueueState(domain.RoleService))

	report := b.Finalize(context.Background(), resolveAll(&alpha{}, &beta{}, &counter{}, &signup{}))

	assert.Equal(t, []string{"Beta", "Alpha", "Counter", "Signup"}, attacher.names)
	assert.Equal(t, attacher.names, report.Attached)
	for _, role := range domain.Roles {
		assert.Empty(t, b.Pending(role))
		assert.Equal(t, QueueEmpty, b.QueueState(role))
	}
}

func TestFinalize_IsolatesFailures(t *testing.T) {
	reg := fixture()
	declare[orphan](reg, domain.RoleService, "Orphan", "call")
	attacher := &recordingAttacher{fail: map[string]error{"Beta": domain.ErrDuplicateDefinition}}
	b := New(binder.New(reg), attacher)

	require.NoError(t, b.Enqueue(domain.ClassOf[orphan](), domain.RoleService))
	require.NoError(t, b.Enqueue(domain.ClassOf[unmarked](), domain.RoleService))
	require.NoError(t, b.Enqueue(domain.ClassOf[beta](), domain.RoleService))
	require.NoError(t, b.Enqueue(domain.ClassOf[alpha](), domain.RoleService))
	require.NoError(t, b.Enqueue(domain.ClassOf[counter](), domain.RoleWorkflow))

	report := b.Finalize(context.Background(), resolveAll(&unmarked{}, &alpha{}, &beta{}, &counter{}))

	assert.Equal(t, []string{"Alpha"}, report.Attached)
	assert.Equal(t, []string{"bootstrap.orphan"}, report.Unresolved)
	require.Len(t, report.Failed, 3)
	assert.ErrorIs(t, report.Failed[0].Err, domain.ErrMissingMetadata)
	assert.ErrorIs(t, report.Failed[1].Err, domain.ErrDuplicateDefinition)
	assert.ErrorIs(t, report.Failed[2].Err, domain.ErrMissingMetadata)
	assert.Equal(t, domain.RoleWorkflow, report.Failed[2].Role)
}

func TestFinalize_NilResolverSkipsEverything(t *testing.T) {
	attacher := &recordingAttacher{}
	b := New(binder.New(fixture()), attacher)
	require.NoError(t, b.Enqueue(domain.ClassOf[alpha](), domain.RoleService))

	report := b.Finalize(context.Background(), nil)
	assert.Empty(t, report.Attached)
	assert.Len(t, report.Unresolved, 1)
}

func TestFinalize_EnqueueDuringDrainWaitsForNextCycle(t *testing.T) {
	attacher := &recordingAttacher{}
	b := New(binder.New(fixture()), attacher)
	require.NoError(t, b.Enqueue(domain.ClassOf[alpha](), domain.RoleService))

	inner := resolveAll(&alpha{}, &beta{})
	resolver := ports.ResolverFunc(func(ctx context.Context, c domain.Class) (any, bool) {
		if c == domain.ClassOf[alpha]() {
			assert.Equal(t, QueueDraining, b.QueueState(domain.RoleService))
			require.NoError(t, b.Enqueue(domain.ClassOf[beta](), domain.RoleService))
		}
		return inner.Resolve(ctx, c)
	})

	first := b.Finalize(context.Background(), resolver)
	assert.Equal(t, []string{"Alpha"}, first.Attached)
	assert.Len(t, b.Pending(domain.RoleService), 1)
	assert.Equal(t, QueueAccumulating, b.QueueState(domain.RoleService))

	second := b.Finalize(context.Background(), inner)
	assert.Equal(t, []string{"Beta"}, second.Attached)
	assert.Equal(t, []string{"Alpha", "Beta"}, attacher.names)
}

func TestFinalize_AnnouncesOnlyAfterAttach(t *testing.T) {
	announcer := &fakeAnnouncer{}
	b := New(binder.New(fixture()), &recordingAttacher{}, WithAnnouncer(announcer))

	b.Finalize(context.Background(), resolveAll())
	assert.Equal(t, 0, announcer.calls)

	require.NoError(t, b.Enqueue(domain.ClassOf[alpha](), domain.RoleService))
	require.NoError(t, b.Enqueue(domain.ClassOf[orphan](), domain.RoleService))
	report := b.Finalize(context.Background(), resolveAll(&alpha{}))
	assert.Equal(t, 1, announcer.calls)
	assert.Equal(t, deployment.OutcomeRegistered, report.Announced)
	assert.NoError(t, report.AnnounceErr)
}

func TestFinalize_AnnounceFailureIsReported(t *testing.T) {
	announcer := &fakeAnnouncer{err: errors.New("admin unreachable")}
	b := New(binder.New(fixture()), &recordingAttacher{}, WithAnnouncer(announcer))
	require.NoError(t, b.Enqueue(domain.ClassOf[alpha](), domain.RoleService))

	report := b.Finalize(context.Background(), resolveAll(&alpha{}))
	assert.Equal(t, []string{"Alpha"}, report.Attached)
	assert.EqualError(t, report.AnnounceErr, "admin unreachable")
}

func TestFinalize_Hooks(t *testing.T) {
	var events []domain.EventType
	var announced *domain.AnnounceEvent
	hooks := domain.LifecycleHooks{
		OnAttached:   func(_ context.Context, e *domain.BindingEvent) { events = append(events, e.Type) },
		OnUnresolved: func(_ context.Context, e *domain.BindingEvent) { events = append(events, e.Type) },
		OnBindFailed: func(_ context.Context, e *domain.BindingEvent) { events = append(events, e.Type) },
		OnAnnounced:  func(_ context.Context, e *domain.AnnounceEvent) { announced = e },
	}
	b := New(binder.New(fixture()), &recordingAttacher{}, WithHooks(hooks), WithAnnouncer(&fakeAnnouncer{}))

	require.NoError(t, b.Enqueue(domain.ClassOf[alpha](), domain.RoleService))
	require.NoError(t, b.Enqueue(domain.ClassOf[orphan](), domain.RoleService))
	require.NoError(t, b.Enqueue(domain.ClassOf[unmarked](), domain.RoleObject))
	b.Finalize(context.Background(), resolveAll(&alpha{}, &unmarked{}))

	assert.Equal(t, []domain.EventType{domain.EventAttached, domain.EventUnresolved, domain.EventBindFailed}, events)
	require.NotNil(t, announced)
	assert.True(t, announced.Registered)
	assert.Equal(t, "http://localhost:9080", announced.URI)
}

func TestFinalize_AnnounceHookSkippedOnceRegistered(t *testing.T) {
	var announced int
	hooks := domain.LifecycleHooks{
		OnAnnounced: func(context.Context, *domain.AnnounceEvent) { announced++ },
	}
	announcer := &fakeAnnouncer{}
	b := New(binder.New(fixture()), &recordingAttacher{}, WithHooks(hooks), WithAnnouncer(announcer))

	require.NoError(t, b.Enqueue(domain.ClassOf[alpha](), domain.RoleService))
	b.Finalize(context.Background(), resolveAll(&alpha{}))
	require.NoError(t, b.Enqueue(domain.ClassOf[beta](), domain.RoleService))
	report := b.Finalize(context.Background(), resolveAll(&beta{}))

	assert.Equal(t, deployment.OutcomeSkipped, report.Announced)
	assert.Equal(t, 2, announcer.calls)
	assert.Equal(t, 1, announced)
}

func TestEnqueue_Rejects(t *testing.T) {
	b := New(binder.New(fixture()), &recordingAttacher{})
	assert.Error(t, b.Enqueue(domain.Class{}, domain.RoleService))
	assert.Error(t, b.Enqueue(domain.ClassOf[alpha](), domain.Role("actor")))
}
