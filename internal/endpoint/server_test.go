package endpoint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/wharf/internal/jsoncodec"
	"github.com/aretw0/wharf/internal/telemetry"
	"github.com/aretw0/wharf/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func greeterDefinition() *domain.Definition {
	return &domain.Definition{
		Role: domain.RoleService,
		Name: "Greeter",
		Handlers: map[string]domain.Invocable{
			"greet": func(ctx domain.Context, input []byte) ([]byte, error) {
				return []byte(fmt.Sprintf(`"Hello, %s"`, strings.Trim(string(input), `"`))), nil
			},
			"fail": func(ctx domain.Context, input []byte) ([]byte, error) {
				return nil, errors.New("boom")
			},
			"whoami": func(ctx domain.Context, input []byte) ([]byte, error) {
				return []byte(`"` + ctx.InvocationID() + `"`), nil
			},
		},
	}
}

func counterDefinition() *domain.Definition {
	return &domain.Definition{
		Role: domain.RoleObject,
		Name: "Counter",
		Handlers: map[string]domain.Invocable{
			"key": func(ctx domain.Context, input []byte) ([]byte, error) {
				return []byte(`"` + ctx.Key() + `"`), nil
			},
		},
	}
}

func post(t *testing.T, h http.Handler, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	s := New()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestServer_AttachRejectsDuplicateName(t *testing.T) {
	s := New()
	require.NoError(t, s.Attach(greeterDefinition()))

	err := s.Attach(greeterDefinition())
	assert.ErrorIs(t, err, domain.ErrDuplicateDefinition)
	assert.Len(t, s.Definitions(), 1)
}

func TestServer_Discover(t *testing.T) {
	s := New()
	require.NoError(t, s.Attach(greeterDefinition()))
	require.NoError(t, s.Attach(counterDefinition()))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/discover", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var m Manifest
	require.NoError(t, jsoncodec.Unmarshal(rec.Body.Bytes(), &m))
	require.Len(t, m.Services, 2)
	assert.Equal(t, "Counter", m.Services[0].Name)
	assert.Equal(t, "VIRTUAL_OBJECT", m.Services[0].Type)
	assert.Equal(t, "Greeter", m.Services[1].Name)
	assert.Equal(t, "SERVICE", m.Services[1].Type)
	assert.Equal(t, []HandlerManifest{{Name: "fail"}, {Name: "greet"}, {Name: "whoami"}}, m.Services[1].Handlers)
}

func TestServer_Invoke(t *testing.T) {
	s := New()
	require.NoError(t, s.Attach(greeterDefinition()))
	require.NoError(t, s.Attach(counterDefinition()))
	h := s.Handler()

	t.Run("success", func(t *testing.T) {
		rec := post(t, h, "/invoke/Greeter/greet", `"Ada"`, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, `"Hello, Ada"`, rec.Body.String())
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Len(t, rec.Header().Get(InvocationIDHeader), 26)
	})

	t.Run("invocation id echoed", func(t *testing.T) {
		rec := post(t, h, "/invoke/Greeter/whoami", "", http.Header{InvocationIDHeader: {"inv-1"}})
		assert.Equal(t, `"inv-1"`, rec.Body.String())
		assert.Equal(t, "inv-1", rec.Header().Get(InvocationIDHeader))
	})

	t.Run("unknown service", func(t *testing.T) {
		rec := post(t, h, "/invoke/Nope/greet", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown handler", func(t *testing.T) {
		rec := post(t, h, "/invoke/Greeter/nope", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("handler error", func(t *testing.T) {
		rec := post(t, h, "/invoke/Greeter/fail", "", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"boom"}`, rec.Body.String())
	})

	t.Run("keyed without key", func(t *testing.T) {
		rec := post(t, h, "/invoke/Counter/key", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("keyed via header", func(t *testing.T) {
		rec := post(t, h, "/invoke/Counter/key", "", http.Header{KeyHeader: {"k1"}})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, `"k1"`, rec.Body.String())
	})

	t.Run("keyed via query", func(t *testing.T) {
		rec := post(t, h, "/invoke/Counter/key?key=k2", "", nil)
		assert.Equal(t, `"k2"`, rec.Body.String())
	})
}

func TestServer_InvokeBodyLimit(t *testing.T) {
	s := New(WithMaxRequestBytes(4))
	require.NoError(t, s.Attach(greeterDefinition()))

	rec := post(t, s.Handler(), "/invoke/Greeter/greet", `"too long"`, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := telemetry.NewMetrics(reg)
	require.NoError(t, err)

	s := New(WithMetrics(m), WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	require.NoError(t, s.Attach(greeterDefinition()))
	post(t, s.Handler(), "/invoke/Greeter/greet", `"Ada"`, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `wharf_endpoint_invocations_total{handler="greet",outcome="ok",service="Greeter"} 1`)
}

func TestServer_EnsureStartedOnce(t *testing.T) {
	s := New()
	require.NoError(t, s.Attach(greeterDefinition()))
	assert.False(t, s.Started())
	assert.Equal(t, 0, s.Port())

	require.NoError(t, s.EnsureStarted(0))
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	port := s.Port()
	require.NotZero(t, port)
	assert.True(t, s.Started())

	assert.NoError(t, s.EnsureStarted(port))
	assert.NoError(t, s.EnsureStarted(0))
	assert.ErrorIs(t, s.EnsureStarted(port+1), domain.ErrPortMismatch)
	assert.Equal(t, port, s.Port())

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Post(fmt.Sprintf("http://127.0.0.1:%d/invoke/Greeter/greet", port), "application/json", strings.NewReader(`"Bob"`))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, `"Hello, Bob"`, string(body))
}

func TestServer_AttachAfterStart(t *testing.T) {
	s := New()
	require.NoError(t, s.EnsureStarted(0))
	t.Cleanup(func() { s.Shutdown(context.Background()) })

	require.NoError(t, s.Attach(greeterDefinition()))
	rec := post(t, s.Handler(), "/invoke/Greeter/greet", `"Eve"`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_ShutdownIsFinal(t *testing.T) {
	s := New()
	require.NoError(t, s.EnsureStarted(0))
	require.NoError(t, s.Shutdown(context.Background()))

	assert.False(t, s.Started())
	assert.ErrorIs(t, s.EnsureStarted(0), domain.ErrEndpointStopped)
	assert.NoError(t, s.Shutdown(context.Background()))
}
