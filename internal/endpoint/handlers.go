package endpoint

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/aretw0/wharf/internal/ids"
	"github.com/aretw0/wharf/internal/jsoncodec"
	"github.com/aretw0/wharf/internal/telemetry"
	"github.com/aretw0/wharf/pkg/domain"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// KeyHeader carries the object or workflow key of an invocation.
	KeyHeader = "X-Wharf-Key"
	// InvocationIDHeader carries the invocation id; one is generated when absent.
	InvocationIDHeader = "X-Wharf-Invocation-Id"
)

// Manifest describes every attached definition.
type Manifest struct {
	Services []ServiceManifest `json:"services"`
}

// ServiceManifest describes one attached definition.
type ServiceManifest struct {
	Name     string            `json:"name"`
	Type     string            `json:"type"`
	Handlers []HandlerManifest `json:"handlers"`
}

// HandlerManifest names one handler of a definition.
type HandlerManifest struct {
	Name string `json:"name"`
}

// DiscoveryType maps a role onto the name the control plane expects.
func DiscoveryType(role domain.Role) string {
	switch role {
	case domain.RoleObject:
		return "VIRTUAL_OBJECT"
	case domain.RoleWorkflow:
		return "WORKFLOW"
	default:
		return "SERVICE"
	}
}

// Manifest builds the discovery document for the attached definitions.
func (s *Server) Manifest() Manifest {
	defs := s.Definitions()
	m := Manifest{Services: make([]ServiceManifest, 0, len(defs))}
	for _, def := range defs {
		sm := ServiceManifest{Name: def.Name, Type: DiscoveryType(def.Role)}
		for _, name := range def.HandlerNames() {
			sm.Handlers = append(sm.Handlers, HandlerManifest{Name: name})
		}
		m.Services = append(m.Services, sm)
	}
	return m
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) discover(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Manifest())
}

func (s *Server) invoke(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")
	handler := chi.URLParam(r, "handler")

	def, ok := s.lookup(service)
	if !ok {
		s.writeError(w, http.StatusNotFound, "service not found: "+service)
		return
	}
	fn, ok := def.Handler(handler)
	if !ok {
		s.writeError(w, http.StatusNotFound, "handler not found: "+service+"/"+handler)
		return
	}

	key := r.Header.Get(KeyHeader)
	if key == "" {
		key = r.URL.Query().Get("key")
	}
	if def.Role.Keyed() && key == "" {
		s.writeError(w, http.StatusBadRequest, "key is required for "+string(def.Role)+" "+service)
		return
	}

	input, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxRequestBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	id := r.Header.Get(InvocationIDHeader)
	if id == "" {
		id = ids.NewInvocationID()
	}
	w.Header().Set(InvocationIDHeader, id)

	ctx, span := telemetry.Tracer().Start(r.Context(), "Invoke",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("wharf.invocation_id", id),
			attribute.String("wharf.service", service),
			attribute.String("wharf.handler", handler),
			attribute.String("wharf.role", string(def.Role)),
		),
	)
	defer span.End()

	hctx := domain.NewContext(ctx, domain.Invocation{
		ID:      id,
		Service: service,
		Handler: handler,
		Key:     key,
	}, s.logger)

	start := time.Now()
	output, err := fn(hctx, input)
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.Invocation(service, handler, "error", elapsed)
		hctx.Logger().Error("Invocation failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.metrics.Invocation(service, handler, "ok", elapsed)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(output); err != nil {
		hctx.Logger().Warn("Failed to write response", "error", err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := jsoncodec.Encode(w, v); err != nil {
		s.logger.Error("Response encode failed", "error", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorBody{Error: msg})
}
