package domain

import (
	"errors"
	"fmt"
)

// ErrMissingMetadata is returned when a class has no role descriptor, a role
// other than the one requested, or no handlers.
var ErrMissingMetadata = errors.New("missing role/handler metadata")

// ErrMissingEntryPoint is returned when a workflow has no "run" handler.
var ErrMissingEntryPoint = errors.New("workflow must implement a run method")

// ErrReceiverMismatch is returned when a handler was declared on a type the instance does not satisfy.
var ErrReceiverMismatch = errors.New("handler receiver does not match instance")

// ErrDuplicateDefinition is returned when a definition name is already attached to the endpoint.
var ErrDuplicateDefinition = errors.New("definition already attached")

// ErrPortMismatch is returned when the endpoint is asked to start on a port other than the one it serves.
var ErrPortMismatch = errors.New("endpoint already listening on a different port")

// ErrEndpointStopped is returned when the endpoint is asked to start after shutdown.
var ErrEndpointStopped = errors.New("endpoint stopped")

// ErrNotRegistered is returned when a deployment URI has no registration record.
var ErrNotRegistered = errors.New("deployment not registered")

// BindError reports why a class could not be turned into a Definition.
type BindError struct {
	Class Class
	Role  Role
	Err   error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Role, e.Class.Name(), e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}
