package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventAttached   EventType = "attached"
	EventUnresolved EventType = "unresolved"
	EventBindFailed EventType = "bind_failed"
	EventAnnounced  EventType = "announced"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// BindingEvent is emitted for every pending registration processed during bootstrap.
type BindingEvent struct {
	EventBase
	Class string `json:"class"`
	Role  Role   `json:"role"`
	Name  string `json:"name,omitempty"`
	Err   error  `json:"-"`
}

// AnnounceEvent is emitted after a deployment handshake attempt.
type AnnounceEvent struct {
	EventBase
	URI        string `json:"uri"`
	Registered bool   `json:"registered"`
	Err        error  `json:"-"`
}

// LifecycleHooks defines callbacks for bootstrap observability.
type LifecycleHooks struct {
	OnAttached   func(context.Context, *BindingEvent)
	OnUnresolved func(context.Context, *BindingEvent)
	OnBindFailed func(context.Context, *BindingEvent)
	OnAnnounced  func(context.Context, *AnnounceEvent)
}
