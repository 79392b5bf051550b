package domain

import (
	"context"
	"log/slog"
)

// Context is handed to every handler invocation. It carries the request
// context plus the identity of the call being served.
type Context interface {
	context.Context
	InvocationID() string
	Service() string
	Handler() string
	// Key is empty for services.
	Key() string
	Logger() *slog.Logger
}

// Invocation describes the call a Context belongs to.
type Invocation struct {
	ID      string
	Service string
	Handler string
	Key     string
}

type invocationContext struct {
	context.Context
	inv    Invocation
	logger *slog.Logger
}

// NewContext wraps parent with invocation details. The logger is enriched with
// the invocation attributes.
func NewContext(parent context.Context, inv Invocation, logger *slog.Logger) Context {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("invocation_id", inv.ID, "service", inv.Service, "handler", inv.Handler)
	if inv.Key != "" {
		logger = logger.With("key", inv.Key)
	}
	return &invocationContext{Context: parent, inv: inv, logger: logger}
}

func (c *invocationContext) InvocationID() string { return c.inv.ID }
func (c *invocationContext) Service() string      { return c.inv.Service }
func (c *invocationContext) Handler() string      { return c.inv.Handler }
func (c *invocationContext) Key() string          { return c.inv.Key }
func (c *invocationContext) Logger() *slog.Logger { return c.logger }
