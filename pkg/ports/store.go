package ports

import (
	"context"

	"github.com/aretw0/wharf/pkg/domain"
)

// RegistrationStore persists accepted deployment registrations, keyed by URI.
// Replicas advertising the same URI share it to avoid repeating the handshake.
type RegistrationStore interface {
	// Save records reg, replacing any record with the same URI.
	Save(ctx context.Context, reg domain.Registration) error
	// Load returns domain.ErrNotRegistered when the URI is unknown.
	Load(ctx context.Context, uri string) (domain.Registration, error)
	// Delete removes the record. Deleting an unknown URI is not an error.
	Delete(ctx context.Context, uri string) error
	// List returns every record sorted by URI.
	List(ctx context.Context) ([]domain.Registration, error)
}
