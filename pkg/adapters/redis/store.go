package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aretw0/wharf/internal/jsoncodec"
	"github.com/aretw0/wharf/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

const defaultPrefix = "wharf:deployment:"

// Store implements ports.RegistrationStore using Redis.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for registrations.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for registrations.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: defaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Client exposes the underlying client so a Locker can share the connection.
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) key(uri string) string {
	return s.prefix + uri
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Save persists the registration.
func (s *Store) Save(ctx context.Context, reg domain.Registration) error {
	data, err := jsoncodec.Marshal(reg)
	if err != nil {
		return fmt.Errorf("failed to marshal registration: %w", err)
	}

	// Index score is the expiry time, so List can prune lazily.
	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = 4102444800
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(reg.URI), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: reg.URI})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves the registration for uri.
func (s *Store) Load(ctx context.Context, uri string) (domain.Registration, error) {
	val, err := s.client.Get(ctx, s.key(uri)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return domain.Registration{}, domain.ErrNotRegistered
		}
		return domain.Registration{}, fmt.Errorf("failed to get from redis: %w", err)
	}

	var reg domain.Registration
	if err := jsoncodec.Unmarshal(val, &reg); err != nil {
		return domain.Registration{}, fmt.Errorf("failed to unmarshal registration: %w", err)
	}
	return reg, nil
}

// Delete removes the registration.
func (s *Store) Delete(ctx context.Context, uri string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(uri))
	pipe.ZRem(ctx, s.indexKey(), uri)

	_, err := pipe.Exec(ctx)
	return err
}

// List returns live registrations sorted by URI, pruning expired index entries.
func (s *Store) List(ctx context.Context) ([]domain.Registration, error) {
	now := float64(time.Now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired registrations: %w", err)
	}

	uris, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	sort.Strings(uris)

	out := make([]domain.Registration, 0, len(uris))
	for _, uri := range uris {
		reg, err := s.Load(ctx, uri)
		if errors.Is(err, domain.ErrNotRegistered) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, reg)
	}
	return out, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
