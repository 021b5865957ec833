package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/petrijr/appinstall/pkg/api"
)

const (
	// DefaultKeyPrefix is prepended to installation ids to form storage keys.
	DefaultKeyPrefix = "installation-"

	// DefaultTTL is how long installation states are kept.
	DefaultTTL = 3 * time.Hour
)

// StateStore is an api.StateStore that keeps JSON-encoded states in a
// KeyValueStore under "<prefix><id>".
type StateStore struct {
	kv     KeyValueStore
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

var _ api.StateStore = (*StateStore)(nil)

// Option configures a StateStore.
type Option func(*StateStore)

// WithTTL sets how long saved states are kept. ttl <= 0 keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *StateStore) { s.ttl = ttl }
}

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *StateStore) { s.prefix = prefix }
}

// WithLogger sets the logger used to report undecodable payloads.
func WithLogger(logger *slog.Logger) Option {
	return func(s *StateStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStateStore creates a StateStore on top of kv.
func NewStateStore(kv KeyValueStore, opts ...Option) *StateStore {
	s := &StateStore{
		kv:     kv,
		prefix: DefaultKeyPrefix,
		ttl:    DefaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the storage key for an installation id.
func (s *StateStore) Key(id string) string {
	return s.prefix + id
}

// TTL returns the configured time-to-live.
func (s *StateStore) TTL() time.Duration {
	return s.ttl
}

// Save stores state under its id.
func (s *StateStore) Save(ctx context.Context, state *api.InstallationState) error {
	if state == nil {
		return errors.New("state must not be nil")
	}
	if state.ID == "" {
		return fmt.Errorf("save installation state: %w", ErrInvalidKey)
	}
	data, err := EncodeState(state)
	if err != nil {
		return fmt.Errorf("encode installation %s: %w", state.ID, err)
	}
	return s.kv.Put(ctx, s.Key(state.ID), data, s.ttl)
}

// Get returns the state saved under id, or nil when it is absent or cannot
// be decoded.
func (s *StateStore) Get(ctx context.Context, id string) (*api.InstallationState, error) {
	data, ok, err := s.kv.Get(ctx, s.Key(id))
	if err != nil {
		return nil, fmt.Errorf("load installation %s: %w", id, err)
	}
	if !ok {
		return nil, nil
	}

	state, err := DecodeState(data)
	if err != nil {
		s.logger.WarnContext(ctx, "discarding undecodable installation state",
			slog.String("installation_id", id),
			slog.Any("error", err),
		)
		return nil, nil
	}
	return state, nil
}
