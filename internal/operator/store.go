package operator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store resolves and persists operator configuration.
type Store interface {
	Get(ctx context.Context, id string) (*Config, error)
	Put(ctx context.Context, id string, cfg *Config) error
}

var nowUTC = func() time.Time { return time.Now().UTC() }

func decodeConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("operator: unmarshal config: %w", err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// RedisStore keeps configs as JSON strings under operator:config:<id>.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis-backed config store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{redis: client}
}

func (s *RedisStore) key(id string) string {
	return fmt.Sprintf("operator:config:%s", id)
}

// Get loads a config; a missing key yields ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, id string) (*Config, error) {
	if s == nil || s.redis == nil {
		return nil, errors.New("operator: redis store not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("operator: get config: %w", err)
	}
	return decodeConfig(data)
}

// Put validates and replaces the config for id.
func (s *RedisStore) Put(ctx context.Context, id string, cfg *Config) error {
	if s == nil || s.redis == nil {
		return errors.New("operator: redis store not configured")
	}
	data, err := prepare(id, cfg)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(cfg.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("operator: set config: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store used by tests and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	configs map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{configs: make(map[string][]byte)}
}

// Get returns a copy of the stored config.
func (s *MemoryStore) Get(_ context.Context, id string) (*Config, error) {
	s.mu.RLock()
	data, ok := s.configs[strings.TrimSpace(id)]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decodeConfig(data)
}

// Put validates and replaces the config for id.
func (s *MemoryStore) Put(_ context.Context, id string, cfg *Config) error {
	data, err := prepare(id, cfg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.configs[cfg.ID] = data
	s.mu.Unlock()
	return nil
}
