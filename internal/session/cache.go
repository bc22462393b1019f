// Package session holds the short-lived prompt history for active chats.
// It is a performance cache: the transcript store is authoritative and the
// cache can always be rebuilt from it.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/wolfman30/chatdesk/pkg/logging"
)

// Turn is one role/content pair in prompt history. Role is "user" or
// "assistant".
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Cache stores the most recent turns per session key.
type Cache interface {
	// History returns the cached turns and whether the key was present.
	History(ctx context.Context, key string) ([]Turn, bool, error)
	// Append extends an existing entry. It does nothing when key is absent,
	// so a partial history never stands in for the transcript.
	Append(ctx context.Context, key string, turns ...Turn) error
	// Seed replaces the entry for key, used when rebuilding from the transcript.
	Seed(ctx context.Context, key string, turns []Turn) error
	Delete(ctx context.Context, key string) error
	Len() int
}

type entry struct {
	turns        []Turn
	lastActivity time.Time
}

// MemoryCache is a process-local Cache with idle eviction.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*entry
	limit   int
	ttl     time.Duration
	now     func() time.Time
	logger  *logging.Logger
}

// MemoryOption customizes a MemoryCache.
type MemoryOption func(*MemoryCache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) { c.now = now }
}

// WithLogger sets the logger used by the sweeper.
func WithLogger(logger *logging.Logger) MemoryOption {
	return func(c *MemoryCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewMemoryCache keeps at most limit turns per key and evicts keys idle
// longer than ttl when swept.
func NewMemoryCache(limit int, ttl time.Duration, opts ...MemoryOption) *MemoryCache {
	if limit <= 0 {
		limit = 20
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	c := &MemoryCache{
		entries: make(map[string]*entry),
		limit:   limit,
		ttl:     ttl,
		now:     time.Now,
		logger:  logging.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *MemoryCache) History(_ context.Context, key string) ([]Turn, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]Turn, len(e.turns))
	copy(out, e.turns)
	return out, true, nil
}

func (c *MemoryCache) Append(_ context.Context, key string, turns ...Turn) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil
	}
	e.turns = capTurns(append(e.turns, turns...), c.limit)
	e.lastActivity = c.now()
	return nil
}

func (c *MemoryCache) Seed(_ context.Context, key string, turns []Turn) error {
	seeded := make([]Turn, len(turns))
	copy(seeded, turns)
	c.mu.Lock()
	c.entries[key] = &entry{turns: capTurns(seeded, c.limit), lastActivity: c.now()}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep removes entries idle for longer than the TTL and returns how many
// were removed.
func (c *MemoryCache) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, e := range c.entries {
		if now.Sub(e.lastActivity) > c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is cancelled.
func (c *MemoryCache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := c.Sweep(c.now()); removed > 0 {
				c.logger.Info("session cache swept", "removed", removed, "remaining", c.Len())
			}
		}
	}
}

func capTurns(turns []Turn, limit int) []Turn {
	if len(turns) <= limit {
		return turns
	}
	trimmed := make([]Turn, limit)
	copy(trimmed, turns[len(turns)-limit:])
	return trimmed
}
