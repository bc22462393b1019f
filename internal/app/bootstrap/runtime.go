package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/chatdesk/internal/config"
	"github.com/wolfman30/chatdesk/internal/operator"
	"github.com/wolfman30/chatdesk/internal/session"
	"github.com/wolfman30/chatdesk/internal/transcript"
	"github.com/wolfman30/chatdesk/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// Database bundles the pgx pool with a database/sql view over the same pool.
type Database struct {
	Pool *pgxpool.Pool
	SQL  *sql.DB
}

// Close releases both handles.
func (d *Database) Close() {
	if d == nil {
		return
	}
	if d.SQL != nil {
		_ = d.SQL.Close()
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
}

// BuildDatabase opens a pgx pool when DATABASE_URL is set. It returns nil,
// nil when no database is configured.
func BuildDatabase(ctx context.Context, cfg *appconfig.Config) (*Database, error) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	return &Database{Pool: pool, SQL: stdlib.OpenDBFromPool(pool)}, nil
}

// BuildOperatorStore selects the operator config backend. Redis and
// Postgres fall back to memory when their client is missing.
func BuildOperatorStore(cfg *appconfig.Config, redisClient *redis.Client, db *Database, logger *logging.Logger) operator.Store {
	if logger == nil {
		logger = logging.Default()
	}
	switch cfg.OperatorStore {
	case "redis":
		if redisClient != nil {
			return operator.NewRedisStore(redisClient)
		}
	case "postgres":
		if db != nil {
			return operator.NewPostgresStore(db.SQL)
		}
	case "memory":
		return operator.NewMemoryStore()
	default:
		logger.Warn("unknown OPERATOR_STORE; using memory", "value", cfg.OperatorStore)
		return operator.NewMemoryStore()
	}
	logger.Warn("operator store backend unavailable; using memory", "backend", cfg.OperatorStore)
	return operator.NewMemoryStore()
}

// BuildTranscriptStore selects the transcript backend.
func BuildTranscriptStore(cfg *appconfig.Config, db *Database, logger *logging.Logger) transcript.Store {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.TranscriptStore == "postgres" {
		if db != nil {
			return transcript.NewPostgresStore(db.Pool)
		}
		logger.Warn("DATABASE_URL not set; transcripts are kept in memory and lost on restart")
	}
	return transcript.NewMemoryStore()
}

// BuildSessionCache selects the prompt history cache. The returned sweeper
// is non-nil only for the in-memory cache.
func BuildSessionCache(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) (session.Cache, *session.MemoryCache) {
	if cfg.SessionCache == "redis" && redisClient != nil {
		return session.NewRedisCache(redisClient, cfg.SessionHistoryLimit, cfg.SessionIdleTTL), nil
	}
	mem := session.NewMemoryCache(cfg.SessionHistoryLimit, cfg.SessionIdleTTL, session.WithLogger(logger))
	return mem, mem
}
