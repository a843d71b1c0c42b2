package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/salesbot/internal/config"
	"github.com/wolfman30/salesbot/internal/records"
	"github.com/wolfman30/salesbot/internal/session"
	"github.com/wolfman30/salesbot/pkg/logging"
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
		_ = client.Close()
		return nil
	}
	return client
}

// BuildSessionStore picks the session backend named by SESSION_BACKEND.
// The memory store runs a janitor until ctx is done. A redis backend that
// cannot be reached is an error rather than a silent downgrade, since
// replicas would stop sharing dialogue state.
func BuildSessionStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (session.Store, func(), error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.SessionBackend {
	case "", "memory":
		store := session.NewMemoryStore(session.WithTTL(cfg.SessionTTL))
		store.StartJanitor(ctx, cfg.SessionSweep)
		logger.Info("session store ready", "backend", "memory", "ttl", cfg.SessionTTL.String())
		return store, func() {}, nil
	case "redis":
		client := BuildRedisClient(ctx, cfg, logger, true)
		if client == nil {
			return nil, nil, fmt.Errorf("bootstrap: redis session backend unavailable at %s", cfg.RedisAddr)
		}
		logger.Info("session store ready", "backend", "redis", "addr", cfg.RedisAddr)
		return session.NewRedisStore(client, cfg.SessionTTL), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown session backend %q", cfg.SessionBackend)
	}
}

// ConnectPostgresPool opens a pgx pool, or returns nil when url is empty or
// the database is unreachable.
func ConnectPostgresPool(ctx context.Context, url string, logger *logging.Logger) *pgxpool.Pool {
	if strings.TrimSpace(url) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		return nil
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping postgres", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

// BuildRecordsRepository returns the Postgres repository when a pool is
// available and the in-memory one otherwise.
func BuildRecordsRepository(pool *pgxpool.Pool, logger *logging.Logger) records.Repository {
	if logger == nil {
		logger = logging.Default()
	}
	if pool == nil {
		logger.Warn("DATABASE_URL not set or unreachable; records kept in memory")
		return records.NewInMemoryRepository()
	}
	return records.NewPostgresRepository(pool)
}
