package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultRedisTTL   = 24 * time.Hour
	maxUpdateAttempts = 3
)

type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

type redisSetter interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisStore keeps sessions in Redis as JSON with a sliding TTL.
type RedisStore struct {
	redis  *redis.Client
	ttl    time.Duration
	now    func() time.Time
	tracer trace.Tracer
}

// NewRedisStore creates a Redis-backed store. A non-positive ttl falls back to 24h.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}
	return &RedisStore{
		redis:  client,
		ttl:    ttl,
		now:    time.Now,
		tracer: otel.Tracer("salesbot.internal.session.redis"),
	}
}

func (s *RedisStore) Get(ctx context.Context, userID string) (*Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingUserID
	}
	ctx, span := s.tracer.Start(ctx, "session.get")
	defer span.End()

	sess, found, err := s.load(ctx, s.redis, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if found {
		return sess, nil
	}
	sess = New(s.now())
	if err := s.save(ctx, s.redis, userID, sess); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return sess, nil
}

// Update runs an optimistic WATCH/MULTI cycle so concurrent writers from other
// processes do not drop each other's fields.
func (s *RedisStore) Update(ctx context.Context, userID string, patch Patch) (*Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingUserID
	}
	ctx, span := s.tracer.Start(ctx, "session.update")
	defer span.End()

	key := sessionKey(userID)
	var result *Session
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			sess, found, err := s.load(ctx, tx, userID)
			if err != nil {
				return err
			}
			if !found {
				sess = New(s.now())
			}
			patch.Apply(sess)
			sess.UpdatedAt = s.now()
			data, err := json.Marshal(sess)
			if err != nil {
				return fmt.Errorf("session: failed to marshal session: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, s.ttl)
				return nil
			})
			if err == nil {
				result = sess
			}
			return err
		}, key)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			span.RecordError(err)
			return nil, fmt.Errorf("session: failed to update session: %w", err)
		}
	}
	err := fmt.Errorf("session: update of %s lost %d races", userID, maxUpdateAttempts)
	span.RecordError(err)
	return nil, err
}

func (s *RedisStore) Reset(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrMissingUserID
	}
	ctx, span := s.tracer.Start(ctx, "session.reset")
	defer span.End()

	if err := s.save(ctx, s.redis, userID, New(s.now())); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (s *RedisStore) load(ctx context.Context, cmd redisGetter, userID string) (*Session, bool, error) {
	data, err := cmd.Get(ctx, sessionKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("session: failed to load session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, false, fmt.Errorf("session: failed to decode session: %w", err)
	}
	return &sess, true, nil
}

func (s *RedisStore) save(ctx context.Context, cmd redisSetter, userID string, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session: failed to marshal session: %w", err)
	}
	if err := cmd.Set(ctx, sessionKey(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("session: failed to persist session: %w", err)
	}
	return nil
}

func sessionKey(userID string) string {
	return fmt.Sprintf("salesbot:session:%s", userID)
}
