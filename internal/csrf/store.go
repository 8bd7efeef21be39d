package csrf

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore — серверное хранилище привязки "сессия → CSRF-токен".
// Хранилищем владеет исключительно Guard; никто не пишет в него напрямую.
type SessionStore interface {
	// Get возвращает токен сессии и признак его наличия.
	Get(ctx context.Context, sessionID string) (string, bool, error)
	// Set сохраняет токен сессии с TTL.
	Set(ctx context.Context, sessionID, token string, ttl time.Duration) error
	// Close закрывает клиент хранилища.
	Close() error
}

type redisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore создаёт хранилище CSRF-сессий поверх существующего клиента Redis.
// Если prefix пустой — используется "auth:csrf:".
func NewRedisStore(rdb *redis.Client, prefix string) SessionStore {
	if prefix == "" {
		prefix = "auth:csrf:"
	}

	return &redisStore{rdb: rdb, prefix: prefix}
}

func (s *redisStore) key(sessionID string) string { return s.prefix + sessionID }

func (s *redisStore) Get(ctx context.Context, sessionID string) (string, bool, error) {
	token, err := s.rdb.Get(ctx, s.key(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}

		return "", false, err
	}

	return token, true, nil
}

func (s *redisStore) Set(ctx context.Context, sessionID, token string, ttl time.Duration) error {
	return s.rdb.Set(ctx, s.key(sessionID), token, ttl).Err()
}

func (s *redisStore) Close() error { return s.rdb.Close() }
