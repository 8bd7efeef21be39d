// ratelimit реализует fixed-window счётчики поверх Redis.
//
// Окно задаётся TTL ключа: первый INCR выставляет срок жизни, дальнейшие
// инкременты его не продлевают. Сам пакет политики не знает — решение
// "считать ли попытку" принимает HTTP-middleware (логин считает только
// неудачные попытки, регистрация — все).
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter — клиент fixed-window счётчиков.
type Limiter struct {
	rdb    *redis.Client
	prefix string
}

// New создаёт Limiter поверх существующего клиента Redis.
// Если prefix пустой — используется "auth:rl:".
func New(rdb *redis.Client, prefix string) *Limiter {
	if prefix == "" {
		prefix = "auth:rl:"
	}

	return &Limiter{rdb: rdb, prefix: prefix}
}

func (l *Limiter) key(name string) string { return l.prefix + name }

// Count возвращает текущее значение счётчика (0, если окно ещё не открыто).
func (l *Limiter) Count(ctx context.Context, name string) (int64, error) {
	const op = "ratelimit.Count"

	n, err := l.rdb.Get(ctx, l.key(name)).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}

		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

// Hit инкрементирует счётчик и возвращает новое значение. На первом
// инкременте открывается окно: ключу выставляется TTL (NX — повторные
// попытки окно не продлевают).
func (l *Limiter) Hit(ctx context.Context, name string, window time.Duration) (int64, error) {
	const op = "ratelimit.Hit"

	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, l.key(name))
	pipe.ExpireNX(ctx, l.key(name), window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return incr.Val(), nil
}
