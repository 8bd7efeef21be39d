package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	apierrors "auth-service/internal/errors"
	logctx "auth-service/internal/pkg/log"
	"auth-service/internal/ratelimit"
)

// LimitAll — fixed-window лимит на все запросы маршрута: каждый запрос
// инкрементирует счётчик клиента до вызова обработчика.
// Ошибка Redis не блокирует запрос (fail-open): деградация лимитера не
// должна ронять регистрацию.
// trustProxy включает чтение адреса клиента из заголовков прокси.
func LimitAll(l *ratelimit.Limiter, route string, limit int64, window time.Duration, trustProxy bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := route + ":" + clientIP(r, trustProxy)

			n, err := l.Hit(r.Context(), key, window)
			if err != nil {
				logctx.From(r.Context()).LogAttrs(r.Context(), slog.LevelWarn,
					"rate limiter unavailable", slog.String("err", err.Error()))
				next.ServeHTTP(w, r)
				return
			}

			if n > limit {
				apierrors.WriteError(w, r, apierrors.ErrRateLimited)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LimitFailures — fixed-window лимит, считающий только неуспешные попытки:
// счётчик проверяется до обработчика, а инкрементируется после — и только
// если обработчик ответил 401. Успешный логин окно не тратит.
func LimitFailures(l *ratelimit.Limiter, route string, limit int64, window time.Duration, trustProxy bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := route + ":" + clientIP(r, trustProxy)

			n, err := l.Count(r.Context(), key)
			if err != nil {
				logctx.From(r.Context()).LogAttrs(r.Context(), slog.LevelWarn,
					"rate limiter unavailable", slog.String("err", err.Error()))
				next.ServeHTTP(w, r)
				return
			}

			if n >= limit {
				apierrors.WriteError(w, r, apierrors.ErrRateLimited)
				return
			}

			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)

			if sw.status == http.StatusUnauthorized {
				if _, err := l.Hit(r.Context(), key, window); err != nil {
					logctx.From(r.Context()).LogAttrs(r.Context(), slog.LevelWarn,
						"rate limiter hit failed", slog.String("err", err.Error()))
				}
			}
		})
	}
}

// clientIP определяет адрес клиента. Заголовки X-Forwarded-For (первый hop)
// и X-Real-Ip читаются только при trustProxy: без доверенного прокси перед
// сервисом клиент сам управляет заголовками и мог бы уходить от лимитов,
// подставляя новый адрес на каждую попытку. Иначе — RemoteAddr без порта.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			for i := 0; i < len(xff); i++ {
				if xff[i] == ',' {
					return xff[:i]
				}
			}
			return xff
		}

		if rip := r.Header.Get("X-Real-Ip"); rip != "" {
			return rip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
