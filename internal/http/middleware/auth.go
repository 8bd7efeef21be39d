package middleware

import (
	"context"
	"net/http"
	"strings"

	apierrors "auth-service/internal/errors"
	"auth-service/internal/models"

	"github.com/google/uuid"
)

// TokenValidator проверяет access-токен и возвращает идентичность.
type TokenValidator interface {
	ValidateAccessToken(accessToken string) (uuid.UUID, models.Role, error)
}

// Identity — подтверждённая идентичность запроса.
type Identity struct {
	UserID uuid.UUID
	Role   models.Role
}

type ctxKeyIdentity struct{}

// IdentityFrom возвращает идентичность запроса, если он аутентифицирован.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	v, ok := ctx.Value(ctxKeyIdentity{}).(Identity)
	return v, ok
}

// Authenticate разбирает заголовок Authorization.
//
// Контракт:
//   - заголовка нет либо схема не Bearer — запрос идёт дальше без идентичности;
//     решение "пускать или нет" принимают RequireAuth/RequireRole на маршруте;
//   - Bearer есть, но токен не прошёл проверку (подпись/срок/claims) —
//     немедленный 401: предъявленный токен обязан быть валидным.
func Authenticate(v TokenValidator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				next.ServeHTTP(w, r)
				return
			}

			userID, role, err := v.ValidateAccessToken(strings.TrimSpace(header[len(prefix):]))
			if err != nil {
				apierrors.WriteError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyIdentity{}, Identity{
				UserID: userID,
				Role:   role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth отклоняет запросы без идентичности (401).
func RequireAuth() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := IdentityFrom(r.Context()); !ok {
				apierrors.WriteError(w, r, apierrors.ErrUnauthenticated)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole отклоняет запросы без идентичности (401) и с недостаточной
// ролью (403). Подразумевает Authenticate выше по цепочке.
func RequireRole(role models.Role) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				apierrors.WriteError(w, r, apierrors.ErrUnauthenticated)
				return
			}

			if id.Role != role {
				apierrors.WriteError(w, r, apierrors.ErrForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
