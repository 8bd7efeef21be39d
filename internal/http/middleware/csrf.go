package middleware

import (
	"log/slog"
	"net/http"

	"auth-service/internal/csrf"
	apierrors "auth-service/internal/errors"
	logctx "auth-service/internal/pkg/log"
)

const (
	// csrfSessionCookie — httpOnly кука с идентификатором CSRF-сессии.
	csrfSessionCookie = "csrf_session"
	// csrfTokenCookie — читаемая JS кука с самим токеном (double-submit).
	csrfTokenCookie = "XSRF-TOKEN"
	// csrfHeader — заголовок, в котором клиент возвращает токен.
	csrfHeader = "X-CSRF-Token"
)

// CSRFIssue на безопасных методах выдаёт пару кук double-submit схемы:
// httpOnly идентификатор сессии и читаемый токен. Ошибка выдачи не валит
// запрос — GET обязан отработать, а токен доедет со следующим ответом.
func CSRFIssue(guard *csrf.Guard, secure bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			sid := ""
			if c, err := r.Cookie(csrfSessionCookie); err == nil {
				sid = c.Value
			}
			if sid == "" {
				sid = genID()
			}

			token, err := guard.Issue(r.Context(), sid)
			if err != nil {
				logctx.From(r.Context()).LogAttrs(r.Context(), slog.LevelWarn,
					"csrf issue failed", slog.String("err", err.Error()))
				next.ServeHTTP(w, r)
				return
			}

			ttl := int(guard.TokenTTL().Seconds())
			http.SetCookie(w, &http.Cookie{
				Name:     csrfSessionCookie,
				Value:    sid,
				Path:     "/",
				MaxAge:   ttl,
				HttpOnly: true,
				Secure:   secure,
				SameSite: http.SameSiteLaxMode,
			})
			http.SetCookie(w, &http.Cookie{
				Name:     csrfTokenCookie,
				Value:    token,
				Path:     "/",
				MaxAge:   ttl,
				HttpOnly: false, // фронт читает её и кладёт токен в заголовок.
				Secure:   secure,
				SameSite: http.SameSiteLaxMode,
			})

			next.ServeHTTP(w, r)
		})
	}
}

// CSRFValidate требует валидный double-submit токен на мутирующих методах.
// Токен берётся из заголовка X-CSRF-Token, сессия — из httpOnly куки.
// Любой отказ — единый 403 без уточнения причины.
func CSRFValidate(guard *csrf.Guard) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			sid := ""
			if c, err := r.Cookie(csrfSessionCookie); err == nil {
				sid = c.Value
			}

			if !guard.Validate(r.Context(), sid, r.Header.Get(csrfHeader)) {
				apierrors.WriteError(w, r, apierrors.ErrCSRFRejected)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
