package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"auth-service/internal/config"
	"auth-service/internal/csrf"
	"auth-service/internal/http/handlers"
	"auth-service/internal/http/middleware"
	"auth-service/internal/models"
	"auth-service/internal/ratelimit"
	"auth-service/internal/service"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger   *slog.Logger
	Timeout  time.Duration
	BasePath string // например, "/api"; если пустой — роуты регистрируются на корне.
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
//
// Порядок глобальной цепочки (внешний -> внутренний):
// Recover -> RequestID -> Logging -> Timeout -> Authenticate -> CSRFIssue.
// Authenticate до маршрутов: предъявленный Bearer либо даёт идентичность,
// либо сразу 401. Гейты requireAuth/requireRole/csrfValidate висят
// на конкретных маршрутах.
func NewRouter(svc *service.Service, guard *csrf.Guard, limiter *ratelimit.Limiter, cfg *config.Config, opts Options) http.Handler {
	root := chi.NewRouter()

	root.Use(
		middleware.Recover(),            // безопасно ловим паники
		middleware.RequestID(),          // формируем/прокидываем X-Request-Id (до логирования!)
		middleware.Logging(opts.Logger), // кладём request-scoped логгер в контекст и логируем
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout)) // общий дедлайн запроса
	}
	root.Use(
		middleware.Authenticate(svc),
		middleware.CSRFIssue(guard, cfg.CookieSecure()),
	)

	h := handlers.New(svc, cfg.CookieSecure(), cfg.Auth.RefreshTokenTTL)

	if opts.BasePath != "" {
		sub := chi.NewRouter()
		registerRoutes(sub, h, guard, limiter, cfg.Limits)
		root.Mount(opts.BasePath, sub)
		return root
	}

	registerRoutes(root, h, guard, limiter, cfg.Limits)
	return root
}

// registerRoutes — единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers, guard *csrf.Guard, limiter *ratelimit.Limiter, limits config.LimitsConfig) {
	requireAuth := middleware.RequireAuth()
	requireAdmin := middleware.RequireRole(models.RoleAdmin)
	csrfValidate := middleware.CSRFValidate(guard)

	// auth: лимиты срабатывают до проверки учётных данных.
	r.With(middleware.LimitAll(limiter, "register", limits.RegisterAttempts, limits.RegisterWindow, limits.TrustProxy)).
		Post("/auth/register", h.Register)
	r.With(middleware.LimitFailures(limiter, "login", limits.LoginAttempts, limits.LoginWindow, limits.TrustProxy)).
		Post("/auth/login", h.Login)
	r.Post("/auth/refresh", h.Refresh)
	r.With(requireAuth).Post("/auth/logout", h.Logout)

	// users
	r.With(requireAuth).Get("/users/profile", h.Profile)
	r.With(requireAuth, csrfValidate).Put("/users/profile", h.UpdateProfile)
	r.With(requireAuth, csrfValidate).Delete("/users/me", h.DeleteAccount)

	// admin
	r.With(requireAuth, requireAdmin, csrfValidate).
		Patch("/admin/users/{id}/role", h.ChangeUserRole)
}
