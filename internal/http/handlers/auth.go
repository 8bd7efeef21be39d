package handlers

import (
	"log/slog"
	"net/http"

	apierrors "auth-service/internal/errors"
	"auth-service/internal/http/middleware"
	logctx "auth-service/internal/pkg/log"
	"auth-service/internal/pkg/redact"
	"auth-service/internal/service"
)

type registerRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// tokenResponse — ответ register/login: access-токен в теле,
// refresh — только в httpOnly куке.
type tokenResponse struct {
	UserID      string `json:"userId"`
	Role        string `json:"role"`
	AccessToken string `json:"accessToken"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// Register — POST /auth/register.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	pair, user, err := h.service.RegisterUser(r.Context(), req.FirstName, req.LastName, req.Email, req.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	logctx.From(r.Context()).LogAttrs(r.Context(), slog.LevelInfo, "user registered",
		slog.String("user_id", user.ID.String()),
		slog.String("email", redact.Email(user.Email)),
	)

	h.setRefreshCookie(w, pair.RefreshToken)
	writeJSON(w, http.StatusCreated, tokenResponse{
		UserID:      user.ID.String(),
		Role:        string(user.Role),
		AccessToken: pair.AccessToken,
	})
}

// Login — POST /auth/login.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	pair, user, err := h.service.LoginUser(r.Context(), req.Email, req.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken)
	writeJSON(w, http.StatusOK, tokenResponse{
		UserID:      user.ID.String(),
		Role:        string(user.Role),
		AccessToken: pair.AccessToken,
	})
}

// Refresh — POST /auth/refresh.
// Токен берётся только из куки; отсутствие куки неотличимо для клиента
// от невалидного токена.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookie)
	if err != nil || cookie.Value == "" {
		apierrors.WriteError(w, r, service.ErrInvalidToken)
		return
	}

	pair, _, err := h.service.RefreshToken(r.Context(), cookie.Value)
	if err != nil {
		// Ротация не состоялась — чистим куку, чтобы клиент не
		// переотправлял мёртвый токен.
		h.clearRefreshCookie(w)
		apierrors.WriteError(w, r, err)
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken)
	writeJSON(w, http.StatusOK, refreshResponse{AccessToken: pair.AccessToken})
}

// Logout — POST /auth/logout. Требует аутентификации.
// Отзывает предъявленный refresh-токен и все активные токены пользователя,
// затем чистит куку. Идемпотентен: повторный вызов тоже отвечает 200.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(refreshCookie); err == nil && cookie.Value != "" {
		if err := h.service.RevokeToken(r.Context(), cookie.Value); err != nil {
			apierrors.WriteError(w, r, err)
			return
		}
	}

	if id, ok := middleware.IdentityFrom(r.Context()); ok {
		if err := h.service.RevokeAllUserTokens(r.Context(), id.UserID); err != nil {
			apierrors.WriteError(w, r, err)
			return
		}
	}

	h.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: "logout successful"})
}
