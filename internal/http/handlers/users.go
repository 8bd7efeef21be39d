package handlers

import (
	"log/slog"
	"net/http"

	apierrors "auth-service/internal/errors"
	"auth-service/internal/http/middleware"
	logctx "auth-service/internal/pkg/log"
)

type updateProfileRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// Profile — GET /users/profile. Требует аутентификации.
func (h *Handlers) Profile(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, apierrors.ErrUnauthenticated)
		return
	}

	user, err := h.service.Profile(r.Context(), id.UserID)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// UpdateProfile — PUT /users/profile. Требует аутентификации и CSRF-токена.
// Пустые поля означают "оставить как есть".
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, apierrors.ErrUnauthenticated)
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), id.UserID, req.FirstName, req.LastName, req.Email)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// DeleteAccount — DELETE /users/me. Требует аутентификации и CSRF-токена.
// Удаляет пользователя; refresh-токены удаляются каскадно на уровне БД.
func (h *Handlers) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, apierrors.ErrUnauthenticated)
		return
	}

	if err := h.service.DeleteAccount(r.Context(), id.UserID); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	logctx.From(r.Context()).LogAttrs(r.Context(), slog.LevelInfo, "account deleted",
		slog.String("user_id", id.UserID.String()),
	)

	h.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: "account deleted"})
}
