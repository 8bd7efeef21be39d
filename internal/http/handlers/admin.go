package handlers

import (
	"log/slog"
	"net/http"

	apierrors "auth-service/internal/errors"
	"auth-service/internal/http/middleware"
	"auth-service/internal/models"
	logctx "auth-service/internal/pkg/log"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type changeRoleRequest struct {
	Role string `json:"role"`
}

// ChangeUserRole — PATCH /admin/users/{id}/role.
// Требует роли admin и CSRF-токена.
func (h *Handlers) ChangeUserRole(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	var req changeRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	user, err := h.service.ChangeUserRole(r.Context(), userID, models.Role(req.Role))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if admin, ok := middleware.IdentityFrom(r.Context()); ok {
		logctx.From(r.Context()).LogAttrs(r.Context(), slog.LevelInfo, "role changed",
			slog.String("admin_id", admin.UserID.String()),
			slog.String("user_id", user.ID.String()),
			slog.String("role", string(user.Role)),
		)
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}
