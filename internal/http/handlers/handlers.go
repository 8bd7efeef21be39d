// handlers содержит HTTP-обработчики публичного API сервиса.
//
// Обработчики тонкие: разбор запроса, вызов сервиса, маппинг доменной
// ошибки через internal/errors и сериализация ответа. Бизнес-правил
// здесь нет.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	apierrors "auth-service/internal/errors"
	"auth-service/internal/models"
	"auth-service/internal/service"
)

// refreshCookie — httpOnly кука с refresh-токеном. Браузер шлёт её сам,
// JS к ней доступа не имеет.
const refreshCookie = "refresh_token"

// maxBodyBytes ограничивает размер тела запроса.
const maxBodyBytes = 1 << 20

// Handlers агрегирует зависимости HTTP-слоя.
type Handlers struct {
	service      *service.Service
	cookieSecure bool
	refreshTTL   time.Duration
}

// New создаёт набор обработчиков.
func New(svc *service.Service, cookieSecure bool, refreshTTL time.Duration) *Handlers {
	return &Handlers{
		service:      svc,
		cookieSecure: cookieSecure,
		refreshTTL:   refreshTTL,
	}
}

// userResponse — представление пользователя в ответах API.
type userResponse struct {
	UserID    string `json:"userId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// messageResponse — подтверждение операций без содержательного тела
// (logout, удаление аккаунта).
type messageResponse struct {
	Message string `json:"message"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		UserID:    u.ID.String(),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: u.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// writeJSON сериализует ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON разбирает тело запроса; любой сбой разбора — invalid_argument.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apierrors.ErrInvalidArgument
	}

	return nil
}

// setRefreshCookie выставляет refresh-токен в httpOnly куку.
// SameSite=Strict: кука не уходит с кросс-сайтовых запросов вовсе.
func (h *Handlers) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.refreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// clearRefreshCookie удаляет refresh-куку у клиента.
func (h *Handlers) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}
