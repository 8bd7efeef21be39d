// errors стандартизирует ответы об ошибках HTTP-слоя.
// На вход он принимает доменную ошибку (sentinel из пакета service либо
// локальную ошибку middleware), а на выход даёт:
//   - корректный HTTP-статус;
//   - краткое безопасное message без утечки деталей.
//
// Сообщения для отказов безопасности намеренно стабильные и одинаковые
// внутри класса: клиент не может отличить "нет пользователя" от "не тот
// пароль" и не узнаёт, какая именно проверка CSRF не прошла.
package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"auth-service/internal/service"
)

var (
	// ErrRateLimited — превышен fixed-window лимит попыток. HTTP 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnauthenticated — запрос требует аутентификации. HTTP 401.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrForbidden — идентичность есть, но прав недостаточно. HTTP 403.
	ErrForbidden = errors.New("permission denied")

	// ErrCSRFRejected — не пройдена double-submit проверка. HTTP 403.
	ErrCSRFRejected = errors.New("csrf rejected")

	// ErrInvalidArgument — битое тело запроса/параметры. HTTP 400.
	ErrInvalidArgument = errors.New("invalid argument")
)

// APIError — единый формат для фронта.
// Code — короткий стабильный код для машиночитаемой обработки на FE.
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует доменную ошибку в HTTP-статус и унифицированный ответ.
//
// Поведение:
//   - err == nil - это программная ошибка вызова: возвращаем 500/internal,
//     чтобы не послать "200 OK" с телом ошибки и не маскировать баг.
//   - неизвестная ошибка - 500/internal (без утечки деталей).
func ToHTTP(err error) (int, ErrorResponse) {
	status, code, msg := base(err)

	return status, ErrorResponse{
		Error: APIError{
			Code:    code,
			Message: msg,
		},
	}
}

// WriteError — хелпер для HTTP-хендлеров и middleware.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	// Прокидываем request_id для фронта, чтобы он мог репортить баги с привязкой.
	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// base — маппинг доменных ошибок на HTTP-статус/FE-код/сообщение.
// Таблица покрывает весь закрытый набор отказов ядра:
//   - валидация (email/пароль/имя/роль/занятый email) -> 400
//   - неверные учётные данные -> 401 (единое сообщение)
//   - невалидный/просроченный/отозванный токен -> 401 (единое сообщение)
//   - нет аутентификации -> 401
//   - нет прав / CSRF -> 403
//   - лимит попыток -> 429
//   - не найдено -> 404
//   - прочее -> 500/internal
func base(err error) (int, string, string) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, "internal", "internal error"

	case errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrEmptyPassword),
		errors.Is(err, service.ErrEmptyName),
		errors.Is(err, service.ErrUnknownRole),
		errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument", "invalid argument"

	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusBadRequest, "email_taken", "email already in use"

	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials", "invalid credentials"

	case errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrTokenRevoked):
		return http.StatusUnauthorized, "invalid_token", "invalid or expired token"

	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated", "authentication required"

	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "permission_denied", "permission denied"

	case errors.Is(err, ErrCSRFRejected):
		return http.StatusForbidden, "csrf_rejected", "CSRF token missing or invalid, refresh the page and try again"

	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited", "too many attempts, please try again later"

	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, "not_found", "not found"

	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}
