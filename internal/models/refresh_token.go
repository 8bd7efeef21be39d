package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken - серверная запись refresh-токена для управления сессиями.
//
// В БД хранится только хэш токена (sha256 → base64url), сам токен знает
// лишь клиент. Отзыв (Revoked=true) — необратимая операция; физическое
// удаление строки выполняет только фоновая очистка по expires_at.
type RefreshToken struct {
	RefreshTokenHash string
	UserID           uuid.UUID
	CreatedAt        time.Time
	ExpiresAt        time.Time
	Revoked          bool
}
